// Package relay はマイクロサービスへのリクエスト転送とストリーミング中継を提供する。
//
// 全ての転送はプロセスで1つだけ生成される共有クライアントプールを経由する。
// 単発リクエストは固定の短いタイムアウト、ストリーミングはタイムアウトなしで
// 実行され、どちらも同一のコネクションプール（Transport）を共有する。
package relay

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// requestTimeout は単発リクエストのタイムアウト。
const requestTimeout = 10 * time.Second

// Pool はプロセス全体で共有する送信用HTTPクライアントのプール。
// 起動時に1度だけ生成し、全ての中継操作で使い回す。
// 同時接続数はTransportの設定値で制限される。
type Pool struct {
	// mu はclosedフラグへのアクセスを保護する。
	mu sync.Mutex
	// closed はClose呼び出し済みかどうか。
	closed bool
	// inflight は実行中の中継操作の完了待ちに使用する。
	inflight sync.WaitGroup

	// transport は全クライアントが共有するコネクションプール。
	transport *http.Transport
	// client は単発リクエスト用のクライアント（タイムアウトあり）。
	client *http.Client
	// streamClient はストリーミング用のクライアント（タイムアウトなし）。
	streamClient *http.Client
}

// NewPool は共有クライアントプールを生成する。
// 最大100コネクション、キープアライブは20コネクションまで保持する。
func NewPool() *Pool {
	transport := &http.Transport{
		MaxConnsPerHost:     100,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Pool{
		transport:    transport,
		client:       &http.Client{Transport: transport, Timeout: requestTimeout},
		streamClient: &http.Client{Transport: transport},
	}
}

// Borrow は単発リクエスト用クライアントを返す。
// プールがクローズ済みの場合はErrPoolClosedを返す。
func (p *Pool) Borrow() (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.client == nil {
		return nil, ErrPoolClosed
	}
	return p.client, nil
}

// BorrowStream はストリーミング用クライアント（タイムアウトなし）を返す。
// ストリーム継続時間は呼び出し元とマイクロサービス側で制御される。
func (p *Pool) BorrowStream() (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.streamClient == nil {
		return nil, ErrPoolClosed
	}
	return p.streamClient, nil
}

// Close はプールをクローズする。以降のBorrowはErrPoolClosedを返す。
// 実行中の中継操作が完了するまで待機し、ctxの期限で待機を打ち切る。
// 待機完了後にアイドルコネクションを解放する。
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.transport.CloseIdleConnections()
		return ctx.Err()
	}

	p.transport.CloseIdleConnections()
	return nil
}

// enter は中継操作の開始を記録する。操作完了時にleaveを呼ぶこと。
func (p *Pool) enter() {
	p.inflight.Add(1)
}

// leave は中継操作の完了を記録する。
func (p *Pool) leave() {
	p.inflight.Done()
}
