package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// streamBufferSize はストリーム読み取りバッファのサイズ。
const streamBufferSize = 4 * 1024

// StreamRequest は1回のストリーミング中継を表す。
type StreamRequest struct {
	// BaseURL は転送先サービスのベースURL。
	BaseURL string
	// Path はベースURLに連結するパス。
	Path string
	// Token はBearerトークン。空の場合はAuthorizationヘッダーを付与しない。
	Token string
	// Params はクエリパラメータ。
	Params url.Values
}

// OpenStream はマイクロサービスへのストリーミング接続を開き、受信した
// バイトチャンクを受信順そのままで返すチャネルを返す。チャネルは
// ストリーム終了時にクローズされる。再開はできない。
//
// ステータス400以上の応答や通信エラーは呼び出し自体の失敗にはせず、
// エラー内容を記述した1チャンクを送出してからチャネルをクローズする。
// 下流へのSSEフレーミングが既にコミットされた後でもエラーを観測できる
// ようにするためである。エラーを返すのはプールがクローズ済みの場合のみ。
//
// ctxのキャンセル時は速やかに接続を閉じてチャンクの送出を停止する。
// どの終了経路でも接続は必ず解放される。
func OpenStream(ctx context.Context, pool *Pool, r StreamRequest) (<-chan []byte, error) {
	client, err := pool.BorrowStream()
	if err != nil {
		return nil, err
	}
	pool.enter()

	ch := make(chan []byte)
	go func() {
		defer pool.leave()
		defer close(ch)

		targetURL := r.BaseURL + r.Path
		if len(r.Params) > 0 {
			targetURL += "?" + r.Params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			emit(ctx, ch, errorChunk(fmt.Sprintf("ストリームリクエストの作成に失敗: %v", err)))
			return
		}
		if r.Token != "" {
			req.Header.Set("Authorization", "Bearer "+r.Token)
		}

		resp, err := client.Do(req)
		if err != nil {
			emit(ctx, ch, errorChunk(fmt.Sprintf("ストリーミング接続失敗: %v", err)))
			return
		}
		defer resp.Body.Close()

		// ボディ送出前のエラー応答は1チャンクだけ送って終了する
		if resp.StatusCode >= http.StatusBadRequest {
			emit(ctx, ch, errorChunk(fmt.Sprintf("Error %d", resp.StatusCode)))
			return
		}

		buf := make([]byte, streamBufferSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !emit(ctx, ch, chunk) {
					return
				}
			}
			if err != nil {
				if ctx.Err() != nil || isEOF(err) {
					return
				}
				// ストリーム途中の通信断は最後のエラーチャンクとして通知する
				emit(ctx, ch, errorChunk(fmt.Sprintf("ストリーム中断: %v", err)))
				return
			}
		}
	}()

	return ch, nil
}

// isEOF は正常なストリーム終端かどうかを判定する。
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// emit はチャンクをチャネルに送出する。ctxがキャンセル済みの場合は
// 送出せずにfalseを返す。
func emit(ctx context.Context, ch chan<- []byte, chunk []byte) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// errorChunk はエラー内容をSSE互換の形式で1チャンクに包む。
// 既にSSEレスポンスとしてコミット済みの下流にもそのまま流せる。
func errorChunk(message string) []byte {
	return []byte("data: " + message + "\n\n")
}
