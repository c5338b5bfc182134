package credential

import (
	"context"
	"sync"
	"time"
)

// entry はインメモリストア上の1エントリ。
type entry struct {
	// token はリフレッシュトークンの値。
	token string
	// expiresAt はエントリの有効期限。
	expiresAt time.Time
}

// MemoryStore はプロセス内メモリ上のリフレッシュトークンストア。
// Redisが設定されていない環境（ローカル開発・テスト）で使用する。
// プロセス再起動でセッションは失われる。
type MemoryStore struct {
	// mu はentriesへのアクセスを保護する。
	mu sync.Mutex
	// entries はキーからエントリへのマップ。
	entries map[string]entry
}

// NewMemoryStore は空のインメモリストアを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

// Save はリフレッシュトークンをTTL付きで保存する。既存の値は上書きされる。
func (s *MemoryStore) Save(_ context.Context, userID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[storeKey(userID)] = entry{
		token:     token,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get は保存済みリフレッシュトークンを返す。期限切れのエントリはErrNotFoundを返す。
func (s *MemoryStore) Get(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(userID)
	e, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	if !time.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", ErrNotFound
	}
	return e.token, nil
}

// Delete はリフレッシュトークンを削除する。キーが存在しなくてもエラーにならない。
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, storeKey(userID))
	return nil
}
