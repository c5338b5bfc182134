package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisをバックエンドとするリフレッシュトークンストア。
// キーごとの操作はRedis側でアトミックに実行される。
type RedisStore struct {
	// client はRedisクライアント。
	client *redis.Client
}

// NewRedisStore は指定されたRedisクライアントを使用するストアを生成する。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Save はリフレッシュトークンをTTL付きで保存する。既存の値は上書きされる。
func (s *RedisStore) Save(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, storeKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("リフレッシュトークンの保存に失敗: %w", err)
	}
	return nil
}

// Get は保存済みリフレッシュトークンを返す。
func (s *RedisStore) Get(ctx context.Context, userID string) (string, error) {
	val, err := s.client.Get(ctx, storeKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("リフレッシュトークンの取得に失敗: %w", err)
	}
	return val, nil
}

// Delete はリフレッシュトークンを削除する。キーが存在しなくてもエラーにならない。
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, storeKey(userID)).Err(); err != nil {
		return fmt.Errorf("リフレッシュトークンの削除に失敗: %w", err)
	}
	return nil
}
