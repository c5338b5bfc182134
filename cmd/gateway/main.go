// GTRPGM Gatewayサービスのエントリポイント。
// ローカル認証とセッショントークンの発行、マイクロサービスへの
// リクエスト転送・ストリーム中継を担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gtrpgm/gateway/internal/config"
	"github.com/gtrpgm/gateway/internal/credential"
	"github.com/gtrpgm/gateway/internal/gateway"
	"github.com/gtrpgm/gateway/internal/relay"
)

// shutdownTimeout は終了時に実行中の中継操作の完了を待つ上限時間。
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}

	if cfg.Env == "local" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	credStore, redisClient := newCredentialStore(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	pool := relay.NewPool()

	server, err := gateway.NewServer(cfg, credStore, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("Gatewayサーバーの初期化に失敗")
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Gatewayサービスを起動します")
		if err := server.Run(); err != nil {
			log.Fatal().Err(err).Msg("Gatewayサービスの起動に失敗")
		}
	}()

	// SIGINT/SIGTERMを受けたら実行中の中継を待ってから終了する
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Gatewayサービスを終了します")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := pool.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("クライアントプールの終了待機がタイムアウト")
	}
	if err := server.Close(); err != nil {
		log.Warn().Err(err).Msg("データベース接続のクローズに失敗")
	}
}

// newCredentialStore はリフレッシュトークンの保存先を生成する。
// Redisが設定されていて疎通できる場合はRedisを、それ以外はインメモリ
// ストアを使用する（インメモリの場合は再起動でセッションが失われる）。
func newCredentialStore(cfg *config.Config) (credential.Store, *redis.Client) {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDRが未設定のためインメモリストアを使用します")
		return credential.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redisに接続できないためインメモリストアにフォールバックします")
		client.Close()
		return credential.NewMemoryStore(), nil
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("Redisをリフレッシュトークンストアとして使用します")
	return credential.NewRedisStore(client), client
}
