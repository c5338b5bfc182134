package config

import (
	"testing"
	"time"
)

// TestLoad は設定の読み込みとデフォルト値を検証する。
// 環境変数を書き換えるためt.Parallelは使用しない。
func TestLoad(t *testing.T) {
	t.Run("デフォルト値で読み込めること", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8080")
		}
		if cfg.Env != "local" {
			t.Errorf("Env = %q, want %q", cfg.Env, "local")
		}
		if cfg.AccessTokenTTL != 30*time.Minute {
			t.Errorf("AccessTokenTTL = %v, want %v", cfg.AccessTokenTTL, 30*time.Minute)
		}
		if cfg.RefreshTokenTTL != 7*24*time.Hour {
			t.Errorf("RefreshTokenTTL = %v, want %v", cfg.RefreshTokenTTL, 7*24*time.Hour)
		}
		// local環境では開発用の秘密鍵が補われる
		if cfg.JWTSecret == "" {
			t.Error("JWTSecretが空")
		}
	})

	t.Run("環境変数が設定を上書きすること", func(t *testing.T) {
		t.Setenv("APP_PORT", "9090")
		t.Setenv("ACCESS_TOKEN_TTL", "15m")
		t.Setenv("RULE_ENGINE_URL", "http://rule-engine:8081")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.Port != "9090" {
			t.Errorf("Port = %q, want %q", cfg.Port, "9090")
		}
		if cfg.AccessTokenTTL != 15*time.Minute {
			t.Errorf("AccessTokenTTL = %v, want %v", cfg.AccessTokenTTL, 15*time.Minute)
		}
		if cfg.RuleEngineURL != "http://rule-engine:8081" {
			t.Errorf("RuleEngineURL = %q, want %q", cfg.RuleEngineURL, "http://rule-engine:8081")
		}
	})

	t.Run("local以外の環境でJWT_SECRET未設定はエラーになること", func(t *testing.T) {
		t.Setenv("APP_ENV", "prod")
		t.Setenv("JWT_SECRET", "")

		if _, err := Load(); err == nil {
			t.Error("Load()がエラーを返さなかった")
		}
	})

	t.Run("prod環境でもJWT_SECRETが設定されていれば読み込めること", func(t *testing.T) {
		t.Setenv("APP_ENV", "prod")
		t.Setenv("JWT_SECRET", "production-secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.JWTSecret != "production-secret" {
			t.Errorf("JWTSecret = %q, want %q", cfg.JWTSecret, "production-secret")
		}
	})
}
