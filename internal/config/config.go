// Package config はGatewayサービスの設定を環境変数から読み込む。
//
// 環境変数に加えて、カレントディレクトリの .env ファイル（存在する場合）も
// 読み込む。環境変数は .env の値より優先される。
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config はGatewayサービスの設定値を保持する。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"APP_PORT"`
	// Env はアプリケーション環境（local, dev, prod等）。
	Env string `mapstructure:"APP_ENV"`
	// FrontendURL はCORSで許可するフロントエンドのURL。
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// JWTSecret はJWT署名用の秘密鍵。local以外の環境では必須。
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// AccessTokenTTL はアクセストークンの有効期間。
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL はリフレッシュトークンの有効期間。
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`

	// DBPath はユーザー情報を保存するSQLiteデータベースのパス。
	DBPath string `mapstructure:"DB_PATH"`

	// RedisAddr はリフレッシュトークン保存用Redisのアドレス（host:port）。
	// 空の場合はインメモリストアにフォールバックする。
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword はRedisの接続パスワード。
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB はRedisのデータベース番号。
	RedisDB int `mapstructure:"REDIS_DB"`

	// RuleEngineURL はルールエンジンサービスのベースURL。
	RuleEngineURL string `mapstructure:"RULE_ENGINE_URL"`
	// GMServiceURL はGM（ナラティブエンジン）サービスのベースURL。
	GMServiceURL string `mapstructure:"GM_SERVICE_URL"`
	// StateManagerURL は状態管理サービスのベースURL。
	StateManagerURL string `mapstructure:"STATE_MANAGER_URL"`
	// ScenarioServiceURL はシナリオサービスのベースURL。
	ScenarioServiceURL string `mapstructure:"SCENARIO_SERVICE_URL"`
}

// Load は .env（存在する場合）と環境変数からConfigを構築して検証する。
// .env が存在しない場合は無視する（CI環境等）。
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // .env が無い場合は無視する

	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h") // 7日間
	v.SetDefault("DB_PATH", "/data/gateway.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RULE_ENGINE_URL", "http://localhost:8081")
	v.SetDefault("GM_SERVICE_URL", "http://localhost:8082")
	v.SetDefault("STATE_MANAGER_URL", "http://localhost:8083")
	v.SetDefault("SCENARIO_SERVICE_URL", "http://localhost:8084")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate は設定値の妥当性を検証する。
func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if c.Env != "local" {
			return errors.New("config: local以外の環境ではJWT_SECRETの設定が必須です")
		}
		// ローカル開発用のデフォルト値
		c.JWTSecret = "dev-secret-key"
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("config: ACCESS_TOKEN_TTLは正の値でなければなりません")
	}
	if c.RefreshTokenTTL <= 0 {
		return errors.New("config: REFRESH_TOKEN_TTLは正の値でなければなりません")
	}
	return nil
}
