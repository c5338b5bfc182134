// Package token はセッショントークン（アクセス・リフレッシュ）の発行・検証・
// 再発行・失効を提供する。
//
// アクセストークンは短命でサーバー側に保存されない。リフレッシュトークンは
// credentialストアにユーザーごと1つだけ保存され、保存中のトークンと一致する
// 場合のみ再発行に使用できる。再ログインによる上書きで以前のリフレッシュ
// トークンは暗黙に無効になる。
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gtrpgm/gateway/internal/credential"
)

var (
	// ErrTokenExpired はトークンの有効期限が切れていることを表す。
	ErrTokenExpired = errors.New("token: トークンの有効期限が切れています")
	// ErrTokenInvalid は署名不一致・形式不正・subクレーム欠落・
	// 保存済みリフレッシュトークンとの不一致を表す。
	ErrTokenInvalid = errors.New("token: トークンが無効です")
)

// Claims はセッショントークンのクレーム（ペイロード）を表す。
// subクレームにユーザーID、usernameクレームにユーザー名を保持する。
type Claims struct {
	jwt.RegisteredClaims
	// Username は認証済みユーザーのユーザー名。
	Username string `json:"username,omitempty"`
}

// Service はセッショントークンのライフサイクルを管理する。
// 署名はHS256の対称鍵方式で行う。
type Service struct {
	// secret はJWT署名用の秘密鍵。
	secret []byte
	// accessTTL はアクセストークンの有効期間。
	accessTTL time.Duration
	// refreshTTL はリフレッシュトークンの有効期間。
	refreshTTL time.Duration
	// store はリフレッシュトークンの保存先。
	store credential.Store
}

// NewService は新しいトークンサービスを生成する。
func NewService(secret string, accessTTL, refreshTTL time.Duration, store credential.Store) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
	}
}

// Issue はユーザーに対してアクセストークンとリフレッシュトークンを発行する。
// リフレッシュトークンはcredentialストアに保存され、同一ユーザーの既存
// エントリは上書きされる（以前のリフレッシュトークンは無効になる）。
func (s *Service) Issue(ctx context.Context, userID, username string) (access, refresh string, err error) {
	access, err = s.sign(userID, username, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.sign(userID, username, s.refreshTTL)
	if err != nil {
		return "", "", err
	}

	if err := s.store.Save(ctx, userID, refresh, s.refreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Verify はトークンの署名と有効期限を検証してクレームを返す。
// 期限切れはErrTokenExpired、それ以外の検証失敗はErrTokenInvalidを返す。
// 有効期限が現在時刻と一致する場合も期限切れとして扱う。
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Refresh はリフレッシュトークンを検証して新しいアクセストークンを発行する。
// 提示されたトークンがcredentialストアの保存値と完全一致しない場合
// （ログアウト済み・別端末での再ログイン含む）はErrTokenInvalidを返す。
// このパスではリフレッシュトークン自体は再発行しない。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.Verify(refreshToken)
	if err != nil {
		return "", err
	}

	saved, err := s.store.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return "", ErrTokenInvalid
		}
		return "", err
	}
	if saved != refreshToken {
		return "", ErrTokenInvalid
	}

	return s.sign(claims.Subject, claims.Username, s.accessTTL)
}

// Revoke はユーザーのリフレッシュトークンをcredentialストアから削除する。
// 既に存在しない場合もエラーにならない（冪等）。
func (s *Service) Revoke(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

// sign は指定された有効期間でHS256署名済みトークンを生成する。
func (s *Service) sign(userID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}
