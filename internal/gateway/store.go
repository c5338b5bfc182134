package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUserNotFound は指定されたユーザーが存在しないことを表す。
var ErrUserNotFound = errors.New("gateway: ユーザーが見つかりません")

// User はGatewayローカルに保存するユーザー認証情報。
type User struct {
	// ID はユーザーの一意識別子（UUID）。トークンのsubクレームになる。
	ID string
	// Username はログインに使用するユーザー名。
	Username string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// Email はユーザーのメールアドレス。
	Email string
	// IsActive はアカウントが有効かどうか。
	IsActive bool
}

// userStore はusersテーブルへのクエリ実行を担う。
type userStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// newUserStore は新しいユーザーストアを生成する。
func newUserStore(db *sql.DB) *userStore {
	return &userStore{db: db}
}

// Create はユーザーを登録する。
func (s *userStore) Create(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, email, is_active) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Email, boolToInt(u.IsActive),
	)
	if err != nil {
		return fmt.Errorf("ユーザーの登録に失敗: %w", err)
	}
	return nil
}

// GetByUsername はユーザー名でユーザーを検索する。
func (s *userStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.get(ctx, `SELECT id, username, password_hash, email, is_active FROM users WHERE username = ?`, username)
}

// GetByID はユーザーIDでユーザーを検索する。
func (s *userStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.get(ctx, `SELECT id, username, password_hash, email, is_active FROM users WHERE id = ?`, id)
}

// UpdateLastLogin は最終ログイン日時を現在時刻に更新する。
func (s *userStore) UpdateLastLogin(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = datetime('now') WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("最終ログイン日時の更新に失敗: %w", err)
	}
	return nil
}

// get は1件のユーザーを取得する共通処理。
func (s *userStore) get(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	var isActive int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Email, &isActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	u.IsActive = isActive != 0
	return &u, nil
}

// boolToInt はSQLiteのINTEGER列向けにboolを変換する。
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
