// Package credential はリフレッシュトークンの保存先となるキーバリューストアを提供する。
//
// ユーザーごとに有効なリフレッシュトークンは常に1つだけであり、
// 再ログイン時の保存は既存エントリを上書きする。
package credential

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound は指定されたユーザーのリフレッシュトークンが存在しないことを表す。
var ErrNotFound = errors.New("credential: リフレッシュトークンが見つかりません")

// keyPrefix はストア上のキーのプレフィックス。キーは "refresh_token:<userID>" となる。
const keyPrefix = "refresh_token:"

// Store はユーザーごとのリフレッシュトークンを保持するストア。
// 1ユーザーにつき1スロットのみで、Saveは既存の値を無条件に上書きする。
type Store interface {
	// Save はユーザーのリフレッシュトークンをTTL付きで保存する。
	// 既に保存されているトークンがあれば上書きし、以前のトークンは無効になる。
	Save(ctx context.Context, userID, token string, ttl time.Duration) error
	// Get はユーザーの保存済みリフレッシュトークンを返す。
	// 存在しない（期限切れ含む）場合はErrNotFoundを返す。
	Get(ctx context.Context, userID string) (string, error)
	// Delete はユーザーのリフレッシュトークンを削除する。
	// 存在しないキーの削除はエラーにならない（冪等）。
	Delete(ctx context.Context, userID string) error
}

// storeKey はユーザーIDからストアのキーを組み立てる。
func storeKey(userID string) string {
	return keyPrefix + userID
}
