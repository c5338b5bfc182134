package relay

import (
	"errors"
	"fmt"
)

// ErrPoolClosed は共有クライアントプールが未初期化または既にクローズされた
// 状態で中継操作が呼び出されたことを表す。ライフサイクル管理の不備であり、
// 呼び出し側ではサービス利用不可として扱う。
var ErrPoolClosed = errors.New("relay: クライアントプールが利用できません")

// UpstreamError はマイクロサービスがステータス400以上で応答したことを表す。
// ステータスコードと抽出済みの詳細メッセージをそのまま呼び出し元に伝搬する。
type UpstreamError struct {
	// Status はマイクロサービスが返したHTTPステータスコード。
	Status int
	// Detail はレスポンスボディから抽出したエラー詳細。
	Detail string
}

// Error はerrorインタフェースを実装する。
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("relay: マイクロサービスエラー: status=%d, detail=%s", e.Status, e.Detail)
}

// UnavailableError はマイクロサービスへの接続自体が失敗したことを表す
// （DNS解決失敗・接続拒否・タイムアウト等）。呼び出し側では内部構成を
// 隠蔽するため常に503として扱う。
type UnavailableError struct {
	// Cause は発生した通信エラー。
	Cause error
}

// Error はerrorインタフェースを実装する。
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("relay: マイクロサービス接続失敗: %v", e.Cause)
}

// Unwrap はerrors.Is/Asによる原因エラーの検査を可能にする。
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}
