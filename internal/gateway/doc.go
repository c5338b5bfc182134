// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として
// 機能する。ローカル認証（サインアップ・ログイン）とセッショントークンの
// 発行・再発行・失効を担当し、認証済みリクエストをルールエンジン・GM・
// 状態管理・シナリオの各マイクロサービスに転送する。ミニゲームのSSE
// ストリームはバイト列のまま中継する。
package gateway
