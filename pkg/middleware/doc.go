// Package middleware はGatewayサービスで使用する共通のGinミドルウェアを提供する。
//
// JWT認証、CORS、パニック回復、リクエストログを含む。
package middleware
