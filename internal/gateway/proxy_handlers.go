package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gtrpgm/gateway/internal/relay"
	"github.com/gtrpgm/gateway/pkg/middleware"
)

// handleProxy は指定されたマイクロサービスにリクエストを転送するハンドラを返す。
func (s *Server) handleProxy(baseURL, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.doProxy(c, baseURL, path)
	}
}

// handleProxyWithParam はURLパラメータを含むパスへの転送ハンドラを返す。
func (s *Server) handleProxyWithParam(baseURL, pathPrefix, paramName string, pathSuffix ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := pathPrefix + c.Param(paramName)
		for _, suffix := range pathSuffix {
			path += suffix
		}
		s.doProxy(c, baseURL, path)
	}
}

// handleProxyUserDelete は認証済みユーザー自身の退会をルールエンジンに転送するハンドラを返す。
func (s *Server) handleProxyUserDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.doProxy(c, s.serviceURLs.RuleEngine, "/api/v1/user/delete/"+middleware.GetUserID(c))
	}
}

// doProxy はリクエストをマイクロサービスに転送する共通処理。
// 検証済みBearerトークンとクエリパラメータをそのまま引き継ぎ、JSONボディが
// あれば転送する。転送は1回のみで自動リトライは行わない。
func (s *Server) doProxy(c *gin.Context, baseURL, path string) {
	var body any
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "リクエストボディが不正です"})
			return
		}
	}

	result, err := relay.Forward(c.Request.Context(), s.pool, relay.Request{
		Method:  c.Request.Method,
		BaseURL: baseURL,
		Path:    path,
		Token:   middleware.GetToken(c),
		Params:  c.Request.URL.Query(),
		Body:    body,
	})
	if err != nil {
		s.relayError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
