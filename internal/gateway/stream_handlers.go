package gateway

import (
	"github.com/gin-gonic/gin"

	"github.com/gtrpgm/gateway/internal/relay"
	"github.com/gtrpgm/gateway/pkg/middleware"
)

// handleMinigameStream はルールエンジンのミニゲームSSEストリームを中継する
// ハンドラを返す。受信したバイトチャンクを受信順そのままでクライアントに
// 流す。クライアント切断時はコンテキストのキャンセルによって上流接続も
// 速やかに閉じられる。
func (s *Server) handleMinigameStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, err := relay.OpenStream(c.Request.Context(), s.pool, relay.StreamRequest{
			BaseURL: s.serviceURLs.RuleEngine,
			Path:    "/minigame",
			Token:   middleware.GetToken(c),
			Params:  c.Request.URL.Query(),
		})
		if err != nil {
			s.relayError(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		// クライアント切断はリクエストコンテキストのキャンセルとして観測され、
		// OpenStream側がチャネルをクローズするためループは必ず終了する
		for chunk := range ch {
			if _, err := c.Writer.Write(chunk); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
