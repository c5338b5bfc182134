package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gtrpgm/gateway/internal/token"
)

// TokenVerifier はセッショントークンを検証してクレームを返す。
// 実体はtoken.Serviceで、各ハンドラに散らばりがちな検証処理をここに集約する。
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// contextKeyUserID はGinコンテキストにユーザーIDを格納するためのキー。
const contextKeyUserID = "user_id"

// contextKeyUsername はGinコンテキストにユーザー名を格納するためのキー。
const contextKeyUsername = "username"

// contextKeyToken はGinコンテキストに検証済みBearerトークンを格納するためのキー。
// マイクロサービスへの転送時にそのまま引き継ぐ。
const contextKeyToken = "bearer_token"

// JWTAuth はBearerトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにユーザーID・ユーザー名・トークンを設定する。
// 期限切れとそれ以外の検証失敗でメッセージを分けるが、どちらも401を返す。
func JWTAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Bearerトークンが必要です",
			})
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"detail": "ログインセッションが期限切れです。再度ログインしてください。",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "認証に失敗しました",
			})
			return
		}

		c.Set(contextKeyUserID, claims.Subject)
		c.Set(contextKeyUsername, claims.Username)
		c.Set(contextKeyToken, tokenString)
		c.Next()
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return getString(c, contextKeyUserID)
}

// GetUsername はGinコンテキストからユーザー名を取得する。
func GetUsername(c *gin.Context) string {
	return getString(c, contextKeyUsername)
}

// GetToken はGinコンテキストから検証済みBearerトークンを取得する。
func GetToken(c *gin.Context) string {
	return getString(c, contextKeyToken)
}

// getString はGinコンテキストから文字列値を取得する。
func getString(c *gin.Context, key string) string {
	v, _ := c.Get(key)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
