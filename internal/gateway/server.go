package gateway

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/gtrpgm/gateway/internal/config"
	"github.com/gtrpgm/gateway/internal/credential"
	"github.com/gtrpgm/gateway/internal/relay"
	"github.com/gtrpgm/gateway/internal/token"
	"github.com/gtrpgm/gateway/pkg/middleware"
)

// Server はGatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はユーザー認証情報を保持するSQLiteデータベース接続。
	db *sql.DB
	// users はusersテーブルへのクエリ実行オブジェクト。
	users *userStore
	// tokens はセッショントークンのライフサイクルを管理するサービス。
	tokens *token.Service
	// pool はマイクロサービスへの送信に使用する共有クライアントプール。
	pool *relay.Pool
	// serviceURLs は各マイクロサービスのベースURL。
	serviceURLs serviceURLConfig
}

// serviceURLConfig は転送先マイクロサービスのURL設定。
type serviceURLConfig struct {
	RuleEngine   string
	GMService    string
	StateManager string
	Scenario     string
}

// NewServer は新しいGatewayサーバーを生成する。
// poolとcredStoreはプロセス起動時に1度だけ生成されたものを受け取る。
func NewServer(cfg *config.Config, credStore credential.Store, pool *relay.Pool) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, credStore)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router: router,
		port:   cfg.Port,
		db:     sqlDB,
		users:  newUserStore(sqlDB),
		tokens: tokens,
		pool:   pool,
		serviceURLs: serviceURLConfig{
			RuleEngine:   cfg.RuleEngineURL,
			GMService:    cfg.GMServiceURL,
			StateManager: cfg.StateManagerURL,
			Scenario:     cfg.ScenarioServiceURL,
		},
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close はデータベース接続を解放する。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// サーバー接続確認
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ようこそ。GTRPGM Gatewayです！"})
	})
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	// 認証エンドポイント（signup/login/refreshは認証不要）
	auth := s.router.Group("/auth")
	{
		auth.POST("/signup", s.handleSignup())
		auth.POST("/login", s.handleLogin())
		auth.POST("/refresh", s.handleRefresh())
		auth.POST("/logout", middleware.JWTAuth(s.tokens), s.handleLogout())
	}

	authRequired := middleware.JWTAuth(s.tokens)

	// 会員サービス
	user := s.router.Group("/user", authRequired)
	{
		user.GET("", s.handleGetCurrentUser())
		user.POST("/update", s.handleProxy(s.serviceURLs.RuleEngine, "/api/v1/user/update"))
		user.DELETE("/delete", s.handleProxyUserDelete())
	}

	// ゲーム状態中継
	state := s.router.Group("/state", authRequired)
	{
		state.POST("/session/create", s.handleProxy(s.serviceURLs.StateManager, "/api/v1/state/session/create"))
		state.GET("/sessions/active", s.handleProxy(s.serviceURLs.StateManager, "/api/v1/state/sessions/active"))
		state.GET("/session/:session_id", s.handleProxyWithParam(s.serviceURLs.StateManager, "/api/v1/state/session/", "session_id"))
		state.GET("/session/:session_id/sequence/details", s.handleProxyWithParam(s.serviceURLs.StateManager, "/api/v1/state/session/", "session_id", "/sequence/details"))
		state.GET("/player/:player_id", s.handleProxyWithParam(s.serviceURLs.StateManager, "/api/v1/state/player/", "player_id"))
	}

	// GMサービス中継
	gm := s.router.Group("/gm", authRequired)
	{
		gm.GET("/history/:session_id", s.handleProxyWithParam(s.serviceURLs.GMService, "/api/v1/game/history/", "session_id"))
		gm.POST("/turn", s.handleProxy(s.serviceURLs.GMService, "/api/v1/game/turn"))
		gm.POST("/summary", s.handleProxy(s.serviceURLs.GMService, "/api/v1/game/summary"))
	}

	// シナリオサービス中継
	scenario := s.router.Group("/scenario", authRequired)
	{
		scenario.POST("/generation/pure", s.handleProxy(s.serviceURLs.Scenario, "/api/v1/generation/pure"))
		scenario.POST("/manage/scenarios/:scenario_id/inject", s.handleProxyWithParam(s.serviceURLs.Scenario, "/api/v1/manage/scenarios/", "scenario_id", "/inject"))
	}

	// ゲーム情報照会（ルールエンジン中継）
	s.router.GET("/info/items", authRequired, s.handleProxy(s.serviceURLs.RuleEngine, "/api/v1/info/items"))

	// ミニゲーム（SSEストリーム中継）
	s.router.GET("/minigame", authRequired, s.handleMinigameStream())
}

// relayError は中継エラーをクライアント向けのレスポンスに変換する。
// マイクロサービスのエラーはステータスとdetailを透過し、通信エラーは
// 内部構成を隠蔽して常に503を返す。
func (s *Server) relayError(c *gin.Context, err error) {
	var upErr *relay.UpstreamError
	if errors.As(err, &upErr) {
		c.JSON(upErr.Status, gin.H{"detail": upErr.Detail})
		return
	}

	var unavailable *relay.UnavailableError
	if errors.As(err, &unavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"detail": fmt.Sprintf("マイクロサービス接続失敗: %v", unavailable.Cause),
		})
		return
	}

	if errors.Is(err, relay.ErrPoolClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "サービスが一時的に利用できません"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"detail": "内部サーバーエラーが発生しました"})
}
