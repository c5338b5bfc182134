package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/gtrpgm/gateway/pkg/middleware"
)

// signupRequest はサインアップのリクエストボディ。
type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

// loginRequest はログインのリクエストボディ。
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// refreshRequest はアクセストークン再発行のリクエストボディ。
type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// handleSignup はユーザー登録を行うハンドラを返す。
func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "username・password・emailは必須です"})
			return
		}

		ctx := c.Request.Context()
		if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "既に存在するユーザーです"})
			return
		} else if !errors.Is(err, ErrUserNotFound) {
			log.Error().Err(err).Msg("サインアップ時のユーザー検索に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "ユーザー登録に失敗しました"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error().Err(err).Msg("パスワードのハッシュ化に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "ユーザー登録に失敗しました"})
			return
		}

		user := User{
			ID:           uuid.New().String(),
			Username:     req.Username,
			PasswordHash: string(hash),
			Email:        req.Email,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			log.Error().Err(err).Msg("ユーザーの登録に失敗")
			c.JSON(http.StatusBadRequest, gin.H{"detail": "既に存在するユーザーです"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"user_id":  user.ID,
				"username": user.Username,
			},
			"message": "ユーザー登録が完了しました",
		})
	}
}

// handleLogin はユーザー認証とトークンセット発行を行うハンドラを返す。
// 発行されたリフレッシュトークンはcredentialストアに保存され、同一ユーザーの
// 既存セッションは無効になる。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "usernameとpasswordは必須です"})
			return
		}

		ctx := c.Request.Context()
		user, err := s.users.GetByUsername(ctx, req.Username)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"detail": "ユーザー名またはパスワードが正しくありません"})
				return
			}
			log.Error().Err(err).Msg("ログイン時のユーザー検索に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "ログインに失敗しました"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "ユーザー名またはパスワードが正しくありません"})
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"detail": "無効化されたアカウントです"})
			return
		}

		access, refresh, err := s.tokens.Issue(ctx, user.ID, user.Username)
		if err != nil {
			log.Error().Err(err).Msg("トークンの発行に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "トークンの発行に失敗しました"})
			return
		}

		if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
			// ログイン自体は成功しているため失敗はログのみに留める
			log.Warn().Err(err).Str("user_id", user.ID).Msg("最終ログイン日時の更新に失敗")
		}

		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"access_token":  access,
				"refresh_token": refresh,
				"user_info": gin.H{
					"user_id":  user.ID,
					"username": user.Username,
				},
			},
			"message": fmt.Sprintf("%sさん、ようこそ！", user.Username),
		})
	}
}

// handleRefresh はリフレッシュトークンによるアクセストークン再発行を行うハンドラを返す。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "refresh_tokenは必須です"})
			return
		}

		access, err := s.tokens.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "認証が期限切れです。再度ログインしてください。"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{"access_token": access},
		})
	}
}

// handleLogout はリフレッシュトークンを失効させるハンドラを返す。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if err := s.tokens.Revoke(c.Request.Context(), userID); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("リフレッシュトークンの失効に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "ログアウト中にエラーが発生しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":    nil,
			"message": "ログアウトしました",
		})
	}
}

// handleGetCurrentUser は認証済みユーザーの情報を返すハンドラを返す。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"detail": "ユーザーが見つかりません"})
				return
			}
			log.Error().Err(err).Msg("ユーザー情報の取得に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "ユーザー情報の取得に失敗しました"})
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"detail": "無効化されたアカウントです"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": gin.H{
				"user_id":  user.ID,
				"username": user.Username,
				"email":    user.Email,
			},
		})
	}
}
