// Package httpapi exposes the chat hub HTTP JSON API.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/ai-chat-hub/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth         *service.AuthService
	keys         *service.KeyService
	chat         *service.ChatService
	google       *GoogleOAuth // nil when OAuth is not configured
	log          *zap.Logger
	secureCookie bool
}

// Config collects Server dependencies.
type Config struct {
	Auth   *service.AuthService
	Keys   *service.KeyService
	Chat   *service.ChatService
	Google *GoogleOAuth
	Logger *zap.Logger

	// SecureCookie marks session cookies Secure; disable for plain-HTTP dev.
	SecureCookie bool
}

// New constructs the API server.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		auth:         cfg.Auth,
		keys:         cfg.Keys,
		chat:         cfg.Chat,
		google:       cfg.Google,
		log:          log,
		secureCookie: cfg.SecureCookie,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(Recover(s.log), Logging(s.log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.GET("/logout", s.handleLogout)
		if s.google != nil {
			auth.GET("/google", s.handleGoogleLogin)
			auth.GET("/google/callback", s.handleGoogleCallback)
		}
	}

	// /api/user answers null for anonymous visitors instead of 401 so the
	// front end can probe session state.
	r.GET("/api/user", s.handleUser)

	api := r.Group("/api", s.requireAuth)
	{
		api.GET("/models", s.handleModels)
		api.GET("/keys", s.handleKeyStatus)
		api.POST("/keys", s.handleSaveKeys)
		api.GET("/conversations", s.handleListConversations)
		api.POST("/conversations", s.handleCreateConversation)
		api.GET("/conversations/:id", s.handleGetConversation)
		api.DELETE("/conversations/:id", s.handleDeleteConversation)
		api.POST("/chat", s.handleChat)
	}

	return r
}
