package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/ai-chat-hub/internal/model"
)

type registerPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture,omitempty"`
	AuthType string `json:"auth_type"`
}

func toUserResponse(a model.UserAccount) userResponse {
	return userResponse{
		ID:       a.ID,
		Email:    a.Email,
		Name:     a.Name,
		Picture:  a.Picture,
		AuthType: a.AuthType,
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var payload registerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	account, err := s.auth.Register(c.Request.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.startSession(c, account.ID); err != nil {
		s.log.Error("issue session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(account))
}

func (s *Server) handleLogin(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	account, err := s.auth.Login(c.Request.Context(), payload.Email, payload.Password, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.startSession(c, account.ID); err != nil {
		s.log.Error("issue session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(account))
}

func (s *Server) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// startSession issues a JWT and sets it as an HttpOnly cookie.
func (s *Server) startSession(c *gin.Context, userID string) error {
	token, exp, err := s.auth.IssueSession(userID)
	if err != nil {
		return err
	}
	maxAge := int(time.Until(exp).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", s.secureCookie, true)
	return nil
}
