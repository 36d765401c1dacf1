package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/and161185/ai-chat-hub/internal/pricing"
	"github.com/and161185/ai-chat-hub/internal/service"
)

func (s *Server) handleUser(c *gin.Context) {
	token, err := c.Cookie(sessionCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	userID, err := s.auth.ParseSession(token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	account, err := s.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(account)})
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, pricing.Catalog)
}

func (s *Server) handleKeyStatus(c *gin.Context) {
	status, err := s.keys.Status(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type saveKeysPayload struct {
	Keys map[string]string `json:"keys"`
}

func (s *Server) handleSaveKeys(c *gin.Context) {
	var payload saveKeysPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if err := s.keys.SaveKeys(c.Request.Context(), currentUser(c), payload.Keys); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListConversations(c *gin.Context) {
	list, err := s.chat.ListConversations(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type createConversationPayload struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	var payload createConversationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	id, err := s.chat.CreateConversation(c.Request.Context(), currentUser(c), payload.Provider, payload.Model)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleGetConversation(c *gin.Context) {
	conv, err := s.chat.GetConversation(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	if err := s.chat.DeleteConversation(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type chatPayload struct {
	ConversationID string `json:"conversation_id"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Message        string `json:"message"`
}

func (s *Server) handleChat(c *gin.Context) {
	var payload chatPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	res, err := s.chat.SendMessage(c.Request.Context(), currentUser(c), service.ChatRequest{
		ConversationID: payload.ConversationID,
		Provider:       payload.Provider,
		Model:          payload.Model,
		Message:        payload.Message,
	})
	if err != nil {
		if res.ConversationID != "" {
			// The failed turn is recorded in the conversation; return the
			// id so the client can reload the thread.
			c.JSON(http.StatusBadGateway, gin.H{
				"error":           err.Error(),
				"conversation_id": res.ConversationID,
			})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
