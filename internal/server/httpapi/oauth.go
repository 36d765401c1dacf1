package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/and161185/ai-chat-hub/internal/crypto"
)

const (
	stateCookie     = "oauth_state"
	stateCookieTTL  = 600 // seconds
	userinfoURL     = "https://www.googleapis.com/oauth2/v2/userinfo"
	afterLoginPath  = "/"
	loginFailedPath = "/login?error=oauth"
)

// GoogleOAuth drives the Google sign-in flow.
type GoogleOAuth struct {
	cfg *oauth2.Config
}

// NewGoogleOAuth builds the OAuth config. redirectURL must match the console
// registration, e.g. https://host/auth/google/callback.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

type googleUserinfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// fetchUserinfo exchanges the authorization code and loads the user profile.
func (g *GoogleOAuth) fetchUserinfo(ctx context.Context, code string) (googleUserinfo, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return googleUserinfo{}, fmt.Errorf("oauth exchange: %w", err)
	}
	resp, err := g.cfg.Client(ctx, token).Get(userinfoURL)
	if err != nil {
		return googleUserinfo{}, fmt.Errorf("userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return googleUserinfo{}, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}
	var info googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserinfo{}, fmt.Errorf("userinfo decode: %w", err)
	}
	return info, nil
}

func (s *Server) handleGoogleLogin(c *gin.Context) {
	raw, err := crypto.RandBytes(24)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	state := base64.RawURLEncoding.EncodeToString(raw)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateCookieTTL, "/", "", s.secureCookie, true)
	c.Redirect(http.StatusFound, s.google.cfg.AuthCodeURL(state))
}

func (s *Server) handleGoogleCallback(c *gin.Context) {
	want, err := c.Cookie(stateCookie)
	if err != nil || want == "" || c.Query("state") != want {
		c.Redirect(http.StatusFound, loginFailedPath)
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", s.secureCookie, true)

	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, loginFailedPath)
		return
	}

	info, err := s.google.fetchUserinfo(c.Request.Context(), code)
	if err != nil || info.Email == "" {
		s.log.Warn("google oauth failed", zap.Error(err))
		c.Redirect(http.StatusFound, loginFailedPath)
		return
	}

	account, err := s.auth.UpsertGoogleUser(c.Request.Context(), info.Email, info.Name, info.Picture)
	if err != nil {
		s.log.Error("google upsert", zap.Error(err))
		c.Redirect(http.StatusFound, loginFailedPath)
		return
	}
	if err := s.startSession(c, account.ID); err != nil {
		s.log.Error("issue session", zap.Error(err))
		c.Redirect(http.StatusFound, loginFailedPath)
		return
	}
	c.Redirect(http.StatusFound, afterLoginPath)
}
