// Command chat-hub starts the AI chat hub HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/ai-chat-hub/internal/crypto"
	"github.com/and161185/ai-chat-hub/internal/limiter"
	"github.com/and161185/ai-chat-hub/internal/model"
	"github.com/and161185/ai-chat-hub/internal/provider"
	"github.com/and161185/ai-chat-hub/internal/server/httpapi"
	"github.com/and161185/ai-chat-hub/internal/service"
	"github.com/and161185/ai-chat-hub/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, wires the services and starts the HTTP server.
func main() {
	// Flags; secrets default to environment variables.
	addr := flag.String("addr", ":8080", "listen address")
	dataDir := flag.String("data-dir", "data", "directory for users.json and per-user documents")
	jwtKey := flag.String("jwt-key", os.Getenv("JWT_KEY"), "HS256 signing key (required)")
	secret := flag.String("secret", os.Getenv("APP_SECRET"), "API key encryption secret (required)")
	accessTTL := flag.Duration("access-ttl", 24*time.Hour, "session token TTL")
	redirectURL := flag.String("oauth-redirect", os.Getenv("GOOGLE_REDIRECT_URL"), "Google OAuth callback URL")
	secureCookie := flag.Bool("secure-cookie", true, "mark session cookies Secure (disable for plain-HTTP dev)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key or JWT_KEY)")
	}
	if *secret == "" {
		logger.Fatal("missing encryption secret (--secret or APP_SECRET)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(storage.Config{Dir: *dataDir, Logger: logger})
	if err != nil {
		logger.Fatal("storage.New", zap.Error(err))
	}
	sealer, err := crypto.NewSealer(*secret)
	if err != nil {
		logger.Fatal("crypto.NewSealer", zap.Error(err))
	}

	lim := limiter.NewMemory(15*time.Minute, 5, 15*time.Minute)

	// Process-wide fallback keys for users without their own.
	fallback := map[string]string{
		model.ProviderOpenAI:    os.Getenv("OPENAI_API_KEY"),
		model.ProviderAnthropic: os.Getenv("ANTHROPIC_API_KEY"),
		model.ProviderGoogle:    os.Getenv("GEMINI_API_KEY"),
	}

	// Services
	authSvc := service.NewAuthService(store, []byte(*jwtKey), *accessTTL, lim)
	keySvc := service.NewKeyService(store, sealer, fallback)
	chatSvc := service.NewChatService(store, keySvc, provider.NewRegistry(), logger)

	var google *httpapi.GoogleOAuth
	clientID, clientSecret := os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" && *redirectURL != "" {
		google = httpapi.NewGoogleOAuth(clientID, clientSecret, *redirectURL)
	} else {
		logger.Info("google oauth disabled (GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET/GOOGLE_REDIRECT_URL not set)")
	}

	api := httpapi.New(httpapi.Config{
		Auth:         authSvc,
		Keys:         keySvc,
		Chat:         chatSvc,
		Google:       google,
		Logger:       logger,
		SecureCookie: *secureCookie,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
