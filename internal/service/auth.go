// Package service contains application services for authentication, API keys
// and chat.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/ai-chat-hub/internal/crypto"
	"github.com/and161185/ai-chat-hub/internal/errs"
	"github.com/and161185/ai-chat-hub/internal/limiter"
	"github.com/and161185/ai-chat-hub/internal/model"
)

// AccountStore is the slice of the document store AuthService needs.
type AccountStore interface {
	// LoadAccounts returns a snapshot of all accounts keyed by id.
	LoadAccounts(ctx context.Context) (map[string]model.UserAccount, error)
	// WithAccounts runs a read-modify-write cycle under the accounts lock.
	WithAccounts(ctx context.Context, fn func(accounts map[string]model.UserAccount) error) error
}

const minPasswordLen = 6

// AuthService registers and authenticates users and issues session tokens.
type AuthService struct {
	accounts  AccountStore
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	now       func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(accounts AccountStore, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthService {
	return &AuthService{
		accounts:  accounts,
		signKey:   signKey,
		accessTTL: accessTTL,
		lim:       lim,
		now:       time.Now,
	}
}

// NormalizeEmail lowercases and trims a login identifier.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account. Email uniqueness is checked and the
// account inserted inside a single accounts-lock span, so two concurrent
// registrations of the same email cannot both succeed.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (model.UserAccount, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" {
		return model.UserAccount{}, fmt.Errorf("%w: empty email or password", errs.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return model.UserAccount{}, fmt.Errorf("%w: password shorter than %d characters", errs.ErrValidation, minPasswordLen)
	}
	if name == "" {
		name = emailLocalPart(email)
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.UserAccount{}, err
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.UserAccount{}, err
	}

	account := model.UserAccount{
		ID:           uid.String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		AuthType:     model.AuthTypeEmail,
		CreatedAt:    s.now().UTC(),
	}
	err = s.accounts.WithAccounts(ctx, func(accounts map[string]model.UserAccount) error {
		for _, existing := range accounts {
			if existing.Email == email {
				return fmt.Errorf("email %s: %w", email, errs.ErrAlreadyExists)
			}
		}
		accounts[account.ID] = account
		return nil
	})
	if err != nil {
		return model.UserAccount{}, err
	}
	return account, nil
}

// Login authenticates a password account with rate limiting by (email, ip).
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (model.UserAccount, error) {
	email = NormalizeEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.UserAccount{}, err
	}
	if !allowed {
		return model.UserAccount{}, errs.ErrRateLimited
	}

	account, found, err := s.findByEmail(ctx, email)
	if err != nil {
		return model.UserAccount{}, err
	}
	ok := found && account.AuthType == model.AuthTypeEmail &&
		pkgcrypto.VerifyPassword(password, account.PasswordHash)
	if !ok {
		// Record failure; if threshold reached, surface the lockout.
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.UserAccount{}, errs.ErrRateLimited
		}
		// Hide whether the account exists.
		return model.UserAccount{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, email, ipHash)
	return account, nil
}

// UpsertGoogleUser finds or creates the account for a completed Google OAuth
// login and refreshes its display name and picture.
func (s *AuthService) UpsertGoogleUser(ctx context.Context, email, name, picture string) (model.UserAccount, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return model.UserAccount{}, fmt.Errorf("%w: empty email", errs.ErrValidation)
	}
	if name == "" {
		name = emailLocalPart(email)
	}

	var account model.UserAccount
	err := s.accounts.WithAccounts(ctx, func(accounts map[string]model.UserAccount) error {
		for id, existing := range accounts {
			if existing.Email == email {
				existing.Name = name
				existing.Picture = picture
				accounts[id] = existing
				account = existing
				return nil
			}
		}
		uid, err := uuid.NewV4()
		if err != nil {
			return err
		}
		account = model.UserAccount{
			ID:        uid.String(),
			Email:     email,
			Name:      name,
			Picture:   picture,
			AuthType:  model.AuthTypeGoogle,
			CreatedAt: s.now().UTC(),
		}
		accounts[account.ID] = account
		return nil
	})
	if err != nil {
		return model.UserAccount{}, err
	}
	return account, nil
}

// GetUser loads one account by id.
func (s *AuthService) GetUser(ctx context.Context, userID string) (model.UserAccount, error) {
	accounts, err := s.accounts.LoadAccounts(ctx)
	if err != nil {
		return model.UserAccount{}, err
	}
	account, ok := accounts[userID]
	if !ok {
		return model.UserAccount{}, fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	return account, nil
}

// IssueSession creates a signed HS256 JWT for the given user.
func (s *AuthService) IssueSession(userID string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// ParseSession validates a session token and returns the user id.
func (s *AuthService) ParseSession(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", errs.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errs.ErrUnauthorized
	}
	return claims.Subject, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (model.UserAccount, bool, error) {
	accounts, err := s.accounts.LoadAccounts(ctx)
	if err != nil {
		return model.UserAccount{}, false, err
	}
	for _, account := range accounts {
		if account.Email == email {
			return account, true, nil
		}
	}
	return model.UserAccount{}, false, nil
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
