package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenSource returns a valid token.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(context.Context) (*oauth2.Token, error)
	ForceRefresh(context.Context) (*oauth2.Token, error)
}

// RefreshFunc exchanges an expired token for a new one.
type RefreshFunc func(ctx context.Context, expired *oauth2.Token) (*oauth2.Token, error)

// LoginFunc obtains a fresh token from the account credentials.
type LoginFunc func(ctx context.Context) (*oauth2.Token, error)

// ErrNoToken is returned when there is no token and no way to log in.
var ErrNoToken = errors.New("oauth: no token available")

// SessionSource holds the session token of one account. An expired token is
// refreshed first; when that fails the source logs in again.
type SessionSource struct {
	refresh RefreshFunc
	login   LoginFunc
	logger  *slog.Logger

	mu      sync.Mutex
	current *oauth2.Token
}

func NewSessionSource(current *oauth2.Token, refresh RefreshFunc, login LoginFunc, logger *slog.Logger) *SessionSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSource{
		refresh: refresh,
		login:   login,
		logger:  logger,
		current: current,
	}
}

// Token returns the current token, renewing it when it is expired or about to expire.
func (s *SessionSource) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Valid() {
		return s.current, nil
	}
	return s.renew(ctx, false)
}

// ForceRefresh renews the token regardless of expiry. Used after a 401.
func (s *SessionSource) ForceRefresh(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.renew(ctx, true)
}

// Renew refreshes the token without falling back to a login.
func (s *SessionSource) Renew(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Valid() {
		return s.current, nil
	}
	if s.current == nil || s.current.RefreshToken == "" || s.refresh == nil {
		return nil, ErrNoToken
	}
	tok, err := s.refresh(ctx, s.current)
	if err != nil {
		return nil, fmt.Errorf("oauth: refresh: %w", err)
	}
	s.current = tok
	return tok, nil
}

// Current returns the last token obtained, valid or not.
func (s *SessionSource) Current() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *SessionSource) renew(ctx context.Context, force bool) (*oauth2.Token, error) {
	if s.current != nil && s.current.RefreshToken != "" && s.refresh != nil {
		expired := *s.current
		if force {
			// oauth2 treats a zero expiry as valid forever, so push it into the past.
			expired.Expiry = time.Now().Add(-time.Minute)
		}
		tok, err := s.refresh(ctx, &expired)
		if err == nil {
			s.current = tok
			return tok, nil
		}
		s.logger.Warn("Token refresh failed, logging in again", "error", err)
	}

	if s.login == nil {
		return nil, ErrNoToken
	}
	tok, err := s.login(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: login: %w", err)
	}
	s.current = tok
	return tok, nil
}
