// Package session establishes the authenticated Garmin Connect session of a
// run and hands the renewed token back to the secret store afterwards.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/lancerinf/garmin-importer/pkg/credentials"
	"github.com/lancerinf/garmin-importer/pkg/failures"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/oauth"
	"github.com/lancerinf/garmin-importer/pkg/integrations/garmin"
	"github.com/lancerinf/garmin-importer/pkg/retry"
)

// Store persists a serialized session next to the account credentials.
type Store interface {
	SaveSession(ctx context.Context, creds *credentials.Credentials, session []byte) error
}

type Options struct {
	APIURL string
	// LoginPolicy bounds the login attempts. Defaults to 3 attempts.
	LoginPolicy retry.Policy
	// HTTPTimeout bounds every Garmin request. Defaults to 30s.
	HTTPTimeout time.Duration
	// Transport is the base round tripper. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

type Manager struct {
	auth   garmin.Authenticator
	store  Store
	opts   Options
	logger *slog.Logger
}

func NewManager(auth garmin.Authenticator, store Store, opts Options, logger *slog.Logger) *Manager {
	if opts.LoginPolicy.MaxAttempts == 0 {
		opts.LoginPolicy.MaxAttempts = 3
	}
	if opts.HTTPTimeout == 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{auth: auth, store: store, opts: opts, logger: logger.With("component", "session")}
}

// Session is an authenticated Garmin Connect client plus the token it runs on.
type Session struct {
	API garmin.API

	source *oauth.SessionSource
	cached *oauth2.Token
}

// Export serializes the current token. changed is false when it equals the
// token the session was resumed from.
func (s *Session) Export() (data []byte, changed bool, err error) {
	if s.source == nil {
		return nil, false, nil
	}
	current := s.source.Current()
	if current == nil {
		return nil, false, nil
	}
	data, err = json.Marshal(current)
	if err != nil {
		return nil, false, fmt.Errorf("encode session: %w", err)
	}
	return data, !sameToken(current, s.cached), nil
}

func sameToken(a, b *oauth2.Token) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AccessToken == b.AccessToken &&
		a.RefreshToken == b.RefreshToken &&
		a.Expiry.Equal(b.Expiry)
}

// Establish resumes the cached session when it can be renewed, otherwise it
// logs in with the account password. Login failures are logged here and
// reported as ErrSession without the cause.
func (m *Manager) Establish(ctx context.Context, creds *credentials.Credentials) (*Session, error) {
	login := func(ctx context.Context) (*oauth2.Token, error) {
		return m.auth.Login(ctx, creds.Username, creds.Password)
	}

	cached, err := decodeCached(creds)
	if err != nil {
		m.logger.Warn("Ignoring unreadable cached session", "error", err)
	}

	if cached != nil {
		src := oauth.NewSessionSource(cached, m.auth.Refresh, login, m.logger)
		_, err := src.Renew(ctx)
		if err == nil {
			m.logger.Info("Resumed cached Garmin Connect session")
			return m.newSession(src, cached), nil
		}
		m.logger.Warn("Cached session could not be renewed, logging in", "error", err)
	}

	policy := m.opts.LoginPolicy
	policy.OnRetry = func(attempt int, err error) {
		m.logger.Warn("Login attempt failed", "attempt", attempt, "error", err)
	}
	tok, err := retry.Do(ctx, policy, login)
	if err != nil {
		m.logger.Error("Could not log in to Garmin Connect", "attempts", policy.MaxAttempts, "error", err)
		return nil, fmt.Errorf("%w: login failed for %s", failures.ErrSession, creds.Username)
	}

	m.logger.Info("Logged in to Garmin Connect")
	src := oauth.NewSessionSource(tok, m.auth.Refresh, login, m.logger)
	return m.newSession(src, cached), nil
}

func (m *Manager) newSession(src *oauth.SessionSource, cached *oauth2.Token) *Session {
	httpClient := oauth.NewClient(src, m.opts.Transport, m.opts.HTTPTimeout)
	return &Session{
		API:    garmin.NewClient(m.opts.APIURL, httpClient),
		source: src,
		cached: cached,
	}
}

// Save writes the session back when its token changed during the run.
func (m *Manager) Save(ctx context.Context, creds *credentials.Credentials, s *Session) error {
	if s == nil {
		return nil
	}
	data, changed, err := s.Export()
	if err != nil {
		return err
	}
	if !changed {
		m.logger.Debug("Session unchanged, not saving")
		return nil
	}
	if err := m.store.SaveSession(ctx, creds, data); err != nil {
		return err
	}
	m.logger.Info("Saved renewed Garmin Connect session")
	return nil
}

func decodeCached(creds *credentials.Credentials) (*oauth2.Token, error) {
	data, err := creds.SessionBytes()
	if err != nil || data == nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("cached session holds no token")
	}
	return &tok, nil
}
