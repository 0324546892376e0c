// Package credentials loads the Garmin account from Secret Manager and
// writes renewed sessions back to it.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	shared "github.com/lancerinf/garmin-importer/pkg"
	"github.com/lancerinf/garmin-importer/pkg/failures"
)

// Credentials of the single imported account. Session is the serialized
// session token, absent on the first run.
type Credentials struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Session  json.RawMessage `json:"session,omitempty"`
}

// HasSession reports whether a cached session is present.
func (c *Credentials) HasSession() bool {
	s := bytes.TrimSpace(c.Session)
	return len(s) > 0 && !bytes.Equal(s, []byte("null")) && !bytes.Equal(s, []byte(`""`))
}

// SessionBytes returns the session document. Older secrets stored it as a
// JSON string holding the document; both forms are accepted.
func (c *Credentials) SessionBytes() ([]byte, error) {
	if !c.HasSession() {
		return nil, nil
	}
	s := bytes.TrimSpace(c.Session)
	if s[0] != '"' {
		return s, nil
	}
	var inner string
	if err := json.Unmarshal(s, &inner); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return []byte(inner), nil
}

// LogValue keeps the password and session out of logs.
func (c *Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.Bool("has_session", c.HasSession()),
	)
}

type Provider struct {
	secrets   shared.SecretStore
	projectID string
	name      string
}

func NewProvider(secrets shared.SecretStore, projectID, secretName string) *Provider {
	return &Provider{secrets: secrets, projectID: projectID, name: secretName}
}

// Retrieve reads the latest secret version. Any failure, including a
// missing username or password, is reported as ErrCredentialsRetrieval.
func (p *Provider) Retrieve(ctx context.Context) (*Credentials, error) {
	raw, err := p.secrets.GetSecret(ctx, p.projectID, p.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", failures.ErrCredentialsRetrieval, err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("%w: secret %s is not valid JSON", failures.ErrCredentialsRetrieval, p.name)
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: secret %s lacks username or password", failures.ErrCredentialsRetrieval, p.name)
	}
	return &creds, nil
}

// SaveSession stores session alongside the unchanged username and password
// as a new secret version.
func (p *Provider) SaveSession(ctx context.Context, creds *Credentials, session []byte) error {
	updated := Credentials{
		Username: creds.Username,
		Password: creds.Password,
		Session:  json.RawMessage(session),
	}
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := p.secrets.AddSecretVersion(ctx, p.projectID, p.name, string(data)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	creds.Session = updated.Session
	return nil
}
