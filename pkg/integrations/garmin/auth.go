package garmin

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// Authenticator obtains and renews Garmin Connect session tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*oauth2.Token, error)
	Refresh(ctx context.Context, expired *oauth2.Token) (*oauth2.Token, error)
}

// PasswordGrant authenticates with the OAuth2 resource owner password grant.
type PasswordGrant struct {
	Config *oauth2.Config
	// HTTPClient is used for token requests. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

func NewPasswordGrant(tokenURL, clientID, clientSecret string, client *http.Client) *PasswordGrant {
	return &PasswordGrant{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		HTTPClient: client,
	}
}

func (g *PasswordGrant) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	tok, err := g.Config.PasswordCredentialsToken(g.withClient(ctx), username, password)
	if err != nil {
		return nil, classify("login", err)
	}
	return tok, nil
}

func (g *PasswordGrant) Refresh(ctx context.Context, expired *oauth2.Token) (*oauth2.Token, error) {
	tok, err := g.Config.TokenSource(g.withClient(ctx), expired).Token()
	if err != nil {
		return nil, classify("refresh", err)
	}
	return tok, nil
}

func (g *PasswordGrant) withClient(ctx context.Context) context.Context {
	if g.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
}
