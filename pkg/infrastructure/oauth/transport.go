package oauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that authenticates all requests
// using the provided TokenSource.
type Transport struct {
	// Source supplies the token to be used.
	Source TokenSource

	// Base is the base RoundTripper used to make the actual HTTP requests.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	token, err := t.Source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: cannot get token: %w", err)
	}

	req2 := cloneRequest(req)
	token.SetAuthHeader(req2)

	resp, err := base.RoundTrip(req2)
	if err != nil {
		return nil, err
	}

	// One reactive retry on 401, only for requests that can be replayed.
	if resp.StatusCode == http.StatusUnauthorized && (req.Body == nil || req.GetBody != nil) {
		resp.Body.Close()

		slog.Warn("Got 401 Unauthorized, attempting force refresh", "url", req.URL.Redacted())

		token, err = t.Source.ForceRefresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("oauth: force refresh failed: %w", err)
		}

		req3 := cloneRequest(req)
		if req.GetBody != nil {
			if req3.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
		token.SetAuthHeader(req3)
		return base.RoundTrip(req3)
	}

	return resp, nil
}

// cloneRequest returns a clone of the provided *http.Request.
// The clone is a shallow copy of the struct and its Header map.
func cloneRequest(r *http.Request) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	r2.Header = make(http.Header, len(r.Header))
	for k, s := range r.Header {
		r2.Header[k] = append([]string(nil), s...)
	}
	return r2
}

// NewClient returns an HTTP client that authenticates with source.
func NewClient(source TokenSource, base http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &Transport{Source: source, Base: base},
		Timeout:   timeout,
	}
}
