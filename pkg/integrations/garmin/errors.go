package garmin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"

	httputil "github.com/lancerinf/garmin-importer/pkg/infrastructure/http"
)

var (
	// ErrConnection covers transport failures and 5xx responses.
	ErrConnection = errors.New("garmin: connection error")
	// ErrTooManyRequests is returned on HTTP 429.
	ErrTooManyRequests = errors.New("garmin: too many requests")
	// ErrAuthentication is returned on HTTP 401/403 and rejected logins.
	ErrAuthentication = errors.New("garmin: authentication error")
)

// classify wraps err with the sentinel matching its HTTP status. Context
// cancellation passes through unchanged; timeouts are connection errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
	}

	status := httputil.StatusCode(err)
	var retrieveErr *oauth2.RetrieveError
	if status == 0 && errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", op, ErrAuthentication, err)
	case status == http.StatusBadRequest && retrieveErr != nil:
		// invalid_grant: the password was rejected
		return fmt.Errorf("%s: %w: %w", op, ErrAuthentication, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %w", op, ErrTooManyRequests, err)
	case status == 0 || status >= 500:
		return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Retryable reports whether repeating a failed call may succeed: transport
// errors, timeouts, 429 and 5xx. Rejected credentials and other 4xx are final.
func Retryable(err error) bool {
	var httpErr *httputil.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return !errors.Is(err, ErrAuthentication)
}
