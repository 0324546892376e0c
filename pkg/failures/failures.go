// Package failures defines the error taxonomy of the importer.
//
// Every error that leaves a component is wrapped around one of the sentinels
// below so callers can classify it with errors.Is.
package failures

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsRetrieval means the account secret is missing or malformed.
	ErrCredentialsRetrieval = errors.New("credentials retrieval failed")

	// ErrSession means no authenticated session could be established after
	// the retry budget was exhausted.
	ErrSession = errors.New("garmin connect session could not be established")

	// ErrFetch means listing activities failed after retries.
	ErrFetch = errors.New("retrieving activities from garmin connect failed")

	// ErrInvalidActivity means a normalized activity lacks beginTimestamp or activityId.
	ErrInvalidActivity = errors.New("invalid activity")

	// ErrPersistence means an artifact or metadata write failed.
	ErrPersistence = errors.New("activity persistence failed")

	// ErrImporter is the generic failure surfaced to the scheduler.
	ErrImporter = errors.New("garmin importer failed")
)

// InvalidActivityError carries the identifying fields of a rejected activity.
type InvalidActivityError struct {
	ActivityID     string
	BeginTimestamp int64
	Reason         string
}

func (e *InvalidActivityError) Error() string {
	return fmt.Sprintf("invalid activity (activityId=%q, beginTimestamp=%d): %s", e.ActivityID, e.BeginTimestamp, e.Reason)
}

func (e *InvalidActivityError) Is(target error) bool {
	return target == ErrInvalidActivity
}

// Kind returns a short label for the taxonomy entry err belongs to.
// Used for metrics labels and execution outputs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCredentialsRetrieval):
		return "credentials"
	case errors.Is(err, ErrSession):
		return "session"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrInvalidActivity):
		return "invalid_activity"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unknown"
	}
}
