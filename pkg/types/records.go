package types

import "time"

// ArchiveRecord is the stored metadata of one archived activity, keyed by
// (Username, ActivityTs). Fields holds every normalized attribute except
// beginTimestamp, which becomes ActivityTs.
type ArchiveRecord struct {
	Username       string
	ActivityTs     int64
	ActivityID     string
	StartTimeLocal string
	ZipObject      string
	GpxObject      string
	ArchivedAt     time.Time
	Fields         map[string]interface{}
}

// ExecutionStatus mirrors the lifecycle of one function invocation.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "STATUS_PENDING"
	ExecutionStatusStarted ExecutionStatus = "STATUS_STARTED"
	ExecutionStatusSuccess ExecutionStatus = "STATUS_SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "STATUS_FAILED"
	ExecutionStatusSkipped ExecutionStatus = "STATUS_SKIPPED"
	ExecutionStatusUnknown ExecutionStatus = "STATUS_UNKNOWN"
)

// ParseExecutionStatus accepts "SUCCESS" or "STATUS_SUCCESS" forms.
func ParseExecutionStatus(s string) (ExecutionStatus, bool) {
	for _, known := range []ExecutionStatus{
		ExecutionStatusPending, ExecutionStatusStarted, ExecutionStatusSuccess,
		ExecutionStatusFailed, ExecutionStatusSkipped,
	} {
		if s == string(known) || "STATUS_"+s == string(known) {
			return known, true
		}
	}
	return ExecutionStatusUnknown, false
}

// ExecutionRecord tracks one invocation of a function.
type ExecutionRecord struct {
	ExecutionID  string
	Service      string
	TriggerType  string
	TestRunID    string
	Status       ExecutionStatus
	StartTime    time.Time
	EndTime      time.Time
	ErrorMessage string
	OutputsJSON  string
}

// ActivityArchivedEvent is published after an activity has been archived.
type ActivityArchivedEvent struct {
	Username       string `json:"username"`
	ActivityID     string `json:"activityId"`
	ActivityTs     int64  `json:"activityTs"`
	StartTimeLocal string `json:"startTimeLocal,omitempty"`
	ZipObject      string `json:"zipObject"`
	GpxObject      string `json:"gpxObject"`
}
