package activity

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/lancerinf/garmin-importer/pkg/failures"
)

// Field names the importer relies on.
const (
	FieldActivityID     = "activityId"
	FieldBeginTimestamp = "beginTimestamp"
	FieldStartTimeLocal = "startTimeLocal"
)

// NormalizedActivity is a flat map of scalar fields produced by Normalizer.
type NormalizedActivity map[string]Value

// BeginTimestamp returns the activity start in epoch milliseconds. ok is false
// when the field is absent, not numeric, or zero.
func (a NormalizedActivity) BeginTimestamp() (ts int64, ok bool) {
	switch v := a[FieldBeginTimestamp].(type) {
	case Int:
		ts = int64(v)
	case Float:
		f := float64(v)
		// -2^63 is exact as a float64; 2^63 is the first value past MaxInt64
		if f < math.MinInt64 || f >= -math.MinInt64 || math.Trunc(f) != f {
			return 0, false
		}
		ts = int64(f)
	default:
		return 0, false
	}
	return ts, ts != 0
}

// ActivityID returns the service-assigned id as a string. Garmin sends it as a
// number; fixtures and older exports use strings.
func (a NormalizedActivity) ActivityID() (id string, ok bool) {
	switch v := a[FieldActivityID].(type) {
	case String:
		id = string(v)
	case Int:
		if v != 0 {
			id = strconv.FormatInt(int64(v), 10)
		}
	case Float:
		if v != 0 {
			id = strconv.FormatFloat(float64(v), 'f', -1, 64)
		}
	}
	return id, id != ""
}

// StartTimeLocal returns the local start time string, or "" when absent.
func (a NormalizedActivity) StartTimeLocal() string {
	if v, ok := a[FieldStartTimeLocal].(String); ok {
		return string(v)
	}
	return ""
}

// Validate rejects activities that cannot be keyed in the archive.
func (a NormalizedActivity) Validate() error {
	id, hasID := a.ActivityID()
	ts, hasTs := a.BeginTimestamp()

	switch {
	case !hasTs && !hasID:
		return &failures.InvalidActivityError{Reason: "missing beginTimestamp and activityId"}
	case !hasTs:
		return &failures.InvalidActivityError{ActivityID: id, Reason: "missing beginTimestamp"}
	case !hasID:
		return &failures.InvalidActivityError{BeginTimestamp: ts, Reason: "missing activityId"}
	}
	return nil
}

// Native returns the fields as plain Go values.
func (a NormalizedActivity) Native() map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		if n := Native(v); n != nil {
			out[k] = n
		}
	}
	return out
}

func (a NormalizedActivity) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Native())
}
