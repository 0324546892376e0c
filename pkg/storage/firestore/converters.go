package firestore

import (
	"strconv"
	"time"

	"github.com/lancerinf/garmin-importer/pkg/types"
)

// Archive record field names. Everything else in the document is a
// normalized activity attribute.
const (
	fieldUsername       = "username"
	fieldActivityTs     = "activityTs"
	fieldActivityID     = "activityId"
	fieldStartTimeLocal = "startTimeLocal"
	fieldZipObject      = "zipObject"
	fieldGpxObject      = "gpxObject"
	fieldArchivedAt     = "archivedAt"
	fieldBeginTimestamp = "beginTimestamp"
)

// ActivityTsField is the sort key of the activities collection.
const ActivityTsField = fieldActivityTs

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get int64 from map (Firestore returns integers as int64)
func getInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// --- ArchiveRecord Converters ---

func ArchiveRecordToFirestore(r *types.ArchiveRecord) map[string]interface{} {
	m := make(map[string]interface{}, len(r.Fields)+6)
	for k, v := range r.Fields {
		if k == fieldBeginTimestamp {
			continue
		}
		m[k] = v
	}

	m[fieldUsername] = r.Username
	m[fieldActivityTs] = r.ActivityTs
	if _, ok := m[fieldActivityID]; !ok && r.ActivityID != "" {
		m[fieldActivityID] = r.ActivityID
	}
	if _, ok := m[fieldStartTimeLocal]; !ok && r.StartTimeLocal != "" {
		m[fieldStartTimeLocal] = r.StartTimeLocal
	}
	m[fieldZipObject] = r.ZipObject
	m[fieldGpxObject] = r.GpxObject
	if !r.ArchivedAt.IsZero() {
		m[fieldArchivedAt] = r.ArchivedAt
	}
	return m
}

func FirestoreToArchiveRecord(m map[string]interface{}) *types.ArchiveRecord {
	r := &types.ArchiveRecord{
		Username:       getString(m, fieldUsername),
		ActivityTs:     getInt64(m, fieldActivityTs),
		StartTimeLocal: getString(m, fieldStartTimeLocal),
		ZipObject:      getString(m, fieldZipObject),
		GpxObject:      getString(m, fieldGpxObject),
		ArchivedAt:     getTime(m, fieldArchivedAt),
		Fields:         make(map[string]interface{}),
	}

	switch id := m[fieldActivityID].(type) {
	case string:
		r.ActivityID = id
	case int64:
		r.ActivityID = strconv.FormatInt(id, 10)
	}

	for k, v := range m {
		switch k {
		case fieldUsername, fieldActivityTs, fieldZipObject, fieldGpxObject, fieldArchivedAt:
			continue
		}
		r.Fields[k] = v
	}
	return r
}

// --- ExecutionRecord Converters ---

func ExecutionToFirestore(e *types.ExecutionRecord) map[string]interface{} {
	m := map[string]interface{}{
		"execution_id": e.ExecutionID,
		"service":      e.Service,
		"trigger_type": e.TriggerType,
		"status":       string(e.Status),
		"start_time":   e.StartTime,
	}
	if e.TestRunID != "" {
		m["test_run_id"] = e.TestRunID
	}
	if !e.EndTime.IsZero() {
		m["end_time"] = e.EndTime
	}
	if e.ErrorMessage != "" {
		m["error_message"] = e.ErrorMessage
	}
	if e.OutputsJSON != "" {
		m["outputs_json"] = e.OutputsJSON
	}
	return m
}

func FirestoreToExecution(m map[string]interface{}) *types.ExecutionRecord {
	return &types.ExecutionRecord{
		ExecutionID:  getString(m, "execution_id"),
		Service:      getString(m, "service"),
		TriggerType:  getString(m, "trigger_type"),
		TestRunID:    getString(m, "test_run_id"),
		Status:       types.ExecutionStatus(getString(m, "status")),
		StartTime:    getTime(m, "start_time"),
		EndTime:      getTime(m, "end_time"),
		ErrorMessage: getString(m, "error_message"),
		OutputsJSON:  getString(m, "outputs_json"),
	}
}
