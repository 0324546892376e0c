// Package execution records one document per function invocation so failed
// scheduler runs can be traced without digging through logs.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	shared "github.com/lancerinf/garmin-importer/pkg"
	"github.com/lancerinf/garmin-importer/pkg/types"
)

type ExecutionOptions struct {
	TestRunID   string
	TriggerType string
}

// now is replaced in tests.
var now = time.Now

// LogStart creates a STARTED record and returns its id. The id is returned
// even when the write fails so logs can still be correlated.
func LogStart(ctx context.Context, db shared.Database, service string, opts ExecutionOptions) (string, error) {
	execID := uuid.NewString()
	record := &types.ExecutionRecord{
		ExecutionID: execID,
		Service:     service,
		TriggerType: opts.TriggerType,
		TestRunID:   opts.TestRunID,
		Status:      types.ExecutionStatusStarted,
		StartTime:   now(),
	}
	if err := db.SetExecution(ctx, record); err != nil {
		return execID, fmt.Errorf("set execution: %w", err)
	}
	return execID, nil
}

func LogSuccess(ctx context.Context, db shared.Database, execID string, outputs interface{}) error {
	return LogExecutionStatus(ctx, db, execID, types.ExecutionStatusSuccess, outputs)
}

func LogFailure(ctx context.Context, db shared.Database, execID string, cause error, outputs interface{}) error {
	data, err := finishUpdate(types.ExecutionStatusFailed, outputs)
	if err != nil {
		return err
	}
	if cause != nil {
		data["error_message"] = cause.Error()
	}
	return db.UpdateExecution(ctx, execID, data)
}

func LogExecutionStatus(ctx context.Context, db shared.Database, execID string, status types.ExecutionStatus, outputs interface{}) error {
	data, err := finishUpdate(status, outputs)
	if err != nil {
		return err
	}
	return db.UpdateExecution(ctx, execID, data)
}

func finishUpdate(status types.ExecutionStatus, outputs interface{}) (map[string]interface{}, error) {
	data := map[string]interface{}{
		"status":   string(status),
		"end_time": now(),
	}
	if outputs != nil {
		b, err := json.Marshal(outputs)
		if err != nil {
			return nil, fmt.Errorf("marshal outputs: %w", err)
		}
		data["outputs_json"] = string(b)
	}
	return data, nil
}
