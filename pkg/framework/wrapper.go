package framework

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/lancerinf/garmin-importer/pkg/bootstrap"
	"github.com/lancerinf/garmin-importer/pkg/execution"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/sentry"
	"github.com/lancerinf/garmin-importer/pkg/types"
)

// FrameworkContext contains dependencies injected by the framework
type FrameworkContext struct {
	Service     *bootstrap.Service
	Logger      *slog.Logger
	ExecutionID string
}

// HandlerFunc is the signature for a cloud function handler
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error)

// WrapCloudEvent wraps a handler with execution logging and error reporting.
// Handles both HTTP and Pub/Sub triggers. A handler may return a map with a
// "status" key (e.g. "SKIPPED") to override the SUCCESS status.
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) error {
		testRunID := extractTestRunID(e)

		triggerType := "pubsub"
		if e.Type() == "google.cloud.functions.http" {
			triggerType = "http"
		}

		logger := slog.New(bootstrap.NewHandler(os.Stdout, bootstrap.ParseLevel(os.Getenv("LOG_LEVEL")))).With("service", serviceName)
		defer sentry.RecoverAndCapture(logger)

		execID, logErr := execution.LogStart(ctx, svc.DB, serviceName, execution.ExecutionOptions{
			TestRunID:   testRunID,
			TriggerType: triggerType,
		})
		if logErr != nil {
			// Execution logging must never fail the run itself.
			logger.Error("Failed to log execution start", "error", logErr)
		}

		logger = logger.With("execution_id", execID)
		logger.Info("Function started", "trigger_type", triggerType)

		fwCtx := &FrameworkContext{
			Service:     svc,
			Logger:      logger,
			ExecutionID: execID,
		}

		outputs, handlerErr := handler(ctx, e, fwCtx)

		if handlerErr != nil {
			logger.Error("Function failed", "error", handlerErr)
			if logErr := execution.LogFailure(ctx, svc.DB, execID, handlerErr, outputs); logErr != nil {
				logger.Warn("Failed to log execution failure", "error", logErr)
			}
			sentry.Flush(2 * time.Second)
			return handlerErr
		}

		logger.Info("Function completed successfully")

		status := types.ExecutionStatusSuccess
		if outputsMap, ok := outputs.(map[string]interface{}); ok {
			if s, ok := outputsMap["status"].(string); ok && s != "" {
				parsed, known := types.ParseExecutionStatus(s)
				if !known {
					logger.Warn("Unknown custom status returned", "status", s)
				}
				status = parsed
			}
		}

		if logErr := execution.LogExecutionStatus(ctx, svc.DB, execID, status, outputs); logErr != nil {
			logger.Warn("Failed to log execution status", "error", logErr)
		}
		return nil
	}
}

// extractTestRunID reads test_run_id from Pub/Sub attributes or, for HTTP
// triggers, from the CloudEvent extensions.
func extractTestRunID(e event.Event) string {
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err == nil {
		if trid, ok := msg.Message.Attributes["test_run_id"]; ok {
			return trid
		}
	}

	extensions := e.Extensions()
	if trid, ok := extensions["test_run_id"].(string); ok {
		return trid
	}
	if trid, ok := extensions["testrunid"].(string); ok {
		return trid
	}
	return ""
}
