package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/lancerinf/garmin-importer/pkg/bootstrap"
	"github.com/lancerinf/garmin-importer/pkg/testing/mocks"
	"github.com/lancerinf/garmin-importer/pkg/types"
)

func schedulerEvent(t *testing.T, attrs map[string]string) event.Event {
	t.Helper()
	msg := types.PubSubMessage{}
	msg.Message.Data = []byte(`{}`)
	msg.Message.Attributes = attrs

	e := event.New()
	e.SetID("msg-1")
	e.SetType("google.cloud.pubsub.topic.v1.messagePublished")
	e.SetSource("//pubsub.googleapis.com/projects/p/topics/garmin-import-schedule")
	if err := e.SetData(event.ApplicationJSON, msg); err != nil {
		t.Fatalf("set data: %v", err)
	}
	return e
}

func lastStatus(db *mocks.MemoryDatabase, id string) string {
	updates := db.Updates[id]
	if len(updates) == 0 {
		return ""
	}
	s, _ := updates[len(updates)-1]["status"].(string)
	return s
}

func TestWrapCloudEvent(t *testing.T) {
	db := mocks.NewMemoryDatabase()
	svc := &bootstrap.Service{DB: db}

	var execID string
	handler := func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		if fwCtx.Service != svc {
			t.Error("Service not injected correctly")
		}
		if fwCtx.ExecutionID == "" {
			t.Error("ExecutionID not generated")
		}
		execID = fwCtx.ExecutionID
		return map[string]interface{}{"activities_persisted": 2}, nil
	}

	wrapped := WrapCloudEvent("test-service", svc, handler)
	if err := wrapped(context.Background(), schedulerEvent(t, map[string]string{"test_run_id": "tr-1"})); err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	rec := db.Executions[execID]
	if rec == nil {
		t.Fatal("execution record not written")
	}
	if rec.Status != types.ExecutionStatusStarted {
		t.Errorf("Expected started record, got %v", rec.Status)
	}
	if rec.TestRunID != "tr-1" {
		t.Errorf("Expected test run id tr-1, got %q", rec.TestRunID)
	}
	if got := lastStatus(db, execID); got != "STATUS_SUCCESS" {
		t.Errorf("Expected STATUS_SUCCESS, got %q", got)
	}
}

func TestWrapCloudEvent_CustomStatus(t *testing.T) {
	db := mocks.NewMemoryDatabase()
	svc := &bootstrap.Service{DB: db}

	var execID string
	handler := func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		execID = fwCtx.ExecutionID
		return map[string]interface{}{"status": "SKIPPED"}, nil
	}

	if err := WrapCloudEvent("test-service", svc, handler)(context.Background(), schedulerEvent(t, nil)); err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if got := lastStatus(db, execID); got != "STATUS_SKIPPED" {
		t.Errorf("Expected STATUS_SKIPPED, got %q", got)
	}
}

func TestWrapCloudEvent_Failure(t *testing.T) {
	db := mocks.NewMemoryDatabase()
	svc := &bootstrap.Service{DB: db}

	var execID string
	handler := func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		execID = fwCtx.ExecutionID
		return nil, errors.New("simulated error")
	}

	err := WrapCloudEvent("test-service", svc, handler)(context.Background(), event.New())
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if got := lastStatus(db, execID); got != "STATUS_FAILED" {
		t.Errorf("Expected STATUS_FAILED, got %q", got)
	}
	if msg := db.Updates[execID][0]["error_message"]; msg != "simulated error" {
		t.Errorf("Expected error message to be stored, got %v", msg)
	}
}

func TestWrapCloudEvent_ExecutionLogFailureDoesNotFailRun(t *testing.T) {
	db := &mocks.MockDatabase{
		SetExecutionFunc: func(context.Context, *types.ExecutionRecord) error { return errors.New("firestore down") },
	}
	svc := &bootstrap.Service{DB: db}

	called := false
	handler := func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		called = true
		return nil, nil
	}

	if err := WrapCloudEvent("test-service", svc, handler)(context.Background(), event.New()); err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if !called {
		t.Error("handler not called")
	}
}

func TestExtractTestRunIDFromExtension(t *testing.T) {
	e := event.New()
	e.SetExtension("testrunid", "tr-2")
	if got := extractTestRunID(e); got != "tr-2" {
		t.Errorf("Expected tr-2, got %q", got)
	}
}
