package pubsub

import (
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	shared "github.com/lancerinf/garmin-importer/pkg"
	"github.com/lancerinf/garmin-importer/pkg/types"
)

// NewCloudEvent creates a standardized CloudEvent v1.0
func NewCloudEvent(source, eventType string, data interface{}) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSpecVersion("1.0")
	e.SetType(eventType)
	e.SetSource(source)

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, err
	}

	return e, nil
}

// NewArchivedEvent wraps an archived activity notification. The subject is
// the artifact prefix so subscribers can filter per account.
func NewArchivedEvent(payload *types.ActivityArchivedEvent) (cloudevents.Event, error) {
	e, err := NewCloudEvent(shared.CloudEventSourceImporter, shared.CloudEventTypeArchived, payload)
	if err != nil {
		return e, err
	}
	e.SetSubject(fmt.Sprintf("%s/%d", payload.Username, payload.ActivityTs))
	return e, nil
}
