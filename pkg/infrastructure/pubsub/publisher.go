package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/cloudevents/sdk-go/v2/event"
)

// PubSubAdapter provides message publishing using Google Cloud Pub/Sub
type PubSubAdapter struct {
	Client *pubsub.Client
}

// PublishCloudEvent sends the event in structured mode: the JSON envelope is
// the message body and the ce-* attributes allow subscription filters.
func (a *PubSubAdapter) PublishCloudEvent(ctx context.Context, topicID string, e event.Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}

	topic := a.Client.Topic(topicID)
	res := topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes(e),
	})
	return res.Get(ctx)
}

func attributes(e event.Event) map[string]string {
	attrs := map[string]string{
		"ce-id":          e.ID(),
		"ce-type":        e.Type(),
		"ce-source":      e.Source(),
		"ce-specversion": e.SpecVersion(),
	}
	if s := e.Subject(); s != "" {
		attrs["ce-subject"] = s
	}
	return attrs
}

// LogPublisher is a mock publisher for local development
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) PublishCloudEvent(ctx context.Context, topicID string, e event.Event) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("[LogPublisher] mock publish", "topic", topicID, "type", e.Type(), "subject", e.Subject(), "data", string(e.Data()))
	return "mock-msg-id", nil
}
