package shared

import (
	"context"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/lancerinf/garmin-importer/pkg/types"
)

// --- Persistence Interfaces ---

type Database interface {
	SetExecution(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error

	// Archived activities, keyed by (username, activityTs)
	GetLatestArchivedActivity(ctx context.Context, username string) (*types.ArchiveRecord, error)
	ArchivedActivityExists(ctx context.Context, username string, activityTs int64) (bool, error)
	SetArchivedActivity(ctx context.Context, record *types.ArchiveRecord) error
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// --- Secret Interfaces ---

type SecretStore interface {
	GetSecret(ctx context.Context, projectID, name string) (string, error)
	AddSecretVersion(ctx context.Context, projectID, name, value string) error
}
