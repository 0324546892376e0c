package database

import (
	"context"
	"errors"
	"strconv"

	"cloud.google.com/go/firestore"

	storage "github.com/lancerinf/garmin-importer/pkg/storage/firestore"
	"github.com/lancerinf/garmin-importer/pkg/types"
)

var errNoUsername = errors.New("firestore: empty username")

// FirestoreAdapter provides database operations using Firestore
// It wraps our typed storage client
type FirestoreAdapter struct {
	storage *storage.Client // internal typed wrapper
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		storage: storage.NewClient(client),
	}
}

func (a *FirestoreAdapter) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	return a.storage.Executions().Doc(record.ExecutionID).Set(ctx, record)
}

func (a *FirestoreAdapter) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	return a.storage.Executions().Doc(id).Update(ctx, data)
}

// GetLatestArchivedActivity returns nil, nil when the user has no archived activities yet.
func (a *FirestoreAdapter) GetLatestArchivedActivity(ctx context.Context, username string) (*types.ArchiveRecord, error) {
	if username == "" {
		return nil, errNoUsername
	}
	return a.storage.Activities(username).Latest(ctx, storage.ActivityTsField)
}

func (a *FirestoreAdapter) ArchivedActivityExists(ctx context.Context, username string, activityTs int64) (bool, error) {
	if username == "" {
		return false, errNoUsername
	}
	return a.storage.Activities(username).Doc(activityDocID(activityTs)).Exists(ctx)
}

func (a *FirestoreAdapter) SetArchivedActivity(ctx context.Context, record *types.ArchiveRecord) error {
	if record.Username == "" {
		return errNoUsername
	}
	return a.storage.Activities(record.Username).Doc(activityDocID(record.ActivityTs)).Set(ctx, record)
}

func activityDocID(activityTs int64) string {
	return strconv.FormatInt(activityTs, 10)
}
