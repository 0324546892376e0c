package firestore

import (
	"net/url"
	"strings"

	"cloud.google.com/go/firestore"

	shared "github.com/lancerinf/garmin-importer/pkg"
	"github.com/lancerinf/garmin-importer/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Executions is a top-level collection: executions/{executionId}
func (c *Client) Executions() *Collection[types.ExecutionRecord] {
	return &Collection[types.ExecutionRecord]{
		Ref:           c.fs.Collection(shared.CollectionExecutions),
		ToFirestore:   ExecutionToFirestore,
		FromFirestore: FirestoreToExecution,
	}
}

// Activities are sub-collections of accounts: garmin_accounts/{username}/activities/{activityTs}
// The username is the partition key, the document id is the activity timestamp.
// Usernames are path-escaped so that "/" cannot add path segments.
func (c *Client) Activities(username string) *Collection[types.ArchiveRecord] {
	return &Collection[types.ArchiveRecord]{
		Ref:           c.fs.Collection(shared.CollectionAccounts).Doc(accountDocID(username)).Collection(shared.CollectionActivities),
		ToFirestore:   ArchiveRecordToFirestore,
		FromFirestore: FirestoreToArchiveRecord,
	}
}

// accountDocID maps a username to its garmin_accounts document id. The
// username must not be empty.
func accountDocID(username string) string {
	id := url.PathEscape(username)
	if strings.Trim(id, ".") == "" {
		// "." and ".." are reserved ids
		id = strings.ReplaceAll(id, ".", "%2E")
	}
	return id
}
