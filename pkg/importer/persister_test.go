package importer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancerinf/garmin-importer/pkg/domain/activity"
	"github.com/lancerinf/garmin-importer/pkg/failures"
	httputil "github.com/lancerinf/garmin-importer/pkg/infrastructure/http"
	"github.com/lancerinf/garmin-importer/pkg/retry"
	"github.com/lancerinf/garmin-importer/pkg/testing/mocks"
	"github.com/lancerinf/garmin-importer/pkg/types"
)

const (
	testUser   = "runner@example.com"
	testBucket = "garmin-artifacts"
	testTopic  = "topic-archived-activity"
)

var archivedAt = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

type persisterFixture struct {
	db    *mocks.MemoryDatabase
	store *mocks.MockBlobStore
	pub   *mocks.MockPublisher
	api   *fakeGarmin
	p     *Persister
}

func newPersisterFixture() *persisterFixture {
	f := &persisterFixture{
		db:    mocks.NewMemoryDatabase(),
		store: &mocks.MockBlobStore{},
		pub:   &mocks.MockPublisher{},
		api:   &fakeGarmin{},
	}
	f.p = NewPersister(f.db, f.store, f.pub, nil, PersistOptions{
		Bucket:         testBucket,
		Topic:          testTopic,
		DownloadPolicy: retry.Attempts(2),
		Now:            fixedClock(archivedAt),
	}, nil)
	return f
}

func normalized(id string, ts int64, local string) activity.NormalizedActivity {
	a := activity.NormalizedActivity{
		"activityId":          activity.String(id),
		"beginTimestamp":      activity.Int(ts),
		"activityTypeTypeKey": activity.String("running"),
		"distance":            activity.Float(5012.3),
	}
	if local != "" {
		a["startTimeLocal"] = activity.String(local)
	}
	return a
}

func TestPersistNewArchivesArtifactsThenMetadata(t *testing.T) {
	f := newPersisterFixture()

	got, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("123", 1700000000000, "2023-11-14 23:13:20"),
	})

	require.NoError(t, err)
	assert.Equal(t, []Persisted{{BeginTimestamp: 1700000000000, ActivityID: "123", StartTimeLocal: "2023-11-14 23:13:20"}}, got)
	assert.Equal(t, []string{"ORIGINAL:123", "GPX:123"}, f.api.downloads)

	assert.Equal(t, []byte("ORIGINAL-123"), f.store.Objects[testBucket+"/runner@example.com/1700000000000/123.zip"])
	assert.Equal(t, []byte("GPX-123"), f.store.Objects[testBucket+"/runner@example.com/1700000000000/123.gpx"])

	record := f.db.Activities[testUser][1700000000000]
	require.NotNil(t, record)
	assert.Equal(t, "123", record.ActivityID)
	assert.Equal(t, "runner@example.com/1700000000000/123.zip", record.ZipObject)
	assert.Equal(t, "runner@example.com/1700000000000/123.gpx", record.GpxObject)
	assert.Equal(t, archivedAt, record.ArchivedAt)
	assert.Equal(t, "running", record.Fields["activityTypeTypeKey"])
	assert.Equal(t, 5012.3, record.Fields["distance"])
}

func TestPersistNewPublishesArchivedEvent(t *testing.T) {
	f := newPersisterFixture()

	_, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("123", 1700000000000, ""),
	})

	require.NoError(t, err)
	require.Len(t, f.pub.Published, 1)
	e := f.pub.Published[0]
	assert.Equal(t, "runner@example.com/1700000000000", e.Subject())

	var payload types.ActivityArchivedEvent
	require.NoError(t, e.DataAs(&payload))
	assert.Equal(t, "gs://garmin-artifacts/runner@example.com/1700000000000/123.zip", payload.ZipObject)
	assert.Equal(t, int64(1700000000000), payload.ActivityTs)
}

func TestPersistNewIgnoresPublishFailures(t *testing.T) {
	f := newPersisterFixture()
	f.pub.PublishCloudEventFunc = func(context.Context, string, event.Event) (string, error) {
		return "", errBoom
	}

	got, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("1", 1700000000000, ""),
		normalized("2", 1700000100000, ""),
	})

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPersistNewSkipsArchivedActivities(t *testing.T) {
	f := newPersisterFixture()
	require.NoError(t, f.db.SetArchivedActivity(context.Background(), &types.ArchiveRecord{
		Username: testUser, ActivityTs: 1700000000000, ActivityID: "123", ZipObject: "old.zip",
	}))

	got, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("123", 1700000000000, ""),
	})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, f.api.downloads)
	assert.Empty(t, f.store.Objects)
	assert.Equal(t, "old.zip", f.db.Activities[testUser][1700000000000].ZipObject)
}

func TestPersistNewIsIdempotent(t *testing.T) {
	f := newPersisterFixture()
	batch := []activity.NormalizedActivity{normalized("1", 1700000000000, ""), normalized("2", 1700000100000, "")}

	first, err := f.p.PersistNew(context.Background(), f.api, testUser, batch)
	require.NoError(t, err)
	second, err := f.p.PersistNew(context.Background(), f.api, testUser, batch)
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Empty(t, second)
	assert.Len(t, f.api.downloads, 4)
	assert.Equal(t, 2, f.db.Count(testUser))
}

func TestPersistNewAbortsOnInvalidActivity(t *testing.T) {
	f := newPersisterFixture()
	invalid := activity.NormalizedActivity{"activityId": activity.String("999")}

	got, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("1", 1700000000000, "2023-11-14 23:13:20"),
		invalid,
		normalized("3", 1700000200000, ""),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, failures.ErrInvalidActivity))
	var invalidErr *failures.InvalidActivityError
	require.True(t, errors.As(err, &invalidErr))
	assert.Equal(t, "999", invalidErr.ActivityID)

	assert.Equal(t, []Persisted{{BeginTimestamp: 1700000000000, ActivityID: "1", StartTimeLocal: "2023-11-14 23:13:20"}}, got)
	assert.Equal(t, 1, f.db.Count(testUser))
	assert.NotContains(t, f.api.downloads, "ORIGINAL:3")
}

func TestPersistNewStopsWhenSecondUploadFails(t *testing.T) {
	f := newPersisterFixture()
	f.store.WriteFunc = func(_ context.Context, _, object string, _ []byte) error {
		if strings.HasPrefix(object, testUser+"/1700000100000/") {
			return errBoom
		}
		return nil
	}

	got, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("1", 1700000000000, "2023-11-14 23:13:20"),
		normalized("2", 1700000100000, "2023-11-15 23:15:00"),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, failures.ErrPersistence))
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, []Persisted{{BeginTimestamp: 1700000000000, ActivityID: "1", StartTimeLocal: "2023-11-14 23:13:20"}}, got)

	exists, err := f.db.ArchivedActivityExists(context.Background(), testUser, 1700000100000)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPersistNewWritesNoRecordWhenGPXUploadFails(t *testing.T) {
	f := newPersisterFixture()
	f.store.WriteFunc = func(_ context.Context, _, object string, _ []byte) error {
		if strings.HasSuffix(object, ".gpx") {
			return errBoom
		}
		return nil
	}

	got, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("1", 1700000000000, ""),
	})

	require.Error(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, f.db.Count(testUser))
}

func TestPersistNewFailsOnMetadataWrite(t *testing.T) {
	f := newPersisterFixture()
	f.db.SetArchivedActivityErr = errBoom

	got, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("1", 1700000000000, ""),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, failures.ErrPersistence))
	assert.Empty(t, got)
	assert.Empty(t, f.pub.Published)
}

func TestPersistNewRetriesDownloads(t *testing.T) {
	f := newPersisterFixture()
	f.api.downloadErr = map[string]error{"1": errBoom}

	_, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("1", 1700000000000, ""),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, failures.ErrPersistence))
	assert.Equal(t, []string{"ORIGINAL:1", "ORIGINAL:1"}, f.api.downloads)
	assert.Empty(t, f.store.Objects)
}

func TestPersistNewDoesNotRetryMissingDownloads(t *testing.T) {
	f := newPersisterFixture()
	f.api.downloadErr = map[string]error{"1": &httputil.HTTPError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}}

	_, err := f.p.PersistNew(context.Background(), f.api, testUser, []activity.NormalizedActivity{
		normalized("1", 1700000000000, ""),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, failures.ErrPersistence))
	assert.Equal(t, []string{"ORIGINAL:1"}, f.api.downloads)
}
