package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/lancerinf/garmin-importer/pkg/types"
)

// --- Mock Database ---
type MockDatabase struct {
	SetExecutionFunc              func(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecutionFunc           func(ctx context.Context, id string, data map[string]interface{}) error
	GetLatestArchivedActivityFunc func(ctx context.Context, username string) (*types.ArchiveRecord, error)
	ArchivedActivityExistsFunc    func(ctx context.Context, username string, activityTs int64) (bool, error)
	SetArchivedActivityFunc       func(ctx context.Context, record *types.ArchiveRecord) error
}

func (m *MockDatabase) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	if m.SetExecutionFunc != nil {
		return m.SetExecutionFunc(ctx, record)
	}
	return nil
}
func (m *MockDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateExecutionFunc != nil {
		return m.UpdateExecutionFunc(ctx, id, data)
	}
	return nil
}
func (m *MockDatabase) GetLatestArchivedActivity(ctx context.Context, username string) (*types.ArchiveRecord, error) {
	if m.GetLatestArchivedActivityFunc != nil {
		return m.GetLatestArchivedActivityFunc(ctx, username)
	}
	return nil, nil
}
func (m *MockDatabase) ArchivedActivityExists(ctx context.Context, username string, activityTs int64) (bool, error) {
	if m.ArchivedActivityExistsFunc != nil {
		return m.ArchivedActivityExistsFunc(ctx, username, activityTs)
	}
	return false, nil
}
func (m *MockDatabase) SetArchivedActivity(ctx context.Context, record *types.ArchiveRecord) error {
	if m.SetArchivedActivityFunc != nil {
		return m.SetArchivedActivityFunc(ctx, record)
	}
	return nil
}

// --- In-memory Database ---

// MemoryDatabase is a Database backed by maps, for tests that need state
// across calls (dedupe, watermark).
type MemoryDatabase struct {
	mu         sync.Mutex
	Activities map[string]map[int64]*types.ArchiveRecord
	Executions map[string]*types.ExecutionRecord
	Updates    map[string][]map[string]interface{}

	// SetArchivedActivityErr, when set, fails every metadata write.
	SetArchivedActivityErr error
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		Activities: make(map[string]map[int64]*types.ArchiveRecord),
		Executions: make(map[string]*types.ExecutionRecord),
		Updates:    make(map[string][]map[string]interface{}),
	}
}

func (m *MemoryDatabase) SetExecution(_ context.Context, record *types.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Executions[record.ExecutionID] = record
	return nil
}

func (m *MemoryDatabase) UpdateExecution(_ context.Context, id string, data map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates[id] = append(m.Updates[id], data)
	return nil
}

func (m *MemoryDatabase) GetLatestArchivedActivity(_ context.Context, username string) (*types.ArchiveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *types.ArchiveRecord
	for ts, r := range m.Activities[username] {
		if latest == nil || ts > latest.ActivityTs {
			latest = r
		}
	}
	return latest, nil
}

func (m *MemoryDatabase) ArchivedActivityExists(_ context.Context, username string, activityTs int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Activities[username][activityTs]
	return ok, nil
}

func (m *MemoryDatabase) SetArchivedActivity(_ context.Context, record *types.ArchiveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetArchivedActivityErr != nil {
		return m.SetArchivedActivityErr
	}
	if m.Activities[record.Username] == nil {
		m.Activities[record.Username] = make(map[int64]*types.ArchiveRecord)
	}
	m.Activities[record.Username][record.ActivityTs] = record
	return nil
}

// Count returns how many records are stored for username.
func (m *MemoryDatabase) Count(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Activities[username])
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)

	mu        sync.Mutex
	Published []event.Event
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	m.mu.Lock()
	m.Published = append(m.Published, e)
	m.mu.Unlock()
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---

// MockBlobStore keeps written objects in memory. WriteFunc, when set,
// decides the outcome of each write before it is stored.
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)

	mu      sync.Mutex
	Objects map[string][]byte
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, bucket, object, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[bucket+"/"+object] = data
	return nil
}

func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.Objects[bucket+"/"+object]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("object %s/%s not found", bucket, object)
}

// --- Mock Secrets ---
type MockSecretStore struct {
	GetSecretFunc        func(ctx context.Context, projectID, name string) (string, error)
	AddSecretVersionFunc func(ctx context.Context, projectID, name, value string) error

	mu       sync.Mutex
	Versions []string
}

func (m *MockSecretStore) GetSecret(ctx context.Context, projectID, name string) (string, error) {
	if m.GetSecretFunc != nil {
		return m.GetSecretFunc(ctx, projectID, name)
	}
	return "", fmt.Errorf("secret %s not found", name)
}

func (m *MockSecretStore) AddSecretVersion(ctx context.Context, projectID, name, value string) error {
	m.mu.Lock()
	m.Versions = append(m.Versions, value)
	m.mu.Unlock()
	if m.AddSecretVersionFunc != nil {
		return m.AddSecretVersionFunc(ctx, projectID, name, value)
	}
	return nil
}
