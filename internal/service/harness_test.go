package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/metrics"
	"github.com/MKhiriev/go-field-sync/internal/notify"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
)

// ── fakeRemote ──

// fakeRemote is an in-memory remote record store shared by test devices.
type fakeRemote struct {
	mu       sync.Mutex
	projects map[string]string
	records  map[string]map[string]remoteEntry
	next     int

	// fail maps a record id to the error Submit or Delete returns for it.
	fail map[string]error
	// fetchErr is returned by every Fetch while set.
	fetchErr error

	submitted []string
	deleted   []string
	conflicts int
}

type remoteEntry struct {
	record    models.Record
	changedAt time.Time
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		projects: make(map[string]string),
		records:  make(map[string]map[string]remoteEntry),
		fail:     make(map[string]error),
	}
}

// Submit refuses a record whose base is not the version it currently
// stores, the way a remote store honoring If-Match does.
func (f *fakeRemote) Submit(ctx context.Context, rid string, record models.Record, base time.Time) (models.RemoteAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return models.RemoteAck{}, fmt.Errorf("%w: %w", models.ErrNetwork, err)
	}
	if err := f.fail[record.ID]; err != nil {
		return models.RemoteAck{}, err
	}
	if _, ok := f.records[rid]; !ok {
		return models.RemoteAck{}, fmt.Errorf("project %s %w", rid, models.ErrNotFound)
	}
	if current, ok := f.records[rid][record.ID]; ok && !base.IsZero() && !current.record.UpdatedAt.Equal(base) {
		f.conflicts++
		return models.RemoteAck{}, fmt.Errorf("%w: record %s changed remotely", models.ErrConflict, record.ID)
	}

	now := time.Now().UTC()
	f.records[rid][record.ID] = remoteEntry{record: record.Clone(), changedAt: now}
	f.submitted = append(f.submitted, record.ID)
	return models.RemoteAck{ID: record.ID, ReceivedAt: now}, nil
}

// Fetch filters on the remote's own change times and reports its clock as
// the cursor.
func (f *fakeRemote) Fetch(_ context.Context, rid string, since time.Time) (models.RemoteBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return models.RemoteBatch{}, f.fetchErr
	}

	batch := models.RemoteBatch{Cursor: time.Now().UTC()}
	for _, e := range f.records[rid] {
		if since.IsZero() || e.changedAt.After(since) {
			batch.Records = append(batch.Records, e.record.Clone())
		}
	}
	sort.Slice(batch.Records, func(i, j int) bool { return batch.Records[i].ID < batch.Records[j].ID })
	return batch, nil
}

func (f *fakeRemote) RegisterProject(_ context.Context, def models.ProjectDefinition) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if def.RemoteID != "" {
		f.projects[def.RemoteID] = def.Name
		return def.RemoteID, nil
	}

	f.next++
	rid := fmt.Sprintf("remote-%d", f.next)
	f.projects[rid] = def.Name
	f.records[rid] = make(map[string]remoteEntry)
	return rid, nil
}

func (f *fakeRemote) Delete(_ context.Context, rid, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[recordID]; err != nil {
		return err
	}
	if _, ok := f.records[rid][recordID]; !ok {
		return fmt.Errorf("record %w", models.ErrNotFound)
	}
	delete(f.records[rid], recordID)
	f.deleted = append(f.deleted, recordID)
	return nil
}

// put stores a record as if another device had submitted it.
func (f *fakeRemote) put(rid string, record models.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rid][record.ID] = remoteEntry{record: record.Clone(), changedAt: time.Now().UTC()}
}

func (f *fakeRemote) get(rid, id string) (models.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.records[rid][id]
	return e.record, ok
}

func (f *fakeRemote) setFail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, id)
		return
	}
	f.fail[id] = err
}

func (f *fakeRemote) submittedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

func (f *fakeRemote) conflictCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conflicts
}

// ── device harness ──

// device is one agent with its own database, connectivity and inbox.
type device struct {
	t        *testing.T
	storages *store.Storages
	online   *connectivity.Manual
	inbox    *notify.Inbox
	cfg      config.StructuredConfig
	svc      *Services
}

// deviceSetup is what a deviceOption may change before services are built.
type deviceSetup struct {
	cfg config.StructuredConfig
	now func() time.Time
}

type deviceOption func(*deviceSetup)

func withDeviceID(id string) deviceOption {
	return func(s *deviceSetup) { s.cfg.App.DeviceID = id }
}

func withQuota(quota int64, ratio float64) deviceOption {
	return func(s *deviceSetup) {
		s.cfg.Storage.QuotaBytes = quota
		s.cfg.Storage.WarnRatio = ratio
	}
}

// withClockSkew runs the device clock ahead of real time by skew.
func withClockSkew(skew time.Duration) deviceOption {
	return func(s *deviceSetup) {
		s.now = func() time.Time { return time.Now().Add(skew) }
	}
}

func testConfig(t *testing.T) config.StructuredConfig {
	dir := t.TempDir()
	return config.StructuredConfig{
		App: config.App{
			AgentID:   "agent-1",
			AgentName: "Amina Phiri",
			AgentCode: "AP01",
			DeviceID:  "device-A",
			Version:   "test",
		},
		Storage: config.Storage{
			DB:         config.DB{Path: filepath.Join(dir, "agent.db"), BusyTimeout: 2 * time.Second},
			QuotaBytes: 1 << 40,
			WarnRatio:  0.9,
		},
		Adapter: config.Adapter{
			RequestTimeout: time.Second,
			RetryAttempts:  2,
			RetryBackoff:   time.Millisecond,
		},
		Workers: config.Workers{
			SyncInterval:     time.Hour,
			ConnectivityPoll: 5 * time.Millisecond,
			Debounce:         10 * time.Millisecond,
			MaxParallel:      2,
		},
		Transfer: config.Transfer{
			Dir:          filepath.Join(dir, "transfer"),
			MaxFileBytes: 1 << 20,
			QRSize:       512,
			ScanInterval: time.Millisecond,
		},
	}
}

func newDevice(t *testing.T, remote adapter.RemoteAdapter, opts ...deviceOption) *device {
	t.Helper()
	return newDeviceWith(t, remote, nil, opts...)
}

// newDeviceWith uses notifier instead of the in-memory inbox when set.
func newDeviceWith(t *testing.T, remote adapter.RemoteAdapter, notifier notify.Notifier, opts ...deviceOption) *device {
	t.Helper()

	setup := deviceSetup{cfg: testConfig(t), now: time.Now}
	for _, opt := range opts {
		opt(&setup)
	}
	cfg := setup.cfg

	storages, err := store.NewStorages(context.Background(), cfg.Storage, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storages.Close() })

	ids := utils.NewUUIDGenerator()
	d := &device{
		t:        t,
		storages: storages,
		online:   connectivity.NewManual(true),
		inbox:    notify.NewInbox(100, ids),
		cfg:      cfg,
	}

	if notifier == nil {
		notifier = d.inbox
	}

	d.svc, err = NewServices(Dependencies{
		Storages:     storages,
		Remote:       remote,
		Connectivity: d.online,
		Notifier:     notifier,
		Metrics:      metrics.Nop(),
		IDs:          ids,
		Now:          setup.now,
	}, cfg, logger.Nop())
	require.NoError(t, err)

	return d
}

func (d *device) project(name string) models.Project {
	d.t.Helper()
	p, err := d.svc.ProjectService.Create(context.Background(), name, nil)
	require.NoError(d.t, err)
	return p
}

func (d *device) registered(name string) models.Project {
	d.t.Helper()
	p := d.project(name)
	p, err := d.svc.SyncService.RegisterProject(context.Background(), p.ID)
	require.NoError(d.t, err)
	return p
}

// adopt stores a project known from another device under the same ids.
func (d *device) adopt(p models.Project) {
	d.t.Helper()
	p.LastSyncedAt = nil
	require.NoError(d.t, d.storages.Projects.CreateProject(context.Background(), p))
}

func (d *device) create(projectID string, fields ...models.Field) models.Submission {
	d.t.Helper()
	sub, err := d.svc.SubmissionService.Create(context.Background(), projectID, models.Fields(fields...), nil)
	require.NoError(d.t, err)
	return sub
}

func (d *device) sealed(projectID string, fields ...models.Field) models.Submission {
	d.t.Helper()
	sub := d.create(projectID, fields...)
	sub, err := d.svc.SubmissionService.Seal(context.Background(), sub.ID)
	require.NoError(d.t, err)
	return sub
}

func (d *device) get(id string) models.Submission {
	d.t.Helper()
	sub, err := d.storages.Submissions.GetSubmission(context.Background(), id)
	require.NoError(d.t, err)
	return sub
}

// put writes sub directly, bypassing the lifecycle rules.
func (d *device) put(sub models.Submission) {
	d.t.Helper()
	require.NoError(d.t, d.storages.Submissions.UpdateSubmission(context.Background(), sub))
}

func (d *device) intents(projectID string) []models.MutationIntent {
	d.t.Helper()
	list, err := d.svc.QueueService.Pending(context.Background(), projectID)
	require.NoError(d.t, err)
	return list
}

func field(name, value string) models.Field {
	return models.Field{Name: name, Value: models.StringValue(value)}
}

func intField(name string, n int64) models.Field {
	return models.Field{Name: name, Value: models.IntValue(n)}
}
