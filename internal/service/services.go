package service

import (
	"errors"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/metrics"
	"github.com/MKhiriev/go-field-sync/internal/notify"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/utils"
)

// Dependencies are the collaborators shared by all services. Metrics and IDs
// fall back to a throwaway recorder and UUIDv7 ids when nil.
type Dependencies struct {
	Storages     *store.Storages
	Remote       adapter.RemoteAdapter
	Connectivity connectivity.Checker
	Notifier     notify.Notifier
	Metrics      *metrics.Recorder
	IDs          utils.IDGenerator

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

type Services struct {
	SubmissionService SubmissionService
	QueueService      QueueService
	SyncService       SyncService
	TransferService   TransferService
	ProjectService    ProjectService
	AppInfoService    AppInfoService
	SyncWatcher       SyncWatcher
}

var ErrMissingDependency = errors.New("missing service dependency")

func NewServices(deps Dependencies, cfg config.StructuredConfig, log *logger.Logger) (*Services, error) {
	if deps.Storages == nil || deps.Remote == nil || deps.Connectivity == nil {
		return nil, ErrMissingDependency
	}

	appInfo, err := NewAppInfoService(cfg.App, log)
	if err != nil {
		return nil, err
	}

	b := base{
		storages: deps.Storages,
		locks:    newKeyedMutex(),
		ids:      deps.IDs,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		now:      deps.Now,
		logger:   log,
	}
	if b.ids == nil {
		b.ids = utils.NewUUIDGenerator()
	}
	if b.notifier == nil {
		b.notifier = notify.NewLog(log)
	}
	if b.metrics == nil {
		b.metrics = metrics.Nop()
	}
	if b.now == nil {
		b.now = time.Now
	}

	r := newRetrier(cfg.Adapter, b.metrics)
	queue := newQueueService(b, deps.Remote, r, cfg.Storage)
	syncService := newSyncService(b, deps.Remote, r, deps.Connectivity, queue, cfg.Workers)

	return &Services{
		SubmissionService: newSubmissionService(b, cfg.App, deps.Connectivity, queue),
		QueueService:      queue,
		SyncService:       syncService,
		TransferService:   newTransferService(b, cfg.Transfer, cfg.App),
		ProjectService:    newProjectService(b),
		AppInfoService:    appInfo,
		SyncWatcher:       NewSyncWatcher(syncService, deps.Connectivity, cfg.Workers, log),
	}, nil
}
