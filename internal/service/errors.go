package service

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-field-sync/models"
)

var (
	ErrVersionIsNotSpecified = errors.New("app version is not specified")

	// ErrDrainInProgress rejects a drain of a project whose queue is already
	// being replayed.
	ErrDrainInProgress = errors.New("queue drain already in progress")

	// ErrSyncInProgress rejects a sync of a project that is already syncing.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline is reported by sync runs attempted without connectivity.
	ErrOffline = errors.New("remote store is unreachable")

	// ErrProjectNotRegistered is reported when a project has no remote id yet.
	ErrProjectNotRegistered = errors.New("project is not registered with the remote store")

	// ErrImportNeedsConfirmation is returned when a payload belongs to another
	// project and no confirmation callback was supplied.
	ErrImportNeedsConfirmation = errors.New("payload belongs to another project, confirmation required")

	// ErrImportDeclined is returned when the operator refused a cross-project
	// import.
	ErrImportDeclined = errors.New("cross-project import declined")
)

// Validation failures of service input. They match [models.ErrValidation].
var (
	ErrEmptyProjectName   = fmt.Errorf("%w: project name is empty", models.ErrValidation)
	ErrEmptyFieldName     = fmt.Errorf("%w: field name is empty", models.ErrValidation)
	ErrUnknownMedium      = fmt.Errorf("%w: unknown transfer medium", models.ErrValidation)
	ErrUnknownResolution  = fmt.Errorf("%w: unknown conflict resolution", models.ErrValidation)
	ErrNoRemoteCopy       = fmt.Errorf("%w: no remote version retained", models.ErrValidation)
	ErrNotExportable      = fmt.Errorf("%w: only sealed submissions can be exported", models.ErrValidation)
	ErrSubmissionDeleted  = fmt.Errorf("%w: submission is deleted", models.ErrNotFound)
	ErrSubmissionConflict = fmt.Errorf("%w: remote version differs from local edits", models.ErrConflict)
)
