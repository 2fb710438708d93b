package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/notify"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/transfer"
	"github.com/MKhiriev/go-field-sync/models"
)

// Medium is the carrier of an exported payload.
type Medium string

const (
	MediumFile Medium = "file"
	MediumQR   Medium = "qr"
)

func ParseMedium(s string) (Medium, error) {
	switch m := Medium(strings.ToLower(s)); m {
	case MediumFile, MediumQR:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMedium, s)
	}
}

// ExportResult describes a written payload. Image holds the PNG of the code
// for the QR medium.
type ExportResult struct {
	Medium   Medium `json:"medium"`
	Path     string `json:"path"`
	FileName string `json:"fileName"`
	Count    int    `json:"count"`
	Size     int    `json:"size"`
	Payload  []byte `json:"-"`
	Image    []byte `json:"-"`
}

type transferService struct {
	base

	cfg           config.Transfer
	activeProject string
}

func newTransferService(b base, cfg config.Transfer, app config.App) *transferService {
	return &transferService{base: b, cfg: cfg, activeProject: app.ActiveProject}
}

func (t *transferService) Export(ctx context.Context, projectID string, ids []string, medium Medium) (ExportResult, error) {
	start := time.Now()
	result, err := t.export(ctx, projectID, ids, medium)
	t.observe(ctx, "transfer.export", start, err)
	if err != nil {
		t.log(ctx).Err(err).Str("func", "transferService.Export").Str("project_id", projectID).Msg("export failed")
		t.notifier.Notify(ctx, notify.FromError("transfer export", err))
		return ExportResult{}, err
	}
	return result, nil
}

func (t *transferService) export(ctx context.Context, projectID string, ids []string, medium Medium) (ExportResult, error) {
	if _, err := ParseMedium(string(medium)); err != nil {
		return ExportResult{}, err
	}

	project, err := t.storages.Projects.GetProject(ctx, projectID)
	if err != nil {
		return ExportResult{}, err
	}

	selection, err := t.selection(ctx, projectID, ids)
	if err != nil {
		return ExportResult{}, err
	}

	payload, err := transfer.Build(project, selection, t.clock())
	if err != nil {
		return ExportResult{}, err
	}
	raw, err := transfer.Encode(payload)
	if err != nil {
		return ExportResult{}, err
	}
	t.metrics.ObservePayload(string(medium), len(raw))

	result := ExportResult{
		Medium:   medium,
		FileName: transfer.FileName(project.Name, payload.GeneratedAt),
		Count:    payload.Count,
		Size:     len(raw),
		Payload:  raw,
	}

	switch medium {
	case MediumFile:
		result.Path, err = transfer.WriteFile(t.cfg.Dir, result.FileName, raw, t.cfg.MaxFileBytes)
	case MediumQR:
		result.Image, err = transfer.RenderPNG(raw, t.cfg.QRSize)
		if err != nil {
			return ExportResult{}, err
		}
		result.FileName = strings.TrimSuffix(result.FileName, ".json") + ".png"
		result.Path, err = transfer.WriteFile(t.cfg.Dir, result.FileName, result.Image, 0)
	}
	if err != nil {
		return ExportResult{}, err
	}

	t.log(ctx).Info().
		Str("project_id", projectID).
		Str("medium", string(medium)).
		Int("count", result.Count).
		Int("size", result.Size).
		Msg("payload exported")
	return result, nil
}

// selection returns the submissions to export: the requested ones, or every
// sealed live submission of the project.
func (t *transferService) selection(ctx context.Context, projectID string, ids []string) ([]models.Submission, error) {
	if len(ids) == 0 {
		return t.storages.Submissions.ListSubmissions(ctx, store.SubmissionFilter{
			ProjectID: projectID,
			Statuses:  []models.Status{models.StatusFinalized, models.StatusQueued, models.StatusSynced},
		})
	}

	out := make([]models.Submission, 0, len(ids))
	for _, id := range ids {
		sub, err := t.storages.Submissions.GetSubmission(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case sub.Deleted():
			return nil, fmt.Errorf("%w: %s", ErrSubmissionDeleted, id)
		case sub.ProjectID != projectID:
			return nil, fmt.Errorf("%w: submission %s belongs to project %s", models.ErrValidation, id, sub.ProjectID)
		case !sub.Status.Sealed():
			return nil, fmt.Errorf("%w: submission %s is %s", ErrNotExportable, id, sub.Status)
		}
		out = append(out, sub)
	}
	return out, nil
}

func (t *transferService) Import(ctx context.Context, raw []byte, activeProjectID string, confirm ConfirmFunc) (models.ImportReport, error) {
	start := time.Now()
	report, err := t.importPayload(ctx, raw, activeProjectID, confirm)
	t.observe(ctx, "transfer.import", start, err)
	if err != nil {
		t.log(ctx).Err(err).Str("func", "transferService.Import").Msg("import failed")
		if !errors.Is(err, ErrImportNeedsConfirmation) && !errors.Is(err, ErrImportDeclined) {
			t.notifier.Notify(ctx, notify.FromError("transfer import", err))
		}
		return report, err
	}
	return report, nil
}

func (t *transferService) importPayload(ctx context.Context, raw []byte, activeProjectID string, confirm ConfirmFunc) (models.ImportReport, error) {
	payload, err := transfer.Parse(raw)
	if err != nil {
		return models.ImportReport{}, err
	}

	project, create, err := t.receivingProject(ctx, payload, activeProjectID)
	if err != nil {
		return models.ImportReport{}, err
	}

	report := models.ImportReport{
		ProjectID:       project.ID,
		SourceProjectID: payload.ProjectID,
		Received:        len(payload.Data),
	}

	if payload.ProjectID != project.ID {
		if confirm == nil {
			return report, ErrImportNeedsConfirmation
		}
		if !confirm(payload) {
			return report, ErrImportDeclined
		}
	}

	merged, conflicts, err := t.mergeAll(ctx, project, create, payload.Data, report)
	if err != nil {
		return report, err
	}
	report = merged

	for _, id := range conflicts {
		t.notifier.Notify(ctx, notify.FromError("submission "+id, ErrSubmissionConflict))
	}

	t.log(ctx).Info().
		Str("project_id", project.ID).
		Str("source_project_id", payload.ProjectID).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("conflicts", report.Conflicts).
		Msg("payload imported")
	return report, nil
}

// mergeAll merges every record of a payload in one transaction, so a failed
// import leaves the store as it was. The receiving project is created in the
// same transaction when create is set. The returned report is head with the
// merge counts filled in; conflicts lists the records that newly entered
// conflict.
func (t *transferService) mergeAll(ctx context.Context, project models.Project, create bool, records []models.Record, head models.ImportReport) (report models.ImportReport, conflicts []string, err error) {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	unlock := t.locks.LockAll(ids)
	defer unlock()

	now := t.clock()
	err = t.storages.WithinTx(ctx, func(tx *store.Storages) error {
		report, conflicts = head, nil

		if create {
			if err := tx.Projects.CreateProject(ctx, project); err != nil && !errors.Is(err, store.ErrProjectExists) {
				return err
			}
		}

		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}

			action, err := mergeRecord(ctx, tx, project.ID, rec, now)
			if err != nil {
				return fmt.Errorf("import %s: %w", rec.ID, err)
			}

			switch action {
			case mergeInsert:
				report.Inserted++
			case mergeOverwrite, mergeConfirm:
				report.Updated++
			case mergeUnchanged:
				report.Unchanged++
			case mergeSkip:
				report.Skipped++
			case mergeConflict:
				report.Conflicts++
				conflicts = append(conflicts, rec.ID)
			case mergeRefreshConflict:
				report.Conflicts++
			}
		}
		return nil
	})
	if err != nil {
		return head, nil, err
	}
	return report, conflicts, nil
}

// receivingProject resolves the project records are imported into. create
// is set when the payload's own project is the receiver and still unknown
// locally; it is then created together with the imported records.
func (t *transferService) receivingProject(ctx context.Context, payload models.TransferPayload, activeProjectID string) (project models.Project, create bool, err error) {
	active := activeProjectID
	if active == "" {
		active = t.activeProject
	}
	if active == "" {
		active = payload.ProjectID
	}

	project, err = t.storages.Projects.GetProject(ctx, active)
	if err == nil || !errors.Is(err, store.ErrProjectNotFound) || active != payload.ProjectID {
		return project, false, err
	}

	return models.Project{ID: payload.ProjectID, Name: payload.ProjectName, CreatedAt: t.clock()}, true, nil
}

func (t *transferService) Scan(ctx context.Context, open transfer.SourceOpener, activeProjectID string, confirm ConfirmFunc) (models.ImportReport, error) {
	scanner := transfer.NewScanner(t.cfg.ScanInterval, t.logger)
	scanner.OnReject = func(err error) {
		t.notifier.Notify(ctx, notify.FromError("transfer scan", err))
	}

	res, err := scanner.Scan(ctx, open)
	if err != nil {
		return models.ImportReport{}, err
	}
	return t.Import(ctx, res.Raw, activeProjectID, confirm)
}

// ConfirmHandoff marks the given finalized submissions synced after another
// device took them over. SyncedAt stays unset: the remote store has still
// not seen them.
func (t *transferService) ConfirmHandoff(ctx context.Context, projectID string, ids []string) (int, error) {
	confirmed := 0
	for _, id := range ids {
		changed, err := t.handOff(ctx, projectID, id)
		if err != nil {
			t.log(ctx).Err(err).Str("func", "transferService.ConfirmHandoff").Str("submission_id", id).Msg("handoff failed")
			return confirmed, err
		}
		if changed {
			confirmed++
		}
	}
	return confirmed, nil
}

func (t *transferService) handOff(ctx context.Context, projectID, id string) (bool, error) {
	unlock := t.locks.Lock(id)
	defer unlock()

	changed := false
	err := t.storages.WithinTx(ctx, func(tx *store.Storages) error {
		sub, err := tx.Submissions.GetSubmission(ctx, id)
		if err != nil {
			return err
		}
		if sub.ProjectID != projectID {
			return fmt.Errorf("%w: submission %s belongs to project %s", models.ErrValidation, id, sub.ProjectID)
		}
		if sub.Deleted() || sub.Status != models.StatusFinalized {
			return nil
		}

		sub.Status = models.StatusSynced
		changed = true
		return tx.Submissions.UpdateSubmission(ctx, sub)
	})
	return changed, err
}
