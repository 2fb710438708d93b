// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/notify"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/models"
)

// OfflineHint is attached to sync reports produced without connectivity.
const OfflineHint = "remote store unreachable: move records with a transfer export (file or QR) instead"

// pullOverlap is subtracted from the remote cursor so that records committed
// while a fetch was being answered are read again on the next pull. Merging
// a record twice is a no-op.
const pullOverlap = 5 * time.Second

type syncService struct {
	base

	remote       adapter.RemoteAdapter
	retrier      retrier
	connectivity connectivity.Checker
	queue        *queueService
	maxParallel  int

	syncing *flagSet
}

func newSyncService(b base, remote adapter.RemoteAdapter, r retrier, checker connectivity.Checker, queue *queueService, workers config.Workers) *syncService {
	return &syncService{
		base:         b,
		remote:       remote,
		retrier:      r,
		connectivity: checker,
		queue:        queue,
		maxParallel:  workers.MaxParallel,
		syncing:      newFlagSet(),
	}
}

func (s *syncService) SyncNow(ctx context.Context, projectID string) models.SyncReport {
	if !s.connectivity.Online(ctx) {
		report := s.offlineReport(projectID)
		s.notifier.Notify(ctx, notify.FromError("sync "+projectID, fmt.Errorf("%w: %w", models.ErrNetwork, ErrOffline)))
		s.metrics.ObserveSync(report)
		return report
	}

	return s.run(ctx, projectID)
}

func (s *syncService) SyncAll(ctx context.Context) []models.SyncReport {
	log := s.log(ctx)

	projects, err := s.storages.Projects.ListProjects(ctx)
	if err != nil {
		log.Err(err).Str("func", "syncService.SyncAll").Msg("failed to list projects")
		return nil
	}

	registered := projects[:0]
	for _, p := range projects {
		if p.Registered() {
			registered = append(registered, p)
		}
	}

	reports := make([]models.SyncReport, len(registered))

	if !s.connectivity.Online(ctx) {
		for i, p := range registered {
			reports[i] = s.offlineReport(p.ID)
			s.metrics.ObserveSync(reports[i])
		}
		if len(registered) > 0 {
			s.notifier.Notify(ctx, notify.FromError("sync", fmt.Errorf("%w: %w", models.ErrNetwork, ErrOffline)))
		}
		return reports
	}

	var g errgroup.Group
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}
	for i, p := range registered {
		g.Go(func() error {
			reports[i] = s.run(ctx, p.ID)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

func (s *syncService) offlineReport(projectID string) models.SyncReport {
	now := s.clock()
	report := models.SyncReport{ProjectID: projectID, StartedAt: now, FinishedAt: now, Offline: true, Hint: OfflineHint}
	report.Fail(ErrOffline)
	return report
}

func (s *syncService) run(ctx context.Context, projectID string) (report models.SyncReport) {
	start := time.Now()
	log := s.log(ctx).With().Str("project_id", projectID).Logger()

	report = models.SyncReport{ProjectID: projectID, StartedAt: s.clock()}
	defer func() {
		report.FinishedAt = s.clock()
		s.metrics.ObserveSync(report)
		s.observe(ctx, "sync.run", start, report.FirstErr())
	}()

	project, err := s.storages.Projects.GetProject(ctx, projectID)
	if err != nil {
		report.Fail(err)
		return report
	}
	if !project.Registered() {
		report.Fail(ErrProjectNotRegistered)
		s.notifier.Notify(ctx, models.Notification{
			Severity: models.SeverityError,
			Subject:  "sync " + project.Name,
			Cause:    ErrProjectNotRegistered.Error(),
			Remedy:   "register the project before syncing",
		})
		return report
	}
	if !s.syncing.tryAcquire(projectID) {
		report.Fail(ErrSyncInProgress)
		return report
	}
	defer s.syncing.release(projectID)

	report.Steps = append(report.Steps, s.drain(ctx, project))
	report.Steps = append(report.Steps, s.push(ctx, project))

	pull, batch := s.pull(ctx, project)
	report.Steps = append(report.Steps, pull)

	if pull.Err != nil {
		log.Warn().Str("func", "syncService.run").Msg("pull failed, merge skipped")
		return report
	}

	merge := s.merge(ctx, project, batch.Records)
	report.Steps = append(report.Steps, merge)

	if merge.Err == nil {
		s.advanceWatermark(ctx, project, batch.Cursor)
	}

	log.Info().
		Str("func", "syncService.run").
		Bool("ok", report.OK()).
		Msg("sync finished")

	return report
}

func (s *syncService) failStep(ctx context.Context, project models.Project, step *models.StepOutcome, err error) {
	step.Fail(err)
	s.notifier.Notify(ctx, notify.FromError(fmt.Sprintf("sync %s: %s", project.Name, step.Step), err))
}

func (s *syncService) drain(ctx context.Context, project models.Project) models.StepOutcome {
	step := models.StepOutcome{Step: models.StepDrain}

	outcome := s.queue.Drain(ctx, project.ID)
	failed := 0
	if outcome.FailedIntent != nil {
		failed = 1
	}
	step.Attempted = outcome.Applied + failed
	step.Succeeded = outcome.Applied
	step.Failed = failed
	step.Skipped = max(outcome.Remaining-failed, 0)

	if outcome.Err != nil {
		s.failStep(ctx, project, &step, outcome.Err)
	}
	return step
}

// push submits finalized submissions that have nothing queued. Rejected
// records move to error and the step continues; an unreachable remote stops
// it.
func (s *syncService) push(ctx context.Context, project models.Project) models.StepOutcome {
	step := models.StepOutcome{Step: models.StepPush}
	log := s.log(ctx)

	candidates, err := s.storages.Submissions.ListSubmissions(ctx, store.SubmissionFilter{
		ProjectID: project.ID,
		Statuses:  []models.Status{models.StatusFinalized},
	})
	if err != nil {
		s.failStep(ctx, project, &step, err)
		return step
	}

	var rejection error
	for _, candidate := range candidates {
		if candidate.Review.HoldsPush() {
			step.Skipped++
			continue
		}

		sent, err := s.pushOne(ctx, project, candidate.ID)
		switch {
		case err == nil && !sent:
			step.Skipped++
		case err == nil:
			step.Attempted++
			step.Succeeded++
		case rejected(err):
			step.Attempted++
			step.Failed++
			rejection = err
		default:
			step.Attempted++
			step.Failed++
			s.failStep(ctx, project, &step, err)
			return step
		}
	}

	if rejection != nil {
		step.Fail(rejection)
	}

	log.Debug().Str("func", "syncService.push").Str("project_id", project.ID).
		Int("succeeded", step.Succeeded).Int("failed", step.Failed).Int("skipped", step.Skipped).
		Msg("push finished")
	return step
}

// pushOne sends submission id under its lock. sent is false when the
// submission changed or got queued work since it was listed.
func (s *syncService) pushOne(ctx context.Context, project models.Project, id string) (sent bool, err error) {
	log := s.log(ctx)

	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.storages.Submissions.GetSubmission(ctx, id)
	if err != nil {
		return false, err
	}
	if sub.Deleted() || sub.Status != models.StatusFinalized || sub.Review.HoldsPush() {
		return false, nil
	}
	pending, err := s.storages.Intents.CountSubmissionIntents(ctx, id)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	if sub.Review == models.ReviewFlagged {
		log.Warn().Str("func", "syncService.pushOne").Str("submission_id", id).Msg("pushing a flagged submission")
	}

	snapshot := sub.Snapshot()
	err = s.retrier.do(ctx, "submit", func(ctx context.Context) error {
		_, err := s.remote.Submit(ctx, project.RemoteID, snapshot, sub.Base())
		return err
	})

	settleCtx := detached(ctx)
	now := s.clock()
	switch {
	case err == nil:
		sub.Status = models.StatusSynced
		sub.SyncedAt = &now
		sub.ErrorReason = ""
		sub.AgreeWith(snapshot.UpdatedAt)
	case rejected(err):
		sub.Status = models.StatusError
		sub.ErrorReason = err.Error()
	default:
		return true, err
	}

	if updateErr := s.storages.Submissions.UpdateSubmission(settleCtx, sub); updateErr != nil {
		log.Err(updateErr).Str("func", "syncService.pushOne").Str("submission_id", id).Msg("failed to store push result")
		if err == nil {
			return true, updateErr
		}
	}

	if err != nil {
		s.notifier.Notify(settleCtx, notify.FromError("submission "+id, err))
	}
	return true, err
}

func (s *syncService) pull(ctx context.Context, project models.Project) (models.StepOutcome, models.RemoteBatch) {
	step := models.StepOutcome{Step: models.StepPull}

	var since time.Time
	if project.LastSyncedAt != nil {
		since = *project.LastSyncedAt
	}

	var batch models.RemoteBatch
	err := s.retrier.do(ctx, "fetch", func(ctx context.Context) error {
		var err error
		batch, err = s.remote.Fetch(ctx, project.RemoteID, since)
		return err
	})
	if err != nil {
		step.Failed = 1
		s.failStep(ctx, project, &step, err)
		return step, models.RemoteBatch{}
	}

	step.Attempted = len(batch.Records)
	step.Succeeded = len(batch.Records)
	return step, batch
}

// advanceWatermark stores the point the next pull resumes from. It is taken
// from the remote store's clock, never the device's, and never moves back.
// Without a cursor the watermark stays where it is and the next pull reads
// the same window again.
func (s *syncService) advanceWatermark(ctx context.Context, project models.Project, cursor time.Time) {
	log := s.log(ctx)

	if cursor.IsZero() {
		log.Debug().Str("func", "syncService.advanceWatermark").Str("project_id", project.ID).
			Msg("remote reported no cursor, watermark kept")
		return
	}

	next := cursor.Add(-pullOverlap).UTC()
	if project.LastSyncedAt != nil && !next.After(*project.LastSyncedAt) {
		return
	}

	if err := s.storages.Projects.SetLastSyncedAt(detached(ctx), project.ID, next); err != nil {
		log.Err(err).Str("func", "syncService.advanceWatermark").Str("project_id", project.ID).Msg("failed to advance watermark")
	}
}

// merge applies pulled records one by one. Conflicts are never resolved
// automatically; they fail the step so the watermark stays put.
func (s *syncService) merge(ctx context.Context, project models.Project, records []models.Record) models.StepOutcome {
	step := models.StepOutcome{Step: models.StepMerge}
	log := s.log(ctx)
	conflicts := 0

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			s.failStep(ctx, project, &step, err)
			return step
		}

		step.Attempted++
		action, err := s.mergeOne(ctx, project.ID, rec)
		if err != nil {
			step.Failed++
			s.failStep(ctx, project, &step, err)
			return step
		}

		switch action {
		case mergeInsert, mergeOverwrite, mergeConfirm:
			step.Succeeded++
		case mergeUnchanged, mergeSkip:
			step.Skipped++
		case mergeConflict:
			step.Failed++
			conflicts++
			s.notifier.Notify(ctx, notify.FromError("submission "+rec.ID, ErrSubmissionConflict))
		case mergeRefreshConflict:
			step.Failed++
			conflicts++
		}

		log.Debug().Str("func", "syncService.merge").Str("submission_id", rec.ID).Stringer("action", action).Msg("record merged")
	}

	if conflicts > 0 {
		step.Fail(fmt.Errorf("%d record(s): %w", conflicts, ErrSubmissionConflict))
	}
	return step
}

func (s *syncService) mergeOne(ctx context.Context, projectID string, rec models.Record) (mergeAction, error) {
	unlock := s.locks.Lock(rec.ID)
	defer unlock()

	var action mergeAction
	err := s.storages.WithinTx(ctx, func(tx *store.Storages) error {
		var err error
		action, err = mergeRecord(ctx, tx, projectID, rec, s.clock())
		return err
	})
	return action, err
}

func (s *syncService) RegisterProject(ctx context.Context, projectID string) (models.Project, error) {
	start := time.Now()
	log := s.log(ctx)

	unlock := s.locks.Lock("project:" + projectID)
	defer unlock()

	project, err := s.storages.Projects.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}

	var remoteID string
	err = s.retrier.do(ctx, "register", func(ctx context.Context) error {
		var err error
		remoteID, err = s.remote.RegisterProject(ctx, project.ToDefinition())
		return err
	})
	if err == nil && remoteID == "" {
		err = errors.New("remote store returned an empty project id")
	}
	if err == nil {
		project.RemoteID = remoteID
		err = s.storages.Projects.UpdateProject(detached(ctx), project)
	}
	s.observe(ctx, "project.register", start, err)
	if err != nil {
		log.Err(err).Str("func", "syncService.RegisterProject").Str("project_id", projectID).Msg("registration failed")
		s.notifier.Notify(ctx, notify.FromError("project "+project.Name, err))
		return models.Project{}, err
	}

	log.Info().Str("project_id", projectID).Str("remote_id", remoteID).Msg("project registered")
	return project, nil
}
