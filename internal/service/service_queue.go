package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/notify"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/models"
)

type queueService struct {
	base

	remote  adapter.RemoteAdapter
	retrier retrier
	storage config.Storage

	draining *flagSet

	capacityMu sync.Mutex
	warned     bool
}

func newQueueService(b base, remote adapter.RemoteAdapter, r retrier, storage config.Storage) *queueService {
	return &queueService{
		base:     b,
		remote:   remote,
		retrier:  r,
		storage:  storage,
		draining: newFlagSet(),
	}
}

func (q *queueService) Enqueue(ctx context.Context, intent models.MutationIntent) (models.MutationIntent, error) {
	if intent.ID == "" {
		intent.ID = q.ids.Generate()
	}
	if intent.EnqueuedAt.IsZero() {
		intent.EnqueuedAt = q.clock()
	}
	if err := intent.Validate(); err != nil {
		return models.MutationIntent{}, err
	}

	stored, err := q.storages.Intents.Enqueue(ctx, intent)
	if err != nil {
		q.log(ctx).Err(err).Str("func", "queueService.Enqueue").Str("intent_id", intent.ID).Msg("failed to enqueue intent")
		return models.MutationIntent{}, err
	}

	q.checkCapacity(ctx)
	return stored, nil
}

func (q *queueService) Pending(ctx context.Context, projectID string) ([]models.MutationIntent, error) {
	return q.storages.Intents.ListIntents(ctx, store.IntentFilter{ProjectID: projectID})
}

// Drain replays the queue of projectID in append order. Replay stops at the
// first intent that cannot be applied; everything after it stays queued.
func (q *queueService) Drain(ctx context.Context, projectID string) models.DrainOutcome {
	start := time.Now()
	log := q.log(ctx).With().Str("project_id", projectID).Logger()
	outcome := models.DrainOutcome{ProjectID: projectID}

	if !q.draining.tryAcquire(projectID) {
		outcome.Fail(ErrDrainInProgress)
		return outcome
	}
	defer q.draining.release(projectID)

	defer func() {
		q.observe(ctx, "queue.drain", start, outcome.Err)
	}()

	project, err := q.storages.Projects.GetProject(ctx, projectID)
	if err != nil {
		outcome.Fail(err)
		return outcome
	}
	if !project.Registered() {
		outcome.Fail(ErrProjectNotRegistered)
		return outcome
	}

	intents, err := q.Pending(ctx, projectID)
	if err != nil {
		outcome.Fail(err)
		return outcome
	}

	for _, intent := range intents {
		if err = ctx.Err(); err != nil {
			outcome.Fail(err)
			break
		}

		held, applyErr := q.apply(ctx, project, intent)
		if applyErr == nil {
			outcome.Applied++
			continue
		}

		failed := intent
		failed.LastError = applyErr.Error()
		if !held {
			failed.Attempts++
		}
		outcome.Held = held
		outcome.FailedIntent = &failed
		outcome.Fail(applyErr)

		log.Warn().Err(applyErr).
			Str("func", "queueService.Drain").
			Str("intent_id", intent.ID).
			Int64("seq", intent.Seq).
			Bool("held", held).
			Msg("drain stopped")
		break
	}

	remaining, err := q.Pending(detached(ctx), projectID)
	if err != nil {
		outcome.Remaining = len(intents) - outcome.Applied
	} else {
		outcome.Remaining = len(remaining)
	}
	q.metrics.SetQueueDepth(projectID, outcome.Remaining)

	log.Info().
		Str("func", "queueService.Drain").
		Int("applied", outcome.Applied).
		Int("remaining", outcome.Remaining).
		Msg("drain finished")

	return outcome
}

// apply sends one intent to the remote store and settles the local state.
// held is true when a live submission awaits conflict resolution and nothing
// was sent. A tombstone is never held: resolution no longer applies to it.
func (q *queueService) apply(ctx context.Context, project models.Project, intent models.MutationIntent) (held bool, err error) {
	unlock := q.locks.Lock(intent.SubmissionID)
	defer unlock()

	sub, err := q.storages.Submissions.GetSubmission(ctx, intent.SubmissionID)
	switch {
	case errors.Is(err, store.ErrSubmissionNotFound):
	case err != nil:
		return false, err
	case sub.Status == models.StatusError && !sub.Deleted():
		return true, fmt.Errorf("%w: submission %s awaits resolution", models.ErrConflict, sub.ID)
	}

	err = q.send(ctx, project.RemoteID, intent, sub.Base())
	if err != nil {
		q.fail(ctx, intent, err)
		return false, err
	}

	now := q.clock()
	settleCtx := detached(ctx)
	err = q.storages.WithinTx(settleCtx, func(tx *store.Storages) error {
		if err := tx.Intents.RemoveIntent(settleCtx, intent.ID); err != nil && !errors.Is(err, store.ErrIntentNotFound) {
			return err
		}
		return settleSubmission(settleCtx, tx, intent, now)
	})
	if err != nil {
		q.log(ctx).Err(err).Str("func", "queueService.apply").Str("intent_id", intent.ID).Msg("failed to settle applied intent")
		return false, err
	}

	q.metrics.IntentApplied()
	return false, nil
}

// send delivers intent. Upserts carry base, the remote version the
// submission was last in agreement with, so a newer remote copy is refused
// rather than replaced.
func (q *queueService) send(ctx context.Context, remoteID string, intent models.MutationIntent, base time.Time) error {
	switch intent.Kind {
	case models.IntentAdd, models.IntentUpdate:
		return q.retrier.do(ctx, "submit", func(ctx context.Context) error {
			_, err := q.remote.Submit(ctx, remoteID, *intent.Payload, base)
			return err
		})
	case models.IntentDelete:
		err := q.retrier.do(ctx, "delete", func(ctx context.Context) error {
			return q.remote.Delete(ctx, remoteID, intent.SubmissionID)
		})
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: unknown intent kind %q", models.ErrValidation, intent.Kind)
	}
}

// settleSubmission records a confirmed intent on its submission. The
// submission becomes synced once nothing else is queued for it.
func settleSubmission(ctx context.Context, tx *store.Storages, intent models.MutationIntent, now time.Time) error {
	sub, err := tx.Submissions.GetSubmission(ctx, intent.SubmissionID)
	if errors.Is(err, store.ErrSubmissionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if intent.Kind != models.IntentDelete {
		sub.SyncedAt = &now
		if intent.Payload != nil {
			sub.AgreeWith(intent.Payload.UpdatedAt)
		}
	}

	pending, err := tx.Intents.CountSubmissionIntents(ctx, sub.ID)
	if err != nil {
		return err
	}
	if pending == 0 && sub.Status == models.StatusQueued && !sub.Deleted() {
		sub.Status = models.StatusSynced
	}

	return tx.Submissions.UpdateSubmission(ctx, sub)
}

// fail records a failed attempt on intent. A rejection by the remote store
// also moves the submission to error.
func (q *queueService) fail(ctx context.Context, intent models.MutationIntent, cause error) {
	ctx = detached(ctx)
	log := q.log(ctx)

	if err := q.storages.Intents.RecordFailure(ctx, intent.ID, cause.Error()); err != nil {
		log.Err(err).Str("func", "queueService.fail").Str("intent_id", intent.ID).Msg("failed to record intent failure")
	}

	if !rejected(cause) {
		return
	}

	err := q.storages.WithinTx(ctx, func(tx *store.Storages) error {
		sub, err := tx.Submissions.GetSubmission(ctx, intent.SubmissionID)
		if err != nil {
			return err
		}
		if sub.Deleted() {
			return nil
		}
		sub.Status = models.StatusError
		sub.ErrorReason = cause.Error()
		return tx.Submissions.UpdateSubmission(ctx, sub)
	})
	if err != nil {
		log.Err(err).Str("func", "queueService.fail").Str("submission_id", intent.SubmissionID).Msg("failed to move submission to error")
		return
	}

	q.notifier.Notify(ctx, notify.FromError("submission "+intent.SubmissionID, cause))
}

// rejected reports whether the remote store refused the record itself, as
// opposed to being unreachable.
func rejected(err error) bool {
	return errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrConflict)
}

// checkCapacity compares storage usage with the quota and raises one
// warning each time the warn ratio is crossed.
func (q *queueService) checkCapacity(ctx context.Context) {
	if q.storage.QuotaBytes <= 0 {
		return
	}
	log := q.log(ctx)

	usage, err := q.storages.Usage(ctx)
	if err != nil {
		log.Err(err).Str("func", "queueService.checkCapacity").Msg("failed to read storage usage")
		return
	}

	ratio := float64(usage) / float64(q.storage.QuotaBytes)
	over := ratio >= q.storage.WarnRatio
	q.metrics.SetStorage(usage, over)

	q.capacityMu.Lock()
	crossed := over && !q.warned
	q.warned = over
	q.capacityMu.Unlock()

	if !crossed {
		return
	}

	log.Warn().
		Str("func", "queueService.checkCapacity").
		Int64("usage", usage).
		Int64("quota", q.storage.QuotaBytes).
		Float64("ratio", ratio).
		Msg("storage usage above warning threshold")
	q.notifier.Notify(ctx, notify.Warning(
		"storage",
		fmt.Sprintf("local storage is %.0f%% of its %d byte quota", ratio*100, q.storage.QuotaBytes),
		"sync or export pending records to free space",
	))
}
