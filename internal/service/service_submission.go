// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/models"
)

// Resolution selects which version survives a conflict.
type Resolution string

const (
	KeepLocal  Resolution = "keepLocal"
	KeepRemote Resolution = "keepRemote"
)

// ParseResolution validates s.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case KeepLocal, KeepRemote:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownResolution, s)
	}
}

type submissionService struct {
	base

	app          config.App
	connectivity connectivity.Checker
	queue        *queueService
}

func newSubmissionService(b base, app config.App, checker connectivity.Checker, queue *queueService) *submissionService {
	return &submissionService{base: b, app: app, connectivity: checker, queue: queue}
}

func (s *submissionService) Create(ctx context.Context, projectID string, data models.FieldMap, metadata models.Metadata) (models.Submission, error) {
	start := time.Now()
	log := s.log(ctx)

	if err := validateFields(data); err != nil {
		return models.Submission{}, err
	}
	if _, err := s.storages.Projects.GetProject(ctx, projectID); err != nil {
		log.Err(err).Str("func", "submissionService.Create").Str("project_id", projectID).Msg("project lookup failed")
		return models.Submission{}, err
	}

	now := s.clock()
	submission := models.Submission{Record: models.Record{
		ID:        s.ids.Generate(),
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    models.StatusDraft,
		Data:      data.Clone(),
		Metadata:  s.enrich(metadata),
	}}

	err := s.storages.Submissions.InsertSubmission(ctx, submission)
	s.observe(ctx, "submission.create", start, err)
	if err != nil {
		log.Err(err).Str("func", "submissionService.Create").Str("project_id", projectID).Msg("failed to store submission")
		return models.Submission{}, err
	}

	log.Debug().Str("submission_id", submission.ID).Str("project_id", projectID).Msg("draft created")
	return submission, nil
}

// enrich adds the agent identity to metadata without replacing what the
// caller set.
func (s *submissionService) enrich(metadata models.Metadata) models.Metadata {
	out := metadata.Clone()
	defaults := map[string]string{
		models.MetaAgentID:   s.app.AgentID,
		models.MetaAgentName: s.app.AgentName,
		models.MetaAgentCode: s.app.AgentCode,
		models.MetaDeviceID:  s.app.DeviceID,
	}
	for key, value := range defaults {
		if value == "" {
			continue
		}
		if _, ok := out[key]; ok {
			continue
		}
		if out == nil {
			out = make(models.Metadata, len(defaults))
		}
		out[key] = value
	}
	return out
}

func (s *submissionService) Get(ctx context.Context, id string) (models.Submission, error) {
	return s.storages.Submissions.GetSubmission(ctx, id)
}

func (s *submissionService) List(ctx context.Context, projectID string, statuses ...models.Status) ([]models.Submission, error) {
	return s.storages.Submissions.ListSubmissions(ctx, store.SubmissionFilter{ProjectID: projectID, Statuses: statuses})
}

func (s *submissionService) Update(ctx context.Context, id string, data models.FieldMap) (models.Submission, error) {
	if err := validateFields(data); err != nil {
		return models.Submission{}, err
	}

	online := s.connectivity.Online(ctx)
	queued := false

	updated, err := s.mutate(ctx, "submission.update", id, func(tx *store.Storages, sub *models.Submission) error {
		now := s.clock()
		prev := sub.Status

		sub.Data = data.Clone()
		sub.UpdatedAt = now

		switch {
		case prev.Editable():
			sub.Status = models.StatusModified
		case prev == models.StatusFinalized || prev == models.StatusSynced:
			if online {
				sub.Status = models.StatusModified
				return nil
			}
			sub.Status = models.StatusQueued
			queued = true
			return s.enqueueUpsert(ctx, tx, *sub, now)
		case prev == models.StatusQueued:
			queued = true
			return s.enqueueUpsert(ctx, tx, *sub, now)
		case prev == models.StatusError:
			sub.Status = models.StatusModified
			sub.ErrorReason = ""
			sub.RemoteCopy = nil
			if _, err := tx.Intents.RemoveSubmissionIntents(ctx, sub.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: update from %s", models.ErrInvalidTransition, prev)
		}
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}

	if queued {
		s.queue.checkCapacity(ctx)
	}
	return updated, nil
}

// enqueueUpsert appends the add or update intent for sub inside tx.
func (s *submissionService) enqueueUpsert(ctx context.Context, tx *store.Storages, sub models.Submission, now time.Time) error {
	kind := models.IntentUpdate
	if !sub.RemoteKnown() {
		kind = models.IntentAdd
	}

	intent := models.NewUpsertIntent(s.ids.Generate(), kind, sub.Snapshot(), now)
	if _, err := tx.Intents.Enqueue(ctx, intent); err != nil {
		return fmt.Errorf("enqueue %s intent: %w", kind, err)
	}
	return nil
}

func (s *submissionService) Seal(ctx context.Context, id string) (models.Submission, error) {
	return s.mutate(ctx, "submission.seal", id, func(_ *store.Storages, sub *models.Submission) error {
		switch {
		case sub.Status == models.StatusFinalized:
			return errUnchanged
		case !sub.Status.Editable():
			return fmt.Errorf("%w: seal from %s", models.ErrInvalidTransition, sub.Status)
		}

		now := s.clock()
		if sub.Metadata == nil {
			sub.Metadata = make(models.Metadata, 2)
		}
		sub.Metadata[models.MetaFinalizedAt] = now.Format(time.RFC3339)
		sub.Metadata[models.MetaDigitalSignature] = sub.Data.Digest()
		sub.Status = models.StatusFinalized
		sub.UpdatedAt = now
		return nil
	})
}

func (s *submissionService) Delete(ctx context.Context, id string) error {
	start := time.Now()
	unlock := s.locks.Lock(id)
	defer unlock()

	enqueued := false
	err := s.storages.WithinTx(ctx, func(tx *store.Storages) error {
		sub, err := tx.Submissions.GetSubmission(ctx, id)
		if err != nil {
			return err
		}
		if sub.Deleted() {
			return nil
		}

		now := s.clock()
		sub.DeletedAt = &now
		sub.UpdatedAt = now
		if err = tx.Submissions.UpdateSubmission(ctx, sub); err != nil {
			return err
		}

		// The tombstone supersedes queued upserts, including one held
		// after a rejection.
		if _, err = tx.Intents.RemoveSubmissionIntents(ctx, id); err != nil {
			return err
		}
		if !sub.RemoteKnown() {
			return nil
		}

		enqueued = true
		_, err = tx.Intents.Enqueue(ctx, models.NewDeleteIntent(s.ids.Generate(), sub.ProjectID, id, now))
		return err
	})
	s.observe(ctx, "submission.delete", start, err)
	if err != nil {
		s.log(ctx).Err(err).Str("func", "submissionService.Delete").Str("submission_id", id).Msg("delete failed")
		return err
	}

	if enqueued {
		s.queue.checkCapacity(ctx)
	}
	return nil
}

func (s *submissionService) MarkSynced(ctx context.Context, id string) (models.Submission, error) {
	return s.mutate(ctx, "submission.mark_synced", id, func(_ *store.Storages, sub *models.Submission) error {
		switch sub.Status {
		case models.StatusSynced:
			return errUnchanged
		case models.StatusFinalized, models.StatusQueued:
			now := s.clock()
			sub.Status = models.StatusSynced
			sub.SyncedAt = &now
			sub.AgreeWith(sub.UpdatedAt)
			return nil
		default:
			return fmt.Errorf("%w: mark synced from %s", models.ErrInvalidTransition, sub.Status)
		}
	})
}

func (s *submissionService) MarkError(ctx context.Context, id, reason string) (models.Submission, error) {
	return s.mutate(ctx, "submission.mark_error", id, func(_ *store.Storages, sub *models.Submission) error {
		switch sub.Status {
		case models.StatusFinalized, models.StatusQueued, models.StatusError:
			sub.Status = models.StatusError
			sub.ErrorReason = reason
			return nil
		default:
			return fmt.Errorf("%w: mark error from %s", models.ErrInvalidTransition, sub.Status)
		}
	})
}

func (s *submissionService) Review(ctx context.Context, id string, verdict models.ReviewStatus) (models.Submission, error) {
	if _, err := models.ParseReviewStatus(string(verdict)); err != nil {
		return models.Submission{}, err
	}

	return s.mutate(ctx, "submission.review", id, func(_ *store.Storages, sub *models.Submission) error {
		if sub.Review == verdict {
			return errUnchanged
		}
		sub.Review = verdict
		return nil
	})
}

func (s *submissionService) ResolveConflict(ctx context.Context, id string, keep Resolution) (models.Submission, error) {
	if _, err := ParseResolution(string(keep)); err != nil {
		return models.Submission{}, err
	}

	return s.mutate(ctx, "submission.resolve", id, func(tx *store.Storages, sub *models.Submission) error {
		if sub.Status != models.StatusError {
			return fmt.Errorf("%w: resolve from %s", models.ErrInvalidTransition, sub.Status)
		}

		now := s.clock()
		switch keep {
		case KeepLocal:
			pending, err := tx.Intents.CountSubmissionIntents(ctx, sub.ID)
			if err != nil {
				return err
			}
			sub.Status = models.StatusFinalized
			if pending > 0 {
				sub.Status = models.StatusQueued
			}
			// Keeping local overrides the remote copy that was seen.
			if sub.RemoteCopy != nil {
				sub.AgreeWith(sub.RemoteCopy.UpdatedAt)
			}
		case KeepRemote:
			if sub.RemoteCopy == nil {
				return ErrNoRemoteCopy
			}
			sub.Data = sub.RemoteCopy.Data.Clone()
			sub.Metadata = sub.RemoteCopy.Metadata.Clone()
			sub.Status = models.StatusSynced
			sub.SyncedAt = &now
			sub.AgreeWith(sub.RemoteCopy.UpdatedAt)
			if _, err := tx.Intents.RemoveSubmissionIntents(ctx, sub.ID); err != nil {
				return err
			}
		}

		sub.ErrorReason = ""
		sub.RemoteCopy = nil
		sub.UpdatedAt = now
		return nil
	})
}

// errUnchanged lets a mutation end without writing.
var errUnchanged = errors.New("unchanged")

// mutate loads the live submission id under its lock, applies fn and stores
// the result in one transaction.
func (s *submissionService) mutate(ctx context.Context, op, id string, fn func(tx *store.Storages, sub *models.Submission) error) (models.Submission, error) {
	start := time.Now()
	unlock := s.locks.Lock(id)
	defer unlock()

	var result models.Submission
	err := s.storages.WithinTx(ctx, func(tx *store.Storages) error {
		sub, err := tx.Submissions.GetSubmission(ctx, id)
		if err != nil {
			return err
		}
		if sub.Deleted() {
			return ErrSubmissionDeleted
		}

		if err = fn(tx, &sub); err != nil {
			if errors.Is(err, errUnchanged) {
				result = sub
				return nil
			}
			return err
		}

		result = sub
		return tx.Submissions.UpdateSubmission(ctx, sub)
	})
	s.observe(ctx, op, start, err)
	if err != nil {
		s.log(ctx).Err(err).Str("func", "submissionService.mutate").Str("op", op).Str("submission_id", id).Msg("submission mutation failed")
		return models.Submission{}, err
	}

	return result, nil
}

func validateFields(data models.FieldMap) error {
	for _, f := range data {
		if f.Name == "" {
			return ErrEmptyFieldName
		}
	}
	return nil
}
