// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/models"
)

// mergeAction is what happens to a local submission when a version of the
// same record arrives from the remote store or a transfer payload.
type mergeAction int

const (
	// mergeInsert stores an unknown record as synced.
	mergeInsert mergeAction = iota
	// mergeSkip ignores a record the device has deleted.
	mergeSkip
	// mergeOverwrite replaces a synced local copy.
	mergeOverwrite
	// mergeConfirm flips a finalized submission with identical content to
	// synced.
	mergeConfirm
	// mergeUnchanged leaves the local submission as it is.
	mergeUnchanged
	// mergeConflict moves the submission to error and retains the incoming
	// version for manual resolution.
	mergeConflict
	// mergeRefreshConflict replaces the retained version of a submission
	// already in conflict.
	mergeRefreshConflict
)

func (a mergeAction) String() string {
	switch a {
	case mergeInsert:
		return "insert"
	case mergeSkip:
		return "skip"
	case mergeOverwrite:
		return "overwrite"
	case mergeConfirm:
		return "confirm"
	case mergeUnchanged:
		return "unchanged"
	case mergeConflict:
		return "conflict"
	case mergeRefreshConflict:
		return "refresh_conflict"
	default:
		return "unknown"
	}
}

// planMerge classifies an incoming record against the local submission,
// which is nil when the id is unknown. Diverging local edits are never
// overwritten. An incoming version the local copy is based on brings
// nothing new.
//
// It is a pure function so that every combination can be checked without a
// store.
func planMerge(local *models.Submission, incoming models.Record) mergeAction {
	switch {
	case local == nil:
		return mergeInsert
	case local.Deleted():
		return mergeSkip
	case local.AgreesWith(incoming):
		return mergeUnchanged
	case local.Status == models.StatusError:
		return mergeRefreshConflict
	case local.Status == models.StatusSynced:
		if local.SameContent(incoming) {
			return mergeUnchanged
		}
		return mergeOverwrite
	case local.SameContent(incoming):
		if local.Status == models.StatusFinalized {
			return mergeConfirm
		}
		return mergeUnchanged
	default:
		return mergeConflict
	}
}

// mergeRecord applies planMerge inside tx. projectID is the project the
// record is filed under when inserted. The caller holds the record's lock.
func mergeRecord(ctx context.Context, tx *store.Storages, projectID string, incoming models.Record, now time.Time) (mergeAction, error) {
	var local *models.Submission
	existing, err := tx.Submissions.GetSubmission(ctx, incoming.ID)
	switch {
	case err == nil:
		local = &existing
	case !errors.Is(err, store.ErrSubmissionNotFound):
		return 0, err
	}

	action := planMerge(local, incoming)
	syncedAt := now

	switch action {
	case mergeInsert:
		rec := incoming.Clone()
		rec.ProjectID = projectID
		rec.Status = models.StatusSynced
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = rec.CreatedAt
		}
		inserted := models.Submission{Record: rec, SyncedAt: &syncedAt}
		inserted.AgreeWith(incoming.UpdatedAt)
		return action, tx.Submissions.InsertSubmission(ctx, inserted)

	case mergeOverwrite:
		local.Data = incoming.Data.Clone()
		local.Metadata = incoming.Metadata.Clone()
		if !incoming.UpdatedAt.IsZero() {
			local.UpdatedAt = incoming.UpdatedAt
		}
		local.SyncedAt = &syncedAt
		local.AgreeWith(incoming.UpdatedAt)

	case mergeConfirm:
		local.Status = models.StatusSynced
		local.SyncedAt = &syncedAt
		local.ErrorReason = ""
		local.AgreeWith(incoming.UpdatedAt)

	case mergeUnchanged:
		// Identical content under a newer remote version moves the base.
		if local.AgreesWith(incoming) || incoming.UpdatedAt.IsZero() || !local.SameContent(incoming) {
			return action, nil
		}
		local.AgreeWith(incoming.UpdatedAt)

	case mergeConflict:
		remote := incoming.Clone()
		local.Status = models.StatusError
		local.RemoteCopy = &remote
		local.ErrorReason = ErrSubmissionConflict.Error()

	case mergeRefreshConflict:
		remote := incoming.Clone()
		local.RemoteCopy = &remote

	default:
		return action, nil
	}

	return action, tx.Submissions.UpdateSubmission(ctx, *local)
}
