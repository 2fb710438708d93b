// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"time"
)

// IntentKind is the kind of remote-bound change carried by a
// [MutationIntent].
type IntentKind string

const (
	IntentAdd    IntentKind = "add"
	IntentUpdate IntentKind = "update"
	IntentDelete IntentKind = "delete"
)

// ParseIntentKind rejects unknown kinds at the boundary.
func ParseIntentKind(s string) (IntentKind, error) {
	switch k := IntentKind(s); k {
	case IntentAdd, IntentUpdate, IntentDelete:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown intent kind %q", ErrValidation, s)
	}
}

// MutationIntent is one entry of the offline mutation queue. Add and update
// intents carry the full submission snapshot; delete intents carry only the
// submission id.
type MutationIntent struct {
	// Seq is the store-assigned append position. Intents of a project are
	// replayed in ascending Seq order.
	Seq          int64      `json:"seq"`
	ID           string     `json:"id"`
	Kind         IntentKind `json:"kind"`
	SubmissionID string     `json:"submissionId"`
	ProjectID    string     `json:"projectId"`
	Payload      *Record    `json:"payload,omitempty"`
	EnqueuedAt   time.Time  `json:"enqueuedAt"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"lastError,omitempty"`
}

// NewUpsertIntent builds an add or update intent carrying a snapshot of rec.
func NewUpsertIntent(id string, kind IntentKind, rec Record, at time.Time) MutationIntent {
	snapshot := rec.Clone()
	return MutationIntent{
		ID:           id,
		Kind:         kind,
		SubmissionID: rec.ID,
		ProjectID:    rec.ProjectID,
		Payload:      &snapshot,
		EnqueuedAt:   at,
	}
}

// NewDeleteIntent builds a delete intent for the given submission.
func NewDeleteIntent(id, projectID, submissionID string, at time.Time) MutationIntent {
	return MutationIntent{
		ID:           id,
		Kind:         IntentDelete,
		SubmissionID: submissionID,
		ProjectID:    projectID,
		EnqueuedAt:   at,
	}
}

// Validate checks that the intent is well formed for its kind.
func (i MutationIntent) Validate() error {
	if i.ID == "" || i.SubmissionID == "" || i.ProjectID == "" {
		return fmt.Errorf("%w: intent must carry id, submission id and project id", ErrValidation)
	}

	switch i.Kind {
	case IntentAdd, IntentUpdate:
		if i.Payload == nil {
			return fmt.Errorf("%w: %s intent without payload", ErrValidation, i.Kind)
		}
		if i.Payload.ID != i.SubmissionID {
			return fmt.Errorf("%w: intent payload id %q does not match submission %q", ErrValidation, i.Payload.ID, i.SubmissionID)
		}
	case IntentDelete:
		if i.Payload != nil {
			return fmt.Errorf("%w: delete intent must not carry a payload", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown intent kind %q", ErrValidation, i.Kind)
	}

	return nil
}
