// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a submission. A submission holds exactly
// one status at a time.
type Status string

const (
	// StatusDraft is the state of a freshly created submission.
	StatusDraft Status = "draft"
	// StatusModified marks a submission edited after creation or re-opened
	// after sync or an error.
	StatusModified Status = "modified"
	// StatusFinalized marks a sealed submission, ready for transmission.
	StatusFinalized Status = "finalized"
	// StatusQueued marks a submission whose remote-bound change waits in the
	// offline mutation queue.
	StatusQueued Status = "queued"
	// StatusSynced marks a submission confirmed by the remote store or
	// imported from a verified transfer payload.
	StatusSynced Status = "synced"
	// StatusError marks a submission rejected remotely or in conflict with a
	// remote version. Only an explicit re-edit or resolution leaves it.
	StatusError Status = "error"
)

// ParseStatus validates s against the known lifecycle states.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusModified, StatusFinalized, StatusQueued, StatusSynced, StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

func (s *Status) UnmarshalJSON(raw []byte) error {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return fmt.Errorf("%w: status: %w", ErrValidation, err)
	}
	st, err := ParseStatus(text)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Sealed reports whether the status belongs to a submission that has been
// finalized at least once and carries no unsealed local edits.
func (s Status) Sealed() bool {
	return s == StatusFinalized || s == StatusQueued || s == StatusSynced
}

// Editable reports whether local edits are still pending a seal.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusModified
}

// ReviewStatus is the quality-control verdict attached to a submission by a
// supervisor. Pending and rejected submissions are held back from push.
type ReviewStatus string

const (
	ReviewNone     ReviewStatus = ""
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewFlagged  ReviewStatus = "flagged"
)

// ParseReviewStatus validates s.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch r := ReviewStatus(s); r {
	case ReviewNone, ReviewPending, ReviewApproved, ReviewRejected, ReviewFlagged:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown review status %q", ErrValidation, s)
	}
}

// HoldsPush reports whether a submission with this verdict must not be sent
// to the remote store.
func (r ReviewStatus) HoldsPush() bool {
	return r == ReviewPending || r == ReviewRejected
}

// Record is the portable snapshot of a submission. It is what intents,
// transfer payloads and the remote adapter carry; local bookkeeping lives on
// [Submission] only.
type Record struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Status    Status    `json:"status"`
	Data      FieldMap  `json:"data"`
	Metadata  Metadata  `json:"metadata"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Data = r.Data.Clone()
	r.Metadata = r.Metadata.Clone()
	return r
}

// SameContent reports whether both records carry the same collected data.
// Metadata is device-local bookkeeping and is not compared.
func (r Record) SameContent(o Record) bool {
	return r.Data.Equal(o.Data)
}

// Submission is one collected field record with its lifecycle status and
// local tracking fields.
type Submission struct {
	Record

	Review      ReviewStatus `json:"review,omitempty"`
	ErrorReason string       `json:"errorReason,omitempty"`

	// RemoteCopy holds the diverging remote version while the submission is
	// in conflict.
	RemoteCopy *Record    `json:"remoteCopy,omitempty"`
	SyncedAt   *time.Time `json:"syncedAt,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`

	// BaseVersion is the UpdatedAt of the remote copy the submission last
	// agreed with. Pushes carry it so the remote store refuses to replace a
	// newer copy.
	BaseVersion *time.Time `json:"baseVersion,omitempty"`
}

// Snapshot returns the portable copy of s.
func (s Submission) Snapshot() Record {
	return s.Record.Clone()
}

// Base returns BaseVersion, or the zero time when the remote copy is unknown.
func (s Submission) Base() time.Time {
	if s.BaseVersion == nil {
		return time.Time{}
	}
	return *s.BaseVersion
}

// AgreeWith records version as the remote copy s now matches.
func (s *Submission) AgreeWith(version time.Time) {
	if version.IsZero() {
		return
	}
	v := version.UTC()
	s.BaseVersion = &v
}

// AgreesWith reports whether rec is the remote version s was based on, so
// the local copy already accounts for it.
func (s Submission) AgreesWith(rec Record) bool {
	return s.BaseVersion != nil && !rec.UpdatedAt.IsZero() && s.BaseVersion.Equal(rec.UpdatedAt)
}

// Deleted reports whether s is tombstoned.
func (s Submission) Deleted() bool {
	return s.DeletedAt != nil
}

// RemoteKnown reports whether the remote store has seen s at least once.
func (s Submission) RemoteKnown() bool {
	return s.SyncedAt != nil
}
