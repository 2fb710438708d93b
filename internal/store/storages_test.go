package store

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

func newTestStorages(t *testing.T) *Storages {
	t.Helper()
	cfg := config.Storage{DB: config.DB{
		Path:        filepath.Join(t.TempDir(), "agent.db"),
		BusyTimeout: time.Second,
	}}
	s, err := NewStorages(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var t0 = time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)

func seedProject(t *testing.T, s *Storages, id string) {
	t.Helper()
	require.NoError(t, s.Projects.CreateProject(testContext(), models.Project{ID: id, Name: "Project " + id, CreatedAt: t0}))
}

func sampleSubmission(id, projectID string, status models.Status) models.Submission {
	return models.Submission{
		Record: models.Record{
			ID:        id,
			ProjectID: projectID,
			CreatedAt: t0,
			UpdatedAt: t0,
			Status:    status,
			Data: models.Fields(
				models.Field{Name: "household", Value: models.StringValue("H-12")},
				models.Field{Name: "members", Value: models.IntValue(4)},
			),
			Metadata: models.Metadata{models.MetaAgentID: "agent-1"},
		},
	}
}

// ── submissions ───────────────────────────────────────────────────────────────

func TestSubmissions_RoundTrip(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()
	seedProject(t, s, "p1")

	in := sampleSubmission("s1", "p1", models.StatusError)
	remote := in.Snapshot()
	remote.Data = remote.Data.Clone().Set("members", models.IntValue(5))
	in.RemoteCopy = &remote
	in.ErrorReason = "conflict"
	in.Review = models.ReviewFlagged
	synced := t0.Add(time.Minute)
	in.SyncedAt = &synced
	in.AgreeWith(t0.Add(30 * time.Second))

	require.NoError(t, s.Submissions.InsertSubmission(ctx, in))

	out, err := s.Submissions.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSubmissions_UpdateMovesBaseVersion(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()
	seedProject(t, s, "p1")
	sub := sampleSubmission("s1", "p1", models.StatusFinalized)
	require.NoError(t, s.Submissions.InsertSubmission(ctx, sub))

	before, err := s.Submissions.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, before.BaseVersion)

	version := t0.Add(123456789 * time.Nanosecond)
	sub.AgreeWith(version)
	require.NoError(t, s.Submissions.UpdateSubmission(ctx, sub))

	after, err := s.Submissions.GetSubmission(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, after.BaseVersion)
	assert.True(t, after.BaseVersion.Equal(version))
	assert.True(t, after.AgreesWith(models.Record{UpdatedAt: version}))
}

func TestSubmissions_InsertDuplicate(t *testing.T) {
	s := newTestStorages(t)
	seedProject(t, s, "p1")

	require.NoError(t, s.Submissions.InsertSubmission(testContext(), sampleSubmission("s1", "p1", models.StatusDraft)))
	err := s.Submissions.InsertSubmission(testContext(), sampleSubmission("s1", "p1", models.StatusDraft))

	assert.ErrorIs(t, err, ErrSubmissionExists)
}

func TestSubmissions_ListFiltersTombstonesAndStatus(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()
	seedProject(t, s, "p1")

	deleted := sampleSubmission("s3", "p1", models.StatusFinalized)
	deleted.DeletedAt = &t0
	for _, sub := range []models.Submission{
		sampleSubmission("s1", "p1", models.StatusFinalized),
		sampleSubmission("s2", "p1", models.StatusDraft),
		deleted,
	} {
		require.NoError(t, s.Submissions.InsertSubmission(ctx, sub))
	}

	finalized, err := s.Submissions.ListSubmissions(ctx, SubmissionFilter{
		ProjectID: "p1",
		Statuses:  []models.Status{models.StatusFinalized},
	})
	require.NoError(t, err)
	require.Len(t, finalized, 1)
	assert.Equal(t, "s1", finalized[0].ID)

	all, err := s.Submissions.ListSubmissions(ctx, SubmissionFilter{ProjectID: "p1", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSubmissions_UpdateMissing(t *testing.T) {
	s := newTestStorages(t)

	err := s.Submissions.UpdateSubmission(testContext(), sampleSubmission("ghost", "p1", models.StatusDraft))

	assert.ErrorIs(t, err, ErrSubmissionNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// ── intents ───────────────────────────────────────────────────────────────────

func TestIntents_AppendOrderAndRemoval(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()

	rec := sampleSubmission("s1", "p1", models.StatusQueued).Snapshot()
	var seqs []int64
	for i, kind := range []models.IntentKind{models.IntentAdd, models.IntentUpdate} {
		intent, err := s.Intents.Enqueue(ctx, models.NewUpsertIntent([]string{"i1", "i2"}[i], kind, rec, t0))
		require.NoError(t, err)
		seqs = append(seqs, intent.Seq)
	}
	del, err := s.Intents.Enqueue(ctx, models.NewDeleteIntent("i3", "p1", "s2", t0))
	require.NoError(t, err)
	seqs = append(seqs, del.Seq)

	assert.IsIncreasing(t, seqs)

	intents, err := s.Intents.ListIntents(ctx, IntentFilter{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, intents, 3)
	assert.Equal(t, []string{"i1", "i2", "i3"}, []string{intents[0].ID, intents[1].ID, intents[2].ID})
	require.NotNil(t, intents[0].Payload)
	assert.True(t, intents[0].Payload.SameContent(rec))
	assert.Nil(t, intents[2].Payload)

	require.NoError(t, s.Intents.RecordFailure(ctx, "i1", "remote unavailable"))
	count, err := s.Intents.CountSubmissionIntents(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.Intents.RemoveIntent(ctx, "i2"))
	assert.ErrorIs(t, s.Intents.RemoveIntent(ctx, "i2"), ErrIntentNotFound)

	removed, err := s.Intents.RemoveSubmissionIntents(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := s.Intents.ListIntents(ctx, IntentFilter{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "i3", remaining[0].ID)
}

func TestIntents_EnqueueRejectsMalformed(t *testing.T) {
	s := newTestStorages(t)

	_, err := s.Intents.Enqueue(testContext(), models.MutationIntent{ID: "i1", Kind: models.IntentAdd, SubmissionID: "s1", ProjectID: "p1"})

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestIntents_SurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	cfg := config.Storage{DB: config.DB{Path: path, BusyTimeout: time.Second}}

	first, err := NewStorages(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	_, err = first.Intents.Enqueue(testContext(), models.NewDeleteIntent("i1", "p1", "s1", t0))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStorages(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer second.Close()

	intents, err := second.Intents.ListIntents(testContext(), IntentFilter{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, "i1", intents[0].ID)
}

// ── transactions ──────────────────────────────────────────────────────────────

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()
	seedProject(t, s, "p1")
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx *Storages) error {
		if err := tx.Submissions.InsertSubmission(ctx, sampleSubmission("s1", "p1", models.StatusQueued)); err != nil {
			return err
		}
		if _, err := tx.Intents.Enqueue(ctx, models.NewUpsertIntent("i1", models.IntentAdd, sampleSubmission("s1", "p1", models.StatusQueued).Snapshot(), t0)); err != nil {
			return err
		}
		return boom
	})

	require.ErrorIs(t, err, boom)
	_, err = s.Submissions.GetSubmission(ctx, "s1")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
	count, err := s.Intents.CountSubmissionIntents(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWithinTx_CommitsAndNests(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()
	seedProject(t, s, "p1")

	err := s.WithinTx(ctx, func(tx *Storages) error {
		return tx.WithinTx(ctx, func(inner *Storages) error {
			return inner.Submissions.InsertSubmission(ctx, sampleSubmission("s1", "p1", models.StatusDraft))
		})
	})

	require.NoError(t, err)
	_, err = s.Submissions.GetSubmission(ctx, "s1")
	assert.NoError(t, err)
}

// ── usage ─────────────────────────────────────────────────────────────────────

func TestUsage_GrowsWithData(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()
	seedProject(t, s, "p1")

	before, err := s.Usage(ctx)
	require.NoError(t, err)
	assert.Positive(t, before)

	for i := 0; i < 200; i++ {
		sub := sampleSubmission("s"+strconv.Itoa(i), "p1", models.StatusDraft)
		sub.Data = sub.Data.Set("notes", models.StringValue(strings.Repeat("x", 512)))
		require.NoError(t, s.Submissions.InsertSubmission(ctx, sub))
	}

	after, err := s.Usage(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}
