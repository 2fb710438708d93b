// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transfer

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/models"
)

const fixtureProjectID = "0192f0c1-aaaa-7000-8000-000000000001"

func fixtureProject() models.Project {
	return models.Project{ID: fixtureProjectID, Name: "Household Survey <North> & Co", RemoteID: "r-9"}
}

func fixtureSubmissions(t *testing.T) []models.Submission {
	t.Helper()

	score, err := models.NumberValue("4.50")
	require.NoError(t, err)
	syncedAt := time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)

	return []models.Submission{
		{
			Record: models.Record{
				ID:        "0192f0c1-0000-7000-8000-0000000000a1",
				ProjectID: fixtureProjectID,
				CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 123456789, time.UTC),
				UpdatedAt: time.Date(2026, 4, 1, 9, 5, 0, 0, time.UTC),
				Status:    models.StatusFinalized,
				Data: models.Fields(
					models.Field{Name: "village", Value: models.StringValue("Kasama")},
					models.Field{Name: "household_size", Value: models.IntValue(5)},
					models.Field{Name: "has_well", Value: models.BoolValue(true)},
					models.Field{Name: "notes", Value: models.NullValue()},
				),
				Metadata: models.Metadata{
					models.MetaFinalizedAt: "2026-04-01T09:05:00Z",
					models.MetaDeviceID:    "tab-03",
					models.MetaAgentID:     "ag-7",
				},
			},
			Review:      models.ReviewApproved,
			ErrorReason: "stays local",
		},
		{
			Record: models.Record{
				ID:        "0192f0c1-0000-7000-8000-0000000000a2",
				ProjectID: fixtureProjectID,
				CreatedAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
				UpdatedAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
				Status:    models.StatusSynced,
				Data: models.Fields(
					models.Field{Name: "village", Value: models.StringValue("Mkushi – Chité")},
					models.Field{Name: "gps", Value: models.BlobValue([]byte{0, 1, 2, 0xfe, 0xff})},
					models.Field{Name: "score", Value: score},
				),
			},
			SyncedAt: &syncedAt,
		},
	}
}

var fixtureNow = time.Date(2026, 4, 3, 12, 0, 0, 0, time.UTC)

func buildFixture(t *testing.T) models.TransferPayload {
	t.Helper()
	p, err := Build(fixtureProject(), fixtureSubmissions(t), fixtureNow)
	require.NoError(t, err)
	return p
}

func encodeFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := Encode(buildFixture(t))
	require.NoError(t, err)
	return raw
}

// ── Build / Encode ───────────────────────────────────────────────────────────

func TestEncode_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "payload", encodeFixture(t))
}

func TestBuild_StripsLocalFields(t *testing.T) {
	p := buildFixture(t)

	require.Equal(t, 2, p.Count)
	require.Len(t, p.Data, 2)
	assert.Equal(t, time.Date(2026, 4, 1, 9, 0, 0, 123000000, time.UTC), p.Data[0].CreatedAt)
	assert.Nil(t, p.Data[1].Metadata)
	assert.Len(t, p.Signature, 64)
	assert.NoError(t, Verify(p))
}

func TestBuild_RejectsInvalidUTF8(t *testing.T) {
	subs := fixtureSubmissions(t)
	subs[0].Data = subs[0].Data.Set("village", models.StringValue("bad\xff"))

	_, err := Build(fixtureProject(), subs, fixtureNow)

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestBuild_RejectsForeignSubmission(t *testing.T) {
	subs := fixtureSubmissions(t)
	subs[1].ProjectID = "other"

	_, err := Build(fixtureProject(), subs, fixtureNow)

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEncode_Empty(t *testing.T) {
	p, err := Build(fixtureProject(), nil, fixtureNow)
	require.NoError(t, err)

	raw, err := Encode(p)
	require.NoError(t, err)

	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Zero(t, got.Count)
	assert.Empty(t, got.Data)
}

// ── Parse ────────────────────────────────────────────────────────────────────

func TestParse_RoundTrip(t *testing.T) {
	want := buildFixture(t)
	raw, err := Encode(want)
	require.NoError(t, err)

	got, err := Parse(raw)

	require.NoError(t, err)
	assert.Equal(t, want.ProjectID, got.ProjectID)
	assert.Equal(t, want.ProjectName, got.ProjectName)
	assert.Equal(t, want.Signature, got.Signature)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	require.Len(t, got.Data, len(want.Data))
	for i := range want.Data {
		assert.Equal(t, want.Data[i].ID, got.Data[i].ID)
		assert.Equal(t, want.Data[i].Status, got.Data[i].Status)
		assert.Equal(t, want.Data[i].Metadata, got.Data[i].Metadata)
		assert.True(t, want.Data[i].CreatedAt.Equal(got.Data[i].CreatedAt))
		assert.True(t, want.Data[i].Data.Equal(got.Data[i].Data))
	}

	again, err := Encode(got)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestParse_ToleratesTrailingWhitespace(t *testing.T) {
	raw := append(encodeFixture(t), " \r\n\t\n"...)

	_, err := Parse(raw)

	assert.NoError(t, err)
}

func TestParse_EverySingleByteFlipIsIntegrityError(t *testing.T) {
	raw := encodeFixture(t)

	for i := range raw {
		tampered := bytes.Clone(raw)
		tampered[i] ^= 0x01

		_, err := Parse(tampered)
		if !assert.ErrorIs(t, err, models.ErrIntegrity, "flip at offset %d", i) {
			return
		}
	}
}

func TestParse_IntegrityErrors(t *testing.T) {
	raw := encodeFixture(t)
	body := raw[:len(raw)-trailerLen]

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty", raw: nil},
		{name: "no signature", raw: append(bytes.Clone(body), '}')},
		{name: "uppercase hex", raw: bytes.ToUpper(raw)},
		{name: "truncated", raw: raw[:len(raw)-3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			assert.ErrorIs(t, err, models.ErrIntegrity)
		})
	}
}

// signBody appends a valid signature to an arbitrary body so decoding
// failures can be exercised past verification.
func signBody(body string) []byte {
	out := append([]byte(body[:len(body)-1]), signaturePrefix...)
	out = append(out, digest([]byte(body))...)
	return append(out, signatureSuffix...)
}

func TestParse_ValidationErrors(t *testing.T) {
	rec := `{"id":"s1","projectId":"p","createdAt":"2026-04-01T09:00:00.000Z","updatedAt":"2026-04-01T09:00:00.000Z","status":"finalized","data":{},"metadata":{}}`

	tests := []struct {
		name string
		body string
	}{
		{name: "count mismatch", body: `{"projectId":"p","projectName":"n","count":2,"data":[` + rec + `],"generatedAt":"2026-04-01T09:00:00.000Z"}`},
		{name: "missing projectName", body: `{"projectId":"p","count":1,"data":[` + rec + `],"generatedAt":"2026-04-01T09:00:00.000Z"}`},
		{name: "missing generatedAt", body: `{"projectId":"p","projectName":"n","count":1,"data":[` + rec + `]}`},
		{name: "count as string", body: `{"projectId":"p","projectName":"n","count":"1","data":[` + rec + `],"generatedAt":"2026-04-01T09:00:00.000Z"}`},
		{name: "data not array", body: `{"projectId":"p","projectName":"n","count":0,"data":{},"generatedAt":"2026-04-01T09:00:00.000Z"}`},
		{name: "record without status", body: `{"projectId":"p","projectName":"n","count":1,"data":[{"id":"s1","projectId":"p","createdAt":"2026-04-01T09:00:00.000Z","updatedAt":"2026-04-01T09:00:00.000Z","data":{},"metadata":{}}],"generatedAt":"2026-04-01T09:00:00.000Z"}`},
		{name: "unknown status", body: `{"projectId":"p","projectName":"n","count":1,"data":[{"id":"s1","projectId":"p","createdAt":"2026-04-01T09:00:00.000Z","updatedAt":"2026-04-01T09:00:00.000Z","status":"archived","data":{},"metadata":{}}],"generatedAt":"2026-04-01T09:00:00.000Z"}`},
		{name: "array field value", body: `{"projectId":"p","projectName":"n","count":1,"data":[{"id":"s1","projectId":"p","createdAt":"2026-04-01T09:00:00.000Z","updatedAt":"2026-04-01T09:00:00.000Z","status":"draft","data":{"a":[1]},"metadata":{}}],"generatedAt":"2026-04-01T09:00:00.000Z"}`},
		{name: "unknown member", body: `{"projectId":"p","projectName":"n","count":0,"data":[],"generatedAt":"2026-04-01T09:00:00.000Z","extra":1}`},
		{name: "bad time", body: `{"projectId":"p","projectName":"n","count":0,"data":[],"generatedAt":"yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(signBody(tt.body))

			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.NotErrorIs(t, err, models.ErrIntegrity)
		})
	}
}

func TestEncode_RefusesPayloadEditedAfterBuild(t *testing.T) {
	p := buildFixture(t)
	p.ProjectName = "Renamed"

	raw, err := Encode(p)

	assert.ErrorIs(t, err, models.ErrIntegrity)
	assert.Nil(t, raw)
}

func TestEncode_SignsUnsignedPayload(t *testing.T) {
	p := buildFixture(t)
	p.Signature = ""

	raw, err := Encode(p)

	require.NoError(t, err)
	assert.Equal(t, encodeFixture(t), raw)
}

func TestVerify_DetectsTampering(t *testing.T) {
	p := buildFixture(t)
	p.Data[0].Data = p.Data[0].Data.Set("village", models.StringValue("Elsewhere"))

	assert.ErrorIs(t, Verify(p), models.ErrIntegrity)
}
