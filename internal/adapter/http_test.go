// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

func newTestAdapter(t *testing.T, serverURL, token string) *httpRemoteAdapter {
	t.Helper()
	a, err := NewHTTPRemoteAdapter(config.Adapter{
		HTTPAddress:    serverURL,
		Token:          token,
		RequestTimeout: 2 * time.Second,
	}, logger.Nop())
	require.NoError(t, err)
	return a.(*httpRemoteAdapter)
}

func sampleRecord() models.Record {
	return models.Record{
		ID:        "0192f0c1-0000-7000-8000-000000000001",
		ProjectID: "p1",
		CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 4, 1, 9, 5, 0, 0, time.UTC),
		Status:    models.StatusFinalized,
		Data:      models.Fields(models.Field{Name: "village", Value: models.StringValue("Kasama")}),
	}
}

func jwtWithExp(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

// ── constructor ──────────────────────────────────────────────────────────────

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "records.example:8080", want: "http://records.example:8080"},
		{in: "https://records.example/", want: "https://records.example"},
		{in: "  ", wantErr: true},
		{in: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewHTTPRemoteAdapter_InvalidAddress(t *testing.T) {
	_, err := NewHTTPRemoteAdapter(config.Adapter{}, logger.Nop())

	assert.ErrorIs(t, err, ErrInvalidAddress)
}

// ── Submit ───────────────────────────────────────────────────────────────────

func TestSubmit_Success(t *testing.T) {
	rec := sampleRecord()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/projects/r-1/submissions", r.URL.Path)
		assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("If-Match"), "an unconditional push carries no version")

		var got models.Record
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, rec.ID, got.ID)
		assert.True(t, got.SameContent(rec))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + rec.ID + `","receivedAt":"2026-04-01T09:06:00Z"}`))
	}))
	defer srv.Close()

	ack, err := newTestAdapter(t, srv.URL, "opaque-token").Submit(context.Background(), "r-1", rec, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, rec.ID, ack.ID)
	assert.Equal(t, time.Date(2026, 4, 1, 9, 6, 0, 0, time.UTC), ack.ReceivedAt)
}

func TestSubmit_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusBadRequest, want: models.ErrValidation},
		{status: http.StatusUnprocessableEntity, want: models.ErrValidation},
		{status: http.StatusConflict, want: models.ErrConflict},
		{status: http.StatusPreconditionFailed, want: models.ErrConflict},
		{status: http.StatusUnauthorized, want: ErrUnauthorized},
		{status: http.StatusForbidden, want: ErrUnauthorized},
		{status: http.StatusNotFound, want: models.ErrNotFound},
		{status: http.StatusRequestTimeout, want: models.ErrNetwork},
		{status: http.StatusTooManyRequests, want: models.ErrNetwork},
		{status: http.StatusInternalServerError, want: models.ErrNetwork},
		{status: http.StatusServiceUnavailable, want: models.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer srv.Close()

			_, err := newTestAdapter(t, srv.URL, "").Submit(context.Background(), "r-1", sampleRecord(), time.Time{})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want == models.ErrNetwork, models.Retryable(err))
		})
	}
}

func TestSubmit_SendsBaseVersion(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 5, 0, 250000000, time.FixedZone("CAT", 2*60*60))
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("If-Match")
		w.WriteHeader(http.StatusPreconditionFailed)
		_, _ = w.Write([]byte("remote copy changed"))
	}))
	defer srv.Close()

	_, err := newTestAdapter(t, srv.URL, "").Submit(context.Background(), "r-1", sampleRecord(), base)

	assert.Equal(t, `"2026-04-01T07:05:00.25Z"`, got)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.False(t, models.Retryable(err))
}

func TestSubmit_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	a := newTestAdapter(t, srv.URL, "")
	a.client.SetTimeout(50 * time.Millisecond)

	_, err := a.Submit(context.Background(), "r-1", sampleRecord(), time.Time{})

	assert.ErrorIs(t, err, models.ErrNetwork)
}

func TestSubmit_TransportErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestAdapter(t, url, "").Submit(context.Background(), "r-1", sampleRecord(), time.Time{})

	assert.ErrorIs(t, err, models.ErrNetwork)
}

func TestSubmit_CanceledContextIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAdapter(t, srv.URL, "").Submit(ctx, "r-1", sampleRecord(), time.Time{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, models.Retryable(err))
}

// ── token ────────────────────────────────────────────────────────────────────

func TestAuthedRequest_ExpiredJWTFailsFast(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, jwtWithExp(t, time.Now().Add(-time.Minute)))
	_, err := a.Fetch(context.Background(), "r-1", time.Time{})

	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.False(t, models.Retryable(err))
	assert.Zero(t, calls)
}

func TestAuthedRequest_ValidJWTIsSent(t *testing.T) {
	token := jwtWithExp(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestAdapter(t, srv.URL, token).Fetch(context.Background(), "r-1", time.Time{})

	assert.NoError(t, err)
}

// ── Fetch ────────────────────────────────────────────────────────────────────

func TestFetch_SendsSinceAndDecodes(t *testing.T) {
	since := time.Date(2026, 4, 1, 0, 0, 0, 123000000, time.UTC)
	rec := sampleRecord()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/projects/r-1/submissions", r.URL.Path)
		assert.Equal(t, "2026-04-01T00:00:00.123Z", r.URL.Query().Get("since"))

		raw, err := json.Marshal([]models.Record{rec})
		require.NoError(t, err)
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	batch, err := newTestAdapter(t, srv.URL, "").Fetch(context.Background(), "r-1", since)

	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, rec.ID, batch.Records[0].ID)
	assert.True(t, batch.Records[0].SameContent(rec))
}

func TestFetch_CursorFromDateHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", "Wed, 01 Apr 2026 10:00:00 GMT")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	batch, err := newTestAdapter(t, srv.URL, "").Fetch(context.Background(), "r-1", time.Time{})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), batch.Cursor)
}

func TestFetch_UnparsableDateLeavesCursorZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", "yesterday")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	batch, err := newTestAdapter(t, srv.URL, "").Fetch(context.Background(), "r-1", time.Time{})

	require.NoError(t, err)
	assert.True(t, batch.Cursor.IsZero())
}

func TestFetch_ZeroSinceOmitsParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("since"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	batch, err := newTestAdapter(t, srv.URL, "").Fetch(context.Background(), "r-1", time.Time{})

	require.NoError(t, err)
	assert.Empty(t, batch.Records)
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"x","status":"archived"}]`))
	}))
	defer srv.Close()

	_, err := newTestAdapter(t, srv.URL, "").Fetch(context.Background(), "r-1", time.Time{})

	assert.ErrorIs(t, err, models.ErrValidation)
}

// ── RegisterProject ──────────────────────────────────────────────────────────

func TestRegisterProject_Create(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/projects", r.URL.Path)

		var def models.ProjectDefinition
		require.NoError(t, json.NewDecoder(r.Body).Decode(&def))
		assert.Equal(t, "Household survey", def.Name)

		_, _ = w.Write([]byte(`{"remoteId":"r-42"}`))
	}))
	defer srv.Close()

	id, err := newTestAdapter(t, srv.URL, "").RegisterProject(context.Background(), models.ProjectDefinition{Name: "Household survey"})

	require.NoError(t, err)
	assert.Equal(t, "r-42", id)
}

func TestRegisterProject_Update(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/projects/r-42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	id, err := newTestAdapter(t, srv.URL, "").RegisterProject(context.Background(), models.ProjectDefinition{RemoteID: "r-42", Name: "v2"})

	require.NoError(t, err)
	assert.Equal(t, "r-42", id)
}

func TestRegisterProject_MissingRemoteID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestAdapter(t, srv.URL, "").RegisterProject(context.Background(), models.ProjectDefinition{Name: "x"})

	assert.ErrorIs(t, err, models.ErrValidation)
}

// ── Delete ───────────────────────────────────────────────────────────────────

func TestDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/api/v1/projects/r-1/submissions/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "/api/v1/projects/r-1/submissions/s-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	a := newTestAdapter(t, srv.URL, "")

	assert.NoError(t, a.Delete(context.Background(), "r-1", "s-1"))
	assert.ErrorIs(t, a.Delete(context.Background(), "r-1", "gone"), models.ErrNotFound)
}
