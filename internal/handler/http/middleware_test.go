package http

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/logger"
)

// newTestHandler создаёт Handler, пишущий лог в buf.
func newTestHandler(buf *bytes.Buffer) *Handler {
	if buf == nil {
		return &Handler{logger: logger.Nop()}
	}
	return &Handler{logger: &logger.Logger{Logger: zerolog.New(buf)}}
}

// ── withTraceID ──

func TestWithTraceID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when absent", incoming: "", keep: false},
		{name: "caller id is kept", incoming: "trace-abc", keep: true},
		{name: "oversized id is replaced", incoming: strings.Repeat("x", maxTraceIDLen+1), keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newTestHandler(&buf)
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.FromRequest(r).Info().Msg("inside")
				seen = w.Header().Get(traceIDHeader)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
			if tt.incoming != "" {
				req.Header.Set(traceIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.withTraceID(next).ServeHTTP(rec, req)

			got := rec.Header().Get(traceIDHeader)
			require.NotEmpty(t, got)
			assert.Equal(t, got, seen)
			assert.Equal(t, tt.keep, got == tt.incoming)
			assert.Contains(t, buf.String(), `"trace_id":"`+got+`"`)
		})
	}
}

func TestWithTraceID_Unique(t *testing.T) {
	h := newTestHandler(nil)
	handler := h.withTraceID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	seen := make(map[string]struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			mu.Lock()
			seen[rec.Header().Get(traceIDHeader)] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
}

// ── withLogging ──

func TestWithLogging(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLevel string
	}{
		{name: "ok", status: http.StatusOK, body: "hello", wantLevel: `"level":"info"`},
		{name: "client error", status: http.StatusNotFound, body: "", wantLevel: `"level":"info"`},
		{name: "server error", status: http.StatusBadGateway, body: "upstream", wantLevel: `"level":"warn"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newTestHandler(&buf)
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			req := httptest.NewRequest(http.MethodPost, "/api/projects/p1/sync", nil)

			h.withTraceID(h.withLogging(next)).ServeHTTP(httptest.NewRecorder(), req)

			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, `"uri":"/api/projects/p1/sync"`)
			assert.Contains(t, out, `"method":"POST"`)
			assert.Contains(t, out, `"size":`+strconv.Itoa(len(tt.body)))
		})
	}
}

// ── responseWriter ──

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec}

	w.Write([]byte("abc"))
	w.WriteHeader(http.StatusTeapot)
	w.Write([]byte("de"))

	assert.Equal(t, http.StatusOK, w.status, "first write implies 200")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, w.size)
	assert.Equal(t, rec, w.Unwrap())
}

// ── withGZip ──

func gunzip(t *testing.T, raw []byte) string {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(out)
}

func TestWithGZip_CompressesJSON(t *testing.T) {
	body := `{"projects":[` + strings.Repeat(`{"name":"Survey"},`, 50) + `{}]}`
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()

	withGZip(next).ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Less(t, rec.Body.Len(), len(body))
	assert.Equal(t, body, gunzip(t, rec.Body.Bytes()))
}

func TestWithGZip_SkipsImages(t *testing.T) {
	png := []byte("\x89PNG\r\n")
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusCreated)
		w.Write(png)
	})
	req := httptest.NewRequest(http.MethodPost, "/api/projects/p1/transfer/export", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	withGZip(next).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestWithGZip_InflatesRequest(t *testing.T) {
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	zw.Write([]byte(`{"name":"Survey"}`))
	zw.Close()

	var got string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got = string(raw)
		r.Body.Close()
	})
	req := httptest.NewRequest(http.MethodPost, "/api/projects", &compressed)
	req.Header.Set("Content-Encoding", "gzip")

	withGZip(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, `{"name":"Survey"}`, got)
}

func TestWithGZip_RejectsBrokenStream(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()

	withGZip(next).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWrappedReadCloser_Close(t *testing.T) {
	closed := false
	rc := &wrappedReadCloser{Reader: strings.NewReader(""), OnClose: func() { closed = true }}

	assert.NoError(t, rc.Close())
	assert.True(t, closed)
	assert.NoError(t, (&wrappedReadCloser{Reader: strings.NewReader("")}).Close())
}
