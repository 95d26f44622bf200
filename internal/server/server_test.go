package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/widgetd/internal/idgen"
	"github.com/roach88/widgetd/internal/repository"
	"github.com/roach88/widgetd/internal/testutil"
	"github.com/roach88/widgetd/internal/widget"
)

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, repository.Repository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := widget.NewFactory(idgen.NewCounter(), testutil.NewDeterministicClock(), widget.WithLogger(logger))
	repo := repository.NewGuard(repository.NewInMemory(factory, repository.WithInMemoryLogger(logger)))

	opts = append([]Option{WithLogger(logger)}, opts...)
	srv := httptest.NewServer(New(repo, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv, repo
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func zs(ws []widget.Widget) []int {
	out := make([]int, len(ws))
	for i, w := range ws {
		out[i] = w.Z
	}
	return out
}

func TestServer_CreateGetList(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/widgets", `{"x":1,"y":2,"z":5,"width":10,"height":20}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "/widgets/1", resp.Header.Get("Location"))
	created := decode[widget.Widget](t, resp)
	assert.Equal(t, widget.ID(1), created.ID)
	assert.Equal(t, 5, created.Z)
	assert.Equal(t, testutil.Epoch, created.LastUpdatedAt)

	resp = do(t, http.MethodGet, srv.URL+"/widgets/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created, decode[widget.Widget](t, resp))

	do(t, http.MethodPost, srv.URL+"/widgets", `{"x":1,"y":2,"z":5,"width":10,"height":20}`)

	resp = do(t, http.MethodGet, srv.URL+"/widgets/all", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int{5, 6}, zs(decode[[]widget.Widget](t, resp)))
}

func TestServer_JSONFieldNames(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/widgets", `{"x":1,"y":2,"width":10,"height":20}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	raw := decode[map[string]any](t, resp)
	for _, key := range []string{"id", "x", "y", "z", "width", "height", "lastUpdatedAt"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "2024-01-01T00:00:00Z", raw["lastUpdatedAt"])
}

func TestServer_EmptyListIsArray(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/widgets/all", "")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(body))
}

func TestServer_Update(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, http.MethodPost, srv.URL+"/widgets", `{"x":1,"y":2,"z":1,"width":10,"height":20}`)
	do(t, http.MethodPost, srv.URL+"/widgets", `{"x":1,"y":2,"z":2,"width":10,"height":20}`)

	resp := do(t, http.MethodPut, srv.URL+"/widgets/2", `{"z":1,"width":99}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[widget.Widget](t, resp)
	assert.Equal(t, 1, updated.Z)
	assert.Equal(t, 99, updated.Width)
	assert.Equal(t, 1, updated.X)

	resp = do(t, http.MethodGet, srv.URL+"/widgets/all", "")
	all := decode[[]widget.Widget](t, resp)
	assert.Equal(t, []int{1, 2}, zs(all))
	assert.Equal(t, widget.ID(2), all[0].ID)
}

func TestServer_Delete(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, http.MethodPost, srv.URL+"/widgets", `{"x":1,"y":2,"width":10,"height":20}`)

	resp := do(t, http.MethodDelete, srv.URL+"/widgets/1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/widgets/1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "deleting twice is not an error")

	resp = do(t, http.MethodGet, srv.URL+"/widgets/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Pages(t *testing.T) {
	srv, repo := newTestServer(t, WithDefaultPageSize(2))
	for z := 0; z < 5; z++ {
		_, err := repo.Create(context.Background(), testutil.At(z))
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		url   string
		body  string
		wantZ []int
	}{
		{"defaults", "/widgets", "", []int{0, 1}},
		{"query", "/widgets?page=1&size=3", "", []int{3, 4}},
		{"body", "/widgets", `{"page":2}`, []int{4}},
		{"query beats body", "/widgets?page=0", `{"page":2,"size":5}`, []int{0, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodGet, srv.URL+tt.url, tt.body)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantZ, zs(decode[[]widget.Widget](t, resp)))
		})
	}
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, http.MethodPost, srv.URL+"/widgets", `{"x":1,"y":2,"width":10,"height":20}`)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantType   string
		wantMsg    string
	}{
		{"validation", http.MethodPost, "/widgets", `{"x":1,"y":2,"width":-1,"height":20}`, 400, "Bad Request", "width"},
		{"missing fields", http.MethodPost, "/widgets", `{}`, 400, "Bad Request", "x"},
		{"malformed json", http.MethodPost, "/widgets", `{"x":`, 400, "Bad Request", "malformed request body"},
		{"wrong type", http.MethodPut, "/widgets/1", `{"x":"left"}`, 400, "Bad Request", "malformed request body"},
		{"empty body", http.MethodPost, "/widgets", ``, 400, "Bad Request", "request body is required"},
		{"get missing", http.MethodGet, "/widgets/42", ``, 404, "Not Found", "widget 42 not found"},
		{"update missing", http.MethodPut, "/widgets/42", `{"x":1}`, 404, "Not Found", "widget 42 not found"},
		{"page out of range", http.MethodGet, "/widgets?page=9&size=1", ``, 404, "Not Found", "page 9 is out of bounds"},
		{"bad page param", http.MethodGet, "/widgets?page=first", ``, 400, "Bad Request", "page"},
		{"zero size", http.MethodGet, "/widgets?size=0", ``, 404, "Not Found", "size 0"},
		{"unknown route", http.MethodGet, "/gadgets", ``, 404, "Not Found", "no route"},
		{"bad method", http.MethodPatch, "/widgets/1", `{}`, 405, "Method Not Allowed", "PATCH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decode[ErrorResponse](t, resp)
			assert.Equal(t, tt.wantType, body.Type)
			assert.Contains(t, body.Message, tt.wantMsg)
		})
	}
}

func TestServer_RequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/widgets/all", "")
	generated := resp.Header.Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/widgets/all", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestServer_AccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	factory := widget.NewFactory(idgen.NewCounter(), testutil.NewDeterministicClock(), widget.WithLogger(logger))
	h := New(repository.NewInMemory(factory, repository.WithInMemoryLogger(logger)), WithLogger(logger)).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/7", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "http request")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "path=/widgets/7")
	assert.Contains(t, out, "request_id=")
}

// failingRepo returns err from every call.
type failingRepo struct {
	repository.Repository
	err error
}

func (f failingRepo) List(context.Context) ([]widget.Widget, error) { return nil, f.err }

func TestServer_InfrastructureErrorsAreHidden(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := New(failingRepo{err: errors.New("disk on fire")}, WithLogger(logger)).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/all", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
	assert.Contains(t, buf.String(), "disk on fire")
}

func TestServer_LockTimeoutIsUnavailable(t *testing.T) {
	h := New(failingRepo{err: errors.Join(errors.New("lock: acquire read"), context.DeadlineExceeded)}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/all", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
