package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/pdbsync/internal/models"
	"github.com/xelth-com/pdbsync/internal/testinfra"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	b := testinfra.NewBackend(t)
	ctx := context.Background()

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, b.Save(ctx, &models.Organization{Base: models.Base{ID: 5, Status: "ok", Updated: jan}, Name: "Example Org"}))
	require.NoError(t, b.Save(ctx, &models.Network{Base: models.Base{ID: 1, Status: "ok", Updated: jan}, OrgID: 5, Name: "Net One", ASN: 65001}))
	require.NoError(t, b.Save(ctx, &models.Network{Base: models.Base{ID: 2, Status: "ok", Updated: feb}, OrgID: 5, Name: "Net Two", ASN: 65002}))
	return NewRouter(b)
}

type response struct {
	Data []map[string]any `json:"data"`
	Meta map[string]any   `json:"meta"`
}

func get(t *testing.T, r *Router, path string) (int, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, gojson.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestListObjects(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		path string
		ids  []float64
	}{
		{"all", "/api/net", []float64{1, 2}},
		{"by id", "/api/net?id=2", []float64{2}},
		{"since", "/api/net?since=1704067201", []float64{2}},
		{"since one returns everything", "/api/net?since=1", []float64{1, 2}},
		{"cache file", "/net-0.json", []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, r, tt.path)
			require.Equal(t, http.StatusOK, code)
			var ids []float64
			for _, row := range body.Data {
				ids = append(ids, row["id"].(float64))
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestGetObjectDepth(t *testing.T) {
	r := newTestRouter(t)

	code, body := get(t, r, "/api/net/1")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Data, 1)
	assert.Equal(t, float64(5), body.Data[0]["org"])
	assert.Equal(t, "2024-01-01T00:00:00Z", body.Data[0]["updated"])

	_, body = get(t, r, "/api/net/1?depth=1")
	org, ok := body.Data[0]["org"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Example Org", org["name"])
}

func TestNotFound(t *testing.T) {
	r := newTestRouter(t)

	code, body := get(t, r, "/api/net/99")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found", body.Meta["error"])

	code, _ = get(t, r, "/api/bogus")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, r, "/api/net?depth=x")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"gorm/sqlite3"`)

	get(t, r, "/api/org")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pdbsync_http_requests_total")
}

func TestHandlerFoldsCase(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/API/NET/2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body response
	require.NoError(t, gojson.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Net Two", body.Data[0]["name"])
}
