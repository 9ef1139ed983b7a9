package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notioncal/internal/config"
	"notioncal/internal/model"
)

type staticReports struct {
	report model.Report
	ok     bool
}

func (s staticReports) LastReport() (model.Report, bool) { return s.report, s.ok }

func do(t *testing.T, h http.Handler, method, path string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewServer(config.DefaultConfig(), nil).Handler()
	rec := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReport(t *testing.T) {
	cfg := config.DefaultConfig()

	rec := do(t, NewServer(cfg, staticReports{}).Handler(), http.MethodGet, "/api/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, NewServer(cfg, staticReports{report: model.Report{Created: 3, Skipped: 1}, ok: true}).Handler(), http.MethodGet, "/api/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 3, got.Created)
	assert.Equal(t, 1, got.Skipped)

	rec = do(t, NewServer(cfg, staticReports{}).Handler(), http.MethodPost, "/api/report")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConfigHidesSecrets(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Notion.Token = "secret_abc"
	cfg.ICSPath = "https://example.test/private.ics?key=hidden"
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}

	rec := do(t, NewServer(cfg, nil).Handler(), http.MethodGet, "/api/config", "u", "p")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret_abc")
	assert.NotContains(t, rec.Body.String(), "hidden")
	assert.Contains(t, rec.Body.String(), `"window_days":2`)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	h := NewServer(cfg, staticReports{ok: true}).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/report").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/report", "admin", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/report", "admin", "pw").Code)
}

func TestBasicAuthDisabledWhenIncomplete(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin"}
	h := NewServer(cfg, staticReports{ok: true}).Handler()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/report").Code)
}
