package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-content/internal/platform/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantDebug bool
		wantJSON  bool
	}{
		{"default json info", config.LogConfig{Level: "info", Format: "json"}, false, true},
		{"debug text", config.LogConfig{Level: "DEBUG", Format: "text"}, true, false},
		{"unknown level falls back to info", config.LogConfig{Level: "loud", Format: "json"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.cfg)

			if got := logger.Enabled(t.Context(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			logger.Info("hello")
			if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
				t.Errorf("output %q json = %v, want %v", buf.String(), got, tt.wantJSON)
			}
		})
	}
}

func testConfig(t *testing.T, seedDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080, MaxUploadMB: 1},
		Content: config.ContentConfig{Store: config.StoreMemory, SeedPath: seedDir, YearWindow: 5},
		Log:     config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestNewApp_MemoryStoreWithSeed(t *testing.T) {
	a, err := newApp(t.Context(), testConfig(t, filepath.Join("..", "..", "seeds")))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(a.close)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{"healthz", http.MethodGet, "/healthz", "", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", "", http.StatusOK},
		{
			"seeded track resolves", http.MethodPost, "/api/v1/context/resolve",
			`{"examName":"wassce","subjectName":"Biology","subCategoryName":"studyplan","trackName":"Biology Weekly"}`,
			http.StatusOK,
		},
		{
			"seeded years track lists periods", http.MethodGet,
			"/api/v1/periods?" + url.Values{
				"exam": {"wassce"}, "subject": {"Biology"}, "subCategory": {"PastQuestions"}, "track": {"Past Papers"},
			}.Encode(),
			"", http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			a.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestNewApp_MissingSeedDirIsSkipped(t *testing.T) {
	a, err := newApp(t.Context(), testConfig(t, filepath.Join(t.TempDir(), "absent")))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(a.close)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/context/resolve",
		strings.NewReader(`{"examName":"wassce","subjectName":"Biology","subCategoryName":"studyplan"}`))
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 on an empty hierarchy", rec.Code)
	}
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Kind != "context_not_found" {
		t.Errorf("error kind = %q, want context_not_found", body.Error.Kind)
	}
}

func TestNewApp_InvalidSeedFails(t *testing.T) {
	dir := t.TempDir()
	bad := "exam: wassce\nsub_categories:\n  - name: studyplan\n    tracks:\n      - name: X\n        track_type: fortnights\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := newApp(t.Context(), testConfig(t, dir)); err == nil {
		t.Fatal("newApp() should fail on an unknown track type")
	}
}
