package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/curriculum"
	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/httpapi"
	"github.com/p-n-ai/pai-content/internal/pipeline"
	"github.com/p-n-ai/pai-content/internal/topic"
)

const seed = `
exam: wassce
subjects:
  - name: Biology
    topics:
      - name: Genetics
      - name: Ecology
sub_categories:
  - name: studyplan
    tracks:
      - name: Biology Weekly
        track_type: weeks
        duration: 12
  - name: PastQuestions
    tracks:
      - name: Past Papers
        track_type: years
`

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("connection refused") }

func newServer(t *testing.T, opts httpapi.Options) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seed), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	hs := hierarchy.NewMemoryStore()
	ts := topic.NewMemoryStore()
	if _, err := loader.Apply(t.Context(), hs, ts); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	svc, err := pipeline.New(pipeline.Deps{Hierarchy: hs, Topics: ts, Assignments: ts, Content: content.NewMemoryStore()}, pipeline.Config{})
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}

	srv := httptest.NewServer(httpapi.NewRouter(svc, opts))
	t.Cleanup(srv.Close)
	return srv
}

func weeklyQuery(extra ...string) string {
	v := url.Values{
		"exam":        {"wassce"},
		"subject":     {"Biology"},
		"subCategory": {"studyplan"},
		"track":       {"Biology Weekly"},
	}
	for i := 0; i+1 < len(extra); i += 2 {
		v.Set(extra[i], extra[i+1])
	}
	return v.Encode()
}

func do(t *testing.T, method, target, contentType string, body []byte) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, target, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, target, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, target, err)
		}
	}
	return resp.StatusCode, out
}

func errorKind(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	k, _ := e["kind"].(string)
	return k
}

func TestHealth(t *testing.T) {
	srv := newServer(t, httpapi.Options{})

	if status, body := do(t, http.MethodGet, srv.URL+"/healthz", "", nil); status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /healthz = %d %v", status, body)
	}
	if status, _ := do(t, http.MethodGet, srv.URL+"/readyz", "", nil); status != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", status)
	}

	failing := newServer(t, httpapi.Options{Ready: map[string]httpapi.Checker{"database": failingCheck{}}})
	status, body := do(t, http.MethodGet, failing.URL+"/readyz", "", nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz with failing database = %d, want 503", status)
	}
	if failed, _ := body["failed"].(map[string]any); failed["database"] == nil {
		t.Errorf("body = %v, want database failure", body)
	}
}

func TestUploadPeriod_JSON(t *testing.T) {
	srv := newServer(t, httpapi.Options{})
	body := []byte(`{
		"context": {"examName": "wassce", "subjectName": "Biology", "subCategoryName": "studyplan", "trackName": "Biology Weekly"},
		"periodType": "weeks",
		"periodValue": "5",
		"items": [{"name": "cells"}, {"name": "tissues"}, {"name": "organs"}]
	}`)

	status, res := do(t, http.MethodPost, srv.URL+"/api/v1/periods/upload", "application/json", body)
	if status != http.StatusCreated || res["success"] != true {
		t.Fatalf("first upload = %d %v", status, res)
	}

	status, res = do(t, http.MethodPost, srv.URL+"/api/v1/periods/upload", "application/json", body)
	if status != http.StatusConflict || errorKind(res) != "conflict" {
		t.Fatalf("second upload = %d %v, want 409 conflict", status, res)
	}
	details := res["error"].(map[string]any)["details"].(map[string]any)
	if details["count"] != float64(3) {
		t.Errorf("conflict details = %v, want count 3", details)
	}

	status, res = do(t, http.MethodGet, srv.URL+"/api/v1/periods/check?"+weeklyQuery("periodType", "weeks", "periodValue", "5"), "", nil)
	if status != http.StatusOK || res["count"] != float64(3) {
		t.Errorf("check = %d %v, want 3", status, res)
	}
}

func TestUploadPeriod_Multipart(t *testing.T) {
	srv := newServer(t, httpapi.Options{})

	f := excelize.NewFile()
	rows := [][]any{
		{"Name", "Topic", "Question", "Options", "Answer"},
		{"q1", "Genetics", "What is a gene?", "A|B|C", "A"},
		{"q2", "ecology", "What is a niche?", "A|B", "B"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	xlsx, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"exam": "wassce", "subject": "Biology", "subCategory": "PastQuestions", "track": "Past Papers",
		"periodType": "years", "periodValue": "2021",
	} {
		_ = mw.WriteField(k, v)
	}
	part, _ := mw.CreateFormFile("file", "2021.xlsx")
	part.Write(xlsx.Bytes())
	mw.Close()

	status, res := do(t, http.MethodPost, srv.URL+"/api/v1/periods/upload", mw.FormDataContentType(), buf.Bytes())
	if status != http.StatusCreated {
		t.Fatalf("multipart upload = %d %v", status, res)
	}
	created := res["results"].(map[string]any)["created"].([]any)
	if len(created) != 2 {
		t.Errorf("created = %d, want 2", len(created))
	}
	if first := created[0].(map[string]any); first["name"] != "year2021_q1" || first["topicId"] == "" {
		t.Errorf("created[0] = %v", first)
	}
}

func TestUploadPeriod_YAMLRejectsUnknownTopic(t *testing.T) {
	srv := newServer(t, httpapi.Options{})
	q := url.Values{
		"exam": {"wassce"}, "subject": {"Biology"}, "subCategory": {"PastQuestions"}, "track": {"Past Papers"},
		"periodType": {"years"}, "periodValue": {"2020"},
	}
	body := []byte(`
- name: q1
  question: What is DNA?
  topic: Genetics
- name: q2
  question: Who was Newton?
  topic: Physics
`)

	status, res := do(t, http.MethodPost, srv.URL+"/api/v1/periods/upload?"+q.Encode(), "application/yaml", body)
	if status != http.StatusUnprocessableEntity || errorKind(res) != "topic_validation_failed" {
		t.Errorf("yaml upload = %d %v, want 422 topic_validation_failed", status, res)
	}
}

func TestErrors(t *testing.T) {
	srv := newServer(t, httpapi.Options{})

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantKind   string
	}{
		{
			name: "unknown track without fallback", method: http.MethodPost, target: "/api/v1/context/resolve",
			body:       `{"examName":"wassce","subjectName":"Biology","subCategoryName":"studyplan","trackName":"Nope"}`,
			wantStatus: http.StatusNotFound, wantKind: "context_not_found",
		},
		{
			name: "bad period type", method: http.MethodGet,
			target:     "/api/v1/periods/check?" + weeklyQuery("periodType", "fortnights", "periodValue", "1"),
			wantStatus: http.StatusBadRequest, wantKind: "invalid_input",
		},
		{
			name: "week out of range", method: http.MethodGet,
			target:     "/api/v1/periods/check?" + weeklyQuery("periodType", "weeks", "periodValue", "99"),
			wantStatus: http.StatusUnprocessableEntity, wantKind: "period_out_of_range",
		},
		{
			name: "missing item", method: http.MethodDelete,
			target:     "/api/v1/items/week1_ghost?" + weeklyQuery("periodType", "weeks", "periodValue", "1"),
			wantStatus: http.StatusNotFound, wantKind: "item_not_found",
		},
		{
			name: "unknown JSON field", method: http.MethodPost, target: "/api/v1/topics/validate",
			body:       `{"exam":"wassce"}`,
			wantStatus: http.StatusBadRequest, wantKind: "invalid_input",
		},
		{
			name: "group by month on weekly track", method: http.MethodGet,
			target:     "/api/v1/content/grouped?" + weeklyQuery("groupBy", "month"),
			wantStatus: http.StatusUnprocessableEntity, wantKind: "track_type_mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := do(t, tt.method, srv.URL+tt.target, "application/json", []byte(tt.body))
			if status != tt.wantStatus || errorKind(res) != tt.wantKind {
				t.Errorf("%s %s = %d %v, want %d %s", tt.method, tt.target, status, res, tt.wantStatus, tt.wantKind)
			}
		})
	}
}

func TestListPeriodsAndGroup(t *testing.T) {
	srv := newServer(t, httpapi.Options{})
	upload := `{"context":{"examName":"wassce","subjectName":"Biology","subCategoryName":"studyplan","trackName":"Biology Weekly"},
		"periodType":"weeks","periodValue":"2","items":[{"name":"a"}]}`
	if status, res := do(t, http.MethodPost, srv.URL+"/api/v1/periods/upload", "application/json", []byte(upload)); status != http.StatusCreated {
		t.Fatalf("upload = %d %v", status, res)
	}

	status, res := do(t, http.MethodGet, srv.URL+"/api/v1/periods?"+weeklyQuery(), "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET /periods = %d %v", status, res)
	}
	periods := res["periods"].([]any)
	if len(periods) != 12 || periods[1].(map[string]any)["activeCount"] != float64(1) {
		t.Errorf("periods = %d, week 2 = %v", len(periods), periods[1])
	}

	status, res = do(t, http.MethodGet, srv.URL+"/api/v1/content/grouped?"+weeklyQuery("groupBy", "week"), "", nil)
	if status != http.StatusOK {
		t.Fatalf("GET /content/grouped = %d %v", status, res)
	}
	if groups := res["groups"].([]any); len(groups) != 1 || !strings.HasPrefix(groups[0].(map[string]any)["label"].(string), "Week 2") {
		t.Errorf("groups = %v", groups)
	}
}
