package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/importer"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/pipeline"
)

// refFrom reads a context reference from query or form values.
func refFrom(v url.Values) (pipeline.ContextRef, error) {
	ref := pipeline.ContextRef{
		ExamName:        v.Get("exam"),
		SubjectName:     v.Get("subject"),
		SubCategoryName: v.Get("subCategory"),
		TrackName:       v.Get("track"),
	}
	if tt := v.Get("trackType"); tt != "" {
		t, err := period.ParseTrackType(tt)
		if err != nil {
			return ref, err
		}
		ref.ExpectedTrackType = t
	}
	if ref.ExamName == "" || ref.SubjectName == "" || ref.SubCategoryName == "" {
		return ref, errors.New("exam, subject and subCategory are required")
	}
	return ref, nil
}

// periodFrom reads a context reference, period type and period value.
func periodFrom(v url.Values) (pipeline.ContextRef, period.TrackType, string, error) {
	ref, err := refFrom(v)
	if err != nil {
		return ref, "", "", err
	}
	t, err := period.ParseTrackType(v.Get("periodType"))
	if err != nil {
		return ref, "", "", err
	}
	return ref, t, v.Get("periodValue"), nil
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (a *api) resolve(w http.ResponseWriter, r *http.Request) {
	var ref pipeline.ContextRef
	if err := a.decode(w, r, &ref); err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	res, err := a.svc.Resolve(r.Context(), ref)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *api) checkPeriod(w http.ResponseWriter, r *http.Request) {
	ref, t, value, err := periodFrom(r.URL.Query())
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	ex, err := a.svc.CheckPeriod(r.Context(), ref, t, value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ex)
}

func (a *api) deletePeriod(w http.ResponseWriter, r *http.Request) {
	ref, t, value, err := periodFrom(r.URL.Query())
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	res, err := a.svc.DeletePeriod(r.Context(), ref, t, value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// uploadPeriod accepts a JSON UploadRequest, a multipart form with a "file"
// part, or a raw YAML/xlsx body with the context in the query string.
func (a *api) uploadPeriod(w http.ResponseWriter, r *http.Request) {
	req, err := a.uploadRequest(w, r)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	res, err := a.svc.UploadPeriod(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !res.Success {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}

func (a *api) uploadRequest(w http.ResponseWriter, r *http.Request) (pipeline.UploadRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "", "application/json":
		var req pipeline.UploadRequest
		err := a.decode(w, r, &req)
		return req, err
	case "multipart/form-data":
		if err := r.ParseMultipartForm(a.maxBytes); err != nil {
			return pipeline.UploadRequest{}, fmt.Errorf("invalid multipart body: %w", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return pipeline.UploadRequest{}, fmt.Errorf("file part is required: %w", err)
		}
		defer f.Close()
		format, err := importer.FormatFor(hdr.Header.Get("Content-Type"), hdr.Filename)
		if err != nil {
			return pipeline.UploadRequest{}, err
		}
		return uploadFrom(r.MultipartForm.Value, format, f)
	default:
		format, err := importer.FormatFor(mediaType, "")
		if err != nil {
			return pipeline.UploadRequest{}, err
		}
		return uploadFrom(r.URL.Query(), format, http.MaxBytesReader(w, r.Body, a.maxBytes))
	}
}

func uploadFrom(v url.Values, format importer.Format, body io.Reader) (pipeline.UploadRequest, error) {
	ref, t, value, err := periodFrom(v)
	if err != nil {
		return pipeline.UploadRequest{}, err
	}
	force, err := parseBool(v.Get("force"))
	if err != nil {
		return pipeline.UploadRequest{}, err
	}
	items, err := importer.Parse(format, body)
	if err != nil {
		return pipeline.UploadRequest{}, err
	}
	return pipeline.UploadRequest{Ref: ref, PeriodType: t, PeriodValue: value, Items: items, Force: force}, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("force must be a boolean, got %q", s)
	}
	return b, nil
}

type replaceRequest struct {
	Ref        pipeline.ContextRef `json:"context"`
	PeriodType period.TrackType    `json:"periodType"`
	Items      []content.Input     `json:"items"`
}

func (a *api) replacePeriod(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := a.decode(w, r, &req); err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	res, err := a.svc.ReplacePeriod(r.Context(), req.Ref, req.PeriodType, req.Items)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type validateRequest struct {
	ExamID    string          `json:"examId"`
	SubjectID string          `json:"subjectId"`
	Items     []content.Input `json:"items"`
}

func (a *api) validateTopics(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := a.decode(w, r, &req); err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	report, err := a.svc.ValidateTopics(r.Context(), req.ExamID, req.SubjectID, req.Items)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (a *api) questionsForTopic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := a.svc.QuestionsForTopic(r.Context(), q.Get("examId"), q.Get("subjectId"), chi.URLParam(r, "topicID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"questions": items, "count": len(items)})
}

type assignRequest struct {
	Ref         pipeline.ContextRef `json:"context"`
	PeriodType  period.TrackType    `json:"periodType"`
	PeriodValue string              `json:"periodValue"`
	TopicIDs    []string            `json:"topicIds"`
	Force       bool                `json:"force"`
}

func (a *api) assignTopics(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := a.decode(w, r, &req); err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	res, err := a.svc.AssignTopics(r.Context(), req.Ref, req.PeriodType, req.PeriodValue, req.TopicIDs, req.Force)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *api) topicsForPeriod(w http.ResponseWriter, r *http.Request) {
	ref, t, value, err := periodFrom(r.URL.Query())
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	topics, err := a.svc.TopicsForPeriod(r.Context(), ref, t, value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (a *api) listPeriods(w http.ResponseWriter, r *http.Request) {
	ref, err := refFrom(r.URL.Query())
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	periods, err := a.svc.ListPeriods(r.Context(), ref)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (a *api) group(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, err := refFrom(q)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	by, err := period.ParseGroupBy(q.Get("groupBy"))
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	groups, err := a.svc.Group(r.Context(), ref, by)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"groupBy": by, "groups": groups})
}

func (a *api) updateItem(w http.ResponseWriter, r *http.Request) {
	ref, t, value, err := periodFrom(r.URL.Query())
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	var patch content.Patch
	if err := a.decode(w, r, &patch); err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	it, err := a.svc.UpdateItem(r.Context(), ref, t, value, itemName(r), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, it)
}

func (a *api) deleteItem(w http.ResponseWriter, r *http.Request) {
	ref, t, value, err := periodFrom(r.URL.Query())
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	if err := a.svc.DeleteItem(r.Context(), ref, t, value, itemName(r)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func itemName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return strings.TrimSpace(name)
}
