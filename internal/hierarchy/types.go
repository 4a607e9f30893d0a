// Package hierarchy holds the exam → subject → sub-category → track entities
// that scope every period-keyed record. These entities are read-only inputs to
// the content pipeline.
package hierarchy

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-content/internal/period"
)

// ErrNotFound is returned by repository lookups that match nothing.
var ErrNotFound = errors.New("hierarchy: not found")

// ErrTrackTypeChanged is returned when a write would change a track's type.
var ErrTrackTypeChanged = errors.New("hierarchy: track type is immutable")

// Exam is the root of the hierarchy. Name is stored upper-case.
type Exam struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Subject belongs to exactly one exam.
type Subject struct {
	ID          string    `json:"id"`
	ExamID      string    `json:"examId"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SubCategory groups tracks within an exam. Name is stored lower-case.
type SubCategory struct {
	ID          string    `json:"id"`
	ExamID      string    `json:"examId"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Track is a content lane typed by its period granularity.
type Track struct {
	ID            string           `json:"id"`
	ExamID        string           `json:"examId"`
	SubCategoryID string           `json:"subCategoryId"`
	Name          string           `json:"name"`
	DisplayName   string           `json:"displayName"`
	Type          period.TrackType `json:"trackType"`
	Duration      int              `json:"duration,omitempty"`
	IsActive      bool             `json:"isActive"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// TrackSummary is the candidate shape reported when track resolution fails.
type TrackSummary struct {
	Name      string           `json:"name"`
	TrackType period.TrackType `json:"trackType"`
}

// Repository looks up hierarchy entities. Lookups return ErrNotFound when
// nothing matches; callers decide what to do with inactive records.
type Repository interface {
	ExamByName(ctx context.Context, name string) (Exam, error)
	SubjectByName(ctx context.Context, examID, name string) (Subject, error)
	SubCategoryByName(ctx context.Context, examID, name string) (SubCategory, error)
	ListSubCategories(ctx context.Context, examID string) ([]SubCategory, error)
	TrackByName(ctx context.Context, examID, subCategoryID, name string) (Track, error)
	// ListTracks returns the sub-category's tracks in creation order.
	ListTracks(ctx context.Context, examID, subCategoryID string) ([]Track, error)
}

// Writer creates or updates hierarchy entities. Put methods assign an ID when
// empty and return the stored record.
type Writer interface {
	PutExam(ctx context.Context, e Exam) (Exam, error)
	PutSubject(ctx context.Context, s Subject) (Subject, error)
	PutSubCategory(ctx context.Context, sc SubCategory) (SubCategory, error)
	PutTrack(ctx context.Context, t Track) (Track, error)
}

// CanonicalExamName normalizes an exam name for lookup ("wassce" → "WASSCE").
func CanonicalExamName(name string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(name))
}

// CanonicalSubCategoryName normalizes a sub-category name for lookup.
func CanonicalSubCategoryName(name string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

// IsPastQuestions reports whether a sub-category name denotes past questions
// ("PastQuestions", "past_questions", "Past Questions").
func IsPastQuestions(name string) bool {
	var b strings.Builder
	for _, r := range cases.Lower(language.Und).String(name) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return strings.Contains(b.String(), "pastquestion")
}

// Scope is the resolved identity of one track within an exam and subject.
// Names are copied onto stored records for query convenience; IDs are the
// source of truth.
type Scope struct {
	ExamID          string `json:"examId"`
	SubjectID       string `json:"subjectId"`
	TrackID         string `json:"trackId"`
	SubCategoryID   string `json:"subCategoryId"`
	ExamName        string `json:"examName"`
	SubjectName     string `json:"subjectName"`
	TrackName       string `json:"trackName"`
	SubCategoryName string `json:"subCategoryName"`
}

// Key identifies the scope in lock and cache keys.
func (s Scope) Key() string {
	return s.ExamID + "/" + s.SubjectID + "/" + s.TrackID + "/" + s.SubCategoryID
}
