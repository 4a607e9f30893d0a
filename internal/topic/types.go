// Package topic manages the approved topic vocabulary of each (exam, subject)
// pair: validating free-text topic labels against it, and assigning topics to
// the periods of indirect-access tracks.
package topic

import (
	"context"
	"errors"
	"time"

	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
)

// ErrNotFound is returned when a topic lookup matches nothing.
var ErrNotFound = errors.New("topic: not found")

// Topic is one entry of the approved vocabulary.
type Topic struct {
	ID          string    `json:"id"`
	ExamID      string    `json:"examId"`
	SubjectID   string    `json:"subjectId"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Label returns the display name, falling back to the name.
func (t Topic) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

// Repository reads the topic vocabulary.
type Repository interface {
	ListTopics(ctx context.Context, examID, subjectID string) ([]Topic, error)
	TopicByID(ctx context.Context, id string) (Topic, error)
}

// Writer adds topics to the vocabulary. PutTopic upserts by (exam, subject, name).
type Writer interface {
	PutTopic(ctx context.Context, t Topic) (Topic, error)
}

// Assignment links one topic to one period of an indirect-access track.
type Assignment struct {
	ID            string            `json:"id"`
	ExamID        string            `json:"examId"`
	SubjectID     string            `json:"subjectId"`
	TrackID       string            `json:"trackId"`
	SubCategoryID string            `json:"subCategoryId"`
	TimePeriod    period.TimePeriod `json:"timePeriod"`
	PeriodValue   string            `json:"periodValue"`
	TopicID       string            `json:"topicId"`
	OrderIndex    int               `json:"orderIndex"`
	IsActive      bool              `json:"isActive"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// PeriodKey identifies one period of a track for assignments.
type PeriodKey struct {
	Scope       hierarchy.Scope
	TimePeriod  period.TimePeriod
	PeriodValue string
}

// String is the advisory lock key of the period.
func (k PeriodKey) String() string {
	return "assign/" + k.Scope.Key() + "/" + string(k.TimePeriod) + ":" + k.PeriodValue
}

func (k PeriodKey) matches(a Assignment) bool {
	return a.ExamID == k.Scope.ExamID &&
		a.SubjectID == k.Scope.SubjectID &&
		a.TrackID == k.Scope.TrackID &&
		a.SubCategoryID == k.Scope.SubCategoryID &&
		a.TimePeriod == k.TimePeriod &&
		a.PeriodValue == k.PeriodValue
}

// AssignmentStore persists topic assignments.
type AssignmentStore interface {
	// Assignments returns the active assignments of a period by OrderIndex.
	Assignments(ctx context.Context, key PeriodKey) ([]Assignment, error)
	// TrackAssignments returns every active assignment of a track.
	TrackAssignments(ctx context.Context, scope hierarchy.Scope) ([]Assignment, error)
	// Replace soft-deletes the period's active assignments and inserts
	// topicIDs in order, atomically. guard runs first with the current
	// assignments; a non-nil guard error aborts without writing.
	Replace(ctx context.Context, key PeriodKey, topicIDs []string, guard func(existing []Assignment) error) ([]Assignment, error)
}
