// Package content stores period-keyed content and question items: the
// duplicate guard, enrichment of caller-supplied items into stored records,
// and the bulk upsert that writes them.
package content

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
)

var (
	// ErrNotFound is returned when an item lookup matches no active item.
	ErrNotFound = errors.New("content: item not found")
	// ErrDuplicate is returned by Insert when an active item with the same
	// name already exists in the scope.
	ErrDuplicate = errors.New("content: duplicate active item")
)

// Kind distinguishes plain content from exam questions.
type Kind string

const (
	KindContent  Kind = "content"
	KindQuestion Kind = "question"
)

// Item is a stored content or question record. The embedded scope names are
// copies of the hierarchy entities taken at write time.
type Item struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	hierarchy.Scope
	TopicID     string         `json:"topicId,omitempty"`
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName"`
	Description string         `json:"description"`
	OrderIndex  int64          `json:"orderIndex"`
	PeriodKey   string         `json:"periodKey"`
	Metadata    map[string]any `json:"metadata"`

	Year        int      `json:"year,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	Question    string   `json:"question,omitempty"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the short form of an item reported by conflicts and existence checks.
type Summary struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Summarize returns the summaries of items.
func Summarize(items []Item) []Summary {
	out := make([]Summary, len(items))
	for i, it := range items {
		out[i] = Summary{Name: it.Name, DisplayName: it.DisplayName, CreatedAt: it.CreatedAt}
	}
	return out
}

// Input is a caller-supplied item before enrichment.
type Input struct {
	Name        string         `json:"name" yaml:"name"`
	DisplayName string         `json:"displayName,omitempty" yaml:"displayName"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata"`
	// Period selects the target period when a request spans several periods.
	Period string `json:"period,omitempty" yaml:"period"`

	Topic       string   `json:"topic,omitempty" yaml:"topic"`
	Year        int      `json:"year,omitempty" yaml:"year"`
	Question    string   `json:"question,omitempty" yaml:"question"`
	Options     []string `json:"options,omitempty" yaml:"options"`
	Answer      string   `json:"answer,omitempty" yaml:"answer"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation"`
}

// IsQuestion reports whether the input describes an exam question.
func (in Input) IsQuestion() bool { return in.Question != "" }

// Patch is a partial update of one item. Nil fields are left unchanged.
type Patch struct {
	DisplayName *string        `json:"displayName,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Topic       *string        `json:"topic,omitempty"`
	Question    *string        `json:"question,omitempty"`
	Options     []string       `json:"options,omitempty"`
	Answer      *string        `json:"answer,omitempty"`
	Explanation *string        `json:"explanation,omitempty"`
}

// PeriodQuery addresses the items of one period within a scope.
type PeriodQuery struct {
	Scope  hierarchy.Scope
	Period period.Encoding
}

// LockKey is the advisory lock key of the period.
func (q PeriodQuery) LockKey() string {
	return "content/" + q.Scope.Key() + "/" + q.Period.Key()
}

// Matches reports whether it is an active item of the period.
func (q PeriodQuery) Matches(it Item) bool {
	return it.IsActive && inScope(q.Scope, it) && q.Period.Matches(it.Metadata)
}

func inScope(s hierarchy.Scope, it Item) bool {
	return it.ExamID == s.ExamID && it.SubjectID == s.SubjectID &&
		it.TrackID == s.TrackID && it.SubCategoryID == s.SubCategoryID
}

// PeriodTx is the view of one locked period handed to Store.WithPeriodLock.
type PeriodTx interface {
	// Active returns the period's active items ordered by OrderIndex.
	Active(ctx context.Context) ([]Item, error)
	// Deactivate soft-deletes every active item of the period.
	Deactivate(ctx context.Context) (int, error)
	// Insert stores one item. A failed insert does not affect earlier or
	// later inserts. Name collisions with active items return ErrDuplicate.
	Insert(ctx context.Context, it Item) (Item, error)
}

// Store persists items.
type Store interface {
	// WithPeriodLock runs fn with exclusive write access to one period. Writes
	// made through the PeriodTx are kept when fn returns nil and undone
	// otherwise.
	WithPeriodLock(ctx context.Context, q PeriodQuery, fn func(tx PeriodTx) error) error
	// ActiveInPeriod returns the period's active items ordered by OrderIndex.
	ActiveInPeriod(ctx context.Context, q PeriodQuery) ([]Item, error)
	// ActiveInScope returns every active item of a track ordered by OrderIndex.
	ActiveInScope(ctx context.Context, scope hierarchy.Scope) ([]Item, error)
	// QuestionsByTopic returns active questions tagged with topicID in any
	// track, year or period of the exam and subject.
	QuestionsByTopic(ctx context.Context, examID, subjectID, topicID string) ([]Item, error)
	// UpdateItem applies fn to the active item called name in the period.
	UpdateItem(ctx context.Context, q PeriodQuery, name string, fn func(*Item) error) (Item, error)
	// DeleteItem soft-deletes the active item called name in the period.
	DeleteItem(ctx context.Context, q PeriodQuery, name string) error
}

// SortByOrder sorts items by OrderIndex, then name.
func SortByOrder(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].OrderIndex != items[j].OrderIndex {
			return items[i].OrderIndex < items[j].OrderIndex
		}
		return items[i].Name < items[j].Name
	})
}

// SortByYearThenOrder sorts items by Year, then OrderIndex.
func SortByYearThenOrder(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Year != items[j].Year {
			return items[i].Year < items[j].Year
		}
		return items[i].OrderIndex < items[j].OrderIndex
	})
}

// ResolveName returns the stored name of an item given either its stored
// name or the name the caller uploaded it under.
func ResolveName(enc period.Encoding, name string) string {
	if strings.HasPrefix(name, enc.NamePrefix) {
		return name
	}
	return enc.NamePrefix + name
}
