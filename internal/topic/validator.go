package topic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/p-n-ai/pai-content/internal/apperr"
)

// maxSuggestions bounds the approved alternatives offered for a rejected label.
const maxSuggestions = 5

// ValidItem is an accepted input label.
type ValidItem struct {
	Index     int    `json:"index"`
	Topic     string `json:"topic"`
	TopicID   string `json:"topicId"`
	TopicName string `json:"topicName"`
}

// InvalidItem is a rejected input label.
type InvalidItem struct {
	Index       int      `json:"index"`
	Topic       string   `json:"topic"`
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Summary counts a validation run.
type Summary struct {
	Total         int `json:"total"`
	Valid         int `json:"valid"`
	Invalid       int `json:"invalid"`
	UniqueTopics  int `json:"uniqueTopics"`
	InvalidTopics int `json:"invalidTopics"`
}

// Report is the outcome of validating a batch of labels.
type Report struct {
	ValidItems   []ValidItem   `json:"validItems"`
	InvalidItems []InvalidItem `json:"invalidItems"`
	Summary      Summary       `json:"summary"`
}

// OK reports whether every label was accepted.
func (r Report) OK() bool { return len(r.InvalidItems) == 0 }

// TopicID returns the resolved topic of the input at index.
func (r Report) TopicID(index int) (string, bool) {
	for _, v := range r.ValidItems {
		if v.Index == index {
			return v.TopicID, true
		}
	}
	return "", false
}

// Err returns a TopicValidationFailed error carrying the report when any label
// was rejected, and nil otherwise.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return apperr.New(apperr.KindTopicValidationFailed,
		fmt.Sprintf("%d of %d items reference unapproved topics", r.Summary.Invalid, r.Summary.Total), r)
}

// Validator checks topic labels against the approved vocabulary.
type Validator struct {
	repo Repository
}

// NewValidator creates a Validator reading the vocabulary from repo.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// Validate checks each label against the (exam, subject) vocabulary. The
// vocabulary is fetched once per call; matching ignores case and surrounding
// whitespace and accepts either a topic's name or its display name.
func (v *Validator) Validate(ctx context.Context, examID, subjectID string, labels []string) (Report, error) {
	topics, err := v.repo.ListTopics(ctx, examID, subjectID)
	if err != nil {
		return Report{}, apperr.Infrastructure("list topics", err)
	}
	idx := newIndex(topics)

	report := Report{ValidItems: []ValidItem{}, InvalidItems: []InvalidItem{}}
	unique := map[string]struct{}{}
	invalid := map[string]struct{}{}

	for i, label := range labels {
		key := normalize(label)
		if key == "" {
			report.InvalidItems = append(report.InvalidItems, InvalidItem{Index: i, Topic: label, Reason: "Topic required"})
			continue
		}
		unique[key] = struct{}{}

		if t, ok := idx.byKey[key]; ok {
			report.ValidItems = append(report.ValidItems, ValidItem{Index: i, Topic: label, TopicID: t.ID, TopicName: t.Name})
			continue
		}

		invalid[key] = struct{}{}
		suggestions := idx.suggest(key)
		reason := fmt.Sprintf("Topic %q is not in the approved list", strings.TrimSpace(label))
		if len(suggestions) > 0 {
			reason += ". Did you mean: " + strings.Join(suggestions, ", ")
		}
		report.InvalidItems = append(report.InvalidItems, InvalidItem{Index: i, Topic: label, Reason: reason, Suggestions: suggestions})
	}

	report.Summary = Summary{
		Total:         len(labels),
		Valid:         len(report.ValidItems),
		Invalid:       len(report.InvalidItems),
		UniqueTopics:  len(unique),
		InvalidTopics: len(invalid),
	}
	return report, nil
}

type index struct {
	byKey  map[string]Topic
	topics []Topic
}

func newIndex(topics []Topic) index {
	idx := index{byKey: make(map[string]Topic, len(topics)*2), topics: topics}
	for _, t := range topics {
		if k := normalize(t.Name); k != "" {
			idx.byKey[k] = t
		}
		if k := normalize(t.DisplayName); k != "" {
			if _, taken := idx.byKey[k]; !taken {
				idx.byKey[k] = t
			}
		}
	}
	return idx
}

// suggest ranks approved topics by the number of words they share with the
// rejected label, then alphabetically.
func (idx index) suggest(key string) []string {
	words := strings.Fields(key)
	type scored struct {
		name  string
		score int
	}
	ranked := make([]scored, 0, len(idx.topics))
	for _, t := range idx.topics {
		name := normalize(t.Name)
		s := 0
		for _, w := range words {
			if len(w) > 2 && strings.Contains(name, w) {
				s++
			}
		}
		ranked = append(ranked, scored{name: t.Label(), score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})

	n := min(len(ranked), maxSuggestions)
	out := make([]string, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, r.name)
	}
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}
