package topic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/p-n-ai/pai-content/internal/apperr"
	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/resolver"
)

// QuestionSource reads active questions by topic.
type QuestionSource interface {
	QuestionsByTopic(ctx context.Context, examID, subjectID, topicID string) ([]content.Item, error)
}

// AssignedTopic is one entry of a period's ordered topic list.
type AssignedTopic struct {
	Topic      Topic `json:"topic"`
	OrderIndex int   `json:"orderIndex"`
}

// AssignResult is returned by Assign.
type AssignResult struct {
	TimePeriod  period.TimePeriod `json:"timePeriod"`
	PeriodValue string            `json:"periodValue"`
	Label       string            `json:"label"`
	Assigned    []AssignedTopic   `json:"assigned"`
	// Replaced is the number of assignments deactivated by this call.
	Replaced int `json:"replaced"`
}

// Aggregator manages topic assignments of indirect-access tracks and
// aggregates their questions across periods.
type Aggregator struct {
	topics      Repository
	assignments AssignmentStore
	questions   QuestionSource
}

// NewAggregator creates an Aggregator.
func NewAggregator(topics Repository, assignments AssignmentStore, questions QuestionSource) *Aggregator {
	return &Aggregator{topics: topics, assignments: assignments, questions: questions}
}

// PeriodKeyFor returns the assignment key of value within the context's track.
// Only indirect-access tracks have assignment periods.
func PeriodKeyFor(rc resolver.Context, value string) (PeriodKey, period.Encoding, error) {
	tp, ok := rc.Track.Type.TimePeriod()
	if !ok {
		return PeriodKey{}, period.Encoding{}, apperr.New(apperr.KindTrackTypeMismatch,
			fmt.Sprintf("track %q has type %s and stores content directly; topic assignments need a weeks, days or semester track",
				rc.Track.Name, rc.Track.Type),
			map[string]any{"trackType": rc.Track.Type, "access": rc.Track.Type.Access().String()})
	}
	enc, err := period.Encode(rc.Track.Type, value)
	if err != nil {
		return PeriodKey{}, period.Encoding{}, err
	}
	if err := enc.CheckRange(rc.Track.Duration); err != nil {
		return PeriodKey{}, period.Encoding{}, err
	}
	return PeriodKey{Scope: rc.Scope(), TimePeriod: tp, PeriodValue: strconv.Itoa(enc.Number)}, enc, nil
}

// Assign replaces the ordered topic list of one period. Duplicate IDs keep
// their first position. Every topic must belong to the context's exam and
// subject. Existing assignments are only replaced when force is set.
func (a *Aggregator) Assign(ctx context.Context, rc resolver.Context, value string, topicIDs []string, force bool) (AssignResult, error) {
	key, enc, err := PeriodKeyFor(rc, value)
	if err != nil {
		return AssignResult{}, err
	}

	ids := dedupe(topicIDs)
	resolved := make([]Topic, 0, len(ids))
	var rejected []InvalidItem
	for i, id := range ids {
		t, err := a.topics.TopicByID(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			rejected = append(rejected, InvalidItem{Index: i, Topic: id, Reason: "Topic does not exist"})
			continue
		case err != nil:
			return AssignResult{}, apperr.Infrastructure("get topic", err)
		}
		if t.ExamID != rc.Exam.ID || t.SubjectID != rc.Subject.ID {
			rejected = append(rejected, InvalidItem{Index: i, Topic: id,
				Reason: fmt.Sprintf("Topic %q does not belong to %s %s", t.Label(), rc.Exam.Name, rc.Subject.Name)})
			continue
		}
		resolved = append(resolved, t)
	}
	if len(rejected) > 0 {
		return AssignResult{}, apperr.New(apperr.KindTopicValidationFailed,
			fmt.Sprintf("%d of %d topics cannot be assigned", len(rejected), len(ids)),
			Report{
				ValidItems:   []ValidItem{},
				InvalidItems: rejected,
				Summary:      Summary{Total: len(ids), Valid: len(resolved), Invalid: len(rejected), UniqueTopics: len(ids), InvalidTopics: len(rejected)},
			})
	}

	replaced := 0
	guard := func(existing []Assignment) error {
		if len(existing) > 0 && !force {
			return apperr.New(apperr.KindConflict,
				fmt.Sprintf("%s already has %d assigned topics", enc.Label, len(existing)),
				map[string]any{"count": len(existing), "topicIds": topicIDsOf(existing)})
		}
		replaced = len(existing)
		return nil
	}

	stored, err := a.assignments.Replace(ctx, key, ids, guard)
	if err != nil {
		return AssignResult{}, apperr.Infrastructure("replace assignments", err)
	}

	byID := make(map[string]Topic, len(resolved))
	for _, t := range resolved {
		byID[t.ID] = t
	}
	out := AssignResult{TimePeriod: key.TimePeriod, PeriodValue: key.PeriodValue, Label: enc.Label, Assigned: []AssignedTopic{}, Replaced: replaced}
	for _, as := range stored {
		out.Assigned = append(out.Assigned, AssignedTopic{Topic: byID[as.TopicID], OrderIndex: as.OrderIndex})
	}

	slog.Info("topics assigned",
		"track", rc.Track.Name,
		"period", key.TimePeriod,
		"value", key.PeriodValue,
		"topics", len(out.Assigned),
		"replaced", replaced,
	)
	return out, nil
}

// Assignments returns the ordered topic list of one period.
func (a *Aggregator) Assignments(ctx context.Context, rc resolver.Context, value string) ([]AssignedTopic, error) {
	key, _, err := PeriodKeyFor(rc, value)
	if err != nil {
		return nil, err
	}
	stored, err := a.assignments.Assignments(ctx, key)
	if err != nil {
		return nil, apperr.Infrastructure("list assignments", err)
	}
	return a.withTopics(ctx, stored)
}

// TrackAssignments returns every active assignment of the context's track
// grouped by period value.
func (a *Aggregator) TrackAssignments(ctx context.Context, rc resolver.Context) (map[string][]AssignedTopic, error) {
	stored, err := a.assignments.TrackAssignments(ctx, rc.Scope())
	if err != nil {
		return nil, apperr.Infrastructure("list track assignments", err)
	}
	byPeriod := make(map[string][]Assignment)
	for _, as := range stored {
		byPeriod[as.PeriodValue] = append(byPeriod[as.PeriodValue], as)
	}
	out := make(map[string][]AssignedTopic, len(byPeriod))
	for value, list := range byPeriod {
		topics, err := a.withTopics(ctx, list)
		if err != nil {
			return nil, err
		}
		out[value] = topics
	}
	return out, nil
}

// QuestionsForTopic returns every active question tagged with the topic,
// whichever year or period it was uploaded under.
func (a *Aggregator) QuestionsForTopic(ctx context.Context, examID, subjectID, topicID string) ([]content.Item, error) {
	t, err := a.topics.TopicByID(ctx, topicID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Newf(apperr.KindItemNotFound, "topic %s not found", topicID)
	}
	if err != nil {
		return nil, apperr.Infrastructure("get topic", err)
	}
	if t.ExamID != examID || t.SubjectID != subjectID {
		return nil, apperr.Newf(apperr.KindItemNotFound, "topic %s not found in this exam and subject", topicID)
	}

	items, err := a.questions.QuestionsByTopic(ctx, examID, subjectID, topicID)
	if err != nil {
		return nil, apperr.Infrastructure("list questions by topic", err)
	}
	content.SortByYearThenOrder(items)
	return items, nil
}

func (a *Aggregator) withTopics(ctx context.Context, stored []Assignment) ([]AssignedTopic, error) {
	out := make([]AssignedTopic, 0, len(stored))
	for _, as := range stored {
		t, err := a.topics.TopicByID(ctx, as.TopicID)
		if errors.Is(err, ErrNotFound) {
			slog.Warn("assigned topic missing", "topic_id", as.TopicID, "assignment_id", as.ID)
			continue
		}
		if err != nil {
			return nil, apperr.Infrastructure("get topic", err)
		}
		out = append(out, AssignedTopic{Topic: t, OrderIndex: as.OrderIndex})
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func topicIDsOf(as []Assignment) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.TopicID
	}
	return out
}
