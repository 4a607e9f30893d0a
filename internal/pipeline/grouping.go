package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/p-n-ai/pai-content/internal/apperr"
	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/resolver"
	"github.com/p-n-ai/pai-content/internal/topic"
)

// Group is one bucket of the grouping view.
type Group struct {
	Key   string         `json:"key"`
	Label string         `json:"label"`
	Items []content.Item `json:"items"`
	// Topics and Questions are set on period groups of indirect-access
	// tracks: the assigned topics and the questions aggregated from them.
	Topics    []topic.AssignedTopic `json:"topics,omitempty"`
	Questions []content.Item        `json:"questions,omitempty"`
}

// unassigned is the key of the topic group holding items without a topic.
const unassigned = ""

// Group returns the active items of the resolved track grouped by topic or
// by period. Period grouping must use the track's own period dimension.
func (s *Service) Group(ctx context.Context, ref ContextRef, by period.GroupBy) ([]Group, error) {
	res, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rc := res.Context

	items, err := s.content.ActiveInScope(ctx, rc.Scope())
	if err != nil {
		return nil, apperr.Infrastructure("list track items", err)
	}

	if by == period.ByTopic {
		return s.groupByTopic(ctx, items)
	}

	typ, ok := by.TrackType()
	if !ok {
		return nil, apperr.Newf(apperr.KindInvalidInput, "unknown group by %q", by)
	}
	if typ != rc.Track.Type {
		return nil, apperr.New(apperr.KindTrackTypeMismatch,
			fmt.Sprintf("track %q has type %s and cannot be grouped by %s", rc.Track.Name, rc.Track.Type, by),
			map[string]any{"track": rc.Track.Name, "trackType": rc.Track.Type, "groupBy": by})
	}
	return s.groupByPeriod(ctx, rc, items)
}

func (s *Service) groupByTopic(ctx context.Context, items []content.Item) ([]Group, error) {
	byKey := map[string]*Group{}
	var keys []string
	for _, it := range items {
		k := it.TopicID
		if k == "" && it.Topic != "" {
			k = "label:" + it.Topic
		}
		g, ok := byKey[k]
		if !ok {
			g = &Group{Key: k, Label: it.Topic, Items: []content.Item{}}
			byKey[k] = g
			keys = append(keys, k)
		}
		g.Items = append(g.Items, it)
	}

	for _, k := range keys {
		g := byKey[k]
		switch {
		case k == unassigned:
			g.Label = "Unassigned"
		case g.Items[0].TopicID != "":
			t, err := s.topics.TopicByID(ctx, k)
			switch {
			case errors.Is(err, topic.ErrNotFound):
				slog.Warn("grouped item references a missing topic", "topic_id", k)
			case err != nil:
				return nil, apperr.Infrastructure("get topic", err)
			default:
				g.Label = t.Label()
			}
		}
	}

	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		// Unassigned items sort last.
		if (out[i].Key == unassigned) != (out[j].Key == unassigned) {
			return out[j].Key == unassigned
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func (s *Service) groupByPeriod(ctx context.Context, rc resolver.Context, items []content.Item) ([]Group, error) {
	typ := rc.Track.Type
	key := period.MetadataKey(typ)

	byNumber := map[int]*Group{}
	for _, it := range items {
		n, ok := period.AsInt(it.Metadata[key])
		if !ok {
			continue
		}
		g, err := periodGroup(byNumber, typ, n)
		if err != nil {
			return nil, err
		}
		if typ == period.Semester && len(g.Items) == 0 {
			if name, ok := it.Metadata[period.KeySemesterName].(string); ok && name != "" {
				g.Label = name
			}
		}
		g.Items = append(g.Items, it)
	}

	if typ.Access() == period.Indirect {
		assigned, err := s.aggregator.TrackAssignments(ctx, rc)
		if err != nil {
			return nil, err
		}
		for value, topics := range assigned {
			n, err := strconv.Atoi(value)
			if err != nil {
				slog.Warn("skipping assignment with non-numeric period", "track", rc.Track.Name, "value", value)
				continue
			}
			g, err := periodGroup(byNumber, typ, n)
			if err != nil {
				return nil, err
			}
			g.Topics = topics
			if g.Questions, err = s.questionsFor(ctx, rc, topics); err != nil {
				return nil, err
			}
		}
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	out := make([]Group, 0, len(numbers))
	for _, n := range numbers {
		g := byNumber[n]
		content.SortByOrder(g.Items)
		out = append(out, *g)
	}
	return out, nil
}

func periodGroup(byNumber map[int]*Group, typ period.TrackType, n int) (*Group, error) {
	if g, ok := byNumber[n]; ok {
		return g, nil
	}
	enc, err := period.EncodeNumber(typ, n)
	if err != nil {
		return nil, err
	}
	label := enc.Label
	if typ == period.Semester {
		label = fmt.Sprintf("Semester %d", n)
	}
	g := &Group{Key: strconv.Itoa(n), Label: label, Items: []content.Item{}}
	byNumber[n] = g
	return g, nil
}

// questionsFor aggregates the questions of the assigned topics in
// assignment order, each question once.
func (s *Service) questionsFor(ctx context.Context, rc resolver.Context, topics []topic.AssignedTopic) ([]content.Item, error) {
	seen := map[string]struct{}{}
	out := []content.Item{}
	for _, at := range topics {
		qs, err := s.aggregator.QuestionsForTopic(ctx, rc.Exam.ID, rc.Subject.ID, at.Topic.ID)
		if apperr.Is(err, apperr.KindItemNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, q := range qs {
			if _, ok := seen[q.ID]; ok {
				continue
			}
			seen[q.ID] = struct{}{}
			out = append(out, q)
		}
	}
	return out, nil
}
