package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/p-n-ai/pai-content/internal/apperr"
	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/topic"
)

// defaultDurations bound the listing of tracks declared without a duration.
var defaultDurations = map[period.TrackType]int{
	period.Weeks:    52,
	period.Days:     365,
	period.Months:   12,
	period.Semester: 2,
}

// PeriodDescriptor describes one period of a track.
type PeriodDescriptor struct {
	Type        period.TrackType `json:"type"`
	Value       string           `json:"value"`
	Label       string           `json:"label"`
	NamePrefix  string           `json:"namePrefix"`
	ActiveCount int              `json:"activeCount"`
	// AssignedTopics is set for indirect-access tracks.
	AssignedTopics []topic.AssignedTopic `json:"assignedTopics,omitempty"`
}

// ListPeriods enumerates the periods of the resolved track. Numeric tracks
// list 1..duration; years tracks list a window of recent years, newest first.
func (s *Service) ListPeriods(ctx context.Context, ref ContextRef) ([]PeriodDescriptor, error) {
	res, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rc := res.Context
	typ := rc.Track.Type

	items, err := s.content.ActiveInScope(ctx, rc.Scope())
	if err != nil {
		return nil, apperr.Infrastructure("list track items", err)
	}

	var assigned map[string][]topic.AssignedTopic
	if typ.Access() == period.Indirect {
		assigned, err = s.aggregator.TrackAssignments(ctx, rc)
		if err != nil {
			return nil, err
		}
	}

	numbers := s.periodNumbers(typ, rc.Track.Duration)
	out := make([]PeriodDescriptor, 0, len(numbers))
	for _, n := range numbers {
		enc, err := period.EncodeNumber(typ, n)
		if err != nil {
			return nil, err
		}
		d := PeriodDescriptor{
			Type:        typ,
			Value:       strconv.Itoa(n),
			Label:       enc.Label,
			NamePrefix:  enc.NamePrefix,
			ActiveCount: countMatching(items, enc),
		}
		if typ == period.Semester {
			d.Label = fmt.Sprintf("Semester %d", n)
		}
		if assigned != nil {
			d.AssignedTopics = assigned[d.Value]
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) periodNumbers(typ period.TrackType, duration int) []int {
	if typ == period.Years {
		current := s.now().Year()
		out := make([]int, s.yearWindow)
		for i := range out {
			out[i] = current - i
		}
		return out
	}
	if duration <= 0 {
		duration = defaultDurations[typ]
	}
	out := make([]int, duration)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func countMatching(items []content.Item, enc period.Encoding) int {
	n := 0
	for _, it := range items {
		if enc.Matches(it.Metadata) {
			n++
		}
	}
	return n
}
