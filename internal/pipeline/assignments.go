package pipeline

import (
	"context"

	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/topic"
)

// AssignTopics replaces the ordered topic list of one period of an
// indirect-access track.
func (s *Service) AssignTopics(ctx context.Context, ref ContextRef, t period.TrackType, value string, topicIDs []string, force bool) (topic.AssignResult, error) {
	rc, err := s.resolveTyped(ctx, ref, t)
	if err != nil {
		return topic.AssignResult{}, err
	}
	return s.aggregator.Assign(ctx, rc, value, topicIDs, force)
}

// TopicsForPeriod returns the ordered topic list of one period.
func (s *Service) TopicsForPeriod(ctx context.Context, ref ContextRef, t period.TrackType, value string) ([]topic.AssignedTopic, error) {
	rc, err := s.resolveTyped(ctx, ref, t)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Assignments(ctx, rc, value)
}

// QuestionsForTopic returns every active question tagged with the topic
// across all years and periods.
func (s *Service) QuestionsForTopic(ctx context.Context, examID, subjectID, topicID string) ([]content.Item, error) {
	return s.aggregator.QuestionsForTopic(ctx, examID, subjectID, topicID)
}
