package topic

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-content/internal/hierarchy"
)

// MemoryStore is an in-memory Repository, Writer and AssignmentStore.
type MemoryStore struct {
	topics      []Topic
	assignments []Assignment
	mu          sync.RWMutex
}

// NewMemoryStore creates an empty in-memory topic store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ListTopics(_ context.Context, examID, subjectID string) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Topic
	for _, t := range s.topics {
		if t.ExamID == examID && t.SubjectID == subjectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) TopicByID(_ context.Context, id string) (Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return Topic{}, ErrNotFound
}

func (s *MemoryStore) PutTopic(_ context.Context, t Topic) (Topic, error) {
	if t.ExamID == "" || t.SubjectID == "" || t.Name == "" {
		return Topic{}, fmt.Errorf("topic exam_id, subject_id and name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.topics {
		if existing.ExamID == t.ExamID && existing.SubjectID == t.SubjectID && existing.Name == t.Name {
			t.ID, t.CreatedAt = existing.ID, existing.CreatedAt
			s.topics[i] = t
			return t, nil
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.topics = append(s.topics, t)
	return t, nil
}

func (s *MemoryStore) Assignments(_ context.Context, key PeriodKey) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(key), nil
}

func (s *MemoryStore) TrackAssignments(_ context.Context, scope hierarchy.Scope) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Assignment
	for _, a := range s.assignments {
		if a.IsActive && a.ExamID == scope.ExamID && a.SubjectID == scope.SubjectID &&
			a.TrackID == scope.TrackID && a.SubCategoryID == scope.SubCategoryID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) Replace(_ context.Context, key PeriodKey, topicIDs []string, guard func([]Assignment) error) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if guard != nil {
		if err := guard(s.activeLocked(key)); err != nil {
			return nil, err
		}
	}

	for i := range s.assignments {
		if s.assignments[i].IsActive && key.matches(s.assignments[i]) {
			s.assignments[i].IsActive = false
		}
	}

	now := time.Now()
	out := make([]Assignment, 0, len(topicIDs))
	for i, id := range topicIDs {
		a := Assignment{
			ID:            uuid.NewString(),
			ExamID:        key.Scope.ExamID,
			SubjectID:     key.Scope.SubjectID,
			TrackID:       key.Scope.TrackID,
			SubCategoryID: key.Scope.SubCategoryID,
			TimePeriod:    key.TimePeriod,
			PeriodValue:   key.PeriodValue,
			TopicID:       id,
			OrderIndex:    i,
			IsActive:      true,
			CreatedAt:     now,
		}
		s.assignments = append(s.assignments, a)
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryStore) activeLocked(key PeriodKey) []Assignment {
	var out []Assignment
	for _, a := range s.assignments {
		if a.IsActive && key.matches(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}
