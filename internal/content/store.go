package content

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-content/internal/hierarchy"
)

// MemoryStore is an in-memory Store. Writes to any period are serialized;
// a failed WithPeriodLock restores the items as they were before fn ran.
type MemoryStore struct {
	items []Item
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory item store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) WithPeriodLock(_ context.Context, q PeriodQuery, fn func(tx PeriodTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Item, len(s.items))
	copy(snapshot, s.items)

	if err := fn(&memoryTx{s: s, q: q}); err != nil {
		s.items = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) ActiveInPeriod(_ context.Context, q PeriodQuery) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.periodLocked(q), nil
}

func (s *MemoryStore) ActiveInScope(_ context.Context, scope hierarchy.Scope) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for _, it := range s.items {
		if it.IsActive && inScope(scope, it) {
			out = append(out, clone(it))
		}
	}
	SortByOrder(out)
	return out, nil
}

func (s *MemoryStore) QuestionsByTopic(_ context.Context, examID, subjectID, topicID string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for _, it := range s.items {
		if it.IsActive && it.Kind == KindQuestion && it.ExamID == examID && it.SubjectID == subjectID && it.TopicID == topicID {
			out = append(out, clone(it))
		}
	}
	SortByOrder(out)
	return out, nil
}

func (s *MemoryStore) UpdateItem(_ context.Context, q PeriodQuery, name string, fn func(*Item) error) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findLocked(q, name)
	if i < 0 {
		return Item{}, ErrNotFound
	}
	updated := clone(s.items[i])
	if err := fn(&updated); err != nil {
		return Item{}, err
	}
	updated.UpdatedAt = time.Now()
	s.items[i] = updated
	return clone(updated), nil
}

func (s *MemoryStore) DeleteItem(_ context.Context, q PeriodQuery, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findLocked(q, name)
	if i < 0 {
		return ErrNotFound
	}
	s.items[i].IsActive = false
	s.items[i].UpdatedAt = time.Now()
	return nil
}

// Len returns the number of stored items, active or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) periodLocked(q PeriodQuery) []Item {
	var out []Item
	for _, it := range s.items {
		if q.Matches(it) {
			out = append(out, clone(it))
		}
	}
	SortByOrder(out)
	return out
}

func (s *MemoryStore) findLocked(q PeriodQuery, name string) int {
	for i, it := range s.items {
		if it.Name == name && q.Matches(it) {
			return i
		}
	}
	return -1
}

type memoryTx struct {
	s *MemoryStore
	q PeriodQuery
}

func (tx *memoryTx) Active(_ context.Context) ([]Item, error) {
	return tx.s.periodLocked(tx.q), nil
}

func (tx *memoryTx) Deactivate(_ context.Context) (int, error) {
	now := time.Now()
	n := 0
	for i := range tx.s.items {
		if tx.q.Matches(tx.s.items[i]) {
			tx.s.items[i].IsActive = false
			tx.s.items[i].UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) Insert(ctx context.Context, it Item) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	for _, existing := range tx.s.items {
		if existing.IsActive && existing.Name == it.Name && inScope(it.Scope, existing) {
			return Item{}, ErrDuplicate
		}
	}

	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now()
	it.IsActive = true
	it.CreatedAt, it.UpdatedAt = now, now
	it = clone(it)
	tx.s.items = append(tx.s.items, it)
	return clone(it), nil
}

func clone(it Item) Item {
	it.Metadata = maps.Clone(it.Metadata)
	if it.Options != nil {
		it.Options = append([]string(nil), it.Options...)
	}
	return it
}
