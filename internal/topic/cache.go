package topic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-content/internal/platform/cache"
)

const defaultVocabularyTTL = 10 * time.Minute

// CachedRepository serves ListTopics from Redis, falling back to the wrapped
// repository on a miss or a cache failure. Writes through PutTopic invalidate
// the (exam, subject) entry.
type CachedRepository struct {
	next  Repository
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedRepository wraps next with a vocabulary cache. A zero ttl uses 10 minutes.
func NewCachedRepository(next Repository, c *cache.Cache, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = defaultVocabularyTTL
	}
	return &CachedRepository{next: next, cache: c, ttl: ttl}
}

func vocabularyKey(examID, subjectID string) string {
	return fmt.Sprintf("topics:%s:%s", examID, subjectID)
}

func (r *CachedRepository) ListTopics(ctx context.Context, examID, subjectID string) ([]Topic, error) {
	key := vocabularyKey(examID, subjectID)

	var topics []Topic
	found, err := r.cache.GetJSON(ctx, key, &topics)
	if err != nil {
		slog.Warn("topic cache read failed", "key", key, "error", err)
	}
	if found {
		return topics, nil
	}

	topics, err = r.next.ListTopics(ctx, examID, subjectID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetJSON(ctx, key, topics, r.ttl); err != nil {
		slog.Warn("topic cache write failed", "key", key, "error", err)
	}
	return topics, nil
}

func (r *CachedRepository) TopicByID(ctx context.Context, id string) (Topic, error) {
	return r.next.TopicByID(ctx, id)
}

// PutTopic writes through to the wrapped repository, which must also be a
// Writer, and invalidates the cached vocabulary.
func (r *CachedRepository) PutTopic(ctx context.Context, t Topic) (Topic, error) {
	w, ok := r.next.(Writer)
	if !ok {
		return Topic{}, fmt.Errorf("topic repository %T is read-only", r.next)
	}
	stored, err := w.PutTopic(ctx, t)
	if err != nil {
		return Topic{}, err
	}
	if err := r.Invalidate(ctx, stored.ExamID, stored.SubjectID); err != nil {
		slog.Warn("topic cache invalidation failed", "exam_id", stored.ExamID, "subject_id", stored.SubjectID, "error", err)
	}
	return stored, nil
}

// Invalidate drops the cached vocabulary of an (exam, subject) pair.
func (r *CachedRepository) Invalidate(ctx context.Context, examID, subjectID string) error {
	return r.cache.Delete(ctx, vocabularyKey(examID, subjectID))
}
