package hierarchy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Repository and Writer.
type MemoryStore struct {
	exams         []Exam
	subjects      []Subject
	subCategories []SubCategory
	tracks        []Track
	mu            sync.RWMutex
}

// NewMemoryStore creates an empty in-memory hierarchy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ExamByName(_ context.Context, name string) (Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.exams {
		if e.Name == name {
			return e, nil
		}
	}
	return Exam{}, ErrNotFound
}

func (s *MemoryStore) SubjectByName(_ context.Context, examID, name string) (Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subjects {
		if sub.ExamID == examID && sub.Name == name {
			return sub, nil
		}
	}
	return Subject{}, ErrNotFound
}

func (s *MemoryStore) SubCategoryByName(_ context.Context, examID, name string) (SubCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sc := range s.subCategories {
		if sc.ExamID == examID && sc.Name == name {
			return sc, nil
		}
	}
	return SubCategory{}, ErrNotFound
}

func (s *MemoryStore) ListSubCategories(_ context.Context, examID string) ([]SubCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SubCategory
	for _, sc := range s.subCategories {
		if sc.ExamID == examID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *MemoryStore) TrackByName(_ context.Context, examID, subCategoryID, name string) (Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tracks {
		if t.ExamID == examID && t.SubCategoryID == subCategoryID && t.Name == name {
			return t, nil
		}
	}
	return Track{}, ErrNotFound
}

func (s *MemoryStore) ListTracks(_ context.Context, examID, subCategoryID string) ([]Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Track
	for _, t := range s.tracks {
		if t.ExamID == examID && t.SubCategoryID == subCategoryID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutExam(_ context.Context, e Exam) (Exam, error) {
	e.Name = CanonicalExamName(e.Name)
	if e.Name == "" {
		return Exam{}, fmt.Errorf("exam name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.exams {
		if existing.Name == e.Name {
			e.ID, e.CreatedAt = existing.ID, existing.CreatedAt
			s.exams[i] = e
			return e, nil
		}
	}
	stamp(&e.ID, &e.CreatedAt)
	s.exams = append(s.exams, e)
	return e, nil
}

func (s *MemoryStore) PutSubject(_ context.Context, sub Subject) (Subject, error) {
	if sub.ExamID == "" || sub.Name == "" {
		return Subject{}, fmt.Errorf("subject exam_id and name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.subjects {
		if existing.ExamID == sub.ExamID && existing.Name == sub.Name {
			sub.ID, sub.CreatedAt = existing.ID, existing.CreatedAt
			s.subjects[i] = sub
			return sub, nil
		}
	}
	stamp(&sub.ID, &sub.CreatedAt)
	s.subjects = append(s.subjects, sub)
	return sub, nil
}

func (s *MemoryStore) PutSubCategory(_ context.Context, sc SubCategory) (SubCategory, error) {
	sc.Name = CanonicalSubCategoryName(sc.Name)
	if sc.ExamID == "" || sc.Name == "" {
		return SubCategory{}, fmt.Errorf("sub-category exam_id and name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.subCategories {
		if existing.ExamID == sc.ExamID && existing.Name == sc.Name {
			sc.ID, sc.CreatedAt = existing.ID, existing.CreatedAt
			s.subCategories[i] = sc
			return sc, nil
		}
	}
	stamp(&sc.ID, &sc.CreatedAt)
	s.subCategories = append(s.subCategories, sc)
	return sc, nil
}

func (s *MemoryStore) PutTrack(_ context.Context, t Track) (Track, error) {
	if t.ExamID == "" || t.SubCategoryID == "" || t.Name == "" {
		return Track{}, fmt.Errorf("track exam_id, sub_category_id and name are required")
	}
	if !t.Type.Valid() {
		return Track{}, fmt.Errorf("track %q: invalid track type %q", t.Name, t.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.tracks {
		if existing.ExamID == t.ExamID && existing.SubCategoryID == t.SubCategoryID && existing.Name == t.Name {
			if existing.Type != t.Type {
				return Track{}, fmt.Errorf("track %q is %s, cannot become %s: %w", t.Name, existing.Type, t.Type, ErrTrackTypeChanged)
			}
			t.ID, t.CreatedAt = existing.ID, existing.CreatedAt
			s.tracks[i] = t
			return t, nil
		}
	}
	stamp(&t.ID, &t.CreatedAt)
	s.tracks = append(s.tracks, t)
	return t, nil
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
}
