package resolver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-content/internal/apperr"
	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/resolver"
)

type fixture struct {
	store   *hierarchy.MemoryStore
	exam    hierarchy.Exam
	subject hierarchy.Subject
	past    hierarchy.SubCategory
	plan    hierarchy.SubCategory
}

func setupHierarchy(t *testing.T) fixture {
	t.Helper()
	ctx := t.Context()
	store := hierarchy.NewMemoryStore()

	exam, _ := store.PutExam(ctx, hierarchy.Exam{Name: "WASSCE", IsActive: true})
	subject, _ := store.PutSubject(ctx, hierarchy.Subject{ExamID: exam.ID, Name: "Biology", IsActive: true})
	past, _ := store.PutSubCategory(ctx, hierarchy.SubCategory{ExamID: exam.ID, Name: "PastQuestions", IsActive: true})
	plan, _ := store.PutSubCategory(ctx, hierarchy.SubCategory{ExamID: exam.ID, Name: "StudyPlan", IsActive: true})
	_, _ = store.PutSubCategory(ctx, hierarchy.SubCategory{ExamID: exam.ID, Name: "Archived", IsActive: false})

	mustTrack(t, store, hierarchy.Track{ExamID: exam.ID, SubCategoryID: past.ID, Name: "Old Papers", Type: period.Years, IsActive: false})
	mustTrack(t, store, hierarchy.Track{ExamID: exam.ID, SubCategoryID: past.ID, Name: "Past Papers", Type: period.Years, IsActive: true})
	mustTrack(t, store, hierarchy.Track{ExamID: exam.ID, SubCategoryID: plan.ID, Name: "Biology Weekly", Type: period.Weeks, Duration: 12, IsActive: true})
	mustTrack(t, store, hierarchy.Track{ExamID: exam.ID, SubCategoryID: plan.ID, Name: "Biology Daily", Type: period.Days, Duration: 90, IsActive: true})

	return fixture{store: store, exam: exam, subject: subject, past: past, plan: plan}
}

func mustTrack(t *testing.T, store *hierarchy.MemoryStore, tr hierarchy.Track) {
	t.Helper()
	if _, err := store.PutTrack(t.Context(), tr); err != nil {
		t.Fatalf("PutTrack(%s) error = %v", tr.Name, err)
	}
}

func TestResolve_ExactName(t *testing.T) {
	f := setupHierarchy(t)
	r := resolver.New(f.store)

	res, err := r.Resolve(t.Context(), resolver.Request{
		ExamName:        "wassce",
		SubjectName:     "Biology",
		TrackName:       "Biology Weekly",
		SubCategoryName: "studyplan",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Strategy != resolver.StrategyExactName {
		t.Errorf("Strategy = %q, want exact_name", res.Strategy)
	}
	if res.Context.Track.Type != period.Weeks {
		t.Errorf("Track.Type = %q, want weeks", res.Context.Track.Type)
	}
	scope := res.Context.Scope()
	if scope.ExamName != "WASSCE" || scope.SubCategoryName != "studyplan" || scope.TrackName != "Biology Weekly" {
		t.Errorf("Scope() = %+v", scope)
	}
}

func TestResolve_FallbackByExpectedTrackType(t *testing.T) {
	f := setupHierarchy(t)
	r := resolver.New(f.store)

	res, err := r.Resolve(t.Context(), resolver.Request{
		ExamName:          "wassce",
		SubjectName:       "Biology",
		TrackName:         "BadTrackName",
		SubCategoryName:   "PastQuestions",
		ExpectedTrackType: period.Years,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Strategy != resolver.StrategyTrackType {
		t.Errorf("Strategy = %q, want track_type", res.Strategy)
	}
	if res.Context.Track.Name != "Past Papers" {
		t.Errorf("Track = %q, want the first active years track", res.Context.Track.Name)
	}
}

func TestResolve_FallbackPastQuestions(t *testing.T) {
	f := setupHierarchy(t)
	r := resolver.New(f.store)

	res, err := r.Resolve(t.Context(), resolver.Request{
		ExamName:        "WASSCE",
		SubjectName:     "Biology",
		TrackName:       "whatever",
		SubCategoryName: "pastquestions",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Strategy != resolver.StrategyPastQuestions {
		t.Errorf("Strategy = %q, want past_questions", res.Strategy)
	}
}

func TestResolve_TrackNotFoundListsCandidates(t *testing.T) {
	f := setupHierarchy(t)
	r := resolver.New(f.store)

	_, err := r.Resolve(t.Context(), resolver.Request{
		ExamName:          "WASSCE",
		SubjectName:       "Biology",
		TrackName:         "Nope",
		SubCategoryName:   "StudyPlan",
		ExpectedTrackType: period.Months,
	})
	if !apperr.Is(err, apperr.KindContextNotFound) {
		t.Fatalf("Resolve() error = %v, want context_not_found", err)
	}
	failure, ok := apperr.DetailsOf(err).(resolver.Failure)
	if !ok {
		t.Fatalf("details = %T, want resolver.Failure", apperr.DetailsOf(err))
	}
	if failure.Level != resolver.LevelTrack {
		t.Errorf("Level = %q, want track", failure.Level)
	}
	if len(failure.AvailableTracks) != 2 {
		t.Fatalf("AvailableTracks = %v, want 2 entries", failure.AvailableTracks)
	}
	if failure.AvailableTracks[0].Name != "Biology Weekly" || failure.AvailableTracks[0].TrackType != period.Weeks {
		t.Errorf("AvailableTracks[0] = %+v", failure.AvailableTracks[0])
	}
}

func TestResolve_LevelFailures(t *testing.T) {
	f := setupHierarchy(t)
	r := resolver.New(f.store)

	tests := []struct {
		name string
		req  resolver.Request
		want resolver.Level
	}{
		{"exam", resolver.Request{ExamName: "JAMB", SubjectName: "Biology", SubCategoryName: "studyplan"}, resolver.LevelExam},
		{"subject case-sensitive", resolver.Request{ExamName: "wassce", SubjectName: "biology", SubCategoryName: "studyplan"}, resolver.LevelSubject},
		{"inactive sub-category", resolver.Request{ExamName: "wassce", SubjectName: "Biology", SubCategoryName: "archived"}, resolver.LevelSubCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(t.Context(), tt.req)
			failure, ok := apperr.DetailsOf(err).(resolver.Failure)
			if !ok {
				t.Fatalf("Resolve() error = %v, want a resolver.Failure", err)
			}
			if failure.Level != tt.want {
				t.Errorf("Level = %q, want %q", failure.Level, tt.want)
			}
		})
	}
}

func TestResolve_SubCategoryCandidates(t *testing.T) {
	f := setupHierarchy(t)
	r := resolver.New(f.store)

	_, err := r.Resolve(t.Context(), resolver.Request{ExamName: "wassce", SubjectName: "Biology", SubCategoryName: "mocks"})
	failure, _ := apperr.DetailsOf(err).(resolver.Failure)
	if len(failure.AvailableSubCategories) != 2 {
		t.Errorf("AvailableSubCategories = %v, want the 2 active ones", failure.AvailableSubCategories)
	}
}

type brokenRepo struct{ hierarchy.Repository }

func (brokenRepo) ExamByName(context.Context, string) (hierarchy.Exam, error) {
	return hierarchy.Exam{}, errors.New("connection refused")
}

func TestResolve_InfrastructureFailure(t *testing.T) {
	r := resolver.New(brokenRepo{})

	_, err := r.Resolve(t.Context(), resolver.Request{ExamName: "wassce"})
	if !apperr.Is(err, apperr.KindInfrastructure) {
		t.Errorf("Resolve() error = %v, want infrastructure", err)
	}
}
