package hierarchy_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
)

func TestMemoryStore_ExamCanonicalName(t *testing.T) {
	store := hierarchy.NewMemoryStore()
	ctx := t.Context()

	exam, err := store.PutExam(ctx, hierarchy.Exam{Name: " wassce ", DisplayName: "WASSCE", IsActive: true})
	if err != nil {
		t.Fatalf("PutExam() error = %v", err)
	}
	if exam.Name != "WASSCE" {
		t.Errorf("Name = %q, want WASSCE", exam.Name)
	}
	if exam.ID == "" {
		t.Error("PutExam() should assign an ID")
	}

	got, err := store.ExamByName(ctx, "WASSCE")
	if err != nil {
		t.Fatalf("ExamByName() error = %v", err)
	}
	if got.ID != exam.ID {
		t.Errorf("ExamByName() ID = %q, want %q", got.ID, exam.ID)
	}

	again, _ := store.PutExam(ctx, hierarchy.Exam{Name: "Wassce", DisplayName: "Renamed", IsActive: true})
	if again.ID != exam.ID {
		t.Error("PutExam() with the same canonical name should update in place")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	store := hierarchy.NewMemoryStore()
	ctx := t.Context()

	if _, err := store.ExamByName(ctx, "NOPE"); !errors.Is(err, hierarchy.ErrNotFound) {
		t.Errorf("ExamByName() error = %v, want ErrNotFound", err)
	}
	if _, err := store.TrackByName(ctx, "e", "sc", "t"); !errors.Is(err, hierarchy.ErrNotFound) {
		t.Errorf("TrackByName() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_TrackTypeImmutable(t *testing.T) {
	store := hierarchy.NewMemoryStore()
	ctx := t.Context()

	track := hierarchy.Track{ExamID: "e1", SubCategoryID: "sc1", Name: "Biology Weekly", Type: period.Weeks, Duration: 12, IsActive: true}
	first, err := store.PutTrack(ctx, track)
	if err != nil {
		t.Fatalf("PutTrack() error = %v", err)
	}

	track.Duration = 16
	updated, err := store.PutTrack(ctx, track)
	if err != nil {
		t.Fatalf("PutTrack() update error = %v", err)
	}
	if updated.ID != first.ID || updated.Duration != 16 {
		t.Errorf("PutTrack() update = %+v", updated)
	}

	track.Type = period.Days
	if _, err := store.PutTrack(ctx, track); !errors.Is(err, hierarchy.ErrTrackTypeChanged) {
		t.Errorf("PutTrack() type change error = %v, want ErrTrackTypeChanged", err)
	}
}

func TestMemoryStore_ListTracksInCreationOrder(t *testing.T) {
	store := hierarchy.NewMemoryStore()
	ctx := t.Context()

	for _, name := range []string{"B", "A", "C"} {
		if _, err := store.PutTrack(ctx, hierarchy.Track{ExamID: "e1", SubCategoryID: "sc1", Name: name, Type: period.Years, IsActive: true}); err != nil {
			t.Fatalf("PutTrack(%s) error = %v", name, err)
		}
	}
	_, _ = store.PutTrack(ctx, hierarchy.Track{ExamID: "e1", SubCategoryID: "other", Name: "X", Type: period.Years})

	tracks, err := store.ListTracks(ctx, "e1", "sc1")
	if err != nil {
		t.Fatalf("ListTracks() error = %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("ListTracks() = %d tracks, want 3", len(tracks))
	}
	for i, want := range []string{"B", "A", "C"} {
		if tracks[i].Name != want {
			t.Errorf("tracks[%d] = %q, want %q", i, tracks[i].Name, want)
		}
	}
}

func TestIsPastQuestions(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"PastQuestions", true},
		{"past_questions", true},
		{"Past Questions", true},
		{"pastquestion", true},
		{"study plan", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := hierarchy.IsPastQuestions(tt.name); got != tt.want {
			t.Errorf("IsPastQuestions(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCanonicalNames(t *testing.T) {
	if got := hierarchy.CanonicalExamName("  jamb "); got != "JAMB" {
		t.Errorf("CanonicalExamName() = %q, want JAMB", got)
	}
	if got := hierarchy.CanonicalSubCategoryName("PastQuestions"); got != "pastquestions" {
		t.Errorf("CanonicalSubCategoryName() = %q, want pastquestions", got)
	}
}
