package curriculum_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-content/internal/curriculum"
	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/topic"
)

func TestNewLoader(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	exams := loader.Exams()
	if len(exams) != 1 {
		t.Fatalf("Exams() = %d, want 1", len(exams))
	}
	e := exams[0]
	if e.Name != "wassce" || len(e.Subjects) != 1 || len(e.SubCategories) != 2 {
		t.Errorf("exam = %+v", e)
	}
	if got := len(e.Subjects[0].Topics); got != 3 {
		t.Errorf("topics = %d, want 3", got)
	}
}

func TestLoader_SkipsNonExamYAML(t *testing.T) {
	dir := setupTestCurriculum(t)

	os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("exam: [unclosed"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.yml"), []byte("title: not an exam\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("# seeds"), 0o644)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if got := len(loader.Exams()); got != 1 {
		t.Errorf("Exams() = %d, want 1 (non-exam files skipped)", got)
	}
}

func TestLoader_EmptyDir(t *testing.T) {
	loader, err := curriculum.NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if got := len(loader.Exams()); got != 0 {
		t.Errorf("Exams() = %d, want 0 for empty dir", got)
	}
}

func TestLoader_UnknownTrackType(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
exam: jamb
sub_categories:
  - name: studyplan
    tracks:
      - name: Fortnightly
        track_type: fortnights
`), 0o644)

	if _, err := curriculum.NewLoader(dir); err == nil {
		t.Error("NewLoader() should reject an unknown track type")
	}
}

func TestLoader_Apply(t *testing.T) {
	ctx := t.Context()
	loader, err := curriculum.NewLoader(setupTestCurriculum(t))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	hs := hierarchy.NewMemoryStore()
	ts := topic.NewMemoryStore()

	st, err := loader.Apply(ctx, hs, ts)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := curriculum.Stats{Exams: 1, Subjects: 1, Topics: 3, SubCategories: 2, Tracks: 3}
	if st != want {
		t.Errorf("Apply() = %+v, want %+v", st, want)
	}

	exam, err := hs.ExamByName(ctx, "WASSCE")
	if err != nil {
		t.Fatalf("ExamByName() error = %v", err)
	}
	if !exam.IsActive || exam.DisplayName != "WASSCE (West Africa)" {
		t.Errorf("exam = %+v", exam)
	}
	subject, _ := hs.SubjectByName(ctx, exam.ID, "Biology")
	sc, _ := hs.SubCategoryByName(ctx, exam.ID, "studyplan")
	track, err := hs.TrackByName(ctx, exam.ID, sc.ID, "Biology Weekly")
	if err != nil {
		t.Fatalf("TrackByName() error = %v", err)
	}
	if track.Type != period.Weeks || track.Duration != 12 {
		t.Errorf("track = %+v, want weeks/12", track)
	}

	topics, _ := ts.ListTopics(ctx, exam.ID, subject.ID)
	if len(topics) != 3 {
		t.Errorf("ListTopics() = %d, want 3", len(topics))
	}

	// Re-applying is idempotent.
	if _, err := loader.Apply(ctx, hs, ts); err != nil {
		t.Fatalf("Apply() again error = %v", err)
	}
	topics, _ = ts.ListTopics(ctx, exam.ID, subject.ID)
	if len(topics) != 3 {
		t.Errorf("ListTopics() after reapply = %d, want 3", len(topics))
	}
}

func TestLoader_ApplyRejectsTrackTypeChange(t *testing.T) {
	ctx := t.Context()
	hs := hierarchy.NewMemoryStore()
	ts := topic.NewMemoryStore()

	first, _ := curriculum.NewLoader(setupTestCurriculum(t))
	if _, err := first.Apply(ctx, hs, ts); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "wassce.yaml"), []byte(`
exam: wassce
sub_categories:
  - name: studyplan
    tracks:
      - name: Biology Weekly
        track_type: days
`), 0o644)
	second, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if _, err := second.Apply(ctx, hs, ts); !errors.Is(err, hierarchy.ErrTrackTypeChanged) {
		t.Errorf("Apply() error = %v, want ErrTrackTypeChanged", err)
	}
}

func setupTestCurriculum(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	examDir := filepath.Join(dir, "exams", "wassce")
	os.MkdirAll(examDir, 0o755)

	os.WriteFile(filepath.Join(examDir, "wassce.yaml"), []byte(`
exam: wassce
display_name: WASSCE (West Africa)
subjects:
  - name: Biology
    topics:
      - name: Cell Biology
        description: Structure and function of cells
      - name: Genetics
      - name: Ecology
sub_categories:
  - name: studyplan
    display_name: Study Plan
    tracks:
      - name: Biology Weekly
        track_type: weeks
        duration: 12
      - name: Biology Daily
        track_type: days
        duration: 90
  - name: PastQuestions
    tracks:
      - name: Past Papers
        track_type: years
`), 0o644)

	return dir
}
