// Package curriculum loads the exam hierarchy and approved topic vocabularies
// from YAML seed files.
package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/topic"
)

// Loader reads exam seed files from a directory tree.
type Loader struct {
	rootDir string
	exams   []Exam
}

// NewLoader creates a loader and reads every seed file under rootDir.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{rootDir: rootDir}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded", "exams", len(l.exams))
	return l, nil
}

// Exams returns the loaded exams ordered by name.
func (l *Loader) Exams() []Exam {
	out := make([]Exam, len(l.exams))
	copy(out, l.exams)
	return out
}

func (l *Loader) loadAll() error {
	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadExam(path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(l.exams, func(i, j int) bool { return l.exams[i].Name < l.exams[j].Name })
	return nil
}

func (l *Loader) loadExam(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var exam Exam
	if err := yaml.Unmarshal(data, &exam); err != nil {
		slog.Warn("skipping invalid curriculum YAML", "path", path, "error", err)
		return nil
	}
	if exam.Name == "" {
		return nil // Not an exam file
	}

	for _, sc := range exam.SubCategories {
		for _, tr := range sc.Tracks {
			if _, err := period.ParseTrackType(tr.TrackType); err != nil {
				return fmt.Errorf("%s: track %q: %w", path, tr.Name, err)
			}
		}
	}

	l.exams = append(l.exams, exam)
	return nil
}

// Stats counts the records written by Apply.
type Stats struct {
	Exams         int
	Subjects      int
	Topics        int
	SubCategories int
	Tracks        int
}

// Apply upserts the loaded hierarchy and topics. Re-applying the same files
// is a no-op; an existing track whose type differs fails with
// hierarchy.ErrTrackTypeChanged.
func (l *Loader) Apply(ctx context.Context, hw hierarchy.Writer, tw topic.Writer) (Stats, error) {
	var st Stats
	for _, e := range l.exams {
		exam, err := hw.PutExam(ctx, hierarchy.Exam{Name: e.Name, DisplayName: orName(e.DisplayName, e.Name), IsActive: !e.Inactive})
		if err != nil {
			return st, fmt.Errorf("seed exam %s: %w", e.Name, err)
		}
		st.Exams++

		for _, s := range e.Subjects {
			subject, err := hw.PutSubject(ctx, hierarchy.Subject{
				ExamID: exam.ID, Name: s.Name, DisplayName: orName(s.DisplayName, s.Name), IsActive: !s.Inactive,
			})
			if err != nil {
				return st, fmt.Errorf("seed subject %s/%s: %w", e.Name, s.Name, err)
			}
			st.Subjects++

			for _, t := range s.Topics {
				if _, err := tw.PutTopic(ctx, topic.Topic{
					ExamID: exam.ID, SubjectID: subject.ID, Name: t.Name,
					DisplayName: orName(t.DisplayName, t.Name), Description: t.Description,
				}); err != nil {
					return st, fmt.Errorf("seed topic %s/%s/%s: %w", e.Name, s.Name, t.Name, err)
				}
				st.Topics++
			}
		}

		for _, sc := range e.SubCategories {
			stored, err := hw.PutSubCategory(ctx, hierarchy.SubCategory{
				ExamID: exam.ID, Name: sc.Name, DisplayName: orName(sc.DisplayName, sc.Name), IsActive: !sc.Inactive,
			})
			if err != nil {
				return st, fmt.Errorf("seed sub-category %s/%s: %w", e.Name, sc.Name, err)
			}
			st.SubCategories++

			for _, tr := range sc.Tracks {
				typ, _ := period.ParseTrackType(tr.TrackType)
				if _, err := hw.PutTrack(ctx, hierarchy.Track{
					ExamID: exam.ID, SubCategoryID: stored.ID, Name: tr.Name,
					DisplayName: orName(tr.DisplayName, tr.Name), Type: typ, Duration: tr.Duration, IsActive: !tr.Inactive,
				}); err != nil {
					return st, fmt.Errorf("seed track %s/%s/%s: %w", e.Name, sc.Name, tr.Name, err)
				}
				st.Tracks++
			}
		}
	}

	slog.Info("curriculum applied",
		"exams", st.Exams,
		"subjects", st.Subjects,
		"topics", st.Topics,
		"sub_categories", st.SubCategories,
		"tracks", st.Tracks,
	)
	return st, nil
}

func orName(display, name string) string {
	if display != "" {
		return display
	}
	return name
}
