// Package resolver turns human-readable exam, subject, sub-category and track
// names into a resolved hierarchy context.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-content/internal/apperr"
	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
)

// Strategy records which rule resolved the track.
type Strategy string

const (
	StrategyExactName     Strategy = "exact_name"
	StrategyTrackType     Strategy = "track_type"
	StrategyPastQuestions Strategy = "past_questions"
)

// Level is the hierarchy level a resolution failed at.
type Level string

const (
	LevelExam        Level = "exam"
	LevelSubject     Level = "subject"
	LevelSubCategory Level = "subCategory"
	LevelTrack       Level = "track"
)

// Request names the context to resolve.
type Request struct {
	ExamName          string           `json:"examName"`
	SubjectName       string           `json:"subjectName"`
	TrackName         string           `json:"trackName"`
	SubCategoryName   string           `json:"subCategoryName"`
	ExpectedTrackType period.TrackType `json:"expectedTrackType,omitempty"`
}

// Context is a fully resolved hierarchy context.
type Context struct {
	Exam        hierarchy.Exam        `json:"exam"`
	Subject     hierarchy.Subject     `json:"subject"`
	SubCategory hierarchy.SubCategory `json:"subCategory"`
	Track       hierarchy.Track       `json:"track"`
}

// Scope returns the identity fields stamped onto stored records.
func (c Context) Scope() hierarchy.Scope {
	return hierarchy.Scope{
		ExamID:          c.Exam.ID,
		SubjectID:       c.Subject.ID,
		TrackID:         c.Track.ID,
		SubCategoryID:   c.SubCategory.ID,
		ExamName:        c.Exam.Name,
		SubjectName:     c.Subject.Name,
		TrackName:       c.Track.Name,
		SubCategoryName: c.SubCategory.Name,
	}
}

// Resolution is a successful resolution.
type Resolution struct {
	Context  Context  `json:"context"`
	Strategy Strategy `json:"strategy"`
}

// Failure is attached as details to ContextNotFound errors.
type Failure struct {
	Level     Level  `json:"level"`
	Requested string `json:"requested"`
	// AvailableTracks lists the active tracks of the sub-category when track
	// resolution fails.
	AvailableTracks []hierarchy.TrackSummary `json:"availableTracks,omitempty"`
	// AvailableSubCategories lists the exam's active sub-categories when the
	// sub-category cannot be resolved.
	AvailableSubCategories []string `json:"availableSubCategories,omitempty"`
}

// Resolver resolves contexts against a hierarchy repository.
type Resolver struct {
	repo hierarchy.Repository
}

// New creates a Resolver.
func New(repo hierarchy.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve resolves req. A missing or inactive entity yields a ContextNotFound
// error carrying a Failure; repository failures are returned as
// infrastructure errors.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	exam, err := r.repo.ExamByName(ctx, hierarchy.CanonicalExamName(req.ExamName))
	if err != nil || !exam.IsActive {
		return Resolution{}, r.fail(err, "find exam", Failure{Level: LevelExam, Requested: req.ExamName})
	}

	subject, err := r.repo.SubjectByName(ctx, exam.ID, strings.TrimSpace(req.SubjectName))
	if err != nil || !subject.IsActive {
		return Resolution{}, r.fail(err, "find subject", Failure{Level: LevelSubject, Requested: req.SubjectName})
	}

	subCategory, err := r.repo.SubCategoryByName(ctx, exam.ID, hierarchy.CanonicalSubCategoryName(req.SubCategoryName))
	if err != nil || !subCategory.IsActive {
		if err != nil && !errors.Is(err, hierarchy.ErrNotFound) {
			return Resolution{}, apperr.Infrastructure("find sub-category", err)
		}
		f := Failure{Level: LevelSubCategory, Requested: req.SubCategoryName}
		all, err := r.repo.ListSubCategories(ctx, exam.ID)
		if err != nil {
			return Resolution{}, apperr.Infrastructure("list sub-categories", err)
		}
		for _, sc := range all {
			if sc.IsActive {
				f.AvailableSubCategories = append(f.AvailableSubCategories, sc.Name)
			}
		}
		return Resolution{}, notFound(f)
	}

	track, strategy, err := r.resolveTrack(ctx, exam, subCategory, req)
	if err != nil {
		return Resolution{}, err
	}
	if strategy != StrategyExactName {
		slog.Info("track resolved by fallback",
			"exam", exam.Name,
			"sub_category", subCategory.Name,
			"requested", req.TrackName,
			"resolved", track.Name,
			"strategy", strategy,
		)
	}

	return Resolution{
		Context: Context{
			Exam:        exam,
			Subject:     subject,
			SubCategory: subCategory,
			Track:       track,
		},
		Strategy: strategy,
	}, nil
}

func (r *Resolver) resolveTrack(ctx context.Context, exam hierarchy.Exam, sc hierarchy.SubCategory, req Request) (hierarchy.Track, Strategy, error) {
	track, err := r.repo.TrackByName(ctx, exam.ID, sc.ID, req.TrackName)
	switch {
	case err == nil && track.IsActive:
		return track, StrategyExactName, nil
	case err != nil && !errors.Is(err, hierarchy.ErrNotFound):
		return hierarchy.Track{}, "", apperr.Infrastructure("find track", err)
	}

	all, err := r.repo.ListTracks(ctx, exam.ID, sc.ID)
	if err != nil {
		return hierarchy.Track{}, "", apperr.Infrastructure("list tracks", err)
	}

	if req.ExpectedTrackType != "" {
		if t, ok := firstActive(all, req.ExpectedTrackType); ok {
			return t, StrategyTrackType, nil
		}
	}
	if hierarchy.IsPastQuestions(sc.Name) {
		if t, ok := firstActive(all, period.Years); ok {
			return t, StrategyPastQuestions, nil
		}
	}

	f := Failure{Level: LevelTrack, Requested: req.TrackName, AvailableTracks: []hierarchy.TrackSummary{}}
	for _, t := range all {
		if t.IsActive {
			f.AvailableTracks = append(f.AvailableTracks, hierarchy.TrackSummary{Name: t.Name, TrackType: t.Type})
		}
	}
	return hierarchy.Track{}, "", notFound(f)
}

func firstActive(tracks []hierarchy.Track, typ period.TrackType) (hierarchy.Track, bool) {
	for _, t := range tracks {
		if t.IsActive && t.Type == typ {
			return t, true
		}
	}
	return hierarchy.Track{}, false
}

func (r *Resolver) fail(err error, op string, f Failure) error {
	if err != nil && !errors.Is(err, hierarchy.ErrNotFound) {
		return apperr.Infrastructure(op, err)
	}
	return notFound(f)
}

func notFound(f Failure) error {
	return apperr.New(apperr.KindContextNotFound, fmt.Sprintf("%s %q not found", f.Level, f.Requested), f)
}
