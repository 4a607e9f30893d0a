package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/platform/database"
)

// PostgresStore is a PostgreSQL-backed Repository and Writer.
type PostgresStore struct {
	db database.Querier
}

// NewPostgresStore creates a hierarchy store on q.
func NewPostgresStore(q database.Querier) (*PostgresStore, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is nil")
	}
	return &PostgresStore{db: q}, nil
}

const (
	examColumns        = `id::text, name, display_name, is_active, created_at`
	subjectColumns     = `id::text, exam_id::text, name, display_name, is_active, created_at`
	subCategoryColumns = `id::text, exam_id::text, name, display_name, is_active, created_at`
	trackColumns       = `id::text, exam_id::text, sub_category_id::text, name, display_name, track_type, COALESCE(duration, 0), is_active, created_at`
)

func (s *PostgresStore) ExamByName(ctx context.Context, name string) (Exam, error) {
	var e Exam
	err := s.db.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE name = $1 LIMIT 1`,
		name,
	).Scan(&e.ID, &e.Name, &e.DisplayName, &e.IsActive, &e.CreatedAt)
	if err != nil {
		return Exam{}, notFound("exam", err)
	}
	return e, nil
}

func (s *PostgresStore) SubjectByName(ctx context.Context, examID, name string) (Subject, error) {
	var sub Subject
	err := s.db.QueryRow(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE exam_id = $1::uuid AND name = $2 LIMIT 1`,
		examID, name,
	).Scan(&sub.ID, &sub.ExamID, &sub.Name, &sub.DisplayName, &sub.IsActive, &sub.CreatedAt)
	if err != nil {
		return Subject{}, notFound("subject", err)
	}
	return sub, nil
}

func (s *PostgresStore) SubCategoryByName(ctx context.Context, examID, name string) (SubCategory, error) {
	var sc SubCategory
	err := s.db.QueryRow(ctx,
		`SELECT `+subCategoryColumns+` FROM sub_categories WHERE exam_id = $1::uuid AND name = $2 LIMIT 1`,
		examID, name,
	).Scan(&sc.ID, &sc.ExamID, &sc.Name, &sc.DisplayName, &sc.IsActive, &sc.CreatedAt)
	if err != nil {
		return SubCategory{}, notFound("sub-category", err)
	}
	return sc, nil
}

func (s *PostgresStore) ListSubCategories(ctx context.Context, examID string) ([]SubCategory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subCategoryColumns+` FROM sub_categories WHERE exam_id = $1::uuid ORDER BY created_at, name`,
		examID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sub-categories: %w", err)
	}
	defer rows.Close()

	var out []SubCategory
	for rows.Next() {
		var sc SubCategory
		if err := rows.Scan(&sc.ID, &sc.ExamID, &sc.Name, &sc.DisplayName, &sc.IsActive, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sub-category: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sub-categories: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) TrackByName(ctx context.Context, examID, subCategoryID, name string) (Track, error) {
	t, err := scanTrack(s.db.QueryRow(ctx,
		`SELECT `+trackColumns+`
		 FROM tracks
		 WHERE exam_id = $1::uuid AND sub_category_id = $2::uuid AND name = $3
		 LIMIT 1`,
		examID, subCategoryID, name,
	))
	if err != nil {
		return Track{}, notFound("track", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTracks(ctx context.Context, examID, subCategoryID string) ([]Track, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+trackColumns+`
		 FROM tracks
		 WHERE exam_id = $1::uuid AND sub_category_id = $2::uuid
		 ORDER BY created_at, name`,
		examID, subCategoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var out []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PutExam(ctx context.Context, e Exam) (Exam, error) {
	e.Name = CanonicalExamName(e.Name)
	if e.Name == "" {
		return Exam{}, fmt.Errorf("exam name is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO exams (id, name, display_name, is_active)
		 VALUES ($1::uuid, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE
		   SET display_name = EXCLUDED.display_name, is_active = EXCLUDED.is_active
		 RETURNING `+examColumns,
		e.ID, e.Name, e.DisplayName, e.IsActive,
	).Scan(&e.ID, &e.Name, &e.DisplayName, &e.IsActive, &e.CreatedAt)
	if err != nil {
		return Exam{}, fmt.Errorf("upsert exam: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) PutSubject(ctx context.Context, sub Subject) (Subject, error) {
	if sub.ExamID == "" || sub.Name == "" {
		return Subject{}, fmt.Errorf("subject exam_id and name are required")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO subjects (id, exam_id, name, display_name, is_active)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5)
		 ON CONFLICT (exam_id, name) DO UPDATE
		   SET display_name = EXCLUDED.display_name, is_active = EXCLUDED.is_active
		 RETURNING `+subjectColumns,
		sub.ID, sub.ExamID, sub.Name, sub.DisplayName, sub.IsActive,
	).Scan(&sub.ID, &sub.ExamID, &sub.Name, &sub.DisplayName, &sub.IsActive, &sub.CreatedAt)
	if err != nil {
		return Subject{}, fmt.Errorf("upsert subject: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) PutSubCategory(ctx context.Context, sc SubCategory) (SubCategory, error) {
	sc.Name = CanonicalSubCategoryName(sc.Name)
	if sc.ExamID == "" || sc.Name == "" {
		return SubCategory{}, fmt.Errorf("sub-category exam_id and name are required")
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO sub_categories (id, exam_id, name, display_name, is_active)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5)
		 ON CONFLICT (exam_id, name) DO UPDATE
		   SET display_name = EXCLUDED.display_name, is_active = EXCLUDED.is_active
		 RETURNING `+subCategoryColumns,
		sc.ID, sc.ExamID, sc.Name, sc.DisplayName, sc.IsActive,
	).Scan(&sc.ID, &sc.ExamID, &sc.Name, &sc.DisplayName, &sc.IsActive, &sc.CreatedAt)
	if err != nil {
		return SubCategory{}, fmt.Errorf("upsert sub-category: %w", err)
	}
	return sc, nil
}

// PutTrack inserts or updates a track. The track type of an existing track is
// never rewritten; a differing type returns ErrTrackTypeChanged.
func (s *PostgresStore) PutTrack(ctx context.Context, t Track) (Track, error) {
	if t.ExamID == "" || t.SubCategoryID == "" || t.Name == "" {
		return Track{}, fmt.Errorf("track exam_id, sub_category_id and name are required")
	}
	if !t.Type.Valid() {
		return Track{}, fmt.Errorf("track %q: invalid track type %q", t.Name, t.Type)
	}

	existing, err := s.TrackByName(ctx, t.ExamID, t.SubCategoryID, t.Name)
	switch {
	case err == nil && existing.Type != t.Type:
		return Track{}, fmt.Errorf("track %q is %s, cannot become %s: %w", t.Name, existing.Type, t.Type, ErrTrackTypeChanged)
	case err != nil && !errors.Is(err, ErrNotFound):
		return Track{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	stored, err := scanTrack(s.db.QueryRow(ctx,
		`INSERT INTO tracks (id, exam_id, sub_category_id, name, display_name, track_type, duration, is_active)
		 VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8)
		 ON CONFLICT (exam_id, sub_category_id, name) DO UPDATE
		   SET display_name = EXCLUDED.display_name,
		       duration = EXCLUDED.duration,
		       is_active = EXCLUDED.is_active
		 RETURNING `+trackColumns,
		t.ID, t.ExamID, t.SubCategoryID, t.Name, t.DisplayName, string(t.Type), nullIfZero(t.Duration), t.IsActive,
	))
	if err != nil {
		return Track{}, fmt.Errorf("upsert track: %w", err)
	}
	return stored, nil
}

func scanTrack(row pgx.Row) (Track, error) {
	var t Track
	var trackType string
	if err := row.Scan(&t.ID, &t.ExamID, &t.SubCategoryID, &t.Name, &t.DisplayName, &trackType, &t.Duration, &t.IsActive, &t.CreatedAt); err != nil {
		return Track{}, err
	}
	t.Type = period.TrackType(trackType)
	return t, nil
}

func notFound(entity string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("get %s: %w", entity, err)
}

func nullIfZero(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
