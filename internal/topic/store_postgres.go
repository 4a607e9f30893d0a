package topic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/period"
	"github.com/p-n-ai/pai-content/internal/platform/database"
)

// PostgresStore is a PostgreSQL-backed Repository, Writer and AssignmentStore.
type PostgresStore struct {
	db database.Querier
}

// NewPostgresStore creates a topic store on q.
func NewPostgresStore(q database.Querier) (*PostgresStore, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is nil")
	}
	return &PostgresStore{db: q}, nil
}

const (
	topicColumns      = `id::text, exam_id::text, subject_id::text, name, display_name, description, created_at`
	assignmentColumns = `id::text, exam_id::text, subject_id::text, track_id::text, sub_category_id::text,
		time_period, period_value, topic_id::text, order_index, is_active, created_at`
)

func (s *PostgresStore) ListTopics(ctx context.Context, examID, subjectID string) ([]Topic, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+topicColumns+`
		 FROM topics
		 WHERE exam_id = $1::uuid AND subject_id = $2::uuid
		 ORDER BY name`,
		examID, subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.ExamID, &t.SubjectID, &t.Name, &t.DisplayName, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) TopicByID(ctx context.Context, id string) (Topic, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Topic{}, ErrNotFound
	}

	var t Topic
	err := s.db.QueryRow(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = $1::uuid`,
		id,
	).Scan(&t.ID, &t.ExamID, &t.SubjectID, &t.Name, &t.DisplayName, &t.Description, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Topic{}, ErrNotFound
		}
		return Topic{}, fmt.Errorf("get topic: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) PutTopic(ctx context.Context, t Topic) (Topic, error) {
	if t.ExamID == "" || t.SubjectID == "" || t.Name == "" {
		return Topic{}, fmt.Errorf("topic exam_id, subject_id and name are required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO topics (id, exam_id, subject_id, name, display_name, description)
		 VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
		 ON CONFLICT (exam_id, subject_id, name) DO UPDATE
		   SET display_name = EXCLUDED.display_name, description = EXCLUDED.description
		 RETURNING `+topicColumns,
		t.ID, t.ExamID, t.SubjectID, t.Name, t.DisplayName, t.Description,
	).Scan(&t.ID, &t.ExamID, &t.SubjectID, &t.Name, &t.DisplayName, &t.Description, &t.CreatedAt)
	if err != nil {
		return Topic{}, fmt.Errorf("upsert topic: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Assignments(ctx context.Context, key PeriodKey) ([]Assignment, error) {
	return queryAssignments(ctx, s.db,
		`SELECT `+assignmentColumns+`
		 FROM topic_assignments
		 WHERE exam_id = $1::uuid AND subject_id = $2::uuid AND track_id = $3::uuid AND sub_category_id = $4::uuid
		   AND time_period = $5 AND period_value = $6 AND is_active
		 ORDER BY order_index`,
		key.Scope.ExamID, key.Scope.SubjectID, key.Scope.TrackID, key.Scope.SubCategoryID,
		string(key.TimePeriod), key.PeriodValue,
	)
}

func (s *PostgresStore) TrackAssignments(ctx context.Context, scope hierarchy.Scope) ([]Assignment, error) {
	return queryAssignments(ctx, s.db,
		`SELECT `+assignmentColumns+`
		 FROM topic_assignments
		 WHERE exam_id = $1::uuid AND subject_id = $2::uuid AND track_id = $3::uuid AND sub_category_id = $4::uuid
		   AND is_active
		 ORDER BY time_period, period_value, order_index`,
		scope.ExamID, scope.SubjectID, scope.TrackID, scope.SubCategoryID,
	)
}

// Replace runs under a transaction-scoped advisory lock on the period so that
// concurrent replacements of the same period serialize.
func (s *PostgresStore) Replace(ctx context.Context, key PeriodKey, topicIDs []string, guard func([]Assignment) error) ([]Assignment, error) {
	var out []Assignment
	err := database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := database.LockKey(ctx, tx, key.String()); err != nil {
			return err
		}

		inTx := &PostgresStore{db: tx}
		existing, err := inTx.Assignments(ctx, key)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(existing); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE topic_assignments SET is_active = FALSE
			 WHERE exam_id = $1::uuid AND subject_id = $2::uuid AND track_id = $3::uuid AND sub_category_id = $4::uuid
			   AND time_period = $5 AND period_value = $6 AND is_active`,
			key.Scope.ExamID, key.Scope.SubjectID, key.Scope.TrackID, key.Scope.SubCategoryID,
			string(key.TimePeriod), key.PeriodValue,
		); err != nil {
			return fmt.Errorf("deactivate assignments: %w", err)
		}

		for i, topicID := range topicIDs {
			var a Assignment
			var timePeriod string
			err := tx.QueryRow(ctx,
				`INSERT INTO topic_assignments
				   (id, exam_id, subject_id, track_id, sub_category_id, time_period, period_value, topic_id, order_index)
				 VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::uuid, $6, $7, $8::uuid, $9)
				 RETURNING `+assignmentColumns,
				uuid.NewString(), key.Scope.ExamID, key.Scope.SubjectID, key.Scope.TrackID, key.Scope.SubCategoryID,
				string(key.TimePeriod), key.PeriodValue, topicID, i,
			).Scan(&a.ID, &a.ExamID, &a.SubjectID, &a.TrackID, &a.SubCategoryID,
				&timePeriod, &a.PeriodValue, &a.TopicID, &a.OrderIndex, &a.IsActive, &a.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert assignment %s: %w", topicID, err)
			}
			a.TimePeriod = period.TimePeriod(timePeriod)
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func queryAssignments(ctx context.Context, q database.Querier, sql string, args ...any) ([]Assignment, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		var timePeriod string
		if err := rows.Scan(&a.ID, &a.ExamID, &a.SubjectID, &a.TrackID, &a.SubCategoryID,
			&timePeriod, &a.PeriodValue, &a.TopicID, &a.OrderIndex, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.TimePeriod = period.TimePeriod(timePeriod)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}
