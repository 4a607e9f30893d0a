package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/p-n-ai/pai-content/internal/hierarchy"
	"github.com/p-n-ai/pai-content/internal/platform/database"
)

// PostgresStore is a PostgreSQL-backed Store. WithPeriodLock runs in one
// transaction holding an advisory lock on the period, so a forced replace is
// atomic for readers; each Insert runs in its own savepoint.
type PostgresStore struct {
	db database.Querier
}

// NewPostgresStore creates an item store on q.
func NewPostgresStore(q database.Querier) (*PostgresStore, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is nil")
	}
	return &PostgresStore{db: q}, nil
}

const itemColumns = `id::text, kind, exam_id::text, subject_id::text, track_id::text, sub_category_id::text,
	COALESCE(topic_id::text, ''), exam_name, subject_name, track_name, sub_category_name,
	name, display_name, description, order_index, period_key, metadata,
	COALESCE(year, 0), COALESCE(topic, ''), COALESCE(question, ''), options,
	COALESCE(answer, ''), COALESCE(explanation, ''), is_active, created_at, updated_at`

// periodPredicate matches the active items of one period. $1..$4 are the
// scope IDs, $5 the period key and $6 the semester label ('' for other types).
const periodPredicate = `exam_id = $1::uuid AND subject_id = $2::uuid AND track_id = $3::uuid AND sub_category_id = $4::uuid
	AND is_active
	AND (period_key = $5 OR ($6 <> '' AND metadata->>'semesterName' = $6))`

func periodArgs(q PeriodQuery, extra ...any) []any {
	args := []any{q.Scope.ExamID, q.Scope.SubjectID, q.Scope.TrackID, q.Scope.SubCategoryID, q.Period.Key(), q.Period.SemesterName}
	return append(args, extra...)
}

func (s *PostgresStore) WithPeriodLock(ctx context.Context, q PeriodQuery, fn func(tx PeriodTx) error) error {
	return database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := database.LockKey(ctx, tx, q.LockKey()); err != nil {
			return err
		}
		return fn(&postgresTx{tx: tx, q: q})
	})
}

func (s *PostgresStore) ActiveInPeriod(ctx context.Context, q PeriodQuery) ([]Item, error) {
	return queryItems(ctx, s.db,
		`SELECT `+itemColumns+` FROM content_items WHERE `+periodPredicate+` ORDER BY order_index, name`,
		periodArgs(q)...,
	)
}

func (s *PostgresStore) ActiveInScope(ctx context.Context, scope hierarchy.Scope) ([]Item, error) {
	return queryItems(ctx, s.db,
		`SELECT `+itemColumns+`
		 FROM content_items
		 WHERE exam_id = $1::uuid AND subject_id = $2::uuid AND track_id = $3::uuid AND sub_category_id = $4::uuid
		   AND is_active
		 ORDER BY order_index, name`,
		scope.ExamID, scope.SubjectID, scope.TrackID, scope.SubCategoryID,
	)
}

func (s *PostgresStore) QuestionsByTopic(ctx context.Context, examID, subjectID, topicID string) ([]Item, error) {
	if _, err := uuid.Parse(topicID); err != nil {
		return nil, nil
	}
	return queryItems(ctx, s.db,
		`SELECT `+itemColumns+`
		 FROM content_items
		 WHERE exam_id = $1::uuid AND subject_id = $2::uuid AND topic_id = $3::uuid
		   AND kind = 'question' AND is_active
		 ORDER BY order_index, name`,
		examID, subjectID, topicID,
	)
}

func (s *PostgresStore) UpdateItem(ctx context.Context, q PeriodQuery, name string, fn func(*Item) error) (Item, error) {
	var out Item
	err := database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		it, err := scanItem(tx.QueryRow(ctx,
			`SELECT `+itemColumns+` FROM content_items WHERE `+periodPredicate+` AND name = $7 FOR UPDATE`,
			periodArgs(q, name)...,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}

		if err := fn(&it); err != nil {
			return err
		}

		meta, options, err := encodeJSON(it)
		if err != nil {
			return err
		}
		out, err = scanItem(tx.QueryRow(ctx,
			`UPDATE content_items
			 SET display_name = $2, description = $3, metadata = $4, topic_id = $5::uuid, topic = $6,
			     question = $7, options = $8, answer = $9, explanation = $10, updated_at = NOW()
			 WHERE id = $1::uuid
			 RETURNING `+itemColumns,
			it.ID, it.DisplayName, it.Description, meta, nullIfEmpty(it.TopicID), nullIfEmpty(it.Topic),
			nullIfEmpty(it.Question), options, nullIfEmpty(it.Answer), nullIfEmpty(it.Explanation),
		))
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return out, nil
}

func (s *PostgresStore) DeleteItem(ctx context.Context, q PeriodQuery, name string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE content_items SET is_active = FALSE, updated_at = NOW() WHERE `+periodPredicate+` AND name = $7`,
		periodArgs(q, name)...,
	)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
	q  PeriodQuery
}

func (t *postgresTx) Active(ctx context.Context) ([]Item, error) {
	return queryItems(ctx, t.tx,
		`SELECT `+itemColumns+` FROM content_items WHERE `+periodPredicate+` ORDER BY order_index, name`,
		periodArgs(t.q)...,
	)
}

func (t *postgresTx) Deactivate(ctx context.Context) (int, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE content_items SET is_active = FALSE, updated_at = NOW() WHERE `+periodPredicate,
		periodArgs(t.q)...,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate period: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Insert runs in a savepoint so that a failed row leaves the surrounding
// transaction usable.
func (t *postgresTx) Insert(ctx context.Context, it Item) (Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	meta, options, err := encodeJSON(it)
	if err != nil {
		return Item{}, err
	}

	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("begin savepoint: %w", err)
	}
	out, err := scanItem(sp.QueryRow(ctx,
		`INSERT INTO content_items
		   (id, kind, exam_id, subject_id, track_id, sub_category_id, topic_id,
		    exam_name, subject_name, track_name, sub_category_name,
		    name, display_name, description, order_index, period_key, metadata,
		    year, topic, question, options, answer, explanation)
		 VALUES ($1::uuid, $2, $3::uuid, $4::uuid, $5::uuid, $6::uuid, $7::uuid,
		         $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		 RETURNING `+itemColumns,
		it.ID, string(it.Kind), it.ExamID, it.SubjectID, it.TrackID, it.SubCategoryID, nullIfEmpty(it.TopicID),
		it.ExamName, it.SubjectName, it.TrackName, it.SubCategoryName,
		it.Name, it.DisplayName, it.Description, it.OrderIndex, it.PeriodKey, meta,
		nullIfZero(it.Year), nullIfEmpty(it.Topic), nullIfEmpty(it.Question), options,
		nullIfEmpty(it.Answer), nullIfEmpty(it.Explanation),
	))
	if err != nil {
		sp.Rollback(ctx) //nolint:errcheck // the savepoint error is secondary
		if database.IsUniqueViolation(err) {
			return Item{}, ErrDuplicate
		}
		return Item{}, fmt.Errorf("insert item %s: %w", it.Name, err)
	}
	if err := sp.Commit(ctx); err != nil {
		return Item{}, fmt.Errorf("release savepoint: %w", err)
	}
	return out, nil
}

func queryItems(ctx context.Context, q database.Querier, sql string, args ...any) ([]Item, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		it      Item
		kind    string
		meta    []byte
		options []byte
	)
	err := row.Scan(&it.ID, &kind, &it.ExamID, &it.SubjectID, &it.TrackID, &it.SubCategoryID,
		&it.TopicID, &it.ExamName, &it.SubjectName, &it.TrackName, &it.SubCategoryName,
		&it.Name, &it.DisplayName, &it.Description, &it.OrderIndex, &it.PeriodKey, &meta,
		&it.Year, &it.Topic, &it.Question, &options,
		&it.Answer, &it.Explanation, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, err
		}
		return Item{}, fmt.Errorf("scan item: %w", err)
	}
	it.Kind = Kind(kind)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &it.Metadata); err != nil {
			return Item{}, fmt.Errorf("decode metadata of %s: %w", it.Name, err)
		}
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &it.Options); err != nil {
			return Item{}, fmt.Errorf("decode options of %s: %w", it.Name, err)
		}
	}
	return it, nil
}

func encodeJSON(it Item) (meta, options []byte, err error) {
	m := it.Metadata
	if m == nil {
		m = map[string]any{}
	}
	if meta, err = json.Marshal(m); err != nil {
		return nil, nil, fmt.Errorf("encode metadata of %s: %w", it.Name, err)
	}
	if it.Options != nil {
		if options, err = json.Marshal(it.Options); err != nil {
			return nil, nil, fmt.Errorf("encode options of %s: %w", it.Name, err)
		}
	}
	return meta, options, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
