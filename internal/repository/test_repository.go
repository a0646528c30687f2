package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// TestRepository stores assembled tests and their numbered items.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// Save writes the test row and all of its items in one transaction.
func (r *TestRepository) Save(ctx context.Context, t *model.AssembledTest) (uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m := t.Metadata
	err = tx.QueryRow(ctx,
		`INSERT INTO tests (title, subject, course, exam_period, year_section, instructions,
		                    time_limit_minutes, points_per_item, created_by, total_points, tos, metrics)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at`,
		m.Title, m.Subject, m.Course, m.ExamPeriod, m.YearSection, m.Instructions,
		m.TimeLimitMinutes, m.PointsPerItem, m.CreatedBy, t.TotalPoints, t.TOS, t.Metrics,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert test: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range t.Items {
		batch.Queue(
			`INSERT INTO test_items (test_id, item_number, question_id, points)
			 VALUES ($1, $2, $3, $4)`,
			t.ID, item.Number, item.Question.ID, item.Points,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return uuid.Nil, fmt.Errorf("insert test items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return t.ID, nil
}

// GetByID loads a test with its items and answer key rebuilt from the bank.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AssembledTest, error) {
	t := &model.AssembledTest{}
	m := &t.Metadata
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, subject, course, exam_period, year_section, instructions,
		        time_limit_minutes, points_per_item, created_by, total_points, tos, metrics, created_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &m.Title, &m.Subject, &m.Course, &m.ExamPeriod, &m.YearSection, &m.Instructions,
		&m.TimeLimitMinutes, &m.PointsPerItem, &m.CreatedBy, &t.TotalPoints, &t.TOS, &t.Metrics, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ti.item_number, ti.points, `+prefixed("q", questionColumns)+`
		 FROM test_items ti
		 JOIN questions q ON q.id = ti.question_id
		 WHERE ti.test_id = $1
		 ORDER BY ti.item_number`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item model.TestItem
		q := &item.Question
		var dimension, fingerprint, createdBy *string
		if err := rows.Scan(&item.Number, &item.Points,
			&q.ID, &q.Text, &q.Type, &q.Topic, &q.CognitiveLevel, &q.Difficulty,
			&dimension, &q.Choices, &q.CorrectAnswer, &q.QualityScore, &q.ConfidenceScore,
			&q.SemanticVector, &q.Provenance, &fingerprint, &q.UsageCount, &q.Approved, &createdBy, &q.CreatedAt,
		); err != nil {
			return nil, err
		}
		if dimension != nil {
			q.KnowledgeDimension = model.KnowledgeDimension(*dimension)
		}
		if fingerprint != nil {
			q.Fingerprint = *fingerprint
		}
		if createdBy != nil {
			q.CreatedBy = *createdBy
		}
		t.Items = append(t.Items, item)
		t.AnswerKey = append(t.AnswerKey, model.AnswerKeyFor(item))
	}
	return t, rows.Err()
}

// GetAnswerKey loads only the answer key of a test, ordered by item number.
func (r *TestRepository) GetAnswerKey(ctx context.Context, id uuid.UUID) ([]model.AnswerKeyEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ti.item_number, q.id, q.correct_answer, q.question_text, ti.points, q.cognitive_level, q.topic
		 FROM test_items ti
		 JOIN questions q ON q.id = ti.question_id
		 WHERE ti.test_id = $1
		 ORDER BY ti.item_number`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var key []model.AnswerKeyEntry
	for rows.Next() {
		var e model.AnswerKeyEntry
		if err := rows.Scan(&e.Number, &e.QuestionID, &e.CorrectAnswer, &e.Text, &e.Points, &e.CognitiveLevel, &e.Topic); err != nil {
			return nil, err
		}
		key = append(key, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, pgx.ErrNoRows
	}
	return key, nil
}
