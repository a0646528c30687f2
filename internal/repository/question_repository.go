package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/model"
)

const questionColumns = `id, question_text, question_type, topic, cognitive_level, difficulty,
	knowledge_dimension, choices, correct_answer, quality_score, confidence_score,
	semantic_vector, provenance, fingerprint, usage_count, approved, created_by, created_at`

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// prefixed qualifies a column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanQuestion(row pgx.Row, q *model.Question) error {
	var dimension, fingerprint, createdBy *string
	if err := row.Scan(
		&q.ID, &q.Text, &q.Type, &q.Topic, &q.CognitiveLevel, &q.Difficulty,
		&dimension, &q.Choices, &q.CorrectAnswer, &q.QualityScore, &q.ConfidenceScore,
		&q.SemanticVector, &q.Provenance, &fingerprint, &q.UsageCount, &q.Approved, &createdBy, &q.CreatedAt,
	); err != nil {
		return err
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
	return nil
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Query returns the questions of one bucket, least used first so the bank
// wears evenly. Ties fall back to insertion order.
func (r *QuestionRepository) Query(ctx context.Context, f assembly.QueryFilter) ([]model.Question, error) {
	where, args := bucketClause(f.Topic, f.CognitiveLevel, f.Difficulty, f.ApprovedOnly)

	query := `SELECT ` + questionColumns + ` FROM questions` + where +
		` ORDER BY usage_count ASC, created_at ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// ListPaginated lists bank questions matching the optional bucket fields.
func (r *QuestionRepository) ListPaginated(ctx context.Context, f assembly.QueryFilter, limit, offset int) ([]model.Question, int, error) {
	where, args := bucketClause(f.Topic, f.CognitiveLevel, f.Difficulty, f.ApprovedOnly)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + questionColumns + ` FROM questions` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	questions, err := collectQuestions(rows)
	return questions, total, err
}

// bucketClause builds a WHERE clause over the non-empty bucket fields.
func bucketClause(topic string, level model.CognitiveLevel, difficulty model.Difficulty, approvedOnly bool) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if topic != "" {
		args = append(args, topic)
		conds = append(conds, fmt.Sprintf("topic = $%d", len(args)))
	}
	if level != "" {
		args = append(args, level)
		conds = append(conds, fmt.Sprintf("cognitive_level = $%d", len(args)))
	}
	if difficulty != "" {
		args = append(args, difficulty)
		conds = append(conds, fmt.Sprintf("difficulty = $%d", len(args)))
	}
	if approvedOnly {
		conds = append(conds, "approved = TRUE")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetByID retrieves a single question.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	var q model.Question
	row := r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	if err := scanQuestion(row, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Save inserts a question and fills its ID and creation time.
func (r *QuestionRepository) Save(ctx context.Context, q *model.Question) error {
	if q.Provenance == "" {
		q.Provenance = model.ProvenanceExisting
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (question_text, question_type, topic, cognitive_level, difficulty,
		                        knowledge_dimension, choices, correct_answer, quality_score, confidence_score,
		                        semantic_vector, provenance, fingerprint, approved, created_by)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, NULLIF($15, ''))
		 RETURNING id, usage_count, created_at`,
		q.Text, q.Type, q.Topic, q.CognitiveLevel, q.Difficulty,
		string(q.KnowledgeDimension), q.Choices, q.CorrectAnswer, q.QualityScore, q.ConfidenceScore,
		q.SemanticVector, q.Provenance, q.Fingerprint, q.Approved, q.CreatedBy,
	).Scan(&q.ID, &q.UsageCount, &q.CreatedAt)
}

// IncrementUsage bumps usage_count once for every occurrence of an ID.
func (r *QuestionRepository) IncrementUsage(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	counts := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	return r.AddUsage(ctx, counts)
}

// AddUsage applies per-question usage deltas in a single UNNEST update.
func (r *QuestionRepository) AddUsage(ctx context.Context, deltas map[uuid.UUID]int) error {
	if len(deltas) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(deltas))
	incs := make([]int, 0, len(deltas))
	for id, n := range deltas {
		ids = append(ids, id)
		incs = append(incs, n)
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE questions AS q
		 SET usage_count = q.usage_count + u.inc
		 FROM UNNEST($1::uuid[], $2::int[]) AS u (id, inc)
		 WHERE q.id = u.id`,
		ids, incs,
	)
	return err
}

// AddUsageSingle applies one usage delta; used when the bulk update fails.
func (r *QuestionRepository) AddUsageSingle(ctx context.Context, id uuid.UUID, inc int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE questions SET usage_count = usage_count + $1 WHERE id = $2`,
		inc, id,
	)
	return err
}
