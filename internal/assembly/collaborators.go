package assembly

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// QueryFilter selects bank questions for one TOS bucket.
type QueryFilter struct {
	Topic          string
	CognitiveLevel model.CognitiveLevel
	Difficulty     model.Difficulty
	ApprovedOnly   bool
	Limit          int
}

// QuestionStore is the question bank the pipeline reads from and writes
// generated questions to. Query must order by ascending usage count.
type QuestionStore interface {
	Query(ctx context.Context, f QueryFilter) ([]model.Question, error)
	Save(ctx context.Context, q *model.Question) error
	IncrementUsage(ctx context.Context, ids []uuid.UUID) error
}

// Classification is the classifier's verdict on one question text.
type Classification struct {
	QualityScore       float64                  `json:"quality_score"`
	ConfidenceScore    float64                  `json:"confidence_score"`
	KnowledgeDimension model.KnowledgeDimension `json:"knowledge_dimension"`
	CognitiveLevel     model.CognitiveLevel     `json:"cognitive_level"`
	Difficulty         model.Difficulty         `json:"difficulty"`
}

// Classifier scores question texts.
type Classifier interface {
	Score(ctx context.Context, text string, qt model.QuestionType, topic string) (Classification, error)
}

// GenerateRequest asks the generator for Count questions of one type in one bucket.
type GenerateRequest struct {
	Topic          string
	CognitiveLevel model.CognitiveLevel
	Difficulty     model.Difficulty
	Type           model.QuestionType
	Count          int
}

// Generator produces synthetic questions.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]model.Question, error)
}

// TestArtifactStore persists a finished test atomically and returns its ID.
type TestArtifactStore interface {
	Save(ctx context.Context, t *model.AssembledTest) (uuid.UUID, error)
}
