package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the answer formats a question can take.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "mcq"
	QuestionTypeTrueFalse   QuestionType = "true_false"
	QuestionTypeShortAnswer QuestionType = "short_answer"
	QuestionTypeEssay       QuestionType = "essay"
)

// QuestionTypes lists every question type in generation order.
var QuestionTypes = []QuestionType{
	QuestionTypeMCQ,
	QuestionTypeTrueFalse,
	QuestionTypeShortAnswer,
	QuestionTypeEssay,
}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMCQ, QuestionTypeTrueFalse, QuestionTypeShortAnswer, QuestionTypeEssay:
		return true
	}
	return false
}

// KnowledgeDimension classifies the kind of knowledge a question targets.
type KnowledgeDimension string

const (
	KnowledgeFactual       KnowledgeDimension = "factual"
	KnowledgeConceptual    KnowledgeDimension = "conceptual"
	KnowledgeProcedural    KnowledgeDimension = "procedural"
	KnowledgeMetacognitive KnowledgeDimension = "metacognitive"
)

// Provenance records where a question came from.
type Provenance string

const (
	ProvenanceExisting  Provenance = "existing"
	ProvenanceGenerated Provenance = "generated"
)

// Question is a single bank item. Sourced questions are read-only snapshots
// of a bank row; generated ones stay mutable until Save assigns their ID.
type Question struct {
	ID                 uuid.UUID          `json:"id"`
	Text               string             `json:"question_text"`
	Type               QuestionType       `json:"question_type"`
	Topic              string             `json:"topic"`
	CognitiveLevel     CognitiveLevel     `json:"cognitive_level"`
	Difficulty         Difficulty         `json:"difficulty"`
	KnowledgeDimension KnowledgeDimension `json:"knowledge_dimension"`
	Choices            map[string]string  `json:"choices,omitempty"`
	CorrectAnswer      string             `json:"correct_answer"`
	QualityScore       float64            `json:"quality_score"`
	ConfidenceScore    float64            `json:"confidence_score"`
	SemanticVector     []float64          `json:"semantic_vector,omitempty"`
	Provenance         Provenance         `json:"provenance"`
	Fingerprint        string             `json:"fingerprint,omitempty"`
	UsageCount         int                `json:"usage_count"`
	Approved           bool               `json:"approved"`
	CreatedBy          string             `json:"created_by,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Bucket returns the (topic, level, difficulty) cell the question belongs to.
func (q *Question) Bucket() Bucket {
	return Bucket{Topic: q.Topic, CognitiveLevel: q.CognitiveLevel, Difficulty: q.Difficulty}
}

// CreateQuestionRequest is the payload for adding a question to the bank.
type CreateQuestionRequest struct {
	Text               string            `json:"question_text" binding:"required,min=1,max=4000"`
	Type               string            `json:"question_type" binding:"required,question_type"`
	Topic              string            `json:"topic" binding:"required,max=255"`
	CognitiveLevel     string            `json:"cognitive_level" binding:"required,cognitive_level"`
	Difficulty         string            `json:"difficulty" binding:"required,difficulty"`
	KnowledgeDimension string            `json:"knowledge_dimension" binding:"omitempty,oneof=factual conceptual procedural metacognitive"`
	Choices            map[string]string `json:"choices" binding:"omitempty"`
	CorrectAnswer      string            `json:"correct_answer" binding:"required,max=2000"`
	QualityScore       float64           `json:"quality_score" binding:"omitempty,min=0,max=1"`
	Approved           bool              `json:"approved"`
	CreatedBy          string            `json:"created_by" binding:"omitempty,max=255"`
}
