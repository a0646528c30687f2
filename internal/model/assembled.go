package model

import (
	"time"

	"github.com/google/uuid"
)

// TestMetadata is the caller-supplied header of an assembled test.
type TestMetadata struct {
	Title            string `json:"title" binding:"required,min=3,max=255"`
	Subject          string `json:"subject" binding:"omitempty,max=255"`
	Course           string `json:"course" binding:"omitempty,max=255"`
	ExamPeriod       string `json:"exam_period" binding:"omitempty,max=100"`
	YearSection      string `json:"year_section" binding:"omitempty,max=100"`
	Instructions     string `json:"instructions" binding:"omitempty,max=4000"`
	TimeLimitMinutes int    `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	PointsPerItem    int    `json:"points_per_item" binding:"omitempty,min=1,max=100"`
	CreatedBy        string `json:"created_by" binding:"omitempty,max=255"`
}

// TestItem is one numbered question of an assembled test.
type TestItem struct {
	Number   int      `json:"number"`
	Question Question `json:"question"`
	Points   int      `json:"points"`
}

// AnswerKeyEntry is the grading line for one numbered item.
type AnswerKeyEntry struct {
	Number         int            `json:"number"`
	QuestionID     uuid.UUID      `json:"question_id"`
	CorrectAnswer  string         `json:"correct_answer"`
	Text           string         `json:"question_text"`
	Points         int            `json:"points"`
	CognitiveLevel CognitiveLevel `json:"cognitive_level"`
	Topic          string         `json:"topic"`
}

// AnswerKeyFor derives the answer key line of an item.
func AnswerKeyFor(item TestItem) AnswerKeyEntry {
	return AnswerKeyEntry{
		Number:         item.Number,
		QuestionID:     item.Question.ID,
		CorrectAnswer:  item.Question.CorrectAnswer,
		Text:           item.Question.Text,
		Points:         item.Points,
		CognitiveLevel: item.Question.CognitiveLevel,
		Topic:          item.Question.Topic,
	}
}

// SelectionMetrics summarises how well the selected set covers the TOS.
type SelectionMetrics struct {
	DiversityScore float64 `json:"diversity_score"`
	CoverageScore  float64 `json:"coverage_score"`
	QualityScore   float64 `json:"quality_score"`
	GeneratedCount int     `json:"generated_count"`
	ExistingCount  int     `json:"existing_count"`
	RepairAttempts int     `json:"repair_attempts"`
}

// AssembledTest is the persisted artifact of one successful assembly run.
type AssembledTest struct {
	ID          uuid.UUID        `json:"id"`
	Metadata    TestMetadata     `json:"metadata"`
	Items       []TestItem       `json:"items"`
	AnswerKey   []AnswerKeyEntry `json:"answer_key"`
	TotalPoints int              `json:"total_points"`
	TOS         []Requirement    `json:"tos"`
	Metrics     SelectionMetrics `json:"metrics"`
	CreatedAt   time.Time        `json:"created_at"`
}

// AssembleRequest is the payload for assembling a test.
// Exactly one of TOS or Requirements must be provided.
type AssembleRequest struct {
	Metadata     TestMetadata  `json:"metadata" binding:"required"`
	TOS          *TOSMatrix    `json:"tos" binding:"omitempty"`
	Requirements []Requirement `json:"requirements" binding:"omitempty,dive"`
}

// ResolveRequest is the payload for previewing TOS resolution.
type ResolveRequest struct {
	TOS TOSMatrix `json:"tos" binding:"required"`
}
