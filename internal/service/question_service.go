package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/model"
	"github.com/stemsi/exstem-assembly/internal/response"
)

var ErrQuestionNotFound = errors.New("question not found")

// QuestionBank is the question storage the bank endpoints need.
type QuestionBank interface {
	Save(ctx context.Context, q *model.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListPaginated(ctx context.Context, f assembly.QueryFilter, limit, offset int) ([]model.Question, int, error)
}

// QuestionService handles question bank business logic.
type QuestionService struct {
	questionRepo QuestionBank
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo QuestionBank) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

// List retrieves bank questions with pagination, optionally narrowed to a bucket.
func (s *QuestionService) List(ctx context.Context, f assembly.QueryFilter, page, perPage int) ([]model.Question, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	questions, total, err := s.questionRepo.ListPaginated(ctx, f, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}

	return questions, response.NewPagination(page, perPage, total), nil
}

// GetByID retrieves one bank question.
func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// Create adds a curated question to the bank.
func (s *QuestionService) Create(ctx context.Context, req *model.CreateQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		Text:               req.Text,
		Type:               model.QuestionType(req.Type),
		Topic:              req.Topic,
		CognitiveLevel:     model.CognitiveLevel(req.CognitiveLevel),
		Difficulty:         model.Difficulty(req.Difficulty),
		KnowledgeDimension: model.KnowledgeDimension(req.KnowledgeDimension),
		Choices:            req.Choices,
		CorrectAnswer:      req.CorrectAnswer,
		QualityScore:       req.QualityScore,
		Provenance:         model.ProvenanceExisting,
		Approved:           req.Approved,
		CreatedBy:          req.CreatedBy,
	}
	q.Fingerprint = assembly.Fingerprint(q)

	if err := s.questionRepo.Save(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}
