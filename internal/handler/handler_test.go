package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/model"
	"github.com/stemsi/exstem-assembly/internal/service"
	"github.com/stemsi/exstem-assembly/internal/validator"
	"github.com/stretchr/testify/require"
)

// memQuestions is an in-memory question bank.
type memQuestions struct {
	mu    sync.Mutex
	bank  []model.Question
	usage map[uuid.UUID]int
}

func newMemQuestions(bank ...model.Question) *memQuestions {
	return &memQuestions{bank: bank, usage: map[uuid.UUID]int{}}
}

func (s *memQuestions) matches(q model.Question, f assembly.QueryFilter) bool {
	if f.Topic != "" && q.Topic != f.Topic {
		return false
	}
	if f.CognitiveLevel != "" && q.CognitiveLevel != f.CognitiveLevel {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	return !f.ApprovedOnly || q.Approved
}

func (s *memQuestions) Query(_ context.Context, f assembly.QueryFilter) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, q := range s.bank {
		if s.matches(q, f) {
			out = append(out, q)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memQuestions) ListPaginated(_ context.Context, f assembly.QueryFilter, limit, offset int) ([]model.Question, int, error) {
	all, _ := s.Query(context.Background(), assembly.QueryFilter{
		Topic: f.Topic, CognitiveLevel: f.CognitiveLevel, Difficulty: f.Difficulty, ApprovedOnly: f.ApprovedOnly,
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *memQuestions) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.bank {
		if q.ID == id {
			q := q
			return &q, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memQuestions) Save(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = uuid.New()
	s.bank = append(s.bank, *q)
	return nil
}

func (s *memQuestions) IncrementUsage(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.usage[id]++
	}
	return nil
}

// memTests is an in-memory test artifact store.
type memTests struct {
	mu    sync.Mutex
	tests map[uuid.UUID]*model.AssembledTest
}

func newMemTests() *memTests {
	return &memTests{tests: map[uuid.UUID]*model.AssembledTest{}}
}

func (s *memTests) Save(_ context.Context, t *model.AssembledTest) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.New()
	s.tests[t.ID] = t
	return t.ID, nil
}

func (s *memTests) GetByID(_ context.Context, id uuid.UUID) (*model.AssembledTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (s *memTests) GetAnswerKey(ctx context.Context, id uuid.UUID) ([]model.AnswerKeyEntry, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.AnswerKey, nil
}

func bankQuestion(topic string, level model.CognitiveLevel, difficulty model.Difficulty, i int) model.Question {
	return model.Question{
		ID:             uuid.New(),
		Text:           fmt.Sprintf("alpha%d bravo%d charlie%d delta%d", i, i, i, i),
		Type:           model.QuestionTypeMCQ,
		Topic:          topic,
		CognitiveLevel: level,
		Difficulty:     difficulty,
		CorrectAnswer:  "A",
		QualityScore:   0.9,
		Provenance:     model.ProvenanceExisting,
		Approved:       true,
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
	Pagination *struct {
		TotalItems int `json:"total_items"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

type testServer struct {
	engine    *gin.Engine
	questions *memQuestions
	tests     *memTests
}

func newTestServer(t *testing.T, bank ...model.Question) *testServer {
	t.Helper()
	return newTestServerWith(t, nil, 0, bank...)
}

// newTestServerWith wires an optional generator and an assembly deadline.
func newTestServerWith(t *testing.T, gen assembly.Generator, timeout time.Duration, bank ...model.Question) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	questions := newMemQuestions(bank...)
	tests := newMemTests()

	assemblySvc := service.NewAssemblyService(service.AssemblyDeps{
		Questions: questions,
		Tests:     tests,
		Generator: gen,
	}, assembly.DefaultOptions(), zerolog.Nop())
	ah := NewAssemblyHandler(assemblySvc, timeout, zerolog.Nop())
	qh := NewQuestionHandler(service.NewQuestionService(questions))

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/assemblies", ah.Assemble)
	api.POST("/assemblies/resolve", ah.Resolve)
	api.GET("/assemblies/:id", ah.GetTest)
	api.GET("/assemblies/:id/answer-key", ah.GetAnswerKey)
	api.GET("/questions", qh.ListQuestions)
	api.GET("/questions/:id", qh.GetQuestion)
	api.POST("/questions", qh.CreateQuestion)

	return &testServer{engine: r, questions: questions, tests: tests}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}
