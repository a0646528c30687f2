package assembly

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// memStore is an in-memory QuestionStore.
type memStore struct {
	mu       sync.Mutex
	bank     []model.Question
	saved    []model.Question
	usage    map[uuid.UUID]int
	queryErr error
	saveErr  error
	queries  []QueryFilter
}

func newMemStore(bank ...model.Question) *memStore {
	return &memStore{bank: bank, usage: map[uuid.UUID]int{}}
}

func (s *memStore) Query(_ context.Context, f QueryFilter) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, f)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []model.Question
	for _, q := range s.bank {
		if q.Topic != f.Topic || q.CognitiveLevel != f.CognitiveLevel || q.Difficulty != f.Difficulty {
			continue
		}
		if f.ApprovedOnly && !q.Approved {
			continue
		}
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UsageCount < out[j].UsageCount })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	q.ID = uuid.New()
	s.saved = append(s.saved, *q)
	return nil
}

func (s *memStore) IncrementUsage(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.usage[id]++
	}
	return nil
}

// stubClassifier returns the stored quality for every text unless told otherwise.
type stubClassifier struct {
	scores map[string]float64
	err    error
	calls  int
	mu     sync.Mutex
}

func (c *stubClassifier) Score(_ context.Context, text string, _ model.QuestionType, _ string) (Classification, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return Classification{}, c.err
	}
	s, ok := c.scores[text]
	if !ok {
		return Classification{}, errors.New("unknown text")
	}
	return Classification{QualityScore: s, ConfidenceScore: 0.9, KnowledgeDimension: model.KnowledgeProcedural}, nil
}

// scriptGenerator answers each call with the result of fn(callIndex, req).
type scriptGenerator struct {
	mu    sync.Mutex
	calls []GenerateRequest
	fn    func(call int, req GenerateRequest) ([]model.Question, error)
}

func (g *scriptGenerator) Generate(_ context.Context, req GenerateRequest) ([]model.Question, error) {
	g.mu.Lock()
	call := len(g.calls)
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.fn(call, req)
}

// memArtifacts records saved tests.
type memArtifacts struct {
	saved []*model.AssembledTest
	err   error
}

func (a *memArtifacts) Save(_ context.Context, t *model.AssembledTest) (uuid.UUID, error) {
	if a.err != nil {
		return uuid.Nil, a.err
	}
	a.saved = append(a.saved, t)
	return uuid.New(), nil
}

// uniqueText returns a sentence sharing no token with uniqueText(j) for j != i.
func uniqueText(i int) string {
	return fmt.Sprintf("alpha%d bravo%d charlie%d delta%d echo%d", i, i, i, i, i)
}

func bankQuestion(req model.Requirement, i int, quality float64) model.Question {
	return model.Question{
		ID:             uuid.New(),
		Text:           uniqueText(i),
		Type:           model.QuestionTypeMCQ,
		Topic:          req.Topic,
		CognitiveLevel: req.CognitiveLevel,
		Difficulty:     req.Difficulty,
		CorrectAnswer:  "A",
		QualityScore:   quality,
		Approved:       true,
	}
}

func generated(text string) model.Question {
	return model.Question{Text: text, CorrectAnswer: "B"}
}

// uniqueGenerator emits count fresh questions per call, numbered from base.
func uniqueGenerator(base int) *scriptGenerator {
	next := base
	return &scriptGenerator{fn: func(_ int, req GenerateRequest) ([]model.Question, error) {
		out := make([]model.Question, 0, req.Count)
		for i := 0; i < req.Count; i++ {
			out = append(out, generated(uniqueText(next)))
			next++
		}
		return out, nil
	}}
}

var loops = model.Requirement{
	Topic:          "Loops",
	CognitiveLevel: model.LevelApplying,
	Difficulty:     model.DifficultyAverage,
	Count:          5,
}
