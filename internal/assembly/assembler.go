package assembly

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/model"
)

const defaultPointsPerItem = 1

// Assembler turns the final selection into a numbered test with an answer
// key, persists it and bumps the usage counters of every item used.
type Assembler struct {
	artifacts TestArtifactStore
	store     QuestionStore
	log       zerolog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(artifacts TestArtifactStore, store QuestionStore, log zerolog.Logger) *Assembler {
	return &Assembler{
		artifacts: artifacts,
		store:     store,
		log:       log.With().Str("component", "assembler").Logger(),
	}
}

// Build numbers items 1..N in the order they were accumulated.
func (a *Assembler) Build(selected []model.Question, meta model.TestMetadata, reqs []model.Requirement, metrics model.SelectionMetrics) *model.AssembledTest {
	points := meta.PointsPerItem
	if points <= 0 {
		points = defaultPointsPerItem
	}

	t := &model.AssembledTest{
		Metadata:  meta,
		Items:     make([]model.TestItem, len(selected)),
		AnswerKey: make([]model.AnswerKeyEntry, len(selected)),
		TOS:       append([]model.Requirement(nil), reqs...),
		Metrics:   metrics,
		CreatedAt: time.Now().UTC(),
	}
	for i, q := range selected {
		n := i + 1
		t.Items[i] = model.TestItem{Number: n, Question: q, Points: points}
		t.AnswerKey[i] = model.AnswerKeyFor(t.Items[i])
		t.TotalPoints += points
	}
	t.Metadata.PointsPerItem = points
	return t
}

// Persist saves t as one artifact and then increments usage for its items.
// A usage update failure is logged; the artifact stands.
func (a *Assembler) Persist(ctx context.Context, t *model.AssembledTest) (uuid.UUID, error) {
	id, err := a.artifacts.Save(ctx, t)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrArtifactPersist, err)
	}
	t.ID = id

	ids := make([]uuid.UUID, 0, len(t.Items))
	for _, it := range t.Items {
		ids = append(ids, it.Question.ID)
	}
	if err := a.store.IncrementUsage(ctx, ids); err != nil {
		a.log.Warn().
			Err(err).
			Str("test_id", id.String()).
			Int("items", len(ids)).
			Msg("Usage counter update failed")
	}

	a.log.Info().
		Str("test_id", id.String()).
		Int("items", len(t.Items)).
		Int("total_points", t.TotalPoints).
		Msg("Test assembled")
	return id, nil
}
