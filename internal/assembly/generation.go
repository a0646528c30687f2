package assembly

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// Generation asks the generator for missing questions and persists the ones
// that survive the uniqueness check.
type Generation struct {
	generator Generator
	store     QuestionStore
	opts      Options
	log       zerolog.Logger
}

// NewGeneration creates the generation fallback stage.
func NewGeneration(generator Generator, store QuestionStore, opts Options, log zerolog.Logger) *Generation {
	return &Generation{
		generator: generator,
		store:     store,
		opts:      opts.withDefaults(),
		log:       log.With().Str("component", "generation").Logger(),
	}
}

// typeQuotas spreads needed over the question types, ceil(needed/len(types))
// each, stopping as soon as needed is reached.
func typeQuotas(needed int, types []model.QuestionType) []GenerateRequest {
	if needed <= 0 || len(types) == 0 {
		return nil
	}
	per := needed / len(types)
	if needed%len(types) != 0 {
		per++
	}
	var out []GenerateRequest
	remaining := needed
	for _, t := range types {
		if remaining == 0 {
			break
		}
		n := per
		if n > remaining {
			n = remaining
		}
		out = append(out, GenerateRequest{Type: t, Count: n})
		remaining -= n
	}
	return out
}

// Fill generates up to needed questions for reqs[idx] and accepts them into
// rc. It returns how many were accepted. Failures only shrink that number.
func (g *Generation) Fill(ctx context.Context, rc *runContext, idx, needed int) int {
	if g.generator == nil || needed <= 0 {
		return 0
	}
	req := rc.reqs[idx]
	accepted := 0

	for _, quota := range typeQuotas(needed, model.QuestionTypes) {
		if accepted >= needed || ctx.Err() != nil {
			break
		}
		quota.Topic = req.Topic
		quota.CognitiveLevel = req.CognitiveLevel
		quota.Difficulty = req.Difficulty
		if left := needed - accepted; quota.Count > left {
			quota.Count = left
		}

		batch := g.request(ctx, quota)
		for i := range batch {
			if accepted >= needed {
				break
			}
			q := batch[i]
			g.normalize(&q, quota)
			if q.Text == "" {
				continue
			}

			if ok, sim := rc.uniq.Check(&q); !ok {
				s := sim
				rc.reject(Rejection{Question: q, Reason: ReasonDuplicateGenerated, Similarity: &s})
				g.log.Debug().
					Str("bucket", req.Bucket().String()).
					Float64("similarity", sim).
					Msg("Generated duplicate discarded")
				continue
			}

			if err := g.store.Save(ctx, &q); err != nil {
				g.log.Warn().
					Err(err).
					Str("bucket", req.Bucket().String()).
					Msg("Saving generated question failed, dropping it")
				continue
			}
			rc.persisted = append(rc.persisted, q)
			rc.accept(idx, []model.Question{q})
			accepted++
		}
	}

	g.log.Info().
		Str("bucket", req.Bucket().String()).
		Int("needed", needed).
		Int("accepted", accepted).
		Msg("Generation fallback finished")
	return accepted
}

type generateOutcome struct {
	batch []model.Question
	err   error
}

// request performs one bounded generator call. Any failure is logged and
// becomes an empty batch. The deadline holds even for a generator that
// ignores its context.
func (g *Generation) request(ctx context.Context, req GenerateRequest) []model.Question {
	callCtx, cancel := context.WithTimeout(ctx, g.opts.GenerationTimeout)
	defer cancel()

	done := make(chan generateOutcome, 1)
	go func() {
		batch, err := g.generator.Generate(callCtx, req)
		done <- generateOutcome{batch: batch, err: err}
	}()

	var batch []model.Question
	var err error
	select {
	case out := <-done:
		batch, err = out.batch, out.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}
	if err != nil {
		g.log.Warn().
			Err(fmt.Errorf("%w: %w", ErrGenerationFailure, err)).
			Str("type", string(req.Type)).
			Int("count", req.Count).
			Msg("Generator call failed, treating as empty batch")
		return nil
	}
	return batch
}

// normalize pins a generated question to the requested bucket and type and
// fills the defaults generated questions carry.
func (g *Generation) normalize(q *model.Question, req GenerateRequest) {
	q.Text = strings.TrimSpace(q.Text)
	q.Topic = req.Topic
	q.CognitiveLevel = req.CognitiveLevel
	q.Difficulty = req.Difficulty
	if !q.Type.Valid() {
		q.Type = req.Type
	}
	if q.KnowledgeDimension == "" {
		q.KnowledgeDimension = defaultDimension(req.CognitiveLevel)
	}
	if q.ConfidenceScore <= 0 {
		q.ConfidenceScore = g.opts.GeneratedConfidence
	}
	if q.QualityScore <= 0 {
		q.QualityScore = g.opts.GeneratedConfidence
	}
	q.Provenance = model.ProvenanceGenerated
	q.Approved = true
	q.Fingerprint = Fingerprint(q)
}

// defaultDimension maps a Bloom's level to its usual knowledge dimension.
func defaultDimension(l model.CognitiveLevel) model.KnowledgeDimension {
	switch l {
	case model.LevelRemembering:
		return model.KnowledgeFactual
	case model.LevelUnderstanding:
		return model.KnowledgeConceptual
	case model.LevelApplying, model.LevelAnalyzing:
		return model.KnowledgeProcedural
	default:
		return model.KnowledgeMetacognitive
	}
}
