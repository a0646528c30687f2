// Package assembly builds a test from a Table of Specification: it sources
// approved bank questions per requirement, filters and deduplicates them,
// generates what is missing and guarantees the exact requested item count
// or fails with a ContractViolation.
package assembly

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// Dependencies are the collaborators a pipeline is built from.
type Dependencies struct {
	Store      QuestionStore
	Classifier Classifier
	Generator  Generator
	Artifacts  TestArtifactStore
}

// Result is what a successful Assemble returns.
type Result struct {
	ArtifactID     uuid.UUID `json:"artifact_id"`
	TotalSelected  int       `json:"total_selected"`
	GeneratedCount int       `json:"generated_count"`
	ExistingCount  int       `json:"existing_count"`
	Attempts       int       `json:"attempts"`

	// UnmetRequirements is always empty on success; shortfalls surface as
	// a ContractViolation instead.
	UnmetRequirements []UnmetRequirement `json:"unmet_requirements"`
	// RepairedRequirements lists requirements the first pass left short
	// and the completion gate then filled.
	RepairedRequirements []UnmetRequirement `json:"repaired_requirements"`

	Selection SelectionResult      `json:"-"`
	Test      *model.AssembledTest `json:"-"`
}

// Pipeline runs test assembly. It holds no per-run state, so one value can
// serve sequential calls; every Assemble call gets its own run context.
type Pipeline struct {
	deps Dependencies
	opts Options
	log  zerolog.Logger

	sourcer    *Sourcer
	quality    *QualityFilter
	generation *Generation
	gate       *Gate
	assembler  *Assembler
}

// NewPipeline wires the stages over deps.
func NewPipeline(deps Dependencies, opts Options, log zerolog.Logger) *Pipeline {
	opts = opts.withDefaults()
	log = log.With().Str("component", "assembly_pipeline").Logger()
	generation := NewGeneration(deps.Generator, deps.Store, opts, log)
	return &Pipeline{
		deps:       deps,
		opts:       opts,
		log:        log,
		sourcer:    NewSourcer(deps.Store, log),
		quality:    NewQualityFilter(deps.Classifier, opts.QualityThreshold, opts.ClassifierConcurrency, log),
		generation: generation,
		gate:       NewGate(generation, opts.MaxAttempts, log),
		assembler:  NewAssembler(deps.Artifacts, deps.Store, log),
	}
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Resolve flattens a TOS matrix with the pipeline's difficulty split.
func (p *Pipeline) Resolve(matrix model.TOSMatrix) []model.Requirement {
	return ResolveTOS(matrix, p.opts.Split, p.log)
}

// AssembleTOS resolves matrix and assembles the resulting requirements.
func (p *Pipeline) AssembleTOS(ctx context.Context, matrix model.TOSMatrix, meta model.TestMetadata) (*Result, error) {
	return p.Assemble(ctx, p.Resolve(matrix), meta)
}

// Assemble builds, persists and returns a test that contains exactly
// Σ requirement.count items. Requirements are processed in order, one at
// a time, because deduplication depends on everything accepted before.
func (p *Pipeline) Assemble(ctx context.Context, reqs []model.Requirement, meta model.TestMetadata) (*Result, error) {
	reqs = ValidateRequirements(reqs, p.log)
	if len(reqs) == 0 {
		return nil, ErrNoRequirements
	}

	rc := newRunContext(reqs, p.opts.SimilarityThreshold)
	p.log.Info().
		Int("requirements", len(reqs)).
		Int("required_total", rc.required).
		Msg("Assembly started")

	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
		p.processRequirement(ctx, rc, i, req)
	}

	outcome, err := p.gate.Run(ctx, rc)
	if err != nil {
		var cv *ContractViolation
		if errors.As(err, &cv) {
			ids := make([]string, 0, len(rc.persisted))
			for _, q := range rc.persisted {
				ids = append(ids, q.ID.String())
			}
			p.log.Error().
				Err(err).
				Int("shortfall", cv.Shortfall).
				Int("attempts", cv.Attempts).
				Strs("orphaned_generated_ids", ids).
				Msg("Assembly failed")
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	selection := SelectionResult{
		Selected:       rc.selected,
		Rejected:       rc.rejected,
		DiversityScore: DiversityScore(rc.selected),
		CoverageScore:  CoverageScore(rc.reqs, rc.filled),
		QualityScore:   QualityScore(rc.selected),
	}
	metrics := model.SelectionMetrics{
		DiversityScore: selection.DiversityScore,
		CoverageScore:  selection.CoverageScore,
		QualityScore:   selection.QualityScore,
		GeneratedCount: rc.generated,
		ExistingCount:  rc.existing(),
		RepairAttempts: outcome.Attempts,
	}

	test := p.assembler.Build(rc.selected, meta, rc.reqs, metrics)
	id, err := p.assembler.Persist(ctx, test)
	if err != nil {
		return nil, err
	}

	return &Result{
		ArtifactID:           id,
		TotalSelected:        len(rc.selected),
		GeneratedCount:       rc.generated,
		ExistingCount:        rc.existing(),
		Attempts:             outcome.Attempts,
		UnmetRequirements:    []UnmetRequirement{},
		RepairedRequirements: outcome.Repaired,
		Selection:            selection,
		Test:                 test,
	}, nil
}

// processRequirement runs source → quality → redundancy → quota for one
// requirement and falls back to generation for whatever is still missing.
func (p *Pipeline) processRequirement(ctx context.Context, rc *runContext, idx int, req model.Requirement) {
	sourced := p.sourcer.Source(ctx, req)

	kept, rejected := p.quality.Filter(ctx, sourced.Candidates)
	rc.reject(rejected...)

	kept, rejected = Eliminate(kept, rc.selected, p.opts.SimilarityThreshold)
	rc.reject(rejected...)

	chosen, rejected := SelectForRequirement(req, rc.filled[idx], kept)
	rc.reject(rejected...)
	rc.accept(idx, chosen)

	if missing := rc.deficit(idx); missing > 0 {
		p.log.Debug().
			Str("bucket", req.Bucket().String()).
			Int("missing", missing).
			Msg("Bank short, falling back to generation")
		p.generation.Fill(ctx, rc, idx, missing)
	}
}
