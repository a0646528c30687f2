package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/config"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// Domain Errors
var (
	ErrTestNotFound    = errors.New("assembled test not found")
	ErrAmbiguousSource = errors.New("provide either tos or requirements, not both")
	ErrMissingSource   = errors.New("tos or requirements is required")
)

// TestStore persists and reads assembled tests.
type TestStore interface {
	assembly.TestArtifactStore
	GetByID(ctx context.Context, id uuid.UUID) (*model.AssembledTest, error)
	GetAnswerKey(ctx context.Context, id uuid.UUID) ([]model.AnswerKeyEntry, error)
}

// AnswerKeyCache keeps answer keys close to graders.
type AnswerKeyCache interface {
	Put(ctx context.Context, testID uuid.UUID, key []model.AnswerKeyEntry) error
	Get(ctx context.Context, testID uuid.UUID) ([]model.AnswerKeyEntry, error)
}

// UsageRecorder defers usage counter updates.
type UsageRecorder interface {
	Enqueue(ctx context.Context, testID uuid.UUID, ids []uuid.UUID) error
}

// AssemblyDeps are the collaborators of AssemblyService. Classifier,
// Generator, Usage and AnswerKeys are optional.
type AssemblyDeps struct {
	Questions  assembly.QuestionStore
	Tests      TestStore
	Classifier assembly.Classifier
	Generator  assembly.Generator
	Usage      UsageRecorder
	AnswerKeys AnswerKeyCache
}

// AssemblyService runs the assembly pipeline for API and CLI callers.
type AssemblyService struct {
	deps AssemblyDeps
	opts assembly.Options
	log  zerolog.Logger
}

// NewAssemblyService creates a new AssemblyService.
func NewAssemblyService(deps AssemblyDeps, opts assembly.Options, log zerolog.Logger) *AssemblyService {
	return &AssemblyService{
		deps: deps,
		opts: opts,
		log:  log.With().Str("component", "assembly_service").Logger(),
	}
}

// OptionsFromConfig maps environment configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) (assembly.Options, error) {
	split, err := assembly.ParseDifficultySplit(cfg.DifficultySplit)
	if err != nil {
		return assembly.Options{}, fmt.Errorf("DIFFICULTY_SPLIT: %w", err)
	}
	opts := assembly.DefaultOptions()
	opts.QualityThreshold = cfg.QualityThreshold
	opts.SimilarityThreshold = cfg.SimilarityThreshold
	opts.MaxAttempts = cfg.MaxRepairAttempts
	opts.GenerationTimeout = cfg.GenerationTimeout
	opts.ClassifierConcurrency = cfg.ClassifierConcurrency
	opts.Split = split
	return opts, nil
}

// queuedStore routes usage updates through the usage queue.
type queuedStore struct {
	assembly.QuestionStore
	usage UsageRecorder
}

func (s queuedStore) IncrementUsage(ctx context.Context, ids []uuid.UUID) error {
	return s.usage.Enqueue(ctx, uuid.Nil, ids)
}

// newPipeline builds a fresh pipeline; one per request keeps runs isolated.
func (s *AssemblyService) newPipeline() *assembly.Pipeline {
	var store assembly.QuestionStore = s.deps.Questions
	if s.deps.Usage != nil {
		store = queuedStore{QuestionStore: s.deps.Questions, usage: s.deps.Usage}
	}
	return assembly.NewPipeline(assembly.Dependencies{
		Store:      store,
		Classifier: s.deps.Classifier,
		Generator:  s.deps.Generator,
		Artifacts:  s.deps.Tests,
	}, s.opts, s.log)
}

// Requirements turns a request into the requirement list to assemble.
func (s *AssemblyService) Requirements(req *model.AssembleRequest) ([]model.Requirement, error) {
	hasTOS := req.TOS != nil && len(req.TOS.Topics) > 0
	switch {
	case hasTOS && len(req.Requirements) > 0:
		return nil, ErrAmbiguousSource
	case hasTOS:
		return s.Resolve(*req.TOS), nil
	case len(req.Requirements) > 0:
		return req.Requirements, nil
	}
	return nil, ErrMissingSource
}

// Assemble builds and stores one test, then caches its answer key.
func (s *AssemblyService) Assemble(ctx context.Context, req *model.AssembleRequest) (*assembly.Result, error) {
	reqs, err := s.Requirements(req)
	if err != nil {
		return nil, err
	}

	result, err := s.newPipeline().Assemble(ctx, reqs, req.Metadata)
	if err != nil {
		return nil, err
	}

	if s.deps.AnswerKeys != nil && result.Test != nil {
		if err := s.deps.AnswerKeys.Put(ctx, result.ArtifactID, result.Test.AnswerKey); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", result.ArtifactID.String()).
				Msg("Failed to cache answer key")
		}
	}
	return result, nil
}

// Resolve previews how a TOS matrix flattens into requirements.
func (s *AssemblyService) Resolve(matrix model.TOSMatrix) []model.Requirement {
	return assembly.ResolveTOS(matrix, s.opts.Split, s.log)
}

// GetTest loads a stored test.
func (s *AssemblyService) GetTest(ctx context.Context, id uuid.UUID) (*model.AssembledTest, error) {
	t, err := s.deps.Tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return t, nil
}

// GetAnswerKey serves the answer key from Redis, falling back to Postgres
// and rewarming the cache on a miss.
func (s *AssemblyService) GetAnswerKey(ctx context.Context, id uuid.UUID) ([]model.AnswerKeyEntry, error) {
	if s.deps.AnswerKeys != nil {
		key, err := s.deps.AnswerKeys.Get(ctx, id)
		if err == nil {
			return key, nil
		}
		s.log.Debug().Err(err).Str("test_id", id.String()).Msg("Answer key cache miss")
	}

	key, err := s.deps.Tests.GetAnswerKey(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get answer key: %w", err)
	}

	if s.deps.AnswerKeys != nil {
		if err := s.deps.AnswerKeys.Put(ctx, id, key); err != nil {
			s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Failed to rewarm answer key cache")
		}
	}
	return key, nil
}
