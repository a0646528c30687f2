package assembly

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// SourceResult carries what the bank returned for one requirement.
// Err is set when the store failed; Candidates is then empty.
type SourceResult struct {
	Candidates []model.Question
	Err        error
}

// Sourcer pulls approved bank questions for a requirement.
type Sourcer struct {
	store QuestionStore
	log   zerolog.Logger
}

// NewSourcer creates a Sourcer over store.
func NewSourcer(store QuestionStore, log zerolog.Logger) *Sourcer {
	return &Sourcer{
		store: store,
		log:   log.With().Str("component", "sourcer").Logger(),
	}
}

// Source returns up to 2×count approved questions of the requirement's
// bucket, least used first.
func (s *Sourcer) Source(ctx context.Context, req model.Requirement) SourceResult {
	if req.Count <= 0 {
		return SourceResult{}
	}

	qs, err := s.store.Query(ctx, QueryFilter{
		Topic:          req.Topic,
		CognitiveLevel: req.CognitiveLevel,
		Difficulty:     req.Difficulty,
		ApprovedOnly:   true,
		Limit:          2 * min(req.Count, model.MaxRequirementCount),
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		s.log.Warn().
			Err(err).
			Str("bucket", req.Bucket().String()).
			Msg("Sourcing failed, treating as empty")
		return SourceResult{Err: err}
	}

	// The store contract is exact-bucket matching; drop anything else it leaks.
	out := make([]model.Question, 0, len(qs))
	for i := range qs {
		if !req.Matches(&qs[i]) {
			continue
		}
		q := qs[i]
		q.Provenance = model.ProvenanceExisting
		out = append(out, q)
		if len(out) == 2*req.Count {
			break
		}
	}

	s.log.Debug().
		Str("bucket", req.Bucket().String()).
		Int("found", len(out)).
		Msg("Candidates sourced")
	return SourceResult{Candidates: out}
}
