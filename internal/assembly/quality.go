package assembly

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/model"
	"golang.org/x/sync/errgroup"
)

// QualityFilter drops candidates the classifier scores below threshold.
type QualityFilter struct {
	classifier  Classifier
	threshold   float64
	concurrency int
	log         zerolog.Logger
}

// NewQualityFilter creates a QualityFilter. A nil classifier means the
// stored scores are trusted as-is.
func NewQualityFilter(classifier Classifier, threshold float64, concurrency int, log zerolog.Logger) *QualityFilter {
	if concurrency <= 0 {
		concurrency = DefaultClassifierConcurrency
	}
	return &QualityFilter{
		classifier:  classifier,
		threshold:   threshold,
		concurrency: concurrency,
		log:         log.With().Str("component", "quality_filter").Logger(),
	}
}

// Filter scores every candidate and splits them into kept and rejected,
// preserving input order in both.
func (f *QualityFilter) Filter(ctx context.Context, candidates []model.Question) ([]model.Question, []Rejection) {
	scored := make([]model.Question, len(candidates))
	copy(scored, candidates)

	if f.classifier != nil && len(scored) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.concurrency)
		for i := range scored {
			q := &scored[i]
			g.Go(func() error {
				c, err := f.classifier.Score(gctx, q.Text, q.Type, q.Topic)
				if err != nil {
					// Keep the stored scores; one bad call must not sink the batch.
					f.log.Warn().
						Err(err).
						Str("question_id", q.ID.String()).
						Msg("Classifier failed, using stored scores")
					return nil
				}
				applyClassification(q, c)
				return nil
			})
		}
		_ = g.Wait()
	}

	kept := make([]model.Question, 0, len(scored))
	var rejected []Rejection
	for _, q := range scored {
		if q.QualityScore >= f.threshold {
			kept = append(kept, q)
			continue
		}
		rejected = append(rejected, Rejection{Question: q, Reason: ReasonLowQuality})
	}

	if len(rejected) > 0 {
		f.log.Debug().
			Int("kept", len(kept)).
			Int("rejected", len(rejected)).
			Float64("threshold", f.threshold).
			Msg("Quality filter applied")
	}
	return kept, rejected
}

func applyClassification(q *model.Question, c Classification) {
	q.QualityScore = clamp01(c.QualityScore)
	if c.ConfidenceScore > 0 {
		q.ConfidenceScore = clamp01(c.ConfidenceScore)
	}
	if q.KnowledgeDimension == "" {
		q.KnowledgeDimension = c.KnowledgeDimension
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
