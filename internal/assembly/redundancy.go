package assembly

import (
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// Eliminate walks candidates in order and rejects any whose similarity to an
// already accepted question, or to a candidate kept earlier in this batch,
// exceeds tau. Whichever of two near-duplicates comes first survives.
func Eliminate(candidates, accepted []model.Question, tau float64) ([]model.Question, []Rejection) {
	kept := make([]model.Question, 0, len(candidates))
	var rejected []Rejection

	for i := range candidates {
		c := &candidates[i]
		sim, dup := mostSimilar(c, accepted, tau)
		if !dup {
			sim, dup = mostSimilar(c, kept, tau)
		}
		if dup {
			s := sim
			rejected = append(rejected, Rejection{Question: *c, Reason: ReasonRedundant, Similarity: &s})
			continue
		}
		kept = append(kept, *c)
	}
	return kept, rejected
}

// mostSimilar returns the first similarity above tau against pool.
func mostSimilar(c *model.Question, pool []model.Question, tau float64) (float64, bool) {
	for j := range pool {
		if pool[j].ID == c.ID && c.ID != uuid.Nil {
			return 1, true
		}
		if sim := Similarity(c, &pool[j]); sim > tau {
			return sim, true
		}
	}
	return 0, false
}
