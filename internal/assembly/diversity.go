package assembly

import (
	"github.com/stemsi/exstem-assembly/internal/model"
)

// RejectReason says why a candidate did not make the final set.
type RejectReason string

const (
	ReasonLowQuality         RejectReason = "low_quality"
	ReasonRedundant          RejectReason = "redundant"
	ReasonExceededQuota      RejectReason = "exceeded_quota"
	ReasonDuplicateGenerated RejectReason = "duplicate_generated"
	ReasonSurplus            RejectReason = "surplus"
)

// Rejection records one dropped candidate.
type Rejection struct {
	Question   model.Question `json:"question"`
	Reason     RejectReason   `json:"reason"`
	Similarity *float64       `json:"similarity,omitempty"`
}

// SelectionResult is the outcome of selection over a whole run.
type SelectionResult struct {
	Selected       []model.Question `json:"selected"`
	Rejected       []Rejection      `json:"rejected"`
	DiversityScore float64          `json:"diversity_score"`
	CoverageScore  float64          `json:"coverage_score"`
	QualityScore   float64          `json:"quality_score"`
}

// Fixed denominators for the diversity sub-metrics.
const (
	diversityTopics       = 10
	diversityLevels       = 6
	diversityDifficulties = 3
	diversityTypes        = 4
)

// SelectForRequirement greedily takes candidates until the requirement's
// remaining quota is met; the rest are rejected as exceeding the quota.
func SelectForRequirement(req model.Requirement, alreadyFilled int, pool []model.Question) ([]model.Question, []Rejection) {
	need := req.Count - alreadyFilled
	if need < 0 {
		need = 0
	}
	if need > len(pool) {
		need = len(pool)
	}

	selected := make([]model.Question, need)
	copy(selected, pool[:need])

	var rejected []Rejection
	for _, q := range pool[need:] {
		rejected = append(rejected, Rejection{Question: q, Reason: ReasonExceededQuota})
	}
	return selected, rejected
}

// DiversityScore weights how many distinct topics, levels, difficulties and
// types the selection spans against fixed denominators.
func DiversityScore(selected []model.Question) float64 {
	if len(selected) == 0 {
		return 0
	}
	topics := map[string]struct{}{}
	levels := map[model.CognitiveLevel]struct{}{}
	difficulties := map[model.Difficulty]struct{}{}
	types := map[model.QuestionType]struct{}{}
	for _, q := range selected {
		topics[q.Topic] = struct{}{}
		levels[q.CognitiveLevel] = struct{}{}
		difficulties[q.Difficulty] = struct{}{}
		types[q.Type] = struct{}{}
	}

	return 0.3*ratio(len(topics), diversityTopics) +
		0.3*ratio(len(levels), diversityLevels) +
		0.2*ratio(len(difficulties), diversityDifficulties) +
		0.2*ratio(len(types), diversityTypes)
}

func ratio(n, d int) float64 {
	r := float64(n) / float64(d)
	if r > 1 {
		return 1
	}
	return r
}

// CoverageScore averages min(1, filled/count) over all requirements.
// filled[i] is the number of items selected for reqs[i].
func CoverageScore(reqs []model.Requirement, filled []int) float64 {
	if len(reqs) == 0 {
		return 0
	}
	var sum float64
	for i, r := range reqs {
		if r.Count <= 0 {
			sum++
			continue
		}
		sum += ratio(filled[i], r.Count)
	}
	return sum / float64(len(reqs))
}

// QualityScore is the mean quality of the selection.
func QualityScore(selected []model.Question) float64 {
	if len(selected) == 0 {
		return 0
	}
	var sum float64
	for _, q := range selected {
		sum += q.QualityScore
	}
	return sum / float64(len(selected))
}
