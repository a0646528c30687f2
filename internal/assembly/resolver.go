package assembly

import (
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// SplitCount breaks n items into easy/average/difficult counts.
// Easy and difficult are rounded half away from zero; average takes the
// remainder so the three always sum to n.
func (s DifficultySplit) SplitCount(n int) (easy, average, difficult int) {
	if n <= 0 {
		return 0, 0, 0
	}
	total := s.total()
	if total <= 0 {
		s, total = DefaultSplit, DefaultSplit.total()
	}
	easy = int(math.Round(float64(n) * s.Easy / total))
	difficult = int(math.Round(float64(n) * s.Difficult / total))
	if easy > n {
		easy = n
	}
	if easy+difficult > n {
		difficult = n - easy
	}
	average = n - easy - difficult
	return easy, average, difficult
}

// ResolveTOS flattens a TOS matrix into requirements, one per non-empty
// (topic, level, difficulty) cell. Malformed rows are skipped with a warning.
// Topics and levels keep matrix order; difficulties go easy, average, difficult.
func ResolveTOS(matrix model.TOSMatrix, split DifficultySplit, log zerolog.Logger) []model.Requirement {
	var reqs []model.Requirement

	for i, topic := range matrix.Topics {
		name := strings.TrimSpace(topic.Name)
		if name == "" {
			log.Warn().
				Err(ErrMalformedRequirement).
				Int("row", i).
				Msg("TOS row has no topic name, skipping")
			continue
		}

		for level := range topic.Items {
			if !level.Valid() {
				log.Warn().Err(ErrMalformedRequirement).Str("topic", name).Str("level", string(level)).Msg("Unknown cognitive level, skipping")
			}
		}
		for level := range topic.Counts {
			if !level.Valid() {
				log.Warn().Err(ErrMalformedRequirement).Str("topic", name).Str("level", string(level)).Msg("Unknown cognitive level, skipping")
			}
		}

		for _, level := range model.CognitiveLevels {
			count := topic.LevelCount(level)
			_, listed := topic.Items[level]
			if _, ok := topic.Counts[level]; ok {
				listed = true
			}
			if count <= 0 || count > model.MaxRequirementCount {
				if listed {
					log.Warn().
						Err(ErrMalformedRequirement).
						Str("topic", name).
						Str("level", string(level)).
						Int("count", count).
						Msg("TOS cell count out of range, skipping")
				}
				continue
			}
			easy, average, difficult := split.SplitCount(count)
			for _, cell := range []struct {
				d model.Difficulty
				n int
			}{
				{model.DifficultyEasy, easy},
				{model.DifficultyAverage, average},
				{model.DifficultyDifficult, difficult},
			} {
				if cell.n == 0 {
					continue
				}
				reqs = append(reqs, model.Requirement{
					Topic:          name,
					CognitiveLevel: level,
					Difficulty:     cell.d,
					Count:          cell.n,
				})
			}
		}
	}

	log.Debug().
		Int("topics", len(matrix.Topics)).
		Int("requirements", len(reqs)).
		Msg("TOS resolved")
	return reqs
}

// ValidateRequirements drops malformed requirements with a warning, as well
// as any requirement that would push the test past model.MaxTestItems.
// Requirements targeting the same bucket are kept as separate demands.
func ValidateRequirements(reqs []model.Requirement, log zerolog.Logger) []model.Requirement {
	out := make([]model.Requirement, 0, len(reqs))
	total := 0
	for i, r := range reqs {
		r.Topic = strings.TrimSpace(r.Topic)
		var problem string
		switch {
		case r.Topic == "":
			problem = "missing topic"
		case !r.CognitiveLevel.Valid():
			problem = "unknown cognitive level"
		case !r.Difficulty.Valid():
			problem = "unknown difficulty"
		case r.Count <= 0:
			problem = "non-positive count"
		case r.Count > model.MaxRequirementCount:
			problem = "count above limit"
		case total+r.Count > model.MaxTestItems:
			problem = "test item limit reached"
		}
		if problem != "" {
			log.Warn().
				Err(ErrMalformedRequirement).
				Int("index", i).
				Str("reason", problem).
				Msg("Skipping requirement")
			continue
		}
		total += r.Count
		out = append(out, r)
	}
	return out
}

// RequiredTotal is Σ count over reqs.
func RequiredTotal(reqs []model.Requirement) int {
	total := 0
	for _, r := range reqs {
		total += r.Count
	}
	return total
}
