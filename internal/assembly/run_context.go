package assembly

import (
	"github.com/stemsi/exstem-assembly/internal/model"
)

// runContext is the working state of one Assemble call. It is created per
// call, threaded through every stage and thrown away when the call returns.
type runContext struct {
	reqs     []model.Requirement
	required int

	selected []model.Question
	// owner[i] is the index into reqs that selected[i] was accepted for.
	owner  []int
	filled []int

	rejected  []Rejection
	uniq      *UniquenessStore
	generated int
	// persisted holds every generated question written to the store,
	// including ones later trimmed or left unused by a failed run.
	persisted []model.Question
}

func newRunContext(reqs []model.Requirement, tau float64) *runContext {
	return &runContext{
		reqs:     reqs,
		required: RequiredTotal(reqs),
		filled:   make([]int, len(reqs)),
		uniq:     NewUniquenessStore(tau),
	}
}

// accept appends qs to the selection on behalf of reqs[idx] and registers
// them with the uniqueness store.
func (rc *runContext) accept(idx int, qs []model.Question) {
	for i := range qs {
		q := qs[i]
		rc.uniq.Register(&q)
		rc.selected = append(rc.selected, q)
		rc.owner = append(rc.owner, idx)
		rc.filled[idx]++
		if q.Provenance == model.ProvenanceGenerated {
			rc.generated++
		}
	}
}

func (rc *runContext) reject(rs ...Rejection) {
	rc.rejected = append(rc.rejected, rs...)
}

// deficit is how many more items reqs[idx] needs.
func (rc *runContext) deficit(idx int) int {
	d := rc.reqs[idx].Count - rc.filled[idx]
	if d < 0 {
		return 0
	}
	return d
}

func (rc *runContext) shortfall() int {
	s := rc.required - len(rc.selected)
	if s < 0 {
		return 0
	}
	return s
}

// short lists the indexes of requirements still below their count.
func (rc *runContext) short() []int {
	var out []int
	for i := range rc.reqs {
		if rc.deficit(i) > 0 {
			out = append(out, i)
		}
	}
	return out
}

func (rc *runContext) unmet() []UnmetRequirement {
	var out []UnmetRequirement
	for _, i := range rc.short() {
		out = append(out, UnmetRequirement{
			Requirement: rc.reqs[i],
			Selected:    rc.filled[i],
			Missing:     rc.deficit(i),
		})
	}
	return out
}

// trim cuts the selection down to exactly the required total, dropping the
// most recently accepted items first.
func (rc *runContext) trim() {
	for len(rc.selected) > 0 && len(rc.selected) > rc.required {
		last := len(rc.selected) - 1
		q := rc.selected[last]
		rc.filled[rc.owner[last]]--
		if q.Provenance == model.ProvenanceGenerated {
			rc.generated--
		}
		rc.selected = rc.selected[:last]
		rc.owner = rc.owner[:last]
		rc.reject(Rejection{Question: q, Reason: ReasonSurplus})
	}
}

func (rc *runContext) existing() int {
	return len(rc.selected) - rc.generated
}
