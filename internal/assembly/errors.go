package assembly

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-assembly/internal/model"
)

// Domain errors. Only ContractViolation ever leaves Assemble; the others
// are absorbed where they happen and show up as a smaller candidate pool.
var (
	ErrStoreUnavailable     = errors.New("question store unavailable")
	ErrGenerationFailure    = errors.New("question generation failed")
	ErrMalformedRequirement = errors.New("malformed requirement")
	ErrContractViolation    = errors.New("TOS contract violated")
	ErrNoRequirements       = errors.New("no valid requirements to assemble")
	ErrArtifactPersist      = errors.New("persist assembled test")
)

// UnmetRequirement reports a requirement that did not reach its count.
type UnmetRequirement struct {
	Requirement model.Requirement `json:"requirement"`
	Selected    int               `json:"selected"`
	Missing     int               `json:"missing"`
}

// ContractViolation is returned when the completion gate gives up with a
// shortfall. No artifact is produced for the run.
type ContractViolation struct {
	Required  int
	Selected  int
	Shortfall int
	Attempts  int
	Unmet     []UnmetRequirement
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("TOS contract violated: %d of %d items selected, shortfall %d after %d repair attempts",
		e.Selected, e.Required, e.Shortfall, e.Attempts)
}

// Is lets errors.Is(err, ErrContractViolation) match.
func (e *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation
}
