package assembly

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// GateState is the completion gate's state.
type GateState string

const (
	GateRunning   GateState = "RUNNING"
	GateSatisfied GateState = "SATISFIED"
	GateFailed    GateState = "FAILED"
)

// Gate enforces the TOS contract after the first pass: it runs bounded
// repair rounds through the generation stage and either trims the selection
// to the exact total or fails with a ContractViolation.
type Gate struct {
	generation  *Generation
	maxAttempts int
	log         zerolog.Logger
}

// NewGate creates a Gate allowing at most maxAttempts repair rounds.
func NewGate(generation *Generation, maxAttempts int, log zerolog.Logger) *Gate {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Gate{
		generation:  generation,
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "completion_gate").Logger(),
	}
}

// GateOutcome reports how the gate finished.
type GateOutcome struct {
	State    GateState
	Attempts int
	// Repaired lists the requirements that were still short after the
	// first pass and needed repair rounds.
	Repaired []UnmetRequirement
}

// Run drives rc to SATISFIED or FAILED. A cancelled ctx stops the loop and
// is returned wrapped.
func (g *Gate) Run(ctx context.Context, rc *runContext) (GateOutcome, error) {
	out := GateOutcome{State: GateRunning, Repaired: rc.unmet()}

	for rc.shortfall() > 0 && out.Attempts < g.maxAttempts {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("completion gate: %w", err)
		}

		// Round-robin over the requirements that are still short, so a
		// repair never lands in a bucket that is already full.
		short := rc.short()
		target := short[out.Attempts%len(short)]
		shortfall := rc.shortfall()
		request := rc.deficit(target)

		g.log.Info().
			Int("attempt", out.Attempts+1).
			Int("shortfall", shortfall).
			Str("bucket", rc.reqs[target].Bucket().String()).
			Int("requested", request).
			Msg("Repair round")

		got := g.generation.Fill(ctx, rc, target, request)
		out.Attempts++

		g.log.Debug().
			Int("attempt", out.Attempts).
			Int("accepted", got).
			Int("shortfall", rc.shortfall()).
			Msg("Repair round finished")
	}

	if rc.shortfall() > 0 {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("completion gate: %w", err)
		}
		out.State = GateFailed
		return out, &ContractViolation{
			Required:  rc.required,
			Selected:  len(rc.selected),
			Shortfall: rc.shortfall(),
			Attempts:  out.Attempts,
			Unmet:     rc.unmet(),
		}
	}

	rc.trim()
	out.State = GateSatisfied
	return out, nil
}
