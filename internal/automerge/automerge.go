// Package automerge merges a proposed change when every required gate
// passed and the change was authored by the designated automated identity.
package automerge

import (
	"context"

	"go.uber.org/zap"

	"gateward/internal/forge"
	"gateward/internal/gate"
	"gateward/internal/orchestrator"
)

// Actor issues the merge. It is the only component with a write effect
// beyond opening a proposed change.
type Actor struct {
	log      *zap.SugaredLogger
	forge    forge.Forge
	identity string // the automated dependency-update identity
}

func New(log *zap.SugaredLogger, f forge.Forge, identity string) *Actor {
	return &Actor{log: log, forge: f, identity: identity}
}

// Eligible reports whether the preconditions hold: every triggered job
// succeeded and the change's author is the designated automated identity.
// Kept as an explicit predicate so the gating is testable on its own.
func (a *Actor) Eligible(res *orchestrator.PipelineResult, change *forge.ProposedChange) bool {
	if res == nil || change == nil {
		return false
	}
	if !res.Admitted {
		return false
	}
	for _, jr := range res.Jobs {
		if jr.Status != gate.StatusSucceeded {
			return false
		}
	}
	return change.Author == a.identity
}

// MaybeMerge merges the change with the squash strategy when Eligible.
// Unmet preconditions are a normal no-op, not an error; a human or other
// automation remains free to merge.
func (a *Actor) MaybeMerge(ctx context.Context, res *orchestrator.PipelineResult, change *forge.ProposedChange) (bool, error) {
	if !a.Eligible(res, change) {
		if change != nil {
			a.log.Debugw("auto-merge not authorized",
				"number", change.Number, "author", change.Author)
		}
		return false, nil
	}

	err := a.forge.MergeChange(ctx, change.Number, forge.MergeOpts{
		Strategy: forge.MergeStrategySquash,
		Auto:     true,
	})
	if err != nil {
		return false, err
	}

	a.log.Infow("auto-merge issued", "number", change.Number, "author", change.Author)
	return true, nil
}
