// Package conditions provides the condition evaluation engine: it dispatches
// branch criteria to registered evaluators and selects the next branch for a
// condition node.
package conditions

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/registry"
)

// Selection reports which branch a condition selected and why.
type Selection struct {
	Branch  models.Branch
	Matched bool // False when the default branch was selected as fallback
	Details map[string]any
}

// Engine selects branches for condition nodes.
type Engine struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewEngine creates a condition evaluation engine over an evaluator registry.
func NewEngine(reg *registry.Registry, logger *slog.Logger) *Engine {
	return &Engine{
		registry: reg,
		logger:   logger.With("module", "condition_engine"),
	}
}

// SelectBranch evaluates a condition for a contact and returns the branch to
// follow. Branches are evaluated in branch order and the first match wins;
// when none match the designated default branch is selected. Split tests
// assign deterministically by contact id so repeated evaluation is stable.
func (e *Engine) SelectBranch(ctx context.Context, condition *models.Condition, evalCtx protocol.EvaluationContext) (Selection, error) {
	if condition.BranchType == models.BranchTypeSplitTest {
		return e.selectSplit(condition, evalCtx.ContactID)
	}

	for _, branch := range condition.OrderedBranches() {
		if branch.IsDefault || branch.ConditionType == "" {
			continue
		}

		evaluator, err := e.registry.CreateEvaluator(branch.ConditionType, branch.Criteria)
		if err != nil {
			return Selection{}, err
		}

		result, err := evaluator.Evaluate(ctx, branch.Criteria, evalCtx)
		if err != nil {
			return Selection{}, fmt.Errorf("branch %s evaluation failed: %w", branch.ID, err)
		}

		if result.Match {
			e.logger.Debug("Branch matched",
				"condition_id", condition.ID,
				"branch_id", branch.ID,
				"branch_name", branch.Name)

			return Selection{Branch: branch, Matched: true, Details: result.Details}, nil
		}
	}

	defaultBranch, ok := condition.DefaultBranch()
	if !ok {
		return Selection{}, &journeyerr.ValidationError{
			Entity: "condition",
			Err:    fmt.Errorf("condition %s has no default branch and no match", condition.ID),
		}
	}

	return Selection{Branch: defaultBranch, Matched: false}, nil
}

// selectSplit assigns the contact to a branch proportional to the configured
// percentages. The bucket is a pure function of contact id and condition id,
// so the same contact always lands on the same branch.
func (e *Engine) selectSplit(condition *models.Condition, contactID string) (Selection, error) {
	branches := condition.OrderedBranches()
	if len(branches) == 0 {
		return Selection{}, &journeyerr.ValidationError{
			Entity: "condition",
			Err:    fmt.Errorf("split condition %s has no branches", condition.ID),
		}
	}

	bucket := splitBucket(contactID, condition.ID)

	cumulative := 0.0

	for _, branch := range branches {
		if branch.Percentage == nil {
			continue
		}

		cumulative += *branch.Percentage

		if bucket < cumulative {
			return Selection{
				Branch:  branch,
				Matched: true,
				Details: map[string]any{"bucket": bucket},
			}, nil
		}
	}

	// Rounding can leave the top bucket uncovered; the last branch takes it.
	last := branches[len(branches)-1]

	return Selection{Branch: last, Matched: true, Details: map[string]any{"bucket": bucket}}, nil
}

// splitBucket hashes contact and condition ids into [0, 100).
func splitBucket(contactID, conditionID string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(contactID))
	_, _ = h.Write([]byte(":"))
	_, _ = h.Write([]byte(conditionID))

	return float64(h.Sum64()%10000) / 100.0
}
