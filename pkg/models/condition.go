package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/driftline/journey/pkg/journeyerr"
)

// BranchType represents the branching strategy of a condition node.
type BranchType string

const (
	BranchTypeIfElse      BranchType = "if_else"      // Exactly two branches, one default
	BranchTypeMultiBranch BranchType = "multi_branch" // Ordered branches, one default
	BranchTypeSplitTest   BranchType = "split_test"   // Percentage split keyed by contact
)

// splitTolerance is the accepted deviation when split percentages are summed.
const splitTolerance = 0.1

var (
	errNoBranches             = errors.New("condition requires at least one branch")
	errIfElseBranchCount      = errors.New("if_else condition requires exactly two branches")
	errNoDefaultBranch        = errors.New("condition requires exactly one default branch")
	errDuplicateBranchOrder   = errors.New("branch orders must be unique")
	errSplitPercentageMissing = errors.New("split_test branches require a percentage")
	errSplitPercentageSum     = errors.New("split_test percentages must sum to 100")
)

// Branch is one possible next path out of a condition node.
type Branch struct {
	ID          string         `json:"id"            validate:"required"`
	Name        string         `json:"name"`
	BranchOrder int            `json:"branch_order"`
	IsDefault   bool           `json:"is_default"`
	Percentage  *float64       `json:"percentage,omitempty"` // Split test only
	NextNodeID  string         `json:"next_node_id"`
	// ConditionType and Criteria are the branch-local evaluator selection;
	// empty for the default branch and for split_test branches.
	ConditionType string         `json:"condition_type,omitempty"`
	Criteria      map[string]any `json:"criteria,omitempty"`
}

// Condition is a decision point with two or more possible next paths.
type Condition struct {
	ID         string     `json:"id"          validate:"required"`
	BranchType BranchType `json:"branch_type" validate:"required"`
	Branches   []Branch   `json:"branches"`
}

// Validate enforces the condition invariants before persistence: if_else has
// exactly two branches with one default, split_test percentages sum to 100
// within tolerance, and branch orders are unique.
func (c *Condition) Validate() error {
	if len(c.Branches) == 0 {
		return &journeyerr.ValidationError{Entity: "condition", Err: errNoBranches}
	}

	orders := make(map[int]bool, len(c.Branches))
	defaults := 0

	for _, branch := range c.Branches {
		if orders[branch.BranchOrder] {
			return &journeyerr.ValidationError{Entity: "condition", Err: errDuplicateBranchOrder}
		}

		orders[branch.BranchOrder] = true

		if branch.IsDefault {
			defaults++
		}
	}

	switch c.BranchType {
	case BranchTypeIfElse:
		if len(c.Branches) != 2 {
			return &journeyerr.ValidationError{Entity: "condition", Err: errIfElseBranchCount}
		}

		if defaults != 1 {
			return &journeyerr.ValidationError{Entity: "condition", Err: errNoDefaultBranch}
		}
	case BranchTypeMultiBranch:
		if defaults != 1 {
			return &journeyerr.ValidationError{Entity: "condition", Err: errNoDefaultBranch}
		}
	case BranchTypeSplitTest:
		if err := c.validateSplit(); err != nil {
			return err
		}
	default:
		return &journeyerr.ValidationError{
			Entity: "condition",
			Err:    fmt.Errorf("unknown branch type %q", c.BranchType),
		}
	}

	return nil
}

func (c *Condition) validateSplit() error {
	total := 0.0

	for _, branch := range c.Branches {
		if branch.Percentage == nil {
			return &journeyerr.ValidationError{Entity: "condition", Err: errSplitPercentageMissing}
		}

		total += *branch.Percentage
	}

	if math.Abs(total-100.0) > splitTolerance {
		return &journeyerr.ValidationError{
			Entity: "condition",
			Err:    fmt.Errorf("%w, got %.2f", errSplitPercentageSum, total),
		}
	}

	return nil
}

// OrderedBranches returns the branches sorted by BranchOrder without mutating
// the condition.
func (c *Condition) OrderedBranches() []Branch {
	ordered := make([]Branch, len(c.Branches))
	copy(ordered, c.Branches)

	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].BranchOrder > ordered[j].BranchOrder; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}

	return ordered
}

// DefaultBranch returns the designated default branch, if any.
func (c *Condition) DefaultBranch() (Branch, bool) {
	for _, branch := range c.Branches {
		if branch.IsDefault {
			return branch, true
		}
	}

	return Branch{}, false
}
