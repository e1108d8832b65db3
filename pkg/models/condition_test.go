package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func percentage(v float64) *float64 {
	return &v
}

func TestConditionValidateIfElse(t *testing.T) {
	condition := &Condition{
		ID:         "cond-1",
		BranchType: BranchTypeIfElse,
		Branches: []Branch{
			{ID: "yes", BranchOrder: 0, ConditionType: "field"},
			{ID: "no", BranchOrder: 1, IsDefault: true},
		},
	}

	require.NoError(t, condition.Validate())

	condition.Branches = append(condition.Branches, Branch{ID: "maybe", BranchOrder: 2})
	assert.Error(t, condition.Validate(), "if_else takes exactly two branches")
}

func TestConditionValidateRequiresDefault(t *testing.T) {
	condition := &Condition{
		ID:         "cond-1",
		BranchType: BranchTypeMultiBranch,
		Branches: []Branch{
			{ID: "a", BranchOrder: 0, ConditionType: "field"},
			{ID: "b", BranchOrder: 1, ConditionType: "tags"},
		},
	}

	assert.Error(t, condition.Validate())

	condition.Branches[1].IsDefault = true
	assert.NoError(t, condition.Validate())
}

func TestConditionValidateDuplicateOrder(t *testing.T) {
	condition := &Condition{
		ID:         "cond-1",
		BranchType: BranchTypeMultiBranch,
		Branches: []Branch{
			{ID: "a", BranchOrder: 0},
			{ID: "b", BranchOrder: 0, IsDefault: true},
		},
	}

	assert.Error(t, condition.Validate())
}

func TestConditionValidateSplitPercentages(t *testing.T) {
	condition := &Condition{
		ID:         "cond-1",
		BranchType: BranchTypeSplitTest,
		Branches: []Branch{
			{ID: "a", BranchOrder: 0, Percentage: percentage(50)},
			{ID: "b", BranchOrder: 1, Percentage: percentage(30)},
		},
	}

	assert.Error(t, condition.Validate(), "percentages must sum to 100")

	condition.Branches[1].Percentage = percentage(50)
	assert.NoError(t, condition.Validate())

	condition.Branches[1].Percentage = nil
	assert.Error(t, condition.Validate())
}

func TestConditionOrderedBranches(t *testing.T) {
	condition := &Condition{
		ID:         "cond-1",
		BranchType: BranchTypeMultiBranch,
		Branches: []Branch{
			{ID: "c", BranchOrder: 2, IsDefault: true},
			{ID: "a", BranchOrder: 0},
			{ID: "b", BranchOrder: 1},
		},
	}

	ordered := condition.OrderedBranches()
	assert.Equal(t, []string{"a", "b", "c"}, []string{ordered[0].ID, ordered[1].ID, ordered[2].ID})
	assert.Equal(t, "c", condition.Branches[0].ID, "input order is preserved")

	branch, ok := condition.DefaultBranch()
	require.True(t, ok)
	assert.Equal(t, "c", branch.ID)
}
