package conditions

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/evaluators/tags"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/registry"
	"github.com/driftline/journey/pkg/testutil"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterEvaluator(tags.NewFactory())

	return NewEngine(reg, slog.Default())
}

func tagsBranch(id string, order int, next string, wanted ...string) models.Branch {
	tagList := make([]any, len(wanted))
	for i, tag := range wanted {
		tagList[i] = tag
	}

	return models.Branch{
		ID:            id,
		BranchOrder:   order,
		NextNodeID:    next,
		ConditionType: "tags",
		Criteria:      map[string]any{"mode": tags.ModeHasAny, "tags": tagList},
	}
}

func TestSelectBranchFirstMatchWins(t *testing.T) {
	engine := newTestEngine(t)
	contact := testutil.CreateTestContact(testutil.WithTags("vip", "beta"))

	condition := &models.Condition{
		ID:         "cond-1",
		BranchType: models.BranchTypeMultiBranch,
		Branches: []models.Branch{
			tagsBranch("later", 1, "node-b", "beta"),
			tagsBranch("first", 0, "node-a", "vip"),
			{ID: "default", BranchOrder: 2, IsDefault: true, NextNodeID: "node-c"},
		},
	}

	selection, err := engine.SelectBranch(context.Background(), condition, protocol.NewEvaluationContext(contact))
	require.NoError(t, err)

	assert.True(t, selection.Matched)
	assert.Equal(t, "first", selection.Branch.ID, "branch order decides, not slice order")
}

func TestSelectBranchFallsBackToDefault(t *testing.T) {
	engine := newTestEngine(t)
	contact := testutil.CreateTestContact()

	condition := &models.Condition{
		ID:         "cond-1",
		BranchType: models.BranchTypeIfElse,
		Branches: []models.Branch{
			tagsBranch("yes", 0, "node-a", "vip"),
			{ID: "no", BranchOrder: 1, IsDefault: true, NextNodeID: "node-b"},
		},
	}

	selection, err := engine.SelectBranch(context.Background(), condition, protocol.NewEvaluationContext(contact))
	require.NoError(t, err)

	assert.False(t, selection.Matched)
	assert.Equal(t, "no", selection.Branch.ID)
}

func TestSelectBranchUnknownEvaluator(t *testing.T) {
	engine := newTestEngine(t)
	contact := testutil.CreateTestContact()

	condition := &models.Condition{
		ID:         "cond-1",
		BranchType: models.BranchTypeIfElse,
		Branches: []models.Branch{
			{ID: "yes", BranchOrder: 0, ConditionType: "nope", Criteria: map[string]any{}},
			{ID: "no", BranchOrder: 1, IsDefault: true},
		},
	}

	_, err := engine.SelectBranch(context.Background(), condition, protocol.NewEvaluationContext(contact))
	assert.Error(t, err)
}

func splitCondition(id string) *models.Condition {
	fifty := 50.0

	return &models.Condition{
		ID:         id,
		BranchType: models.BranchTypeSplitTest,
		Branches: []models.Branch{
			{ID: "variant-a", BranchOrder: 0, Percentage: &fifty, NextNodeID: "node-a"},
			{ID: "variant-b", BranchOrder: 1, Percentage: &fifty, NextNodeID: "node-b"},
		},
	}
}

func TestSelectSplitIsDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	condition := splitCondition("cond-split")
	evalCtx := protocol.EvaluationContext{ContactID: "contact-42"}

	first, err := engine.SelectBranch(context.Background(), condition, evalCtx)
	require.NoError(t, err)

	for range 10 {
		again, err := engine.SelectBranch(context.Background(), condition, evalCtx)
		require.NoError(t, err)
		assert.Equal(t, first.Branch.ID, again.Branch.ID)
	}
}

func TestSelectSplitDistributes(t *testing.T) {
	engine := newTestEngine(t)
	condition := splitCondition("cond-split")

	counts := map[string]int{}

	for i := range 1000 {
		evalCtx := protocol.EvaluationContext{ContactID: fmt.Sprintf("contact-%d", i)}

		selection, err := engine.SelectBranch(context.Background(), condition, evalCtx)
		require.NoError(t, err)
		counts[selection.Branch.ID]++
	}

	assert.Positive(t, counts["variant-a"], "both variants receive traffic")
	assert.Positive(t, counts["variant-b"])
}

func TestSplitBucketRange(t *testing.T) {
	for _, contactID := range []string{"a", "b", "contact-1", "contact-2", "x9"} {
		bucket := splitBucket(contactID, "cond-1")
		assert.GreaterOrEqual(t, bucket, 0.0)
		assert.Less(t, bucket, 100.0)
	}
}
