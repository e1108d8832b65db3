package registry

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/evaluators/tags"
	"github.com/driftline/journey/pkg/executors/waittime"
	"github.com/driftline/journey/pkg/executors/webhook"
	"github.com/driftline/journey/pkg/journeyerr"
)

func TestCreateExecutor(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterExecutor(waittime.NewFactory())
	reg.RegisterExecutor(webhook.NewFactory())

	executor, err := reg.CreateExecutor("wait_time", map[string]any{
		"duration": 2.0, "unit": "hours",
	})
	require.NoError(t, err)
	assert.NotNil(t, executor)

	assert.ElementsMatch(t, []string{"wait_time", "webhook"}, reg.ExecutorTypes())
}

func TestCreateExecutorUnknownType(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, err := reg.CreateExecutor("send_pigeon", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, journeyerr.ErrExecutorNotRegistered)
}

func TestCreateExecutorPropagatesConfigError(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterExecutor(webhook.NewFactory())

	_, err := reg.CreateExecutor("webhook", map[string]any{})
	assert.Error(t, err, "webhook config requires a url")
}

func TestCreateEvaluator(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterEvaluator(tags.NewFactory())

	evaluator, err := reg.CreateEvaluator("tags", map[string]any{
		"mode": tags.ModeHasAny, "tags": []any{"vip"},
	})
	require.NoError(t, err)
	assert.NotNil(t, evaluator)

	assert.Equal(t, []string{"tags"}, reg.EvaluatorTypes())
}

func TestCreateEvaluatorUnknownType(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, err := reg.CreateEvaluator("astrology", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, journeyerr.ErrEvaluatorNotRegistered)
}

func TestRegisterExecutorReplacesFactory(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterExecutor(waittime.NewFactory())
	reg.RegisterExecutor(waittime.NewFactory())

	assert.Len(t, reg.ExecutorTypes(), 1)
}
