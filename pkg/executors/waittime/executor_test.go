package waittime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/protocol"
)

func TestExecuteComputesResumeAt(t *testing.T) {
	executor, err := NewExecutor(map[string]any{"duration": 3.0, "unit": "hours"})
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	executor.WithClock(func() time.Time { return now })

	result, err := executor.Execute(context.Background(), protocol.ActionContext{})
	require.NoError(t, err)
	require.True(t, result.Success)

	resumeAt, err := time.Parse(time.RFC3339, result.Data[ResumeAtKey].(string))
	require.NoError(t, err)
	assert.Equal(t, now.Add(3*time.Hour), resumeAt)
	assert.Equal(t, 3, result.Data["duration"])
	assert.Equal(t, "hours", result.Data["unit"])
}

func TestNewExecutorValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{"missing duration", map[string]any{"unit": "hours"}},
		{"missing unit", map[string]any{"duration": 5.0}},
		{"unknown unit", map[string]any{"duration": 5.0, "unit": "fortnights"}},
		{"minutes over bound", map[string]any{"duration": 60.0, "unit": "minutes"}},
		{"zero duration", map[string]any{"duration": 0.0, "unit": "days"}},
		{"weeks over bound", map[string]any{"duration": 13.0, "unit": "weeks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExecutor(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestFactory(t *testing.T) {
	factory := NewFactory()

	assert.Equal(t, ActionType, factory.ID())

	executor, err := factory.Create(map[string]any{"duration": 1.0, "unit": "days"})
	require.NoError(t, err)
	assert.NotNil(t, executor)
}
