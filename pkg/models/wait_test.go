package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitStepExecutionLifecycle(t *testing.T) {
	wait := NewWaitStepExecution("wait-1", "exec-1", "step-1", WaitTypeFixedTime)
	assert.Equal(t, WaitStatusWaiting, wait.Status)

	require.NoError(t, wait.Schedule())
	assert.Equal(t, WaitStatusScheduled, wait.Status)

	require.NoError(t, wait.Resume("scheduler"))
	assert.Equal(t, WaitStatusResumed, wait.Status)
	assert.Equal(t, "scheduler", wait.ResumedBy)
	assert.NotNil(t, wait.EndedAt)
}

func TestWaitStepExecutionResumeIsIdempotent(t *testing.T) {
	wait := NewWaitStepExecution("wait-1", "exec-1", "step-1", WaitTypeForEvent)
	require.NoError(t, wait.Schedule())
	require.NoError(t, wait.Resume("event"))

	// The losing path must fail and leave the winner's source in place.
	assert.Error(t, wait.Resume("scheduler"))
	assert.Error(t, wait.Timeout())
	assert.Equal(t, WaitStatusResumed, wait.Status)
	assert.Equal(t, "event", wait.ResumedBy)
}

func TestWaitStepExecutionTimeoutOnlyFromScheduled(t *testing.T) {
	wait := NewWaitStepExecution("wait-1", "exec-1", "step-1", WaitTypeForEvent)
	assert.Error(t, wait.Timeout(), "timeout before the job is registered is invalid")

	require.NoError(t, wait.Schedule())
	require.NoError(t, wait.Timeout())
	assert.Equal(t, WaitStatusTimeout, wait.Status)
	assert.True(t, wait.Status.Terminal())
}

func TestWaitStepExecutionCancel(t *testing.T) {
	wait := NewWaitStepExecution("wait-1", "exec-1", "step-1", WaitTypeUntilDate)
	require.NoError(t, wait.Cancel())
	assert.Equal(t, WaitStatusCancelled, wait.Status)
	assert.Error(t, wait.Resume("scheduler"))
}
