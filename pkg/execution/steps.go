package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/driftline/journey/pkg/events"
	"github.com/driftline/journey/pkg/executors/waittime"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/otelhelper"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/retry"
)

// runSteps walks the workflow from the execution's current position. It
// returns when the execution completes, fails, suspends at a wait, or the
// context is cancelled; the persisted step index always points at the next
// unfinished step.
func (e *Engine) runSteps(ctx context.Context, execution *models.WorkflowExecution, workflow *models.Workflow, contact *models.Contact) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		step := workflow.StepAt(execution.CurrentStepIndex)
		if step == nil {
			return e.complete(ctx, execution)
		}

		if !step.Enabled {
			entry := models.NewExecutionLog(e.newLogID(), execution.ID, step.ID,
				step.ActionType, nil, execution.RetryCount+1)
			entry.Finish(models.StepStatusSkipped, nil, "")
			e.appendLog(ctx, entry)

			execution.AdvanceStep()

			if err := e.save(ctx, execution); err != nil {
				return err
			}

			continue
		}

		var (
			proceed bool
			err     error
		)

		switch step.Kind {
		case models.StepKindAction:
			proceed, err = e.runAction(ctx, execution, workflow, step)
		case models.StepKindCondition:
			proceed, err = e.runCondition(ctx, execution, workflow, step, contact)
		case models.StepKindWait:
			proceed, err = e.runWait(ctx, execution, workflow, step)
		default:
			proceed, err = e.failExecution(ctx, execution, workflow, step,
				fmt.Sprintf("unknown step kind %q", step.Kind), false, 0)
		}

		if err != nil {
			return err
		}

		if !proceed {
			return nil
		}
	}
}

// runAction executes one action step. Expected failures flow through the
// result and the retry policy; a returned error from the executor is
// categorized from its message, matching how downstream services report.
func (e *Engine) runAction(ctx context.Context, execution *models.WorkflowExecution, workflow *models.Workflow, step *models.Step) (bool, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.action",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.ActionTypeKey, step.ActionType),
	)
	defer span.End()

	entry := models.NewExecutionLog(e.newLogID(), execution.ID, step.ID,
		step.ActionType, step.Config, execution.RetryCount+1)
	e.appendLog(ctx, entry)

	executor, err := e.registry.CreateExecutor(step.ActionType, step.Config)
	if err != nil {
		// Bad config or unknown type cannot succeed on retry.
		return e.finishFailedStep(ctx, execution, workflow, step, entry, err.Error(), false, 0)
	}

	result, execErr := executor.Execute(ctx, protocol.ActionContext{
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
		AccountID:   execution.AccountID,
		ActionID:    step.ID,
		Config:      step.Config,
		Metadata:    execution.Metadata,
	})
	if execErr != nil {
		category := retry.CategorizeError(execErr.Error())
		result = protocol.FailureResult(execErr.Error(), category.Retryable(), 0)
	}

	if !result.Success {
		otelhelper.SetError(span, errors.New(result.Error))

		return e.finishFailedStep(ctx, execution, workflow, step, entry,
			result.Error, result.ShouldRetry, result.RetryDelaySeconds)
	}

	entry.Finish(models.StepStatusSuccess, result.Data, "")
	e.appendLog(ctx, entry)

	e.publish(ctx, execution.ContactID, events.StepCompleted{
		BaseEvent:   e.baseEvent(events.StepCompletedType, execution.AccountID),
		ExecutionID: execution.ID,
		StepID:      step.ID,
		ActionType:  step.ActionType,
		Data:        result.Data,
		DurationMs:  result.DurationMs,
	})

	if step.ActionType == waittime.ActionType {
		return e.suspendFromResult(ctx, execution, step, result)
	}

	execution.AdvanceStep()

	return true, e.save(ctx, execution)
}

// suspendFromResult converts a wait_time action result into a scheduled wait:
// the executor computed the resume time, the wait scheduler owns the clock.
func (e *Engine) suspendFromResult(ctx context.Context, execution *models.WorkflowExecution, step *models.Step, result protocol.ExecutionResult) (bool, error) {
	raw, ok := result.Data[waittime.ResumeAtKey].(string)
	if !ok {
		return false, fmt.Errorf("wait_time result missing %q", waittime.ResumeAtKey)
	}

	resumeAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false, fmt.Errorf("wait_time result has invalid %q: %w", waittime.ResumeAtKey, err)
	}

	scheduled, err := e.waits.BeginScheduled(ctx, execution.ID, step.ID, resumeAt)
	if err != nil {
		return false, err
	}

	return e.suspend(ctx, execution, scheduled)
}

// runCondition selects a branch and repositions the step pointer. Condition
// failures never retry: the same contact yields the same outcome.
func (e *Engine) runCondition(ctx context.Context, execution *models.WorkflowExecution, workflow *models.Workflow, step *models.Step, contact *models.Contact) (bool, error) {
	if step.Condition == nil {
		return e.failExecution(ctx, execution, workflow, step, "condition step has no condition", false, 0)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.condition",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.StepIDKey, step.ID),
	)
	defer span.End()

	entry := models.NewExecutionLog(e.newLogID(), execution.ID, step.ID, "", nil, execution.RetryCount+1)

	selection, err := e.conditions.SelectBranch(ctx, step.Condition, protocol.NewEvaluationContext(contact))
	if err != nil {
		return e.finishFailedStep(ctx, execution, workflow, step, entry, err.Error(), false, 0)
	}

	response := map[string]any{
		"branch_id": selection.Branch.ID,
		"matched":   selection.Matched,
	}
	for k, v := range selection.Details {
		response[k] = v
	}

	entry.Finish(models.StepStatusSuccess, response, "")
	e.appendLog(ctx, entry)

	if selection.Branch.NextNodeID == "" {
		execution.AdvanceStep()

		return true, e.save(ctx, execution)
	}

	index := workflow.IndexOf(selection.Branch.NextNodeID)
	if index < 0 {
		return e.failExecution(ctx, execution, workflow, step,
			fmt.Sprintf("branch %q points to unknown node %q", selection.Branch.ID, selection.Branch.NextNodeID), false, 0)
	}

	execution.SetNode(selection.Branch.NextNodeID)

	if err := execution.SetStep(index); err != nil {
		return false, err
	}

	return true, e.save(ctx, execution)
}

// runWait hands the step to the wait scheduler and suspends the execution.
func (e *Engine) runWait(ctx context.Context, execution *models.WorkflowExecution, workflow *models.Workflow, step *models.Step) (bool, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.wait",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.StepIDKey, step.ID),
	)
	defer span.End()

	scheduled, err := e.waits.Begin(ctx, execution, step)
	if err != nil {
		// Wait config errors are caught at save time; one surfacing here is
		// a definition bug and never retryable.
		return e.failExecution(ctx, execution, workflow, step, err.Error(), false, 0)
	}

	return e.suspend(ctx, execution, scheduled)
}

// suspend parks the execution at the scheduled wait and stops the loop.
func (e *Engine) suspend(ctx context.Context, execution *models.WorkflowExecution, scheduled *models.WaitStepExecution) (bool, error) {
	if err := execution.Wait(); err != nil {
		return false, err
	}

	if err := e.save(ctx, execution); err != nil {
		return false, err
	}

	e.publish(ctx, execution.ContactID, events.ExecutionWaiting{
		BaseEvent:   e.baseEvent(events.ExecutionWaitingType, execution.AccountID),
		ExecutionID: execution.ID,
		WaitID:      scheduled.ID,
		WaitType:    string(scheduled.WaitType),
		ResumeAt:    scheduled.ScheduledAt,
	})

	e.logger.InfoContext(ctx, "Execution suspended",
		"execution_id", execution.ID, "wait_id", scheduled.ID,
		"wait_type", scheduled.WaitType)

	return false, nil
}

// finishFailedStep closes the step's log entry, announces the step failure and
// fails the execution under the retry policy.
func (e *Engine) finishFailedStep(ctx context.Context, execution *models.WorkflowExecution, workflow *models.Workflow, step *models.Step, entry *models.ExecutionLog, reason string, shouldRetry bool, retryDelaySeconds int) (bool, error) {
	entry.Finish(models.StepStatusFailed, nil, reason)
	e.appendLog(ctx, entry)

	willRetry := shouldRetry && execution.RetryCount < workflow.Retry.MaxAttempts

	e.publish(ctx, execution.ContactID, events.StepFailed{
		BaseEvent:   e.baseEvent(events.StepFailedType, execution.AccountID),
		ExecutionID: execution.ID,
		StepID:      step.ID,
		ActionType:  step.ActionType,
		Error:       reason,
		Attempt:     execution.RetryCount + 1,
		WillRetry:   willRetry,
	})

	return e.failExecution(ctx, execution, workflow, step, reason, shouldRetry, retryDelaySeconds)
}

// failExecution fails the execution and, when the retry budget allows,
// re-queues it from the first step with an exponential backoff delay. The
// action's own delay hint takes precedence over the computed backoff.
func (e *Engine) failExecution(ctx context.Context, execution *models.WorkflowExecution, workflow *models.Workflow, step *models.Step, reason string, shouldRetry bool, retryDelaySeconds int) (bool, error) {
	if err := execution.Fail(reason); err != nil {
		return false, err
	}

	if err := e.save(ctx, execution); err != nil {
		return false, err
	}

	willRetry := shouldRetry && execution.CanRetry(workflow.Retry)

	e.publish(ctx, execution.ContactID, events.ExecutionFailed{
		BaseEvent:   e.baseEvent(events.ExecutionFailedType, execution.AccountID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		ContactID:   execution.ContactID,
		Error:       reason,
		RetryCount:  execution.RetryCount,
		WillRetry:   willRetry,
	})

	if !willRetry {
		if err := e.waits.CancelForExecution(ctx, execution.ID); err != nil {
			e.logger.WarnContext(ctx, "Failed to cancel waits after terminal failure",
				"execution_id", execution.ID, "error", err)
		}

		e.logger.ErrorContext(ctx, "Execution failed terminally",
			"execution_id", execution.ID, "step_id", step.ID, "reason", reason,
			"retry_count", execution.RetryCount)

		return false, nil
	}

	if err := execution.Retry(workflow.Retry); err != nil {
		return false, err
	}

	if err := e.save(ctx, execution); err != nil {
		return false, err
	}

	delay := time.Duration(retryDelaySeconds) * time.Second
	if delay <= 0 {
		delay = retry.NewPolicy(workflow.Retry).CalculateDelay(execution.RetryCount)
	}

	if err := e.jobs.ScheduleAt(ctx, time.Now().UTC().Add(delay), protocol.JobRef{
		Kind:        protocol.JobKindStepRetry,
		ExecutionID: execution.ID,
		TargetID:    step.ID,
	}); err != nil {
		return false, fmt.Errorf("failed to schedule retry: %w", err)
	}

	e.logger.WarnContext(ctx, "Execution re-queued for retry",
		"execution_id", execution.ID, "step_id", step.ID,
		"attempt", execution.RetryCount, "delay", delay)

	return false, nil
}

// appendLog persists a log entry. Log writes never abort the run.
func (e *Engine) appendLog(ctx context.Context, entry *models.ExecutionLog) {
	if err := e.logs.Append(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "Failed to write execution log",
			"execution_id", entry.ExecutionID, "step_id", entry.StepID, "error", err)
	}
}
