package execution

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/conditions"
	"github.com/driftline/journey/pkg/eventbus"
	"github.com/driftline/journey/pkg/evaluators/tags"
	"github.com/driftline/journey/pkg/events"
	"github.com/driftline/journey/pkg/executors/email"
	"github.com/driftline/journey/pkg/executors/sms"
	"github.com/driftline/journey/pkg/executors/waittime"
	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/mocks"
	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
	"github.com/driftline/journey/pkg/persistence/file"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/registry"
	"github.com/driftline/journey/pkg/testutil"
	"github.com/driftline/journey/pkg/wait"
)

// engineFixture runs the engine against the file backend with mocked
// downstream services, so every test exercises the real persistence, wait and
// condition paths.
type engineFixture struct {
	engine *Engine
	store  *file.Persistence
	jobs   *mocks.MockJobScheduler
	bus    *mocks.MockEventBus
	email  *mocks.MockEmailSender
	sms    *mocks.MockSMSSender
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	jobs := &mocks.MockJobScheduler{}
	bus := &mocks.MockEventBus{}
	emailSender := &mocks.MockEmailSender{}
	smsSender := &mocks.MockSMSSender{}
	logger := slog.Default()

	reg := registry.NewRegistry(logger)
	reg.RegisterExecutor(email.NewFactory(emailSender))
	reg.RegisterExecutor(sms.NewFactory(smsSender))
	reg.RegisterExecutor(waittime.NewFactory())
	reg.RegisterEvaluator(tags.NewFactory())

	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	jobs.On("ScheduleAt", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	jobs.On("CancelScheduled", mock.Anything, mock.Anything).Return(nil)

	engine := NewEngine(Config{
		WorkerID:    "worker-test",
		Logger:      logger,
		Persistence: store,
		Registry:    reg,
		Conditions:  conditions.NewEngine(reg, logger),
		Waits:       wait.NewScheduler(logger, store.WaitRepository(), store.ListenerRepository(), jobs),
		Jobs:        jobs,
		EventBus:    bus,
	})

	return &engineFixture{
		engine: engine,
		store:  store,
		jobs:   jobs,
		bus:    bus,
		email:  emailSender,
		sms:    smsSender,
	}
}

func (f *engineFixture) seed(t *testing.T, workflow *models.Workflow, contact *models.Contact, overrides ...func(*models.WorkflowExecution)) *models.WorkflowExecution {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.store.WorkflowRepository().Save(ctx, workflow))
	require.NoError(t, f.store.ContactRepository().Save(ctx, contact))

	execution := testutil.CreateTestExecution(workflow, contact, overrides...)
	require.NoError(t, f.store.ExecutionRepository().Create(ctx, execution))

	return execution
}

func (f *engineFixture) reload(t *testing.T, executionID string) *models.WorkflowExecution {
	t.Helper()

	execution, err := f.store.ExecutionRepository().GetByID(context.Background(), executionID)
	require.NoError(t, err)

	return execution
}

func (f *engineFixture) openWait(t *testing.T, executionID string) *models.WaitStepExecution {
	t.Helper()

	waits, err := f.store.WaitRepository().ListByExecution(context.Background(), executionID)
	require.NoError(t, err)
	require.Len(t, waits, 1)

	return waits[0]
}

func (f *engineFixture) publishedTypes() []events.EventType {
	var types []events.EventType

	for _, call := range f.bus.Calls {
		if call.Method == "Publish" {
			types = append(types, call.Arguments.Get(2).(eventbus.Event).GetType())
		}
	}

	return types
}

func (f *engineFixture) scheduledKinds() []protocol.JobKind {
	var kinds []protocol.JobKind

	for _, call := range f.jobs.Calls {
		if call.Method == "ScheduleAt" {
			kinds = append(kinds, call.Arguments.Get(2).(protocol.JobRef).Kind)
		}
	}

	return kinds
}

func emailStep(position int) *models.Step {
	return testutil.CreateActionStep(position, "send_email", map[string]any{"template_id": "tpl-1"})
}

func TestRunCompletesActionWorkflow(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	reloaded := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, reloaded.Status)
	assert.NotNil(t, reloaded.CompletedAt)
	assert.False(t, reloaded.Converted)

	types := f.publishedTypes()
	assert.Contains(t, types, events.ExecutionStartedType)
	assert.Contains(t, types, events.StepCompletedType)
	assert.Contains(t, types, events.ExecutionCompletedType)

	logs, err := f.store.ExecutionLogRepository().ListByExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, models.StepStatusSuccess, logs[len(logs)-1].Status)
}

func TestRunSkipsDisabledSteps(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	disabled := testutil.CreateActionStep(0, "send_sms", map[string]any{"body": "hi"})
	disabled.Enabled = false

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(disabled, emailStep(1)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	assert.Equal(t, models.ExecutionStatusCompleted, f.reload(t, execution.ID).Status)
	f.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	logs, err := f.store.ExecutionLogRepository().ListByExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	skipped := logs[0]
	assert.Equal(t, disabled.ID, skipped.StepID)
	assert.Equal(t, models.StepStatusSkipped, skipped.Status)
	assert.NotNil(t, skipped.FinishedAt)
}

func TestRunIsNoOpOnTerminalExecution(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Cancel(context.Background(), execution.ID, "operator request"))
	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	assert.Equal(t, models.ExecutionStatusCancelled, f.reload(t, execution.ID).Status)
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunRejectsOptedOutContact(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact(testutil.WithOptedOut())
	execution := f.seed(t, workflow, contact)

	err := f.engine.Run(context.Background(), execution.ID)
	require.ErrorIs(t, err, journeyerr.ErrContactOptedOut)

	reloaded := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusQueued, reloaded.Status,
		"precondition violations leave the execution untouched")
	assert.Equal(t, 1, reloaded.Version)
	assert.Empty(t, f.publishedTypes())
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunRejectsArchivedWorkflow(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testutil.CreateTestWorkflow(
		testutil.WithSteps(emailStep(0)),
		testutil.WithStatus(models.WorkflowStatusArchived))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	err := f.engine.Run(context.Background(), execution.ID)
	require.ErrorIs(t, err, journeyerr.ErrWorkflowNotActive)

	reloaded := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusQueued, reloaded.Status)
	assert.Empty(t, f.publishedTypes())
}

func TestRunHoldsWhenWorkflowPaused(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testutil.CreateTestWorkflow(
		testutil.WithSteps(emailStep(0)),
		testutil.WithStatus(models.WorkflowStatusPaused))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	assert.Equal(t, models.ExecutionStatusQueued, f.reload(t, execution.ID).Status,
		"queued executions wait out the pause in place")
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestWaitStepSuspendsAndResumes(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	waitStep := testutil.CreateWaitStep(0, models.WaitTypeFixedTime,
		map[string]any{"duration": 1.0, "unit": "hours"})
	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(waitStep, emailStep(1)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	suspended := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusWaiting, suspended.Status)
	assert.Equal(t, 0, suspended.CurrentStepIndex, "position stays on the wait step")
	assert.Contains(t, f.scheduledKinds(), protocol.JobKindWaitResume)
	assert.Contains(t, f.publishedTypes(), events.ExecutionWaitingType)
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	stepWait := f.openWait(t, execution.ID)
	assert.Equal(t, models.WaitStatusScheduled, stepWait.Status)

	require.NoError(t, f.engine.HandleResume(context.Background(), execution.ID, stepWait.ID, ResumeReasonWaitResume))

	resumed := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	f.email.AssertCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestStaleResumeIsDropped(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	waitStep := testutil.CreateWaitStep(0, models.WaitTypeFixedTime,
		map[string]any{"duration": 1.0, "unit": "hours"})
	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(waitStep, emailStep(1)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))
	stepWait := f.openWait(t, execution.ID)

	require.NoError(t, f.engine.HandleResume(context.Background(), execution.ID, stepWait.ID, ResumeReasonWaitResume))
	require.NoError(t, f.engine.HandleResume(context.Background(), execution.ID, stepWait.ID, ResumeReasonWaitResume),
		"redelivered resume hits the terminal wait and is dropped")

	f.email.AssertNumberOfCalls(t, "Send", 1)
}

func TestWaitTimeActionSuspends(t *testing.T) {
	f := newEngineFixture(t)

	step := testutil.CreateActionStep(0, waittime.ActionType,
		map[string]any{"duration": 2.0, "unit": "days"})
	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(step))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	assert.Equal(t, models.ExecutionStatusWaiting, f.reload(t, execution.ID).Status)
	assert.Contains(t, f.scheduledKinds(), protocol.JobKindWaitResume)

	stepWait := f.openWait(t, execution.ID)
	assert.Equal(t, models.WaitTypeFixedTime, stepWait.WaitType)
	assert.Equal(t, models.WaitStatusScheduled, stepWait.Status)
}

func TestEventWaitTimeoutContinues(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	waitStep := testutil.CreateWaitStep(0, models.WaitTypeForEvent, map[string]any{
		"event_type":    "email_opened",
		"timeout_hours": 24.0,
	})
	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(waitStep, emailStep(1)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))
	assert.Contains(t, f.scheduledKinds(), protocol.JobKindWaitTimeout)

	stepWait := f.openWait(t, execution.ID)
	require.NoError(t, f.engine.HandleResume(context.Background(), execution.ID, stepWait.ID, ResumeReasonWaitTimeout))

	assert.Equal(t, models.ExecutionStatusCompleted, f.reload(t, execution.ID).Status)
	f.email.AssertCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestEventWaitTimeoutExits(t *testing.T) {
	f := newEngineFixture(t)

	waitStep := testutil.CreateWaitStep(0, models.WaitTypeForEvent, map[string]any{
		"event_type":     "email_opened",
		"timeout_hours":  24.0,
		"timeout_action": "exit",
	})
	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(waitStep, emailStep(1)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	stepWait := f.openWait(t, execution.ID)
	require.NoError(t, f.engine.HandleResume(context.Background(), execution.ID, stepWait.ID, ResumeReasonWaitTimeout))

	completed := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, completed.Status)
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestEventWaitResumedByEvent(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	waitStep := testutil.CreateWaitStep(0, models.WaitTypeForEvent, map[string]any{
		"event_type":    "email_opened",
		"timeout_hours": 24.0,
	})
	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(waitStep, emailStep(1)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	stepWait := f.openWait(t, execution.ID)
	require.NoError(t, f.engine.HandleResume(context.Background(), execution.ID, stepWait.ID, ResumeReasonEvent))

	assert.Equal(t, models.ExecutionStatusCompleted, f.reload(t, execution.ID).Status)

	resumedWait := f.openWait(t, execution.ID)
	assert.Equal(t, models.WaitStatusResumed, resumedWait.Status)
	assert.Equal(t, wait.ResumedByEvent, resumedWait.ResumedBy)
}

func TestRetryableFailureRequeues(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("", assertableNetworkError{})

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	requeued := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusQueued, requeued.Status, "retry re-queues from the first step")
	assert.Equal(t, 1, requeued.RetryCount)
	assert.Equal(t, 0, requeued.CurrentStepIndex)

	assert.Contains(t, f.scheduledKinds(), protocol.JobKindStepRetry)
	types := f.publishedTypes()
	assert.Contains(t, types, events.StepFailedType)
	assert.Contains(t, types, events.ExecutionFailedType)
}

func TestNonRetryableFailureIsTerminal(t *testing.T) {
	f := newEngineFixture(t)

	// Missing template_id is a configuration error: no retry can fix it.
	step := testutil.CreateActionStep(0, "send_email", map[string]any{})
	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(step))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	failed := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusFailed, failed.Status)
	assert.NotContains(t, f.scheduledKinds(), protocol.JobKindStepRetry)
}

func TestRetryBudgetExhaustion(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("", assertableNetworkError{})

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact, func(e *models.WorkflowExecution) {
		e.RetryCount = workflow.Retry.MaxAttempts
	})

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	assert.Equal(t, models.ExecutionStatusFailed, f.reload(t, execution.ID).Status)
	assert.NotContains(t, f.scheduledKinds(), protocol.JobKindStepRetry)
}

func TestConditionBranchJump(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	smsStep := testutil.CreateActionStep(1, "send_sms", map[string]any{"body": "hi"})
	mailStep := emailStep(2)

	conditionStep := testutil.CreateConditionStep(0, &models.Condition{
		ID:         "cond-1",
		BranchType: models.BranchTypeIfElse,
		Branches: []models.Branch{
			{
				ID:            "vip",
				BranchOrder:   0,
				NextNodeID:    mailStep.ID,
				ConditionType: "tags",
				Criteria:      map[string]any{"mode": tags.ModeHasAny, "tags": []any{"vip"}},
			},
			{ID: "rest", BranchOrder: 1, IsDefault: true, NextNodeID: smsStep.ID},
		},
	})

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(conditionStep, smsStep, mailStep))
	contact := testutil.CreateTestContact(testutil.WithTags("vip"))
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	assert.Equal(t, models.ExecutionStatusCompleted, f.reload(t, execution.ID).Status)
	f.email.AssertCalled(t, "Send", mock.Anything, mock.Anything)
	f.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestConditionUnknownTargetFails(t *testing.T) {
	f := newEngineFixture(t)

	conditionStep := testutil.CreateConditionStep(0, &models.Condition{
		ID:         "cond-1",
		BranchType: models.BranchTypeIfElse,
		Branches: []models.Branch{
			{
				ID:            "yes",
				BranchOrder:   0,
				NextNodeID:    "no-such-node",
				ConditionType: "tags",
				Criteria:      map[string]any{"mode": tags.ModeHasAny, "tags": []any{"vip"}},
			},
			{ID: "no", BranchOrder: 1, IsDefault: true},
		},
	})

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(conditionStep))
	contact := testutil.CreateTestContact(testutil.WithTags("vip"))
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))

	assert.Equal(t, models.ExecutionStatusFailed, f.reload(t, execution.ID).Status)
	assert.NotContains(t, f.scheduledKinds(), protocol.JobKindStepRetry)
}

func TestConvertGoalOnWaitingExecution(t *testing.T) {
	f := newEngineFixture(t)

	waitStep := testutil.CreateWaitStep(0, models.WaitTypeFixedTime,
		map[string]any{"duration": 1.0, "unit": "days"})
	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(waitStep, emailStep(1)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))
	require.NoError(t, f.engine.ConvertGoal(context.Background(), execution.ID, "purchase_completed"))

	converted := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, converted.Status)
	assert.True(t, converted.Converted)

	cancelled := f.openWait(t, execution.ID)
	assert.Equal(t, models.WaitStatusCancelled, cancelled.Status, "open waits are cleaned up")

	types := f.publishedTypes()
	assert.Contains(t, types, events.GoalConvertedType)
	assert.Contains(t, types, events.ExecutionCompletedType)
}

func TestConvertGoalOnTerminalExecutionIsNoOp(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Run(context.Background(), execution.ID))
	require.NoError(t, f.engine.ConvertGoal(context.Background(), execution.ID, "purchase_completed"))

	reloaded := f.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, reloaded.Status)
	assert.False(t, reloaded.Converted, "completed executions do not convert retroactively")
}

func TestPauseAndUnpause(t *testing.T) {
	f := newEngineFixture(t)
	f.email.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	ctx := context.Background()
	active := f.reload(t, execution.ID)
	require.NoError(t, active.Start())
	require.NoError(t, f.store.ExecutionRepository().Save(ctx, active, active.Version))

	require.NoError(t, f.engine.Pause(ctx, execution.ID))
	assert.Equal(t, models.ExecutionStatusPaused, f.reload(t, execution.ID).Status)
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	require.NoError(t, f.engine.Unpause(ctx, execution.ID))
	assert.Equal(t, models.ExecutionStatusCompleted, f.reload(t, execution.ID).Status)
	f.email.AssertCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleResumeUnknownReason(t *testing.T) {
	f := newEngineFixture(t)

	err := f.engine.HandleResume(context.Background(), "exec-1", "wait-1", "nonsense")
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnknownResumeReason)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact()
	execution := f.seed(t, workflow, contact)

	require.NoError(t, f.engine.Cancel(context.Background(), execution.ID, "operator request"))
	require.NoError(t, f.engine.Cancel(context.Background(), execution.ID, "operator request"))

	assert.Equal(t, models.ExecutionStatusCancelled, f.reload(t, execution.ID).Status)
}

func TestRunSwallowsVersionConflict(t *testing.T) {
	store := mocks.NewMockPersistence()
	jobs := &mocks.MockJobScheduler{}
	bus := &mocks.MockEventBus{}
	logger := slog.Default()

	engine := NewEngine(Config{
		WorkerID:    "worker-test",
		Logger:      logger,
		Persistence: store,
		Registry:    registry.NewRegistry(logger),
		Conditions:  conditions.NewEngine(registry.NewRegistry(logger), logger),
		Waits:       wait.NewScheduler(logger, store.Waits, store.Listeners, jobs),
		Jobs:        jobs,
		EventBus:    bus,
	})

	workflow := testutil.CreateTestWorkflow(testutil.WithSteps(emailStep(0)))
	contact := testutil.CreateTestContact()
	execution := testutil.CreateTestExecution(workflow, contact)
	execution.Version = 1

	store.Executions.On("GetByID", mock.Anything, execution.ID).Return(execution, nil)
	store.Workflows.On("GetVersion", mock.Anything, workflow.ID, workflow.Version).Return(workflow, nil)
	store.Contacts.On("GetByID", mock.Anything, contact.ID).Return(contact, nil)
	store.Executions.On("Save", mock.Anything, execution, 1).
		Return(persistence.NewRepositoryError("Save", "execution", execution.ID, journeyerr.ErrVersionConflict))

	require.NoError(t, engine.Run(context.Background(), execution.ID),
		"losing the version race to another worker is a clean stop")
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

// assertableNetworkError reads as a transient network failure to the error
// categorizer.
type assertableNetworkError struct{}

func (assertableNetworkError) Error() string {
	return "connection refused"
}
