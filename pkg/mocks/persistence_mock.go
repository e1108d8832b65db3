// Package mocks provides testify mocks for the persistence, event bus and
// scheduler contracts.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetVersion(ctx context.Context, id string, version int) (*models.Workflow, error) {
	args := m.Called(ctx, id, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) ListActiveByTriggerEvent(ctx context.Context, eventType string) ([]*models.Workflow, error) {
	args := m.Called(ctx, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution, expectedVersion int) error {
	args := m.Called(ctx, execution, expectedVersion)

	if args.Error(0) == nil {
		execution.Version = expectedVersion + 1
	}

	return args.Error(0)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}

func (m *MockExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowExecution), args.Error(1)
}

func (m *MockExecutionRepository) FindOpenByWorkflowAndContact(ctx context.Context, workflowID, contactID string) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, workflowID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}

// MockWaitRepository is a mock implementation of persistence.WaitRepository.
type MockWaitRepository struct {
	mock.Mock
}

func (m *MockWaitRepository) Save(ctx context.Context, wait *models.WaitStepExecution) error {
	args := m.Called(ctx, wait)

	return args.Error(0)
}

func (m *MockWaitRepository) GetByID(ctx context.Context, id string) (*models.WaitStepExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WaitStepExecution), args.Error(1)
}

func (m *MockWaitRepository) ListDue(ctx context.Context, now time.Time) ([]*models.WaitStepExecution, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WaitStepExecution), args.Error(1)
}

func (m *MockWaitRepository) ListTimedOut(ctx context.Context, now time.Time) ([]*models.WaitStepExecution, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WaitStepExecution), args.Error(1)
}

func (m *MockWaitRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.WaitStepExecution, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WaitStepExecution), args.Error(1)
}

// MockListenerRepository is a mock implementation of persistence.ListenerRepository.
type MockListenerRepository struct {
	mock.Mock
}

func (m *MockListenerRepository) Save(ctx context.Context, listener *models.EventListener) error {
	args := m.Called(ctx, listener)

	return args.Error(0)
}

func (m *MockListenerRepository) GetByID(ctx context.Context, id string) (*models.EventListener, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.EventListener), args.Error(1)
}

func (m *MockListenerRepository) ListActiveByEvent(ctx context.Context, eventType, correlationID string) ([]*models.EventListener, error) {
	args := m.Called(ctx, eventType, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.EventListener), args.Error(1)
}

func (m *MockListenerRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.EventListener, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.EventListener), args.Error(1)
}

// MockContactRepository is a mock implementation of persistence.ContactRepository.
type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) Save(ctx context.Context, contact *models.Contact) error {
	args := m.Called(ctx, contact)

	return args.Error(0)
}

func (m *MockContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Contact), args.Error(1)
}

// MockExecutionLogRepository is a mock implementation of persistence.ExecutionLogRepository.
type MockExecutionLogRepository struct {
	mock.Mock
}

func (m *MockExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLog) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockExecutionLogRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLog), args.Error(1)
}

// MockPersistence aggregates the repository mocks behind the Persistence
// interface.
type MockPersistence struct {
	mock.Mock

	Workflows     *MockWorkflowRepository
	Executions    *MockExecutionRepository
	Waits         *MockWaitRepository
	Listeners     *MockListenerRepository
	Contacts      *MockContactRepository
	ExecutionLogs *MockExecutionLogRepository
}

// NewMockPersistence creates a MockPersistence with all repositories wired.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Workflows:     &MockWorkflowRepository{},
		Executions:    &MockExecutionRepository{},
		Waits:         &MockWaitRepository{},
		Listeners:     &MockListenerRepository{},
		Contacts:      &MockContactRepository{},
		ExecutionLogs: &MockExecutionLogRepository{},
	}
}

var _ persistence.Persistence = (*MockPersistence)(nil)

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	return m.Executions
}

func (m *MockPersistence) WaitRepository() persistence.WaitRepository {
	return m.Waits
}

func (m *MockPersistence) ListenerRepository() persistence.ListenerRepository {
	return m.Listeners
}

func (m *MockPersistence) ContactRepository() persistence.ContactRepository {
	return m.Contacts
}

func (m *MockPersistence) ExecutionLogRepository() persistence.ExecutionLogRepository {
	return m.ExecutionLogs
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
