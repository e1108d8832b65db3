package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/driftline/journey/pkg/protocol"
)

// MockJobScheduler is a mock implementation of protocol.JobScheduler.
type MockJobScheduler struct {
	mock.Mock
}

var _ protocol.JobScheduler = (*MockJobScheduler)(nil)

func (m *MockJobScheduler) ScheduleAt(ctx context.Context, at time.Time, ref protocol.JobRef) error {
	args := m.Called(ctx, at, ref)

	return args.Error(0)
}

func (m *MockJobScheduler) CancelScheduled(ctx context.Context, ref protocol.JobRef) error {
	args := m.Called(ctx, ref)

	return args.Error(0)
}
