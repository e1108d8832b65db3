package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/driftline/journey/pkg/protocol"
)

// MockEmailSender is a mock implementation of protocol.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, msg protocol.EmailMessage) (string, error) {
	args := m.Called(ctx, msg)

	return args.String(0), args.Error(1)
}

// MockSMSSender is a mock implementation of protocol.SMSSender.
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, msg protocol.SMSMessage) (string, error) {
	args := m.Called(ctx, msg)

	return args.String(0), args.Error(1)
}

// MockCRMService is a mock implementation of protocol.CRMService.
type MockCRMService struct {
	mock.Mock
}

func (m *MockCRMService) AddTag(ctx context.Context, accountID, contactID, tag string) error {
	args := m.Called(ctx, accountID, contactID, tag)

	return args.Error(0)
}

func (m *MockCRMService) RemoveTag(ctx context.Context, accountID, contactID, tag string) error {
	args := m.Called(ctx, accountID, contactID, tag)

	return args.Error(0)
}

func (m *MockCRMService) UpdateContact(ctx context.Context, accountID, contactID string, fields map[string]any) error {
	args := m.Called(ctx, accountID, contactID, fields)

	return args.Error(0)
}
