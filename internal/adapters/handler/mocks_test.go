package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"avito-assist/internal/core/domain"
)

// MockDispatcher mocks WebhookDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, event *domain.InboundEvent, payload []byte) (*domain.PipelineResult, error) {
	args := m.Called(ctx, event, payload)
	if result := args.Get(0); result != nil {
		return result.(*domain.PipelineResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockExchanger mocks OAuthExchanger
type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockExchanger) AuthCodeURL(state string) string {
	return m.Called(state).String(0)
}

func (m *MockExchanger) Exchange(ctx context.Context, code string) (*domain.Tokens, error) {
	args := m.Called(ctx, code)
	if result := args.Get(0); result != nil {
		return result.(*domain.Tokens), args.Error(1)
	}
	return nil, args.Error(1)
}

func strPtr(s string) *string {
	return &s
}
