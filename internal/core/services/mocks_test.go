package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"avito-assist/internal/core/domain"
)

// ============================================================================
// Mock Collaborators
// ============================================================================

// MockTranscriber mocks Transcriber interface
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	args := m.Called(ctx, audioURL)
	return args.String(0), args.Error(1)
}

// MockCompleter mocks Completer interface
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) GenerateReply(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	args := m.Called(ctx, userMessage, systemPrompt)
	return args.String(0), args.Error(1)
}

// MockMessenger mocks Messenger interface
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendText(ctx context.Context, chatID, text, accessToken string) error {
	args := m.Called(ctx, chatID, text, accessToken)
	return args.Error(0)
}

func (m *MockMessenger) ListUnreadChats(ctx context.Context, accessToken string, limit int) ([]domain.Chat, error) {
	args := m.Called(ctx, accessToken, limit)
	if result := args.Get(0); result != nil {
		return result.([]domain.Chat), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessenger) ListMessages(ctx context.Context, accessToken, chatID string, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, accessToken, chatID, limit)
	if result := args.Get(0); result != nil {
		return result.([]domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessenger) MarkRead(ctx context.Context, accessToken, chatID string) error {
	args := m.Called(ctx, accessToken, chatID)
	return args.Error(0)
}

// MockTokenStore mocks TokenStore interface
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) GetCurrentTokens(ctx context.Context) (*domain.Tokens, error) {
	args := m.Called(ctx)
	if result := args.Get(0); result != nil {
		return result.(*domain.Tokens), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTokenStore) SaveTokens(ctx context.Context, tokens *domain.Tokens) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

// MockProjectStore mocks ProjectStore interface
type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if result := args.Get(0); result != nil {
		return result.(*domain.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) Upsert(ctx context.Context, project *domain.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectStore) List(ctx context.Context) ([]*domain.Project, error) {
	args := m.Called(ctx)
	if result := args.Get(0); result != nil {
		return result.([]*domain.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockWebhookRepository mocks WebhookRepository interface
type MockWebhookRepository struct {
	mock.Mock
}

func (m *MockWebhookRepository) SaveLog(ctx context.Context, log *domain.WebhookLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockWebhookRepository) PurgeOlderThan(ctx context.Context, before time.Time, limit int) (int64, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).(int64), args.Error(1)
}

// MockChatState mocks ChatStateRepository interface
type MockChatState struct {
	mock.Mock
}

func (m *MockChatState) GetLastMessageID(ctx context.Context, chatID string) (string, error) {
	args := m.Called(ctx, chatID)
	return args.String(0), args.Error(1)
}

func (m *MockChatState) SetLastMessageID(ctx context.Context, chatID, messageID string) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

// MockListingProvider mocks ListingProvider interface
type MockListingProvider struct {
	mock.Mock
}

func (m *MockListingProvider) ListingContext(ctx context.Context, accessToken string, itemID int64) (string, error) {
	args := m.Called(ctx, accessToken, itemID)
	return args.String(0), args.Error(1)
}

// recordingSink collects published results
type recordingSink struct {
	mu      sync.Mutex
	sources []string
	results []*domain.PipelineResult
}

func (s *recordingSink) Publish(source string, result *domain.PipelineResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, source)
	s.results = append(s.results, result)
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func strPtr(s string) *string { return &s }

func testProject() *domain.Project {
	p := domain.NewProject()
	p.ID = "default"
	p.Name = "Test shop"
	p.BusinessCategory = domain.CategoryGoods
	return p
}

func textEvent(text string) *domain.InboundEvent {
	return &domain.InboundEvent{
		ID:        "wh-1",
		Version:   "v3.0.0",
		Timestamp: "1700000000",
		EventType: "message",
		Message: domain.MessageValue{
			ID:       "msg-1",
			ChatID:   "chat-1",
			UserID:   "100",
			AuthorID: "200",
			Created:  "1700000000",
			Kind:     domain.MessageKindText,
			Content:  domain.MessageContent{Text: strPtr(text)},
		},
	}
}

func voiceEvent(audioURL string) *domain.InboundEvent {
	e := textEvent("")
	e.Message.Kind = domain.MessageKindVoice
	e.Message.Content = domain.MessageContent{AudioURL: strPtr(audioURL)}
	return e
}
