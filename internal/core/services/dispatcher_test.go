package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"avito-assist/internal/core/domain"
)

// createTestDispatcher creates a dispatcher with mock repositories
func createTestDispatcher() (*Dispatcher, *pipelineMocks, *MockProjectStore, *MockWebhookRepository, *recordingSink) {
	pipeline, m := createTestPipeline(PipelineConfig{})
	projects := new(MockProjectStore)
	webhookRepo := new(MockWebhookRepository)
	sink := &recordingSink{}

	dispatcher := NewDispatcher(pipeline, projects, webhookRepo, sink, "default")
	return dispatcher, m, projects, webhookRepo, sink
}

func TestDispatch_ProcessedEventIsLoggedAndPublished(t *testing.T) {
	dispatcher, m, projects, webhookRepo, sink := createTestDispatcher()

	projects.On("Get", mock.Anything, "default").Return(testProject(), nil)
	m.completer.On("GenerateReply", mock.Anything, mock.Anything, mock.Anything).Return("Hi there", nil)
	m.tokens.On("GetCurrentTokens", mock.Anything).Return(validTokens, nil)
	m.messenger.On("SendText", mock.Anything, "chat-1", "Hi there", "access-123").Return(nil)
	webhookRepo.On("SaveLog", mock.Anything, mock.MatchedBy(func(l *domain.WebhookLog) bool {
		return l.WebhookID == "wh-1" && l.ChatID == "chat-1" &&
			l.Status == domain.WebhookStatusProcessed && l.ErrorLog == nil &&
			string(l.PayloadJSON) == `{"raw":true}`
	})).Return(nil)

	result, err := dispatcher.Dispatch(t.Context(), textEvent("Hello"), []byte(`{"raw":true}`))
	dispatcher.Wait()

	require.NoError(t, err)
	assert.True(t, result.Processed)
	webhookRepo.AssertExpectations(t)
	require.Len(t, sink.results, 1)
	assert.Equal(t, "webhook", sink.sources[0])
	assert.Same(t, result, sink.results[0])
}

func TestDispatch_MissingProjectIsSkipped(t *testing.T) {
	dispatcher, m, projects, webhookRepo, _ := createTestDispatcher()

	projects.On("Get", mock.Anything, "default").Return(nil, nil)
	webhookRepo.On("SaveLog", mock.Anything, mock.MatchedBy(func(l *domain.WebhookLog) bool {
		return l.Status == domain.WebhookStatusSkipped
	})).Return(nil)

	result, err := dispatcher.Dispatch(t.Context(), textEvent("Hello"), nil)
	dispatcher.Wait()

	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, domain.SkipNoProject, *result.SkipReason)
	m.assertNoExternalCalls(t)
	webhookRepo.AssertExpectations(t)
}

func TestDispatch_ProjectStoreErrorTreatedAsAbsent(t *testing.T) {
	dispatcher, _, projects, webhookRepo, _ := createTestDispatcher()

	projects.On("Get", mock.Anything, "default").Return(nil, errors.New("disk gone"))
	webhookRepo.On("SaveLog", mock.Anything, mock.Anything).Return(nil)

	result, err := dispatcher.Dispatch(t.Context(), textEvent("Hello"), nil)
	dispatcher.Wait()

	require.NoError(t, err)
	assert.Equal(t, domain.SkipNoProject, *result.SkipReason)
}

func TestDispatch_FailedStatusCarriesErrors(t *testing.T) {
	dispatcher, m, projects, webhookRepo, _ := createTestDispatcher()

	projects.On("Get", mock.Anything, "default").Return(testProject(), nil)
	m.completer.On("GenerateReply", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom"))
	webhookRepo.On("SaveLog", mock.Anything, mock.MatchedBy(func(l *domain.WebhookLog) bool {
		return l.Status == domain.WebhookStatusFailed && l.ErrorLog != nil && *l.ErrorLog == "boom"
	})).Return(nil)

	_, err := dispatcher.Dispatch(t.Context(), textEvent("Hello"), nil)
	dispatcher.Wait()

	require.NoError(t, err)
	webhookRepo.AssertExpectations(t)
}

func TestDispatch_AuditFailureDoesNotAffectResult(t *testing.T) {
	dispatcher, m, projects, webhookRepo, _ := createTestDispatcher()

	projects.On("Get", mock.Anything, "default").Return(testProject(), nil)
	m.completer.On("GenerateReply", mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	webhookRepo.On("SaveLog", mock.Anything, mock.Anything).Return(errors.New("database error"))

	assert.NotPanics(t, func() {
		result, err := dispatcher.Dispatch(t.Context(), textEvent("Hello"), nil)
		dispatcher.Wait()
		require.NoError(t, err)
		assert.True(t, result.Processed)
	})
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	dispatcher, _, projects, _, _ := createTestDispatcher()

	projects.On("Get", mock.Anything, "default").Panic("unexpected")

	var (
		result *domain.PipelineResult
		err    error
	)
	assert.NotPanics(t, func() {
		result, err = dispatcher.Dispatch(t.Context(), textEvent("Hello"), nil)
	})
	assert.ErrorIs(t, err, ErrDispatchPanic)
	assert.Nil(t, result)
}

func TestDispatch_NilRepositoriesAreOptional(t *testing.T) {
	pipeline, m := createTestPipeline(PipelineConfig{})
	projects := new(MockProjectStore)
	projects.On("Get", mock.Anything, "default").Return(testProject(), nil)
	m.completer.On("GenerateReply", mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	dispatcher := NewDispatcher(pipeline, projects, nil, nil, "default")

	result, err := dispatcher.Dispatch(t.Context(), textEvent("Hello"), nil)
	require.NoError(t, err)
	assert.True(t, result.Processed)
}
