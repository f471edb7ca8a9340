package ports

import (
	"context"

	"avito-assist/internal/core/domain"
)

// Transcriber turns a remote audio file into text
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// Completer generates an assistant reply for one user message
type Completer interface {
	GenerateReply(ctx context.Context, userMessage, systemPrompt string) (string, error)
}

// Messenger is the marketplace chat API. Every call takes the access token
// explicitly so the client never caches credentials.
type Messenger interface {
	SendText(ctx context.Context, chatID, text, accessToken string) error
	ListUnreadChats(ctx context.Context, accessToken string, limit int) ([]domain.Chat, error)
	ListMessages(ctx context.Context, accessToken, chatID string, limit int) ([]domain.ChatMessage, error)
	MarkRead(ctx context.Context, accessToken, chatID string) error
}

// ListingProvider renders a listing into prompt context.
// An empty string means there is nothing useful to add.
type ListingProvider interface {
	ListingContext(ctx context.Context, accessToken string, itemID int64) (string, error)
}

// ResultSink receives every pipeline outcome for live operator views
type ResultSink interface {
	Publish(source string, result *domain.PipelineResult)
}
