// Package ports defines interfaces for dependency inversion
// Following Hexagonal Architecture: Core defines contracts, Adapters implement them
package ports

import (
	"context"
	"time"

	"avito-assist/internal/core/domain"
)

// ProjectStore persists project configurations.
// Writes must be atomic: a reader sees either the old or the new snapshot.
type ProjectStore interface {
	// Get returns nil, nil when the project does not exist
	Get(ctx context.Context, id string) (*domain.Project, error)

	// Upsert inserts or replaces the project with the same id
	Upsert(ctx context.Context, project *domain.Project) error

	List(ctx context.Context) ([]*domain.Project, error)
}

// TokenStore holds the single default account's OAuth tokens
type TokenStore interface {
	// GetCurrentTokens returns nil, nil when no tokens have been stored yet
	GetCurrentTokens(ctx context.Context) (*domain.Tokens, error)

	SaveTokens(ctx context.Context, tokens *domain.Tokens) error
}

// WebhookRepository handles persistence of webhook audit logs
type WebhookRepository interface {
	// SaveLog persists a webhook event to the audit log
	SaveLog(ctx context.Context, log *domain.WebhookLog) error

	// PurgeOlderThan deletes at most limit rows created before the cutoff
	// and reports how many were removed
	PurgeOlderThan(ctx context.Context, before time.Time, limit int) (int64, error)
}

// ChatStateRepository remembers the last processed message per chat.
// Used to drop redelivered webhooks.
type ChatStateRepository interface {
	// GetLastMessageID returns "" when nothing has been recorded for the chat
	GetLastMessageID(ctx context.Context, chatID string) (string, error)

	SetLastMessageID(ctx context.Context, chatID, messageID string) error
}
