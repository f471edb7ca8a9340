// Package domain contains core business entities
// Following Hexagonal Architecture: These models are infrastructure-agnostic
package domain

import (
	"time"
)

// MessageKind classifies the content of an inbound chat message
type MessageKind string

// MessageKind values recognised by the pipeline. Any other kind is carried
// through unexamined.
const (
	MessageKindText  MessageKind = "text"
	MessageKindVoice MessageKind = "voice"
	MessageKindOther MessageKind = "other"
)

// MessageContent is the union of text and voice payloads
type MessageContent struct {
	Text       *string `json:"text,omitempty"`
	AudioURL   *string `json:"audio_url,omitempty"`
	DurationMs *int    `json:"duration_ms,omitempty"`
}

// MessageValue is the message carried by an inbound event
type MessageValue struct {
	ID       string         `json:"id"`
	ChatID   string         `json:"chat_id"`
	UserID   string         `json:"user_id"`
	AuthorID string         `json:"author_id"`
	Created  string         `json:"created"`
	Kind     MessageKind    `json:"type"`
	Content  MessageContent `json:"content"`
}

// InboundEvent is a structurally valid webhook delivery.
// It is read-only once built and is never persisted by the pipeline.
type InboundEvent struct {
	ID        string       `json:"id"`
	Version   string       `json:"version"`
	Timestamp string       `json:"timestamp"`
	EventType string       `json:"event_type"`
	Message   MessageValue `json:"message"`
}

// Skip reasons reported when the pipeline does not process an event
const (
	SkipNoProject  = "no_project"
	SkipDisabled   = "disabled_or_out_of_schedule"
	SkipDuplicate  = "duplicate"
	SkipOwnMessage = "own_message"
)

// PipelineResult aggregates the outcome of one webhook invocation.
// The three error slots are independent: each is set at most once and
// never cleared.
type PipelineResult struct {
	WebhookID      string      `json:"webhook_id"`
	EventType      string      `json:"event_type"`
	ChatID         string      `json:"chat_id"`
	MessageID      string      `json:"message_id"`
	Processed      bool        `json:"processed"`
	SkipReason     *string     `json:"skip_reason"`
	MessageKind    MessageKind `json:"message_type"`
	MessageText    *string     `json:"message_text"`
	RecognizedText *string     `json:"recognized_text"`
	AssistantReply *string     `json:"assistant_reply"`
	STTError       *string     `json:"stt_error"`
	AssistantError *string     `json:"assistant_error"`
	MessagingError *string     `json:"messaging_error"`
}

// HasErrors reports whether any of the external calls failed
func (r *PipelineResult) HasErrors() bool {
	return r.STTError != nil || r.AssistantError != nil || r.MessagingError != nil
}

// Errors returns the non-nil error strings in pipeline order
func (r *PipelineResult) Errors() []string {
	var out []string
	for _, e := range []*string{r.STTError, r.AssistantError, r.MessagingError} {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

// Tokens holds the OAuth credentials of the messenger account
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry at t
func (t *Tokens) Expired(at time.Time) bool {
	return !t.ExpiresAt.IsZero() && !at.Before(t.ExpiresAt)
}

// Chat is a messenger conversation as listed by the platform
type Chat struct {
	ID        string    `json:"id"`
	ItemID    int64     `json:"item_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Direction of a chat message relative to the account
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// ChatMessage is a single message fetched from a chat's history
type ChatMessage struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chat_id"`
	AuthorID  string      `json:"author_id"`
	Direction string      `json:"direction"`
	Kind      MessageKind `json:"type"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

// IsInbound reports whether the message was written by the counterparty
func (m *ChatMessage) IsInbound() bool {
	return m.Direction == DirectionIn
}

// WebhookLog represents the audit trail for dispatched webhook events
type WebhookLog struct {
	ID          int64     `json:"id" db:"id"`
	WebhookID   string    `json:"webhook_id" db:"webhook_id"`
	ChatID      string    `json:"chat_id" db:"chat_id"`
	PayloadJSON []byte    `json:"payload_json" db:"payload_json"`
	Status      string    `json:"status" db:"status"`
	ErrorLog    *string   `json:"error_log,omitempty" db:"error_log"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// WebhookStatus constants for the audit log
const (
	WebhookStatusProcessed = "processed"
	WebhookStatusSkipped   = "skipped"
	WebhookStatusFailed    = "failed"
)
