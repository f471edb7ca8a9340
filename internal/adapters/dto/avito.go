// Package dto contains data transfer objects for external APIs
// Separating DTOs from handlers prevents import cycles
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"avito-assist/internal/core/domain"
)

// FlexID is an identifier the platform sends either as a string or a number
type FlexID string

// UnmarshalJSON accepts "123", 123 and null
func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return &json.UnmarshalTypeError{Value: string(b), Type: reflect.TypeOf(*f)}
	}
	*f = FlexID(n.String())
	return nil
}

// ============================================================================
// Inbound webhook
// ============================================================================

// AvitoWebhook is the full webhook body posted by Avito Messenger
type AvitoWebhook struct {
	ID        FlexID        `json:"id"`
	Version   FlexID        `json:"version"`
	Timestamp FlexID        `json:"timestamp"`
	Payload   *AvitoPayload `json:"payload"`
}

// AvitoPayload carries the event type and its value
type AvitoPayload struct {
	Type  string             `json:"type"`
	Value *AvitoMessageValue `json:"value"`
}

// AvitoMessageValue is the message object inside payload.value
type AvitoMessageValue struct {
	ID       FlexID               `json:"id"`
	ChatID   FlexID               `json:"chat_id"`
	UserID   FlexID               `json:"user_id"`
	AuthorID FlexID               `json:"author_id"`
	Created  FlexID               `json:"created"`
	Type     string               `json:"type"`
	Content  *AvitoMessageContent `json:"content"`
}

// AvitoMessageContent holds text for text messages and audio for voice ones
type AvitoMessageContent struct {
	Text       *string `json:"text,omitempty"`
	AudioURL   *string `json:"audio_url,omitempty"`
	DurationMs *int    `json:"duration_ms,omitempty"`
}

// FieldError describes one invalid field of the inbound body
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DecodeAvitoWebhook parses and validates a webhook body. A non-empty slice
// means the body must be rejected.
func DecodeAvitoWebhook(body []byte) (*AvitoWebhook, []FieldError) {
	var w AvitoWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, []FieldError{{Field: typeErr.Field, Message: fmt.Sprintf("invalid value %s", typeErr.Value)}}
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || strings.Contains(err.Error(), "unexpected end of JSON") {
			return nil, []FieldError{{Field: "body", Message: "invalid JSON"}}
		}
		return nil, []FieldError{{Field: "body", Message: err.Error()}}
	}

	if errs := w.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &w, nil
}

// Validate reports every missing required field
func (w *AvitoWebhook) Validate() []FieldError {
	var errs []FieldError
	required := func(field string, ok bool) {
		if !ok {
			errs = append(errs, FieldError{Field: field, Message: "field required"})
		}
	}

	required("id", w.ID != "")
	required("version", w.Version != "")
	required("timestamp", w.Timestamp != "")
	required("payload", w.Payload != nil)
	if w.Payload == nil {
		return errs
	}

	required("payload.type", w.Payload.Type != "")
	required("payload.value", w.Payload.Value != nil)
	if w.Payload.Value == nil {
		return errs
	}

	v := w.Payload.Value
	required("payload.value.id", v.ID != "")
	required("payload.value.chat_id", v.ChatID != "")
	required("payload.value.user_id", v.UserID != "")
	required("payload.value.author_id", v.AuthorID != "")
	required("payload.value.created", v.Created != "")
	required("payload.value.type", v.Type != "")
	required("payload.value.content", v.Content != nil)

	return errs
}

// ToDomain converts a validated webhook into the core event
func (w *AvitoWebhook) ToDomain() *domain.InboundEvent {
	v := w.Payload.Value
	return &domain.InboundEvent{
		ID:        string(w.ID),
		Version:   string(w.Version),
		Timestamp: string(w.Timestamp),
		EventType: w.Payload.Type,
		Message: domain.MessageValue{
			ID:       string(v.ID),
			ChatID:   string(v.ChatID),
			UserID:   string(v.UserID),
			AuthorID: string(v.AuthorID),
			Created:  string(v.Created),
			Kind:     domain.MessageKind(v.Type),
			Content: domain.MessageContent{
				Text:       v.Content.Text,
				AudioURL:   v.Content.AudioURL,
				DurationMs: v.Content.DurationMs,
			},
		},
	}
}

// WebhookResponse is the body answered for every valid webhook
type WebhookResponse struct {
	Status         string             `json:"status"`
	WebhookID      string             `json:"webhook_id"`
	EventType      string             `json:"event_type"`
	MessageType    domain.MessageKind `json:"message_type"`
	MessageText    *string            `json:"message_text"`
	RecognizedText *string            `json:"recognized_text"`
	AssistantReply *string            `json:"assistant_reply"`
	AssistantError *string            `json:"assistant_error"`
	STTError       *string            `json:"stt_error"`
	MessagingError *string            `json:"messaging_error"`
	Processed      bool               `json:"processed"`
	SkipReason     *string            `json:"skip_reason"`
}

// NewWebhookResponse maps a pipeline result to the wire response
func NewWebhookResponse(r *domain.PipelineResult) WebhookResponse {
	return WebhookResponse{
		Status:         "received",
		WebhookID:      r.WebhookID,
		EventType:      r.EventType,
		MessageType:    r.MessageKind,
		MessageText:    r.MessageText,
		RecognizedText: r.RecognizedText,
		AssistantReply: r.AssistantReply,
		AssistantError: r.AssistantError,
		STTError:       r.STTError,
		MessagingError: r.MessagingError,
		Processed:      r.Processed,
		SkipReason:     r.SkipReason,
	}
}
