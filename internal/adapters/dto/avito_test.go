package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avito-assist/internal/core/domain"
)

const validWebhook = `{
	"id": "wh-1",
	"version": 3,
	"timestamp": 1700000000,
	"payload": {
		"type": "message",
		"value": {
			"id": 555,
			"chat_id": "chat-1",
			"user_id": 100,
			"author_id": "200",
			"created": 1700000000,
			"type": "voice",
			"content": {"audio_url": "https://cdn.example/v.ogg", "duration_ms": 3000}
		}
	}
}`

func TestDecodeAvitoWebhook_AcceptsMixedIDTypes(t *testing.T) {
	w, errs := DecodeAvitoWebhook([]byte(validWebhook))
	require.Empty(t, errs)

	event := w.ToDomain()
	assert.Equal(t, "wh-1", event.ID)
	assert.Equal(t, "3", event.Version)
	assert.Equal(t, "message", event.EventType)
	assert.Equal(t, "555", event.Message.ID)
	assert.Equal(t, "100", event.Message.UserID)
	assert.Equal(t, domain.MessageKindVoice, event.Message.Kind)
	require.NotNil(t, event.Message.Content.AudioURL)
	assert.Equal(t, "https://cdn.example/v.ogg", *event.Message.Content.AudioURL)
	assert.Equal(t, 3000, *event.Message.Content.DurationMs)
	assert.Nil(t, event.Message.Content.Text)
}

func TestDecodeAvitoWebhook_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"not json", `{"id":`, "body"},
		{"missing payload", `{"id":"1","version":"1","timestamp":"1"}`, "payload"},
		{"missing value", `{"id":"1","version":"1","timestamp":"1","payload":{"type":"message"}}`, "payload.value"},
		{"bool id", `{"id":true,"version":"1","timestamp":"1"}`, "id"},
		{"wrong content type", `{"id":"1","version":"1","timestamp":"1","payload":{"type":"message","value":{"content":"x"}}}`, "payload.value.content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, errs := DecodeAvitoWebhook([]byte(tt.body))
			assert.Nil(t, w)
			require.NotEmpty(t, errs)

			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidate_ReportsEveryMissingValueField(t *testing.T) {
	w := &AvitoWebhook{
		ID: "1", Version: "1", Timestamp: "1",
		Payload: &AvitoPayload{Type: "message", Value: &AvitoMessageValue{ID: "m"}},
	}

	errs := w.Validate()

	assert.Len(t, errs, 6)
	assert.Equal(t, "payload.value.chat_id", errs[0].Field)
	assert.Equal(t, "field required", errs[0].Message)
}

func TestNewWebhookResponse_NullFieldsSerialized(t *testing.T) {
	text := "Hello"
	resp := NewWebhookResponse(&domain.PipelineResult{
		WebhookID:   "wh-1",
		EventType:   "message",
		MessageKind: domain.MessageKindText,
		MessageText: &text,
		Processed:   true,
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "received", out["status"])
	assert.Equal(t, "text", out["message_type"])
	for _, key := range []string{"assistant_reply", "assistant_error", "stt_error", "messaging_error", "recognized_text", "skip_reason"} {
		v, ok := out[key]
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
}
