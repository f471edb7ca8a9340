package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"avito-assist/internal/adapters/dto"
	"avito-assist/internal/core/domain"
)

// maxWebhookBody caps the inbound body
const maxWebhookBody = 1 << 20

// WebhookDispatcher runs the pipeline for one validated event
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, event *domain.InboundEvent, payload []byte) (*domain.PipelineResult, error)
}

// WebhookHandler handles Avito messenger webhook deliveries
type WebhookHandler struct {
	dispatcher WebhookDispatcher
	secret     string // optional HMAC secret
}

// NewWebhookHandler creates a new webhook handler. An empty secret disables
// signature checks.
func NewWebhookHandler(dispatcher WebhookDispatcher, secret string) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		secret:     secret,
	}
}

// ============================================================================
// POST /webhooks/avito
// ============================================================================

// HandleAvitoEvent validates the body, runs the pipeline synchronously and
// answers with the aggregated result. External failures stay inside the
// 200 response.
func (h *WebhookHandler) HandleAvitoEvent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorBody{
				Error:  "payload_too_large",
				Detail: "Request body exceeds 1MB",
				Path:   r.URL.Path,
			})
			return
		}
		slog.Error("Failed to read webhook body", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "bad_request", Detail: "Cannot read body", Path: r.URL.Path})
		return
	}

	if h.secret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if signature == "" || !h.validateSignature(body, signature) {
			slog.Warn("Webhook signature validation failed",
				"has_signature", signature != "",
			)
			writeJSON(w, http.StatusForbidden, ErrorBody{Error: "forbidden", Detail: "Invalid signature", Path: r.URL.Path})
			return
		}
	}

	webhook, fieldErrs := dto.DecodeAvitoWebhook(body)
	if len(fieldErrs) > 0 {
		slog.Warn("Webhook rejected by validation",
			"errors", len(fieldErrs),
			"first_field", fieldErrs[0].Field,
		)
		writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{
			Error:  "validation_error",
			Detail: fieldErrs,
			Path:   r.URL.Path,
		})
		return
	}

	event := webhook.ToDomain()
	slog.Info("Webhook received",
		"webhook_id", event.ID,
		"event_type", event.EventType,
		"chat_id", event.Message.ChatID,
		"message_type", event.Message.Kind,
	)

	result, err := h.dispatcher.Dispatch(r.Context(), event, body)
	if err != nil || result == nil {
		slog.Error("Webhook dispatch failed", "error", err, "webhook_id", event.ID)
		writeInternalError(w, r)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewWebhookResponse(result))
}

// validateSignature checks an "sha256=<hex>" HMAC of the raw body
func (h *WebhookHandler) validateSignature(payload []byte, signatureHeader string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		slog.Warn("Invalid signature format - missing sha256= prefix")
		return false
	}
	expected := strings.TrimPrefix(signatureHeader, prefix)

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	computed := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(computed), []byte(expected))
}
