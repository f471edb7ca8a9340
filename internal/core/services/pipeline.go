// Package services contains core business logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import (
	"context"
	"log/slog"
	"time"

	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
)

// ErrNoAccessToken is the messaging error reported when no tokens are stored
const ErrNoAccessToken = "No access token configured"

// DefaultCallTimeout bounds every external call made by the pipeline and poller
const DefaultCallTimeout = 20 * time.Second

// PipelineConfig carries the optional pieces of a Pipeline
type PipelineConfig struct {
	// AccountID is the marketplace account; events it authored are ignored
	AccountID string

	CallTimeout time.Duration

	// ChatState enables redelivery detection when set
	ChatState ports.ChatStateRepository

	PanicMode *PanicMode

	// Now is the clock used by the schedule gate
	Now func() time.Time
}

// Pipeline handles one inbound chat event: transcription, reply generation
// and reply dispatch. External failures are recorded in the result, never
// returned.
type Pipeline struct {
	transcriber ports.Transcriber
	completer   ports.Completer
	messenger   ports.Messenger
	tokens      ports.TokenStore

	chatState   ports.ChatStateRepository
	panicMode   *PanicMode
	accountID   string
	callTimeout time.Duration
	now         func() time.Time
}

// NewPipeline creates a pipeline with its collaborators injected
func NewPipeline(
	transcriber ports.Transcriber,
	completer ports.Completer,
	messenger ports.Messenger,
	tokens ports.TokenStore,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		transcriber: transcriber,
		completer:   completer,
		messenger:   messenger,
		tokens:      tokens,
		chatState:   cfg.ChatState,
		panicMode:   cfg.PanicMode,
		accountID:   cfg.AccountID,
		callTimeout: cfg.CallTimeout,
		now:         cfg.Now,
	}
}

// HandleWebhook runs the event through the pipeline.
// Steps are strictly sequential; each one only consumes the previous one's output.
func (p *Pipeline) HandleWebhook(ctx context.Context, event *domain.InboundEvent, project *domain.Project) *domain.PipelineResult {
	msg := event.Message
	result := &domain.PipelineResult{
		WebhookID:   event.ID,
		EventType:   event.EventType,
		ChatID:      msg.ChatID,
		MessageID:   msg.ID,
		MessageKind: msg.Kind,
		MessageText: msg.Content.Text,
	}

	// ========================================================================
	// Step 1: Gate (no external calls past a skip)
	// ========================================================================
	if reason, skip := p.gate(ctx, event, project); skip {
		result.SkipReason = &reason
		slog.Info("Webhook skipped",
			"webhook_id", event.ID,
			"chat_id", msg.ChatID,
			"reason", reason,
		)
		return result
	}
	result.Processed = true

	// ========================================================================
	// Step 2: Determine message text, transcribing voice when possible
	// ========================================================================
	var messageText string
	if msg.Content.Text != nil {
		messageText = *msg.Content.Text
	}

	if msg.Kind == domain.MessageKindVoice && msg.Content.AudioURL != nil && *msg.Content.AudioURL != "" {
		recognized, err := p.transcribe(ctx, *msg.Content.AudioURL)
		if err != nil {
			result.STTError = errString(err)
			slog.Error("Voice transcription failed",
				"error", err,
				"chat_id", msg.ChatID,
				"message_id", msg.ID,
			)
		} else {
			result.RecognizedText = &recognized
			messageText = recognized
		}
	}

	// ========================================================================
	// Step 3: Generate reply
	// ========================================================================
	var reply string
	if messageText != "" {
		systemPrompt := BuildSystemPrompt(project, "")
		text, err := p.complete(ctx, messageText, systemPrompt)
		if err != nil {
			result.AssistantError = errString(err)
			slog.Error("Reply generation failed",
				"error", err,
				"chat_id", msg.ChatID,
				"message_id", msg.ID,
			)
		} else if text != "" {
			reply = text
			result.AssistantReply = &reply
		}
	}

	// ========================================================================
	// Step 4: Send reply
	// ========================================================================
	if reply != "" {
		if err := p.send(ctx, msg.ChatID, reply); err != nil {
			result.MessagingError = errString(err)
			slog.Error("Reply dispatch failed",
				"error", err,
				"chat_id", msg.ChatID,
				"message_id", msg.ID,
			)
		}
	}

	// A failed message stays unrecorded so a redelivery gets another attempt
	if !result.HasErrors() {
		p.remember(ctx, msg.ChatID, msg.ID)
	}

	slog.Info("Webhook processed",
		"webhook_id", event.ID,
		"chat_id", msg.ChatID,
		"message_type", msg.Kind,
		"replied", result.AssistantReply != nil && result.MessagingError == nil,
	)

	return result
}

// gate decides whether the event should be processed at all
func (p *Pipeline) gate(ctx context.Context, event *domain.InboundEvent, project *domain.Project) (string, bool) {
	if project == nil {
		return domain.SkipNoProject, true
	}
	if !project.Enabled || p.panicMode.IsActive() || !IsWithinSchedule(project, p.now().UTC()) {
		return domain.SkipDisabled, true
	}

	msg := event.Message
	if p.accountID != "" && msg.AuthorID == p.accountID {
		return domain.SkipOwnMessage, true
	}

	if p.chatState != nil && msg.ChatID != "" && msg.ID != "" {
		last, err := p.chatState.GetLastMessageID(ctx, msg.ChatID)
		if err != nil {
			slog.Warn("Chat state lookup failed, continuing without dedup",
				"error", err,
				"chat_id", msg.ChatID,
			)
		} else if last == msg.ID {
			return domain.SkipDuplicate, true
		}
	}

	return "", false
}

func (p *Pipeline) transcribe(ctx context.Context, audioURL string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.transcriber.Transcribe(callCtx, audioURL)
}

func (p *Pipeline) complete(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.completer.GenerateReply(callCtx, userMessage, systemPrompt)
}

func (p *Pipeline) send(ctx context.Context, chatID, text string) error {
	tokens, err := p.tokens.GetCurrentTokens(ctx)
	if err != nil {
		slog.Error("Token lookup failed", "error", err)
	}
	if tokens == nil || tokens.AccessToken == "" {
		return noTokenError{}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.messenger.SendText(callCtx, chatID, text, tokens.AccessToken)
}

// remember records the message as the chat's last processed one
func (p *Pipeline) remember(ctx context.Context, chatID, messageID string) {
	if p.chatState == nil || chatID == "" || messageID == "" {
		return
	}
	if err := p.chatState.SetLastMessageID(ctx, chatID, messageID); err != nil {
		slog.Warn("Failed to record last message id",
			"error", err,
			"chat_id", chatID,
		)
	}
}

type noTokenError struct{}

func (noTokenError) Error() string { return ErrNoAccessToken }

func errString(err error) *string {
	s := err.Error()
	return &s
}
