package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
)

// Poller defaults
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultPollBatch      = 3
	DefaultPollMessages   = 5
	pollerStopGracePeriod = 10 * time.Second
)

// PollerConfig tunes the poll-based responder
type PollerConfig struct {
	Interval         time.Duration
	Batch            int
	MessagesPerChat  int
	CallTimeout      time.Duration
	DefaultProjectID string
	PanicMode        *PanicMode
}

// Poller answers the newest inbound message of every unread chat on a fixed
// interval. It shares the reply contract of the webhook pipeline but skips
// the schedule gate and redelivery detection.
type Poller struct {
	completer ports.Completer
	messenger ports.Messenger
	tokens    ports.TokenStore
	projects  ports.ProjectStore
	listings  ports.ListingProvider
	sink      ports.ResultSink
	cfg       PollerConfig

	cron *cron.Cron
}

// NewPoller creates a poller. listings and sink may be nil.
func NewPoller(
	completer ports.Completer,
	messenger ports.Messenger,
	tokens ports.TokenStore,
	projects ports.ProjectStore,
	listings ports.ListingProvider,
	sink ports.ResultSink,
	cfg PollerConfig,
) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Batch <= 0 {
		cfg.Batch = DefaultPollBatch
	}
	if cfg.MessagesPerChat <= 0 {
		cfg.MessagesPerChat = DefaultPollMessages
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Poller{
		completer: completer,
		messenger: messenger,
		tokens:    tokens,
		projects:  projects,
		listings:  listings,
		sink:      sink,
		cfg:       cfg,
	}
}

// Start schedules Tick every interval. Overlapping ticks are skipped and a
// panicking tick never stops the schedule.
func (p *Poller) Start(ctx context.Context) error {
	logger := cronLogger{}
	p.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	spec := "@every " + p.cfg.Interval.String()
	if _, err := p.cron.AddFunc(spec, func() {
		if err := p.Tick(ctx); err != nil {
			slog.Error("Poll tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule poller: %w", err)
	}

	p.cron.Start()
	slog.Info("Poller started", "interval", p.cfg.Interval, "batch", p.cfg.Batch)
	return nil
}

// Stop halts the schedule and waits briefly for a running tick
func (p *Poller) Stop() {
	if p.cron == nil {
		return
	}
	done := p.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(pollerStopGracePeriod):
		slog.Warn("Poller stop timed out")
	}
	slog.Info("Poller stopped")
}

// Tick runs one polling pass. The first error ends the pass and is returned;
// missing tokens end it silently.
func (p *Poller) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in poll tick", "panic", r)
			err = fmt.Errorf("poll tick panicked: %v", r)
		}
	}()

	if p.cfg.PanicMode.IsActive() {
		slog.Debug("Panic mode active, skipping poll tick")
		return nil
	}

	tokens, err := p.tokens.GetCurrentTokens(ctx)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	if tokens == nil || tokens.AccessToken == "" {
		slog.Info("No access token configured, skipping poll tick")
		return nil
	}
	token := tokens.AccessToken

	chats, err := p.listUnread(ctx, token)
	if err != nil {
		return fmt.Errorf("list unread chats: %w", err)
	}
	if len(chats) == 0 {
		return nil
	}

	project := p.loadProject(ctx)

	for _, chat := range chats {
		if err := p.answerChat(ctx, token, project, chat); err != nil {
			return fmt.Errorf("chat %s: %w", chat.ID, err)
		}
	}

	return nil
}

func (p *Poller) answerChat(ctx context.Context, token string, project *domain.Project, chat domain.Chat) error {
	messages, err := p.listMessages(ctx, token, chat.ID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	newest := newestInbound(messages)
	if newest == nil || newest.Kind != domain.MessageKindText || newest.Text == "" {
		slog.Debug("No inbound text to answer", "chat_id", chat.ID)
		return nil
	}

	systemPrompt := BuildSystemPrompt(project, p.listingContext(ctx, token, chat.ItemID))

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	reply, err := p.completer.GenerateReply(callCtx, newest.Text, systemPrompt)
	cancel()
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}
	if reply == "" {
		return nil
	}

	callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
	err = p.messenger.SendText(callCtx, chat.ID, reply, token)
	cancel()
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
	err = p.messenger.MarkRead(callCtx, token, chat.ID)
	cancel()
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	slog.Info("Poller replied", "chat_id", chat.ID, "message_id", newest.ID)

	if p.sink != nil {
		text := newest.Text
		p.sink.Publish("poller", &domain.PipelineResult{
			ChatID:         chat.ID,
			MessageID:      newest.ID,
			Processed:      true,
			MessageKind:    newest.Kind,
			MessageText:    &text,
			AssistantReply: &reply,
		})
	}
	return nil
}

func (p *Poller) listUnread(ctx context.Context, token string) ([]domain.Chat, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	return p.messenger.ListUnreadChats(callCtx, token, p.cfg.Batch)
}

func (p *Poller) listMessages(ctx context.Context, token, chatID string) ([]domain.ChatMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	return p.messenger.ListMessages(callCtx, token, chatID, p.cfg.MessagesPerChat)
}

// listingContext degrades to an empty context on any failure
func (p *Poller) listingContext(ctx context.Context, token string, itemID int64) string {
	if p.listings == nil || itemID == 0 {
		return ""
	}
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	text, err := p.listings.ListingContext(callCtx, token, itemID)
	if err != nil {
		slog.Warn("Listing lookup failed, replying without it",
			"error", err,
			"item_id", itemID,
		)
		return ""
	}
	return text
}

// loadProject falls back to default settings when the project is absent
func (p *Poller) loadProject(ctx context.Context) *domain.Project {
	project, err := p.projects.Get(ctx, p.cfg.DefaultProjectID)
	if err != nil {
		slog.Warn("Failed to load project, using defaults", "error", err)
	}
	if project == nil {
		project = domain.NewProject()
		project.ID = p.cfg.DefaultProjectID
	}
	return project
}

// newestInbound picks the latest message written by the counterparty
func newestInbound(messages []domain.ChatMessage) *domain.ChatMessage {
	var newest *domain.ChatMessage
	for i := range messages {
		m := &messages[i]
		if !m.IsInbound() {
			continue
		}
		if newest == nil || m.CreatedAt.After(newest.CreatedAt) {
			newest = m
		}
	}
	return newest
}

// cronLogger routes robfig/cron's logging through slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
