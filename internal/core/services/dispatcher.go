package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
)

// ErrDispatchPanic is returned when the pipeline panicked for an event
var ErrDispatchPanic = errors.New("webhook dispatch panicked")

// Dispatcher resolves the project for an inbound event, runs the pipeline and
// fans the outcome out to the audit log and the live operator feed.
type Dispatcher struct {
	pipeline         *Pipeline
	projects         ports.ProjectStore
	webhookRepo      ports.WebhookRepository
	sink             ports.ResultSink
	defaultProjectID string

	wg sync.WaitGroup
}

// NewDispatcher creates a new dispatcher instance with dependencies injected.
// webhookRepo and sink may be nil.
func NewDispatcher(
	pipeline *Pipeline,
	projects ports.ProjectStore,
	webhookRepo ports.WebhookRepository,
	sink ports.ResultSink,
	defaultProjectID string,
) *Dispatcher {
	return &Dispatcher{
		pipeline:         pipeline,
		projects:         projects,
		webhookRepo:      webhookRepo,
		sink:             sink,
		defaultProjectID: defaultProjectID,
	}
}

// Dispatch processes one validated event. Recoverable failures live inside the
// returned result; an error is only returned for a defect.
func (d *Dispatcher) Dispatch(ctx context.Context, event *domain.InboundEvent, payload []byte) (result *domain.PipelineResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in Dispatch",
				"panic", r,
				"webhook_id", event.ID,
			)
			result = nil
			err = ErrDispatchPanic
		}
	}()

	project := d.loadProject(ctx)
	result = d.pipeline.HandleWebhook(ctx, event, project)

	d.saveLog(result, payload)
	if d.sink != nil {
		d.sink.Publish("webhook", result)
	}

	return result, nil
}

// Wait blocks until every pending audit write has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) loadProject(ctx context.Context) *domain.Project {
	project, err := d.projects.Get(ctx, d.defaultProjectID)
	if err != nil {
		slog.Error("Failed to load project, treating as absent",
			"error", err,
			"project_id", d.defaultProjectID,
		)
		return nil
	}
	return project
}

// saveLog persists the audit row without blocking the caller
func (d *Dispatcher) saveLog(result *domain.PipelineResult, payload []byte) {
	if d.webhookRepo == nil {
		return
	}

	entry := &domain.WebhookLog{
		WebhookID:   result.WebhookID,
		ChatID:      result.ChatID,
		PayloadJSON: payload,
		Status:      webhookStatus(result),
		CreatedAt:   time.Now().UTC(),
	}
	if errs := result.Errors(); len(errs) > 0 {
		joined := strings.Join(errs, "; ")
		entry.ErrorLog = &joined
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("PANIC in webhook log save", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := d.webhookRepo.SaveLog(ctx, entry); err != nil {
			slog.Error("Failed to save webhook log (async)",
				"error", err,
				"webhook_id", entry.WebhookID,
			)
		}
	}()
}

func webhookStatus(result *domain.PipelineResult) string {
	switch {
	case !result.Processed:
		return domain.WebhookStatusSkipped
	case result.HasErrors():
		return domain.WebhookStatusFailed
	default:
		return domain.WebhookStatusProcessed
	}
}
