package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"avito-assist/internal/adapters/dto"
	"avito-assist/internal/adapters/system"
	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
	"avito-assist/internal/core/services"
)

// LogReader lists recent webhook audit rows
type LogReader interface {
	RecentLogs(ctx context.Context, limit int) ([]*domain.WebhookLog, error)
}

// ClientCounter reports live websocket clients
type ClientCounter interface {
	ClientCount() int
}

// AdminConfig carries the admin handler collaborators. Optional fields may be nil.
type AdminConfig struct {
	Token       string
	Version     string
	StoreDriver string
	Projects    ports.ProjectStore
	Tokens      ports.TokenStore
	PanicMode   *services.PanicMode
	Logs        LogReader
	Hub         ClientCounter
	Metrics     func(ctx context.Context) system.Snapshot

	PollerEnabled bool
}

// AdminHandler serves the operator JSON API
type AdminHandler struct {
	cfg       AdminConfig
	startedAt time.Time
}

// NewAdminHandler creates a new admin handler instance
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// RequireAdmin checks "Authorization: Bearer <token>". With no token
// configured the admin API does not exist.
func (h *AdminHandler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.Token == "" {
			writeJSON(w, http.StatusNotFound, NotFoundResponse("Admin API is disabled"))
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.Token)) != 1 {
			slog.Warn("Unauthorized admin API request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
			return
		}

		next(w, r)
	}
}

// ============================================================================
// System Status & Metrics
// ============================================================================

// SystemStatusResponse represents overall system status
type SystemStatusResponse struct {
	Online           bool                 `json:"online"`
	Uptime           string               `json:"uptime"`
	Version          string               `json:"version"`
	StoreDriver      string               `json:"store_driver"`
	PollerEnabled    bool                 `json:"poller_enabled"`
	TokensConfigured bool                 `json:"tokens_configured"`
	TokenExpiresAt   *time.Time           `json:"token_expires_at,omitempty"`
	TokenExpired     bool                 `json:"token_expired"`
	WSClients        int                  `json:"ws_clients"`
	PanicMode        services.PanicStatus `json:"panic_mode"`
}

// GetStatus returns system status
// GET /api/status
func (h *AdminHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Online:        true,
		Uptime:        formatDuration(time.Since(h.startedAt)),
		Version:       h.cfg.Version,
		StoreDriver:   h.cfg.StoreDriver,
		PollerEnabled: h.cfg.PollerEnabled,
	}

	if h.cfg.PanicMode != nil {
		resp.PanicMode = h.cfg.PanicMode.Status()
	}
	if h.cfg.Hub != nil {
		resp.WSClients = h.cfg.Hub.ClientCount()
	}

	if h.cfg.Tokens != nil {
		tokens, err := h.cfg.Tokens.GetCurrentTokens(r.Context())
		if err != nil {
			slog.Error("Failed to load tokens for status", "error", err)
		} else if tokens != nil && tokens.AccessToken != "" {
			resp.TokensConfigured = true
			resp.TokenExpired = tokens.Expired(time.Now())
			if !tokens.ExpiresAt.IsZero() {
				expiresAt := tokens.ExpiresAt
				resp.TokenExpiresAt = &expiresAt
			}
		}
	}

	writeJSON(w, http.StatusOK, NewSuccessResponse(resp))
}

// GetSystemMetrics returns current host metrics
// GET /api/system/metrics
func (h *AdminHandler) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Metrics == nil {
		writeJSON(w, http.StatusNotFound, NotFoundResponse("Metrics are not available"))
		return
	}

	snapshot := h.cfg.Metrics(r.Context())
	slog.Debug("System metrics retrieved",
		"cpu", snapshot.CPUPercent,
		"disk_percent", snapshot.DiskPercent,
		"watchdog_active", snapshot.WatchdogActive,
	)
	writeJSON(w, http.StatusOK, NewSuccessResponse(snapshot))
}

// ============================================================================
// Projects
// ============================================================================

// ListProjects returns every stored project
// GET /api/projects
func (h *AdminHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.cfg.Projects.List(r.Context())
	if err != nil {
		slog.Error("Failed to list projects", "error", err)
		writeJSON(w, http.StatusInternalServerError, InternalErrorResponse("Failed to load projects"))
		return
	}
	if projects == nil {
		projects = []*domain.Project{}
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(projects))
}

// GetProject returns one project
// GET /api/projects/{id}
func (h *AdminHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	project, err := h.cfg.Projects.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get project", "error", err, "project_id", id)
		writeJSON(w, http.StatusInternalServerError, InternalErrorResponse("Failed to load project"))
		return
	}
	if project == nil {
		writeJSON(w, http.StatusNotFound, NotFoundResponse(fmt.Sprintf("Project %q not found", id)))
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(project))
}

// PutProject validates and stores a project. Absent fields take defaults.
// PUT /api/projects/{id}
func (h *AdminHandler) PutProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	project := domain.NewProject()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(project); err != nil {
		writeJSON(w, http.StatusBadRequest, BadRequestResponse("Invalid JSON body"))
		return
	}

	if project.ID == "" {
		project.ID = id
	}
	if project.ID != id {
		writeJSON(w, http.StatusBadRequest, BadRequestResponse("Body id does not match path id"))
		return
	}

	if err := project.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
				Code:    http.StatusUnprocessableEntity,
				Message: "validation_error",
				Data:    []dto.FieldError{{Field: verr.Field, Message: verr.Message}},
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, BadRequestResponse(err.Error()))
		return
	}

	if err := h.cfg.Projects.Upsert(r.Context(), project); err != nil {
		slog.Error("Failed to save project", "error", err, "project_id", id)
		writeJSON(w, http.StatusInternalServerError, InternalErrorResponse("Failed to save project"))
		return
	}

	writeJSON(w, http.StatusOK, NewSuccessResponse(project))
}

// ============================================================================
// Panic Mode
// ============================================================================

// PanicRequest is the body of POST /api/panic
type PanicRequest struct {
	Reason string `json:"reason"`
	By     string `json:"by"`
}

// GetPanic reports the pause switch
// GET /api/panic
func (h *AdminHandler) GetPanic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewSuccessResponse(h.cfg.PanicMode.Status()))
}

// EnablePanic pauses every automatic reply
// POST /api/panic
func (h *AdminHandler) EnablePanic(w http.ResponseWriter, r *http.Request) {
	var req PanicRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, BadRequestResponse("Invalid JSON body"))
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	if req.By == "" {
		req.By = "admin"
	}

	h.cfg.PanicMode.Enable(req.Reason, req.By)
	writeJSON(w, http.StatusOK, NewSuccessResponse(h.cfg.PanicMode.Status()))
}

// DisablePanic resumes automatic replies
// DELETE /api/panic
func (h *AdminHandler) DisablePanic(w http.ResponseWriter, r *http.Request) {
	h.cfg.PanicMode.Disable("admin")
	writeJSON(w, http.StatusOK, NewSuccessResponse(h.cfg.PanicMode.Status()))
}

// ============================================================================
// Webhook Audit Log
// ============================================================================

// ListWebhookLogs returns the newest audit rows
// GET /api/webhooks?limit=50
func (h *AdminHandler) ListWebhookLogs(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Logs == nil {
		writeJSON(w, http.StatusNotFound, NotFoundResponse("Webhook audit log requires a SQL store"))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, BadRequestResponse("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	logs, err := h.cfg.Logs.RecentLogs(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list webhook logs", "error", err)
		writeJSON(w, http.StatusInternalServerError, InternalErrorResponse("Failed to load webhook logs"))
		return
	}
	if logs == nil {
		logs = []*domain.WebhookLog{}
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(logs))
}

// ============================================================================
// Helpers
// ============================================================================

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 24 {
		days := hours / 24
		hours = hours % 24
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}

	return fmt.Sprintf("%dh %dm", hours, minutes)
}
