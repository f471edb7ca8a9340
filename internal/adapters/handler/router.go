package handler

import (
	"net/http"
)

// Service identity reported by the health check
const (
	ServiceName    = "avito-assist-backend"
	ServiceVersion = "0.1.0"
)

// Routes bundles the handlers mounted by NewRouter. Nil handlers are skipped.
type Routes struct {
	Webhook *WebhookHandler
	OAuth   *OAuthHandler
	Admin   *AdminHandler
	Events  http.HandlerFunc
}

// NewRouter wires every endpoint behind the request logging middleware
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", HandleHealth)

	if routes.Webhook != nil {
		mux.HandleFunc("POST /webhooks/avito", routes.Webhook.HandleAvitoEvent)
	}

	if routes.OAuth != nil {
		mux.HandleFunc("GET /avito/oauth/start", routes.OAuth.HandleStart)
		mux.HandleFunc("GET /avito/oauth/callback", routes.OAuth.HandleCallback)
	}

	if a := routes.Admin; a != nil {
		mux.HandleFunc("GET /api/status", a.RequireAdmin(a.GetStatus))
		mux.HandleFunc("GET /api/system/metrics", a.RequireAdmin(a.GetSystemMetrics))
		mux.HandleFunc("GET /api/projects", a.RequireAdmin(a.ListProjects))
		mux.HandleFunc("GET /api/projects/{id}", a.RequireAdmin(a.GetProject))
		mux.HandleFunc("PUT /api/projects/{id}", a.RequireAdmin(a.PutProject))
		mux.HandleFunc("GET /api/panic", a.RequireAdmin(a.GetPanic))
		mux.HandleFunc("POST /api/panic", a.RequireAdmin(a.EnablePanic))
		mux.HandleFunc("DELETE /api/panic", a.RequireAdmin(a.DisablePanic))
		mux.HandleFunc("GET /api/webhooks", a.RequireAdmin(a.ListWebhookLogs))
	}

	if routes.Events != nil {
		mux.HandleFunc("GET /ws/events", routes.Events)
	}

	return RequestLogger(mux)
}

// HandleHealth answers the liveness probe
// GET /
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
		"version": ServiceVersion,
	})
}
