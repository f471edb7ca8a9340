package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
)

const oauthStateCookie = "avito_oauth_state"

// OAuthExchanger runs the authorization code flow
type OAuthExchanger interface {
	Configured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.Tokens, error)
}

// OAuthHandler connects the Avito account and stores its tokens
type OAuthHandler struct {
	auth   OAuthExchanger
	tokens ports.TokenStore
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(auth OAuthExchanger, tokens ports.TokenStore) *OAuthHandler {
	return &OAuthHandler{
		auth:   auth,
		tokens: tokens,
	}
}

// HandleStart redirects the operator to the Avito consent page
// GET /avito/oauth/start
func (h *OAuthHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, ErrorBody{
			Error:  "oauth_not_configured",
			Detail: "AVITO_CLIENT_ID and AVITO_CLIENT_SECRET must be set",
			Path:   r.URL.Path,
		})
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/avito/oauth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.auth.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback exchanges the code and saves the tokens as the default ones
// GET /avito/oauth/callback?code=...
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if oauthErr := query.Get("error"); oauthErr != "" {
		slog.Warn("Avito OAuth denied", "error", oauthErr, "description", query.Get("error_description"))
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "oauth_error", Detail: oauthErr, Path: r.URL.Path})
		return
	}

	code := query.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "oauth_error", Detail: "Missing authorization code", Path: r.URL.Path})
		return
	}

	// The state cookie only exists when the flow was started here
	if cookie, err := r.Cookie(oauthStateCookie); err == nil && cookie.Value != query.Get("state") {
		slog.Warn("Avito OAuth state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "oauth_error", Detail: "State mismatch", Path: r.URL.Path})
		return
	}

	tokens, err := h.auth.Exchange(r.Context(), code)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, ErrorBody{Error: "oauth_exchange_failed", Detail: err.Error(), Path: r.URL.Path})
		return
	}

	if err := h.tokens.SaveTokens(r.Context(), tokens); err != nil {
		slog.Error("Failed to store Avito tokens", "error", err)
		writeInternalError(w, r)
		return
	}

	slog.Info("✅ Avito account connected", "expires_at", tokens.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"expires_at": tokens.ExpiresAt,
	})
}
