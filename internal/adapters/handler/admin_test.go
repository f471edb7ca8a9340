package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avito-assist/internal/adapters/repository"
	"avito-assist/internal/adapters/system"
	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/services"
)

const adminToken = "admin-secret"

type adminFixture struct {
	router http.Handler
	store  *repository.FileStore
	panic  *services.PanicMode
}

func newAdminFixture(t *testing.T, token string) *adminFixture {
	t.Helper()
	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	pm := services.NewPanicMode()

	admin := NewAdminHandler(AdminConfig{
		Token:       token,
		Version:     ServiceVersion,
		StoreDriver: "file",
		Projects:    store,
		Tokens:      store,
		PanicMode:   pm,
		Metrics: func(ctx context.Context) system.Snapshot {
			return system.Snapshot{DiskPercent: 42, DiskWarningLevel: system.LevelSafe}
		},
	})
	return &adminFixture{router: NewRouter(Routes{Admin: admin}), store: store, panic: pm}
}

func (f *adminFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()
	var raw struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return APIResponse{Code: raw.Code, Message: raw.Message}
}

func TestAdmin_Auth(t *testing.T) {
	f := newAdminFixture(t, adminToken)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/status", "").Code)
}

func TestAdmin_DisabledWithoutToken(t *testing.T) {
	f := newAdminFixture(t, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer ")
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_Status(t *testing.T) {
	f := newAdminFixture(t, adminToken)
	require.NoError(t, f.store.SaveTokens(t.Context(), &domain.Tokens{
		AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Hour),
	}))

	var status SystemStatusResponse
	env := decodeEnvelope(t, f.do(t, http.MethodGet, "/api/status", ""), &status)

	assert.Equal(t, http.StatusOK, env.Code)
	assert.True(t, status.Online)
	assert.Equal(t, "0.1.0", status.Version)
	assert.Equal(t, "file", status.StoreDriver)
	assert.True(t, status.TokensConfigured)
	assert.True(t, status.TokenExpired)
	assert.False(t, status.PanicMode.Active)
}

func TestAdmin_Metrics(t *testing.T) {
	f := newAdminFixture(t, adminToken)

	var snapshot system.Snapshot
	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/system/metrics", ""), &snapshot)

	assert.Equal(t, 42.0, snapshot.DiskPercent)
	assert.Equal(t, system.LevelSafe, snapshot.DiskWarningLevel)
}

func TestAdmin_Projects(t *testing.T) {
	f := newAdminFixture(t, adminToken)

	rec := f.do(t, http.MethodGet, "/api/projects/default", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/projects/default", `{"name":"Shop","business_type":"auto","tone":"formal"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var project domain.Project
	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/projects/default", ""), &project)
	assert.Equal(t, "default", project.ID)
	assert.Equal(t, domain.CategoryAuto, project.BusinessCategory)
	assert.Equal(t, domain.ToneFormal, project.Tone)
	assert.Equal(t, domain.DefaultTimezone, project.Timezone, "absent fields take defaults")

	var list []domain.Project
	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/projects", ""), &list)
	assert.Len(t, list, 1)
}

func TestAdmin_PutProjectRejectsInvalid(t *testing.T) {
	f := newAdminFixture(t, adminToken)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bad timezone", `{"timezone":"Mars/Olympus"}`, http.StatusUnprocessableEntity},
		{"bad range", `{"schedule_mode":"by_schedule","schedule":{"mon":[{"start":"18:00","end":"09:00"}]}}`, http.StatusUnprocessableEntity},
		{"id mismatch", `{"id":"other"}`, http.StatusBadRequest},
		{"not json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, "/api/projects/default", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	got, err := f.store.Get(t.Context(), "default")
	require.NoError(t, err)
	assert.Nil(t, got, "rejected projects must not be stored")
}

func TestAdmin_PanicToggle(t *testing.T) {
	f := newAdminFixture(t, adminToken)

	rec := f.do(t, http.MethodPost, "/api/panic", `{"reason":"bad replies","by":"ops"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.panic.IsActive())
	assert.Equal(t, "bad replies", f.panic.Status().Reason)

	var status services.PanicStatus
	decodeEnvelope(t, f.do(t, http.MethodGet, "/api/panic", ""), &status)
	assert.True(t, status.Active)

	rec = f.do(t, http.MethodDelete, "/api/panic", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.panic.IsActive())
}

func TestAdmin_WebhookLogsNeedSQLStore(t *testing.T) {
	f := newAdminFixture(t, adminToken)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/webhooks", "").Code)
}
