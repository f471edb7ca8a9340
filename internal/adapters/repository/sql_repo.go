// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
)

// Ensure SQLRepository implements the required interfaces
var (
	_ ports.ProjectStore      = (*SQLRepository)(nil)
	_ ports.TokenStore        = (*SQLRepository)(nil)
	_ ports.WebhookRepository = (*SQLRepository)(nil)
)

// Dialect selects the SQL flavour for statements that differ between engines
type Dialect string

// Supported dialects
const (
	DialectMariaDB Dialect = "mariadb"
	DialectSQLite  Dialect = "sqlite"
)

// defaultAccount keys the single set of stored tokens
const defaultAccount = "default"

// SQLRepository persists projects, tokens and the webhook audit log in
// MariaDB or SQLite. Every write is a single statement.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRepository creates a new SQL repository instance
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
	}
}

// OpenSQLite opens (and creates) a SQLite database file
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Migrate creates the tables when they do not exist. Statements run one by
// one because the MySQL driver rejects multi-statement execs.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id         VARCHAR(64) PRIMARY KEY,
			payload    TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tokens (
			account       VARCHAR(64) PRIMARY KEY,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at    BIGINT NOT NULL
		)`,
	}

	if r.dialect == DialectMariaDB {
		statements = append(statements,
			`CREATE TABLE IF NOT EXISTS webhook_logs (
				id           BIGINT AUTO_INCREMENT PRIMARY KEY,
				webhook_id   VARCHAR(128) NOT NULL,
				chat_id      VARCHAR(128) NOT NULL,
				payload_json MEDIUMTEXT,
				status       VARCHAR(16) NOT NULL,
				error_log    TEXT NULL,
				created_at   BIGINT NOT NULL,
				INDEX idx_webhook_logs_created (created_at)
			)`,
		)
	} else {
		statements = append(statements,
			`CREATE TABLE IF NOT EXISTS webhook_logs (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				webhook_id   TEXT NOT NULL,
				chat_id      TEXT NOT NULL,
				payload_json TEXT,
				status       TEXT NOT NULL,
				error_log    TEXT,
				created_at   INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_webhook_logs_created ON webhook_logs(created_at)`,
		)
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	slog.Info("Database schema ready", "dialect", r.dialect)
	return nil
}

// ============================================================================
// ProjectStore Implementation
// ============================================================================

// Get loads a project by id; nil, nil when absent
func (r *SQLRepository) Get(ctx context.Context, id string) (*domain.Project, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM projects WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("Failed to get project", "error", err, "project_id", id)
		return nil, fmt.Errorf("get project: %w", err)
	}

	project := domain.NewProject()
	if err := json.Unmarshal([]byte(payload), project); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", id, err)
	}
	return project, nil
}

// Upsert inserts or replaces a project
func (r *SQLRepository) Upsert(ctx context.Context, project *domain.Project) error {
	payload, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	query := `
		INSERT INTO projects (id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	if r.dialect == DialectMariaDB {
		query = `
			INSERT INTO projects (id, payload, updated_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)
		`
	}

	if _, err := r.db.ExecContext(ctx, query, project.ID, string(payload), time.Now().Unix()); err != nil {
		slog.Error("Failed to upsert project", "error", err, "project_id", project.ID)
		return fmt.Errorf("upsert project: %w", err)
	}

	slog.Info("Project saved", "project_id", project.ID)
	return nil
}

// List returns every project ordered by id
func (r *SQLRepository) List(ctx context.Context) ([]*domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, payload FROM projects ORDER BY id`)
	if err != nil {
		slog.Error("Failed to list projects", "error", err)
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			slog.Error("Failed to scan project row", "error", err)
			continue
		}
		project := domain.NewProject()
		if err := json.Unmarshal([]byte(payload), project); err != nil {
			slog.Error("Skipping undecodable project", "error", err, "project_id", id)
			continue
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// ============================================================================
// TokenStore Implementation
// ============================================================================

// GetCurrentTokens returns the default account's tokens; nil, nil when absent
func (r *SQLRepository) GetCurrentTokens(ctx context.Context) (*domain.Tokens, error) {
	var (
		tokens    domain.Tokens
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at FROM tokens WHERE account = ?`,
		defaultAccount,
	).Scan(&tokens.AccessToken, &tokens.RefreshToken, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("Failed to get tokens", "error", err)
		return nil, fmt.Errorf("get tokens: %w", err)
	}

	if expiresAt > 0 {
		tokens.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	}
	return &tokens, nil
}

// SaveTokens replaces the default account's tokens
func (r *SQLRepository) SaveTokens(ctx context.Context, tokens *domain.Tokens) error {
	query := `
		INSERT INTO tokens (account, access_token, refresh_token, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at
	`
	if r.dialect == DialectMariaDB {
		query = `
			INSERT INTO tokens (account, access_token, refresh_token, expires_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				access_token = VALUES(access_token),
				refresh_token = VALUES(refresh_token),
				expires_at = VALUES(expires_at)
		`
	}

	var expiresAt int64
	if !tokens.ExpiresAt.IsZero() {
		expiresAt = tokens.ExpiresAt.Unix()
	}

	if _, err := r.db.ExecContext(ctx, query, defaultAccount, tokens.AccessToken, tokens.RefreshToken, expiresAt); err != nil {
		slog.Error("Failed to save tokens", "error", err)
		return fmt.Errorf("save tokens: %w", err)
	}

	slog.Info("Avito tokens saved", "expires_at", tokens.ExpiresAt)
	return nil
}

// ============================================================================
// WebhookRepository Implementation
// ============================================================================

// SaveLog persists a webhook event to the audit log
func (r *SQLRepository) SaveLog(ctx context.Context, log *domain.WebhookLog) error {
	query := `
		INSERT INTO webhook_logs (webhook_id, chat_id, payload_json, status, error_log, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		log.WebhookID,
		log.ChatID,
		string(log.PayloadJSON),
		log.Status,
		log.ErrorLog,
		createdAt.Unix(),
	)
	if err != nil {
		slog.Error("Failed to save webhook log",
			"error", err,
			"webhook_id", log.WebhookID,
		)
		return fmt.Errorf("save webhook log: %w", err)
	}

	slog.Debug("Webhook log saved",
		"webhook_id", log.WebhookID,
		"status", log.Status,
	)
	return nil
}

// RecentLogs returns the newest audit rows first
func (r *SQLRepository) RecentLogs(ctx context.Context, limit int) ([]*domain.WebhookLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, webhook_id, chat_id, payload_json, status, error_log, created_at
		FROM webhook_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent webhook logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.WebhookLog
	for rows.Next() {
		var (
			entry     domain.WebhookLog
			payload   sql.NullString
			errorLog  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.WebhookID, &entry.ChatID, &payload, &entry.Status, &errorLog, &createdAt); err != nil {
			slog.Error("Failed to scan webhook log row", "error", err)
			continue
		}
		entry.PayloadJSON = []byte(payload.String)
		if errorLog.Valid {
			entry.ErrorLog = &errorLog.String
		}
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		logs = append(logs, &entry)
	}

	return logs, rows.Err()
}

// PurgeOlderThan deletes at most limit audit rows created before the cutoff
func (r *SQLRepository) PurgeOlderThan(ctx context.Context, before time.Time, limit int) (int64, error) {
	// SQLite builds usually lack DELETE ... LIMIT, MariaDB rejects LIMIT in IN subqueries
	query := `DELETE FROM webhook_logs WHERE id IN (
		SELECT id FROM webhook_logs WHERE created_at < ? ORDER BY id LIMIT ?
	)`
	if r.dialect == DialectMariaDB {
		query = `DELETE FROM webhook_logs WHERE created_at < ? ORDER BY id LIMIT ?`
	}

	result, err := r.db.ExecContext(ctx, query, before.Unix(), limit)
	if err != nil {
		slog.Error("Failed to purge webhook logs", "error", err)
		return 0, fmt.Errorf("purge webhook logs: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		slog.Info("Purged webhook logs", "rows", rows, "before", before)
	}
	return rows, nil
}
