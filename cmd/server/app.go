package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"avito-assist/internal/adapters/gateway"
	"avito-assist/internal/adapters/handler"
	"avito-assist/internal/adapters/repository"
	"avito-assist/internal/adapters/system"
	"avito-assist/internal/adapters/websocket"
	"avito-assist/internal/config"
	"avito-assist/internal/core/ports"
	"avito-assist/internal/core/services"
)

// app holds every long-lived component built from the configuration
type app struct {
	projects ports.ProjectStore
	tokens   ports.TokenStore

	hub        *websocket.EventHub
	dispatcher *services.Dispatcher
	poller     *services.Poller
	watchdog   *services.Watchdog
	router     http.Handler

	closers []io.Closer
}

// Close releases database and cache connections
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("Close failed", "error", err)
		}
	}
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	a.hub = websocket.NewEventHub(cfg.App.AdminToken)
	setupLogger(cfg.App, io.MultiWriter(os.Stderr, a.hub))

	// Storage
	var (
		webhookRepo ports.WebhookRepository
		logReader   handler.LogReader
		dataDir     = cfg.Store.DataDir
	)

	switch cfg.Store.Driver {
	case config.StoreFile:
		store, err := repository.NewFileStore(cfg.Store.DataDir)
		if err != nil {
			return nil, err
		}
		a.projects, a.tokens = store, store
		fmt.Printf("  ✓ File store at %s\n", cfg.Store.DataDir)

	case config.StoreSQLite:
		db, err := repository.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		repo, err := migrated(ctx, db, repository.DialectSQLite)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.projects, a.tokens, webhookRepo, logReader = repo, repo, repo, repo
		dataDir = filepath.Dir(cfg.Store.SQLitePath)
		fmt.Printf("  ✓ SQLite database at %s\n", cfg.Store.SQLitePath)

	case config.StoreMariaDB:
		db, err := connectMariaDB(cfg.DB.GetDSN())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		repo, err := migrated(ctx, db, repository.DialectMariaDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.projects, a.tokens, webhookRepo, logReader = repo, repo, repo, repo
		fmt.Printf("  ✓ MariaDB connected (%s:%d/%s)\n", cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	// Chat state stays nil (not a typed nil) when Redis is off
	var chatState ports.ChatStateRepository
	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg.Redis.Addr)
		a.closers = append(a.closers, client)
		repo := repository.NewRedisRepository(client, 0)
		if err := connectRetry("Redis", 5, time.Second, func() error { return repo.Ping(ctx) }); err != nil {
			a.Close()
			return nil, err
		}
		chatState = repo
		fmt.Printf("  ✓ Redis connected (%s)\n", cfg.Redis.Addr)
	}

	// Gateways
	avito := gateway.NewAvitoClient(cfg.Avito.APIBaseURL, cfg.Avito.UserID)
	speech := gateway.NewSpeechKitClient(cfg.SpeechKit.APIKey, cfg.SpeechKit.FolderID, "")
	completion := gateway.NewCompletionClient(cfg.Completion.APIKey, cfg.Completion.BaseURL, cfg.Completion.Model)
	auth := gateway.NewAvitoAuthClient(cfg.Avito.AuthBaseURL, cfg.Avito.ClientID, cfg.Avito.ClientSecret, cfg.Avito.RedirectURI)

	// Services
	panicMode := services.NewPanicMode()

	pipeline := services.NewPipeline(speech, completion, avito, a.tokens, services.PipelineConfig{
		AccountID:   cfg.Avito.UserID,
		CallTimeout: cfg.App.CallTimeout,
		ChatState:   chatState,
		PanicMode:   panicMode,
	})
	a.dispatcher = services.NewDispatcher(pipeline, a.projects, webhookRepo, a.hub, cfg.App.DefaultProjectID)

	if cfg.Poller.Enabled {
		a.poller = services.NewPoller(completion, avito, a.tokens, a.projects, avito, a.hub, services.PollerConfig{
			Interval:         cfg.Poller.Interval,
			Batch:            cfg.Poller.Batch,
			MessagesPerChat:  cfg.Poller.MessagesPerChat,
			CallTimeout:      cfg.App.CallTimeout,
			DefaultProjectID: cfg.App.DefaultProjectID,
			PanicMode:        panicMode,
		})
	}

	if webhookRepo != nil {
		a.watchdog = services.NewWatchdog(webhookRepo, system.DiskUsage(dataDir), services.WatchdogConfig{
			Interval:      cfg.Watchdog.Interval,
			DiskThreshold: cfg.Watchdog.DiskThreshold,
			Retention:     cfg.Watchdog.Retention(),
		})
	}

	// HTTP
	routes := handler.Routes{
		Webhook: handler.NewWebhookHandler(a.dispatcher, cfg.Avito.WebhookSecret),
		OAuth:   handler.NewOAuthHandler(auth, a.tokens),
	}
	if cfg.App.AdminToken != "" {
		adminCfg := handler.AdminConfig{
			Token:         cfg.App.AdminToken,
			Version:       handler.ServiceVersion,
			StoreDriver:   cfg.Store.Driver,
			Projects:      a.projects,
			Tokens:        a.tokens,
			PanicMode:     panicMode,
			Logs:          logReader,
			Hub:           a.hub,
			PollerEnabled: cfg.Poller.Enabled,
			Metrics: func(ctx context.Context) system.Snapshot {
				return system.Collect(ctx, dataDir, cfg.Watchdog.DiskThreshold)
			},
		}
		routes.Admin = handler.NewAdminHandler(adminCfg)
		routes.Events = a.hub.ServeWS
	}
	a.router = handler.NewRouter(routes)

	return a, nil
}

func migrated(ctx context.Context, db *sql.DB, dialect repository.Dialect) (*repository.SQLRepository, error) {
	repo := repository.NewSQLRepository(db, dialect)
	if err := repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate %s schema: %w", dialect, err)
	}
	return repo, nil
}

// importProjects upserts every project from a YAML seed file
func importProjects(ctx context.Context, store ports.ProjectStore, path string) (int, error) {
	projects, err := config.LoadProjects(path)
	if err != nil {
		return 0, err
	}
	for _, p := range projects {
		if err := store.Upsert(ctx, p); err != nil {
			return 0, fmt.Errorf("import project %s: %w", p.ID, err)
		}
	}
	return len(projects), nil
}

// ============================================================================
// Logging
// ============================================================================

func setupLogger(cfg config.AppConfig, w io.Writer) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// ============================================================================
// Connections
// ============================================================================

func connectMariaDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mariadb: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := connectRetry("MariaDB", 10, 2*time.Second, db.Ping); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}
