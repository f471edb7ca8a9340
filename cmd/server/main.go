// Package main is the avito-assist entry point
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"avito-assist/internal/adapters/handler"
	"avito-assist/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:           "avito-assist",
		Short:         "Avito messenger auto-responder",
		Long:          "avito-assist answers Avito chat messages with an LLM, transcribing voice messages first.",
		Version:       handler.ServiceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(importProjectsCmd())
	root.AddCommand(pollOnceCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// ============================================================================
// serve
// ============================================================================

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server, the watchdog and (if enabled) the poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	fmt.Println("=== Avito Assist - Initialization ===")

	fmt.Println("[1/5] Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Printf("✓ Config loaded (store: %s, port: %d, poller: %t)\n",
		cfg.Store.Driver, cfg.App.Port, cfg.Poller.Enabled)

	fmt.Println("[2/5] Connecting storage...")
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Println("✓ Storage ready")

	fmt.Println("[3/5] Seeding projects...")
	if cfg.App.ProjectsFile != "" {
		n, err := importProjects(ctx, a.projects, cfg.App.ProjectsFile)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %d project(s) imported from %s\n", n, cfg.App.ProjectsFile)
	} else {
		fmt.Println("✓ No PROJECTS_FILE, using stored projects")
	}

	fmt.Println("[4/5] Starting background services...")
	go a.hub.Run(ctx)
	if a.watchdog != nil {
		go a.watchdog.Run(ctx)
		fmt.Println("✓ Watchdog started")
	}
	if a.poller != nil {
		if err := a.poller.Start(ctx); err != nil {
			return err
		}
		defer a.poller.Stop()
		fmt.Printf("✓ Poller started (every %s)\n", cfg.Poller.Interval)
	}

	fmt.Println("[5/5] Starting HTTP server...")
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	fmt.Printf("[HTTP] Server listening on %s\n", server.Addr)
	fmt.Printf("[HTTP] Health check: http://localhost:%d/\n", cfg.App.Port)
	fmt.Printf("[HTTP] Avito webhook: http://localhost:%d/webhooks/avito\n", cfg.App.Port)
	fmt.Println("[READY] Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	a.dispatcher.Wait()

	fmt.Println("✓ Stopped")
	return nil
}

// ============================================================================
// import-projects
// ============================================================================

func importProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-projects <file.yaml>",
		Short: "Validate a YAML project seed and upsert it into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := importProjects(cmd.Context(), a.projects, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✓ %d project(s) imported\n", n)
			return nil
		},
	}
}

// ============================================================================
// poll-once
// ============================================================================

func pollOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll-once",
		Short: "Run a single poll pass over unread chats and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// Build the poller even when the schedule is disabled
			cfg.Poller.Enabled = true

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.poller.Tick(cmd.Context())
		},
	}
}

// connectRetry runs connect until it succeeds or attempts run out
func connectRetry(name string, maxRetries int, retryDelay time.Duration, connect func() error) error {
	var err error
	for i := 1; i <= maxRetries; i++ {
		if err = connect(); err == nil {
			return nil
		}

		log.Printf("  Attempt %d/%d: Cannot reach %s: %v", i, maxRetries, name, err)
		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("cannot connect to %s after %d attempts: %w", name, maxRetries, err)
}
