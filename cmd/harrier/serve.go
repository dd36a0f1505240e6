// Harrier - Revenue leakage detection for property registration offices.
// Copyright (c) 2026 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/velocity"
	"github.com/opensource-finance/harrier/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Harrier HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	velocitySvc := velocity.NewService(repo, cacheImpl)

	// The builtin catalog is always active; custom rules come from the
	// database and can be hot-reloaded via POST /rules/reload.
	engine, err := rules.NewEngine(velocitySvc.Getter())
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	if err := loadCustomRules(ctx, repo, engine); err != nil {
		return fmt.Errorf("failed to load custom rules: %w", err)
	}
	slog.Info("rule engine initialized", "custom_rules", engine.RulesCount())

	// Batch detection worker consumes ingested cases off the bus.
	var batchWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_BATCH_WORKER") == "true" {
		batchWorker = worker.NewWorker(busImpl, repo, cacheImpl, engine)

		var tenantIDs []string
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		if err := batchWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start batch worker", "error", err)
		} else {
			slog.Info("batch worker started", "tenant_count", len(tenantIDs))
		}
	}

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if batchWorker != nil {
		if err := batchWorker.Stop(); err != nil {
			slog.Error("failed to stop batch worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
	return nil
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// loadCustomRules loads analyst-defined rules from the database into the
// engine. An empty database is fine; rules are added via POST /rules.
func loadCustomRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil
	}

	if len(dbRules) > 0 {
		slog.Info("loading custom rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no custom rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  =============================================")
	fmt.Println("                  HARRIER")
	fmt.Println("       Revenue Leakage Detection Engine")
	fmt.Println("      Every rupee of duty, accounted for.")
	fmt.Println("  =============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST  /evaluate            - Evaluate a case fact sheet")
	fmt.Println("    POST  /query               - Free-text analyst query")
	fmt.Println("    GET   /cases               - List cases")
	fmt.Println("    GET   /cases/{id}          - Get case by ID")
	fmt.Println("    PATCH /cases/{id}/status   - Transition case status")
	fmt.Println("    GET   /evaluations/{id}    - Get evaluation by ID")
	fmt.Println("    GET   /zones               - Distinct zones")
	fmt.Println("    GET   /districts           - Distinct districts")
	fmt.Println("    GET   /rules               - List custom rules")
	fmt.Println("    POST  /rules               - Create a custom rule")
	fmt.Println("    POST  /rules/reload        - Hot-reload custom rules")
	fmt.Println("    GET   /health              - Health check")
	fmt.Println()
}
