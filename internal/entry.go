// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/cachestate"
	"github.com/starford/raido/internal/completion"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/filetree"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/merge"
	"github.com/starford/raido/internal/organizer"
	"github.com/starford/raido/internal/routing"
	"github.com/starford/raido/internal/rules"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/suggest"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("completion_url", cfg.Completion.BaseURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize entity store.
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// Completion service client (overridable via options).
	client := app.completionClient
	if client == nil {
		client = completion.NewHTTPClient(cfg.Completion.BaseURL, cfg.Completion.APIKey, cfg.Completion.Timeout)
	}

	// Organization engine.
	planner := routing.NewPlanner(client, cfg.Completion.Models, cfg.Organizer.DefaultPath, logger)
	merger := merge.NewEngine(client, cfg.Completion.Models, cfg.Organizer.MaxContextBlocks, logger)
	bounds := store.HistoryBounds{
		MaxItems:  cfg.Organizer.History.MaxItems,
		Retention: cfg.Organizer.History.Retention,
	}
	org := organizer.NewService(db, planner, merger, bounds, logger)
	hist := history.NewService(db, bounds, logger)

	// Organization rules with hot reload.
	ruleSource := rules.New(cfg.Organizer.RulesPath, logger)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Cache/consistency manager: the deferred refresh re-reads the
	// authoritative entities and re-builds the tree.
	cache := cachestate.NewManager(func(ownerID string) (any, error) {
		entities, err := db.ListEntities(ownerID)
		if err != nil {
			return nil, err
		}
		return filetree.Build(entities), nil
	}, cfg.Organizer.RefreshDelay, logger)

	// Bridge cache events onto the SSE stream.
	unsubscribe := cache.Subscribe(func(ev cachestate.Event) {
		broker.Publish(sse.Event{Type: "cache." + string(ev.Kind), Data: ev})
	})
	defer unsubscribe()

	// Suggestion cache, refreshed in the background.
	suggestions := suggest.NewCache(func(ctx context.Context, ownerID, entityID string) ([]routing.Suggestion, error) {
		entity, err := db.GetEntity(ownerID, entityID)
		if err != nil {
			return nil, err
		}
		return org.Suggest(ctx, ownerID, entity.Title, entity.ContentText)
	}, cfg.Organizer.Suggestions.MaxEntries, cfg.Organizer.Suggestions.MaxAge, logger)

	// Build API handler and router.
	gate := document.GateConfig{
		MinSimilarity:  cfg.Organizer.QualityGate.MinSimilarity,
		MinLengthRatio: cfg.Organizer.QualityGate.MinLengthRatio,
		MaxLengthRatio: cfg.Organizer.QualityGate.MaxLengthRatio,
	}
	h := api.NewHandler(org, hist, db, cache, suggestions, broker, ruleSource, gate)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the rules file for changes.
	g.Go(func() error {
		if err := ruleSource.Watch(gCtx); err != nil {
			logger.Warn("rules watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Background suggestion refresh.
	g.Go(func() error {
		return suggestions.Run(gCtx, cfg.Organizer.Suggestions.RefreshInterval)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
