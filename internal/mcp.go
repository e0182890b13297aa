package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/raido/internal/completion"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/merge"
	"github.com/starford/raido/internal/organizer"
	"github.com/starford/raido/internal/routing"
	"github.com/starford/raido/internal/rules"
	"github.com/starford/raido/internal/store"
)

// RunMCP starts the MCP stdio server instead of the HTTP application.
// Logs go to stderr so they do not corrupt the stdio transport.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	client := app.completionClient
	if client == nil {
		client = completion.NewHTTPClient(cfg.Completion.BaseURL, cfg.Completion.APIKey, cfg.Completion.Timeout)
	}

	planner := routing.NewPlanner(client, cfg.Completion.Models, cfg.Organizer.DefaultPath, logger)
	merger := merge.NewEngine(client, cfg.Completion.Models, cfg.Organizer.MaxContextBlocks, logger)
	bounds := store.HistoryBounds{
		MaxItems:  cfg.Organizer.History.MaxItems,
		Retention: cfg.Organizer.History.Retention,
	}
	org := organizer.NewService(db, planner, merger, bounds, logger)
	hist := history.NewService(db, bounds, logger)
	ruleSource := rules.New(cfg.Organizer.RulesPath, logger)

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(org, hist, db, ruleSource).ServeStdio()
}
