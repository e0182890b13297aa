// Package testutil provides shared test helpers for setting up databases and
// scripted completion clients.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/raido/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CompletionFunc adapts a function to the completion.Client interface so
// tests can script service responses inline.
type CompletionFunc func(ctx context.Context, prompt, model string) (string, error)

// Complete calls the wrapped function.
func (f CompletionFunc) Complete(ctx context.Context, prompt, model string) (string, error) {
	return f(ctx, prompt, model)
}
