// Package rules loads the user's free-text organization rules and hot-reloads
// them when the rules file changes on disk.
package rules

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source holds the current organization rules. A missing rules file means
// empty rules, not an error: the planner works without them.
type Source struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	text string
}

// New creates a Source and performs the initial load.
func New(path string, logger *slog.Logger) *Source {
	s := &Source{path: path, logger: logger}
	s.reload()
	return s
}

// Rules returns the current rules text.
func (s *Source) Rules() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

func (s *Source) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("rules: read failed", slog.String("path", s.path), slog.String("error", err.Error()))
		}
		s.mu.Lock()
		s.text = ""
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.text = strings.TrimSpace(string(data))
	s.mu.Unlock()
	s.logger.Info("rules: loaded", slog.String("path", s.path))
}

// Watch starts an fsnotify watcher on the rules file's directory and reloads
// on changes until ctx is cancelled. Editors often replace files via rename,
// so watching the directory rather than the file survives those swaps.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	s.logger.Info("rules: watching", slog.String("path", s.path))

	// Debounce bursts of write events from editors.
	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(200 * time.Millisecond)
			timerCh = timer.C
		} else {
			timer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-timerCh:
			s.reload()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				schedule()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("rules: watcher error", slog.String("error", err.Error()))
		}
	}
}
