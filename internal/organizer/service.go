// Package organizer orchestrates an organize pass: routing, path resolution,
// merging, persistence, and history capture.
package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/filetree"
	"github.com/starford/raido/internal/merge"
	"github.com/starford/raido/internal/routing"
	"github.com/starford/raido/internal/store"
)

// EntityRef identifies one entity touched by an organize pass.
type EntityRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Result is the partial-success report of one organize pass. Failed chunks
// are logged and excluded; they never abort sibling chunks.
type Result struct {
	Created []EntityRef `json:"created"`
	Updated []EntityRef `json:"updated"`
}

// Service runs organize passes. One pass at a time per owner: a second
// Organize call for the same owner fails with apperr.ErrPassInProgress while
// the first is in flight.
type Service struct {
	store   store.EntityStore
	planner *routing.Planner
	merger  *merge.Engine
	bounds  store.HistoryBounds
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewService creates an organizer service.
func NewService(st store.EntityStore, planner *routing.Planner, merger *merge.Engine, bounds store.HistoryBounds, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		planner: planner,
		merger:  merger,
		bounds:  bounds,
		logger:  logger,
		active:  make(map[string]struct{}),
	}
}

// Organize runs a full pass: serialize the owner's tree, route the content,
// then apply every chunk concurrently. Routing failure with no safe default
// fails the whole pass; everything after routing degrades per chunk.
func (s *Service) Organize(ctx context.Context, ownerID, title, content, rules string) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("organizer: empty content: %w", apperr.ErrValidation)
	}

	if !s.acquire(ownerID) {
		return nil, apperr.ErrPassInProgress
	}
	defer s.release(ownerID)

	entities, err := s.store.ListEntities(ownerID)
	if err != nil {
		return nil, fmt.Errorf("organizer: list entities: %w", err)
	}
	tree := filetree.Serialize(filetree.Build(entities))

	chunks, err := s.planner.Plan(ctx, title, content, tree, rules)
	if err != nil {
		return nil, err
	}

	return s.Apply(ctx, ownerID, chunks, rules), nil
}

// Suggest returns routing candidates for content without applying anything.
func (s *Service) Suggest(ctx context.Context, ownerID, title, content string) ([]routing.Suggestion, error) {
	entities, err := s.store.ListEntities(ownerID)
	if err != nil {
		return nil, fmt.Errorf("organizer: list entities: %w", err)
	}
	tree := filetree.Serialize(filetree.Build(entities))
	return s.planner.Suggest(ctx, title, content, tree)
}

// chunkOutcome is one chunk's contribution to the aggregate result.
type chunkOutcome struct {
	ref     EntityRef
	created bool
	err     error
}

// Apply fans out one concurrent task per chunk and joins them at the end.
// A chunk failure is captured in its own slot and never cancels siblings.
func (s *Service) Apply(ctx context.Context, ownerID string, chunks []routing.Chunk, rules string) *Result {
	outcomes := make([]chunkOutcome, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk routing.Chunk) {
			defer wg.Done()
			outcomes[i] = s.applyChunk(ctx, ownerID, chunk, rules)
		}(i, chunk)
	}
	wg.Wait()

	result := &Result{Created: []EntityRef{}, Updated: []EntityRef{}}
	for i, out := range outcomes {
		if out.err != nil {
			s.logger.Warn("organizer: chunk failed",
				slog.String("owner", ownerID),
				slog.String("target", chunks[i].TargetPath),
				slog.String("error", out.err.Error()))
			continue
		}
		if out.created {
			result.Created = append(result.Created, out.ref)
		} else {
			result.Updated = append(result.Updated, out.ref)
		}
	}
	return result
}

// applyChunk resolves the destination, merges, persists, and records history
// for a single chunk.
func (s *Service) applyChunk(ctx context.Context, ownerID string, chunk routing.Chunk, rules string) chunkOutcome {
	if strings.TrimSpace(chunk.TargetPath) == "" || strings.TrimSpace(chunk.Content) == "" {
		return chunkOutcome{err: fmt.Errorf("organizer: malformed chunk: %w", apperr.ErrValidation)}
	}

	entity, wasCreated, err := s.ensurePathEntity(ownerID, chunk.TargetPath)
	if err != nil {
		return chunkOutcome{err: err}
	}

	oldContent := entity.Content.Clone()
	oldText := entity.ContentText

	merged := s.merger.Merge(ctx, entity.Content, chunk.Content, entity.Title, rules, ownerID)
	stamped := document.EnsureMetadata(merged, ownerID)
	text := document.ToText(stamped)

	if err := s.store.UpdateContent(ownerID, entity.ID, stamped, text, true); err != nil {
		return chunkOutcome{err: fmt.Errorf("organizer: persist %q: %w: %v", chunk.TargetPath, apperr.ErrPersistence, err)}
	}

	path, err := s.store.PathOf(ownerID, entity)
	if err != nil {
		// The write succeeded; fall back to the requested path for reporting.
		path = chunk.TargetPath
	}

	action := store.ActionUpdated
	if wasCreated {
		action = store.ActionCreated
	}
	_, err = s.store.AppendHistory(store.HistoryItem{
		OwnerID:        ownerID,
		EntityID:       entity.ID,
		Title:          entity.Title,
		Action:         action,
		OldContent:     oldContent,
		OldContentText: oldText,
		NewContent:     stamped,
		NewContentText: text,
		Path:           path,
	}, s.bounds)
	if err != nil {
		s.logger.Warn("organizer: history append failed",
			slog.String("entity", entity.ID), slog.String("error", err.Error()))
	}

	return chunkOutcome{
		ref:     EntityRef{ID: entity.ID, Title: entity.Title, Path: path},
		created: wasCreated,
	}
}

func (s *Service) acquire(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[ownerID]; busy {
		return false
	}
	s.active[ownerID] = struct{}{}
	return true
}

func (s *Service) release(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, ownerID)
}
