package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/cachestate"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/filetree"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/organizer"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/suggest"
)

// Handler holds API route handlers.
type Handler struct {
	org         *organizer.Service
	hist        *history.Service
	store       store.EntityStore
	cache       *cachestate.Manager
	suggestions *suggest.Cache
	broker      *sse.Broker
	rules       RulesSource
	gate        document.GateConfig
}

// RulesSource supplies the current organization rules text.
type RulesSource interface {
	Rules() string
}

// NewHandler creates a new Handler.
func NewHandler(org *organizer.Service, hist *history.Service, st store.EntityStore,
	cache *cachestate.Manager, suggestions *suggest.Cache, broker *sse.Broker,
	rules RulesSource, gate document.GateConfig) *Handler {
	return &Handler{
		org:         org,
		hist:        hist,
		store:       st,
		cache:       cache,
		suggestions: suggestions,
		broker:      broker,
		rules:       rules,
		gate:        gate,
	}
}

// Refine handles POST /api/refine: validates proposed refinements against
// their source edits and the quality gate, substituting only the ones that
// pass. Rejected refinements fall back to the edit's own content.
func (h *Handler) Refine(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req RefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}

	result := document.ApplyRefinements(req.Text, req.Refinements, req.Edits, h.gate)
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, RefineResponse{Text: result.Text, Errors: errs})
}

// Organize handles POST /api/organize: one full organize pass.
func (h *Handler) Organize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req OrganizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	owner := ownerID(r)
	rules := req.Rules
	if rules == "" && h.rules != nil {
		rules = h.rules.Rules()
	}

	version, err := h.cache.StartOrganization(owner)
	if err != nil {
		writeJSON(w, http.StatusConflict, errorBody("an organize pass is already running"))
		return
	}

	result, err := h.org.Organize(r.Context(), owner, req.Title, req.Content, rules)
	if err != nil {
		h.cache.FailOrganization(owner, err)
		switch {
		case errors.Is(err, apperr.ErrPassInProgress):
			writeJSON(w, http.StatusConflict, errorBody("an organize pass is already running"))
		case errors.Is(err, apperr.ErrValidation):
			writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		case errors.Is(err, apperr.ErrRoutingFailure):
			writeJSON(w, http.StatusBadGateway, errorBody("routing failed: all model profiles exhausted"))
		default:
			slog.Error("organize failed", slog.String("owner", owner), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	h.cache.CompleteOrganization(owner, result)
	for _, ref := range result.Created {
		h.broker.PublishEntityEvent("created", ref.ID, ref.Title)
	}
	for _, ref := range result.Updated {
		h.broker.PublishEntityEvent("updated", ref.ID, ref.Title)
	}

	writeJSON(w, http.StatusOK, OrganizeResponse{
		Created: result.Created,
		Updated: result.Updated,
		Version: version,
	})
}

// Suggestions handles GET /api/entities/{id}/suggestions: ranked destination
// candidates for an entity's content, served from the bounded cache when
// possible.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id := chi.URLParam(r, "id")

	if cached, ok := h.suggestions.Get(owner, id); ok {
		writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: cached, Cached: true})
		return
	}

	entity, err := h.store.GetEntity(owner, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get entity failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	suggestions, err := h.org.Suggest(r.Context(), owner, entity.Title, entity.ContentText)
	if err != nil {
		slog.Error("suggest failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("suggestion routing failed"))
		return
	}
	h.suggestions.Put(owner, id, suggestions)
	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: suggestions, Cached: false})
}

// Tree handles GET /api/tree: the owner's materialized folder/file tree.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	entities, err := h.store.ListEntities(owner)
	if err != nil {
		slog.Error("list entities failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	roots := filetree.Build(entities)
	writeJSON(w, http.StatusOK, map[string]any{
		"tree":       roots,
		"serialized": filetree.Serialize(roots),
	})
}

// GetEntity handles GET /api/entities/{id}.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id := chi.URLParam(r, "id")

	entity, err := h.store.GetEntity(owner, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get entity failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	path, err := h.store.PathOf(owner, entity)
	if err != nil {
		slog.Error("path failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, EntityResponse{
		ID:          entity.ID,
		Title:       entity.Title,
		Kind:        entity.Kind,
		ParentID:    entity.ParentID,
		Path:        path,
		ContentText: entity.ContentText,
		Organized:   entity.Organized,
	})
}

// ListHistory handles GET /api/history.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	items, err := h.hist.List(owner)
	if err != nil {
		slog.Error("list history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]HistoryItemResponse, len(items))
	for i, item := range items {
		out[i] = toHistoryItemResponse(item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// PreviewRevert handles GET /api/history/{id}/preview.
func (h *Handler) PreviewRevert(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id := chi.URLParam(r, "id")

	preview, err := h.hist.PreviewRevert(owner, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("preview failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// Revert handles POST /api/history/{id}/revert. Revert failures are always
// surfaced explicitly; there is no silent partial revert.
func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	id := chi.URLParam(r, "id")

	outcome, err := h.hist.Revert(owner, id)
	if err != nil {
		slog.Error("revert failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	switch outcome.Kind {
	case history.OutcomeDeleted:
		h.broker.PublishEntityEvent("deleted", outcome.EntityID, outcome.Title)
	case history.OutcomeReverted:
		h.broker.PublishEntityEvent("updated", outcome.EntityID, outcome.Title)
	}
	h.broker.Publish(sse.Event{Type: "history.reverted", Data: outcome})

	writeJSON(w, http.StatusOK, outcome)
}

// State handles GET /api/state: the owner's cache state machine position.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	writeJSON(w, http.StatusOK, StateResponse{
		State:   string(h.cache.State(owner)),
		Version: h.cache.Version(owner),
	})
}
