package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/cachestate"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/filetree"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/merge"
	"github.com/starford/raido/internal/organizer"
	"github.com/starford/raido/internal/routing"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/suggest"
	"github.com/starford/raido/internal/testutil"
)

type staticRules string

func (s staticRules) Rules() string { return string(s) }

type testEnv struct {
	db     *store.DB
	router chi.Router
	cache  *cachestate.Manager
}

// newTestEnv wires the full stack against a temp database, with scripted
// completion responses for routing and merging.
func newTestEnv(t *testing.T, route, mergeFn testutil.CompletionFunc, defaultPath string) *testEnv {
	t.Helper()
	db := testutil.TestDB(t)
	logger := testutil.DiscardLogger()

	planner := routing.NewPlanner(route, []string{"m1"}, defaultPath, logger)
	merger := merge.NewEngine(mergeFn, []string{"m1"}, 30, logger)
	bounds := store.HistoryBounds{MaxItems: 50, Retention: 7 * 24 * time.Hour}
	org := organizer.NewService(db, planner, merger, bounds, logger)
	hist := history.NewService(db, bounds, logger)

	cache := cachestate.NewManager(func(ownerID string) (any, error) {
		entities, err := db.ListEntities(ownerID)
		if err != nil {
			return nil, err
		}
		return filetree.Build(entities), nil
	}, time.Hour, logger)

	suggestions := suggest.NewCache(func(ctx context.Context, ownerID, entityID string) ([]routing.Suggestion, error) {
		entity, err := db.GetEntity(ownerID, entityID)
		if err != nil {
			return nil, err
		}
		return org.Suggest(ctx, ownerID, entity.Title, entity.ContentText)
	}, 8, time.Minute, logger)

	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	h := NewHandler(org, hist, db, cache, suggestions, broker, staticRules(""), document.DefaultGateConfig())
	return &testEnv{db: db, router: NewRouter(h, false, "", broker), cache: cache}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestOrganizeEndpoint(t *testing.T) {
	route := testutil.CompletionFunc(func(ctx context.Context, prompt, model string) (string, error) {
		return `[{"targetFilePath": "/Projects/Notes", "content": "Call Bob"}]`, nil
	})
	mergeFn := testutil.CompletionFunc(func(ctx context.Context, prompt, model string) (string, error) {
		return "Call Bob", nil
	})
	env := newTestEnv(t, route, mergeFn, "/Inbox")

	rec := env.do(t, http.MethodPost, "/organize", OrganizeRequest{Content: "Call Bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[OrganizeResponse](t, rec)
	if len(resp.Created) != 1 || resp.Created[0].Path != "/Projects/Notes" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Version == 0 {
		t.Error("missing cache version")
	}

	got, err := env.db.GetEntity("local", resp.Created[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ContentText != "Call Bob" {
		t.Errorf("entity content %q", got.ContentText)
	}

	histRec := env.do(t, http.MethodGet, "/history", nil)
	histResp := decode[map[string][]HistoryItemResponse](t, histRec)
	if len(histResp["items"]) != 1 || histResp["items"][0].Action != store.ActionCreated {
		t.Errorf("unexpected history: %+v", histResp)
	}
}

func TestOrganizeValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil, "/Inbox")

	rec := env.do(t, http.MethodPost, "/organize", OrganizeRequest{Content: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/organize", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	env.router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rec2.Code)
	}
}

func TestOrganizeRoutingFailure(t *testing.T) {
	route := testutil.CompletionFunc(func(ctx context.Context, prompt, model string) (string, error) {
		return "", fmt.Errorf("service down")
	})
	env := newTestEnv(t, route, route, "")

	rec := env.do(t, http.MethodPost, "/organize", OrganizeRequest{Content: "orphan"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	// The state machine lands in Error, ready for a later recovery.
	if env.cache.State("local") != cachestate.StateError {
		t.Errorf("expected error state, got %s", env.cache.State("local"))
	}
}

func TestOrganizeConflictWhileRunning(t *testing.T) {
	route := testutil.CompletionFunc(func(ctx context.Context, prompt, model string) (string, error) {
		return `[{"targetFilePath": "/Other/Notes", "content": "note for someone else"}]`, nil
	})
	mergeFn := testutil.CompletionFunc(func(ctx context.Context, prompt, model string) (string, error) {
		return "note for someone else", nil
	})
	env := newTestEnv(t, route, mergeFn, "/Inbox")

	if _, err := env.cache.StartOrganization("local"); err != nil {
		t.Fatal(err)
	}
	rec := env.do(t, http.MethodPost, "/organize", OrganizeRequest{Content: "x"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	// Another owner's pass must not be rejected by this one.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(OrganizeRequest{Content: "note for someone else"}); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/organize", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Owner-ID", "other")
	rec2 := httptest.NewRecorder()
	env.router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Errorf("expected 200 for other owner, got %d: %s", rec2.Code, rec2.Body.String())
	}
}

func TestRefineEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil, "/Inbox")

	rec := env.do(t, http.MethodPost, "/refine", RefineRequest{
		Text:  "buy milk today",
		Edits: []document.Edit{{ID: "e1", Content: "buy milk today"}},
		Refinements: []document.Refinement{
			{EditID: "e1", Original: "buy milk today", Refined: "Buy milk today."},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[RefineResponse](t, rec)
	if resp.Text != "Buy milk today." || len(resp.Errors) != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}

	rec = env.do(t, http.MethodPost, "/refine", RefineRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing text, got %d", rec.Code)
	}
}

func TestTreeAndEntityEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, nil, "/Inbox")

	folder, err := env.db.InsertEntity(store.Entity{OwnerID: "local", Title: "Work", Kind: store.KindFolder})
	if err != nil {
		t.Fatal(err)
	}
	file, err := env.db.InsertEntity(store.Entity{OwnerID: "local", Title: "Tasks", Kind: store.KindFile, ParentID: folder.ID})
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodGet, "/tree", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tree: %d", rec.Code)
	}
	tree := decode[map[string]any](t, rec)
	if tree["serialized"] != "[DIR] Work\n  [FILE] Tasks\n" {
		t.Errorf("unexpected serialized tree %q", tree["serialized"])
	}

	rec = env.do(t, http.MethodGet, "/entities/"+file.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("entity: %d", rec.Code)
	}
	entity := decode[EntityResponse](t, rec)
	if entity.Path != "/Work/Tasks" {
		t.Errorf("unexpected path %q", entity.Path)
	}

	rec = env.do(t, http.MethodGet, "/entities/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSuggestionsEndpointCaches(t *testing.T) {
	calls := 0
	route := testutil.CompletionFunc(func(ctx context.Context, prompt, model string) (string, error) {
		calls++
		return `[{"targetFilePath": "/Reading", "relevance": 0.8}]`, nil
	})
	env := newTestEnv(t, route, nil, "/Inbox")

	file, err := env.db.InsertEntity(store.Entity{OwnerID: "local", Title: "Clip", Kind: store.KindFile, ContentText: "book excerpt"})
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodGet, "/entities/"+file.ID+"/suggestions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions: %d: %s", rec.Code, rec.Body.String())
	}
	first := decode[SuggestionsResponse](t, rec)
	if first.Cached || len(first.Suggestions) != 1 {
		t.Errorf("unexpected first response: %+v", first)
	}

	rec = env.do(t, http.MethodGet, "/entities/"+file.ID+"/suggestions", nil)
	second := decode[SuggestionsResponse](t, rec)
	if !second.Cached {
		t.Error("second call should be served from cache")
	}
	if calls != 1 {
		t.Errorf("expected 1 completion call, got %d", calls)
	}
}

func TestRevertEndpoints(t *testing.T) {
	route := testutil.CompletionFunc(func(ctx context.Context, prompt, model string) (string, error) {
		return `[{"targetFilePath": "/Inbox/Note", "content": "fresh"}]`, nil
	})
	mergeFn := testutil.CompletionFunc(func(ctx context.Context, prompt, model string) (string, error) {
		return "fresh", nil
	})
	env := newTestEnv(t, route, mergeFn, "/Inbox")

	rec := env.do(t, http.MethodPost, "/organize", OrganizeRequest{Content: "fresh"})
	if rec.Code != http.StatusOK {
		t.Fatalf("organize: %d", rec.Code)
	}
	resp := decode[OrganizeResponse](t, rec)
	entityID := resp.Created[0].ID

	histRec := env.do(t, http.MethodGet, "/history", nil)
	items := decode[map[string][]HistoryItemResponse](t, histRec)["items"]
	if len(items) != 1 {
		t.Fatalf("expected 1 history item, got %d", len(items))
	}

	rec = env.do(t, http.MethodGet, "/history/"+items[0].ID+"/preview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: %d", rec.Code)
	}
	preview := decode[history.Preview](t, rec)
	if preview.Action != "delete" {
		t.Errorf("unexpected preview %+v", preview)
	}

	rec = env.do(t, http.MethodPost, "/history/"+items[0].ID+"/revert", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("revert: %d: %s", rec.Code, rec.Body.String())
	}
	outcome := decode[history.Outcome](t, rec)
	if outcome.Kind != history.OutcomeDeleted {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	if _, err := env.db.GetEntity("local", entityID); err == nil {
		t.Error("entity still visible after revert")
	}

	rec = env.do(t, http.MethodGet, "/history/missing/preview", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStateEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil, "/Inbox")

	rec := env.do(t, http.MethodGet, "/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: %d", rec.Code)
	}
	resp := decode[StateResponse](t, rec)
	if resp.State != string(cachestate.StateIdle) {
		t.Errorf("expected idle, got %s", resp.State)
	}
}

func TestAuthMiddleware(t *testing.T) {
	h := &Handler{} // handlers are never reached on auth failure
	secured := NewRouter(h, true, "sekrit", nil)

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()
	secured.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/history", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	secured.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", rec.Code)
	}
}
