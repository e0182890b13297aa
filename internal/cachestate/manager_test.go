package cachestate

import (
	"fmt"
	"testing"
	"time"

	"github.com/starford/raido/internal/testutil"
)

func newTestManager(fetch Fetcher, delay time.Duration) *Manager {
	return NewManager(fetch, delay, testutil.DiscardLogger())
}

func TestLifecycleTransitions(t *testing.T) {
	m := newTestManager(func(ownerID string) (any, error) { return nil, nil }, time.Hour)

	if m.State("o1") != StateIdle {
		t.Fatalf("expected idle, got %s", m.State("o1"))
	}

	v1, err := m.StartOrganization("o1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.State("o1") != StateOrganizing {
		t.Errorf("expected organizing, got %s", m.State("o1"))
	}
	if _, err := m.StartOrganization("o1"); err == nil {
		t.Error("second start while organizing must fail")
	}

	m.CompleteOrganization("o1", "result")
	if m.State("o1") != StateIdle {
		t.Errorf("expected idle after complete, got %s", m.State("o1"))
	}

	v2, err := m.StartOrganization("o1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if v2 != v1+1 {
		t.Errorf("version not monotonic: %d then %d", v1, v2)
	}

	m.FailOrganization("o1", fmt.Errorf("boom"))
	if m.State("o1") != StateError {
		t.Errorf("expected error state, got %s", m.State("o1"))
	}
	// Error is recoverable.
	if _, err := m.StartOrganization("o1"); err != nil {
		t.Errorf("start from error state: %v", err)
	}
}

func TestOwnersDoNotBlockEachOther(t *testing.T) {
	m := newTestManager(func(ownerID string) (any, error) { return nil, nil }, time.Hour)

	if _, err := m.StartOrganization("a"); err != nil {
		t.Fatal(err)
	}
	// A running pass for one owner must not reject another owner's pass.
	if _, err := m.StartOrganization("b"); err != nil {
		t.Fatalf("owner b blocked by owner a: %v", err)
	}
	if m.State("a") != StateOrganizing || m.State("b") != StateOrganizing {
		t.Errorf("unexpected states: a=%s b=%s", m.State("a"), m.State("b"))
	}

	m.FailOrganization("a", fmt.Errorf("boom"))
	if m.State("b") != StateOrganizing {
		t.Errorf("owner a failure leaked into owner b: %s", m.State("b"))
	}

	// Versions advance independently per owner.
	m.CompleteOrganization("b", nil)
	if _, err := m.StartOrganization("b"); err != nil {
		t.Fatal(err)
	}
	if got := m.Version("b"); got != 2 {
		t.Errorf("owner b version = %d, want 2", got)
	}
	if got := m.Version("a"); got != 1 {
		t.Errorf("owner a version = %d, want 1", got)
	}
}

func TestEventsReachListeners(t *testing.T) {
	m := newTestManager(func(ownerID string) (any, error) { return "fresh tree", nil }, 10*time.Millisecond)

	events := make(chan Event, 8)
	unsubscribe := m.Subscribe(func(ev Event) { events <- ev })
	defer unsubscribe()

	if _, err := m.StartOrganization("o1"); err != nil {
		t.Fatal(err)
	}
	m.CompleteOrganization("o1", "pass result")

	expect := func(kind EventKind) Event {
		t.Helper()
		select {
		case ev := <-events:
			if ev.Kind != kind {
				t.Fatalf("expected %s event, got %s", kind, ev.Kind)
			}
			return ev
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s event", kind)
			return Event{}
		}
	}

	start := expect(KindImmediate)
	if start.Version == 0 {
		t.Error("start event missing version")
	}
	complete := expect(KindImmediate)
	if complete.Payload != "pass result" {
		t.Errorf("unexpected payload: %v", complete.Payload)
	}
	refresh := expect(KindRefresh)
	if refresh.Payload != "fresh tree" {
		t.Errorf("refresh should carry the re-fetched state, got %v", refresh.Payload)
	}
	if refresh.Version != complete.Version {
		t.Errorf("refresh version %d does not match pass version %d", refresh.Version, complete.Version)
	}
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	m := newTestManager(func(ownerID string) (any, error) { return nil, nil }, time.Hour)

	got := make(chan Event, 1)
	m.Subscribe(func(ev Event) { panic("bad listener") })
	m.Subscribe(func(ev Event) { got <- ev })

	if _, err := m.StartOrganization("o1"); err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("second listener never received the event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := newTestManager(func(ownerID string) (any, error) { return nil, nil }, time.Hour)

	events := make(chan Event, 4)
	unsubscribe := m.Subscribe(func(ev Event) { events <- ev })
	unsubscribe()

	if _, err := m.StartOrganization("o1"); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		t.Fatalf("unsubscribed listener received %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRefreshSkippedOnFetchError(t *testing.T) {
	m := newTestManager(func(ownerID string) (any, error) { return nil, fmt.Errorf("db down") }, 5*time.Millisecond)

	events := make(chan Event, 8)
	m.Subscribe(func(ev Event) { events <- ev })

	if _, err := m.StartOrganization("o1"); err != nil {
		t.Fatal(err)
	}
	m.CompleteOrganization("o1", nil)

	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case ev := <-events:
			if ev.Kind == KindRefresh {
				t.Fatal("refresh emitted despite fetch failure")
			}
		case <-deadline:
			return
		}
	}
}
