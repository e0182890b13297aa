// Package cachestate tracks optimistic UI state for organize passes and
// reconciles it against the authoritative store with a deferred refresh.
package cachestate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// States of the organize cycle.
type State string

const (
	StateIdle       State = "idle"
	StateOrganizing State = "organizing"
	StateError      State = "error"
)

// Event kinds emitted to listeners.
type EventKind string

const (
	KindImmediate EventKind = "immediate"
	KindRefresh   EventKind = "refresh"
	KindError     EventKind = "error"
)

// Event is one cache notification. Version is a monotonic counter bumped at
// the start of each pass; listeners can use it to discard stale results.
type Event struct {
	Kind      EventKind `json:"kind"`
	OwnerID   string    `json:"owner_id"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Version   uint64    `json:"version"`
}

// Listener receives events synchronously. A panicking listener is recovered
// so delivery to the others continues.
type Listener func(Event)

// Fetcher re-reads the authoritative entity state for an owner. The refresh
// is a pure re-fetch: no merging with the optimistic view happens here.
type Fetcher func(ownerID string) (any, error)

// Manager runs one cache/consistency state machine per owner:
// Idle -> Organizing -> {Idle, Error}. Owners never block each other.
type Manager struct {
	fetch        Fetcher
	refreshDelay time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	owners    map[string]*ownerState
	listeners map[int]Listener
	nextID    int
}

type ownerState struct {
	state   State
	version uint64
}

// NewManager creates a manager with every owner in the Idle state.
func NewManager(fetch Fetcher, refreshDelay time.Duration, logger *slog.Logger) *Manager {
	if refreshDelay <= 0 {
		refreshDelay = 500 * time.Millisecond
	}
	return &Manager{
		fetch:        fetch,
		refreshDelay: refreshDelay,
		logger:       logger,
		owners:       make(map[string]*ownerState),
		listeners:    make(map[int]Listener),
	}
}

// ownerLocked returns the owner's machine, creating it Idle on first use.
// Callers must hold m.mu.
func (m *Manager) ownerLocked(ownerID string) *ownerState {
	st, ok := m.owners[ownerID]
	if !ok {
		st = &ownerState{state: StateIdle}
		m.owners[ownerID] = st
	}
	return st
}

// State returns the owner's current machine state.
func (m *Manager) State(ownerID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerLocked(ownerID).state
}

// Version returns the owner's current cache version.
func (m *Manager) Version(ownerID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerLocked(ownerID).version
}

// Subscribe registers a listener and returns its unsubscribe function.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// StartOrganization moves the owner from Idle (or Error) to Organizing,
// bumps the owner's cache version, and emits an immediate event.
func (m *Manager) StartOrganization(ownerID string) (uint64, error) {
	m.mu.Lock()
	st := m.ownerLocked(ownerID)
	if st.state == StateOrganizing {
		m.mu.Unlock()
		return 0, fmt.Errorf("cachestate: owner %s already organizing", ownerID)
	}
	st.state = StateOrganizing
	st.version++
	version := st.version
	m.mu.Unlock()

	m.emit(Event{Kind: KindImmediate, OwnerID: ownerID, Payload: map[string]string{"status": "organizing"}, Version: version})
	return version, nil
}

// CompleteOrganization applies the pass result optimistically, returns to
// Idle, and schedules the deferred authoritative refresh.
func (m *Manager) CompleteOrganization(ownerID string, result any) {
	m.mu.Lock()
	st := m.ownerLocked(ownerID)
	st.state = StateIdle
	version := st.version
	m.mu.Unlock()

	m.emit(Event{Kind: KindImmediate, OwnerID: ownerID, Payload: result, Version: version})

	time.AfterFunc(m.refreshDelay, func() {
		payload, err := m.fetch(ownerID)
		if err != nil {
			m.logger.Warn("cachestate: refresh fetch failed",
				slog.String("owner", ownerID), slog.String("error", err.Error()))
			return
		}
		m.emit(Event{Kind: KindRefresh, OwnerID: ownerID, Payload: payload, Version: version})
	})
}

// FailOrganization moves the owner to Error and emits an error event. A
// later StartOrganization recovers from Error.
func (m *Manager) FailOrganization(ownerID string, cause error) {
	m.mu.Lock()
	st := m.ownerLocked(ownerID)
	st.state = StateError
	version := st.version
	m.mu.Unlock()

	m.emit(Event{Kind: KindError, OwnerID: ownerID, Payload: map[string]string{"error": cause.Error()}, Version: version})
}

// emit fans out synchronously to a snapshot of the listeners.
func (m *Manager) emit(ev Event) {
	ev.Timestamp = time.Now()

	m.mu.Lock()
	snapshot := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		snapshot = append(snapshot, l)
	}
	m.mu.Unlock()

	for _, l := range snapshot {
		m.deliver(l, ev)
	}
}

func (m *Manager) deliver(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("cachestate: listener panicked", slog.Any("panic", r))
		}
	}()
	l(ev)
}
