package runtime

import (
	"strings"
	"sync"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/clog"
	"github.com/coatyio/choreo/transport"
	"github.com/google/uuid"
)

// shortID mirrors the teacher's components.UuidShort: the first segment of
// a UUID v4 string, used only to keep log lines readable.
func shortID(id string) string {
	if i := strings.Index(id, "-"); i != -1 {
		return id[:i]
	}
	return id
}

// SessionMetadata is the per-(endpoint,peer) bookkeeping of spec.md §3:
// state_description, is_complete and operation_count, updated atomically
// with each primitive before it suspends for I/O and again after success
// (spec.md §4.6 "Session metadata").
type SessionMetadata struct {
	mu               sync.Mutex
	StateDescription string
	IsComplete       bool
	OperationCount   int
}

func newSessionMetadata() *SessionMetadata {
	return &SessionMetadata{StateDescription: "idle"}
}

// recordStart updates state_description before a primitive suspends for
// I/O, without incrementing operation_count (that happens only on
// success, per spec.md §4.6).
func (m *SessionMetadata) recordStart(desc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StateDescription = desc
}

// recordSuccess increments operation_count and updates state_description
// after a primitive completes successfully. operation_count is strictly
// non-decreasing (spec.md §8 property 8).
func (m *SessionMetadata) recordSuccess(desc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OperationCount++
	m.StateDescription = desc
}

// markComplete sets is_complete; only the interpreter reaching an End node
// for this peer's local type may call this (spec.md §3 invariant, §5
// "is_complete becomes true only via End, never via cancellation").
func (m *SessionMetadata) markComplete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IsComplete = true
}

// Snapshot returns a copy of the metadata safe to read without holding the
// endpoint's lock, used by cmd/choreorun to print final session state.
func (m *SessionMetadata) Snapshot() SessionMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SessionMetadata{StateDescription: m.StateDescription, IsComplete: m.IsComplete, OperationCount: m.OperationCount}
}

// Endpoint is the runtime object for one role (spec.md §3 "Endpoint"): it
// owns a peer -> Channel mapping (each channel's exclusive owner) and a
// peer -> SessionMetadata mapping. An endpoint is alive from construction
// until CloseAllChannels.
type Endpoint struct {
	*clog.CLogger
	ID   string
	Role ast.Role

	mu       sync.Mutex
	channels map[string]transport.Channel
	metadata map[string]*SessionMetadata
	closed   bool
}

// NewEndpoint constructs a semi-initialized Endpoint for role, following
// the teacher's NewCoordinator/NewWorker two-phase construct-then-run
// shape: channels are bound afterward via Bind, one per peer.
func NewEndpoint(role ast.Role) *Endpoint {
	id := uuid.NewString()
	return &Endpoint{
		CLogger:  clog.New("endpoint %s %s ", role.Name, shortID(id)),
		ID:       id,
		Role:     role,
		channels: map[string]transport.Channel{},
		metadata: map[string]*SessionMetadata{},
	}
}

// Bind attaches ch as this endpoint's exclusive channel to peer,
// initializing that peer's SessionMetadata. Rebinding an already-bound
// peer replaces the channel (the caller is responsible for having closed
// the old one).
func (e *Endpoint) Bind(peer ast.Role, ch transport.Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[peer.Name] = ch
	if _, ok := e.metadata[peer.Name]; !ok {
		e.metadata[peer.Name] = newSessionMetadata()
	}
}

// Channel returns the channel bound to peer, if any.
func (e *Endpoint) Channel(peer ast.Role) (transport.Channel, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.channels[peer.Name]
	return ch, ok
}

// Metadata returns the SessionMetadata for peer, creating it (in "idle"
// state, unbound) if this endpoint has never seen that peer. Runtime
// primitives always go through this rather than indexing the map directly
// so that error paths still have somewhere to record operation_count.
func (e *Endpoint) Metadata(peer ast.Role) *SessionMetadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	md, ok := e.metadata[peer.Name]
	if !ok {
		md = newSessionMetadata()
		e.metadata[peer.Name] = md
	}
	return md
}

// Peers returns the names of every peer this endpoint has bound a channel
// to, for diagnostics (cmd/choreorun's final metadata dump).
func (e *Endpoint) Peers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.channels))
	for name := range e.channels {
		names = append(names, name)
	}
	return names
}

// CloseAllChannels closes every channel this endpoint owns. Idempotent and
// cannot fail, per spec.md §5 "Resource release".
func (e *Endpoint) CloseAllChannels() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, ch := range e.channels {
		ch.Close()
	}
}
