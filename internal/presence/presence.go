// Package presence maps connections, identities, and boards entirely in
// memory: conn -> identity, conn -> boardId, boardId -> set<conn>, and
// boardId -> presences, plus the coalesced cursor buffer. None of this is
// persisted by the core; it lives and dies with the process.
package presence

import (
	"context"
	"sync"
	"time"

	"realtime-backend/internal/model"
)

// LeaveResult is returned by Leave when the departing connection had
// actually joined a board.
type LeaveResult struct {
	BoardID string
	UserID  string
	// StillPresent is true when connID's userId has already been taken over
	// by a newer connection (a reconnect), so the presence/cursor records
	// belong to that newer connection and were left untouched.
	StillPresent bool
}

// CursorQueued is returned by UpdateCursor so the caller can still
// immediately fan out a best-effort per-message update if desired; the
// batched CURSOR_BATCH is delivered separately via the ticker.
type CursorQueued struct {
	BoardID     string
	UserID      string
	DisplayName string
	AvatarColor string
}

// CursorEntry is one coalesced cursor position flushed at the end of a tick.
type CursorEntry struct {
	UserID      string
	DisplayName string
	AvatarColor string
	X           float64
	Y           float64
}

// FlushFunc is invoked once per board per tick with its pending cursor
// entries, and only for boards that had at least one queued update.
type FlushFunc func(boardID string, entries []CursorEntry)

// room is the membership and presence state for one board, created
// lazily on first join and torn down once its connection set is empty.
type room struct {
	conns     map[string]struct{}        // connID set
	presences map[string]*model.Presence // userID -> presence
	cursors   map[string]CursorEntry     // userID -> pending cursor (this tick)
	owners    map[string]string          // userID -> connID currently owning its presence
}

// Manager owns every in-memory room in the process.
type Manager struct {
	mu   sync.RWMutex
	rooms map[string]*room

	connBoard    map[string]string             // connID -> boardID
	connIdentity map[string]model.UserIdentity // connID -> identity

	batchPeriod time.Duration
	flush       FlushFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Manager. Call Start to begin the cursor-batch ticker once a
// FlushFunc is wired up.
func New(batchPeriod time.Duration) *Manager {
	return &Manager{
		rooms:        make(map[string]*room),
		connBoard:    make(map[string]string),
		connIdentity: make(map[string]model.UserIdentity),
		batchPeriod:  batchPeriod,
	}
}

// Start launches the single process-wide cursor-batch ticker. It must be
// called once, after SetFlushFunc.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.runTicker(ctx)
}

// SetFlushFunc wires the callback invoked on each batch tick.
func (m *Manager) SetFlushFunc(fn FlushFunc) {
	m.flush = fn
}

// Stop halts the cursor-batch ticker.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

func (m *Manager) runTicker(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.batchPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.flushAll()
		}
	}
}

func (m *Manager) flushAll() {
	if m.flush == nil {
		return
	}
	type pending struct {
		boardID string
		entries []CursorEntry
	}
	var batches []pending

	m.mu.Lock()
	for boardID, r := range m.rooms {
		if len(r.cursors) == 0 {
			continue
		}
		entries := make([]CursorEntry, 0, len(r.cursors))
		for _, e := range r.cursors {
			entries = append(entries, e)
		}
		r.cursors = make(map[string]CursorEntry)
		batches = append(batches, pending{boardID: boardID, entries: entries})
	}
	m.mu.Unlock()

	for _, b := range batches {
		m.flush(b.boardID, b.entries)
	}
}

func (m *Manager) getOrCreateRoom(boardID string) *room {
	if r, ok := m.rooms[boardID]; ok {
		return r
	}
	r := &room{
		conns:     make(map[string]struct{}),
		presences: make(map[string]*model.Presence),
		cursors:   make(map[string]CursorEntry),
		owners:    make(map[string]string),
	}
	m.rooms[boardID] = r
	return r
}

// Join places connID into boardID's room, replacing (not merging) any
// existing presence for the same userId: the previous connection's own
// membership is left untouched until its own Leave fires.
func (m *Manager) Join(connID, boardID string, identity model.UserIdentity) *model.Presence {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.getOrCreateRoom(boardID)
	r.conns[connID] = struct{}{}

	p := &model.Presence{
		BoardID:     boardID,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		IsAnonymous: identity.IsAnonymous,
		AvatarColor: identity.AvatarColor,
		ConnectedAt: time.Now(),
	}
	r.presences[identity.UserID] = p
	r.owners[identity.UserID] = connID

	m.connBoard[connID] = boardID
	m.connIdentity[connID] = identity

	return p
}

// Leave removes connID from whatever room it was in. Idempotent: a
// connection not currently joined is a no-op. Room teardown happens when
// the last connection leaves.
func (m *Manager) Leave(connID string) *LeaveResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	boardID, ok := m.connBoard[connID]
	if !ok {
		return nil
	}
	identity := m.connIdentity[connID]
	delete(m.connBoard, connID)
	delete(m.connIdentity, connID)

	r, ok := m.rooms[boardID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)

	stillPresent := r.owners[identity.UserID] != connID
	if !stillPresent {
		delete(r.presences, identity.UserID)
		delete(r.cursors, identity.UserID)
		delete(r.owners, identity.UserID)
	}

	if len(r.conns) == 0 {
		delete(m.rooms, boardID)
	}

	return &LeaveResult{BoardID: boardID, UserID: identity.UserID, StillPresent: stillPresent}
}

// UpdateCursor records x,y as the connection's current cursor, both on its
// Presence record (for USER_LIST) and in this tick's coalesced buffer.
func (m *Manager) UpdateCursor(connID string, x, y float64) *CursorQueued {
	m.mu.Lock()
	defer m.mu.Unlock()

	boardID, ok := m.connBoard[connID]
	if !ok {
		return nil
	}
	identity := m.connIdentity[connID]
	r, ok := m.rooms[boardID]
	if !ok {
		return nil
	}

	now := time.Now()
	if p, ok := r.presences[identity.UserID]; ok {
		p.Cursor = &model.Cursor{X: x, Y: y, T: now}
	}
	r.cursors[identity.UserID] = CursorEntry{
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		AvatarColor: identity.AvatarColor,
		X:           x,
		Y:           y,
	}

	return &CursorQueued{
		BoardID:     boardID,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		AvatarColor: identity.AvatarColor,
	}
}

// Connections returns the connIDs currently joined to boardID.
func (m *Manager) Connections(boardID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[boardID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Presences returns a snapshot of every presence record in boardID's room.
func (m *Manager) Presences(boardID string) []model.Presence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[boardID]
	if !ok {
		return nil
	}
	out := make([]model.Presence, 0, len(r.presences))
	for _, p := range r.presences {
		out = append(out, *p)
	}
	return out
}

// BoardOf returns the board a connection is currently joined to, if any.
func (m *Manager) BoardOf(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.connBoard[connID]
	return b, ok
}
