// Package sequencer assigns the canonical, strictly increasing seq for
// every DrawEvent on a board. One boardState exists per active board; its
// mutex is the hot, short critical section the whole write path funnels
// through.
package sequencer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"realtime-backend/internal/eventstore"
	"realtime-backend/internal/model"
)

// boardState holds the in-memory next-seq counter for one board.
type boardState struct {
	mu      sync.Mutex
	nextSeq int64
}

// Sequencer serializes event assignment per board. Boards not yet seen are
// lazily initialized from the store's MaxSeq on first use.
type Sequencer struct {
	store *eventstore.Store

	mapMu  sync.Mutex
	boards map[string]*boardState
}

// New builds a Sequencer backed by store.
func New(store *eventstore.Store) *Sequencer {
	return &Sequencer{
		store:  store,
		boards: make(map[string]*boardState),
	}
}

func (s *Sequencer) stateFor(boardID string) (*boardState, error) {
	s.mapMu.Lock()
	st, ok := s.boards[boardID]
	if ok {
		s.mapMu.Unlock()
		return st, nil
	}
	s.mapMu.Unlock()

	maxSeq, err := s.store.MaxSeq(boardID)
	if err != nil {
		return nil, fmt.Errorf("sequencer: init board %s: %w", boardID, err)
	}

	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if existing, ok := s.boards[boardID]; ok {
		return existing, nil
	}
	st = &boardState{nextSeq: maxSeq + 1}
	s.boards[boardID] = st
	return st, nil
}

// EnsureInitialized initializes the board's sequencer state if needed,
// without sequencing an event. Used by HELLO/CREATE_BOARD.
func (s *Sequencer) EnsureInitialized(boardID string) error {
	_, err := s.stateFor(boardID)
	return err
}

// Sequence reserves the next seq for boardID, persists the event, and
// returns it. On persistence failure the reservation is rolled back so no
// gap is committed to the in-memory counter.
func (s *Sequencer) Sequence(boardID, userID string, eventType model.DrawEventType, payload json.RawMessage) (*model.DrawEvent, error) {
	st, err := s.stateFor(boardID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	seq := st.nextSeq
	event := &model.DrawEvent{
		BoardID:   boardID,
		Seq:       seq,
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	if err := s.store.AppendEvent(event); err != nil {
		// Reservation not committed: nextSeq is left untouched so the
		// same seq is retried next call.
		return nil, err
	}

	st.nextSeq = seq + 1
	return event, nil
}
