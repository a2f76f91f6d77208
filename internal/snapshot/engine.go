package snapshot

import (
	"log"
	"sync"

	"realtime-backend/internal/eventstore"
	"realtime-backend/internal/model"
)

// Engine wires the rendering algorithm to the event store and enforces
// the "at most one compaction in flight per board" rule. Compaction never
// blocks the write path: TriggerIfDue always returns immediately.
type Engine struct {
	store  *eventstore.Store
	config RenderConfig

	mu          sync.Mutex
	inProgress  map[string]bool
}

// New builds an Engine backed by store.
func New(store *eventstore.Store, cfg RenderConfig) *Engine {
	return &Engine{
		store:      store,
		config:     cfg,
		inProgress: make(map[string]bool),
	}
}

// TriggerIfDue schedules compaction for boardID when seq is a multiple of
// threshold and no compaction is already in progress for that board. It
// never blocks; the actual work happens on a new goroutine.
func (e *Engine) TriggerIfDue(boardID string, seq int64, threshold int64) {
	if threshold <= 0 || seq%threshold != 0 {
		return
	}

	e.mu.Lock()
	if e.inProgress[boardID] {
		e.mu.Unlock()
		return
	}
	e.inProgress[boardID] = true
	e.mu.Unlock()

	go e.compact(boardID, seq)
}

// compact pins the snapshot at targetSeq: events appended after TriggerIfDue
// was called but before this goroutine runs must not be folded in, or the
// persisted seq would drift past the triggering multiple.
func (e *Engine) compact(boardID string, targetSeq int64) {
	defer func() {
		e.mu.Lock()
		delete(e.inProgress, boardID)
		e.mu.Unlock()
	}()

	events, err := e.store.Events(boardID)
	if err != nil {
		log.Printf("[Snapshot] compaction for board %s: load events failed: %v", boardID, err)
		return
	}
	events = upToSeq(events, targetSeq)
	if len(events) == 0 {
		return
	}

	result, err := Render(events, e.config)
	if err != nil {
		log.Printf("[Snapshot] compaction for board %s: render failed: %v", boardID, err)
		return
	}

	if err := e.store.SaveSnapshot(boardID, targetSeq, result.ImageData, result.OffsetX, result.OffsetY); err != nil {
		log.Printf("[Snapshot] compaction for board %s: save failed: %v", boardID, err)
		return
	}

	log.Printf("[Snapshot] compacted board %s at seq %d", boardID, targetSeq)
}

func upToSeq(events []model.DrawEvent, targetSeq int64) []model.DrawEvent {
	for i, ev := range events {
		if ev.Seq > targetSeq {
			return events[:i]
		}
	}
	return events
}
