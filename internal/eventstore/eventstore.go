// Package eventstore provides the durable, transactional log behind every
// board: a board catalog, an append-only event log keyed by
// (board_id, seq), and a single-row-per-board snapshot table.
package eventstore

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"realtime-backend/internal/model"
)

// ErrSeqCollision is returned by AppendEvent when the (boardId, seq) pair
// already exists. The sequencer treats this as a bug in its own
// bookkeeping and rolls back its reservation; it must never be swallowed.
var ErrSeqCollision = errors.New("eventstore: seq collision")

// Store wraps a GORM handle with the Event Store's operations.
type Store struct {
	db *gorm.DB
}

// New builds a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetBoard returns the board with the given id, or nil if it does not exist.
func (s *Store) GetBoard(id string) (*model.Board, error) {
	var b model.Board
	err := s.db.First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBoard inserts a new board row.
func (s *Store) CreateBoard(id, name, ownerID string, isPrivate bool) (*model.Board, error) {
	b := &model.Board{
		ID:        id,
		Name:      name,
		OwnerID:   ownerID,
		IsPrivate: isPrivate,
	}
	if err := s.db.Create(b).Error; err != nil {
		return nil, fmt.Errorf("eventstore: create board: %w", err)
	}
	return b, nil
}

// DeleteBoard removes a board and its events/snapshot, but only if ownerID
// matches the board's owner. Returns false if the board does not exist or
// is not owned by ownerID; the caller surfaces this as a 404.
func (s *Store) DeleteBoard(id, ownerID string) (bool, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var b model.Board
		if err := tx.First(&b, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.DrawEvent{}, "board_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Snapshot{}, "board_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&b).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetUserBoards returns boards owned by ownerID, most recently created first.
func (s *Store) GetUserBoards(ownerID string) ([]model.Board, error) {
	var boards []model.Board
	err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&boards).Error
	return boards, err
}

// MaxSeq returns the highest seq recorded for boardId, or 0 if it has no events.
func (s *Store) MaxSeq(boardID string) (int64, error) {
	var maxSeq int64
	err := s.db.Model(&model.DrawEvent{}).
		Where("board_id = ?", boardID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	return maxSeq, err
}

// CountEvents returns the number of events recorded for boardId.
func (s *Store) CountEvents(boardID string) (int64, error) {
	var count int64
	err := s.db.Model(&model.DrawEvent{}).Where("board_id = ?", boardID).Count(&count).Error
	return count, err
}

// AppendEvent inserts event. A (board_id, seq) primary-key collision is
// reported as ErrSeqCollision rather than silently ignored or overwritten.
func (s *Store) AppendEvent(event *model.DrawEvent) error {
	err := s.db.Create(event).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return ErrSeqCollision
	}
	return err
}

// Events returns the full ordered log for boardId.
func (s *Store) Events(boardID string) ([]model.DrawEvent, error) {
	var events []model.DrawEvent
	err := s.db.Where("board_id = ?", boardID).Order("seq ASC").Find(&events).Error
	return events, err
}

// EventsAfter returns events with seq strictly greater than afterSeq, in order.
func (s *Store) EventsAfter(boardID string, afterSeq int64) ([]model.DrawEvent, error) {
	var events []model.DrawEvent
	err := s.db.Where("board_id = ? AND seq > ?", boardID, afterSeq).
		Order("seq ASC").Find(&events).Error
	return events, err
}

// GetSnapshot returns the board's snapshot, or nil if none exists.
func (s *Store) GetSnapshot(boardID string) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.db.First(&snap, "board_id = ?", boardID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveSnapshot upserts the single snapshot row for boardID.
func (s *Store) SaveSnapshot(boardID string, seq int64, imageData string, offsetX, offsetY float64) error {
	snap := model.Snapshot{
		BoardID:   boardID,
		Seq:       seq,
		ImageData: imageData,
		OffsetX:   offsetX,
		OffsetY:   offsetY,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "board_id"}},
		UpdateAll: true,
	}).Create(&snap).Error
}

// DeleteSnapshot removes the board's snapshot row, if any.
func (s *Store) DeleteSnapshot(boardID string) error {
	return s.db.Delete(&model.Snapshot{}, "board_id = ?", boardID).Error
}

// isUniqueViolation recognizes a Postgres unique/primary-key violation
// (SQLSTATE 23505) or SQLite's "UNIQUE constraint failed" error without
// importing the driver error types directly, so the store stays agnostic
// to the specific driver in use.
func isUniqueViolation(err error) bool {
	type sqlStater interface {
		SQLState() string
	}
	var withCode sqlStater
	if errors.As(err, &withCode) {
		return withCode.SQLState() == "23505"
	}
	return errContains(err, "23505") || errContains(err, "duplicate key") ||
		errContains(err, "UNIQUE constraint failed")
}

func errContains(err error, substr string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for i := 0; i+len(substr) <= len(msg); i++ {
		if msg[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
