package eventstore

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"realtime-backend/internal/model"
)

// newTestStore opens an isolated in-memory sqlite database per test, named
// after the test itself so parallel/sequential runs never share state.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Board{}, &model.DrawEvent{}, &model.Snapshot{}))
	return New(db)
}

func TestCreateAndGetBoard(t *testing.T) {
	s := newTestStore(t)

	board, err := s.CreateBoard("board-1", "My Board", "owner-1", false)
	require.NoError(t, err)
	require.Equal(t, "board-1", board.ID)

	got, err := s.GetBoard("board-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "My Board", got.Name)
}

func TestGetBoardReturnsNilWhenMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetBoard("does-not-exist")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestAppendEventThenEventsInOrder(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateBoard("board-1", "", "owner-1", false)
	require.NoError(t, err)

	for seq := int64(1); seq <= 3; seq++ {
		err := s.AppendEvent(&model.DrawEvent{
			BoardID: "board-1",
			Seq:     seq,
			Type:    model.DrawEventStroke,
			UserID:  "user-1",
			Payload: json.RawMessage(`{}`),
		})
		require.NoError(t, err)
	}

	events, err := s.Events("board-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, int64(1), events[0].Seq)
	require.Equal(t, int64(3), events[2].Seq)
}

func TestAppendEventCollisionReturnsErrSeqCollision(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateBoard("board-1", "", "owner-1", false)
	require.NoError(t, err)

	event := &model.DrawEvent{BoardID: "board-1", Seq: 1, Type: model.DrawEventStroke, UserID: "u", Payload: json.RawMessage(`{}`)}
	require.NoError(t, s.AppendEvent(event))

	dup := &model.DrawEvent{BoardID: "board-1", Seq: 1, Type: model.DrawEventStroke, UserID: "u", Payload: json.RawMessage(`{}`)}
	err = s.AppendEvent(dup)
	require.ErrorIs(t, err, ErrSeqCollision)
}

func TestEventsAfterFiltersBySeq(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateBoard("board-1", "", "owner-1", false)
	require.NoError(t, err)

	for seq := int64(1); seq <= 5; seq++ {
		require.NoError(t, s.AppendEvent(&model.DrawEvent{
			BoardID: "board-1", Seq: seq, Type: model.DrawEventStroke, UserID: "u", Payload: json.RawMessage(`{}`),
		}))
	}

	events, err := s.EventsAfter("board-1", 3)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(4), events[0].Seq)
}

func TestDeleteBoardRequiresOwnerMatch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateBoard("board-1", "", "owner-1", false)
	require.NoError(t, err)

	deleted, err := s.DeleteBoard("board-1", "someone-else")
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = s.DeleteBoard("board-1", "owner-1")
	require.NoError(t, err)
	require.True(t, deleted)

	got, err := s.GetBoard("board-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSaveAndGetSnapshot(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateBoard("board-1", "", "owner-1", false)
	require.NoError(t, err)

	require.NoError(t, s.SaveSnapshot("board-1", 10, "base64data", 1.5, 2.5))

	snap, err := s.GetSnapshot("board-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, int64(10), snap.Seq)
	require.Equal(t, "base64data", snap.ImageData)

	require.NoError(t, s.SaveSnapshot("board-1", 20, "newer-base64data", 3, 4))

	snap, err = s.GetSnapshot("board-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, int64(20), snap.Seq)
	require.Equal(t, "newer-base64data", snap.ImageData)
}
