package sequencer

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"realtime-backend/internal/eventstore"
	"realtime-backend/internal/model"
)

func newTestSequencer(t *testing.T) (*Sequencer, *eventstore.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Board{}, &model.DrawEvent{}, &model.Snapshot{}))
	store := eventstore.New(db)
	_, err = store.CreateBoard("board-1", "", "owner-1", false)
	require.NoError(t, err)
	return New(store), store
}

func TestSequenceAssignsStrictlyIncreasingSeq(t *testing.T) {
	seq, _ := newTestSequencer(t)

	e1, err := seq.Sequence("board-1", "user-1", model.DrawEventStroke, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, int64(1), e1.Seq)

	e2, err := seq.Sequence("board-1", "user-1", model.DrawEventStroke, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, int64(2), e2.Seq)
}

func TestSequenceInitializesFromExistingMaxSeq(t *testing.T) {
	seq, store := newTestSequencer(t)
	require.NoError(t, store.AppendEvent(&model.DrawEvent{
		BoardID: "board-1", Seq: 1, Type: model.DrawEventStroke, UserID: "u", Payload: json.RawMessage(`{}`),
	}))

	e, err := seq.Sequence("board-1", "user-1", model.DrawEventStroke, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, int64(2), e.Seq)
}

func TestSequenceIsSerializedUnderConcurrency(t *testing.T) {
	seq, _ := newTestSequencer(t)

	const n = 50
	var wg sync.WaitGroup
	seqs := make([]int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			e, err := seq.Sequence("board-1", "user-1", model.DrawEventStroke, json.RawMessage(`{}`))
			require.NoError(t, err)
			seqs[idx] = e.Seq
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, s := range seqs {
		require.False(t, seen[s], "seq %d assigned twice", s)
		seen[s] = true
	}
	for want := int64(1); want <= n; want++ {
		require.True(t, seen[want], "missing seq %d", want)
	}
}
