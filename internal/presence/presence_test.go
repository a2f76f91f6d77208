package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"realtime-backend/internal/model"
)

func TestJoinThenPresencesReportsUser(t *testing.T) {
	m := New(50 * time.Millisecond)
	m.Join("conn-1", "board-1", model.UserIdentity{UserID: "user-1", DisplayName: "Alice"})

	presences := m.Presences("board-1")
	require.Len(t, presences, 1)
	require.Equal(t, "user-1", presences[0].UserID)
}

func TestLeaveIsIdempotent(t *testing.T) {
	m := New(50 * time.Millisecond)
	m.Join("conn-1", "board-1", model.UserIdentity{UserID: "user-1"})

	first := m.Leave("conn-1")
	require.NotNil(t, first)
	require.Equal(t, "board-1", first.BoardID)

	second := m.Leave("conn-1")
	require.Nil(t, second)
}

func TestLeaveTearsDownEmptyRoom(t *testing.T) {
	m := New(50 * time.Millisecond)
	m.Join("conn-1", "board-1", model.UserIdentity{UserID: "user-1"})
	m.Leave("conn-1")

	require.Empty(t, m.Connections("board-1"))
	require.Empty(t, m.Presences("board-1"))
}

func TestUpdateCursorQueuesForFlush(t *testing.T) {
	m := New(20 * time.Millisecond)
	m.Join("conn-1", "board-1", model.UserIdentity{UserID: "user-1", DisplayName: "Alice"})

	flushed := make(chan []CursorEntry, 1)
	m.SetFlushFunc(func(boardID string, entries []CursorEntry) {
		if boardID == "board-1" {
			flushed <- entries
		}
	})

	m.UpdateCursor("conn-1", 10, 20)

	m.Start(context.Background())
	defer m.Stop()

	select {
	case entries := <-flushed:
		require.Len(t, entries, 1)
		require.Equal(t, "user-1", entries[0].UserID)
		require.Equal(t, 10.0, entries[0].X)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cursor batch flush")
	}
}

func TestJoinReplacesPriorPresenceForSameUser(t *testing.T) {
	m := New(50 * time.Millisecond)
	m.Join("conn-1", "board-1", model.UserIdentity{UserID: "user-1", DisplayName: "Alice"})
	m.Join("conn-2", "board-1", model.UserIdentity{UserID: "user-1", DisplayName: "Alice-reconnected"})

	presences := m.Presences("board-1")
	require.Len(t, presences, 1)
	require.Equal(t, "Alice-reconnected", presences[0].DisplayName)
}

func TestLeaveOfStaleConnectionDoesNotEvictReconnectedUser(t *testing.T) {
	m := New(50 * time.Millisecond)
	m.Join("conn-1", "board-1", model.UserIdentity{UserID: "user-1", DisplayName: "Alice"})
	m.Join("conn-2", "board-1", model.UserIdentity{UserID: "user-1", DisplayName: "Alice-reconnected"})

	result := m.Leave("conn-1")
	require.NotNil(t, result)
	require.True(t, result.StillPresent)

	presences := m.Presences("board-1")
	require.Len(t, presences, 1)
	require.Equal(t, "Alice-reconnected", presences[0].DisplayName)

	result = m.Leave("conn-2")
	require.NotNil(t, result)
	require.False(t, result.StillPresent)
	require.Empty(t, m.Presences("board-1"))
}
