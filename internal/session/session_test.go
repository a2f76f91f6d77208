package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"realtime-backend/internal/model"
)

func TestNewSessionStartsInStateNew(t *testing.T) {
	s := New(context.Background(), "conn-1")
	require.Equal(t, StateNew, s.State())
	require.False(t, s.IsClosed())
}

func TestMarkJoinedTransitionsState(t *testing.T) {
	s := New(context.Background(), "conn-1")
	s.MarkJoined("board-1", model.UserIdentity{UserID: "user-1"})

	require.Equal(t, StateJoined, s.State())
	require.Equal(t, "board-1", s.BoardID())
	require.Equal(t, "user-1", s.Identity().UserID)
}

func TestCloseIsIdempotentAndCancelsContext(t *testing.T) {
	s := New(context.Background(), "conn-1")
	s.Close()
	s.Close() // must not panic

	require.True(t, s.IsClosed())
	require.Equal(t, StateClosed, s.State())

	select {
	case <-s.Context().Done():
	default:
		t.Fatal("expected session context to be canceled")
	}
}
