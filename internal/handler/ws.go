package handler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"realtime-backend/internal/auth"
	"realtime-backend/internal/eventstore"
	"realtime-backend/internal/identity"
	"realtime-backend/internal/model"
	"realtime-backend/internal/presence"
	"realtime-backend/internal/protocol"
	"realtime-backend/internal/ratelimit"
	"realtime-backend/internal/sequencer"
	"realtime-backend/internal/session"
	"realtime-backend/internal/snapshot"
)

// connEntry is one live socket plus the mutex that serializes writes to
// it, matching the "never let two goroutines Write the same conn at once"
// discipline broadcast fan-out needs.
type connEntry struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// WSHandler is the Protocol Router and Session Lifecycle owner: it accepts
// upgraded connections, runs the HELLO handshake, and dispatches every
// subsequent frame per the wire protocol's dispatch table.
type WSHandler struct {
	store     *eventstore.Store
	seq       *sequencer.Sequencer
	presences *presence.Manager
	verifier  *auth.Verifier
	snapshots *snapshot.Engine

	compactionThreshold int64
	rateLimitConfig     ratelimit.Config

	mu    sync.RWMutex
	conns map[string]*connEntry // connID -> socket
}

// NewWSHandler builds a WSHandler. It also wires itself as the Presence
// Manager's cursor-batch FlushFunc, since only the router can fan messages
// out to live sockets.
func NewWSHandler(
	store *eventstore.Store,
	seq *sequencer.Sequencer,
	presences *presence.Manager,
	verifier *auth.Verifier,
	snapshots *snapshot.Engine,
	compactionThreshold int64,
	rateLimitConfig ratelimit.Config,
) *WSHandler {
	h := &WSHandler{
		store:               store,
		seq:                 seq,
		presences:            presences,
		verifier:             verifier,
		snapshots:            snapshots,
		compactionThreshold:  compactionThreshold,
		rateLimitConfig:      rateLimitConfig,
		conns:                make(map[string]*connEntry),
	}
	presences.SetFlushFunc(h.flushCursorBatch)
	return h
}

// Handle is the fiber/contrib/websocket handler func: one goroutine per
// connection, reading frames until the socket closes or errors.
func (h *WSHandler) Handle(conn *websocket.Conn) {
	connID := uuid.NewString()
	entry := &connEntry{conn: conn}

	h.mu.Lock()
	h.conns[connID] = entry
	h.mu.Unlock()

	sess := session.New(context.Background(), connID)
	limiter := ratelimit.New(h.rateLimitConfig)

	defer h.cleanup(connID, sess)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(connID, protocol.ErrInvalidJSON, "malformed frame")
			continue
		}

		h.dispatch(sess, limiter, env)

		if sess.IsClosed() {
			return
		}
	}
}

func (h *WSHandler) dispatch(sess *session.Session, limiter *ratelimit.Limiter, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeHello:
		h.handleHello(sess, env.Payload)
	case protocol.TypePing:
		h.sendMessage(sess.ID, protocol.TypePong, struct{}{})
	case protocol.TypeCreateBoard:
		h.handleCreateBoard(sess, env.Payload)
	case protocol.TypeDrawEvent:
		h.handleDrawEvent(sess, limiter, env.Payload)
	case protocol.TypeCursorMove:
		h.handleCursorMove(sess, limiter, env.Payload)
	case protocol.TypeLeaveBoard:
		h.handleLeaveBoard(sess)
	default:
		h.sendError(sess.ID, protocol.ErrUnknownMessage, "")
	}
}

func (h *WSHandler) handleHello(sess *session.Session, raw json.RawMessage) {
	if sess.State() == session.StateJoined {
		h.sendError(sess.ID, protocol.ErrAlreadyJoined, "HELLO already completed on this connection")
		return
	}

	var payload protocol.HelloPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(sess.ID, protocol.ErrInvalidJSON, "invalid HELLO payload")
		return
	}

	verifiedUserID, _ := h.verifier.Verify(payload.AuthToken)

	board, err := h.store.GetBoard(payload.BoardID)
	if err != nil {
		h.sendError(sess.ID, protocol.ErrJoinFailed, "")
		return
	}
	if board == nil {
		board, err = h.store.CreateBoard(payload.BoardID, "", "", false)
		if err != nil {
			h.sendError(sess.ID, protocol.ErrJoinFailed, "")
			return
		}
	}

	if board.IsPrivate && (verifiedUserID == "" || verifiedUserID != board.OwnerID) {
		h.sendMessage(sess.ID, protocol.TypeAccessDenied, protocol.AccessDeniedPayload{
			BoardID: board.ID,
			Reason:  "board is private",
		})
		return
	}

	if err := h.seq.EnsureInitialized(board.ID); err != nil {
		h.sendError(sess.ID, protocol.ErrJoinFailed, "")
		return
	}

	userID, isAnonymous := identity.Resolve(verifiedUserID, payload.ClientID)
	ident := model.UserIdentity{
		UserID:      userID,
		DisplayName: identity.DisplayName(userID, payload.DisplayName, isAnonymous),
		IsAnonymous: isAnonymous,
		AvatarColor: identity.AvatarColor(userID),
	}

	h.presences.Join(sess.ID, board.ID, ident)
	sess.MarkJoined(board.ID, ident)

	h.sendMessage(sess.ID, protocol.TypeWelcome, protocol.WelcomePayload{
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		AvatarColor: ident.AvatarColor,
	})

	h.deliverSync(sess.ID, board.ID, payload.ResumeFromSeq)

	h.sendMessage(sess.ID, protocol.TypeUserList, protocol.UserListPayload{
		BoardID: board.ID,
		Users:   h.presences.Presences(board.ID),
	})

	h.broadcastExcept(board.ID, sess.ID, protocol.TypeUserJoin, protocol.UserJoinPayload{
		BoardID: board.ID,
		User: model.Presence{
			BoardID:     board.ID,
			UserID:      ident.UserID,
			DisplayName: ident.DisplayName,
			IsAnonymous: ident.IsAnonymous,
			AvatarColor: ident.AvatarColor,
		},
	})
}

// deliverSync implements the sync delivery policy: delta resume takes
// priority over a snapshot, which takes priority over a full replay.
func (h *WSHandler) deliverSync(connID, boardID string, resumeFromSeq int64) {
	lastSeq, err := h.store.MaxSeq(boardID)
	if err != nil {
		h.sendError(connID, protocol.ErrJoinFailed, "")
		return
	}

	var payload protocol.SyncSnapshotPayload
	payload.BoardID = boardID
	payload.LastSeq = lastSeq

	switch {
	case resumeFromSeq > 0:
		events, err := h.store.EventsAfter(boardID, resumeFromSeq)
		if err != nil {
			h.sendError(connID, protocol.ErrJoinFailed, "")
			return
		}
		payload.IsDelta = true
		payload.Events = events

	default:
		snap, err := h.store.GetSnapshot(boardID)
		if err != nil {
			h.sendError(connID, protocol.ErrJoinFailed, "")
			return
		}
		if snap != nil {
			events, err := h.store.EventsAfter(boardID, snap.Seq)
			if err != nil {
				h.sendError(connID, protocol.ErrJoinFailed, "")
				return
			}
			payload.IsDelta = false
			payload.Events = events
			payload.Snapshot = &protocol.SnapshotRef{
				ImageData: snap.ImageData,
				Seq:       snap.Seq,
				OffsetX:   snap.OffsetX,
				OffsetY:   snap.OffsetY,
			}
		} else {
			events, err := h.store.Events(boardID)
			if err != nil {
				h.sendError(connID, protocol.ErrJoinFailed, "")
				return
			}
			payload.IsDelta = false
			payload.Events = events
		}
	}

	h.sendMessage(connID, protocol.TypeSyncSnapshot, payload)
}

func (h *WSHandler) handleCreateBoard(sess *session.Session, raw json.RawMessage) {
	var payload protocol.CreateBoardPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(sess.ID, protocol.ErrInvalidJSON, "invalid CREATE_BOARD payload")
		return
	}

	userID, ok := h.verifier.Verify(payload.ClerkToken)
	if !ok {
		h.sendError(sess.ID, protocol.ErrUnauthorized, "board creation requires a verified token")
		return
	}

	boardID := uuid.NewString()
	board, err := h.store.CreateBoard(boardID, payload.Name, userID, payload.IsPrivate)
	if err != nil {
		h.sendError(sess.ID, protocol.ErrCreateFailed, "")
		return
	}
	if err := h.seq.EnsureInitialized(board.ID); err != nil {
		h.sendError(sess.ID, protocol.ErrCreateFailed, "")
		return
	}

	h.sendMessage(sess.ID, protocol.TypeBoardCreated, protocol.BoardCreatedPayload{
		BoardID:   board.ID,
		Name:      board.Name,
		IsPrivate: board.IsPrivate,
	})
}

func (h *WSHandler) handleDrawEvent(sess *session.Session, limiter *ratelimit.Limiter, raw json.RawMessage) {
	if sess.State() != session.StateJoined {
		h.sendError(sess.ID, protocol.ErrNotJoined, "")
		return
	}
	if !limiter.Allow(ratelimit.ClassDraw) {
		return
	}

	var in protocol.DrawEventInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.sendError(sess.ID, protocol.ErrInvalidJSON, "invalid DRAW_EVENT payload")
		return
	}
	if !in.Type.Valid() {
		h.sendError(sess.ID, protocol.ErrInvalidJSON, "unrecognized draw event type")
		return
	}

	boardID := sess.BoardID()
	userID := sess.Identity().UserID

	event, err := h.seq.Sequence(boardID, userID, in.Type, in.Payload)
	if err != nil {
		h.sendError(sess.ID, protocol.ErrDrawFailed, "")
		return
	}

	out := protocol.DrawEventOutbound{
		BoardID:   event.BoardID,
		Seq:       event.Seq,
		Type:      event.Type,
		UserID:    event.UserID,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Payload:   event.Payload,
	}
	h.broadcast(boardID, protocol.TypeDrawEvent, out)

	h.snapshots.TriggerIfDue(boardID, event.Seq, h.compactionThreshold)
}

func (h *WSHandler) handleCursorMove(sess *session.Session, limiter *ratelimit.Limiter, raw json.RawMessage) {
	if sess.State() != session.StateJoined {
		h.sendError(sess.ID, protocol.ErrNotJoined, "")
		return
	}
	if !limiter.Allow(ratelimit.ClassCursor) {
		return
	}

	var payload protocol.CursorMovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(sess.ID, protocol.ErrInvalidJSON, "invalid CURSOR_MOVE payload")
		return
	}

	h.presences.UpdateCursor(sess.ID, payload.X, payload.Y)
}

func (h *WSHandler) handleLeaveBoard(sess *session.Session) {
	h.leave(sess)
}

// flushCursorBatch is the Presence Manager's FlushFunc: called once per
// board per tick with only the boards that had pending cursor updates.
func (h *WSHandler) flushCursorBatch(boardID string, entries []presence.CursorEntry) {
	cursors := make([]protocol.CursorEntryOutbound, 0, len(entries))
	for _, e := range entries {
		cursors = append(cursors, protocol.CursorEntryOutbound{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			AvatarColor: e.AvatarColor,
			X:           e.X,
			Y:           e.Y,
		})
	}
	h.broadcast(boardID, protocol.TypeCursorBatch, protocol.CursorBatchPayload{
		BoardID: boardID,
		Cursors: cursors,
	})
}

func (h *WSHandler) cleanup(connID string, sess *session.Session) {
	h.leave(sess)

	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// leave runs the Closed-state transition: idempotent, leaves the room, and
// broadcasts USER_LEAVE to whoever remains.
func (h *WSHandler) leave(sess *session.Session) {
	if sess.IsClosed() {
		return
	}
	result := h.presences.Leave(sess.ID)
	sess.Close()
	if result == nil || result.StillPresent {
		return
	}
	h.broadcast(result.BoardID, protocol.TypeUserLeave, protocol.UserLeavePayload{
		BoardID: result.BoardID,
		UserID:  result.UserID,
	})
}

// broadcast sends a message to every connection in boardID's room,
// including the sender. A write failure closes that connection and
// triggers its leave path, but never aborts the rest of the broadcast.
func (h *WSHandler) broadcast(boardID, msgType string, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Printf("[Router] encode %s failed: %v", msgType, err)
		return
	}
	for _, connID := range h.presences.Connections(boardID) {
		h.writeFrame(connID, frame)
	}
}

func (h *WSHandler) broadcastExcept(boardID, excludeConnID, msgType string, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Printf("[Router] encode %s failed: %v", msgType, err)
		return
	}
	for _, connID := range h.presences.Connections(boardID) {
		if connID == excludeConnID {
			continue
		}
		h.writeFrame(connID, frame)
	}
}

func (h *WSHandler) sendMessage(connID, msgType string, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Printf("[Router] encode %s failed: %v", msgType, err)
		return
	}
	h.writeFrame(connID, frame)
}

func (h *WSHandler) sendError(connID, code, message string) {
	h.sendMessage(connID, protocol.TypeError, protocol.ErrorPayload{Code: code, Message: message})
}

// writeFrame looks up the live socket for connID and writes frame to it,
// serialized per-connection. A write error is logged and the connection is
// dropped; broadcast fan-out treats this as non-fatal for the rest of the room.
func (h *WSHandler) writeFrame(connID string, frame []byte) {
	h.mu.RLock()
	entry, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	entry.writeMu.Lock()
	err := entry.conn.WriteMessage(websocket.TextMessage, frame)
	entry.writeMu.Unlock()

	if err != nil {
		log.Printf("[Router] write to connection %s failed, closing: %v", connID, err)
		_ = entry.conn.Close()
	}
}
