package app

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/parlorchat/parlor/internal/domain"
)

// CreateRoom registers a new room and auto-joins the creator. The name
// check is case-insensitive: "Test" and "test" are the same room.
func (e *Engine) CreateRoom(id SessionID, p CreateRoomPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}
	if _, err := e.store.Create(p.RoomName, p.Password, p.Type); err != nil {
		e.emitError(sess, err)
		return
	}
	e.broadcastRoomList()
	e.joinRoom(sess, p.RoomName, p.Password)
}

// JoinRoom optionally claims a username first, then runs the join path.
// A name collision aborts before any room state changes.
func (e *Engine) JoinRoom(id SessionID, p JoinRoomPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}
	if p.Username != "" {
		if err := e.registry.SetName(id, p.Username); err != nil {
			e.emitError(sess, err)
			return
		}
	}
	e.joinRoom(sess, p.RoomName, p.Password)
}

// LeaveRoom clears the session's room association and runs the emptiness
// check for the room left behind.
func (e *Engine) LeaveRoom(id SessionID, p LeaveRoomPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}
	log.Info().Str("module", "app.engine").Str("sid", string(id)).Str("room", p.RoomName).Msg("explicit leave")
	if sess.Room == p.RoomName {
		e.registry.SetRoom(id, "")
	}
	e.checkRoomEmpty(p.RoomName)
}

// joinRoom is the shared join path used by create, join, invites, and DMs.
// A session is joined to at most one room: joining implicitly leaves the
// previous one. Join announcements are synthesized for non-DM rooms only.
func (e *Engine) joinRoom(sess *Session, roomName, password string) {
	room, ok := e.store.Get(roomName)
	if !ok {
		e.emitError(sess, ErrRoomNotFound)
		return
	}
	if room.Password != "" && room.Password != password {
		e.emitError(sess, ErrBadPassword)
		return
	}

	if prev := sess.Room; prev != "" && prev != roomName {
		e.registry.SetRoom(sess.ID, "")
		e.checkRoomEmpty(prev)
	}
	e.registry.SetRoom(sess.ID, roomName)
	log.Info().Str("module", "app.engine").Str("sid", string(sess.ID)).Str("room", roomName).Msg("joined room")
	e.emit(sess, EvJoinedRoom, roomName)

	if !room.IsDirectMessage && !strings.HasPrefix(roomName, domain.DMPrefix) {
		who := sess.Name
		if who == "" {
			who = "A user"
		}
		msg := domain.NewSystemMessage(roomName, fmt.Sprintf("%s joined the chat", who))
		e.store.Append(roomName, msg)
		e.emitRoom(roomName, EvChatMessage, msg)
	}

	// History is sent after the join announcement so it includes it.
	if room, ok := e.store.Get(roomName); ok {
		e.emit(sess, EvChatHistory, room.Messages)
	}
	e.broadcastPresence()
	e.checkRoomEmpty(roomName)
}
