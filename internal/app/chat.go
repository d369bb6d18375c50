package app

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/parlorchat/parlor/internal/domain"
)

// SendChatMessage routes one chat message:
//  1. a DM whose recipient has do-not-disturb set is blocked — the sender
//     alone gets a synthesized system message and nothing is stored,
//  2. otherwise the message is appended, persisted, and broadcast to the
//     room's joined sessions,
//  3. for DMs the other participant additionally gets a direct copy when
//     not currently joined, so notifications reach them.
func (e *Engine) SendChatMessage(id SessionID, msg domain.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}

	room, exists := e.store.Get(msg.RoomName)
	isDM := (exists && room.IsDirectMessage) || strings.HasPrefix(msg.RoomName, domain.DMPrefix)

	if exists && room.IsDirectMessage {
		if recipient := room.OtherParticipant(sess.Name); recipient != "" {
			if target, ok := e.registry.ByName(recipient); ok && target.DND {
				e.emit(sess, EvChatMessage, domain.NewSystemMessage(msg.RoomName,
					fmt.Sprintf("Cannot send message: User %s is in Do Not Disturb mode.", recipient)))
				return
			}
		}
	}

	if exists {
		e.store.Append(msg.RoomName, msg)
	}
	e.emitRoom(msg.RoomName, EvChatMessage, msg)

	if !isDM {
		return
	}
	var participants []string
	if exists {
		participants = room.Participants
	}
	recipient := otherOf(participants, msg.RoomName, sess.Name)
	if recipient == "" {
		return
	}
	if target, ok := e.registry.ByName(recipient); ok && target.Room != msg.RoomName {
		e.emit(target, EvChatMessage, msg)
	}
}

// otherOf resolves the DM counterpart, falling back to the name pattern
// when the participants list was lost in a bad save.
func otherOf(participants []string, roomName, sender string) string {
	if len(participants) == 0 && strings.HasPrefix(roomName, domain.DMPrefix) {
		participants = strings.Split(strings.TrimPrefix(roomName, domain.DMPrefix), ":")
	}
	for _, p := range participants {
		if p != sender {
			return p
		}
	}
	return ""
}

// StartDM creates (or revisits) the direct-message room for the sender and
// target and joins the sender only. The target is never force-joined;
// fallback delivery covers them until they open the room themselves.
func (e *Engine) StartDM(id SessionID, p StartDMPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}
	if sess.Name == "" || p.TargetUsername == "" {
		log.Warn().Str("module", "app.engine").Str("sid", string(id)).Msg("start-dm with missing usernames")
		return
	}
	target, ok := e.registry.ByName(p.TargetUsername)
	if !ok {
		e.emitError(sess, ErrUserNotFound)
		return
	}

	roomName, participants := domain.DMRoomName(sess.Name, target.Name)
	if _, created := e.store.CreateDM(roomName, participants); created {
		log.Info().Str("module", "app.engine").Str("room", roomName).Msg("started dm")
	}
	e.joinRoom(sess, roomName, "")
}
