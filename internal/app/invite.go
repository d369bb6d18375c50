package app

import "github.com/rs/zerolog/log"

// InviteToRoom relays an invite record to the target session. An unknown or
// offline target is a silent no-op for the caller; staleness is handled on
// the client, which marks an invite expired when the later join fails with
// a room-not-found error.
func (e *Engine) InviteToRoom(id SessionID, p InvitePayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}
	target, ok := e.registry.ByName(p.TargetUsername)
	if !ok {
		log.Info().Str("module", "app.engine").Str("target", p.TargetUsername).Msg("invite target not found")
		return
	}
	e.emit(target, EvRoomInvite, Invite{RoomName: p.RoomName, From: sess.Name})
	log.Info().Str("module", "app.engine").Str("from", sess.Name).Str("to", target.Name).
		Str("room", p.RoomName).Msg("invite relayed")
}
