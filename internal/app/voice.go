package app

import "github.com/rs/zerolog/log"

// voiceRoster tracks, per room, the sessions currently in voice. Voice
// membership is independent of chat-room membership.
type voiceRoster struct {
	rooms map[string][]VoiceMember
}

func newVoiceRoster() *voiceRoster {
	return &voiceRoster{rooms: make(map[string][]VoiceMember)}
}

func (v *voiceRoster) members(room string) []VoiceMember {
	return v.rooms[room]
}

func (v *voiceRoster) add(room string, m VoiceMember) {
	for _, existing := range v.rooms[room] {
		if existing.ID == m.ID {
			return
		}
	}
	v.rooms[room] = append(v.rooms[room], m)
}

func (v *voiceRoster) removeFrom(room string, id SessionID) bool {
	members := v.rooms[room]
	for i, m := range members {
		if m.ID == id {
			v.rooms[room] = append(members[:i], members[i+1:]...)
			if len(v.rooms[room]) == 0 {
				delete(v.rooms, room)
			}
			return true
		}
	}
	return false
}

// remove drops id from every roster, returning the affected room names.
func (v *voiceRoster) remove(id SessionID) []string {
	var affected []string
	for room := range v.rooms {
		if v.removeFrom(room, id) {
			affected = append(affected, room)
		}
	}
	return affected
}

// JoinVoice adds the session to a room's voice roster: the joiner gets the
// existing roster, everyone already in it gets the new member.
func (e *Engine) JoinVoice(id SessionID, p VoicePayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}
	existing := append([]VoiceMember(nil), e.voice.members(p.RoomName)...)
	e.emit(sess, EvVoiceUsers, existing)

	member := VoiceMember{ID: id, Username: sess.Name}
	e.voice.add(p.RoomName, member)
	for _, other := range existing {
		if peer, ok := e.registry.Get(other.ID); ok {
			e.emit(peer, EvVoiceUserJoined, member)
		}
	}
	log.Info().Str("module", "app.voice").Str("sid", string(id)).Str("room", p.RoomName).Msg("joined voice")
}

// LeaveVoice removes the session from a room's roster and tells the rest.
func (e *Engine) LeaveVoice(id SessionID, p VoicePayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.voice.removeFrom(p.RoomName, id) {
		return
	}
	e.emitVoice(p.RoomName, EvVoiceUserLeft, map[string]SessionID{"id": id})
	log.Info().Str("module", "app.voice").Str("sid", string(id)).Str("room", p.RoomName).Msg("left voice")
}

// RelaySignal forwards an opaque signaling payload verbatim to the target
// connection. Offer/answer/candidate semantics are a client concern.
func (e *Engine) RelaySignal(id SessionID, p SignalPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	target, ok := e.registry.Get(SessionID(p.To))
	if !ok {
		log.Warn().Str("module", "app.voice").Str("to", p.To).Msg("signal target not found")
		return
	}
	e.emit(target, EvSignal, outboundSignal{From: id, Signal: p.Signal})
}

// emitVoice fans an event out to a room's current voice members.
func (e *Engine) emitVoice(room, event string, data any) {
	for _, m := range e.voice.members(room) {
		if sess, ok := e.registry.Get(m.ID); ok {
			e.emit(sess, event, data)
		}
	}
}
