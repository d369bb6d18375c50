package app

import "github.com/rs/zerolog/log"

// RegisterUser claims a display name for a fresh connection and broadcasts
// presence. Registering the name one already holds is not a collision.
func (e *Engine) RegisterUser(id SessionID, p RegisterUserPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok || p.Username == "" {
		return
	}
	if err := e.registry.SetName(id, p.Username); err != nil {
		e.emitError(sess, err)
		return
	}
	log.Info().Str("module", "app.engine").Str("sid", string(id)).Str("username", p.Username).Msg("registered user")
	e.broadcastPresence()
}

// ChangeUsername renames a session, refusing live collisions.
func (e *Engine) ChangeUsername(id SessionID, p ChangeUsernamePayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}
	if e.registry.NameTaken(p.NewUsername, id) {
		e.emitError(sess, ErrRenameTaken)
		return
	}
	old := sess.Name
	if err := e.registry.SetName(id, p.NewUsername); err != nil {
		e.emitError(sess, ErrRenameTaken)
		return
	}
	log.Info().Str("module", "app.engine").Str("old", old).Str("new", p.NewUsername).Msg("username changed")
	e.broadcastPresence()
}

// StatusUpdate flips the do-not-disturb flag. Nothing is broadcast: the
// flag only gates DM delivery.
func (e *Engine) StatusUpdate(id SessionID, p StatusUpdatePayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.SetDND(id, p.DND)
}

// UsernameAvailable serves the HTTP availability check against live
// sessions only.
func (e *Engine) UsernameAvailable(name string) bool {
	return !e.registry.NameTaken(name, "")
}
