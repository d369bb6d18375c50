package app

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parlorchat/parlor/internal/domain"
)

// Lifecycle timing. These are product behavior, not configuration.
const (
	publicRoomTimeout    = time.Minute
	privateRoomTimeout   = time.Hour
	dmCloseGrace         = 10 * time.Second
	messageRetention     = 24 * time.Hour
	retentionSweepPeriod = time.Hour
)

const dmCloseReason = "Chat partner disconnected"

// timerTable tracks one pending deletion timer per room name. Arming a room
// that already holds a timer cancels the old one first, so a cancel always
// targets the current pending timer.
type timerTable struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newTimerTable() *timerTable {
	return &timerTable{timers: make(map[string]*time.Timer)}
}

func (t *timerTable) Arm(name string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[name]; ok {
		old.Stop()
	}
	var tm *time.Timer
	tm = time.AfterFunc(d, func() {
		t.mu.Lock()
		// A cancel or re-arm that raced the firing wins: fn never runs
		// for a timer that is no longer the room's current one.
		if t.timers[name] != tm {
			t.mu.Unlock()
			return
		}
		delete(t.timers, name)
		t.mu.Unlock()
		fn()
	})
	t.timers[name] = tm
}

func (t *timerTable) Cancel(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.timers[name]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, name)
	return true
}

func (t *timerTable) Active(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[name]
	return ok
}

// checkRoomEmpty is the drain state machine, called under e.mu after every
// membership change and at startup for restored rooms. An empty room gets
// an expiry and an armed timer; a repopulated room sheds both. The lobby
// and direct-message rooms are exempt.
func (e *Engine) checkRoomEmpty(name string) {
	if name == domain.LobbyRoom {
		return
	}
	room, ok := e.store.Get(name)
	if !ok {
		return
	}
	if room.IsDirectMessage || strings.HasPrefix(name, domain.DMPrefix) {
		return
	}

	if len(e.registry.InRoom(name)) == 0 {
		if room.Expiry == 0 {
			timeout := publicRoomTimeout
			if room.IsPrivate() {
				timeout = privateRoomTimeout
			}
			e.store.SetExpiry(name, time.Now().Add(timeout).UnixMilli())
			e.timers.Arm(name, timeout, func() { e.expireRoom(name) })
			log.Info().Str("module", "app.lifecycle").Str("room", name).Dur("timeout", timeout).Msg("room empty, draining")
			e.broadcastRoomList()
			return
		}
		if !e.timers.Active(name) {
			// Persisted expiry with no live timer: process restart.
			remaining := time.Until(time.UnixMilli(room.Expiry))
			if remaining > 0 {
				e.timers.Arm(name, remaining, func() { e.expireRoom(name) })
				log.Info().Str("module", "app.lifecycle").Str("room", name).Dur("remaining", remaining).Msg("restored drain timer")
			} else {
				log.Info().Str("module", "app.lifecycle").Str("room", name).Msg("room expired while offline, deleting")
				e.store.Delete(name)
				e.broadcastRoomList()
			}
		}
		return
	}

	if room.Expiry != 0 {
		e.timers.Cancel(name)
		e.store.ClearExpiry(name)
		log.Info().Str("module", "app.lifecycle").Str("room", name).Msg("room active again, drain cancelled")
		e.broadcastRoomList()
	}
}

// expireRoom is the drain timer callback. A join can land between the
// timer dequeuing itself and this lock being acquired, in which case the
// cancellation in checkRoomEmpty was a no-op; the room's drain state is
// settled under e.mu, so re-checking it here closes that window.
func (e *Engine) expireRoom(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.store.Get(name)
	if !ok {
		return
	}
	if room.Expiry == 0 || len(e.registry.InRoom(name)) > 0 {
		return
	}
	log.Info().Str("module", "app.lifecycle").Str("room", name).Msg("deleting room due to inactivity")
	e.store.Delete(name)
	e.broadcastRoomList()
}

// teardownDM fires when the grace period after a DM participant disconnect
// elapses. Deletion is unconditional apart from the existence check: a
// reconnect inside the window does not cancel it.
func (e *Engine) teardownDM(name, otherName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.store.Get(name); !ok {
		return
	}
	log.Info().Str("module", "app.lifecycle").Str("room", name).Msg("executing delayed dm deletion")
	if otherName != "" {
		if target, ok := e.registry.ByName(otherName); ok {
			e.emit(target, EvForceLeaveRoom, forceLeave{RoomName: name, Reason: dmCloseReason})
		}
	}
	e.store.Delete(name)
}

func (e *Engine) sweepLobby() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.PruneLobby(messageRetention)
}
