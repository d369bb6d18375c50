package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Engine owns the session registry, the room store, and the lifecycle timer
// table, and is the single place inbound events mutate them. Dispatch is
// cooperative: every handler runs to completion under mu, so handler bodies
// never interleave. Timers fire on their own goroutines and re-enter
// through methods that take mu and re-check room existence first.
type Engine struct {
	mu       sync.Mutex
	registry *Registry
	store    *Store
	timers   *timerTable
	voice    *voiceRoster
}

func NewEngine(store *Store) *Engine {
	return &Engine{
		registry: NewRegistry(),
		store:    store,
		timers:   newTimerTable(),
		voice:    newVoiceRoster(),
	}
}

// Registry exposes the session registry for read-only HTTP lookups.
func (e *Engine) Registry() *Registry { return e.registry }

// Start restores the snapshot, re-arms drain timers for restored rooms,
// runs one retention sweep, and schedules the periodic sweep until ctx is
// cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.store.Restore()
	for _, room := range e.store.Rooms() {
		e.checkRoomEmpty(room.Name)
	}
	e.mu.Unlock()

	e.sweepLobby()
	go func() {
		ticker := time.NewTicker(retentionSweepPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.sweepLobby()
			}
		}
	}()
}

// Connect binds a new connection and sends it the current room list.
func (e *Engine) Connect(id SessionID, conn Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess := e.registry.Bind(id, conn)
	e.emit(sess, EvRoomList, e.store.ListPublic())
}

// Disconnect tears down a connection: voice rosters, DM grace timers for
// every direct-message room the user participates in, presence, and the
// emptiness check for the room it was joined to.
func (e *Engine) Disconnect(id SessionID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.registry.Get(id)
	if !ok {
		return
	}
	for _, roomName := range e.voice.remove(id) {
		e.emitVoice(roomName, EvVoiceUserLeft, map[string]SessionID{"id": id})
	}

	if sess.Name != "" {
		for _, room := range e.store.Rooms() {
			if !room.IsDirectMessage || !containsName(room.Participants, sess.Name) {
				continue
			}
			other := room.OtherParticipant(sess.Name)
			log.Info().Str("module", "app.engine").Str("user", sess.Name).Str("room", room.Name).
				Str("partner", other).Msg("dm participant disconnected, closing soon")
			if other != "" {
				if target, ok := e.registry.ByName(other); ok {
					e.emit(target, EvClosingWarning, closingWarning{
						RoomName: room.Name,
						Seconds:  int(dmCloseGrace / time.Second),
						Reason:   dmCloseReason,
					})
				}
			}
			// When both participants drop inside the window, the first
			// disconnect's deadline stands; re-arming would push the
			// teardown out by another grace period.
			name := room.Name
			if !e.timers.Active(name) {
				e.timers.Arm(name, dmCloseGrace, func() { e.teardownDM(name, other) })
			}
		}
	}

	joined := sess.Room
	e.registry.Remove(id)
	e.broadcastPresence()
	if joined != "" {
		e.checkRoomEmpty(joined)
	}
}

// emit marshals and enqueues one event on a single session. Delivery is
// best effort: a full send buffer drops the frame for that session only.
func (e *Engine) emit(sess *Session, event string, data any) {
	env := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: data}
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("event", event).Msg("marshal event")
		return
	}
	if err := sess.Conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.engine").Str("sid", string(sess.ID)).Str("event", event).Msg("dropped frame")
	}
}

func (e *Engine) emitError(sess *Session, err error) {
	e.emit(sess, EvError, err.Error())
}

func (e *Engine) emitAll(event string, data any) {
	for _, sess := range e.registry.Sessions() {
		e.emit(sess, event, data)
	}
}

func (e *Engine) emitRoom(roomName, event string, data any) {
	for _, sess := range e.registry.InRoom(roomName) {
		e.emit(sess, event, data)
	}
}

func (e *Engine) broadcastPresence() {
	e.emitAll(EvAllUsers, e.registry.Presence())
}

func (e *Engine) broadcastRoomList() {
	e.emitAll(EvRoomList, e.store.ListPublic())
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
