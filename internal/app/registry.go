package app

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Session is one live connection's identity and status. Fields are owned by
// the Registry; handlers read them through snapshots taken under its lock.
type Session struct {
	ID   SessionID
	Name string
	DND  bool
	Room string
	Conn Conn

	seq uint64
}

// PresenceEntry is the broadcast view of a named session.
type PresenceEntry struct {
	Username string `json:"username"`
	DND      bool   `json:"dnd"`
}

// Registry tracks live sessions by connection id. Display names are unique
// case-insensitively among live sessions only; a disconnected name may be
// reused.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*Session
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[SessionID]*Session)}
}

// Bind creates the session record for a new connection.
func (r *Registry) Bind(id SessionID, conn Conn) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	s := &Session{ID: id, Conn: conn, seq: r.seq}
	r.sessions[id] = s
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("bound session")
	return s
}

func (r *Registry) Get(id SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Remove(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("removed session")
}

// NameTaken reports whether another live session already holds name,
// ignoring case. Re-registering one's own name is not a collision.
func (r *Registry) NameTaken(name string, self SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, s := range r.sessions {
		if id != self && s.Name != "" && strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// SetName assigns a display name, refusing case-insensitive collisions with
// other live sessions. Registration order is bumped so presence dedup keeps
// the most recent holder of a name.
func (r *Registry) SetName(id SessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for other, s := range r.sessions {
		if other != id && s.Name != "" && strings.EqualFold(s.Name, name) {
			return ErrNameTaken
		}
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	r.seq++
	s.Name = name
	s.seq = r.seq
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("username", name).Msg("set username")
	return nil
}

func (r *Registry) SetDND(id SessionID, dnd bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.DND = dnd
	}
}

func (r *Registry) SetRoom(id SessionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Room = room
	}
}

// ByName finds a live session by display name, ignoring case.
func (r *Registry) ByName(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Name != "" && strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}

// InRoom returns the sessions currently joined to room.
func (r *Registry) InRoom(room string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, 4)
	for _, s := range r.sessions {
		if s.Room == room {
			out = append(out, s)
		}
	}
	return out
}

// Sessions returns a snapshot of all live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Presence returns the named sessions in registration order, de-duplicated
// by name with the most recently registered entry winning.
func (r *Registry) Presence() []PresenceEntry {
	r.mu.RLock()
	named := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Name != "" {
			named = append(named, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(named, func(i, j int) bool { return named[i].seq < named[j].seq })

	out := make([]PresenceEntry, 0, len(named))
	index := make(map[string]int, len(named))
	for _, s := range named {
		entry := PresenceEntry{Username: s.Name, DND: s.DND}
		if at, ok := index[s.Name]; ok {
			out[at] = entry
			continue
		}
		index[s.Name] = len(out)
		out = append(out, entry)
	}
	return out
}
