package app

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/parlorchat/parlor/internal/domain"
)

// persistedRoom is the sanitized snapshot shape: room fields only, no timer
// handles or other transient state.
type persistedRoom struct {
	Password        string           `json:"password,omitempty"`
	Messages        []domain.Message `json:"messages"`
	Expiry          int64            `json:"expiry,omitempty"`
	IsDirectMessage bool             `json:"isDirectMessage,omitempty"`
	Participants    []string         `json:"participants,omitempty"`
	Type            string           `json:"type"`
}

// Store owns the room name -> Room mapping and mirrors it to a single JSON
// snapshot file. Every mutating operation writes the snapshot synchronously
// before returning; a failed write is logged and the in-memory state stays
// authoritative until the next successful one.
type Store struct {
	mu    sync.RWMutex
	fs    afero.Fs
	path  string
	rooms map[string]*domain.Room
}

func NewStore(fs afero.Fs, path string) *Store {
	return &Store{
		fs:    fs,
		path:  path,
		rooms: make(map[string]*domain.Room),
	}
}

// Restore loads the snapshot, seeding the lobby when the file is absent or
// unreadable. Restore failure never prevents startup.
func (s *Store) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms = map[string]*domain.Room{
		domain.LobbyRoom: {Name: domain.LobbyRoom, Messages: []domain.Message{}, Type: "chat"},
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		log.Info().Str("module", "app.store").Str("path", s.path).Msg("no snapshot found, starting fresh")
		return
	}

	var snap map[string]persistedRoom
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("module", "app.store").Str("path", s.path).Msg("corrupt snapshot, starting fresh")
		return
	}

	for name, p := range snap {
		room := &domain.Room{
			Name:            name,
			Password:        p.Password,
			Messages:        p.Messages,
			Expiry:          p.Expiry,
			IsDirectMessage: p.IsDirectMessage,
			Participants:    p.Participants,
			Type:            p.Type,
		}
		if room.Messages == nil {
			room.Messages = []domain.Message{}
		}
		if room.Type == "" {
			room.Type = "chat"
		}
		s.rooms[name] = room
	}
	log.Info().Str("module", "app.store").Int("rooms", len(s.rooms)).Msg("restored snapshot")
}

func (s *Store) persistLocked() {
	snap := make(map[string]persistedRoom, len(s.rooms))
	for name, r := range s.rooms {
		snap[name] = persistedRoom{
			Password:        r.Password,
			Messages:        r.Messages,
			Expiry:          r.Expiry,
			IsDirectMessage: r.IsDirectMessage,
			Participants:    r.Participants,
			Type:            r.Type,
		}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Error().Err(err).Str("module", "app.store").Msg("marshal snapshot")
		return
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		log.Error().Err(err).Str("module", "app.store").Str("path", s.path).Msg("write snapshot")
	}
}

// Persist writes the snapshot outside of another mutating call.
func (s *Store) Persist() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.persistLocked()
}

// Create adds a room, refusing names that collide case-insensitively.
func (s *Store) Create(name, password, roomType string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for existing := range s.rooms {
		if strings.EqualFold(existing, name) {
			return nil, ErrRoomExists
		}
	}
	if roomType == "" {
		roomType = "chat"
	}
	room := &domain.Room{Name: name, Password: password, Messages: []domain.Message{}, Type: roomType}
	s.rooms[name] = room
	s.persistLocked()
	log.Info().Str("module", "app.store").Str("room", name).Bool("private", password != "").Msg("room created")
	return room, nil
}

// CreateDM adds a direct-message room with its fixed participant pair,
// returning the existing room when the pair already has one.
func (s *Store) CreateDM(name string, participants []string) (*domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[name]; ok {
		return room, false
	}
	room := &domain.Room{
		Name:            name,
		Messages:        []domain.Message{},
		IsDirectMessage: true,
		Participants:    participants,
		Type:            "chat",
	}
	s.rooms[name] = room
	s.persistLocked()
	log.Info().Str("module", "app.store").Str("room", name).Msg("dm room created")
	return room, true
}

func (s *Store) Get(name string) (*domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[name]
	return room, ok
}

func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name]; !ok {
		return
	}
	delete(s.rooms, name)
	s.persistLocked()
	log.Info().Str("module", "app.store").Str("room", name).Msg("room deleted")
}

// Append adds a message to the room's log. Unknown rooms are ignored.
func (s *Store) Append(name string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[name]
	if !ok {
		return
	}
	room.Messages = append(room.Messages, msg)
	s.persistLocked()
}

// SetExpiry stamps a pending-deletion time (unix milliseconds) on a room.
func (s *Store) SetExpiry(name string, at int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[name]; ok {
		room.Expiry = at
		s.persistLocked()
	}
}

func (s *Store) ClearExpiry(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[name]; ok && room.Expiry != 0 {
		room.Expiry = 0
		s.persistLocked()
	}
}

// ListPublic returns the room-list view, excluding direct-message rooms.
func (s *Store) ListPublic() []domain.RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(s.rooms))
	for name, r := range s.rooms {
		if r.IsDirectMessage || strings.HasPrefix(name, domain.DMPrefix) {
			continue
		}
		out = append(out, domain.RoomInfo{
			Name:      name,
			IsPrivate: r.IsPrivate(),
			Expiry:    r.Expiry,
			Type:      r.Type,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Rooms returns a snapshot of all rooms.
func (s *Store) Rooms() []*domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// PruneLobby drops lobby messages older than retention. Messages without a
// parseable timestamp are kept.
func (s *Store) PruneLobby(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.rooms[domain.LobbyRoom]
	if !ok {
		return 0
	}
	cutoff := time.Now().Add(-retention)
	kept := lobby.Messages[:0]
	for _, msg := range lobby.Messages {
		if msg.Timestamp == "" {
			kept = append(kept, msg)
			continue
		}
		ts, err := time.Parse(time.RFC3339, msg.Timestamp)
		if err != nil || ts.After(cutoff) {
			kept = append(kept, msg)
		}
	}
	pruned := len(lobby.Messages) - len(kept)
	if pruned > 0 {
		lobby.Messages = kept
		s.persistLocked()
		log.Info().Str("module", "app.store").Str("room", domain.LobbyRoom).Int("pruned", pruned).Msg("cleaned up old messages")
	}
	return pruned
}
