// Package domain contains entities without logic, just meta-data.
package domain

import (
	"sort"
	"strings"
)

// LobbyRoom always exists, is never drained for emptiness, and is the only
// room subject to time-based message retention.
const LobbyRoom = "Global Chat"

// DMPrefix marks direct-message rooms in the persisted name space.
const DMPrefix = "DM:"

// Room is a named message channel. Password is compared verbatim and only
// present for private rooms. Expiry is unix milliseconds and only non-zero
// while the room is empty and a deletion timer is pending. Participants is
// only set for direct-message rooms: exactly two names, fixed at creation.
type Room struct {
	Name            string    `json:"-"`
	Password        string    `json:"password,omitempty"`
	Messages        []Message `json:"messages"`
	Expiry          int64     `json:"expiry,omitempty"`
	IsDirectMessage bool      `json:"isDirectMessage,omitempty"`
	Participants    []string  `json:"participants,omitempty"`
	Type            string    `json:"type"`
}

func (r *Room) IsPrivate() bool { return r.Password != "" }

// OtherParticipant returns the DM participant that is not name. When the
// participants list is missing (restored from a bad save) it is re-derived
// from the DM: name pattern as a last resort.
func (r *Room) OtherParticipant(name string) string {
	participants := r.Participants
	if len(participants) == 0 && strings.HasPrefix(r.Name, DMPrefix) {
		participants = strings.Split(strings.TrimPrefix(r.Name, DMPrefix), ":")
	}
	for _, p := range participants {
		if p != name {
			return p
		}
	}
	return ""
}

// DMRoomName builds the deterministic room name for a participant pair.
func DMRoomName(a, b string) (name string, participants []string) {
	participants = []string{a, b}
	sort.Strings(participants)
	return DMPrefix + strings.Join(participants, ":"), participants
}

// RoomInfo is the public room-list view. Direct-message rooms are excluded
// from listings entirely.
type RoomInfo struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
	Expiry    int64  `json:"expiry,omitempty"`
	Type      string `json:"type"`
}
