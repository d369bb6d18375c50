package app

import "encoding/json"

// Inbound event names. The set is closed: the signal adapter dispatches
// through one exhaustive switch and drops anything else.
const (
	EvRegisterUser   = "register-user"
	EvCreateRoom     = "create-room"
	EvJoinRoom       = "join-room"
	EvLeaveRoom      = "leave-room"
	EvChangeUsername = "change-username"
	EvStatusUpdate   = "status-update"
	EvChatMessage    = "chat-message"
	EvStartDM        = "start-dm"
	EvInviteToRoom   = "invite-to-room"
	EvJoinVoice      = "join-voice"
	EvLeaveVoice     = "leave-voice"
	EvSignal         = "signal"
)

// Outbound event names.
const (
	EvRoomList        = "room-list"
	EvAllUsers        = "all-users"
	EvJoinedRoom      = "joined-room"
	EvChatHistory     = "chat-history"
	EvError           = "error"
	EvForceLeaveRoom  = "force-leave-room"
	EvClosingWarning  = "chat-closing-warning"
	EvRoomInvite      = "room-invite"
	EvVoiceUsers      = "voice-users"
	EvVoiceUserJoined = "voice-user-joined"
	EvVoiceUserLeft   = "voice-user-left"
)

type RegisterUserPayload struct {
	Username string `json:"username"`
}

type CreateRoomPayload struct {
	RoomName string `json:"roomName"`
	Password string `json:"password"`
	Type     string `json:"type"`
}

type JoinRoomPayload struct {
	RoomName string `json:"roomName"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type LeaveRoomPayload struct {
	RoomName string `json:"roomName"`
}

type ChangeUsernamePayload struct {
	NewUsername string `json:"newUsername"`
}

type StatusUpdatePayload struct {
	DND bool `json:"dnd"`
}

type StartDMPayload struct {
	TargetUsername string `json:"targetUsername"`
}

type InvitePayload struct {
	RoomName       string `json:"roomName"`
	TargetUsername string `json:"targetUsername"`
}

type VoicePayload struct {
	RoomName string `json:"roomName"`
}

// SignalPayload carries an opaque voice-signaling blob. The relay forwards
// Signal verbatim and never looks inside it.
type SignalPayload struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// Invite is the record delivered to an invited session. Expiry marking is a
// client-local concern and never comes back to the server.
type Invite struct {
	RoomName string `json:"roomName"`
	From     string `json:"from"`
}

// VoiceMember is one entry in a room's voice roster.
type VoiceMember struct {
	ID       SessionID `json:"id"`
	Username string    `json:"username"`
}

type closingWarning struct {
	RoomName string `json:"roomName"`
	Seconds  int    `json:"seconds"`
	Reason   string `json:"reason"`
}

type forceLeave struct {
	RoomName string `json:"roomName"`
	Reason   string `json:"reason"`
}

type outboundSignal struct {
	From   SessionID       `json:"from"`
	Signal json.RawMessage `json:"signal"`
}
