package domain

import "time"

// SystemAuthor is the username on server-synthesized messages.
const SystemAuthor = "System"

const (
	MessageText   = "text"
	MessageFile   = "file"
	MessageSystem = "system"
)

// Message is one entry in a room's append-only log. File messages carry the
// already-encoded content verbatim; the server never decodes it. Timestamp
// is an RFC 3339 string supplied by the client (or the server for system
// messages); entries without one are kept forever by the retention sweep.
type Message struct {
	RoomName  string `json:"roomName"`
	Username  string `json:"username"`
	Text      string `json:"text,omitempty"`
	FileType  string `json:"fileType,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Content   string `json:"content,omitempty"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewSystemMessage stamps a server-authored message for a room.
func NewSystemMessage(roomName, text string) Message {
	return Message{
		RoomName:  roomName,
		Username:  SystemAuthor,
		Text:      text,
		Type:      MessageSystem,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
