package app

// Frame is a marshaled outbound event ready for the wire.
type Frame []byte

// SessionID identifies one live connection.
type SessionID string

// Conn abstracts the outbound half of a connection's transport.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	TrySend(Frame) error
	Close()
}
