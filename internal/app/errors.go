package app

import "errors"

// Validation errors surfaced to the acting session as an error event.
// The strings are part of the wire protocol: clients match on them
// (notably "Room not found" for stale-invite detection).
var (
	ErrRoomExists   = errors.New("Room already exists (names are unique and case-insensitive)")
	ErrRoomNotFound = errors.New("Room not found")
	ErrBadPassword  = errors.New("Incorrect password")
	ErrNameTaken    = errors.New("Existing user try other username")
	ErrRenameTaken  = errors.New("Username taken")
	ErrUserNotFound = errors.New("User not found or offline")
)
