package core

import "fmt"

// Error codes for registry protocol errors. The code travels to the
// offending client inside SEND_ERROR; the connection stays open.
const (
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodeRoomNotJoinable = "room_not_joinable"
	ErrCodeRoomNotEmpty    = "room_not_empty"
	ErrCodeRoomExists      = "room_exists"
	ErrCodeAlreadyInRoom   = "already_in_room"
	ErrCodeNotInRoom       = "not_in_room"
	ErrCodeBadRequest      = "bad_request"
)

// Error wraps a code and a human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func protocolError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
