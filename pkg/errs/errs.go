package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Categories. Concrete errors below wrap exactly one of them.
var (
	ErrValidation    = errors.New("validation")
	ErrAuthorization = errors.New("authorization")
	ErrNotFound      = errors.New("not found")
	ErrCapacity      = errors.New("capacity")
	ErrConflict      = errors.New("conflict")
	ErrResolver      = errors.New("resolver")
	ErrStream        = errors.New("stream")
	ErrRateLimited   = errors.New("rate limited")
)

var (
	ErrInvalidPayload = New(ErrValidation, "invalid_payload", "Invalid request")
	ErrInvalidName    = New(ErrValidation, "invalid_name", "Name must be 2-20 characters")
	ErrInvalidRoomID  = New(ErrValidation, "invalid_room_id", "Invalid room code")
	ErrInvalidUrl     = New(ErrValidation, "invalid_url", "Invalid video URL")
	ErrAlreadyInRoom  = New(ErrValidation, "already_in_room", "You are already in a room")
	ErrNotInRoom      = New(ErrValidation, "not_in_room", "You are not in a room")

	ErrWrongPassword  = New(ErrAuthorization, "wrong_password", "Incorrect password")
	ErrNotAdmin       = New(ErrAuthorization, "not_admin", "Only the room admin can do that")
	ErrInvalidToken   = New(ErrAuthorization, "invalid_token", "Invalid or expired room token")
	ErrForbiddenFile  = New(ErrAuthorization, "forbidden_file", "Local files can only be loaded from the host machine")
	ErrOriginRejected = New(ErrAuthorization, "origin_rejected", "Origin not allowed")

	ErrRoomNotFound = New(ErrNotFound, "room_not_found", "Room not found")
	ErrFileNotFound = New(ErrNotFound, "file_not_found", "Video file not found")
	ErrNoLocalFile  = New(ErrNotFound, "no_local_file", "No local video is loaded")

	ErrRoomFull = New(ErrCapacity, "room_full", "Room is full")

	ErrRoomExists = New(ErrConflict, "room_exists", "A room is already running on this server")

	ErrResolverUnavailable = New(ErrResolver, "resolver_unavailable", "Video resolver is not installed")
	ErrResolverFailed      = New(ErrResolver, "resolver_failed", "Video resolver failed")
	ErrResolverParse       = New(ErrResolver, "resolver_parse", "Could not read video resolver output")
	ErrNoPlayableFormat    = New(ErrResolver, "no_playable_format", "No playable format found")

	ErrRangeNotSatisfiable = New(ErrStream, "range_not_satisfiable", "Requested range not satisfiable")

	ErrTooManyRequests = New(ErrRateLimited, "rate_limited", "Too many requests, slow down")
)

// Error is a categorised error with a stable protocol code and a message fit for users.
type Error struct {
	kind error
	code string
	msg  string
	base *Error
}

func New(kind error, code, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func (e *Error) Code() string { return e.code }

// Is matches the error e was derived from with Withf.
func (e *Error) Is(target error) bool { return e.base != nil && target == e.base }

// Withf returns a copy of e with detail appended to the message. The copy keeps
// e's code and category and still matches e under errors.Is.
func (e *Error) Withf(format string, args ...interface{}) *Error {
	base := e
	if e.base != nil {
		base = e.base
	}
	return &Error{kind: e.kind, code: e.code, msg: e.msg + ": " + fmt.Sprintf(format, args...), base: base}
}

// Code returns the protocol code for err, "internal" when it is not one of ours.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return "internal"
}

// Message returns the user-facing text for err. Foreign errors are not leaked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	return "Internal error"
}

func ToHTTP(err error) int {
	switch {
	case errors.Is(err, ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCapacity), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrResolver):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
