package voice

import (
	"errors"
	"strings"
)

var (
	// ErrNotConnected is returned when an operation requires an active session.
	ErrNotConnected = errors.New("session is not connected")

	// ErrMicNotFound indicates no capture device is present.
	ErrMicNotFound = errors.New("no microphone found")

	// ErrMicPermissionDenied indicates the user denied microphone access.
	ErrMicPermissionDenied = errors.New("microphone permission denied")

	// ErrMicUnavailable covers any other capture failure.
	ErrMicUnavailable = errors.New("microphone unavailable")
)

// ClassifyMicError maps a raw capture error onto one of the three
// distinguishable microphone error states. The session stays in Idle after any
// of them so the user can retry.
func ClassifyMicError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMicNotFound) || errors.Is(err, ErrMicPermissionDenied) || errors.Is(err, ErrMicUnavailable) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no such device"):
		return ErrMicNotFound
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied"):
		return ErrMicPermissionDenied
	default:
		return ErrMicUnavailable
	}
}
