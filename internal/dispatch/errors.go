package dispatch

import (
	"errors"

	"pwspd/internal/engine"
	"pwspd/internal/graph"
)

// Kind mirrors spec.md §7's error kind list, so the dispatcher's top-level
// translate boundary has one switch, not one per handler.
type Kind int

const (
	KindNone Kind = iota
	KindFileMissing
	KindDecodeFailed
	KindDurationUnknown
	KindNoTrack
	KindTrackNotFound
	KindSeekUnsupported
	KindDeviceNotFound
	KindNotAnInput
	KindInvalidArgument
	KindGraphUnavailable
	KindUnknownCommand
)

// Error wraps an underlying error with the Kind the wire protocol renders
// it as. Dispatch never needs a type switch over *engine.Engine's sentinel
// errors more than once — every handler just returns the sentinel and this
// file does the translation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

func invalidArgument(message string) error {
	return &Error{Kind: KindInvalidArgument, Message: "Invalid " + message}
}

// translate maps engine/graph sentinel errors to the wire message spec.md
// §7 requires. Errors not recognized here (a bug, not a protocol-level
// failure) render as their Go Error() text — still status=false, just
// without a stable Kind a client could rely on.
func translate(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	switch {
	case errors.Is(err, engine.ErrFileMissing):
		return "FileMissing"
	case errors.Is(err, engine.ErrDecodeFailed):
		return "DecodeFailed"
	case errors.Is(err, engine.ErrDurationUnknown):
		return "DurationUnknown"
	case errors.Is(err, engine.ErrNoTrack):
		return "NoTrack"
	case errors.Is(err, engine.ErrTrackNotFound):
		return "TrackNotFound"
	case errors.Is(err, engine.ErrSeekUnsupported):
		return "SeekUnsupported"
	case errors.Is(err, engine.ErrDeviceNotFound):
		return "DeviceNotFound"
	case errors.Is(err, engine.ErrNotAnInput):
		return "NotAnInput"
	case errors.Is(err, graph.ErrGraphUnavailable):
		return "GraphUnavailable"
	default:
		return err.Error()
	}
}
