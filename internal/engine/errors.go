package engine

import "errors"

// Errors returned by Engine operations, matched against in internal/dispatch
// to render the wire protocol's {status: false, message: "..."} replies
// (spec.md §4.C).
var (
	ErrFileMissing     = errors.New("engine: file does not exist")
	ErrDecodeFailed    = errors.New("engine: could not decode file")
	ErrTrackNotFound   = errors.New("engine: no track with that id")
	ErrNoTrack         = errors.New("engine: no tracks are live")
	ErrDurationUnknown = errors.New("engine: track's duration is unknown")
	ErrSeekUnsupported = errors.New("engine: track does not support seeking")
	ErrDeviceNotFound  = errors.New("engine: no device with that name")
	ErrNotAnInput      = errors.New("engine: device is not an input")
)
