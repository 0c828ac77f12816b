// Package dispatch implements the Command Dispatcher (spec.md §4.C):
// translating a decoded wire.Request into a call against the Playback
// Engine and Graph Controller, and rendering the result as a
// wire.Response. The handler table is a map literal built once at
// construction — a finite, stable, total function, not an open interface
// hierarchy (spec.md §9's "tagged variant, not an open trait" guidance).
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"pwspd/internal/engine"
	"pwspd/internal/graph"
	"pwspd/internal/wire"
)

// daemonVersion is reported by get_daemon_version. It has no relationship
// to the Go module's own versioning — it is the wire protocol's version,
// bumped only if the protocol itself changes.
const daemonVersion = "1.0.0"

// handlerFunc implements one command. It returns the Response's message
// on success, or an error translate() can render as {false, message}.
type handlerFunc func(d *Dispatcher, args map[string]string) (string, error)

// Dispatcher holds the collaborators every handler needs and the finite
// command table built once in New.
type Dispatcher struct {
	log    *slog.Logger
	engine *engine.Engine
	graph  *graph.Controller

	linkMu   sync.Mutex
	link     *graph.Terminator
	selected string // name of the currently selected input device

	handlers map[string]handlerFunc
}

// New returns a Dispatcher wired to eng and ctl.
func New(log *slog.Logger, eng *engine.Engine, ctl *graph.Controller) *Dispatcher {
	d := &Dispatcher{log: log, engine: eng, graph: ctl}
	d.handlers = map[string]handlerFunc{
		"ping":                handlePing,
		"pause":               handlePause,
		"resume":              handleResume,
		"toggle_pause":        handleTogglePause,
		"stop":                handleStop,
		"get_position":        handleGetPosition,
		"get_duration":        handleGetDuration,
		"toggle_loop":         handleToggleLoop,
		"play":                handlePlay,
		"seek":                handleSeek,
		"set_volume":          handleSetVolume,
		"set_loop":            handleSetLoop,
		"is_paused":           handleIsPaused,
		"get_state":           handleGetState,
		"get_volume":          handleGetVolume,
		"get_tracks":          handleGetTracks,
		"get_input":           handleGetInput,
		"get_inputs":          handleGetInputs,
		"get_full_state":      handleGetFullState,
		"get_daemon_version":  handleGetDaemonVersion,
		"kill":                handleKill,
		"set_input":           handleSetInput,
	}
	return d
}

// Dispatch looks up req.Name and runs its handler, translating any error
// into the wire protocol's {status:false, message} shape. The second
// return reports whether the caller should exit the process after
// flushing this response (spec.md §4.C: "kill ... causes the daemon to
// exit after the reply is fully flushed to the client").
func (d *Dispatcher) Dispatch(req wire.Request) (wire.Response, bool) {
	h, ok := d.handlers[req.Name]
	if !ok {
		return wire.Response{Status: false, Message: "Unknown command"}, false
	}

	msg, err := h(d, req.Args)
	if err != nil {
		d.log.Debug("command failed", "name", req.Name, "err", err)
		return wire.Response{Status: false, Message: translate(err)}, false
	}
	return wire.Response{Status: true, Message: msg}, req.Name == "kill"
}

func optionalID(args map[string]string) (*wire.TrackID, error) {
	raw, ok := args["id"]
	if !ok || raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, invalidArgument("id")
	}
	id := wire.TrackID(n)
	return &id, nil
}

func requireFloat32(args map[string]string, key string) (float32, error) {
	raw, ok := args[key]
	if !ok {
		return 0, invalidArgument(key)
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, invalidArgument(key)
	}
	return float32(v), nil
}

func requireBool(args map[string]string, key string) (bool, error) {
	raw, ok := args[key]
	if !ok {
		return false, invalidArgument(key)
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidArgument(key)
	}
	return v, nil
}

func requireString(args map[string]string, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == "" {
		return "", invalidArgument(key)
	}
	return raw, nil
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("dispatch: marshal response: %w", err)
	}
	return string(b), nil
}

func handlePing(_ *Dispatcher, _ map[string]string) (string, error) {
	return "pong", nil
}

func handlePause(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	return "ok", d.engine.Pause(id)
}

func handleResume(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	return "ok", d.engine.Resume(id)
}

func handleTogglePause(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	return "ok", d.engine.TogglePause(id)
}

func handleStop(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	return "ok", d.engine.Stop(id)
}

func handleGetPosition(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	pos, err := d.engine.Position(id)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(pos.Seconds(), 'f', -1, 64), nil
}

func handleGetDuration(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	dur, err := d.engine.Duration(id)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(dur.Seconds(), 'f', -1, 64), nil
}

func handleToggleLoop(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	return "ok", d.engine.ToggleLoop(id)
}

func handlePlay(d *Dispatcher, args map[string]string) (string, error) {
	path, err := requireString(args, "file_path")
	if err != nil {
		return "", err
	}
	concurrent, err := requireBool(args, "concurrent")
	if err != nil {
		return "", err
	}
	id, err := d.engine.Play(path, concurrent)
	if err != nil {
		return "", err
	}
	d.Relink() // best effort: re-establish the selected input's link if it is missing
	return strconv.FormatUint(uint64(id), 10), nil
}

func handleSeek(d *Dispatcher, args map[string]string) (string, error) {
	pos, err := requireFloat32(args, "position")
	if err != nil {
		return "", err
	}
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	return "ok", d.engine.Seek(id, time.Duration(pos*float32(time.Second)))
}

func handleSetVolume(d *Dispatcher, args map[string]string) (string, error) {
	v, err := requireFloat32(args, "volume")
	if err != nil {
		return "", err
	}
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	if id == nil {
		d.engine.SetMasterVolume(v)
		return "ok", nil
	}
	return "ok", d.engine.SetVolume(id, v)
}

func handleSetLoop(d *Dispatcher, args map[string]string) (string, error) {
	enabled, err := requireBool(args, "enabled")
	if err != nil {
		return "", err
	}
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	return "ok", d.engine.SetLoop(id, enabled)
}

func handleIsPaused(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	paused, err := d.engine.IsPaused(id)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(paused), nil
}

func handleGetState(d *Dispatcher, _ map[string]string) (string, error) {
	return marshalJSON(d.engine.State())
}

func handleGetVolume(d *Dispatcher, args map[string]string) (string, error) {
	id, err := optionalID(args)
	if err != nil {
		return "", err
	}
	v, err := d.engine.Volume(id)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
}

func handleGetTracks(d *Dispatcher, _ map[string]string) (string, error) {
	return marshalJSON(d.engine.Tracks())
}

func handleGetInput(d *Dispatcher, _ map[string]string) (string, error) {
	d.linkMu.Lock()
	defer d.linkMu.Unlock()
	return d.selected, nil
}

func handleGetInputs(d *Dispatcher, _ map[string]string) (string, error) {
	devices, err := d.graph.Enumerate(context.Background())
	if err != nil {
		return "", err
	}
	all := make(map[string]string, len(devices))
	for _, dev := range devices {
		if dev.Kind == graph.KindInput {
			all[dev.Name] = dev.Nick
		}
	}
	return marshalJSON(all)
}

func handleGetFullState(d *Dispatcher, _ map[string]string) (string, error) {
	return marshalJSON(d.engine.FullState())
}

func handleGetDaemonVersion(_ *Dispatcher, _ map[string]string) (string, error) {
	return daemonVersion, nil
}

func handleKill(_ *Dispatcher, _ map[string]string) (string, error) {
	return "killed", nil
}

func handleSetInput(d *Dispatcher, args map[string]string) (string, error) {
	name, err := requireString(args, "input_name")
	if err != nil {
		return "", err
	}
	if err := d.SelectInput(name); err != nil {
		return "", err
	}
	return "ok", nil
}
