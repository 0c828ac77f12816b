// Package engine implements the playback engine (spec.md §4.B): decoding
// and mixing any number of concurrently-playing tracks, each independently
// pausable, loopable, seekable, and volume-controlled, summed into a single
// stream fed to the virtual source's playback node.
//
// Engine follows the same shape internal/core.ChannelState uses in the
// teacher repo: a map of live entities behind a sync.RWMutex, with an
// atomic id counter so allocation never needs the write lock, and locked /
// unlocked helper pairs so read-only callers (get_full_state, polled at
// GUI frame rate) only ever take the read lock.
package engine

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"pwspd/internal/decode"
	"pwspd/internal/wire"
)

// Sink is the destination the engine's mixed output is written to — in
// production, a PipeWire stream connected to the virtual source's playback
// node (internal/graph.PlaybackStream); in tests, anything that records
// frames.
type Sink interface {
	Write(frames []float32) error
}

// Engine owns every live track and the engine-wide state (master volume,
// current input name) spec.md's get_full_state reports as a unit.
type Engine struct {
	log *slog.Logger
	sink Sink

	mu     sync.RWMutex
	tracks map[wire.TrackID]*Track
	order  []wire.TrackID // insertion order, for get_tracks' stable ordering

	nextID atomic.Uint32

	masterBits atomic.Uint32 // float32 bits

	inputMu   sync.RWMutex
	inputName string
	allInputs map[string]string
}

// New returns an Engine with master volume at unity and no tracks.
func New(log *slog.Logger, sink Sink) *Engine {
	e := &Engine{
		log:       log,
		sink:      sink,
		tracks:    make(map[wire.TrackID]*Track),
		allInputs: make(map[string]string),
	}
	e.masterBits.Store(math.Float32bits(1.0))
	return e
}

func (e *Engine) masterVolume() float32 {
	return math.Float32frombits(e.masterBits.Load())
}

// SetMasterVolume clamps v into [0, 1] and stores it (spec.md §3's gain
// invariant applies to the master bus too).
func (e *Engine) SetMasterVolume(v float32) {
	e.masterBits.Store(math.Float32bits(clamp01(v)))
}

// Play opens path, allocates a new track id, and starts the decode pump.
// It returns ErrFileMissing if path does not exist and ErrDecodeFailed if
// the file exists but cannot be decoded — the two failure modes spec.md
// §4.B's "Play algorithm" requires dispatch to distinguish. When
// concurrent is false, every existing track is dropped first, so a call
// with concurrent=false always leaves exactly one live track behind; a
// failed Play never mutates the existing track set (step 1 runs before
// step 2 drops anything).
func (e *Engine) Play(path string, concurrent bool) (wire.TrackID, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, ErrFileMissing
	}

	src, err := decode.Open(path)
	if err != nil {
		return 0, ErrDecodeFailed
	}

	if !concurrent {
		if serr := e.Stop(nil); serr != nil {
			_ = src.Close()
			return 0, serr
		}
	}

	id := wire.TrackID(e.nextID.Add(1))
	t := newTrack(id, path, src)
	t.state.Store(int32(statePlaying))

	e.mu.Lock()
	e.tracks[id] = t
	e.order = append(e.order, id)
	e.mu.Unlock()

	go t.pump()

	e.log.Info("track started", "id", id, "path", path)
	return id, nil
}

func (e *Engine) get(id wire.TrackID) (*Track, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tracks[id]
	return t, ok
}

func (e *Engine) liveTracks() []*Track {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Track, 0, len(e.order))
	for _, id := range e.order {
		if t, ok := e.tracks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// eachTarget resolves the id argument used throughout spec.md §4.C's
// control operations: a specific track id, or nil meaning "every live
// track" (spec.md §9's Open Question decision: a nil id broadcasts).
func (e *Engine) eachTarget(id *wire.TrackID) ([]*Track, error) {
	if id == nil {
		return e.liveTracks(), nil
	}
	t, ok := e.get(*id)
	if !ok {
		return nil, ErrTrackNotFound
	}
	return []*Track{t}, nil
}

// Pause pauses id, or every live track if id is nil.
func (e *Engine) Pause(id *wire.TrackID) error {
	targets, err := e.eachTarget(id)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if trackState(t.state.Load()) == statePlaying {
			t.state.Store(int32(statePaused))
		}
	}
	return nil
}

// Resume unpauses id, or every paused track if id is nil.
func (e *Engine) Resume(id *wire.TrackID) error {
	targets, err := e.eachTarget(id)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if trackState(t.state.Load()) == statePaused {
			t.state.Store(int32(statePlaying))
		}
	}
	return nil
}

// TogglePause inspects the aggregate is_paused state across id's targets
// (spec.md §9's Open Question decision: if any target is playing, the
// toggle pauses everything; otherwise it resumes everything) and applies
// the opposite of whatever IsPaused would currently report.
func (e *Engine) TogglePause(id *wire.TrackID) error {
	paused, err := e.IsPaused(id)
	if err != nil {
		return err
	}
	if paused {
		return e.Resume(id)
	}
	return e.Pause(id)
}

// IsPaused reports whether every one of id's targets is paused. A nil id
// with zero live tracks reports true — there is nothing playing to call
// unpaused.
func (e *Engine) IsPaused(id *wire.TrackID) (bool, error) {
	targets, err := e.eachTarget(id)
	if err != nil {
		return false, err
	}
	for _, t := range targets {
		if !t.isPaused() {
			return false, nil
		}
	}
	return true, nil
}

// Stop removes id (or every live track if id is nil), releasing its decode
// goroutine and underlying Source.
func (e *Engine) Stop(id *wire.TrackID) error {
	targets, err := e.eachTarget(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	for _, t := range targets {
		delete(e.tracks, t.ID)
	}
	e.pruneOrderLocked()
	e.mu.Unlock()

	for _, t := range targets {
		e.stopTrack(t)
	}
	return nil
}

// pruneOrderLocked drops ids from e.order that are no longer in e.tracks.
// Called with e.mu held for writing.
func (e *Engine) pruneOrderLocked() {
	live := e.order[:0]
	for _, id := range e.order {
		if _, ok := e.tracks[id]; ok {
			live = append(live, id)
		}
	}
	e.order = live
}

// stopTrack signals pump to exit and waits for it to actually do so before
// closing src — pump is the only goroutine that touches src, so closing it
// any earlier would race an in-flight Read against the frees in Close.
func (e *Engine) stopTrack(t *Track) {
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	<-t.doneCh
	_ = t.src.Close()
}

// Seek repositions id (or every live track if id is nil) to position,
// clamped at zero. Every target is attempted even if an earlier one fails;
// it returns ErrSeekUnsupported if the underlying decoder rejected the seek
// for any target (spec.md §3: some containers' streams are not seekable).
func (e *Engine) Seek(id *wire.TrackID, position time.Duration) error {
	targets, err := e.eachTarget(id)
	if err != nil {
		return err
	}
	if position < 0 {
		position = 0
	}
	var firstErr error
	for _, t := range targets {
		if serr := t.seek(position); serr != nil && firstErr == nil {
			firstErr = ErrSeekUnsupported
		}
	}
	return firstErr
}

// SetVolume sets id's (or every live track's) per-track volume.
func (e *Engine) SetVolume(id *wire.TrackID, v float32) error {
	targets, err := e.eachTarget(id)
	if err != nil {
		return err
	}
	for _, t := range targets {
		t.setVolume(v)
	}
	return nil
}

// resolveScalar implements spec.md §4.B's scalar-getter id semantics: a
// specific id if given, otherwise the most-recently-added live track.
// ErrNoTrack is returned when id is nil and no tracks are live.
func (e *Engine) resolveScalar(id *wire.TrackID) (*Track, error) {
	if id != nil {
		t, ok := e.get(*id)
		if !ok {
			return nil, ErrTrackNotFound
		}
		return t, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := len(e.order) - 1; i >= 0; i-- {
		if t, ok := e.tracks[e.order[i]]; ok {
			return t, nil
		}
	}
	return nil, ErrNoTrack
}

// Volume returns id's per-track volume, or the most-recently-added track's
// if id is nil.
func (e *Engine) Volume(id *wire.TrackID) (float32, error) {
	t, err := e.resolveScalar(id)
	if err != nil {
		return 0, err
	}
	return t.volume(), nil
}

// SetLoop sets id's (or every live track's) loop flag.
func (e *Engine) SetLoop(id *wire.TrackID, looped bool) error {
	targets, err := e.eachTarget(id)
	if err != nil {
		return err
	}
	for _, t := range targets {
		t.looped.Store(looped)
	}
	return nil
}

// ToggleLoop flips id's (or every live track's) loop flag independently —
// unlike TogglePause this is not aggregate-derived, since there is no
// single well-defined "the" loop state across a mixed set of tracks.
func (e *Engine) ToggleLoop(id *wire.TrackID) error {
	targets, err := e.eachTarget(id)
	if err != nil {
		return err
	}
	for _, t := range targets {
		for {
			old := t.looped.Load()
			if t.looped.CompareAndSwap(old, !old) {
				break
			}
		}
	}
	return nil
}

// Position returns id's current playback position, or the
// most-recently-added track's if id is nil.
func (e *Engine) Position(id *wire.TrackID) (time.Duration, error) {
	t, err := e.resolveScalar(id)
	if err != nil {
		return 0, err
	}
	return t.position(), nil
}

// Duration returns id's total duration, or the most-recently-added
// track's if id is nil. It returns ErrDurationUnknown if the container
// never reported a duration (spec.md §4.B step 1).
func (e *Engine) Duration(id *wire.TrackID) (time.Duration, error) {
	t, err := e.resolveScalar(id)
	if err != nil {
		return 0, err
	}
	if !t.durationKnown {
		return 0, ErrDurationUnknown
	}
	return t.duration, nil
}

// State derives the wire.PlayerState for the whole engine: Stopped when no
// tracks are live, Paused when every live track is paused, Playing
// otherwise (spec.md §4.B "get_state derivation").
func (e *Engine) State() wire.PlayerState {
	targets := e.liveTracks()
	if len(targets) == 0 {
		return wire.StateStopped
	}
	for _, t := range targets {
		if !t.isPaused() {
			return wire.StatePlaying
		}
	}
	return wire.StatePaused
}

// Tracks returns a view of every live track, in the order Play created
// them.
func (e *Engine) Tracks() []wire.TrackView {
	targets := e.liveTracks()
	out := make([]wire.TrackView, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.view())
	}
	return out
}

// SetCurrentInput records name as the active microphone input and its
// display map, used to render get_full_state's CurrentInputName /
// AllInputs fields. It does not itself touch the PipeWire graph — that is
// internal/dispatch's job, coordinating Engine and internal/graph.
func (e *Engine) SetCurrentInput(name string, all map[string]string) {
	e.inputMu.Lock()
	defer e.inputMu.Unlock()
	e.inputName = name
	e.allInputs = all
}

func (e *Engine) currentInput() (string, map[string]string) {
	e.inputMu.RLock()
	defer e.inputMu.RUnlock()
	return e.inputName, e.allInputs
}

// FullState renders the single get_full_state reply the GUI polls at frame
// rate (spec.md §9): every field here is read from atomics or an
// RWMutex-guarded read lock, never the engine's write path, so polling
// never contends with playback control.
func (e *Engine) FullState() wire.FullState {
	name, all := e.currentInput()
	return wire.FullState{
		State:            e.State(),
		Tracks:           e.Tracks(),
		MasterVolume:     e.masterVolume(),
		CurrentInputName: name,
		AllInputs:        all,
	}
}

// Tick reaps every Ended track (one whose decode pump exited without being
// looped) and renders one chunk of mixed audio to the sink. Called from
// the daemon's tick loop at roughly the rate spec.md §4.B's "Tick /
// update" describes.
func (e *Engine) Tick(buf []float32) error {
	e.reapEnded()

	targets := e.liveTracks()
	renderMix(buf, targets, e.masterVolume())

	if e.sink == nil {
		return nil
	}
	if err := e.sink.Write(buf); err != nil {
		return errors.Join(errors.New("engine: sink write failed"), err)
	}
	return nil
}

func (e *Engine) reapEnded() {
	var ended []wire.TrackID
	e.mu.RLock()
	for id, t := range e.tracks {
		if t.isEnded() {
			ended = append(ended, id)
		}
	}
	e.mu.RUnlock()
	if len(ended) == 0 {
		return
	}

	e.mu.Lock()
	for _, id := range ended {
		delete(e.tracks, id)
	}
	e.pruneOrderLocked()
	e.mu.Unlock()

	for _, id := range ended {
		e.log.Info("track ended", "id", id)
	}
}
