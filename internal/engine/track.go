package engine

import (
	"math"
	"sync/atomic"
	"time"

	"pwspd/internal/decode"
	"pwspd/internal/wire"
)

// frameBufFloats is the number of float32 values (interleaved stereo
// samples) buffered between the decode goroutine and the mixer per track.
// At 48kHz stereo this is half a second — enough to absorb a slow decode
// without the mixer ever starving mid-callback.
const frameBufFloats = 48000 * 2 / 2 // 0.5s of stereo audio at 48kHz

// trackState is the per-track state machine position (spec.md §4.B):
// Queued -> Playing <-> Paused -> Ended -> Reaped, with Ended self-restarting
// to Playing when the track is looped.
type trackState int32

const (
	stateQueued trackState = iota
	statePlaying
	statePaused
	stateEnded
)

// Track is one playing (or paused, or ended-awaiting-reap) sound.
type Track struct {
	ID   wire.TrackID
	Path string
	Ext  string

	durationKnown bool
	duration      time.Duration

	src *decode.Source

	state        atomic.Int32 // trackState
	looped       atomic.Bool
	volumeBits   atomic.Uint32 // float32 bits, per-track volume in [0,1]
	positionSecs atomic.Uint64 // float64 bits, updated by the decode goroutine

	ring chan []float32 // decoded frames awaiting the mixer

	seekCh chan seekRequest // seek requests, serviced by pump so src is only ever touched from one goroutine
	stopCh chan struct{}    // closed by Engine.stopTrack; pump observes it and exits
	doneCh chan struct{}    // closed by pump on exit; stopTrack waits on it before closing src
}

// seekRequest asks pump to reposition src; result carries the outcome back
// to the caller (engine.Seek runs on the dispatcher goroutine, never src
// itself, since decode.Source is not safe for concurrent use).
type seekRequest struct {
	position time.Duration
	result   chan error
}

func newTrack(id wire.TrackID, path string, src *decode.Source) *Track {
	t := &Track{
		ID:     id,
		Path:   path,
		Ext:    decode.Extension(path),
		src:    src,
		ring:   make(chan []float32, frameBufFloats/chunkFloats),
		seekCh: make(chan seekRequest),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if d, ok := src.Duration(); ok {
		t.durationKnown = true
		t.duration = d
	}
	t.state.Store(int32(stateQueued))
	t.volumeBits.Store(math.Float32bits(1.0))
	return t
}

func (t *Track) volume() float32 {
	return math.Float32frombits(t.volumeBits.Load())
}

func (t *Track) setVolume(v float32) {
	t.volumeBits.Store(math.Float32bits(clamp01(v)))
}

func (t *Track) isPaused() bool {
	return trackState(t.state.Load()) == statePaused
}

func (t *Track) isEnded() bool {
	return trackState(t.state.Load()) == stateEnded
}

func (t *Track) position() time.Duration {
	return time.Duration(math.Float64frombits(t.positionSecs.Load()) * float64(time.Second))
}

// clamp01 clamps v into [0, 1], per spec.md §3's gain invariant.
func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const (
	sampleRate  = 48000
	numChannels = 2
	chunkFloats = sampleRate * numChannels / 20 // 50ms chunks
)

// seek asks pump to reposition src to position and waits for the outcome.
// src is only ever read from or seeked on pump's goroutine, so this never
// races with an in-flight Read (decode.Source is not safe for concurrent
// use). If pump has already exited — the track ended or was stopped — it
// reports ErrSeekUnsupported rather than blocking forever.
func (t *Track) seek(position time.Duration) error {
	req := seekRequest{position: position, result: make(chan error, 1)}
	select {
	case t.seekCh <- req:
	case <-t.doneCh:
		return ErrSeekUnsupported
	}
	select {
	case err := <-req.result:
		return err
	case <-t.doneCh:
		return ErrSeekUnsupported
	}
}

// pump decodes path's audio in small chunks and feeds them to ring until the
// source is exhausted, Engine.stopTrack closes stopCh, or a read error occurs. On
// natural end-of-stream it either restarts the decode (looped tracks) or
// marks the track Ended for the engine to reap on its next tick (spec.md
// §4.B "Tick / update"). It is the only goroutine that ever touches src,
// servicing seekCh itself so a concurrent Seek never races with Read.
func (t *Track) pump() {
	defer close(t.ring)
	defer close(t.doneCh)
	var framesEmitted uint64

	for {
		select {
		case req := <-t.seekCh:
			t.serviceSeek(req, &framesEmitted)
			continue
		case <-t.stopCh:
			return
		default:
		}

		buf := make([]float32, chunkFloats)
		n, err := t.src.Read(buf)
		if n > 0 {
			framesEmitted += uint64(n / numChannels)
			t.positionSecs.Store(math.Float64bits(float64(framesEmitted) / sampleRate))
			select {
			case t.ring <- buf[:n]:
			case req := <-t.seekCh:
				t.serviceSeek(req, &framesEmitted)
			case <-t.stopCh:
				return
			}
		}
		if err != nil {
			t.state.Store(int32(stateEnded))
			return
		}
		if n == 0 {
			// Clean EOF: either loop back to the start or end the track.
			if t.looped.Load() {
				if serr := t.src.Seek(0); serr != nil {
					t.state.Store(int32(stateEnded))
					return
				}
				framesEmitted = 0
				continue
			}
			t.state.Store(int32(stateEnded))
			return
		}
	}
}

func (t *Track) serviceSeek(req seekRequest, framesEmitted *uint64) {
	err := t.src.Seek(req.position)
	if err == nil {
		*framesEmitted = uint64(req.position.Seconds() * sampleRate)
		t.positionSecs.Store(math.Float64bits(req.position.Seconds()))
	}
	req.result <- err
}

// view renders the track for the wire protocol.
func (t *Track) view() wire.TrackView {
	tv := wire.TrackView{
		ID:           t.ID,
		Path:         t.Path,
		Extension:    t.Ext,
		PositionSecs: t.position().Seconds(),
		Volume:       t.volume(),
		Looped:       t.looped.Load(),
		Paused:       t.isPaused(),
	}
	if t.durationKnown {
		d := t.duration.Seconds()
		tv.DurationSecs = &d
	}
	return tv
}
