//go:build linux && cgo

package graph

/*
#include "shim.h"
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"runtime/cgo"
	"sync"
	"unsafe"
)

// PlaybackStream is a PipeWire output stream targeting the virtual
// source's playback node, pulled from on the graph's real-time thread via
// fill. It implements internal/engine.Sink: Write appends mixed audio to a
// pending buffer (up to about one second), which fill drains on each pull.
type PlaybackStream struct {
	once   sync.Once
	native *C.pwspd_stream
	handle cgo.Handle

	mu      sync.Mutex
	pending []float32
}

//export pwspdGoFillBuffer
func pwspdGoFillBuffer(token C.uintptr_t, dst *C.float, maxSamples C.int) C.int {
	h := cgo.Handle(token)
	ps, ok := h.Value().(*PlaybackStream)
	if !ok {
		return 0
	}
	return C.int(ps.fill(dst, int(maxSamples)))
}

func (ps *PlaybackStream) fill(dst *C.float, maxSamples int) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	n := len(ps.pending)
	if n > maxSamples {
		n = maxSamples
	}
	if n > 0 {
		out := unsafe.Slice((*float32)(unsafe.Pointer(dst)), maxSamples)
		copy(out[:n], ps.pending[:n])
		ps.pending = ps.pending[n:]
	}
	// Buffers the stream didn't get audio for this period are filled with
	// silence rather than left with whatever garbage the allocator gave
	// the Go slice backing them.
	if n < maxSamples {
		out := unsafe.Slice((*float32)(unsafe.Pointer(dst)), maxSamples)
		for i := n; i < maxSamples; i++ {
			out[i] = 0
		}
	}
	return maxSamples
}

// Write queues frames to be drained by the next fill calls. It never
// blocks; if the stream can't keep up, pending audio is dropped rather
// than applying backpressure to the engine's tick loop.
func (ps *PlaybackStream) Write(frames []float32) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	const maxPending = 48000 * 2 // ~1s of stereo backlog
	ps.pending = append(ps.pending, frames...)
	if len(ps.pending) > maxPending {
		ps.pending = ps.pending[len(ps.pending)-maxPending:]
	}
	return nil
}

// Close tears down the stream and its thread.
func (ps *PlaybackStream) Close() error {
	ps.once.Do(func() {
		if ps.native != nil {
			C.pwspd_stream_destroy(ps.native)
		}
		ps.handle.Delete()
	})
	return nil
}

// NewPlaybackStream connects a pw_stream targeting the node named
// targetNodeName (ordinarily graph.VirtualSourceName) and returns a Sink
// the playback engine can Write mixed audio into.
func NewPlaybackStream(targetNodeName string) (*PlaybackStream, error) {
	ps := &PlaybackStream{}
	handle := cgo.NewHandle(ps)

	cName := C.CString(targetNodeName)
	defer C.free(unsafe.Pointer(cName))

	native := C.pwspd_stream_new(C.uintptr_t(handle), cName)
	if native == nil {
		handle.Delete()
		return nil, errors.New("graph: failed to create playback stream")
	}
	ps.native = native
	ps.handle = handle
	return ps, nil
}
