//go:build linux && cgo

// Package graph owns the PipeWire graph: enumerating nodes and ports,
// creating the virtual source node, and maintaining the stereo link pairs
// that splice a microphone's output into the virtual source's input.
//
// There is no mature pure-Go PipeWire client, so this package talks to
// libpipewire-0.3 directly through a small cgo shim (shim.h/shim.c),
// the same way a Go program reaches CoreAudio: one C translation unit
// owning the native handles, a thin Go layer owning lifetime and
// marshaling callbacks into Go values.
package graph

/*
#cgo pkg-config: libpipewire-0.3
#include "shim.h"
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"errors"
	"log/slog"
	"runtime/cgo"
	"sort"
	"sync"
	"time"
	"unsafe"
)

// ErrGraphUnavailable is returned when the PipeWire graph loop could not be
// reached at all; callers degrade linking to a no-op and keep operating.
var ErrGraphUnavailable = errors.New("graph: pipewire graph unavailable")

// quiescenceWindow is the idle interval after which an enumeration pass is
// considered complete (spec.md §4.A).
const quiescenceWindow = 100 * time.Millisecond

// VirtualSourceName is the stable node.name of the daemon's virtual
// microphone, used both at creation time and (defensively) to recognise it
// during enumeration.
const VirtualSourceName = "pwsp-virtual-mic"

// Terminator tears down a graph resource (the virtual source or one link
// pair) exactly once. Dropping the returned Terminator
// without calling Close leaks the underlying thread until process exit —
// callers should always defer Close or store it for later teardown.
type Terminator struct {
	once    sync.Once
	session *C.pwspd_session
}

// Close stops the owned pw_thread_loop, joining its thread, and destroys
// the session.
func (t *Terminator) Close() error {
	t.once.Do(func() {
		if t.session != nil {
			C.pwspd_session_quit(t.session)
			C.pwspd_session_destroy(t.session)
		}
	})
	return nil
}

// enumSession accumulates registry announcements for one Enumerate call.
type enumSession struct {
	mu          sync.Mutex
	devices     map[uint32]*AudioDevice
	pendingPort map[uint32][]*Port // node_id -> ports seen before the node itself
	idleTimer   *time.Timer
	idleReset   chan struct{}
	done        chan struct{}
}

func newEnumSession() *enumSession {
	return &enumSession{
		devices:     make(map[uint32]*AudioDevice),
		pendingPort: make(map[uint32][]*Port),
		idleReset:   make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (e *enumSession) poke() {
	select {
	case e.idleReset <- struct{}{}:
	default:
	}
}

// watchQuiescence runs the quiescence timer on its own goroutine: every
// announcement resets the timer, and once quiescenceWindow elapses with no
// further announcements it calls quit and closes done.
func (e *enumSession) watchQuiescence(quit func()) {
	timer := time.NewTimer(quiescenceWindow)
	defer timer.Stop()
	for {
		select {
		case <-e.idleReset:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(quiescenceWindow)
		case <-timer.C:
			quit()
			close(e.done)
			return
		}
	}
}

//export pwspdGoOnGlobal
func pwspdGoOnGlobal(token C.uintptr_t, g *C.pwspd_global, isPort C.int) {
	h := cgo.Handle(token)
	session, ok := h.Value().(*enumSession)
	if !ok {
		return
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	defer session.poke()

	if isPort != 0 {
		port := &Port{
			NodeID: uint32(g.parent_id),
			PortID: uint32(g.port_id),
			Name:   C.GoString(g.name),
		}
		if dev, ok := session.devices[port.NodeID]; ok {
			applyPortName(dev, port)
			return
		}
		session.pendingPort[port.NodeID] = append(session.pendingPort[port.NodeID], port)
		return
	}

	mediaClass := C.GoString(g.media_class)
	kind, ok := classifyMediaClass(mediaClass)
	if !ok {
		return
	}

	name := C.GoString(g.name)
	dev := &AudioDevice{
		ID:   uint32(g.id),
		Name: name,
		Nick: resolveNick(C.GoString(g.nick), C.GoString(g.description), name),
		Kind: kind,
	}
	for _, port := range session.pendingPort[dev.ID] {
		applyPortName(dev, port)
	}
	delete(session.pendingPort, dev.ID)
	session.devices[dev.ID] = dev
}

//export pwspdGoOnGlobalRemoved
func pwspdGoOnGlobalRemoved(token C.uintptr_t, id C.uint32_t) {
	h := cgo.Handle(token)
	session, ok := h.Value().(*enumSession)
	if !ok {
		return
	}
	session.mu.Lock()
	delete(session.devices, uint32(id))
	session.mu.Unlock()
}

// Controller owns the daemon's view of the PipeWire graph.
type Controller struct {
	log *slog.Logger
}

// New returns a Controller that logs through log.
func New(log *slog.Logger) *Controller {
	return &Controller{log: log}
}

// Enumerate brings up a graph event loop on its own thread, collects
// registry announcements until quiescenceWindow elapses with no new
// events, then tears the loop down and returns the accumulated devices
// sorted by id. If the graph loop cannot be reached at all, it returns
// ErrGraphUnavailable; callers should treat that as "linking degrades to a
// local-only no-op", not a fatal condition.
func (c *Controller) Enumerate(ctx context.Context) ([]AudioDevice, error) {
	session := newEnumSession()
	handle := cgo.NewHandle(session)
	defer handle.Delete()

	s := C.pwspd_session_new(C.uintptr_t(handle))
	if s == nil {
		return nil, ErrGraphUnavailable
	}
	defer C.pwspd_session_destroy(s)

	if C.pwspd_session_run(s) != 0 {
		return nil, ErrGraphUnavailable
	}

	go session.watchQuiescence(func() { C.pwspd_session_quit(s) })

	select {
	case <-session.done:
	case <-ctx.Done():
		C.pwspd_session_quit(s)
		<-session.done
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	devices := make([]AudioDevice, 0, len(session.devices))
	for _, d := range session.devices {
		devices = append(devices, *d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// CreateVirtualSource instantiates the null-sink-backed virtual microphone
// node. Failure here is fatal to the daemon per spec.md §4.D — the caller
// is expected to treat a non-nil error as a startup abort.
func (c *Controller) CreateVirtualSource(description string) (*Terminator, error) {
	handle := cgo.NewHandle(struct{}{})
	defer handle.Delete()

	s := C.pwspd_session_new(C.uintptr_t(handle))
	if s == nil {
		return nil, ErrGraphUnavailable
	}
	if C.pwspd_session_run(s) != 0 {
		C.pwspd_session_destroy(s)
		return nil, ErrGraphUnavailable
	}

	cName := C.CString(VirtualSourceName)
	defer C.free(unsafe.Pointer(cName))
	cDesc := C.CString(description)
	defer C.free(unsafe.Pointer(cDesc))

	id := C.pwspd_create_virtual_source(s, cName, cDesc)
	if id == 0 {
		C.pwspd_session_quit(s)
		C.pwspd_session_destroy(s)
		return nil, errors.New("graph: failed to create virtual source node")
	}

	c.log.Info("created virtual source", "name", VirtualSourceName, "node_id", uint32(id))
	return &Terminator{session: s}, nil
}

// CreateLinkPair creates two unidirectional links (FL→FL, FR→FR) between an
// output device's stereo output ports and an input device's stereo input
// ports. Per spec.md §3, at most one link pair exists per (source, dest)
// at a time — callers are responsible for terminating any prior pair
// before calling this again.
func (c *Controller) CreateLinkPair(out, in *AudioDevice) (*Terminator, error) {
	if !out.HasStereoOutput() {
		return nil, errors.New("graph: source device has no stereo output ports")
	}
	if !in.HasStereoInput() {
		return nil, errors.New("graph: destination device has no stereo input ports")
	}

	handle := cgo.NewHandle(struct{}{})
	defer handle.Delete()

	s := C.pwspd_session_new(C.uintptr_t(handle))
	if s == nil {
		return nil, ErrGraphUnavailable
	}
	if C.pwspd_session_run(s) != 0 {
		C.pwspd_session_destroy(s)
		return nil, ErrGraphUnavailable
	}

	flID := C.pwspd_create_link(s,
		C.uint32_t(out.OutputFL.NodeID), C.uint32_t(out.OutputFL.PortID),
		C.uint32_t(in.InputFL.NodeID), C.uint32_t(in.InputFL.PortID))
	frID := C.pwspd_create_link(s,
		C.uint32_t(out.OutputFR.NodeID), C.uint32_t(out.OutputFR.PortID),
		C.uint32_t(in.InputFR.NodeID), C.uint32_t(in.InputFR.PortID))

	if flID == 0 || frID == 0 {
		C.pwspd_session_quit(s)
		C.pwspd_session_destroy(s)
		return nil, errors.New("graph: failed to create link pair")
	}

	c.log.Info("linked devices", "from", out.Name, "to", in.Name)
	return &Terminator{session: s}, nil
}
