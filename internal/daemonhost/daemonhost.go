// Package daemonhost implements the Daemon Host (spec.md §4.D): enforcing
// one running instance, bringing up the Playback Engine and Graph
// Controller, and running the accept and tick loops until shutdown.
package daemonhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"pwspd/internal/config"
	"pwspd/internal/dispatch"
	"pwspd/internal/engine"
	"pwspd/internal/graph"
	"pwspd/internal/lockfile"
	"pwspd/internal/wire"
)

const tickInterval = 100 * time.Millisecond // tick_loop: engine.update() at >=10Hz

// Host owns every long-lived resource the daemon process holds: the
// singleton lock, the listening socket, the playback engine, and the
// graph controller's virtual source.
type Host struct {
	log *slog.Logger

	lock *lockfile.Lock
	ln   net.Listener

	engine *engine.Engine
	graph  *graph.Controller
	disp   *dispatch.Dispatcher

	virtualSource *graph.Terminator

	sockPath string
}

// Start runs the startup sequence described in spec.md §4.D:
//  1. ensure the runtime directory exists,
//  2. acquire the exclusive advisory lock (failure is fatal: "already running"),
//  3. create the virtual source node (failure is fatal),
//  4. construct the engine, apply persisted defaults, request an initial link,
//  5. remove any stale socket and bind a fresh one.
func Start(log *slog.Logger) (*Host, error) {
	runtimeDir := RuntimeDir()
	if err := os.MkdirAll(runtimeDir, 0o750); err != nil {
		return nil, fmt.Errorf("daemonhost: create runtime dir: %w", err)
	}

	lock, err := lockfile.Acquire(LockPath(runtimeDir))
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			return nil, fmt.Errorf("daemonhost: already running: %w", err)
		}
		return nil, fmt.Errorf("daemonhost: acquire lock: %w", err)
	}

	ctl := graph.New(log)
	virtualSource, err := ctl.CreateVirtualSource("pwspd virtual microphone")
	if err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("daemonhost: create virtual source: %w", err)
	}

	var sink engine.Sink
	if stream, serr := graph.NewPlaybackStream(graph.VirtualSourceName); serr == nil {
		sink = stream
	} else {
		log.Warn("playback stream unavailable, mixing into the void", "err", serr)
	}

	eng := engine.New(log, sink)
	disp := dispatch.New(log, eng, ctl)

	cfg := config.Load()
	if cfg.DefaultVolume != nil {
		eng.SetMasterVolume(*cfg.DefaultVolume)
	}
	if cfg.DefaultInputName != nil {
		if serr := disp.SelectInput(*cfg.DefaultInputName); serr != nil {
			log.Warn("could not select persisted default input", "input", *cfg.DefaultInputName, "err", serr)
		}
	}

	sockPath := SockPath(runtimeDir)
	_ = os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		_ = virtualSource.Close()
		_ = lock.Close()
		return nil, fmt.Errorf("daemonhost: bind socket: %w", err)
	}

	return &Host{
		log:           log,
		lock:          lock,
		ln:            ln,
		engine:        eng,
		graph:         ctl,
		disp:          disp,
		virtualSource: virtualSource,
		sockPath:      sockPath,
	}, nil
}

// Run spawns the accept loop and the tick loop and blocks until either
// exits or ctx is cancelled. Per spec.md §4.D step 6: if either loop
// finishes, the other is stopped and Run returns — the caller is expected
// to exit the process with a non-zero code on a non-nil, non-context
// error.
func (h *Host) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		errCh <- h.acceptLoop(ctx)
	}()
	go func() {
		errCh <- h.tickLoop(ctx)
	}()

	err := <-errCh
	cancel()
	_ = h.ln.Close()
	<-errCh

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Host) acceptLoop(ctx context.Context) error {
	for {
		conn, err := h.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return context.Canceled
			default:
				return fmt.Errorf("daemonhost: accept: %w", err)
			}
		}
		go h.handleConn(conn)
	}
}

// handleConn serves one client connection until it disconnects or a
// frame-level I/O error occurs — any such failure terminates only this
// task (spec.md §4.D "Any I/O failure terminates that task only").
func (h *Host) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		req, err := wire.ReadRequest(conn)
		if err != nil {
			return
		}

		resp, kill := h.disp.Dispatch(req)

		if err := wire.WriteResponse(conn, resp); err != nil {
			return
		}

		if kill {
			h.log.Info("kill command received, shutting down")
			os.Exit(0)
		}
	}
}

func (h *Host) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	buf := make([]float32, 48000*2/10) // one tick's worth of stereo audio at 48kHz
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case <-ticker.C:
			if err := h.engine.Tick(buf); err != nil {
				h.log.Warn("tick failed", "err", err)
			}
			h.disp.Relink()
		}
	}
}

// Close releases every resource Start acquired, in reverse order.
func (h *Host) Close() error {
	_ = h.ln.Close()
	_ = os.Remove(h.sockPath)
	_ = h.virtualSource.Close()
	return h.lock.Close()
}
