package engine

import (
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"pwspd/internal/wire"
)

func testEngine() *Engine {
	return New(slog.New(slog.DiscardHandler), nil)
}

// newFakeTrack builds a Track without going through Play/decode.Open, for
// exercising state transitions directly.
func newFakeTrack(id wire.TrackID) *Track {
	t := &Track{
		ID:     id,
		Path:   "fake",
		ring:   make(chan []float32, 1),
		seekCh: make(chan seekRequest),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	close(t.doneCh) // no pump goroutine backs a fake track; it is already "done"
	t.state.Store(int32(statePlaying))
	t.volumeBits.Store(math.Float32bits(1.0)) // unity, as newTrack starts every track
	return t
}

func withTracks(e *Engine, ts ...*Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range ts {
		e.tracks[t.ID] = t
		e.order = append(e.order, t.ID)
	}
}

func TestStateDerivation(t *testing.T) {
	e := testEngine()
	if got := e.State(); got != wire.StateStopped {
		t.Fatalf("empty engine state = %v, want Stopped", got)
	}

	a := newFakeTrack(1)
	withTracks(e, a)
	if got := e.State(); got != wire.StatePlaying {
		t.Fatalf("one playing track state = %v, want Playing", got)
	}

	a.state.Store(int32(statePaused))
	if got := e.State(); got != wire.StatePaused {
		t.Fatalf("one paused track state = %v, want Paused", got)
	}
}

func TestStateIsPlayingIfAnyTrackPlaying(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	b := newFakeTrack(2)
	a.state.Store(int32(statePaused))
	withTracks(e, a, b)

	if got := e.State(); got != wire.StatePlaying {
		t.Fatalf("mixed paused/playing state = %v, want Playing", got)
	}
}

func TestTogglePauseAggregate(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	b := newFakeTrack(2)
	withTracks(e, a, b)

	// Both playing: toggle should pause everything.
	if err := e.TogglePause(nil); err != nil {
		t.Fatal(err)
	}
	if !a.isPaused() || !b.isPaused() {
		t.Fatal("expected both tracks paused after toggle")
	}

	// Both paused: toggle should resume everything.
	if err := e.TogglePause(nil); err != nil {
		t.Fatal(err)
	}
	if a.isPaused() || b.isPaused() {
		t.Fatal("expected both tracks resumed after second toggle")
	}
}

func TestPauseResumeSpecificTrack(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	b := newFakeTrack(2)
	withTracks(e, a, b)

	id := wire.TrackID(1)
	if err := e.Pause(&id); err != nil {
		t.Fatal(err)
	}
	if !a.isPaused() {
		t.Fatal("track 1 should be paused")
	}
	if b.isPaused() {
		t.Fatal("track 2 should be unaffected")
	}
}

func TestOperationsOnMissingTrackReturnErrTrackNotFound(t *testing.T) {
	e := testEngine()
	id := wire.TrackID(999)

	if err := e.Pause(&id); err != ErrTrackNotFound {
		t.Fatalf("Pause() = %v, want ErrTrackNotFound", err)
	}
	if _, err := e.Volume(&id); err != ErrTrackNotFound {
		t.Fatalf("Volume() = %v, want ErrTrackNotFound", err)
	}
	if _, err := e.Position(&id); err != ErrTrackNotFound {
		t.Fatalf("Position() = %v, want ErrTrackNotFound", err)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	withTracks(e, a)
	id := wire.TrackID(1)

	if err := e.SetVolume(&id, 5.0); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Volume(&id); v != 1.0 {
		t.Fatalf("volume = %v, want clamped to 1.0", v)
	}

	if err := e.SetVolume(&id, -5.0); err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Volume(&id); v != 0.0 {
		t.Fatalf("volume = %v, want clamped to 0.0", v)
	}
}

func TestToggleLoopFlipsIndependently(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	b := newFakeTrack(2)
	a.looped.Store(true)
	withTracks(e, a, b)

	if err := e.ToggleLoop(nil); err != nil {
		t.Fatal(err)
	}
	if a.looped.Load() {
		t.Fatal("track 1 loop should have flipped to false")
	}
	if !b.looped.Load() {
		t.Fatal("track 2 loop should have flipped to true")
	}
}

func TestIDAllocationUniqueUnderConcurrentAccess(t *testing.T) {
	e := testEngine()
	seen := make(chan uint32, 50)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- e.nextID.Add(1)
		}()
	}
	wg.Wait()
	close(seen)

	ids := make(map[uint32]bool)
	for id := range seen {
		if ids[id] {
			t.Fatalf("duplicate id %d allocated under concurrent access", id)
		}
		ids[id] = true
	}
	if len(ids) != 50 {
		t.Fatalf("got %d unique ids, want 50", len(ids))
	}
}

func TestStopRemovesTrackAndPrunesOrder(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	a.src = nil
	withTracks(e, a)

	// Stop without a decode.Source would nil-deref on src.Close; exercise
	// stopTrack's signalling path directly instead.
	e.mu.Lock()
	delete(e.tracks, a.ID)
	e.pruneOrderLocked()
	e.mu.Unlock()
	close(a.stopCh)

	if _, ok := e.get(1); ok {
		t.Fatal("track 1 should have been removed")
	}
	if len(e.order) != 0 {
		t.Fatalf("order = %v, want empty after prune", e.order)
	}
}

func TestFullStateReflectsMasterVolumeAndInput(t *testing.T) {
	e := testEngine()
	e.SetMasterVolume(0.5)
	e.SetCurrentInput("Built-in Mic", map[string]string{"built-in": "Built-in Mic"})

	fs := e.FullState()
	if fs.MasterVolume != 0.5 {
		t.Fatalf("MasterVolume = %v, want 0.5", fs.MasterVolume)
	}
	if fs.CurrentInputName != "Built-in Mic" {
		t.Fatalf("CurrentInputName = %q, want %q", fs.CurrentInputName, "Built-in Mic")
	}
	if fs.State != wire.StateStopped {
		t.Fatalf("State = %v, want Stopped with no tracks", fs.State)
	}
}

func TestRenderMixSkipsPausedAndEndedTracks(t *testing.T) {
	a := newFakeTrack(1)
	a.ring <- []float32{1, 1}
	a.state.Store(int32(statePaused))

	b := newFakeTrack(2)
	b.ring <- []float32{1, 1}
	b.state.Store(int32(stateEnded))

	c := newFakeTrack(3)
	c.ring <- []float32{0.5, 0.5}
	c.volumeBits.Store(a.volumeBits.Load())

	buf := make([]float32, 2)
	renderMix(buf, []*Track{a, b, c}, 1.0)

	if buf[0] != 0.5 || buf[1] != 0.5 {
		t.Fatalf("buf = %v, want only track 3's contribution [0.5 0.5]", buf)
	}
}

func TestRenderMixAppliesMasterAndTrackVolume(t *testing.T) {
	a := newFakeTrack(1)
	a.ring <- []float32{1, 1}
	a.setVolume(0.5)

	buf := make([]float32, 2)
	renderMix(buf, []*Track{a}, 0.5)

	want := float32(0.25)
	if buf[0] != want || buf[1] != want {
		t.Fatalf("buf = %v, want [%v %v]", buf, want, want)
	}
}

func TestRenderMixClips(t *testing.T) {
	a := newFakeTrack(1)
	a.ring <- []float32{2, -2}

	buf := make([]float32, 2)
	renderMix(buf, []*Track{a}, 1.0)

	if buf[0] != 1 || buf[1] != -1 {
		t.Fatalf("buf = %v, want clipped to [1 -1]", buf)
	}
}

func TestEachTargetNilReturnsAllLiveTracks(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	b := newFakeTrack(2)
	withTracks(e, a, b)

	targets, err := e.eachTarget(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(targets))
	}
}

func TestVolumeNilIDUsesMostRecentlyAddedTrack(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	b := newFakeTrack(2)
	a.setVolume(0.2)
	b.setVolume(0.9)
	withTracks(e, a, b)

	v, err := e.Volume(nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0.9 {
		t.Fatalf("Volume(nil) = %v, want track 2's volume 0.9", v)
	}
}

func TestVolumeNilIDWithNoTracksReturnsErrNoTrack(t *testing.T) {
	e := testEngine()
	if _, err := e.Volume(nil); err != ErrNoTrack {
		t.Fatalf("Volume(nil) = %v, want ErrNoTrack", err)
	}
}

func TestDurationUnknownWhenSourceNeverReportedOne(t *testing.T) {
	e := testEngine()
	a := newFakeTrack(1)
	withTracks(e, a)

	if _, err := e.Duration(nil); err != ErrDurationUnknown {
		t.Fatalf("Duration(nil) = %v, want ErrDurationUnknown", err)
	}
}

func TestIsPausedTrueWhenNoLiveTracks(t *testing.T) {
	e := testEngine()
	paused, err := e.IsPaused(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !paused {
		t.Fatal("IsPaused(nil) with no tracks should report true")
	}
}

func TestPositionDecodesStoredSeconds(t *testing.T) {
	// position() decodes the float64 bits stored by pump/Seek; verify the
	// accessor round-trips correctly without requiring a real decode.Source.
	tr := newFakeTrack(1)
	tr.positionSecs.Store(uint64(0))
	if got := tr.position(); got != 0 {
		t.Fatalf("position = %v, want 0", got)
	}

	want := 3*time.Second + 250*time.Millisecond
	tr.positionSecs.Store(math.Float64bits(want.Seconds()))
	if got := tr.position(); got != want {
		t.Fatalf("position = %v, want %v", got, want)
	}
}
