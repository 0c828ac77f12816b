package engine

// renderMix sums every active track's contribution for this tick into buf,
// each scaled by that track's own volume and the engine's master volume,
// then clips the sum into [-1, 1]. A track whose ring can't fill the whole
// of buf this tick contributes silence for the remainder rather than
// blocking the mix (spec.md §4.B "Mixing").
func renderMix(buf []float32, tracks []*Track, master float32) {
	for i := range buf {
		buf[i] = 0
	}

	for _, t := range tracks {
		if t.isPaused() || t.isEnded() {
			continue
		}
		mixTrack(buf, t, t.volume()*master)
	}

	for i := range buf {
		switch {
		case buf[i] > 1:
			buf[i] = 1
		case buf[i] < -1:
			buf[i] = -1
		}
	}
}

// mixTrack drains as many chunks as t.ring has ready, in order, to cover the
// full span of buf — a single ring chunk (pump's chunkFloats) is smaller
// than a tick's buffer whenever the tick interval exceeds pump's chunk
// duration, and pulling only one chunk per tick would leave the back half
// of every tick silent.
func mixTrack(buf []float32, t *Track, gain float32) {
	offset := 0
	for offset < len(buf) {
		var chunk []float32
		select {
		case c, ok := <-t.ring:
			if !ok {
				return
			}
			chunk = c
		default:
			return
		}

		n := len(chunk)
		if offset+n > len(buf) {
			n = len(buf) - offset
		}
		for i := 0; i < n; i++ {
			buf[offset+i] += chunk[i] * gain
		}
		offset += n
	}
}
