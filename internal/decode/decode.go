// Package decode adapts the ffmpeg-based go-astiav decoder library to the
// narrow surface the playback engine needs: open a file, pull interleaved
// float32 stereo frames, seek, report duration, close. Keeping the whole
// ffmpeg surface behind this one adapter means internal/engine never needs
// to know go-astiav exists, the same way internal/graph is the only
// importer of the PipeWire cgo shim.
package decode

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
)

// ErrUnsupported is returned by Open when ffmpeg has no demuxer/decoder for
// the file's actual contents (as opposed to its extension, which is never
// trusted for decode selection).
var ErrUnsupported = errors.New("decode: unsupported or corrupt media")

// SupportedExtensions lists the extensions spec.md §6 names as consumed by
// the decoder, lower-cased. It is advisory only — used for cosmetic
// filtering in front-ends — since Open always probes the real container.
var SupportedExtensions = []string{
	"mp3", "wav", "ogg", "flac", "mp4", "m4a", "aac", "mov", "mkv", "webm", "avi",
}

// Extension returns the lower-cased extension of path without its dot, or
// "" if path has none.
func Extension(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}

const (
	outSampleRate = 48000
	outChannels   = 2
)

// Source decodes one media file into interleaved float32 stereo frames at
// outSampleRate, resampling/remixing as needed via swresample. A Source is
// not safe for concurrent use; the playback engine serializes access to
// each track's Source behind its own decode goroutine.
type Source struct {
	path string

	fmtCtx     *astiav.FormatContext
	streamIdx  int
	codecCtx   *astiav.CodecContext
	swr        *astiav.SoftwareResampleContext
	frame      *astiav.Frame
	resampled  *astiav.Frame
	pkt        *astiav.Packet
	durationOK bool
	duration   time.Duration

	pending []float32 // resampled samples not yet drained by Read
	eof     bool
}

// Open probes path's real container (never trusting its extension),
// selects the best audio stream, and prepares a decode+resample pipeline
// producing 48kHz interleaved stereo float32.
func Open(path string) (*Source, error) {
	fmtCtx := astiav.AllocFormatContext()
	if fmtCtx == nil {
		return nil, fmt.Errorf("decode: allocate format context: %w", ErrUnsupported)
	}

	if err := fmtCtx.OpenInput(path, nil, nil); err != nil {
		fmtCtx.Free()
		return nil, fmt.Errorf("decode: open %s: %w", path, ErrUnsupported)
	}
	if err := fmtCtx.FindStreamInfo(nil); err != nil {
		fmtCtx.CloseInput()
		fmtCtx.Free()
		return nil, fmt.Errorf("decode: probe %s: %w", path, ErrUnsupported)
	}

	stream := fmtCtx.FindBestStream(astiav.MediaTypeAudio, -1, -1, nil)
	if stream == nil {
		fmtCtx.CloseInput()
		fmtCtx.Free()
		return nil, fmt.Errorf("decode: no audio stream in %s: %w", path, ErrUnsupported)
	}

	codec := astiav.FindDecoder(stream.CodecParameters().CodecID())
	if codec == nil {
		fmtCtx.CloseInput()
		fmtCtx.Free()
		return nil, fmt.Errorf("decode: no decoder for %s: %w", path, ErrUnsupported)
	}

	codecCtx := astiav.AllocCodecContext(codec)
	if codecCtx == nil {
		fmtCtx.CloseInput()
		fmtCtx.Free()
		return nil, fmt.Errorf("decode: allocate codec context: %w", ErrUnsupported)
	}
	if err := stream.CodecParameters().ToCodecContext(codecCtx); err != nil {
		codecCtx.Free()
		fmtCtx.CloseInput()
		fmtCtx.Free()
		return nil, fmt.Errorf("decode: copy codec parameters: %w", err)
	}
	if err := codecCtx.Open(codec, nil); err != nil {
		codecCtx.Free()
		fmtCtx.CloseInput()
		fmtCtx.Free()
		return nil, fmt.Errorf("decode: open codec: %w", err)
	}

	swr, err := astiav.AllocSoftwareResampleContext()
	if err != nil || swr == nil {
		codecCtx.Free()
		fmtCtx.CloseInput()
		fmtCtx.Free()
		return nil, fmt.Errorf("decode: allocate resampler: %w", ErrUnsupported)
	}

	src := &Source{
		path:      path,
		fmtCtx:    fmtCtx,
		streamIdx: stream.Index(),
		codecCtx:  codecCtx,
		swr:       swr,
		frame:     astiav.AllocFrame(),
		resampled: astiav.AllocFrame(),
		pkt:       astiav.AllocPacket(),
	}
	src.resampled.SetChannelLayout(astiav.ChannelLayoutStereo)
	src.resampled.SetSampleFormat(astiav.SampleFormatFlt)
	src.resampled.SetSampleRate(outSampleRate)

	// total_duration: a stream's duration is only as reliable as its
	// container's index; VBR/streamed sources may report none, which is
	// recorded as unknown (spec.md §4.B "Play algorithm" step 1), not an
	// error.
	if d := stream.Duration(); d > 0 {
		src.duration = time.Duration(float64(d) * float64(stream.TimeBase().Num()) / float64(stream.TimeBase().Den()) * float64(time.Second))
		src.durationOK = true
	} else if d := fmtCtx.Duration(); d > 0 {
		src.duration = time.Duration(d) * time.Microsecond
		src.durationOK = true
	}

	return src, nil
}

// Duration returns the track's total duration, if the container reported
// one. The second return is false for formats with no reliable duration
// (some live-recorded or VBR streams).
func (s *Source) Duration() (time.Duration, bool) {
	return s.duration, s.durationOK
}

// Read fills buf with interleaved stereo float32 samples, decoding and
// resampling more input as needed, and returns the number of float32
// values written (a multiple of outChannels). Once the underlying stream
// and all pending resampled audio are exhausted it returns 0 and a nil
// error; a non-nil error means decoding failed.
func (s *Source) Read(buf []float32) (int, error) {
	n := 0
	for n < len(buf) {
		if len(s.pending) == 0 {
			if s.eof {
				break
			}
			if err := s.decodeMore(); err != nil {
				return n, err
			}
			continue
		}
		copied := copy(buf[n:], s.pending)
		s.pending = s.pending[copied:]
		n += copied
	}
	return n, nil
}

func (s *Source) decodeMore() error {
	for {
		if err := s.fmtCtx.ReadFrame(s.pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				s.eof = true
				return nil
			}
			return fmt.Errorf("decode: read frame: %w", err)
		}
		if s.pkt.StreamIndex() != s.streamIdx {
			s.pkt.Unref()
			continue
		}
		if err := s.codecCtx.SendPacket(s.pkt); err != nil {
			s.pkt.Unref()
			return fmt.Errorf("decode: send packet: %w", err)
		}
		s.pkt.Unref()

		if err := s.codecCtx.ReceiveFrame(s.frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			return fmt.Errorf("decode: receive frame: %w", err)
		}

		samples, err := s.resample()
		if err != nil {
			return err
		}
		s.pending = append(s.pending, samples...)
		s.frame.Unref()
		return nil
	}
}

// resample converts s.frame (the codec's native format/rate/layout) to
// 48kHz interleaved stereo float32 via swresample, matching the mixer's
// internal format regardless of the source file's own format.
func (s *Source) resample() ([]float32, error) {
	if err := s.swr.ConvertFrame(s.frame, s.resampled); err != nil {
		return nil, fmt.Errorf("decode: resample: %w", err)
	}
	out := s.resampled.PlanarData(0)
	samples := make([]float32, len(out)/4)
	for i := range samples {
		samples[i] = float32FromLE(out[i*4 : i*4+4])
	}
	s.resampled.Unref()
	return samples, nil
}

func float32FromLE(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

// Seek repositions the stream to position, clamped at zero (overshoots past
// the end are left to the natural EOF the next Read will surface, per
// spec.md §3's "seek positions are clamped at zero; overshoots silently
// saturate").
func (s *Source) Seek(position time.Duration) error {
	if position < 0 {
		position = 0
	}
	ts := int64(position / time.Microsecond)
	// Stream index -1 makes ffmpeg read ts in AV_TIME_BASE (microsecond) units.
	if err := s.fmtCtx.SeekFrame(-1, ts, astiav.SeekFlagBackward); err != nil {
		return fmt.Errorf("decode: seek: %w", err)
	}
	s.codecCtx.FlushBuffers()
	s.pending = nil
	s.eof = false
	return nil
}

// Close releases every ffmpeg resource the Source holds.
func (s *Source) Close() error {
	s.pkt.Free()
	s.frame.Free()
	s.resampled.Free()
	s.swr.Free()
	s.codecCtx.Free()
	s.fmtCtx.CloseInput()
	s.fmtCtx.Free()
	return nil
}
