package source

import (
	"encoding/binary"
	"sync"
)

// PushSource is the "raw push" loading shape named in spec.md §4.6:
// push_memory/push_string append raw interleaved 16-bit PCM into a
// ring buffer that Stream then drains, bypassing format detection
// entirely (no decoder runs over pushed bytes — the caller has already
// declared the sample rate and channel count).
type PushSource struct {
	mu sync.Mutex

	sampleRate int
	channels   int

	buf    []byte // raw little-endian int16 PCM, interleaved by channel
	read   int
	closed bool
}

// NewPushSource constructs an empty ring buffer declaring its own
// sample rate and channel count, matching spec.md §4.6's "optionally
// with a user-declared sample-rate/channel count bypassing format
// detection" — for PushSource the declaration is mandatory, since there
// is no header to sniff.
func NewPushSource(sampleRate, channels int) *PushSource {
	if channels < 1 {
		channels = 1
	}
	return &PushSource{sampleRate: sampleRate, channels: channels}
}

// PushMemory appends raw PCM bytes to the ring buffer.
func (p *PushSource) PushMemory(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.buf = append(p.buf, data...)
}

// PushString appends the raw bytes of s, for scripts that build PCM
// payloads as byte strings.
func (p *PushSource) PushString(s string) {
	p.PushMemory([]byte(s))
}

// SampleRate and Channels report the declared format.
func (p *PushSource) SampleRate() int { return p.sampleRate }
func (p *PushSource) Channels() int   { return p.channels }

// Stream implements beep.Streamer, draining available pushed samples
// and reporting silence (without ending the stream) once the ring
// buffer is momentarily empty — a push source never reaches EOF on its
// own; it ends only when Close is called.
func (p *PushSource) Stream(samples [][2]float64) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bytesPerFrame := 2 * p.channels
	for i := range samples {
		if p.closed && p.read+bytesPerFrame > len(p.buf) {
			return i, i > 0
		}
		if p.read+bytesPerFrame > len(p.buf) {
			samples[i] = [2]float64{}
			continue
		}
		left := sampleAt(p.buf, p.read, 0)
		right := left
		if p.channels > 1 {
			right = sampleAt(p.buf, p.read, 1)
		}
		samples[i] = [2]float64{left, right}
		p.read += bytesPerFrame
	}
	p.compact()
	return len(samples), true
}

func sampleAt(buf []byte, offset, channel int) float64 {
	idx := offset + channel*2
	v := int16(binary.LittleEndian.Uint16(buf[idx : idx+2]))
	return float64(v) / 32768.0
}

// compact drops already-read bytes once they grow past a small
// threshold, so a long-lived push source doesn't retain its entire
// history.
func (p *PushSource) compact() {
	const keepThreshold = 1 << 16
	if p.read < keepThreshold {
		return
	}
	p.buf = append(p.buf[:0], p.buf[p.read:]...)
	p.read = 0
}

// Err always returns nil; push sources have no decode error state.
func (p *PushSource) Err() error { return nil }

// Close marks the ring buffer as finished: Stream will report EOF once
// all currently-buffered samples have been drained.
func (p *PushSource) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Pause is a no-op satisfying mixer.SoundSource; a push source has no
// transport state of its own to pause.
func (p *PushSource) Pause() {}
