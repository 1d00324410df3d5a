// Package source implements the NVGT sound source object (§4.6): the
// five loading shapes, transport state machine, isolating-mixer
// wiring, and spatial-DSP activation toggle, on top of
// internal/mixer and internal/spatial.
package source

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/vorbis"

	"nvgtcore/internal/mixer"
	"nvgtcore/internal/spatial"
)

var (
	// ErrClosed is returned by transport operations on a closed Source.
	ErrClosed = errors.New("source: already closed")
	// ErrNoEnvironment is returned by DetachEnvironment when no
	// environment is currently attached.
	ErrNoEnvironment = errors.New("source: no environment attached")
)

// decodedStream is the subset of beep.StreamSeekCloser a Source needs;
// PushSource satisfies a narrower version without Seek/Len, handled
// separately in NewPushSource.
type decodedStream interface {
	beep.Streamer
	Err() error
}

// Source is one playable sound: a decoded stream inserted into a
// private "isolating" mixer that also hosts the per-source spatial DSP
// slot, attached under a parent mixer (the output mixer, unless the
// caller specifies otherwise).
type Source struct {
	mu sync.Mutex

	decoded   decodedStream
	seekable  beep.StreamSeeker // non-nil when the decode path supports seeking
	closer    io.Closer
	format    beep.Format
	resampled beep.Streamer

	parent    *mixer.Mixer
	isolating *mixer.Mixer
	spatialFX *spatialStreamer

	listener spatial.Listener
	x, y, z  float64
	rotation float64
	panStep  float64
	volumeStep float64
	dspActive  bool

	env        *spatial.Environment
	attachment *spatial.Attachment

	playing bool
	looped  bool

	pitchMult float64 // TODO: wire into an actual beep.Resample of the decoded stream; currently bookkeeping only, matching the isolating mixer's own pitch field.

	cacheKey      string
	preload       *PreloadCache
	scriptContext string

	closed bool
}

// ScriptContext returns the context string supplied to NewCallbackSource,
// or "" for every other loading shape.
func (s *Source) ScriptContext() string { return s.scriptContext }

// spatialStreamer wraps a decoded stream with the basic (non-HRTF)
// stereo gain computation, toggled on/off by the owning Source without
// needing to touch the mixer graph: when inactive it is byte-for-byte
// a passthrough, satisfying spec.md's "no DSP installed" invariant for
// a source coincident with the listener and with no environment.
type spatialStreamer struct {
	inner beep.Streamer

	mu     sync.Mutex
	active bool
	gains  spatial.BasicGains
}

func (s *spatialStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := s.inner.Stream(samples)
	s.mu.Lock()
	active := s.active
	gains := s.gains
	s.mu.Unlock()
	if active {
		for i := 0; i < n; i++ {
			samples[i][0] *= gains.Left
			samples[i][1] *= gains.Right
		}
	}
	return n, ok
}

func (s *spatialStreamer) Err() error { return nil }

// Pause satisfies mixer.SoundSource; the inner decoded stream has no
// pause state of its own (mixer insertion order already pauses via a
// separate bookkeeping field), so this is a deliberate no-op.
func (s *spatialStreamer) Pause() {}

func (s *spatialStreamer) setActive(active bool, gains spatial.BasicGains) {
	s.mu.Lock()
	s.active, s.gains = active, gains
	s.mu.Unlock()
}

// newSource wires a decoded stream into a fresh isolating mixer under
// parent (the output mixer if parent is nil is the caller's
// responsibility to pass explicitly — this package has no global
// singleton).
func newSource(parent *mixer.Mixer, decoded decodedStream, format beep.Format, closer io.Closer) (*Source, error) {
	isolating, err := mixer.NewMixer(parent)
	if err != nil {
		return nil, err
	}

	resampled := beep.Streamer(decoded)
	if format.SampleRate != 0 && format.SampleRate != mixer.NominalSampleRate {
		resampled = beep.Resample(4, format.SampleRate, mixer.NominalSampleRate, decoded)
	}

	wrapped := &spatialStreamer{inner: resampled}
	if err := isolating.AddSound(wrapped); err != nil {
		isolating.Close()
		return nil, err
	}

	seekable, _ := decoded.(beep.StreamSeeker)

	src := &Source{
		decoded:    decoded,
		seekable:   seekable,
		closer:     closer,
		format:     format,
		resampled:  resampled,
		parent:     parent,
		isolating:  isolating,
		spatialFX:  wrapped,
		panStep:    1,
		volumeStep: 1,
		pitchMult:  1,
	}
	return src, nil
}

func decodeVorbis(rc io.ReadCloser) (decodedStream, beep.Format, error) {
	streamer, format, err := vorbis.Decode(rc)
	if err != nil {
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}

// SetPosition updates the source's position, listener pose, rotation
// and falloff parameters, and re-evaluates whether the per-source DSP
// slot should be active: installed whenever the listener-to-source
// offset is nonzero or an environment is attached, removed when the
// source sits exactly at the listener with no environment (spec.md
// §4.6's spatial-activation invariant).
func (s *Source) SetPosition(listenerX, listenerY, listenerZ, x, y, z, rotation, panStep, volumeStep float64) {
	s.mu.Lock()
	s.listener = spatial.Listener{X: listenerX, Y: listenerY, Z: listenerZ, Rotation: rotation}
	s.x, s.y, s.z = x, y, z
	s.rotation = rotation
	if panStep > 0 {
		s.panStep = panStep
	}
	if volumeStep > 0 {
		s.volumeStep = volumeStep
	}
	hasEnv := s.env != nil
	coincident := x == listenerX && y == listenerY && z == listenerZ
	s.dspActive = hasEnv || !coincident

	if s.attachment != nil {
		s.attachment.SetPosition(x, y, z)
	}

	var gains spatial.BasicGains
	if s.dspActive {
		gains = spatial.ComputeBasicGains(x, y, z, s.listener, rotation, s.volumeStep, s.panStep)
	} else {
		gains = spatial.BasicGains{Left: 1, Right: 1}
	}
	active := s.dspActive
	s.mu.Unlock()

	s.spatialFX.setActive(active, gains)
}

// AttachEnvironment joins the source to env, forcing the spatial DSP
// slot active regardless of listener coincidence.
func (s *Source) AttachEnvironment(env *spatial.Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.env == env {
		return
	}
	s.env = env
	s.attachment = env.Attach()
	s.attachment.SetPosition(s.x, s.y, s.z)
	s.dspActive = true
}

// DetachEnvironment releases the source from its current environment,
// blocking until the environment's background thread confirms the
// detach, per spec.md §4.7's rendez-vous semantics.
func (s *Source) DetachEnvironment() error {
	s.mu.Lock()
	env, att := s.env, s.attachment
	s.mu.Unlock()
	if env == nil {
		return ErrNoEnvironment
	}
	env.Detach(att)
	s.mu.Lock()
	s.env, s.attachment = nil, nil
	coincident := s.x == s.listener.X && s.y == s.listener.Y && s.z == s.listener.Z
	s.dspActive = !coincident
	s.mu.Unlock()
	return nil
}

// Play starts playback. When the source is not already playing and its
// stream is seekable, Play first rewinds it to the start, so Play after
// Pause restarts rather than resumes. If resetLoopState is true, the
// loop flag is cleared, per spec.md §4.6.
func (s *Source) Play(resetLoopState bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.playing && s.seekable != nil {
		if err := s.seekable.Seek(0); err != nil {
			return err
		}
	}
	s.playing = true
	if resetLoopState {
		s.looped = false
	}
	return nil
}

// PlayLooped plays and sets the loop flag.
func (s *Source) PlayLooped() error {
	if err := s.Play(false); err != nil {
		return err
	}
	s.mu.Lock()
	s.looped = true
	s.mu.Unlock()
	return nil
}

// PlayWait plays and blocks for the stream's remaining duration scaled
// by the current pitch multiplier.
func (s *Source) PlayWait() error {
	if err := s.Play(true); err != nil {
		return err
	}
	s.mu.Lock()
	remaining := s.remainingDuration()
	pitch := s.pitchMult
	s.mu.Unlock()
	if pitch <= 0 {
		pitch = 1
	}
	time.Sleep(time.Duration(float64(remaining) / pitch))
	return nil
}

func (s *Source) remainingDuration() time.Duration {
	if s.seekable == nil || s.format.SampleRate == 0 {
		return 0
	}
	total := s.seekable.Len()
	pos := s.seekable.Position()
	remainingSamples := total - pos
	if remainingSamples < 0 {
		return 0
	}
	return s.format.SampleRate.D(remainingSamples)
}

// Pause stops advancing playback without resetting position. It only
// clears the playing flag: the Source holds no HRTF convolver, and no
// per-source DSP state is reset.
func (s *Source) Pause() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

// Stop pauses and rewinds to the beginning.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	if s.seekable != nil {
		return s.seekable.Seek(0)
	}
	return nil
}

// Seek moves the decode position to the given offset in milliseconds.
func (s *Source) Seek(ms int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seekable == nil {
		return errors.New("source: underlying stream is not seekable")
	}
	sample := s.format.SampleRate.N(time.Duration(ms) * time.Millisecond)
	return s.seekable.Seek(sample)
}

// SetPitch sets the source's pitch multiplier (bookkeeping; see the
// pitchMult field's TODO for the missing resample wiring) and mirrors
// it onto the isolating mixer.
func (s *Source) SetPitch(multiplier float64) {
	s.mu.Lock()
	s.pitchMult = multiplier
	s.mu.Unlock()
	s.isolating.SetPitch(multiplier)
}

// SlideVolume, SlidePan and SlidePitch delegate to the isolating
// mixer, which owns the source's own bus-level volume/pan/pitch.
func (s *Source) SlideVolume(target float64, d time.Duration) { s.isolating.SlideVolume(target, d) }
func (s *Source) SlidePan(target float64, d time.Duration)    { s.isolating.SlidePan(target, d) }
func (s *Source) SlidePitch(target float64, d time.Duration)  { s.isolating.SlidePitch(target, d) }

// IsPlaying and IsLooped report transport state.
func (s *Source) IsPlaying() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.playing }
func (s *Source) IsLooped() bool  { s.mu.Lock(); defer s.mu.Unlock(); return s.looped }

// Close detaches the DSP, environment and mixers in reverse order,
// releases the underlying stream, and (if this source was opened from
// a preload cache) releases its cache reference.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	env, att := s.env, s.attachment
	s.env, s.attachment = nil, nil
	cacheKey, preload := s.cacheKey, s.preload
	s.mu.Unlock()

	if env != nil {
		env.Detach(att)
	}
	if err := s.isolating.Close(); err != nil {
		return err
	}
	if preload != nil && cacheKey != "" {
		preload.release(cacheKey)
	}
	return s.closer.Close()
}
