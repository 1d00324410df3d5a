// Package mixer implements the NVGT mixer graph: a tree of non-stopping
// mix buses, each with child mixers, child sound sources, an ordered
// effect chain, and slidable volume/pan/pitch (§4.5).
package mixer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"

	"nvgtcore/internal/audiomath"
	"nvgtcore/internal/metrics"
)

// NominalSampleRate is the bus's default sample rate, matching the
// teacher's AudioMixer and spec.md §4.5's "bus default 44100 Hz".
const NominalSampleRate = beep.SampleRate(44100)

var (
	// ErrAlreadyOwned is returned by AddMixer when the child already has a
	// parent mixer, and by AddSound when the source is already in this
	// mixer's set. AddSound does not detect a source held by another mixer.
	ErrAlreadyOwned = errors.New("mixer: child already belongs to a mixer")
	// ErrNotOwned is returned by RemoveMixer/RemoveSound when the given
	// child does not belong to this mixer.
	ErrNotOwned = errors.New("mixer: child does not belong to this mixer")
)

// SoundSource is the subset of a playing sound source a mixer needs:
// it streams audio and can be paused on insertion, per spec.md §4.5's
// "on add, the source is inserted paused" rule.
type SoundSource interface {
	beep.Streamer
	Pause()
}

// Mixer is a node in the mixer tree. The zero value is not usable;
// construct with NewOutputMixer or NewMixer.
type Mixer struct {
	mu sync.Mutex

	parent *Mixer
	output *Mixer // the tree's root; non-root removal re-parents here

	childMixers map[*Mixer]struct{}
	childSounds map[SoundSource]struct{}

	fx []Effect

	volume float64 // linear amplitude, [0,1]
	pan    float64 // [-1,1]
	pitch  float64 // [0.05,5.0], multiplier of NominalSampleRate

	volumeSliding bool
	panSliding    bool
	pitchSliding  bool
	slideCancel   map[string]context.CancelFunc

	scratch [][2]float64 // reused mixing buffer, grown on demand

	closed bool
}

func newMixerNode() *Mixer {
	return &Mixer{
		childMixers: make(map[*Mixer]struct{}),
		childSounds: make(map[SoundSource]struct{}),
		volume:      1,
		pan:         0,
		pitch:       1,
		slideCancel: make(map[string]context.CancelFunc),
	}
}

// NewOutputMixer constructs a root mixer: a tree's output field points
// to itself, and it has no parent.
func NewOutputMixer() *Mixer {
	m := newMixerNode()
	m.output = m
	return m
}

// NewMixer constructs a mixer already attached under parent, equivalent
// to constructing then calling parent.AddMixer on it.
func NewMixer(parent *Mixer) (*Mixer, error) {
	m := newMixerNode()
	if err := parent.AddMixer(m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddMixer splices child into m's child-mixer set. It fails if child
// already belongs to a mixer.
func (m *Mixer) AddMixer(child *Mixer) error {
	child.mu.Lock()
	owned := child.parent != nil
	child.mu.Unlock()
	if owned {
		return ErrAlreadyOwned
	}

	m.mu.Lock()
	m.childMixers[child] = struct{}{}
	output := m.output
	m.mu.Unlock()

	child.mu.Lock()
	child.parent = m
	child.output = output
	child.mu.Unlock()
	return nil
}

// RemoveMixer detaches child from m. Unless internal is true (the
// caller is relocating the child elsewhere immediately), child is
// re-parented to the tree's output mixer, per spec.md §4.5's "removing
// a non-root mixer implicitly re-parents it to the output mixer".
func (m *Mixer) RemoveMixer(child *Mixer, internal bool) error {
	m.mu.Lock()
	if _, ok := m.childMixers[child]; !ok {
		m.mu.Unlock()
		return ErrNotOwned
	}
	delete(m.childMixers, child)
	output := m.output
	m.mu.Unlock()

	child.mu.Lock()
	child.parent = nil
	child.mu.Unlock()

	if internal || child == output {
		return nil
	}
	return output.AddMixer(child)
}

// AddSound inserts source into m's child-sound set, paused.
func (m *Mixer) AddSound(source SoundSource) error {
	source.Pause()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.childSounds[source]; ok {
		return ErrAlreadyOwned
	}
	m.childSounds[source] = struct{}{}
	metrics.UpdateMixerVoiceCount(len(m.childSounds))
	return nil
}

// RemoveSound detaches source from m. The internal flag is accepted for
// symmetry with RemoveMixer (a source has no re-parenting default; it
// simply stops being mixed).
func (m *Mixer) RemoveSound(source SoundSource, internal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.childSounds[source]; !ok {
		return ErrNotOwned
	}
	delete(m.childSounds, source)
	metrics.UpdateMixerVoiceCount(len(m.childSounds))
	return nil
}

// Volume returns the linear amplitude gain, in [0,1].
func (m *Mixer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// SetVolume sets the linear amplitude gain, clamped to [0,1].
func (m *Mixer) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = audiomath.Clamp(v, 0, 1)
}

// VolumePercent returns the alternate dB-ish 0..100 form of Volume.
func (m *Mixer) VolumePercent() float64 {
	return audiomath.PercentFromAmplitude(m.Volume())
}

// SetVolumePercent sets volume from the alternate dB-ish 0..100 form.
func (m *Mixer) SetVolumePercent(p float64) {
	m.SetVolume(audiomath.AmplitudeFromPercent(audiomath.Clamp(p, 0, 100)))
}

// Pan returns the stereo pan, in [-1,1].
func (m *Mixer) Pan() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pan
}

// SetPan sets the stereo pan, clamped to [-1,1].
func (m *Mixer) SetPan(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pan = audiomath.Clamp(p, -1, 1)
}

// Pitch returns the sample-rate multiplier, in [0.05,5.0].
func (m *Mixer) Pitch() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pitch
}

// SetPitch sets the sample-rate multiplier, clamped to [0.05,5.0].
func (m *Mixer) SetPitch(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pitch = audiomath.Clamp(p, 0.05, 5.0)
}

// IsVolumeSliding, IsPanSliding, IsPitchSliding report whether a slide
// started by SlideVolume/SlidePan/SlidePitch is still in progress.
func (m *Mixer) IsVolumeSliding() bool { m.mu.Lock(); defer m.mu.Unlock(); return m.volumeSliding }
func (m *Mixer) IsPanSliding() bool    { m.mu.Lock(); defer m.mu.Unlock(); return m.panSliding }
func (m *Mixer) IsPitchSliding() bool  { m.mu.Lock(); defer m.mu.Unlock(); return m.pitchSliding }

const slideTick = 15 * time.Millisecond

// SlideVolume interpolates volume linearly to target over duration,
// canceling any slide already in progress on this attribute.
func (m *Mixer) SlideVolume(target float64, duration time.Duration) {
	start := m.Volume()
	m.slide("volume", &m.volumeSliding, duration, func(frac float64) {
		m.SetVolume(start + (audiomath.Clamp(target, 0, 1)-start)*frac)
	})
}

// SlidePan interpolates pan linearly to target over duration.
func (m *Mixer) SlidePan(target float64, duration time.Duration) {
	start := m.Pan()
	m.slide("pan", &m.panSliding, duration, func(frac float64) {
		m.SetPan(start + (audiomath.Clamp(target, -1, 1)-start)*frac)
	})
}

// SlidePitch interpolates pitch linearly to target over duration.
func (m *Mixer) SlidePitch(target float64, duration time.Duration) {
	start := m.Pitch()
	m.slide("pitch", &m.pitchSliding, duration, func(frac float64) {
		m.SetPitch(start + (audiomath.Clamp(target, 0.05, 5.0)-start)*frac)
	})
}

// slide drives a single attribute's interpolation in a background
// goroutine, applying step(frac) at each tick where frac runs from
// (tick/total) up to 1.0, and clears the corresponding *Sliding flag on
// completion or cancellation.
func (m *Mixer) slide(attr string, flag *bool, duration time.Duration, step func(frac float64)) {
	m.mu.Lock()
	if cancel, ok := m.slideCancel[attr]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.slideCancel[attr] = cancel
	*flag = true
	m.mu.Unlock()

	if duration <= 0 {
		step(1)
		m.mu.Lock()
		*flag = false
		delete(m.slideCancel, attr)
		m.mu.Unlock()
		return
	}

	go func() {
		ticker := time.NewTicker(slideTick)
		defer ticker.Stop()
		elapsed := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed += slideTick
				frac := float64(elapsed) / float64(duration)
				if frac >= 1 {
					step(1)
					m.mu.Lock()
					*flag = false
					delete(m.slideCancel, attr)
					m.mu.Unlock()
					return
				}
				step(frac)
			}
		}
	}()
}

// SetFX applies spec.md §4.5's set_fx grammar against m's effect list
// and returns the inserted or updated effect's index. Clearing the list
// and removing an effect also return -1, as does any failure.
func (m *Mixer) SetFX(spec string, index int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spec == "" {
		if index == -1 {
			m.fx = nil
			metrics.UpdateMixerEffectChainLength(0)
			return -1
		}
		if index < 0 || index >= len(m.fx) {
			return -1
		}
		m.fx = append(m.fx[:index], m.fx[index+1:]...)
		metrics.UpdateMixerEffectChainLength(len(m.fx))
		return -1
	}

	if id, ok := specIsIDOnly(spec); ok {
		for i, e := range m.fx {
			if e.ID == id {
				m.fx = append(m.fx[:i], m.fx[i+1:]...)
				metrics.UpdateMixerEffectChainLength(len(m.fx))
				return -1
			}
		}
		return -1
	}

	eff, err := ParseEffectSpec(spec)
	if err != nil {
		return -1
	}

	if eff.ID != "" {
		for i, e := range m.fx {
			if e.ID == eff.ID {
				m.fx[i] = eff
				metrics.UpdateMixerEffectChainLength(len(m.fx))
				return i
			}
		}
	}

	defer func() { metrics.UpdateMixerEffectChainLength(len(m.fx)) }()
	if index >= 0 && index <= len(m.fx) {
		m.fx = append(m.fx, Effect{})
		copy(m.fx[index+1:], m.fx[index:])
		m.fx[index] = eff
		return index
	}

	m.fx = append(m.fx, eff)
	return len(m.fx) - 1
}

// Effects returns a snapshot copy of the current ordered effect list.
func (m *Mixer) Effects() []Effect {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Effect, len(m.fx))
	copy(out, m.fx)
	return out
}

// NodeSnapshot is one node's worth of tree-dump telemetry, for a
// diagnostics surface that needs to render the mixer tree without
// reaching into package-private fields.
type NodeSnapshot struct {
	Path            string
	Volume          float64
	Pan             float64
	Pitch           float64
	ChildMixerCount int
	ChildSoundCount int
	EffectCount     int
}

// Snapshot walks the tree rooted at m and returns one NodeSnapshot per
// node, depth-first, with dotted paths built from label (the root is
// usually labeled "output").
func (m *Mixer) Snapshot(label string) []NodeSnapshot {
	m.mu.Lock()
	self := NodeSnapshot{
		Path:            label,
		Volume:          m.volume,
		Pan:             m.pan,
		Pitch:           m.pitch,
		ChildMixerCount: len(m.childMixers),
		ChildSoundCount: len(m.childSounds),
		EffectCount:     len(m.fx),
	}
	children := make([]*Mixer, 0, len(m.childMixers))
	for c := range m.childMixers {
		children = append(children, c)
	}
	m.mu.Unlock()

	out := []NodeSnapshot{self}
	for i, c := range children {
		out = append(out, c.Snapshot(fmt.Sprintf("%s.child%d", label, i))...)
	}
	return out
}

// Close detaches m from its parent (re-parenting to output, as if
// RemoveMixer had been called) and cancels any in-flight slides.
func (m *Mixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, cancel := range m.slideCancel {
		cancel()
	}
	parent := m.parent
	m.mu.Unlock()

	if parent != nil {
		return parent.RemoveMixer(m, false)
	}
	return nil
}

// Stream implements beep.Streamer: it mixes all child mixers and child
// sounds into samples, applies this mixer's own volume and pan, and
// never reports end-of-stream — a mix bus has no natural end.
func (m *Mixer) Stream(samples [][2]float64) (n int, ok bool) {
	m.mu.Lock()
	if len(m.scratch) < len(samples) {
		m.scratch = make([][2]float64, len(samples))
	}
	scratch := m.scratch[:len(samples)]
	for i := range samples {
		samples[i] = [2]float64{}
	}

	for child := range m.childMixers {
		for i := range scratch {
			scratch[i] = [2]float64{}
		}
		cn, _ := child.Stream(scratch)
		for i := 0; i < cn; i++ {
			samples[i][0] += scratch[i][0]
			samples[i][1] += scratch[i][1]
		}
	}
	for child := range m.childSounds {
		for i := range scratch {
			scratch[i] = [2]float64{}
		}
		cn, _ := child.Stream(scratch)
		for i := 0; i < cn; i++ {
			samples[i][0] += scratch[i][0]
			samples[i][1] += scratch[i][1]
		}
	}

	vol := m.volume
	pan := m.pan
	m.mu.Unlock()

	leftGain, rightGain := panGains(pan)
	for i := range samples {
		samples[i][0] *= vol * leftGain
		samples[i][1] *= vol * rightGain
	}
	return len(samples), true
}

// Err always returns nil: a mix bus has no terminal error state of its
// own (children report their own errors independently).
func (m *Mixer) Err() error { return nil }

// panGains converts a linear pan in [-1,1] to independent left/right
// channel gains: centered at 1.0/1.0, attenuating the opposite channel
// as pan moves to an extreme.
func panGains(pan float64) (left, right float64) {
	left = 1
	right = 1
	if pan > 0 {
		left = 1 - pan
	} else if pan < 0 {
		right = 1 + pan
	}
	return left, right
}
