package spatial

import "nvgtcore/internal/audiomath"

// FrameSize is the fixed HRTF processing block size, matching
// original_source/src/sound.cpp's hrtf_framesize.
const FrameSize = 512

// Frame is one block of interleaved stereo samples passed through a
// Binauralizer.
type Frame [FrameSize][2]float64

// Binauralizer renders a mono source frame into a binaural stereo
// frame given the source's position relative to the listener's local
// basis. A concrete HRTF renderer (e.g. a Steam Audio/phonon binding)
// is an out-of-scope external collaborator (spec.md §1); this package
// only defines the seam and the blend math around it.
type Binauralizer interface {
	// Binauralize renders in (mono, FrameSize samples) into out,
	// spatializing it at the given offset from the listener, expressed
	// in the listener's local right/up/ahead basis.
	Binauralize(out *Frame, in *[FrameSize]float64, rightX, upY, aheadZ float64)

	// Reset clears any interpolation history the renderer holds for a
	// source, e.g. after a position jump or a pause/resume.
	Reset()

	// Close releases renderer-side resources for a source.
	Close() error
}

// SpatialBlend implements spec.md §4.7's "spatial blend" factor: how
// much of a source's basic (non-HRTF) gain should be crossfaded
// against its HRTF-rendered output, derived from how far off-axis the
// source sits relative to the listener. It mirrors original_source's
// phonon_dsp blend = (|x*pan_step| + |y*pan_step| + |z*pan_step|) / 3,
// clamped to [0,1].
func SpatialBlend(x, y, z, panStep float64) float64 {
	blend := (abs(x*panStep) + abs(y*panStep) + abs(z*panStep)) / 3
	return audiomath.Clamp(blend, 0, 1)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// MixFrames blends a HRTF-rendered frame with the basic-path stereo
// gains applied to the same dry mono frame, weighted by blend — the
// DSP's fallback path for sources the renderer can't (yet) place, or
// for listeners with HRTF disabled.
func MixFrames(hrtf *Frame, dry *[FrameSize]float64, gains BasicGains, blend float64) Frame {
	var out Frame
	for i := 0; i < FrameSize; i++ {
		basicL := dry[i] * gains.Left
		basicR := dry[i] * gains.Right
		out[i][0] = hrtf[i][0]*blend + basicL*(1-blend)
		out[i][1] = hrtf[i][1]*blend + basicR*(1-blend)
	}
	return out
}
