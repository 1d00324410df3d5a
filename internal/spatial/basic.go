// Package spatial implements the non-HRTF and HRTF spatialization
// paths and the sound environment's scene/material/reflection-
// simulation lifecycle (§4.7).
package spatial

import (
	"math"

	"nvgtcore/internal/audiomath"
)

// Listener is the position and facing angle audio is spatialized
// relative to.
type Listener struct {
	X, Y, Z float64
	// Rotation is the azimuth around Z, in radians.
	Rotation float64
}

// Ahead, Up and Right derive the listener's local basis from its pose,
// matching original_source/src/sound.cpp's background-thread update:
// ahead = (sin(rot), cos(rot), 0), up = (0,0,1), right = (1,0,0).
func (l Listener) Ahead() (x, y, z float64) {
	return math.Sin(l.Rotation), math.Cos(l.Rotation), 0
}

func (Listener) Up() (x, y, z float64)    { return 0, 0, 1 }
func (Listener) Right() (x, y, z float64) { return 1, 0, 0 }

// BasicGains is the non-HRTF stereo gain pair computed from a source's
// position relative to a listener.
type BasicGains struct {
	Left, Right float64
}

// ComputeBasicGains implements spec.md §4.7's basic (no-HRTF)
// spatialization path: distance = |sound - listener| after rotating
// the source's (x,y) offset by rotation; volume falls off linearly
// with distance/volumeStep; pan = clamp(x / (125/panStep), -1, 1); both
// the distance-derived amplitude and the pan-derived per-channel
// attenuation are run through the dB-ish linear-to-dB conversion (§S4).
func ComputeBasicGains(sourceX, sourceY, sourceZ float64, listener Listener, rotation, volumeStep, panStep float64) BasicGains {
	dx := sourceX - listener.X
	dy := sourceY - listener.Y
	dz := sourceZ - listener.Z

	cos, sin := math.Cos(rotation), math.Sin(rotation)
	rx := dx*cos - dy*sin
	ry := dx*sin + dy*cos

	distance := math.Sqrt(rx*rx + ry*ry + dz*dz)

	distanceVolume := 1 - distance/volumeStep
	distanceVolume = audiomath.Clamp(distanceVolume, 0, 1)
	baseAmp := audiomath.AmplitudeFromPercent(distanceVolume * 100)

	pan := audiomath.Clamp(rx/(125/panStep), -1, 1)

	left, right := baseAmp, baseAmp
	switch {
	case pan > 0:
		right = baseAmp * audiomath.AmplitudeFromPercent(100-pan)
	case pan < 0:
		left = baseAmp * audiomath.AmplitudeFromPercent(100+pan)
	}
	return BasicGains{Left: left, Right: right}
}
