package spatial

import "testing"

func TestSpatialBlendClampsToUnitRange(t *testing.T) {
	if b := SpatialBlend(0, 0, 0, 1); b != 0 {
		t.Errorf("centered source blend = %v, want 0", b)
	}
	if b := SpatialBlend(100, 100, 100, 1); b != 1 {
		t.Errorf("far off-axis source blend = %v, want clamped to 1", b)
	}
}

func TestSpatialBlendAverages(t *testing.T) {
	got := SpatialBlend(0.3, 0, 0, 1)
	want := 0.1
	if !approxEqual(got, want, 1e-9) {
		t.Errorf("SpatialBlend(0.3,0,0,1) = %v, want %v", got, want)
	}
}

type recordingBinauralizer struct {
	resetCalls int
	closed     bool
}

func (r *recordingBinauralizer) Binauralize(out *Frame, in *[FrameSize]float64, rightX, upY, aheadZ float64) {
	for i := range out {
		out[i][0] = in[i]
		out[i][1] = in[i]
	}
}
func (r *recordingBinauralizer) Reset()      { r.resetCalls++ }
func (r *recordingBinauralizer) Close() error { r.closed = true; return nil }

func TestMixFramesFullBlendUsesHRTFOnly(t *testing.T) {
	var hrtf Frame
	var dry [FrameSize]float64
	for i := range hrtf {
		hrtf[i] = [2]float64{1, 1}
		dry[i] = 0.5
	}
	gains := BasicGains{Left: 0, Right: 0}
	out := MixFrames(&hrtf, &dry, gains, 1.0)
	if out[0][0] != 1 || out[0][1] != 1 {
		t.Errorf("full blend sample = %v, want (1,1)", out[0])
	}
}

func TestMixFramesZeroBlendUsesBasicOnly(t *testing.T) {
	var hrtf Frame
	var dry [FrameSize]float64
	for i := range hrtf {
		hrtf[i] = [2]float64{1, 1}
		dry[i] = 0.5
	}
	gains := BasicGains{Left: 0.2, Right: 0.4}
	out := MixFrames(&hrtf, &dry, gains, 0.0)
	if !approxEqual(out[0][0], 0.1, 1e-9) || !approxEqual(out[0][1], 0.2, 1e-9) {
		t.Errorf("zero blend sample = %v, want (0.1,0.2)", out[0])
	}
}

func TestRecordingBinauralizerSatisfiesInterface(t *testing.T) {
	var b Binauralizer = &recordingBinauralizer{}
	var in [FrameSize]float64
	var out Frame
	b.Binauralize(&out, &in, 0, 0, 0)
	b.Reset()
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
