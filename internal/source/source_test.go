package source

import (
	"testing"
	"time"

	"nvgtcore/internal/mixer"
	"nvgtcore/internal/spatial"
)

func newTestSource(t *testing.T) (*Source, *PushSource) {
	t.Helper()
	root := mixer.NewOutputMixer()
	src, ps, err := NewPushSoundSource(root, 44100, 2)
	if err != nil {
		t.Fatalf("NewPushSoundSource: %v", err)
	}
	return src, ps
}

func TestSourcePlayPauseStop(t *testing.T) {
	src, _ := newTestSource(t)
	if src.IsPlaying() {
		t.Fatal("new source should not be playing")
	}
	if err := src.Play(true); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !src.IsPlaying() {
		t.Fatal("expected IsPlaying() true after Play")
	}
	src.Pause()
	if src.IsPlaying() {
		t.Fatal("expected IsPlaying() false after Pause")
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSourcePlayLoopedSetsLoopFlag(t *testing.T) {
	src, _ := newTestSource(t)
	if err := src.PlayLooped(); err != nil {
		t.Fatalf("PlayLooped: %v", err)
	}
	if !src.IsLooped() {
		t.Fatal("expected IsLooped() true after PlayLooped")
	}
	src.Play(true)
	if src.IsLooped() {
		t.Fatal("expected IsLooped() false after Play(resetLoopState=true)")
	}
}

func TestSourceSetPositionTogglesDSP(t *testing.T) {
	src, _ := newTestSource(t)
	src.SetPosition(0, 0, 0, 0, 0, 0, 0, 1, 1)
	if src.dspActive {
		t.Error("expected DSP inactive when source is coincident with listener")
	}
	src.SetPosition(0, 0, 0, 10, 0, 0, 0, 1, 1)
	if !src.dspActive {
		t.Error("expected DSP active once source moves away from listener")
	}
	src.SetPosition(0, 0, 0, 0, 0, 0, 0, 1, 1)
	if src.dspActive {
		t.Error("expected DSP inactive again once source returns to listener position")
	}
}

func TestSourceEnvironmentForcesDSPActive(t *testing.T) {
	src, _ := newTestSource(t)
	env := spatial.NewEnvironment(time.Millisecond)
	defer env.Release()

	src.AttachEnvironment(env)
	if !src.dspActive {
		t.Error("expected DSP active once an environment is attached")
	}

	if err := src.DetachEnvironment(); err != nil {
		t.Fatalf("DetachEnvironment: %v", err)
	}
	if src.dspActive {
		t.Error("expected DSP inactive after detaching, source still at listener position")
	}
}

func TestSourceCloseIsIdempotent(t *testing.T) {
	src, _ := newTestSource(t)
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSourceSlideDelegatesToIsolatingMixer(t *testing.T) {
	src, _ := newTestSource(t)
	src.SlideVolume(0, 0)
	if v := src.isolating.Volume(); v != 0 {
		t.Errorf("isolating mixer volume = %v, want 0", v)
	}
}
