package mixer

import (
	"testing"
	"time"
)

type silentSource struct {
	paused bool
}

func (s *silentSource) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i] = [2]float64{1, 1}
	}
	return len(samples), true
}
func (s *silentSource) Err() error { return nil }
func (s *silentSource) Pause()     { s.paused = true }

func TestAddSoundInsertsPaused(t *testing.T) {
	root := NewOutputMixer()
	src := &silentSource{}
	if err := root.AddSound(src); err != nil {
		t.Fatalf("AddSound: %v", err)
	}
	if !src.paused {
		t.Error("expected source to be paused on insertion")
	}
}

func TestMixerTreeComposesVolume(t *testing.T) {
	root := NewOutputMixer()
	child, err := NewMixer(root)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	child.SetVolume(0.5)

	src := &silentSource{}
	if err := child.AddSound(src); err != nil {
		t.Fatalf("AddSound: %v", err)
	}

	samples := make([][2]float64, 4)
	n, ok := root.Stream(samples)
	if !ok || n != 4 {
		t.Fatalf("Stream = %d, %v", n, ok)
	}
	for i, s := range samples {
		if s[0] != 0.5 || s[1] != 0.5 {
			t.Errorf("sample %d = %v, want [0.5 0.5]", i, s)
		}
	}
}

func TestAddMixerRejectsAlreadyOwnedChild(t *testing.T) {
	root := NewOutputMixer()
	other := NewOutputMixer()
	child, err := NewMixer(root)
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	if err := other.AddMixer(child); err != ErrAlreadyOwned {
		t.Fatalf("AddMixer on already-owned child = %v, want ErrAlreadyOwned", err)
	}
}

func TestRemoveMixerReparentsToOutput(t *testing.T) {
	root := NewOutputMixer()
	mid, err := NewMixer(root)
	if err != nil {
		t.Fatalf("NewMixer(mid): %v", err)
	}
	leaf, err := NewMixer(mid)
	if err != nil {
		t.Fatalf("NewMixer(leaf): %v", err)
	}

	if err := mid.RemoveMixer(leaf, false); err != nil {
		t.Fatalf("RemoveMixer: %v", err)
	}

	if _, ok := root.childMixers[leaf]; !ok {
		t.Error("expected leaf to be re-parented under root (the output mixer)")
	}
}

func TestSetFXAppendUpdateRemove(t *testing.T) {
	m := NewOutputMixer()

	idx := m.SetFX("$verb:reverb:0.5:0.3", -1)
	if idx != 0 {
		t.Fatalf("first SetFX index = %d, want 0", idx)
	}

	idx = m.SetFX("echo:0.2", -1)
	if idx != 1 {
		t.Fatalf("second SetFX index = %d, want 1", idx)
	}

	// Update in place by id.
	idx = m.SetFX("$verb:reverb:0.9:0.9", -1)
	if idx != 0 {
		t.Fatalf("update SetFX index = %d, want 0", idx)
	}
	effects := m.Effects()
	if len(effects) != 2 || effects[0].Params[0] != 0.9 {
		t.Fatalf("effects after update = %+v", effects)
	}

	// Remove by id-only spec.
	if idx := m.SetFX("$verb", -1); idx != -1 {
		t.Fatalf("remove-by-id SetFX index = %d, want -1", idx)
	}
	if effects := m.Effects(); len(effects) != 1 {
		t.Fatalf("effects after remove-by-id = %+v, want 1 remaining", effects)
	}

	// Clear all.
	if idx := m.SetFX("", -1); idx != -1 {
		t.Fatalf("clear SetFX index = %d, want -1", idx)
	}
	if effects := m.Effects(); len(effects) != 0 {
		t.Fatalf("effects after clear = %+v, want none", effects)
	}
}

func TestVolumePercentRoundTrip(t *testing.T) {
	m := NewOutputMixer()
	m.SetVolumePercent(100)
	if v := m.Volume(); v < 0.999 || v > 1.001 {
		t.Errorf("Volume after SetVolumePercent(100) = %v, want ~1.0", v)
	}
	if p := m.VolumePercent(); p < 99.9 || p > 100.1 {
		t.Errorf("VolumePercent = %v, want ~100", p)
	}
}

func TestSlideVolumeReachesTargetAndClearsFlag(t *testing.T) {
	m := NewOutputMixer()
	m.SetVolume(0)
	m.SlideVolume(1.0, 30*time.Millisecond)
	if !m.IsVolumeSliding() {
		t.Fatal("expected IsVolumeSliding() true immediately after SlideVolume")
	}
	time.Sleep(100 * time.Millisecond)
	if m.IsVolumeSliding() {
		t.Error("expected IsVolumeSliding() false after slide completes")
	}
	if v := m.Volume(); v < 0.99 {
		t.Errorf("Volume after slide completion = %v, want ~1.0", v)
	}
}
