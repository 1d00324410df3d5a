package source

import (
	"encoding/binary"
	"testing"
)

func int16LE(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func TestPushSourceStreamsPushedSamples(t *testing.T) {
	p := NewPushSource(44100, 1)
	p.PushMemory(append(int16LE(16384), int16LE(-16384)...))

	samples := make([][2]float64, 2)
	n, ok := p.Stream(samples)
	if !ok || n != 2 {
		t.Fatalf("Stream = %d, %v", n, ok)
	}
	if samples[0][0] <= 0 || samples[0][1] <= 0 {
		t.Errorf("sample 0 = %v, want positive", samples[0])
	}
	if samples[1][0] >= 0 || samples[1][1] >= 0 {
		t.Errorf("sample 1 = %v, want negative", samples[1])
	}
}

func TestPushSourceUnderrunIsSilenceNotEOF(t *testing.T) {
	p := NewPushSource(44100, 1)
	samples := make([][2]float64, 4)
	n, ok := p.Stream(samples)
	if !ok || n != 4 {
		t.Fatalf("Stream on empty buffer = %d, %v, want 4, true", n, ok)
	}
	for _, s := range samples {
		if s != ([2]float64{}) {
			t.Errorf("expected silence, got %v", s)
		}
	}
}

func TestPushSourceCloseEndsStreamAfterDrain(t *testing.T) {
	p := NewPushSource(44100, 1)
	p.PushMemory(int16LE(100))
	p.Close()

	samples := make([][2]float64, 3)
	n, ok := p.Stream(samples)
	if n != 1 || !ok {
		t.Fatalf("first drain = %d, %v, want 1, true", n, ok)
	}
	n2, ok2 := p.Stream(samples)
	if n2 != 0 || ok2 {
		t.Fatalf("post-drain stream = %d, %v, want 0, false", n2, ok2)
	}
}

func TestPushSourceStereoChannels(t *testing.T) {
	p := NewPushSource(44100, 2)
	p.PushMemory(append(int16LE(10000), int16LE(-10000)...))
	samples := make([][2]float64, 1)
	n, ok := p.Stream(samples)
	if !ok || n != 1 {
		t.Fatalf("Stream = %d, %v", n, ok)
	}
	if samples[0][0] <= 0 || samples[0][1] >= 0 {
		t.Errorf("stereo sample = %v, want left>0, right<0", samples[0])
	}
}
