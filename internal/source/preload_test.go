package source

import (
	"testing"
	"time"

	"github.com/gopxl/beep"
)

type finiteStreamer struct {
	remaining int
}

func (f *finiteStreamer) Stream(samples [][2]float64) (int, bool) {
	if f.remaining <= 0 {
		return 0, false
	}
	n := len(samples)
	if n > f.remaining {
		n = f.remaining
	}
	for i := 0; i < n; i++ {
		samples[i] = [2]float64{0.25, -0.25}
	}
	f.remaining -= n
	return n, true
}
func (f *finiteStreamer) Err() error { return nil }

func TestPreloadCacheMissThenBackgroundFill(t *testing.T) {
	cache := NewPreloadCache(2, time.Minute, 1000)

	if _, _, ok := cache.lookup("track-a"); ok {
		t.Fatal("expected cache miss before any decode")
	}

	format := beep.Format{SampleRate: beep.SampleRate(44100), NumChannels: 1, Precision: 2}
	cache.spawnDecode("track-a", func() (decodedStream, beep.Format, error) {
		return &finiteStreamer{remaining: 128}, format, nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, ok := cache.lookup("track-a"); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("background decode did not populate the cache in time")
}

func TestPreloadCacheReleaseTriggersGCEventually(t *testing.T) {
	cache := NewPreloadCache(1, time.Nanosecond, 1)
	format := beep.Format{SampleRate: beep.SampleRate(44100), NumChannels: 1, Precision: 2}
	cache.spawnDecode("short-lived", func() (decodedStream, beep.Format, error) {
		return &finiteStreamer{remaining: 16}, format, nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cache.mu.Lock()
		_, ok := cache.cache["short-lived"]
		cache.mu.Unlock()
		if ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cache.lookup("short-lived") // bump refcount to 1
	cache.release("short-lived") // drop to 0, and GC (gcEvery=1) should then evict it since idleTTL is ~0

	cache.mu.Lock()
	_, stillPresent := cache.cache["short-lived"]
	cache.mu.Unlock()
	if stillPresent {
		t.Error("expected entry to be evicted by GC after refcount reached 0 past idleTTL")
	}
}

func TestSeekableMemoryWriteAndSeek(t *testing.T) {
	var m seekableMemory
	m.Write([]byte("hello"))
	if string(m.bytes()) != "hello" {
		t.Fatalf("bytes() = %q", m.bytes())
	}
	if _, err := m.Seek(0, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	m.Write([]byte("HELLO"))
	if string(m.bytes()) != "HELLO" {
		t.Fatalf("bytes() after overwrite = %q", m.bytes())
	}
}
