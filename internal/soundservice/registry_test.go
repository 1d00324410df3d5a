package soundservice

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultProtocolsAndFilterExist(t *testing.T) {
	r := NewRegistry()

	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hi there"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	key, err := r.PrepareTriplet(path, defaultSlot, nil, defaultSlot, nil)
	if err != nil {
		t.Fatalf("PrepareTriplet: %v", err)
	}

	stream, err := r.OpenTriplet(key)
	if err != nil {
		t.Fatalf("OpenTriplet: %v", err)
	}
	defer stream.Close()
	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hi there" {
		t.Errorf("got %q, want %q", got, "hi there")
	}
}

func TestMemoryProtocolDistinctSuffixes(t *testing.T) {
	r := NewRegistry()
	memSlot := r.RegisterProtocol("memory2", NewMemoryProtocol())

	d1 := NewMemoryDirective([]byte("aaa"))
	d2 := NewMemoryDirective([]byte("aaa"))

	key1, err := r.PrepareTriplet("blob", memSlot, d1, defaultSlot, nil)
	if err != nil {
		t.Fatalf("PrepareTriplet 1: %v", err)
	}
	key2, err := r.PrepareTriplet("blob", memSlot, d2, defaultSlot, nil)
	if err != nil {
		t.Fatalf("PrepareTriplet 2: %v", err)
	}
	if key1 == key2 {
		t.Fatal("two distinct memory registrations produced the same triplet key")
	}

	s1, err := r.OpenTriplet(key1)
	if err != nil {
		t.Fatalf("OpenTriplet 1: %v", err)
	}
	got, _ := io.ReadAll(s1)
	if string(got) != "aaa" {
		t.Errorf("got %q, want %q", got, "aaa")
	}
}

func TestOpenUnknownTripletFails(t *testing.T) {
	r := NewRegistry()
	if _, err := r.OpenTriplet("nonexistent\x1e1\x1e"); err != ErrTripletNotFound {
		t.Fatalf("OpenTriplet on unknown key = %v, want ErrTripletNotFound", err)
	}
}

func TestSetDefaultProtocolRejectsUnknownSlot(t *testing.T) {
	r := NewRegistry()
	if err := r.SetDefaultProtocol(99); err != ErrNoSuchSlot {
		t.Fatalf("SetDefaultProtocol(99) = %v, want ErrNoSuchSlot", err)
	}
}

func TestChaChaFilterPassesThroughUnencryptedStream(t *testing.T) {
	r := NewRegistry()
	filterSlot := r.RegisterFilter("chacha2", NewChaChaFilter())

	dir := t.TempDir()
	path := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(path, []byte("not encrypted"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	key, err := r.PrepareTriplet(path, defaultSlot, nil, filterSlot, ChaChaFilterDirective{Key: []byte("k")})
	if err != nil {
		t.Fatalf("PrepareTriplet: %v", err)
	}
	stream, err := r.OpenTriplet(key)
	if err != nil {
		t.Fatalf("OpenTriplet: %v", err)
	}
	defer stream.Close()
	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "not encrypted" {
		t.Errorf("got %q, want pass-through original content", got)
	}
}
