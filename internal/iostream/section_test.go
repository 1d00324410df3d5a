package iostream

import (
	"bytes"
	"io"
	"testing"
)

func TestSectionReaderReadsWindow(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789ABCDEF"))
	s := NewSectionReader(src, 4, 6) // "456789"

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "456789" {
		t.Fatalf("got %q, want %q", got, "456789")
	}
}

func TestSectionReaderSeek(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789ABCDEF"))
	s := NewSectionReader(src, 2, 10) // "23456789AB"

	if pos, err := s.Seek(3, io.SeekStart); err != nil || pos != 3 {
		t.Fatalf("Seek(3, start) = %d, %v", pos, err)
	}
	b := make([]byte, 2)
	if _, err := io.ReadFull(s, b); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(b) != "56" {
		t.Fatalf("got %q, want %q", b, "56")
	}

	if pos, err := s.Seek(0, io.SeekCurrent); err != nil || pos != 5 {
		t.Fatalf("Seek(0, cur) = %d, %v", pos, err)
	}

	if pos, err := s.Seek(-2, io.SeekEnd); err != nil || pos != 8 {
		t.Fatalf("Seek(-2, end) = %d, %v", pos, err)
	}

	if _, err := s.Seek(-1, io.SeekStart); err != ErrSeekOutOfRange {
		t.Fatalf("Seek(-1, start) = %v, want ErrSeekOutOfRange", err)
	}
	if _, err := s.Seek(100, io.SeekStart); err != ErrSeekOutOfRange {
		t.Fatalf("Seek(100, start) = %v, want ErrSeekOutOfRange", err)
	}
}

func TestSectionReaderEOFAtBoundary(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	s := NewSectionReader(src, 8, 2) // "89"

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "89" {
		t.Fatalf("got %q, want %q", got, "89")
	}

	n, err := s.Read(make([]byte, 1))
	if n != 0 || err != io.EOF {
		t.Fatalf("Read past end = %d, %v, want 0, EOF", n, err)
	}
}
