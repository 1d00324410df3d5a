// Package iostream provides small composable stream adapters used by the
// pack store and the compiled-application payload: a bounded-window
// reader (§4.2) and a resettable-cursor deflate stream (§4.9).
package iostream

import (
	"errors"
	"io"
)

// ErrSeekOutOfRange is returned when a seek target falls outside the
// section's window.
var ErrSeekOutOfRange = errors.New("iostream: seek out of range")

// reader is the subset of a source stream SectionReader needs.
type reader interface {
	io.Reader
	io.Seeker
}

// SectionReader wraps a source stream, exposing only the byte range
// [start, start+size) as if it were a standalone stream starting at
// position 0. It takes ownership of the source: closing the section
// closes the source if the source implements io.Closer.
type SectionReader struct {
	src   reader
	start int64
	size  int64
	pos   int64 // position relative to start
}

// NewSectionReader constructs a section over src covering
// [start, start+size). The source may be positioned arbitrarily; every
// Read seeks it to start plus the section's current position first.
func NewSectionReader(src reader, start, size int64) *SectionReader {
	return &SectionReader{src: src, start: start, size: size, pos: 0}
}

func (s *SectionReader) Read(p []byte) (int, error) {
	if s.pos >= s.size {
		return 0, io.EOF
	}
	if _, err := s.src.Seek(s.start+s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	remaining := s.size - s.pos
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := s.src.Read(p)
	s.pos += int64(n)
	return n, err
}

// Seek implements the semantics of spec.md §4.2: seek(abs, beg) is
// accepted when 0 <= abs <= size and makes the next Read start at
// source position start+abs; seek(off, end) maps to seek(size+off, beg);
// seek(0, cur) reports the current position. Seek itself never moves the
// source.
func (s *SectionReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		if offset < 0 || offset > s.size {
			return 0, ErrSeekOutOfRange
		}
		s.pos = offset
		return s.pos, nil
	case io.SeekEnd:
		return s.Seek(s.size+offset, io.SeekStart)
	case io.SeekCurrent:
		if offset == 0 {
			return s.pos, nil
		}
		return s.Seek(s.pos+offset, io.SeekStart)
	default:
		return 0, ErrSeekOutOfRange
	}
}

// Size reports the section's fixed length.
func (s *SectionReader) Size() int64 { return s.size }

// Close releases the underlying source if it is closeable.
func (s *SectionReader) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
