package iostream

import (
	"bytes"
	"compress/flate"
	"io"
)

// DeflateWriter accumulates deflated bytes into a dynamically-grown
// buffer (bytes.Buffer doubles its backing array on overflow, matching
// spec.md §4.9's "doubled capacity on overflow" requirement) and emits
// a final Z_FINISH-equivalent block on Finish.
type DeflateWriter struct {
	buf bytes.Buffer
	fw  *flate.Writer
}

// NewDeflateWriter constructs a writer at the standard library's default
// compression level.
func NewDeflateWriter() (*DeflateWriter, error) {
	d := &DeflateWriter{}
	fw, err := flate.NewWriter(&d.buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	d.fw = fw
	return d, nil
}

func (d *DeflateWriter) Write(p []byte) (int, error) {
	return d.fw.Write(p)
}

// Finish flushes and closes the deflate stream, returning the complete
// compressed byte slice. The writer must not be used afterward.
func (d *DeflateWriter) Finish() ([]byte, error) {
	if err := d.fw.Close(); err != nil {
		return nil, err
	}
	return d.buf.Bytes(), nil
}

// InflateStream adapts an in-memory deflated blob (the decrypted
// bytecode payload) to an io.Reader, with one addition: ResetCursor
// zeroes the "bytes delivered" counter without touching inflate state,
// so a caller that has already consumed framing (embedded-plugin
// manifest, engine properties, build timestamp) can make later error
// offsets relative to the bytecode portion rather than the whole
// stream, per spec.md §4.9/§7.
type InflateStream struct {
	fr   io.ReadCloser
	read int64
}

// NewInflateStream wraps blob for inflating reads.
func NewInflateStream(blob []byte) *InflateStream {
	return &InflateStream{fr: flate.NewReader(bytes.NewReader(blob))}
}

func (s *InflateStream) Read(p []byte) (int, error) {
	n, err := s.fr.Read(p)
	s.read += int64(n)
	return n, err
}

// ResetCursor zeroes BytesRead without disturbing the underlying
// inflate state or stream position.
func (s *InflateStream) ResetCursor() { s.read = 0 }

// BytesRead reports bytes delivered to the caller since construction or
// the last ResetCursor call.
func (s *InflateStream) BytesRead() int64 { return s.read }

// Close releases the inflate state. All failures from this point are
// terminal for the stream, per spec.md §4.9.
func (s *InflateStream) Close() error { return s.fr.Close() }
