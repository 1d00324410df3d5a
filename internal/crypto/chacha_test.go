package crypto

import (
	"bytes"
	"io"
	"testing"
)

// seekableBuffer adapts bytes.Buffer into a ReadWriteSeeker backed by a
// growable byte slice, standing in for the *os.File the real callers use.
type seekableBuffer struct {
	data []byte
	pos  int64
}

func (b *seekableBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	n := copy(b.data[b.pos:end], p)
	b.pos = end
	return n, nil
}

func (b *seekableBuffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = b.pos + offset
	case io.SeekEnd:
		target = int64(len(b.data)) + offset
	}
	b.pos = target
	return b.pos, nil
}

func TestChaChaRoundTrip(t *testing.T) {
	buf := &seekableBuffer{}
	w, err := NewChaChaWriter(buf, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("NewChaChaWriter: %v", err)
	}
	plaintext := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog."), 20)
	if _, err := w.Write(plaintext); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf.pos = 0
	r, err := NewChaChaReader(buf, []byte("secret"))
	if err != nil {
		t.Fatalf("NewChaChaReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(plaintext))
	}
}

func TestChaChaWrongKeyFails(t *testing.T) {
	buf := &seekableBuffer{}
	w, err := NewChaChaWriter(buf, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("NewChaChaWriter: %v", err)
	}
	if _, err := w.Write([]byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf.pos = 0
	if _, err := NewChaChaReader(buf, []byte("wrong")); err != ErrNotEncryptedStream {
		t.Fatalf("NewChaChaReader with wrong key = %v, want ErrNotEncryptedStream", err)
	}
}

func TestChaChaBlockAlignedSeek(t *testing.T) {
	buf := &seekableBuffer{}
	w, err := NewChaChaWriter(buf, []byte("k"), nil)
	if err != nil {
		t.Fatalf("NewChaChaWriter: %v", err)
	}
	plaintext := make([]byte, blockSize*4+10)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	if _, err := w.Write(plaintext); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf.pos = 0
	r, err := NewChaChaReader(buf, []byte("k"))
	if err != nil {
		t.Fatalf("NewChaChaReader: %v", err)
	}

	seekTo := int64(blockSize*2 + 5)
	if _, err := r.Seek(seekTo, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, 20)
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatalf("ReadFull after seek: %v", err)
	}
	want := plaintext[seekTo : seekTo+20]
	if !bytes.Equal(got, want) {
		t.Fatalf("post-seek read = %v, want %v", got, want)
	}
}

func TestChaChaWriterRewindForHeaderRewrite(t *testing.T) {
	buf := &seekableBuffer{}
	w, err := NewChaChaWriter(buf, []byte("k"), nil)
	if err != nil {
		t.Fatalf("NewChaChaWriter: %v", err)
	}
	first := []byte("0000AAAAAAAAAAAAAAAA")
	if _, err := w.Write(first); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek(0, start): %v", err)
	}
	if _, err := w.Write([]byte("1111")); err != nil {
		t.Fatalf("rewrite Write: %v", err)
	}

	buf.pos = 0
	r, err := NewChaChaReader(buf, []byte("k"))
	if err != nil {
		t.Fatalf("NewChaChaReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := append([]byte("1111"), first[4:]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("after header rewrite = %q, want %q", got, want)
	}
}
