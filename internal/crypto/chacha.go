// Package crypto implements the two wire-compatible ciphers the NVGT
// hard core depends on: the ChaCha20 stream cipher wrapping pack/sound
// streams (§4.3) and the fixed-key AES-128-CBC cipher wrapping the
// compiled-application bytecode payload (§4.8).
package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
)

const (
	nonceSize  = 24
	blockSize  = 64
	streamMagic uint32 = 0xACEFADED
)

// ErrNotEncryptedStream is returned by NewChaChaReader when the source's
// first decrypted block does not carry the expected magic value — it is
// either the wrong key or not an encrypted stream at all.
var ErrNotEncryptedStream = errors.New("crypto: not a recognised encrypted stream")

func deriveKey(userKey []byte) []byte {
	sum := blake2b.Sum256(userKey)
	key := make([]byte, 32)
	copy(key, sum[:])
	return key
}

// wipe overwrites a byte slice's contents before it is released, matching
// original_source/src/crypto.cpp's crypto_wipe calls on key/nonce buffers.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ChaChaWriter encrypts a plaintext stream with ChaCha20 and writes the
// ciphertext to an underlying sink, prefixed by a cleartext nonce and an
// encrypted magic value. Seeking is limited to (0, io.SeekCurrent), to
// report the current position, and (0, io.SeekStart), to support the
// pack store rewriting its header after the TOC has been written.
type ChaChaWriter struct {
	sink    io.WriteSeeker
	key     []byte
	nonce   []byte
	cipher  *chacha20.Cipher
	written int64 // plaintext bytes written since the magic
}

// NewChaChaWriter wraps sink for writing. If nonce is nil, 24 random
// bytes are generated; if non-nil it must be exactly 24 bytes (used by
// callers that need deterministic output, e.g. tests).
func NewChaChaWriter(sink io.WriteSeeker, userKey []byte, nonce []byte) (*ChaChaWriter, error) {
	if len(userKey) == 0 {
		return nil, errors.New("crypto: key must not be empty")
	}
	if nonce == nil {
		nonce = make([]byte, nonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
	} else if len(nonce) != nonceSize {
		return nil, errors.New("crypto: nonce must be 24 bytes")
	}

	w := &ChaChaWriter{
		sink:  sink,
		key:   deriveKey(userKey),
		nonce: append([]byte(nil), nonce...),
	}
	if _, err := sink.Write(w.nonce); err != nil {
		return nil, err
	}
	if err := w.resetCipherAndMagic(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *ChaChaWriter) resetCipherAndMagic() error {
	c, err := chacha20.NewUnauthenticatedCipher(w.key, w.nonce)
	if err != nil {
		return err
	}
	w.cipher = c
	var magicBuf [4]byte
	binary.LittleEndian.PutUint32(magicBuf[:], streamMagic)
	var ct [4]byte
	w.cipher.XORKeyStream(ct[:], magicBuf[:])
	if _, err := w.sink.Write(ct[:]); err != nil {
		return err
	}
	w.written = 0
	return nil
}

func (w *ChaChaWriter) Write(p []byte) (int, error) {
	ct := make([]byte, len(p))
	w.cipher.XORKeyStream(ct, p)
	n, err := w.sink.Write(ct)
	w.written += int64(n)
	return n, err
}

// Seek implements spec.md §4.3's limited write-side seek: (0, cur) for
// tell, (0, beg) to rewind and re-establish the magic/counter so a later
// header rewrite stays in sync.
func (w *ChaChaWriter) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekCurrent {
		return w.written, nil
	}
	if offset == 0 && whence == io.SeekStart {
		if _, err := w.sink.Seek(int64(nonceSize), io.SeekStart); err != nil {
			return 0, err
		}
		if err := w.resetCipherAndMagic(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return 0, errors.New("crypto: unsupported seek on ChaChaWriter")
}

// Close wipes key material. It does not close the underlying sink.
func (w *ChaChaWriter) Close() error {
	wipe(w.key)
	wipe(w.nonce)
	return nil
}

// ChaChaReader decrypts a ciphertext stream produced by ChaChaWriter. It
// supports block-aligned random seeks by recomputing the ChaCha block
// counter and discarding any intra-block offset.
type ChaChaReader struct {
	src    io.ReadSeeker
	key    []byte
	nonce  []byte
	cipher *chacha20.Cipher
	pos    int64 // logical plaintext position
}

// NewChaChaReader wraps src for reading. It consumes the 24-byte nonce
// and verifies the magic value, returning ErrNotEncryptedStream if it
// does not match (either wrong key or not an encrypted stream).
func NewChaChaReader(src io.ReadSeeker, userKey []byte) (*ChaChaReader, error) {
	if len(userKey) == 0 {
		return nil, errors.New("crypto: key must not be empty")
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(src, nonce); err != nil {
		return nil, err
	}
	r := &ChaChaReader{
		src:   src,
		key:   deriveKey(userKey),
		nonce: nonce,
	}
	c, err := chacha20.NewUnauthenticatedCipher(r.key, r.nonce)
	if err != nil {
		return nil, err
	}
	r.cipher = c
	var ctMagic [4]byte
	if _, err := io.ReadFull(src, ctMagic[:]); err != nil {
		return nil, err
	}
	var ptMagic [4]byte
	r.cipher.XORKeyStream(ptMagic[:], ctMagic[:])
	if binary.LittleEndian.Uint32(ptMagic[:]) != streamMagic {
		return nil, ErrNotEncryptedStream
	}
	return r, nil
}

func (r *ChaChaReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.cipher.XORKeyStream(p[:n], p[:n])
		r.pos += int64(n)
	}
	return n, err
}

// Seek clamps to the ChaCha block size: it seeks the source to the
// containing block boundary, recomputes the block counter, then
// advances the reader past the intra-block remainder so the next Read
// starts exactly at the requested logical position.
//
// The 4-byte magic occupies keystream bytes 0-3 (resetCipherAndMagic
// consumes them before any plaintext is written), so logical plaintext
// position P is encrypted with keystream byte P+4, not P. The block
// counter and source offset must be derived from that keystream
// offset, not from P directly, matching original_source's
// chacha_istreambuf::seekpos (pos += 4; counter = pos/64; seek to
// counter*64 + source_offset, where source_offset is the nonce-only
// 24-byte offset).
func (r *ChaChaReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		return 0, errors.New("crypto: SeekEnd unsupported on ChaChaReader")
	default:
		return 0, errors.New("crypto: invalid whence")
	}
	if target < 0 {
		return 0, errors.New("crypto: negative seek position")
	}

	ksOffset := target + 4
	blockIndex := ksOffset / blockSize
	blockStart := blockIndex * blockSize
	if _, err := r.src.Seek(int64(nonceSize)+blockStart, io.SeekStart); err != nil {
		return 0, err
	}
	c, err := chacha20.NewUnauthenticatedCipher(r.key, r.nonce)
	if err != nil {
		return 0, err
	}
	c.SetCounter(uint32(blockIndex))
	r.cipher = c
	r.pos = blockStart - 4

	if intra := ksOffset - blockStart; intra > 0 {
		discard := make([]byte, intra)
		if _, err := io.ReadFull(r, discard); err != nil {
			return 0, err
		}
	}
	return r.pos, nil
}

// Close wipes key material. It does not close the underlying source.
func (r *ChaChaReader) Close() error {
	wipe(r.key)
	wipe(r.nonce)
	return nil
}
