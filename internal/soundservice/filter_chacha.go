package soundservice

import (
	"bytes"
	"errors"
	"io"

	"nvgtcore/internal/crypto"
)

// ChaChaFilterDirective carries the decryption key. An empty key is
// invalid; callers that don't want decryption should use the identity
// filter instead of registering this one with an empty directive.
type ChaChaFilterDirective struct {
	Key []byte
}

// ChaChaFilter decrypts a ChaCha20-wrapped stream (§4.3). If the
// opened stream does not validate as an encrypted stream under the
// given key — wrong key, or simply not encrypted — Wrap returns the
// stream unchanged, reset to its original position, per spec.md §4.4's
// pass-through-on-rejection rule.
type ChaChaFilter struct{}

// NewChaChaFilter constructs the encryption filter.
func NewChaChaFilter() *ChaChaFilter { return &ChaChaFilter{} }

func (ChaChaFilter) Wrap(input io.ReadCloser, directive Directive) (io.ReadCloser, error) {
	d, ok := directive.(ChaChaFilterDirective)
	if !ok || len(d.Key) == 0 {
		return nil, errors.New("soundservice: chacha filter requires a ChaChaFilterDirective with a key")
	}

	rs, err := asReadSeekCloser(input)
	if err != nil {
		return nil, err
	}

	cr, err := crypto.NewChaChaReader(rs, d.Key)
	if err != nil {
		if errors.Is(err, crypto.ErrNotEncryptedStream) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if _, serr := rs.Seek(0, io.SeekStart); serr != nil {
				return nil, serr
			}
			return rs, nil
		}
		return nil, err
	}
	return &chachaFilteredStream{reader: cr, closer: rs}, nil
}

type readSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

type chachaFilteredStream struct {
	reader io.Reader
	closer io.Closer
}

func (s *chachaFilteredStream) Read(p []byte) (int, error) { return s.reader.Read(p) }
func (s *chachaFilteredStream) Close() error                { return s.closer.Close() }

// asReadSeekCloser returns input as-is if it already implements Seek;
// otherwise it buffers the entire stream into memory and wraps it in a
// seekable adapter, since the pass-through-on-rejection rule requires
// rewinding to byte zero after a failed magic check.
func asReadSeekCloser(input io.ReadCloser) (readSeekCloser, error) {
	if seeker, ok := input.(io.Seeker); ok {
		return struct {
			io.Reader
			io.Seeker
			io.Closer
		}{input, seeker, input}, nil
	}
	data, err := io.ReadAll(input)
	input.Close()
	if err != nil {
		return nil, err
	}
	return &bufferedReadSeekCloser{Reader: bytes.NewReader(data)}, nil
}

type bufferedReadSeekCloser struct {
	*bytes.Reader
}

func (b *bufferedReadSeekCloser) Close() error { return nil }
