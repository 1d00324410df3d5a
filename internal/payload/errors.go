package payload

import "errors"

var (
	ErrFormat    = errors.New("payload: malformed trailer")
	ErrNoStub    = errors.New("payload: stub binary not found for platform")
	ErrNoPE      = errors.New("payload: not a PE image")
	ErrNoEmbed   = errors.New("payload: no such embedded pack")
	ErrNotEmbed  = errors.New("payload: path is not an embedded-pack reference")
)
