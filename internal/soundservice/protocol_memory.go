package soundservice

import (
	"bytes"
	"errors"
	"io"

	"github.com/google/uuid"
)

// MemoryDirective carries a byte span registered under a stable,
// randomly-generated slot id. Two registrations of identical bytes must
// still resolve to distinct triplet keys (so the resource manager's
// cache doesn't conflate them); the slot id, not the bytes, provides
// that uniqueness.
type MemoryDirective struct {
	slot uuid.UUID
	data []byte
}

// NewMemoryDirective registers data under a freshly generated slot id.
func NewMemoryDirective(data []byte) MemoryDirective {
	return MemoryDirective{slot: uuid.New(), data: data}
}

// MemoryProtocol opens a read cursor over a MemoryDirective's byte
// span. name is ignored; memory sources are identified purely by their
// directive.
type MemoryProtocol struct{}

// NewMemoryProtocol constructs the memory protocol, the second protocol
// guaranteed to exist in a fresh Registry.
func NewMemoryProtocol() *MemoryProtocol { return &MemoryProtocol{} }

func (MemoryProtocol) OpenURI(_ string, directive Directive) (io.ReadCloser, error) {
	md, ok := directive.(MemoryDirective)
	if !ok {
		return nil, errors.New("soundservice: memory protocol requires a MemoryDirective")
	}
	return io.NopCloser(bytes.NewReader(md.data)), nil
}

func (MemoryProtocol) Suffix(directive Directive) string {
	md, ok := directive.(MemoryDirective)
	if !ok {
		return ""
	}
	return md.slot.String()
}
