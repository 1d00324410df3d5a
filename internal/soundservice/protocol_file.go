package soundservice

import (
	"io"
	"os"
)

// FileProtocol opens local filesystem paths. It carries no directive
// state; name is the path directly.
type FileProtocol struct{}

// NewFileProtocol constructs the filesystem protocol, one of the two
// protocols guaranteed to exist in a fresh Registry.
func NewFileProtocol() *FileProtocol { return &FileProtocol{} }

func (FileProtocol) OpenURI(name string, _ Directive) (io.ReadCloser, error) {
	return os.Open(name)
}

// Suffix is constant: every filesystem open of the same path resolves
// to the same triplet key, which is the desired cache behaviour (unlike
// memory, where distinct registrations must not collide).
func (FileProtocol) Suffix(_ Directive) string { return "" }
