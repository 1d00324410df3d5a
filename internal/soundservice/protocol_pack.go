package soundservice

import (
	"errors"
	"io"

	"nvgtcore/internal/pack"
)

// PackDirective carries the open pack store a pack-protocol lookup
// should search, as named by spec.md §4.4 ("delegates to a pack store
// instance carried by the directive").
type PackDirective struct {
	Store *pack.Pack
}

// PackProtocol opens entries out of an already-open pack store.
type PackProtocol struct{}

// NewPackProtocol constructs the pack protocol.
func NewPackProtocol() *PackProtocol { return &PackProtocol{} }

func (PackProtocol) OpenURI(name string, directive Directive) (io.ReadCloser, error) {
	pd, ok := directive.(PackDirective)
	if !ok || pd.Store == nil {
		return nil, errors.New("soundservice: pack protocol requires a PackDirective with a Store")
	}
	section, err := pd.Store.GetFile(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(section), nil
}

// Suffix distinguishes entries from different pack stores carrying the
// same internal name by including the store's pointer identity; within
// one store, distinct names already produce distinct triplet keys.
func (PackProtocol) Suffix(directive Directive) string {
	pd, ok := directive.(PackDirective)
	if !ok || pd.Store == nil {
		return ""
	}
	return storePointerTag(pd.Store)
}
