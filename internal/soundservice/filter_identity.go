package soundservice

import "io"

// IdentityFilter returns the input stream unchanged. It is always
// registered at slot 1 and is the default filter in a fresh Registry.
type IdentityFilter struct{}

func (IdentityFilter) Wrap(input io.ReadCloser, _ Directive) (io.ReadCloser, error) {
	return input, nil
}
