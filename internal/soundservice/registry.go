// Package soundservice implements the per-process registry of protocols
// and filters the audio engine's VFS glue resolves input streams
// through (§4.4), plus the triplet preparation/resolution handshake the
// engine's resource manager drives.
package soundservice

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// ErrNoSuchSlot is returned when a caller references a protocol or
// filter slot that was never registered.
var ErrNoSuchSlot = errors.New("soundservice: no such slot")

// ErrTripletNotFound is returned by OpenTriplet when key was never
// produced by PrepareTriplet. OpenTriplet does not consume keys; a
// prepared key can be opened again.
var ErrTripletNotFound = errors.New("soundservice: unknown triplet key")

// Directive is an opaque, protocol- or filter-specific configuration
// value: a key for encryption, a *pack.Pack handle for the pack
// protocol, a byte span for the memory protocol.
type Directive any

// Protocol opens named resources and derives a resolver-cache suffix
// from a directive (so two registrations of the same name under
// different directives, e.g. two memory spans, don't collide).
type Protocol interface {
	OpenURI(name string, directive Directive) (io.ReadCloser, error)
	Suffix(directive Directive) string
}

// Filter wraps an opened stream, e.g. to decrypt it. A filter may
// return the input unchanged.
type Filter interface {
	Wrap(input io.ReadCloser, directive Directive) (io.ReadCloser, error)
}

// slot 0 always means "use the current default"; real slots start at 1.
const defaultSlot = 0

type protocolSlot struct {
	name string
	impl Protocol
}

type filterSlot struct {
	name string
	impl Filter
}

type pendingTriplet struct {
	name             string
	protocolSlot     int
	protocolDirective Directive
	filterSlot       int
	filterDirective  Directive
}

// Registry is a per-process protocol/filter slot table plus the pending
// triplet map the VFS glue consults. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	protocols []protocolSlot // index 0 unused, real slots are >= 1
	filters   []filterSlot

	defaultProtocol atomic.Int32 // 1-based slot index
	defaultFilter   atomic.Int32

	tripletsMu sync.Mutex
	triplets   map[string]pendingTriplet
}

// NewRegistry constructs a registry with the filesystem and memory
// protocols and the identity filter already registered, matching
// spec.md §4.4's "two built-in protocols and one built-in filter must
// exist at all times" invariant.
func NewRegistry() *Registry {
	r := &Registry{
		protocols: make([]protocolSlot, 1), // slot 0 is the unused sentinel
		filters:   make([]filterSlot, 1),
		triplets:  make(map[string]pendingTriplet),
	}
	fileSlot := r.RegisterProtocol("file", NewFileProtocol())
	r.RegisterProtocol("memory", NewMemoryProtocol())
	identitySlot := r.RegisterFilter("identity", IdentityFilter{})
	r.defaultProtocol.Store(int32(fileSlot))
	r.defaultFilter.Store(int32(identitySlot))
	return r
}

// RegisterProtocol appends p under name and returns its slot (>= 1).
func (r *Registry) RegisterProtocol(name string, p Protocol) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protocols = append(r.protocols, protocolSlot{name: name, impl: p})
	return len(r.protocols) - 1
}

// RegisterFilter appends f under name and returns its slot (>= 1).
func (r *Registry) RegisterFilter(name string, f Filter) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, filterSlot{name: name, impl: f})
	return len(r.filters) - 1
}

// SetDefaultProtocol atomically repoints slot 0 resolution.
func (r *Registry) SetDefaultProtocol(slot int) error {
	r.mu.RLock()
	ok := slot >= 1 && slot < len(r.protocols)
	r.mu.RUnlock()
	if !ok {
		return ErrNoSuchSlot
	}
	r.defaultProtocol.Store(int32(slot))
	return nil
}

// SetDefaultFilter atomically repoints slot 0 resolution.
func (r *Registry) SetDefaultFilter(slot int) error {
	r.mu.RLock()
	ok := slot >= 1 && slot < len(r.filters)
	r.mu.RUnlock()
	if !ok {
		return ErrNoSuchSlot
	}
	r.defaultFilter.Store(int32(slot))
	return nil
}

func (r *Registry) resolveProtocolSlot(slot int) int {
	if slot == defaultSlot {
		return int(r.defaultProtocol.Load())
	}
	return slot
}

func (r *Registry) resolveFilterSlot(slot int) int {
	if slot == defaultSlot {
		return int(r.defaultFilter.Load())
	}
	return slot
}

func (r *Registry) protocolAt(slot int) (protocolSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if slot < 1 || slot >= len(r.protocols) {
		return protocolSlot{}, ErrNoSuchSlot
	}
	return r.protocols[slot], nil
}

func (r *Registry) filterAt(slot int) (filterSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if slot < 1 || slot >= len(r.filters) {
		return filterSlot{}, ErrNoSuchSlot
	}
	return r.filters[slot], nil
}

// PrepareTriplet records a pending resolution and returns the key the
// caller hands to the audio engine's resource manager, per spec.md
// §4.4's `"{name}\x1e{protocol_slot}\x1e{suffix}"` format. protocolSlot
// and filterSlot may be 0 to mean "current default"; the recorded
// triplet freezes the resolved slot at prepare time, not at open time.
func (r *Registry) PrepareTriplet(name string, protoSlot int, protoDirective Directive, filtSlot int, filtDirective Directive) (string, error) {
	resolvedProto := r.resolveProtocolSlot(protoSlot)
	ps, err := r.protocolAt(resolvedProto)
	if err != nil {
		return "", fmt.Errorf("soundservice: prepare triplet %q: %w", name, err)
	}
	resolvedFilter := r.resolveFilterSlot(filtSlot)
	if _, err := r.filterAt(resolvedFilter); err != nil {
		return "", fmt.Errorf("soundservice: prepare triplet %q: %w", name, err)
	}

	suffix := ps.impl.Suffix(protoDirective)
	key := fmt.Sprintf("%s\x1e%d\x1e%s", name, resolvedProto, suffix)

	r.tripletsMu.Lock()
	r.triplets[key] = pendingTriplet{
		name:              name,
		protocolSlot:      resolvedProto,
		protocolDirective: protoDirective,
		filterSlot:        resolvedFilter,
		filterDirective:   filtDirective,
	}
	r.tripletsMu.Unlock()
	return key, nil
}

// OpenTriplet looks up key (as previously returned by PrepareTriplet),
// opens the recorded protocol, and applies the recorded filter. It
// returns nil, nil — not an error — when the protocol or filter fails
// to produce a stream, matching spec.md §4.4's "any protocol or filter
// that cannot produce a stream returns nothing" failure mode; it is the
// VFS glue's job to turn that into MA_ERROR.
func (r *Registry) OpenTriplet(key string) (io.ReadCloser, error) {
	r.tripletsMu.Lock()
	t, ok := r.triplets[key]
	r.tripletsMu.Unlock()
	if !ok {
		return nil, ErrTripletNotFound
	}

	ps, err := r.protocolAt(t.protocolSlot)
	if err != nil {
		return nil, nil
	}
	stream, err := ps.impl.OpenURI(t.name, t.protocolDirective)
	if err != nil || stream == nil {
		return nil, nil
	}

	fs, err := r.filterAt(t.filterSlot)
	if err != nil {
		stream.Close()
		return nil, nil
	}
	wrapped, err := fs.impl.Wrap(stream, t.filterDirective)
	if err != nil || wrapped == nil {
		stream.Close()
		return nil, nil
	}
	return wrapped, nil
}
