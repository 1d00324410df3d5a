package api

import (
	"sync"

	"nvgtcore/internal/ipc"
	"nvgtcore/internal/pack"
)

// PackRegistry tracks the packs an engine process currently has open, so
// the diagnostics surface can list them without the pack package itself
// needing to know about a registry (internal/pack stays a plain library;
// registration is the caller's choice, made once per Create/Open call).
type PackRegistry struct {
	mu    sync.RWMutex
	packs map[*pack.Pack]struct{}
}

// NewPackRegistry constructs an empty registry.
func NewPackRegistry() *PackRegistry {
	return &PackRegistry{packs: make(map[*pack.Pack]struct{})}
}

// Register records p as open. Call this right after pack.Create/pack.Open
// succeeds.
func (r *PackRegistry) Register(p *pack.Pack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packs[p] = struct{}{}
}

// Unregister drops p from the registry. Call this right before p.Close().
func (r *PackRegistry) Unregister(p *pack.Pack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.packs, p)
}

// Snapshot reports stats for every currently-registered pack.
func (r *PackRegistry) Snapshot() []ipc.PackStat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ipc.PackStat, 0, len(r.packs))
	for p := range r.packs {
		path, fileCount, totalSize, encrypted := p.Stats()
		out = append(out, ipc.PackStat{
			Path:      path,
			FileCount: fileCount,
			TotalSize: totalSize,
			Encrypted: encrypted,
		})
	}
	return out
}
