// Package blocks tracks the device memory blocks owned by one device.
//
// Device allocators do not report the size of a block when it is freed, so
// every device records handle → byte size here and frees whatever is left,
// newest first, when it is closed.
package blocks

import (
	"sync"

	"github.com/pkg/errors"
)

// Errors returned by Registry.
var (
	ErrDuplicate = errors.New("blocks: handle already registered")
	ErrUnknown   = errors.New("blocks: unknown handle")
)

// Stats represents block usage statistics.
type Stats struct {
	// Bytes currently held by live blocks
	LiveBytes uint64
	// Peak of LiveBytes since creation
	PeakBytes uint64
	// Number of live blocks
	LiveBlocks int
	// Total number of allocations since creation
	Allocations uint64
}

type entry struct {
	size uint64
	seq  uint64
}

type slot[K comparable] struct {
	handle K
	seq    uint64
}

// Registry maps block handles to their byte size and remembers the
// allocation order. It is safe for concurrent use.
type Registry[K comparable] struct {
	mu      sync.RWMutex
	entries map[K]entry
	order   []slot[K]
	seq     uint64
	live    uint64
	peak    uint64
}

// New creates an empty Registry.
func New[K comparable]() *Registry[K] {
	return &Registry[K]{entries: make(map[K]entry)}
}

// Add records a new block of size bytes.
func (r *Registry[K]) Add(handle K, size uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[handle]; ok {
		return errors.WithStack(ErrDuplicate)
	}
	r.seq++
	r.entries[handle] = entry{size: size, seq: r.seq}
	r.order = append(r.order, slot[K]{handle: handle, seq: r.seq})
	r.live += size
	if r.live > r.peak {
		r.peak = r.live
	}
	return nil
}

// Remove forgets a block and returns its size.
func (r *Registry[K]) Remove(handle K) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[handle]
	if !ok {
		return 0, errors.WithStack(ErrUnknown)
	}
	delete(r.entries, handle)
	r.live -= e.size
	// Compact lazily once most of the order slice is stale.
	if len(r.order) > 64 && len(r.entries) < len(r.order)/2 {
		r.compact()
	}
	return e.size, nil
}

// Size returns the size of a live block.
func (r *Registry[K]) Size(handle K) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[handle]
	return e.size, ok
}

// Len returns the number of live blocks.
func (r *Registry[K]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Reverse returns the live handles, most recent allocation first.
func (r *Registry[K]) Reverse() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]K, 0, len(r.entries))
	for i := len(r.order) - 1; i >= 0; i-- {
		if s := r.order[i]; r.isLive(s) {
			out = append(out, s.handle)
		}
	}
	return out
}

// Drain removes every live block, most recent first, calling free for each.
// It returns the number of blocks drained.
func (r *Registry[K]) Drain(free func(handle K, size uint64)) int {
	handles := r.Reverse()
	for _, h := range handles {
		size, err := r.Remove(h)
		if err != nil {
			continue
		}
		free(h, size)
	}
	return len(handles)
}

// Stats returns current usage statistics.
func (r *Registry[K]) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		LiveBytes:   r.live,
		PeakBytes:   r.peak,
		LiveBlocks:  len(r.entries),
		Allocations: r.seq,
	}
}

// isLive reports whether s is the current registration of its handle. A
// handle that was freed and reused appears more than once in order.
func (r *Registry[K]) isLive(s slot[K]) bool {
	e, ok := r.entries[s.handle]
	return ok && e.seq == s.seq
}

func (r *Registry[K]) compact() {
	live := r.order[:0]
	for _, s := range r.order {
		if r.isLive(s) {
			live = append(live, s)
		}
	}
	r.order = live
}
