package webgpu

import "sync"

// PoolStats reports buffer reuse.
type PoolStats struct {
	Hits    uint64 // Acquisitions served from the pool.
	Misses  uint64 // Acquisitions that created a buffer.
	Pooled  int    // Buffers currently held for reuse.
	Dropped uint64 // Releases destroyed because the pool was full.
}

// bufferPool recycles GPU buffers by exact byte size. Storage bindings
// cover a whole buffer, so a larger buffer cannot stand in for a smaller one.
type bufferPool[B any] struct {
	mu      sync.Mutex
	perSize int
	create  func(size uint64) B
	destroy func(B)
	free    map[uint64][]B
	stats   PoolStats
}

func newBufferPool[B any](perSize int, create func(uint64) B, destroy func(B)) *bufferPool[B] {
	return &bufferPool[B]{
		perSize: perSize,
		create:  create,
		destroy: destroy,
		free:    make(map[uint64][]B),
	}
}

// acquire returns a pooled buffer of exactly size bytes or creates one.
func (p *bufferPool[B]) acquire(size uint64) B {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bufs := p.free[size]; len(bufs) > 0 {
		b := bufs[len(bufs)-1]
		p.free[size] = bufs[:len(bufs)-1]
		p.stats.Hits++
		p.stats.Pooled--
		return b
	}
	p.stats.Misses++
	return p.create(size)
}

// release keeps b for reuse, or destroys it when its size class is full.
func (p *bufferPool[B]) release(b B, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free[size]) >= p.perSize {
		p.stats.Dropped++
		p.destroy(b)
		return
	}
	p.free[size] = append(p.free[size], b)
	p.stats.Pooled++
}

// clear destroys every pooled buffer and returns how many there were.
func (p *bufferPool[B]) clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for size, bufs := range p.free {
		for _, b := range bufs {
			p.destroy(b)
			n++
		}
		delete(p.free, size)
	}
	p.stats.Pooled = 0
	return n
}

func (p *bufferPool[B]) snapshot() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
