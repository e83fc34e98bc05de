package mask

import (
	"fmt"
	"sync"
)

const (
	// buffers
	bufBinarize = "binarize"
)

// scratch holds the buffer pools shared by all mask operations
var scratch = newBufferPool()

// bufferPool holds a set of named buffer pools
type bufferPool struct {
	mu    sync.Mutex
	pools map[string]*bufferEntry
}

// bufferEntry defines a single buffer
type bufferEntry struct {
	pool    sync.Pool
	maxSize int
}

// newBufferPool returns an empty bufferPool
func newBufferPool() *bufferPool {
	return &bufferPool{
		pools: make(map[string]*bufferEntry),
	}
}

// ensure registers a pool under 'name' producing buffers of maxSize, or
// grows an existing pool when a larger size is requested
func (b *bufferPool) ensure(name string, maxSize int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, exists := b.pools[name]; exists && entry.maxSize >= maxSize {
		return
	}

	entry := &bufferEntry{maxSize: maxSize}

	entry.pool.New = func() any {
		return make([]uint8, maxSize)
	}

	b.pools[name] = entry
}

// get returns a zeroed []uint8 slice of length 'size' from the named pool,
// registering or growing the pool as needed
func (b *bufferPool) get(name string, size int) []uint8 {

	b.ensure(name, size)

	b.mu.Lock()
	entry := b.pools[name]
	b.mu.Unlock()

	buf := entry.pool.Get().([]uint8)

	if cap(buf) < size {
		return make([]uint8, size)
	}

	// get buffer of required size
	buf = buf[:size]

	// zero out the buffer
	for i := range buf {
		buf[i] = 0
	}

	return buf
}

// put returns a buffer back into its named pool.  Buffers smaller than the
// pool size, left over from before the pool was grown, are dropped
func (b *bufferPool) put(name string, buf []uint8) {
	b.mu.Lock()
	entry, ok := b.pools[name]
	b.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("buffer pool %q not registered", name))
	}

	if cap(buf) < entry.maxSize {
		return
	}

	// restore to full capacity so it matches entry.New next time
	entry.pool.Put(buf[:entry.maxSize])
}
