package qam

import (
	"sync"
	"sync/atomic"
)

// Size classes of pooled symbol buffers, in values
const (
	smallBufferSize  = 1024
	mediumBufferSize = 16384
	largeBufferSize  = 262144
)

// symbolBuffer is a reusable slice of symbol values
type symbolBuffer struct {
	values []int
	pool   *symbolPool
}

// Release returns the buffer to its pool
func (b *symbolBuffer) Release() {
	if b.pool != nil {
		b.pool.put(b)
	}
}

// PoolStats counts symbol buffer reuse
type PoolStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Oversize int64 `json:"oversize"`
}

// symbolPool keeps symbol buffers in three size classes. Requests larger
// than the largest class are allocated directly and never pooled.
type symbolPool struct {
	classes [3]sync.Pool
	sizes   [3]int

	gets     int64
	misses   int64
	oversize int64
}

func newSymbolPool() *symbolPool {
	p := &symbolPool{sizes: [3]int{smallBufferSize, mediumBufferSize, largeBufferSize}}
	for i := range p.classes {
		size := p.sizes[i]
		p.classes[i].New = func() interface{} {
			atomic.AddInt64(&p.misses, 1)
			return &symbolBuffer{values: make([]int, size), pool: p}
		}
	}
	return p
}

var defaultSymbolPool = newSymbolPool()

// BufferPoolStats returns reuse counters of the shared symbol buffer pool
func BufferPoolStats() PoolStats {
	return defaultSymbolPool.stats()
}

func (p *symbolPool) class(capacity int) int {
	for i, size := range p.sizes {
		if capacity <= size {
			return i
		}
	}
	return -1
}

// get returns a buffer with len(values) == size
func (p *symbolPool) get(size int) *symbolBuffer {
	if size < 0 {
		size = 0
	}

	class := p.class(size)
	if class < 0 {
		atomic.AddInt64(&p.oversize, 1)
		return &symbolBuffer{values: make([]int, size)}
	}

	atomic.AddInt64(&p.gets, 1)
	buffer := p.classes[class].Get().(*symbolBuffer)
	buffer.values = buffer.values[:size]
	return buffer
}

func (p *symbolPool) put(buffer *symbolBuffer) {
	if buffer == nil || buffer.values == nil {
		return
	}

	// Buffers go back to the class matching their capacity
	capacity := cap(buffer.values)
	class := p.class(capacity)
	if class < 0 || capacity != p.sizes[class] {
		return
	}
	buffer.values = buffer.values[:capacity]
	p.classes[class].Put(buffer)
}

func (p *symbolPool) stats() PoolStats {
	gets := atomic.LoadInt64(&p.gets)
	misses := atomic.LoadInt64(&p.misses)
	return PoolStats{
		Hits:     gets - misses,
		Misses:   misses,
		Oversize: atomic.LoadInt64(&p.oversize),
	}
}
