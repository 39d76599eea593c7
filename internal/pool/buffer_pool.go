package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// BufferPool hands out reusable byte buffers. Buffers that grew past
// maxRetain are dropped instead of being returned to the pool.
type BufferPool struct {
	pool      sync.Pool
	maxRetain int

	gets atomic.Int64
	news atomic.Int64
}

// NewBufferPool creates a buffer pool with buffers of initial capacity size.
func NewBufferPool(size, maxRetain int) *BufferPool {
	p := &BufferPool{maxRetain: maxRetain}
	p.pool.New = func() any {
		p.news.Add(1)
		return bytes.NewBuffer(make([]byte, 0, size))
	}
	return p
}

// Get retrieves an empty buffer.
func (p *BufferPool) Get() *bytes.Buffer {
	p.gets.Add(1)
	return p.pool.Get().(*bytes.Buffer)
}

// Put resets b and returns it to the pool.
func (p *BufferPool) Put(b *bytes.Buffer) {
	if b == nil || (p.maxRetain > 0 && b.Cap() > p.maxRetain) {
		return
	}
	b.Reset()
	p.pool.Put(b)
}

// HitRate returns the share of Get calls served without allocating.
func (p *BufferPool) HitRate() float64 {
	gets := p.gets.Load()
	if gets == 0 {
		return 0
	}
	return float64(gets-p.news.Load()) / float64(gets)
}

// Buffers is shared by transcript rendering.
var Buffers = NewBufferPool(16*1024, 1<<20)
