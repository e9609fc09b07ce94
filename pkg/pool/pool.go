// Package pool provides typed object pooling for the codec hot paths.
// Frame encoding and decoding assemble whole payloads in memory; pooling the
// scratch buffers keeps garbage collection pressure flat when a caller streams
// many frames through one process.
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety. It wraps sync.Pool
// with statistics tracking and automatic reset functionality. The pool is
// safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		hits      int64
		misses    int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The reset function is called before an object is returned to the pool and
// may be nil.
func New[T any](newFunc func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		atomic.AddInt64(&p.stats.misses, 1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool, creating one if necessary.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.hits, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool after resetting it.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats reports pool activity counters.
func (p *Pool[T]) Stats() (allocated, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// Global buffer pool shared by the encoder, scanner and compressors.
var bufferPool = New(
	func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, 64*1024))
	},
	func(b *bytes.Buffer) {
		b.Reset()
	},
)

// GetBuffer retrieves a reusable buffer from the global pool.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

// PutBuffer returns a buffer to the global pool. Buffers that have grown
// beyond 4MB are dropped rather than retained.
func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > 4*1024*1024 {
		return
	}
	bufferPool.Put(b)
}
