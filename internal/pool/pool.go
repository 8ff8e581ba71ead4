// Package pool wraps sync.Pool with typed accessors.
package pool

import (
	"bytes"
	"sync"
)

// Pool is a generic wrapper around sync.Pool.
type Pool[T any] struct {
	internal sync.Pool
	reset    func(T)
}

// New creates a Pool with the given constructor.
func New[T any](newFn func() T) *Pool[T] {
	return NewWithReset(newFn, nil)
}

// NewWithReset creates a Pool whose items are passed through reset before reuse.
func NewWithReset[T any](newFn func() T, reset func(T)) *Pool[T] {
	return &Pool[T]{
		internal: sync.Pool{
			New: func() any {
				return newFn()
			},
		},
		reset: reset,
	}
}

// Get retrieves an item from the pool.
func (p *Pool[T]) Get() T {
	return p.internal.Get().(T)
}

// Put resets item (when a reset func was given) and returns it to the pool.
func (p *Pool[T]) Put(item T) {
	if p.reset != nil {
		p.reset(item)
	}
	p.internal.Put(item)
}

// maxPooledBuffer keeps one oversized render from pinning memory.
const maxPooledBuffer = 256 << 10

// Buffers pools bytes.Buffer values used for rendering view fragments.
type Buffers struct {
	p *Pool[*bytes.Buffer]
}

// NewBuffers creates a buffer pool.
func NewBuffers() *Buffers {
	return &Buffers{p: NewWithReset(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
	)}
}

// Get returns an empty buffer.
func (b *Buffers) Get() *bytes.Buffer {
	return b.p.Get()
}

// Put returns buf to the pool unless it grew past maxPooledBuffer.
func (b *Buffers) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	b.p.Put(buf)
}
