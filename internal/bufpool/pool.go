// Package bufpool provides fixed-size byte blocks for the generator and
// comparator so that repeated scenarios do not re-allocate block buffers.
package bufpool

import (
	"sync"
)

// Pool hands out byte slices of exactly Size bytes.
type Pool struct {
	pool sync.Pool
	size int
}

// New creates a pool of blocks of the given size.
// Panics if size is not positive.
func New(size int) *Pool {
	if size <= 0 {
		panic("bufpool: size must be positive")
	}
	p := &Pool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Get returns a block of exactly Size bytes. Contents are unspecified.
func (p *Pool) Get() []byte {
	bp := p.pool.Get().(*[]byte)
	b := *bp
	if cap(b) < p.size {
		return make([]byte, p.size)
	}
	return b[:p.size]
}

// Put returns a block obtained from Get. Undersized blocks are dropped.
func (p *Pool) Put(b []byte) {
	if cap(b) < p.size {
		return
	}
	b = b[:p.size]
	p.pool.Put(&b)
}

// Size returns the block size of the pool.
func (p *Pool) Size() int {
	return p.size
}

var (
	poolsMu sync.Mutex
	pools   = map[int]*Pool{}
)

// For returns the shared pool for the given block size, creating it on
// first use.
func For(size int) *Pool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	if p, ok := pools[size]; ok {
		return p
	}
	p := New(size)
	pools[size] = p
	return p
}
