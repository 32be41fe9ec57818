package mempool

import (
	"bytes"
	"sync"
)

// Sized pools for []byte scratch buffers and reusable bytes.Buffers, used
// on the crop-encoding hot path to reduce allocations.

var bytePools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next bucket to reduce churn.
func sizeClass(n int) int {
	const step = 4096
	if n <= step {
		return step
	}
	r := (n + step - 1) / step
	return r * step
}

// GetBytes retrieves a []byte buffer of at least n bytes from the pool.
// The returned slice has length n but may have larger capacity. The
// caller must return it via PutBytes when done.
func GetBytes(n int) []byte {
	cls := sizeClass(n)
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]byte, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		buf := make([]byte, cls)
		return buf[:n]
	}
	buf, ok := p.Get().([]byte)
	if !ok || cap(buf) < cls {
		buf = make([]byte, cls)
	} else {
		buf = buf[:cap(buf)]
	}
	return buf[:n]
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
func PutBytes(buf []byte) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]byte, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// maxPooledBuffer caps the size of buffers kept in the encoder pool;
// anything larger is dropped so one huge crop does not pin memory.
const maxPooledBuffer = 8 << 20

var bufferPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// GetBuffer retrieves a reset bytes.Buffer for streaming encoders.
// The caller must return it via PutBuffer when done.
func GetBuffer() *bytes.Buffer {
	b, ok := bufferPool.Get().(*bytes.Buffer)
	if !ok {
		return new(bytes.Buffer)
	}
	b.Reset()
	return b
}

// PutBuffer returns a buffer to the pool. It is safe to pass nil.
func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(b)
}
