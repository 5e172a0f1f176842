package buffers

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// inMemoryBufferFactory is a factory for creating in-memory buffers.
type inMemoryBufferFactory struct {
	mu      sync.Mutex
	nextID  atomic.Int64
	buffers []*inMemoryBuffer
}

func NewInMemoryBufferFactory() BufferFactory {
	return &inMemoryBufferFactory{}
}

func (p *inMemoryBufferFactory) New() (BufferHandle, error) {
	buf := &inMemoryBuffer{name: fmt.Sprintf("mem:%04d", p.nextID.Add(1))}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffers = append(p.buffers, buf)
	return buf, nil
}

func (p *inMemoryBufferFactory) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, buf := range p.buffers {
		buf.data = nil
	}
	p.buffers = nil
	return nil
}

// inMemoryBuffer is an in-memory implementation of BufferHandle.
type inMemoryBuffer struct {
	name string
	data []byte
}

var _ io.WriteCloser = (*inMemoryBuffer)(nil)

func (b *inMemoryBuffer) Name() string {
	if b.name == "" {
		return "mem"
	}
	return b.name
}

func (b *inMemoryBuffer) GetReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (b *inMemoryBuffer) GetWriter() (io.WriteCloser, error) {
	b.data = b.data[:0]
	return b, nil
}

func (b *inMemoryBuffer) Write(p []byte) (n int, err error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *inMemoryBuffer) Close() error {
	return nil
}
