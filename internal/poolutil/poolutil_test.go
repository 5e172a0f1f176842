package poolutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool(t *testing.T) {
	created := 0
	pool := NewPool(func() []byte {
		created++
		return make([]byte, 0, 16)
	}, func(b []byte) []byte {
		return b[:0]
	}, 2)

	a := pool.Get()
	b := pool.Get()
	c := pool.Get()
	assert.Equal(t, 3, created)

	a = append(a, "hello"...)
	pool.Put(a)
	pool.Put(b)
	pool.Put(c) // dropped, pool is full
	assert.Equal(t, 2, pool.Idle())

	reused := pool.Get()
	assert.Len(t, reused, 0, "reset should truncate returned buffers")
	assert.Equal(t, 16, cap(reused))
	pool.Get()
	assert.Equal(t, 3, created)

	pool.Get()
	assert.Equal(t, 4, created)
}
