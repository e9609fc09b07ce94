package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReuse(t *testing.T) {
	p := New(
		func() *bytes.Buffer { return &bytes.Buffer{} },
		func(b *bytes.Buffer) { b.Reset() },
	)

	b := p.Get()
	b.WriteString("scratch")
	p.Put(b)

	b2 := p.Get()
	assert.Equal(t, 0, b2.Len(), "reset runs on Put")

	allocated, hits, _ := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(2), hits)
}

func TestGetBufferReset(t *testing.T) {
	b := GetBuffer()
	require.NotNil(t, b)
	b.WriteString("payload bytes")
	PutBuffer(b)

	b2 := GetBuffer()
	assert.Equal(t, 0, b2.Len())
	PutBuffer(b2)
}

func TestPutBufferDropsOversized(t *testing.T) {
	big := bytes.NewBuffer(make([]byte, 0, 8*1024*1024))
	PutBuffer(big) // must not panic or retain
	PutBuffer(nil)
}
