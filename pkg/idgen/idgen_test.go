package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyflakeMonotonic(t *testing.T) {
	g, err := NewSonyflake(7)
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 100; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestSequence(t *testing.T) {
	s := NewSequence(10)
	id, _ := s.NextID()
	assert.Equal(t, int64(11), id)
	id, _ = s.NextID()
	assert.Equal(t, int64(12), id)
}
