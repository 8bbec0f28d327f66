package console

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_AppendBelowCapacity(t *testing.T) {
	r := NewRing(4)
	r.Append("a")
	r.Append("b")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.Snapshot())
}

func TestRing_EvictsOldestAtCapacity(t *testing.T) {
	r := NewRing(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		r.Append(l)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"c", "d", "e"}, r.Snapshot())
}

func TestRing_LengthNeverExceedsCapacity(t *testing.T) {
	const capacity = 16
	r := NewRing(capacity)
	for i := 0; i < capacity*5; i++ {
		r.Append(fmt.Sprintf("line-%d", i))
		require.LessOrEqual(t, r.Len(), capacity)
	}

	// After capacity+k appends the buffer holds exactly the last
	// `capacity` lines in arrival order.
	snap := r.Snapshot()
	require.Len(t, snap, capacity)
	for i, line := range snap {
		assert.Equal(t, fmt.Sprintf("line-%d", capacity*4+i), line)
	}
}

func TestRing_SnapshotIsACopy(t *testing.T) {
	r := NewRing(4)
	r.Append("a")
	snap := r.Snapshot()
	r.Append("b")

	assert.Equal(t, []string{"a"}, snap)
	assert.Equal(t, []string{"a", "b"}, r.Snapshot())
}

func TestRing_Last(t *testing.T) {
	r := NewRing(8)
	for _, l := range []string{"a", "b", "c", "d"} {
		r.Append(l)
	}

	assert.Equal(t, []string{"c", "d"}, r.Last(2))
	assert.Equal(t, []string{"a", "b", "c", "d"}, r.Last(10))
	assert.Nil(t, r.Last(0))
}

func TestRing_DefaultCapacity(t *testing.T) {
	r := NewRing(0)
	assert.Equal(t, DefaultRingCapacity, r.Cap())
}
