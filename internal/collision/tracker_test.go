package collision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_Track(t *testing.T) {
	tr := NewTracker()

	require.True(t, tr.Track(100, "top.cpu.clk"))
	require.True(t, tr.Track(200, "top.cpu.data"))
	require.Equal(t, 2, tr.Len())
	require.False(t, tr.HasCollision())

	// Same hash, same name is a duplicate, not a collision.
	require.False(t, tr.Track(100, "top.cpu.clk"))
	require.False(t, tr.HasCollision())

	// Same hash, different name raises the flag.
	require.False(t, tr.Track(200, "top.cpu.rst"))
	require.True(t, tr.HasCollision())
	require.Equal(t, 2, tr.Len())
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.Track(1, "a")
	tr.Track(1, "b")
	require.True(t, tr.HasCollision())

	tr.Reset()
	require.Equal(t, 0, tr.Len())
	require.False(t, tr.HasCollision())
	require.True(t, tr.Track(1, "a"))
}
