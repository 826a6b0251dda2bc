package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup_FirstPathBecomesPrimary(t *testing.T) {
	d := NewDedup()
	d.Add(Path{"a", "b", "x"})

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Path{"a", "b", "x"}, entries[0].Primary)
	assert.Len(t, entries[0].All, 1)
}

func TestDedup_ShorterPathReplacesPrimary(t *testing.T) {
	d := NewDedup()
	d.Add(Path{"a", "b", "c", "x"})
	d.Add(Path{"a", "x"})

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Path{"a", "x"}, entries[0].Primary)
	assert.Len(t, entries[0].All, 2, "both paths stay credited")
}

func TestDedup_EqualLengthKeepsFirstDiscovered(t *testing.T) {
	d := NewDedup()
	d.Add(Path{"a", "b", "x"})
	d.Add(Path{"a", "c", "x"})

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Path{"a", "b", "x"}, entries[0].Primary)
	assert.Len(t, entries[0].All, 2)
}

func TestDedup_LongerPathDoesNotReplacePrimary(t *testing.T) {
	d := NewDedup()
	d.Add(Path{"a", "x"})
	d.Add(Path{"a", "b", "c", "x"})

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Path{"a", "x"}, entries[0].Primary)
}

func TestDedup_IdenticalPathsCollapse(t *testing.T) {
	d := NewDedup()
	d.Add(Path{"a", "x"})
	d.Add(Path{"a", "x"})

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].All, 1)
}

func TestDedup_OrderIsFirstDiscovered(t *testing.T) {
	d := NewDedup()
	d.Add(Path{"a", "x"})
	d.Add(Path{"a", "y"})
	d.Add(Path{"a", "b", "x"})

	entries := d.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Path{"a", "x"}, entries[0].Primary)
	assert.Equal(t, Path{"a", "y"}, entries[1].Primary)
}
