package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_InsertRemoveClamp(t *testing.T) {
	var l List[string]
	l.Replace([]string{"b", "c"})

	l.Insert(0, "a")
	l.Insert(99, "z")
	l.Insert(-3, "first")
	assert.Equal(t, []string{"first", "a", "b", "c", "z"}, l.Items())

	removed := l.RemoveAt(2)
	assert.Equal(t, "b", removed)
	assert.Equal(t, []string{"first", "a", "c", "z"}, l.Items())

	idx, ok := l.Find(func(s string) bool { return s == "c" })
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = l.Find(func(s string) bool { return s == "nope" })
	assert.False(t, ok)
}

func TestList_ItemsReturnsCopy(t *testing.T) {
	var l List[int]
	l.Replace([]int{1, 2, 3})
	items := l.Items()
	items[0] = 99
	assert.Equal(t, 1, l.At(0))
}

func TestList_RestoreUndoesLocalEdits(t *testing.T) {
	var l List[int]
	l.Replace([]int{1, 2, 3})
	snap := l.Snapshot()

	l.RemoveAt(1)
	l.Update(func(v *int) bool { *v *= 10; return true })
	assert.Equal(t, []int{10, 30}, l.Items())

	require.True(t, l.Restore(snap))
	assert.Equal(t, []int{1, 2, 3}, l.Items())
}

func TestList_RestoreRefusedAfterServerSync(t *testing.T) {
	var l List[int]
	l.Replace([]int{1, 2, 3})
	snap := l.Snapshot()

	l.RemoveAt(0)
	l.Replace([]int{7})

	assert.False(t, l.Restore(snap))
	assert.Equal(t, []int{7}, l.Items())
}

func TestList_CountAndUpdate(t *testing.T) {
	var l List[int]
	l.Replace([]int{1, 2, 3, 4})
	assert.Equal(t, 2, l.Count(func(v int) bool { return v%2 == 0 }))

	changed := l.Update(func(v *int) bool {
		if *v > 2 {
			*v = 0
			return true
		}
		return false
	})
	assert.Equal(t, 2, changed)
	assert.Equal(t, []int{1, 2, 0, 0}, l.Items())

	version := l.Version()
	l.Clear()
	assert.Zero(t, l.Len())
	assert.Equal(t, version+1, l.Version())
}

func TestList_RemoveAllIsLocalEdit(t *testing.T) {
	var l List[int]
	l.Replace([]int{1, 2})
	snap := l.Snapshot()

	l.RemoveAll()
	assert.Zero(t, l.Len())
	require.True(t, l.Restore(snap))
	assert.Equal(t, []int{1, 2}, l.Items())
}
