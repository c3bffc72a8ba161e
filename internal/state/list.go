package state

// List is an ordered collection mirroring a server collection. It is not safe
// for concurrent use; the owning store guards it with its own mutex.
//
// Replace marks a server sync and bumps the version. Local edits (Insert,
// RemoveAt, RemoveAll, Set, Update) leave the version alone, so a rollback can tell
// whether the server has replaced the collection since its snapshot.
type List[T any] struct {
	items   []T
	version uint64
}

// ListSnapshot is a copy of a List taken before an optimistic mutation.
type ListSnapshot[T any] struct {
	items   []T
	version uint64
}

// Len returns the number of items.
func (l *List[T]) Len() int { return len(l.items) }

// Version returns the number of server syncs applied so far.
func (l *List[T]) Version() uint64 { return l.version }

// Items returns a copy of the items.
func (l *List[T]) Items() []T {
	if len(l.items) == 0 {
		return nil
	}
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// At returns the item at i.
func (l *List[T]) At(i int) T { return l.items[i] }

// Replace swaps in a fresh server copy.
func (l *List[T]) Replace(items []T) {
	l.items = append([]T(nil), items...)
	l.version++
}

// Find returns the index of the first item matching fn.
func (l *List[T]) Find(fn func(T) bool) (int, bool) {
	for i, item := range l.items {
		if fn(item) {
			return i, true
		}
	}
	return -1, false
}

// Count returns how many items match fn.
func (l *List[T]) Count(fn func(T) bool) int {
	n := 0
	for _, item := range l.items {
		if fn(item) {
			n++
		}
	}
	return n
}

// Insert places item at index i, clamped to the valid range.
func (l *List[T]) Insert(i int, item T) {
	if i < 0 {
		i = 0
	}
	if i > len(l.items) {
		i = len(l.items)
	}
	l.items = append(l.items, item)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = item
}

// RemoveAt deletes and returns the item at i.
func (l *List[T]) RemoveAt(i int) T {
	item := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	return item
}

// Set overwrites the item at i.
func (l *List[T]) Set(i int, item T) { l.items[i] = item }

// Update applies fn to every item in place and returns how many it changed.
func (l *List[T]) Update(fn func(*T) bool) int {
	changed := 0
	for i := range l.items {
		if fn(&l.items[i]) {
			changed++
		}
	}
	return changed
}

// RemoveAll empties the list as a local edit.
func (l *List[T]) RemoveAll() { l.items = nil }

// Clear empties the list as a server sync would.
func (l *List[T]) Clear() { l.Replace(nil) }

// Snapshot copies the current items and version.
func (l *List[T]) Snapshot() ListSnapshot[T] {
	return ListSnapshot[T]{items: l.Items(), version: l.version}
}

// Restore puts back the items captured by s. It refuses, returning false, when
// a server sync happened after the snapshot was taken.
func (l *List[T]) Restore(s ListSnapshot[T]) bool {
	if s.version != l.version {
		return false
	}
	l.items = append([]T(nil), s.items...)
	return true
}
