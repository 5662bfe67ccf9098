// Package collision detects hash collisions while a name index is built.
//
// The reader addresses signals by the xxhash of their full hierarchical
// path. Two distinct paths hashing to the same value would silently alias
// each other in a plain hash map, so index construction runs every entry
// through a Tracker and falls back to exact string matching once a
// collision is observed.
package collision

// Tracker records hash-to-name assignments and flags collisions.
type Tracker struct {
	names    map[uint64]string
	collided bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{names: make(map[uint64]string)}
}

// Track records name under hash and reports whether the hash was free.
//
// A repeated (hash, name) pair is a duplicate declaration and returns false
// without raising the collision flag; the same hash under a different name
// marks the tracker as collided.
func (t *Tracker) Track(hash uint64, name string) bool {
	existing, ok := t.names[hash]
	if ok {
		if existing != name {
			t.collided = true
		}

		return false
	}
	t.names[hash] = name

	return true
}

// HasCollision reports whether two distinct names mapped to the same hash.
func (t *Tracker) HasCollision() bool {
	return t.collided
}

// Len returns the number of distinct hashes tracked.
func (t *Tracker) Len() int {
	return len(t.names)
}

// Reset clears all tracked names and the collision flag, keeping the
// allocated map capacity.
func (t *Tracker) Reset() {
	for k := range t.names {
		delete(t.names, k)
	}
	t.collided = false
}
