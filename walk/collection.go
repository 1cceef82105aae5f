package walk

import "slices"

const initialCapacity = 10

// Collection accumulates the entry paths discovered by a single traversal.
// Entries are only ever appended; the backing storage doubles when full.
type Collection struct {
	entries []string
}

func newCollection() *Collection {
	return &Collection{
		entries: make([]string, 0, initialCapacity),
	}
}

func (c *Collection) Append(path string) {
	if len(c.entries) == cap(c.entries) {
		grown := make([]string, len(c.entries), max(2*cap(c.entries), initialCapacity))
		copy(grown, c.entries)
		c.entries = grown
	}

	c.entries = append(c.entries, path)
}

func (c *Collection) Len() int {
	return len(c.entries)
}

// Sorted orders the entries byte-wise and hands them over to the caller.
// The Collection must not be used afterwards.
func (c *Collection) Sorted() []string {
	slices.Sort(c.entries)

	entries := c.entries
	c.entries = nil

	return entries
}
