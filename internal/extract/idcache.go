package extract

import "github.com/breadchris/crange/internal/cursor"

// IDCache numbers cursor identities in order of first sight, starting at 1.
// Cursors that expose a provider handle are looked up by handle; any other
// cursor falls back to an equality scan over the cursors seen so far.
type IDCache struct {
	handles map[cursor.Handle]int
	seen    []cursor.Cursor
	seenIDs []int
	next    int
}

// NewIDCache returns an empty cache.
func NewIDCache() *IDCache {
	return &IDCache{handles: make(map[cursor.Handle]int)}
}

// ID returns the number of c, assigning the next one if c is new.
func (ic *IDCache) ID(c cursor.Cursor) int {
	if h, ok := c.(cursor.Handler); ok {
		key := h.Handle()
		if id, ok := ic.handles[key]; ok {
			return id
		}
		ic.next++
		ic.handles[key] = ic.next
		return ic.next
	}
	for i, s := range ic.seen {
		if s.Equal(c) {
			return ic.seenIDs[i]
		}
	}
	ic.next++
	ic.seen = append(ic.seen, c)
	ic.seenIDs = append(ic.seenIDs, ic.next)
	return ic.next
}

// Len returns how many identities have been numbered.
func (ic *IDCache) Len() int { return ic.next }

// Reset forgets every identity. Numbering restarts at 1.
func (ic *IDCache) Reset() {
	clear(ic.handles)
	ic.seen = nil
	ic.seenIDs = nil
	ic.next = 0
}
