// This file implements LRU eviction.

package eviction

// nilIdx marks the absence of a neighbour or list end.
const nilIdx = -1

// lruNode represents ONE key inside the LRU arena.
// Links are arena indexes instead of pointers, so the list has no pointer cycles
// and freed slots are reused without allocating.
type lruNode struct {
	key string

	// prev points towards the head (more recently used).
	prev int

	// next points towards the tail (less recently used).
	next int
}

/*
lru keeps keys in recency order.

  - nodes is the arena; a removed node's slot goes onto free
  - index maps a key to its slot, so OnGet/Remove are O(1)
  - head is the MOST recently used slot, tail the LEAST

Evict always takes the tail. Because every OnGet/OnPut moves its key to the head,
the tail is the key with the oldest last access, and ties cannot happen: two
touches are always ordered by the sequence the cache performed them in.
*/
type lru struct {
	nodes []lruNode
	free  []int
	index map[string]int
	head  int
	tail  int
}

// newLRU returns an empty LRU; capacity is a sizing hint only.
func newLRU(capacity int) *lru {
	if capacity < 0 {
		capacity = 0
	}
	return &lru{
		nodes: make([]lruNode, 0, capacity),
		index: make(map[string]int, capacity),
		head:  nilIdx,
		tail:  nilIdx,
	}
}

// OnGet marks k as most recently used.
func (l *lru) OnGet(k string) {
	if i, ok := l.index[k]; ok {
		l.moveToFront(i)
	}
}

// OnPut inserts k at the front, or refreshes it if already tracked.
// A replaced key counts as a fresh access.
func (l *lru) OnPut(k string) {
	if i, ok := l.index[k]; ok {
		l.moveToFront(i)
		return
	}
	i := l.alloc(k)
	l.index[k] = i
	l.addFront(i)
}

// Evict removes and returns the LEAST recently used key.
func (l *lru) Evict() (string, bool) {
	if l.tail == nilIdx {
		return "", false
	}
	i := l.tail
	k := l.nodes[i].key
	l.unlink(i)
	l.release(i)
	delete(l.index, k)
	return k, true
}

// Remove forgets k without treating it as an eviction.
func (l *lru) Remove(k string) {
	i, ok := l.index[k]
	if !ok {
		return
	}
	l.unlink(i)
	l.release(i)
	delete(l.index, k)
}

// Len returns the number of tracked keys.
func (l *lru) Len() int { return len(l.index) }

// Reset drops every node but keeps the arena's backing array.
func (l *lru) Reset() {
	l.nodes = l.nodes[:0]
	l.free = l.free[:0]
	clear(l.index)
	l.head, l.tail = nilIdx, nilIdx
}

// Keys lists tracked keys from most to least recently used.
func (l *lru) Keys() []string {
	out := make([]string, 0, len(l.index))
	for i := l.head; i != nilIdx; i = l.nodes[i].next {
		out = append(out, l.nodes[i].key)
	}
	return out
}

func (l *lru) alloc(k string) int {
	if n := len(l.free); n > 0 {
		i := l.free[n-1]
		l.free = l.free[:n-1]
		l.nodes[i] = lruNode{key: k, prev: nilIdx, next: nilIdx}
		return i
	}
	l.nodes = append(l.nodes, lruNode{key: k, prev: nilIdx, next: nilIdx})
	return len(l.nodes) - 1
}

func (l *lru) release(i int) {
	l.nodes[i] = lruNode{prev: nilIdx, next: nilIdx}
	l.free = append(l.free, i)
}

// addFront links slot i as the head.
func (l *lru) addFront(i int) {
	n := &l.nodes[i]
	n.prev = nilIdx
	n.next = l.head
	if l.head != nilIdx {
		l.nodes[l.head].prev = i
	}
	l.head = i

	// If the list was empty, head and tail are the same
	if l.tail == nilIdx {
		l.tail = i
	}
}

// unlink detaches slot i, fixing head and tail when needed.
func (l *lru) unlink(i int) {
	n := &l.nodes[i]
	if n.prev != nilIdx {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nilIdx {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nilIdx, nilIdx
}

func (l *lru) moveToFront(i int) {
	if l.head == i {
		return
	}
	l.unlink(i)
	l.addFront(i)
}
