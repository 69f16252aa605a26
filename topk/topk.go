// Package topk provides a fixed-capacity map that keeps the smallest keys inserted into it,
// in ascending order, without sorting every candidate.
package topk

import (
	"cmp"

	"go.viam.com/pcindex/utils"
)

// nilNode marks the absence of a neighbor in the linked list.
const nilNode = -1

type node[K cmp.Ordered, V any] struct {
	key   K
	value V
	prev  int
	next  int
}

// Map is a bounded ordered map. Nodes live in a fixed array and are chained into a doubly
// linked list sorted by key; unused slots form a free list. Inserting into a full map
// recycles the tail slot. A Map is not safe for concurrent use; give every query its own.
type Map[K cmp.Ordered, V any] struct {
	nodes []node[K, V]
	head  int
	tail  int
	free  int
	size  int
}

// New returns an empty Map that holds at most capacity pairs.
func New[K cmp.Ordered, V any](capacity int) (*Map[K, V], error) {
	if capacity < 1 {
		return nil, utils.NewInvalidConfigurationError("capacity", capacity)
	}
	m := &Map[K, V]{nodes: make([]node[K, V], capacity)}
	m.Reset()
	return m, nil
}

// Reset empties the map without releasing its slots.
func (m *Map[K, V]) Reset() {
	m.head, m.tail, m.size = nilNode, nilNode, 0
	for i := range m.nodes {
		m.nodes[i] = node[K, V]{prev: nilNode, next: i + 1}
	}
	m.nodes[len(m.nodes)-1].next = nilNode
	m.free = 0
}

// Len returns the number of stored pairs.
func (m *Map[K, V]) Len() int {
	return m.size
}

// Cap returns the capacity given to New.
func (m *Map[K, V]) Cap() int {
	return len(m.nodes)
}

// Empty reports whether no pair is stored.
func (m *Map[K, V]) Empty() bool {
	return m.size == 0
}

// Full reports whether the map holds Cap() pairs.
func (m *Map[K, V]) Full() bool {
	return m.size == len(m.nodes)
}

// Head returns the slot of the smallest key, or -1 when empty.
func (m *Map[K, V]) Head() int {
	return m.head
}

// Tail returns the slot of the largest key, or -1 when empty.
func (m *Map[K, V]) Tail() int {
	return m.tail
}

// HeadKey returns the smallest key; ok is false when the map is empty.
func (m *Map[K, V]) HeadKey() (key K, ok bool) {
	if m.head == nilNode {
		return key, false
	}
	return m.nodes[m.head].key, true
}

// TailKey returns the largest key; ok is false when the map is empty.
func (m *Map[K, V]) TailKey() (key K, ok bool) {
	if m.tail == nilNode {
		return key, false
	}
	return m.nodes[m.tail].key, true
}

// Insert adds (key, value) and reports whether it was kept. When the map is full a key
// at or above the current tail is rejected; otherwise the tail is evicted to make room.
// Pairs with equal keys keep their insertion order.
func (m *Map[K, V]) Insert(key K, value V) bool {
	if m.Full() {
		if key >= m.nodes[m.tail].key {
			return false
		}
		m.release(m.tail)
	}

	slot := m.free
	m.free = m.nodes[slot].next
	m.nodes[slot] = node[K, V]{key: key, value: value, prev: nilNode, next: nilNode}

	// Walk from the tail since most accepted candidates land near the end.
	after := m.tail
	for after != nilNode && m.nodes[after].key > key {
		after = m.nodes[after].prev
	}
	m.linkAfter(slot, after)
	m.size++
	return true
}

// Elems returns the keys and values in ascending key order.
func (m *Map[K, V]) Elems() ([]K, []V) {
	keys := make([]K, 0, m.size)
	values := make([]V, 0, m.size)
	for i := m.head; i != nilNode; i = m.nodes[i].next {
		keys = append(keys, m.nodes[i].key)
		values = append(values, m.nodes[i].value)
	}
	return keys, values
}

// linkAfter places slot after the given slot, or at the head when after is -1.
func (m *Map[K, V]) linkAfter(slot, after int) {
	n := &m.nodes[slot]
	if after == nilNode {
		n.next = m.head
		if m.head != nilNode {
			m.nodes[m.head].prev = slot
		}
		m.head = slot
	} else {
		n.prev = after
		n.next = m.nodes[after].next
		if n.next != nilNode {
			m.nodes[n.next].prev = slot
		}
		m.nodes[after].next = slot
	}
	if n.next == nilNode {
		m.tail = slot
	}
}

// release unlinks slot and returns it to the free list.
func (m *Map[K, V]) release(slot int) {
	n := m.nodes[slot]
	if n.prev != nilNode {
		m.nodes[n.prev].next = n.next
	} else {
		m.head = n.next
	}
	if n.next != nilNode {
		m.nodes[n.next].prev = n.prev
	} else {
		m.tail = n.prev
	}
	m.nodes[slot] = node[K, V]{prev: nilNode, next: m.free}
	m.free = slot
	m.size--
}
