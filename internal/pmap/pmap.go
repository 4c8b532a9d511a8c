// Package pmap provides an immutable hash array mapped trie. Every update
// returns a new map sharing unchanged branches with the old one, which is
// what lets a statement stage its changes on a copy of the ledger state and
// discard them on failure.
package pmap

import (
	"hash/fnv"
	"math/bits"
)

const (
	hamtBits = 5
	hamtSize = 1 << hamtBits // 32
	hamtMask = hamtSize - 1
)

// Map is an immutable map from K to V. The zero value is not usable; create
// maps with New.
type Map[K comparable, V any] struct {
	root  *node[K, V]
	count int
	hash  func(K) uint32
}

type node[K comparable, V any] struct {
	bitmap uint32 // which indices are populated
	slots  []any  // entry[K, V] or *node[K, V]
}

type entry[K comparable, V any] struct {
	hash  uint32
	key   K
	value V
}

// New returns an empty map using hash to place keys.
func New[K comparable, V any](hash func(K) uint32) *Map[K, V] {
	return &Map[K, V]{hash: hash}
}

// Strings returns an empty map keyed by strings.
func Strings[V any]() *Map[string, V] { return New[string, V](HashString) }

// Uints returns an empty map keyed by uint64.
func Uints[V any]() *Map[uint64, V] { return New[uint64, V](HashUint64) }

// HashString is 32-bit FNV-1a.
func HashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// HashUint64 folds a 64-bit key with a finalizer so sequential ids spread
// across the trie.
func HashUint64(k uint64) uint32 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	return uint32(k) ^ uint32(k>>32)
}

func (m *Map[K, V]) Len() int {
	return m.count
}

// Get returns the value for key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	if m.root == nil {
		var zero V
		return zero, false
	}
	return m.root.get(m.hash(key), key, 0)
}

func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Put returns a new map with key set to value.
func (m *Map[K, V]) Put(key K, value V) *Map[K, V] {
	root := m.root
	if root == nil {
		root = &node[K, V]{}
	}
	newRoot, added := root.put(m.hash(key), key, value, 0)
	count := m.count
	if added {
		count++
	}
	return &Map[K, V]{root: newRoot, count: count, hash: m.hash}
}

// Remove returns a new map without key. The receiver is returned when key
// is absent.
func (m *Map[K, V]) Remove(key K) *Map[K, V] {
	if m.root == nil {
		return m
	}
	newRoot, removed := m.root.remove(m.hash(key), key, 0)
	if !removed {
		return m
	}
	return &Map[K, V]{root: newRoot, count: m.count - 1, hash: m.hash}
}

// Range calls fn for every entry until fn returns false. Callers that need
// a canonical order sort the keys themselves.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	if m.root != nil {
		m.root.each(fn)
	}
}

// Keys returns all keys in Range order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.count)
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

func (n *node[K, V]) clone() *node[K, V] {
	c := &node[K, V]{bitmap: n.bitmap, slots: make([]any, len(n.slots))}
	copy(c.slots, n.slots)
	return c
}

func (n *node[K, V]) get(hash uint32, key K, shift uint) (V, bool) {
	var zero V
	if shift >= 32 {
		for _, s := range n.slots {
			if e := s.(entry[K, V]); e.key == key {
				return e.value, true
			}
		}
		return zero, false
	}

	bit := uint32(1) << ((hash >> shift) & hamtMask)
	if n.bitmap&bit == 0 {
		return zero, false
	}
	switch v := n.slots[index(n.bitmap, bit)].(type) {
	case entry[K, V]:
		if v.hash == hash && v.key == key {
			return v.value, true
		}
	case *node[K, V]:
		return v.get(hash, key, shift+hamtBits)
	}
	return zero, false
}

func (n *node[K, V]) put(hash uint32, key K, value V, shift uint) (*node[K, V], bool) {
	e := entry[K, V]{hash: hash, key: key, value: value}

	// Past the last hash bit, keys with identical hashes share a flat bucket.
	if shift >= 32 {
		c := n.clone()
		for i, s := range c.slots {
			if s.(entry[K, V]).key == key {
				c.slots[i] = e
				return c, false
			}
		}
		c.slots = append(c.slots, e)
		return c, true
	}

	bit := uint32(1) << ((hash >> shift) & hamtMask)
	pos := index(n.bitmap, bit)
	c := n.clone()

	if n.bitmap&bit == 0 {
		c.bitmap |= bit
		c.slots = append(c.slots, nil)
		copy(c.slots[pos+1:], c.slots[pos:])
		c.slots[pos] = e
		return c, true
	}

	switch v := c.slots[pos].(type) {
	case entry[K, V]:
		if v.hash == hash && v.key == key {
			c.slots[pos] = e
			return c, false
		}
		child, _ := (&node[K, V]{}).put(v.hash, v.key, v.value, shift+hamtBits)
		child, _ = child.put(hash, key, value, shift+hamtBits)
		c.slots[pos] = child
		return c, true
	case *node[K, V]:
		child, added := v.put(hash, key, value, shift+hamtBits)
		c.slots[pos] = child
		return c, added
	}
	return c, false
}

func (n *node[K, V]) remove(hash uint32, key K, shift uint) (*node[K, V], bool) {
	if shift >= 32 {
		for i, s := range n.slots {
			if s.(entry[K, V]).key == key {
				c := &node[K, V]{bitmap: n.bitmap, slots: make([]any, 0, len(n.slots)-1)}
				c.slots = append(c.slots, n.slots[:i]...)
				c.slots = append(c.slots, n.slots[i+1:]...)
				return c, true
			}
		}
		return n, false
	}

	bit := uint32(1) << ((hash >> shift) & hamtMask)
	if n.bitmap&bit == 0 {
		return n, false
	}
	pos := index(n.bitmap, bit)

	switch v := n.slots[pos].(type) {
	case entry[K, V]:
		if v.hash != hash || v.key != key {
			return n, false
		}
		return n.without(pos, bit), true
	case *node[K, V]:
		child, removed := v.remove(hash, key, shift+hamtBits)
		if !removed {
			return n, false
		}
		if len(child.slots) == 0 {
			return n.without(pos, bit), true
		}
		c := n.clone()
		// A child left with a single entry is pulled up into this node.
		if e, ok := child.slots[0].(entry[K, V]); ok && len(child.slots) == 1 {
			c.slots[pos] = e
		} else {
			c.slots[pos] = child
		}
		return c, true
	}
	return n, false
}

func (n *node[K, V]) without(pos int, bit uint32) *node[K, V] {
	c := &node[K, V]{bitmap: n.bitmap &^ bit, slots: make([]any, 0, len(n.slots)-1)}
	c.slots = append(c.slots, n.slots[:pos]...)
	c.slots = append(c.slots, n.slots[pos+1:]...)
	return c
}

func (n *node[K, V]) each(fn func(K, V) bool) bool {
	for _, s := range n.slots {
		switch v := s.(type) {
		case entry[K, V]:
			if !fn(v.key, v.value) {
				return false
			}
		case *node[K, V]:
			if !v.each(fn) {
				return false
			}
		}
	}
	return true
}

func index(bitmap, bit uint32) int {
	return bits.OnesCount32(bitmap & (bit - 1))
}
