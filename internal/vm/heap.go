package vm

import "github.com/funvibe/funledger/internal/diagnostics"

// Heap is the cell arena of one statement. Freed nodes are recycled through
// per-size free lists, so allocation order is a pure function of the
// rewrites performed.
type Heap struct {
	node  []Ptr
	free  map[uint64][]uint64
	limit uint64
	// onFree is called for every released node.
	onFree func(loc uint64)
}

func NewHeap(limit uint64) *Heap {
	return &Heap{node: make([]Ptr, 0, 1024), free: map[uint64][]uint64{}, limit: limit}
}

func (h *Heap) get(loc uint64) Ptr     { return h.node[loc] }
func (h *Heap) set(loc uint64, p Ptr) { h.node[loc] = p }

// Len is the number of cells ever allocated, free or not.
func (h *Heap) Len() uint64 { return uint64(len(h.node)) }

func (h *Heap) alloc(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	if list := h.free[size]; len(list) > 0 {
		loc := list[len(list)-1]
		h.free[size] = list[:len(list)-1]
		return loc
	}
	loc := uint64(len(h.node))
	if loc+size > h.limit {
		panic(diagnostics.Errorf(diagnostics.ResourceExceeded, "heap limit of %d cells exceeded", h.limit))
	}
	for i := uint64(0); i < size; i++ {
		h.node = append(h.node, Era())
	}
	return loc
}

func (h *Heap) release(loc, size uint64) {
	if size == 0 {
		return
	}
	h.free[size] = append(h.free[size], loc)
	if h.onFree != nil {
		h.onFree(loc)
	}
}
