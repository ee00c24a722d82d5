// Package vm implements the stack-based bytecode interpreter of §4.5:
// a machine with a stack of node-sets and sixteen register slots,
// dispatching a closed opcode set against a reader and its indices,
// with deadline-based cancellation and an LRU result cache.
package vm

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/RobAntunes/lingodb/internal/format"
)

// inlineCapacity is the node-set size under which ids are kept in a
// small inline array rather than spilling to a heap slice plus
// bitset. Matches the "small threshold (e.g., 8)" named in §4.5.
const inlineCapacity = 8

// NodeSet is the interpreter's first-class value: an ordered,
// deduplicated list of node ids with O(1) membership testing. Small
// sets stay inline; sets above inlineCapacity spill to a slice backed
// by a bitset for membership tests, avoiding an O(n) scan per insert
// once a query fans out.
type NodeSet struct {
	inline    [inlineCapacity]format.NodeID
	inlineLen int

	spill    []format.NodeID
	spillSet *bitset.BitSet
}

// NewNodeSet returns an empty node-set.
func NewNodeSet() NodeSet {
	return NodeSet{}
}

// NodeSetOf returns a node-set containing ids, deduplicated in the
// order given.
func NodeSetOf(ids ...format.NodeID) NodeSet {
	var s NodeSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Len returns the number of distinct ids in the set.
func (s *NodeSet) Len() int {
	if s.spill != nil {
		return len(s.spill)
	}
	return s.inlineLen
}

// Contains reports whether id is a member.
func (s *NodeSet) Contains(id format.NodeID) bool {
	if s.spill != nil {
		return s.spillSet.Test(uint(id))
	}
	for i := 0; i < s.inlineLen; i++ {
		if s.inline[i] == id {
			return true
		}
	}
	return false
}

// Add appends id if not already present, preserving first-insertion
// order, spilling from the inline array once inlineCapacity is
// exceeded.
func (s *NodeSet) Add(id format.NodeID) {
	if s.Contains(id) {
		return
	}
	if s.spill == nil && s.inlineLen < inlineCapacity {
		s.inline[s.inlineLen] = id
		s.inlineLen++
		return
	}
	if s.spill == nil {
		s.spill = make([]format.NodeID, s.inlineLen, s.inlineLen*2)
		copy(s.spill, s.inline[:s.inlineLen])
		s.spillSet = bitset.New(0)
		for _, v := range s.spill {
			s.spillSet.Set(uint(v))
		}
	}
	s.spill = append(s.spill, id)
	s.spillSet.Set(uint(id))
}

// Ids returns the set's members in insertion order. The returned slice
// is owned by the caller; mutating it does not affect the set.
func (s *NodeSet) Ids() []format.NodeID {
	if s.spill != nil {
		out := make([]format.NodeID, len(s.spill))
		copy(out, s.spill)
		return out
	}
	out := make([]format.NodeID, s.inlineLen)
	copy(out, s.inline[:s.inlineLen])
	return out
}

// Truncate keeps only the first n members, in place.
func (s *NodeSet) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if s.spill != nil {
		if n >= len(s.spill) {
			return
		}
		dropped := s.spill[n:]
		s.spill = s.spill[:n]
		for _, id := range dropped {
			s.spillSet.Clear(uint(id))
		}
		return
	}
	if n < s.inlineLen {
		s.inlineLen = n
	}
}

// Clone returns an independent copy of s.
func (s *NodeSet) Clone() NodeSet {
	var out NodeSet
	for _, id := range s.Ids() {
		out.Add(id)
	}
	return out
}
