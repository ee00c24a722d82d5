// Package builder provides lingodb .lingo file writing infrastructure.
//
// The Allocator manages free space allocation for .lingo section layout.
// Sections are written once in declared order, so it uses a simple
// end-of-file allocation strategy with no freed-space reuse.
package builder

import (
	"fmt"
	"sort"
)

// AllocatedBlock tracks an allocated region of the file.
//
// Blocks are tracked to prevent overlapping allocations and to
// validate allocator integrity during testing.
type AllocatedBlock struct {
	Offset uint64 // Starting address in file
	Size   uint64 // Size of allocated block in bytes
}

// Allocator manages space allocation in .lingo files.
//
// Strategy:
//   - End-of-file allocation: All allocations occur at end of file
//   - No freed space reuse: sections are laid out once, never rewritten
//   - No fragmentation: perfect sequential layout matching the section
//     directory order spec'd in the header
//   - Overlap prevention: all allocations tracked
//
// Thread safety: not thread-safe; a builder run is single-threaded.
type Allocator struct {
	blocks     []AllocatedBlock // All allocated blocks (append-only)
	nextOffset uint64           // Next available address (end-of-file)
}

// NewAllocator creates a space allocator. initialOffset is typically
// the header size, since the header at offset 0 is not tracked by the
// allocator.
func NewAllocator(initialOffset uint64) *Allocator {
	return &Allocator{
		blocks:     make([]AllocatedBlock, 0, 16), // Pre-allocate capacity for 16 blocks
		nextOffset: initialOffset,
	}
}

// Allocate reserves a block of space at the end of the file, for one
// of the declared sections (string table, node array, connection
// array, octree array, vertical mapping, layer-connection array).
// Does not validate size against any limit; the OS rejects impossible
// sizes.
func (a *Allocator) Allocate(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("cannot allocate zero bytes")
	}

	// Allocate at current end of file
	addr := a.nextOffset

	// Record the allocation
	block := AllocatedBlock{
		Offset: addr,
		Size:   size,
	}
	a.blocks = append(a.blocks, block)

	// Move next offset to end of this allocation
	a.nextOffset = addr + size

	return addr, nil
}

// IsAllocated reports whether [offset, offset+size) overlaps any
// already-allocated block. Adjacent, touching ranges do not overlap.
func (a *Allocator) IsAllocated(offset, size uint64) bool {
	if size == 0 {
		return false
	}

	rangeEnd := offset + size

	for _, block := range a.blocks {
		blockEnd := block.Offset + block.Size

		// Check for overlap:
		// Two ranges [a1,a2) and [b1,b2) overlap if: a1 < b2 && b1 < a2
		if offset < blockEnd && block.Offset < rangeEnd {
			return true
		}
	}

	return false
}

// EndOfFile returns the current end-of-file address — where the next
// allocation would land, and the total size of the file so far.
func (a *Allocator) EndOfFile() uint64 {
	return a.nextOffset
}

// Blocks returns a copy of all allocated blocks, sorted by offset.
func (a *Allocator) Blocks() []AllocatedBlock {
	// Make a copy to prevent external modification
	blocks := make([]AllocatedBlock, len(a.blocks))
	copy(blocks, a.blocks)

	// Sort by offset for consistent output
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Offset < blocks[j].Offset
	})

	return blocks
}

// ValidateNoOverlaps checks allocator-internal consistency: with
// end-of-file-only allocation, blocks should never overlap. Used by
// the builder package's tests.
func (a *Allocator) ValidateNoOverlaps() error {
	blocks := a.Blocks() // Get sorted blocks

	for i := 0; i < len(blocks)-1; i++ {
		current := blocks[i]
		next := blocks[i+1]

		currentEnd := current.Offset + current.Size

		// Check if current block extends into next block
		if currentEnd > next.Offset {
			return fmt.Errorf("overlap detected: block at %d (size %d) overlaps block at %d",
				current.Offset, current.Size, next.Offset)
		}
	}

	return nil
}
