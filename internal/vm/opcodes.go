package vm

import (
	"encoding/binary"
	"math"

	"github.com/RobAntunes/lingodb/internal/format"
)

// Opcode is one entry of the closed instruction set §4.5 declares.
// The interpreter dispatches once per instruction over this set; a
// new query operation adds a tag here and a compiler case, never a
// new interpreter type.
type Opcode uint8

const (
	OpHalt Opcode = iota

	// Node ops
	OpLoad     // push NodeSetOf(StrConst resolved to an id via surface-form lookup)
	OpLoadByID // push NodeSetOf(A)
	OpDup      // duplicate top of stack
	OpSwap     // swap top two stack entries
	OpDrop     // discard top of stack

	// Layer ops
	OpLayerUp   // pop set, push union of LayerUp(n=A) over its members
	OpLayerDown // pop set, push union of LayerDown(n=A) over its members

	// Orthogonal ops
	OpFollowConnection     // pop set, push rank-A strongest edge target per member
	OpFollowConnectionKind // pop set, push all edges of kind A per member
	OpBidirectional        // pop set, push bidirectional peers per member

	// Spatial ops
	OpSpatialRadius // pop set, push radius query (Float A=radius, B=layer mask) around each member's position
	OpSpatialNearest
	OpSimilarTo // pop set, push radius query with radius = 1-threshold around each member

	// Filter ops
	OpFilterByLayer
	OpFilterByEtymology
	OpFilterByFlags

	// Result ops
	OpSort
	OpLimit
	OpDeduplicate

	// Registers
	OpStoreReg // pop set, store into register A
	OpLoadReg  // push register A

	opcodeCount
)

// SortCriterion selects the ordering OpSort applies.
type SortCriterion uint8

const (
	SortByStrength SortCriterion = iota
	SortByDistance
	SortByFrequency
	SortByID
)

// Instruction is one fixed-shape bytecode instruction: an opcode plus
// up to four immediate operands. Operands are reused per opcode (see
// the comments in the Opcode block); StrConst indexes into the
// compiled query's constant table for string operands (currently only
// OpLoad's surface form).
type Instruction struct {
	Op        Opcode
	A         int32   // register index, rank, layer delta, or enum ordinal
	B         uint32  // secondary immediate: layer mask, sort criterion, etc.
	Float     float32 // radius or threshold, when the opcode needs one
	StrConst  uint32  // index into the constant table, for OpLoad
	Center    format.Coordinate
}

// Encode appends the instruction's binary representation to buf, used
// only to compute a stable cache key over the instruction stream; this
// encoding is never persisted to disk.
func (in Instruction) Encode(buf []byte) []byte {
	var scratch [4]byte
	buf = append(buf, byte(in.Op))
	binary.LittleEndian.PutUint32(scratch[:], uint32(in.A))
	buf = append(buf, scratch[:]...)
	binary.LittleEndian.PutUint32(scratch[:], in.B)
	buf = append(buf, scratch[:]...)
	binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(in.Float))
	buf = append(buf, scratch[:]...)
	binary.LittleEndian.PutUint32(scratch[:], in.StrConst)
	buf = append(buf, scratch[:]...)
	return buf
}
