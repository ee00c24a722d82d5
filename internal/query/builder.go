// Package query implements the fluent operation builder and the
// three-pass compiler that lowers a chain of operations into the
// bytecode stream the vm package executes (§4.4).
package query

import (
	"fmt"

	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/vm"
)

// OpKind tags one entry of the operation chain. Adding an operation
// means adding a tag here, a validation/reorder rule, and an emission
// case — the chain itself stays a flat slice, never a type hierarchy.
type OpKind uint8

const (
	OpFind OpKind = iota
	OpLayerUp
	OpLayerDown
	OpSimilarTo
	OpSpatialNeighbors
	OpFollowConnection
	OpFollowConnectionKind
	OpBidirectional
	OpFilterByLayer
	OpFilterByEtymology
	OpFilterByFlags
	OpSort
	OpLimit
	OpDeduplicate
)

func (k OpKind) String() string {
	switch k {
	case OpFind:
		return "Find"
	case OpLayerUp:
		return "LayerUp"
	case OpLayerDown:
		return "LayerDown"
	case OpSimilarTo:
		return "SimilarTo"
	case OpSpatialNeighbors:
		return "SpatialNeighbors"
	case OpFollowConnection:
		return "FollowConnection"
	case OpFollowConnectionKind:
		return "FollowConnectionKind"
	case OpBidirectional:
		return "Bidirectional"
	case OpFilterByLayer:
		return "FilterByLayer"
	case OpFilterByEtymology:
		return "FilterByEtymology"
	case OpFilterByFlags:
		return "FilterByFlags"
	case OpSort:
		return "Sort"
	case OpLimit:
		return "Limit"
	case OpDeduplicate:
		return "Deduplicate"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Step is one entry of the operation chain, a tagged union of every
// operand an operation might need. Unused fields are zero.
type Step struct {
	Kind OpKind

	Surface   string
	Levels    int
	Threshold float64
	Radius    float64
	Mask      format.LayerMask
	Rank      int
	ConnKind  format.ConnectionKind
	Etymology format.EtymologyOrigin
	Flags     format.NodeFlag
	Criterion vm.SortCriterion
	N         int
}

// Builder accumulates a Step chain through a fluent API. The first
// error encountered latches: subsequent calls are no-ops and Steps
// returns that error.
type Builder struct {
	steps []Step
	err   error
}

// New returns an empty Builder.
func New() *Builder { return &Builder{} }

func (b *Builder) append(s Step) *Builder {
	if b.err != nil {
		return b
	}
	b.steps = append(b.steps, s)
	return b
}

// Find anchors the chain at the node whose surface form is s.
func (b *Builder) Find(s string) *Builder {
	return b.append(Step{Kind: OpFind, Surface: s})
}

// LayerUp moves levels layers toward Domains for each input node.
func (b *Builder) LayerUp(levels int) *Builder {
	if b.err == nil && levels <= 0 {
		b.err = fmt.Errorf("%w: LayerUp requires a positive level count, got %d", ErrCompile, levels)
		return b
	}
	return b.append(Step{Kind: OpLayerUp, Levels: levels})
}

// LayerDown moves levels layers toward Letters for each input node.
func (b *Builder) LayerDown(levels int) *Builder {
	if b.err == nil && levels <= 0 {
		b.err = fmt.Errorf("%w: LayerDown requires a positive level count, got %d", ErrCompile, levels)
		return b
	}
	return b.append(Step{Kind: OpLayerDown, Levels: levels})
}

// SimilarTo returns nodes within spatial radius 1-threshold of each
// input. threshold must lie in (0,1].
func (b *Builder) SimilarTo(threshold float64) *Builder {
	if b.err == nil && (threshold <= 0 || threshold > 1) {
		b.err = fmt.Errorf("%w: SimilarTo threshold must be in (0,1], got %v", ErrCompile, threshold)
		return b
	}
	return b.append(Step{Kind: OpSimilarTo, Threshold: threshold, Mask: format.AllLayers})
}

// SpatialNeighbors returns nodes within radius of each input,
// restricted to mask. radius must lie in (0, sqrt(3)].
func (b *Builder) SpatialNeighbors(radius float64, mask format.LayerMask) *Builder {
	const maxRadius = 1.7320508075688772 // sqrt(3), the unit cube's space diagonal
	if b.err == nil && (radius <= 0 || radius > maxRadius) {
		b.err = fmt.Errorf("%w: SpatialNeighbors radius must be in (0,%v], got %v", ErrCompile, maxRadius, radius)
		return b
	}
	return b.append(Step{Kind: OpSpatialNeighbors, Radius: radius, Mask: mask})
}

// FollowConnection follows the rank-th strongest outgoing edge of each
// input, if present.
func (b *Builder) FollowConnection(rank int) *Builder {
	if b.err == nil && (rank < 0 || rank > 65535) {
		b.err = fmt.Errorf("%w: FollowConnection rank out of range: %d", ErrCompile, rank)
		return b
	}
	return b.append(Step{Kind: OpFollowConnection, Rank: rank})
}

// FollowConnectionKind follows every outgoing edge of the given kind.
func (b *Builder) FollowConnectionKind(kind format.ConnectionKind) *Builder {
	return b.append(Step{Kind: OpFollowConnectionKind, ConnKind: kind})
}

// Bidirectional keeps only peers that link back to their source with
// the same connection kind.
func (b *Builder) Bidirectional() *Builder {
	return b.append(Step{Kind: OpBidirectional})
}

// FilterByLayer keeps only nodes whose layer is in mask.
func (b *Builder) FilterByLayer(mask format.LayerMask) *Builder {
	return b.append(Step{Kind: OpFilterByLayer, Mask: mask})
}

// FilterByEtymology keeps only nodes with the given origin.
func (b *Builder) FilterByEtymology(origin format.EtymologyOrigin) *Builder {
	return b.append(Step{Kind: OpFilterByEtymology, Etymology: origin})
}

// FilterByFlags keeps only nodes with at least one flag in mask set.
func (b *Builder) FilterByFlags(mask format.NodeFlag) *Builder {
	return b.append(Step{Kind: OpFilterByFlags, Flags: mask})
}

// Sort stably orders the current node-set by criterion.
func (b *Builder) Sort(criterion vm.SortCriterion) *Builder {
	return b.append(Step{Kind: OpSort, Criterion: criterion})
}

// Limit truncates the current node-set to its first n members.
func (b *Builder) Limit(n int) *Builder {
	if b.err == nil && n < 0 {
		b.err = fmt.Errorf("%w: Limit requires a non-negative count, got %d", ErrCompile, n)
		return b
	}
	return b.append(Step{Kind: OpLimit, N: n})
}

// Deduplicate removes repeated members, keeping first occurrence.
func (b *Builder) Deduplicate() *Builder {
	return b.append(Step{Kind: OpDeduplicate})
}

// Steps returns the accumulated chain, or the first error any builder
// call latched.
func (b *Builder) Steps() ([]Step, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.steps, nil
}
