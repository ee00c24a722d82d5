package query

import (
	"fmt"
	"math"

	"github.com/RobAntunes/lingodb/internal/vm"
)

// Level selects how aggressively the compiler rewrites a chain before
// emission.
type Level uint8

const (
	// Debug preserves operation order one-for-one, so a failing
	// operation localises to its source position in the chain.
	Debug Level = iota
	// Balanced applies filter pushdown and op fusion.
	Balanced
	// Aggressive applies Balanced's rewrites plus speculative
	// prefetch hints on the compiled query.
	Aggressive
)

// RequiredIndices is a bitset of the index views a compiled query
// touches, so an executor can decide what to warm before running it.
type RequiredIndices uint8

const (
	RequiresStringTable RequiredIndices = 1 << iota
	RequiresVertical
	RequiresConnections
	RequiresSpatial
)

// CompiledQuery is the output of compilation: a flat instruction
// stream ready for vm.Machine.Run, its string constant table, a stable
// cache key, a cost estimate, and the indices it touches.
type CompiledQuery struct {
	Program         []vm.Instruction
	Constants       []string
	CacheKey        uint64
	Cost            int
	RequiredIndices RequiredIndices
	Level           Level
	// Prefetch lists node-set-producing instruction indices worth
	// warming ahead of execution; only Aggressive populates it.
	Prefetch []int
}

// Compile runs the three-pass pipeline (§4.4) over steps: validation,
// reordering/fusion (skipped at Debug), and emission. nodeCount and
// fileChecksum feed the cost estimate and cache key respectively.
func Compile(steps []Step, level Level, nodeCount int, fileChecksum uint64) (*CompiledQuery, error) {
	if err := validate(steps); err != nil {
		return nil, err
	}

	working := steps
	if level != Debug {
		working = fuse(reorder(steps))
	}

	return emit(working, level, nodeCount, fileChecksum)
}

// validate rejects empty chains and chains whose first operation does
// not produce an initial node-set from nothing (only Find can anchor a
// chain; every other operation is defined in terms of "each input").
func validate(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: empty operation chain", ErrCompile)
	}
	if steps[0].Kind != OpFind {
		return fmt.Errorf("%w: chain must begin with Find, got %v", ErrCompile, steps[0].Kind)
	}
	for i, s := range steps {
		if i == 0 {
			continue
		}
		if s.Kind == OpFind {
			return fmt.Errorf("%w: Find may only anchor a chain, found at position %d", ErrCompile, i)
		}
	}
	return nil
}

// isEnlarging reports whether kind may grow the node-set or change
// node identities, as opposed to filters which only shrink it.
func isEnlarging(kind OpKind) bool {
	switch kind {
	case OpLayerUp, OpLayerDown, OpSimilarTo, OpSpatialNeighbors,
		OpFollowConnection, OpFollowConnectionKind, OpBidirectional:
		return true
	default:
		return false
	}
}

func isFilter(kind OpKind) bool {
	switch kind {
	case OpFilterByLayer, OpFilterByEtymology, OpFilterByFlags:
		return true
	default:
		return false
	}
}

// reorder pushes filters as early as they remain semantically
// equivalent, per §4.4's pass 2. An enlarging op (LayerUp, LayerDown,
// FollowConnection, SimilarTo, ...) replaces the node-set with member
// nodes whose attributes can differ arbitrarily from the input's, so a
// filter can never cross one without changing which nodes survive —
// "before enlargement operations" in the spec names the destination, not
// a license to cross them. The one rewrite that is genuinely
// equivalent is pushing a filter ahead of an adjacent Sort: sorting
// doesn't add or remove members, so filtering first only shrinks what
// there is to sort. Reordering never crosses a Deduplicate boundary.
func reorder(steps []Step) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)

	for i := len(out) - 1; i > 1; i-- {
		if !isFilter(out[i].Kind) {
			continue
		}
		for j := i; j > 1; j-- {
			prev := out[j-1]
			if prev.Kind != OpSort {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// fuse merges adjacent steps per §4.4's algebraic laws: LayerUp(a).
// LayerUp(b) -> LayerUp(a+b) (symmetrically for LayerDown), Limit(n).
// Limit(m) -> Limit(min(n,m)), and Deduplicate.Deduplicate ->
// Deduplicate.
func fuse(steps []Step) []Step {
	if len(steps) == 0 {
		return steps
	}
	out := make([]Step, 0, len(steps))
	out = append(out, steps[0])

	for _, s := range steps[1:] {
		last := &out[len(out)-1]
		switch {
		case last.Kind == OpLayerUp && s.Kind == OpLayerUp:
			last.Levels += s.Levels
		case last.Kind == OpLayerDown && s.Kind == OpLayerDown:
			last.Levels += s.Levels
		case last.Kind == OpLimit && s.Kind == OpLimit:
			if s.N < last.N {
				last.N = s.N
			}
		case last.Kind == OpDeduplicate && s.Kind == OpDeduplicate:
			// no-op: idempotent, drop the duplicate
		case last.Kind == OpFilterByLayer && s.Kind == OpFilterByLayer:
			last.Mask &= s.Mask
		default:
			out = append(out, s)
		}
	}
	return out
}

// emit lowers steps to a flat instruction stream, computing a cost
// estimate, cache key, and required-indices bitset along the way.
func emit(steps []Step, level Level, nodeCount int, fileChecksum uint64) (*CompiledQuery, error) {
	var (
		program   []vm.Instruction
		constants []string
		cost      int
		required  RequiredIndices
		prefetch  []int
	)

	logNodes := 1
	if nodeCount > 1 {
		logNodes = int(math.Ceil(math.Log2(float64(nodeCount))))
	}

	for _, s := range steps {
		switch s.Kind {
		case OpFind:
			constants = append(constants, s.Surface)
			program = append(program, vm.Instruction{Op: vm.OpLoad, StrConst: uint32(len(constants) - 1)})
			required |= RequiresStringTable
			cost += 1

		case OpLayerUp:
			program = append(program, vm.Instruction{Op: vm.OpLayerUp, A: int32(s.Levels)})
			required |= RequiresVertical
			cost += 1

		case OpLayerDown:
			program = append(program, vm.Instruction{Op: vm.OpLayerDown, A: int32(s.Levels)})
			required |= RequiresVertical
			cost += 1

		case OpSimilarTo:
			program = append(program, vm.Instruction{
				Op: vm.OpSimilarTo, Float: float32(1 - s.Threshold), B: uint32(s.Mask),
			})
			required |= RequiresSpatial
			cost += logNodes

		case OpSpatialNeighbors:
			program = append(program, vm.Instruction{
				Op: vm.OpSpatialRadius, Float: float32(s.Radius), B: uint32(s.Mask),
			})
			required |= RequiresSpatial
			cost += logNodes

		case OpFollowConnection:
			program = append(program, vm.Instruction{Op: vm.OpFollowConnection, A: int32(s.Rank)})
			required |= RequiresConnections
			cost += 1

		case OpFollowConnectionKind:
			program = append(program, vm.Instruction{Op: vm.OpFollowConnectionKind, A: int32(s.ConnKind)})
			required |= RequiresConnections
			cost += 1

		case OpBidirectional:
			program = append(program, vm.Instruction{Op: vm.OpBidirectional})
			required |= RequiresConnections
			cost += 1

		case OpFilterByLayer:
			program = append(program, vm.Instruction{Op: vm.OpFilterByLayer, B: uint32(s.Mask)})
			cost += nodeCount

		case OpFilterByEtymology:
			program = append(program, vm.Instruction{Op: vm.OpFilterByEtymology, A: int32(s.Etymology)})
			cost += nodeCount

		case OpFilterByFlags:
			program = append(program, vm.Instruction{Op: vm.OpFilterByFlags, B: uint32(s.Flags)})
			cost += nodeCount

		case OpSort:
			program = append(program, vm.Instruction{Op: vm.OpSort, B: uint32(s.Criterion)})
			cost += logNodes

		case OpLimit:
			program = append(program, vm.Instruction{Op: vm.OpLimit, A: int32(s.N)})
			cost += 1

		case OpDeduplicate:
			program = append(program, vm.Instruction{Op: vm.OpDeduplicate})
			cost += 1

		default:
			return nil, fmt.Errorf("%w: unhandled operation kind %v", ErrCompile, s.Kind)
		}

		if level == Aggressive && isEnlarging(s.Kind) {
			prefetch = append(prefetch, len(program)-1)
		}
	}

	program = append(program, vm.Instruction{Op: vm.OpHalt})

	digest := vm.Digest(program, constants)
	cacheKey := digest ^ (fileChecksum*1099511628211 + 0x9e3779b97f4a7c15)

	return &CompiledQuery{
		Program:         program,
		Constants:       constants,
		CacheKey:        cacheKey,
		Cost:            cost,
		RequiredIndices: required,
		Level:           level,
		Prefetch:        prefetch,
	}, nil
}
