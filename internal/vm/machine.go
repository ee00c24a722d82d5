package vm

import (
	"errors"
	"fmt"
	"time"

	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/index"
	"github.com/RobAntunes/lingodb/internal/reader"
)

const registerCount = 16

// deadlineCheckCadence is how often, in instructions, the interpreter
// checks its deadline, per §5's "every k instructions" requirement.
const deadlineCheckCadence = 16

var (
	// ErrStackUnderflow marks a pop against an empty stack.
	ErrStackUnderflow = errors.New("stack underflow")
	// ErrUnknownOpcode marks an opcode outside the declared set.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrIndexFault marks an out-of-range register or constant index.
	ErrIndexFault = errors.New("index fault")
	// ErrTimeout marks a deadline expiry mid-execution.
	ErrTimeout = errors.New("execution deadline exceeded")
)

// Machine is one interpreter instance: a stack of node-sets, sixteen
// register slots, an instruction pointer, and a reference to the
// reader and its indices. A Machine is not safe for concurrent use;
// each goroutine running a query gets its own.
type Machine struct {
	stack     []NodeSet
	registers [registerCount]NodeSet

	r        *reader.Reader
	spatial  *index.Spatial
	vertical *index.Vertical
	conns    *index.Connections

	deadline    time.Time
	hasDeadline bool
}

// NewMachine returns a Machine bound to r's mapping and indices.
func NewMachine(r *reader.Reader) *Machine {
	return &Machine{
		r:        r,
		spatial:  index.NewSpatial(r),
		vertical: index.NewVertical(r),
		conns:    index.NewConnections(r),
	}
}

// Run executes program against constants (the compiled query's string
// constant table), honoring deadline if it is non-zero. It returns the
// top-of-stack node-set at Halt, or an empty set if the stack is
// empty, per §4.5's execution contract: no partial results surface on
// error.
func (m *Machine) Run(program []Instruction, constants []string, deadline time.Time) (NodeSet, error) {
	m.stack = m.stack[:0]
	for i := range m.registers {
		m.registers[i] = NodeSet{}
	}
	m.deadline = deadline
	m.hasDeadline = !deadline.IsZero()

	for ip := 0; ip < len(program); ip++ {
		if m.hasDeadline && ip%deadlineCheckCadence == 0 && time.Now().After(m.deadline) {
			return NodeSet{}, ErrTimeout
		}

		in := program[ip]
		if err := m.step(in, constants); err != nil {
			if errors.Is(err, errHalt) {
				break
			}
			return NodeSet{}, err
		}
	}

	if len(m.stack) == 0 {
		return NodeSet{}, nil
	}
	return m.stack[len(m.stack)-1], nil
}

var errHalt = errors.New("halt")

func (m *Machine) push(s NodeSet) { m.stack = append(m.stack, s) }

func (m *Machine) pop() (NodeSet, error) {
	if len(m.stack) == 0 {
		return NodeSet{}, ErrStackUnderflow
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return top, nil
}

// step dispatches one instruction. Returning errHalt stops Run without
// surfacing an error.
func (m *Machine) step(in Instruction, constants []string) error {
	switch in.Op {
	case OpHalt:
		return errHalt

	case OpLoad:
		if int(in.StrConst) >= len(constants) {
			return ErrIndexFault
		}
		id, ok := m.r.FindNodeBySurfaceForm(constants[in.StrConst])
		if !ok {
			m.push(NodeSet{}) // LookupMiss degrades to an empty set, not an error
			return nil
		}
		m.push(NodeSetOf(id))
		return nil

	case OpLoadByID:
		m.push(NodeSetOf(format.NodeID(in.A)))
		return nil

	case OpDup:
		top, err := m.pop()
		if err != nil {
			return err
		}
		m.push(top)
		m.push(top.Clone())
		return nil

	case OpSwap:
		b, err := m.pop()
		if err != nil {
			return err
		}
		a, err := m.pop()
		if err != nil {
			return err
		}
		m.push(b)
		m.push(a)
		return nil

	case OpDrop:
		_, err := m.pop()
		return err

	case OpLayerUp:
		return m.mapEachNode(func(n format.Node) ([]format.NodeID, error) {
			return m.vertical.LayerUp(n, int(in.A))
		})

	case OpLayerDown:
		return m.mapEachNode(func(n format.Node) ([]format.NodeID, error) {
			return m.vertical.LayerDown(n, int(in.A))
		})

	case OpFollowConnection:
		return m.mapEachNode(func(n format.Node) ([]format.NodeID, error) {
			edge, ok, err := m.conns.Nth(n, int(in.A))
			if err != nil || !ok {
				return nil, err
			}
			return []format.NodeID{edge.Target}, nil
		})

	case OpFollowConnectionKind:
		return m.mapEachNode(func(n format.Node) ([]format.NodeID, error) {
			edges, err := m.conns.OfKind(n, format.ConnectionKind(in.A))
			if err != nil {
				return nil, err
			}
			ids := make([]format.NodeID, len(edges))
			for i, e := range edges {
				ids[i] = e.Target
			}
			return ids, nil
		})

	case OpBidirectional:
		return m.mapEachNode(func(n format.Node) ([]format.NodeID, error) {
			edges, err := m.conns.BidirectionalPeers(n)
			if err != nil {
				return nil, err
			}
			ids := make([]format.NodeID, len(edges))
			for i, e := range edges {
				ids[i] = e.Target
			}
			return ids, nil
		})

	case OpSpatialRadius, OpSimilarTo:
		return m.mapEachNode(func(n format.Node) ([]format.NodeID, error) {
			return m.spatial.RadiusQuery(n.Position, float64(in.Float), format.LayerMask(in.B))
		})

	case OpSpatialNearest:
		return m.mapEachNode(func(n format.Node) ([]format.NodeID, error) {
			return m.spatial.KNearest(n.Position, int(in.A), format.LayerMask(in.B))
		})

	case OpFilterByLayer:
		return m.filterNodes(func(n format.Node) bool { return format.LayerMask(in.B).Has(n.Layer) })

	case OpFilterByEtymology:
		return m.filterNodes(func(n format.Node) bool { return n.Etymology == format.EtymologyOrigin(in.A) })

	case OpFilterByFlags:
		return m.filterNodes(func(n format.Node) bool { return n.Flags&format.NodeFlag(in.B) != 0 })

	case OpSort:
		return m.sortTop(SortCriterion(in.B))

	case OpLimit:
		top, err := m.pop()
		if err != nil {
			return err
		}
		top.Truncate(int(in.A))
		m.push(top)
		return nil

	case OpDeduplicate:
		// NodeSet already maintains uniqueness on Add, so the top of
		// stack is already deduplicated; this opcode exists so the
		// compiler has an explicit fusable marker per §4.4's algebraic
		// law (Deduplicate.Deduplicate ≡ Deduplicate).
		return nil

	case OpStoreReg:
		if in.A < 0 || int(in.A) >= registerCount {
			return ErrIndexFault
		}
		top, err := m.pop()
		if err != nil {
			return err
		}
		m.registers[in.A] = top
		return nil

	case OpLoadReg:
		if in.A < 0 || int(in.A) >= registerCount {
			return ErrIndexFault
		}
		m.push(m.registers[in.A])
		return nil

	default:
		return fmt.Errorf("%w: %d", ErrUnknownOpcode, in.Op)
	}
}

// mapEachNode pops a node-set, applies fn to every member node,
// unions the results into a fresh node-set, and pushes it.
func (m *Machine) mapEachNode(fn func(format.Node) ([]format.NodeID, error)) error {
	top, err := m.pop()
	if err != nil {
		return err
	}
	var out NodeSet
	for _, id := range top.Ids() {
		n, err := m.r.Node(id)
		if err != nil {
			continue // LookupMiss: this member contributes nothing
		}
		ids, err := fn(n)
		if err != nil {
			return err
		}
		for _, rid := range ids {
			out.Add(rid)
		}
	}
	m.push(out)
	return nil
}

// filterNodes pops a node-set and pushes the subset whose node record
// satisfies pred.
func (m *Machine) filterNodes(pred func(format.Node) bool) error {
	top, err := m.pop()
	if err != nil {
		return err
	}
	var out NodeSet
	for _, id := range top.Ids() {
		n, err := m.r.Node(id)
		if err != nil {
			continue
		}
		if pred(n) {
			out.Add(id)
		}
	}
	m.push(out)
	return nil
}

func (m *Machine) sortTop(criterion SortCriterion) error {
	top, err := m.pop()
	if err != nil {
		return err
	}
	ids := top.Ids()
	nodes := make([]format.Node, 0, len(ids))
	for _, id := range ids {
		n, err := m.r.Node(id)
		if err != nil {
			continue
		}
		nodes = append(nodes, n)
	}

	less := func(i, j int) bool {
		switch criterion {
		case SortByFrequency:
			fi, fj := nodes[i].FrequencyRank, nodes[j].FrequencyRank
			if fi == 0 {
				fi = ^uint32(0)
			}
			if fj == 0 {
				fj = ^uint32(0)
			}
			return fi < fj
		case SortByID:
			return nodes[i].ID < nodes[j].ID
		case SortByStrength:
			// Strength is a per-edge attribute, not per-node; when
			// sorting a bare node-set, falling back to id ordering
			// keeps the operation total and stable.
			return nodes[i].ID < nodes[j].ID
		default: // SortByDistance without a declared centre: stable no-op order
			return false
		}
	}

	insertionSortNodes(nodes, less)

	var out NodeSet
	for _, n := range nodes {
		out.Add(n.ID)
	}
	m.push(out)
	return nil
}

func insertionSortNodes(nodes []format.Node, less func(i, j int) bool) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}
