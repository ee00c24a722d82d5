package builder

import (
	"errors"
	"fmt"
	"math"

	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/utils"
)

// NodeSpec is one node to place in the file, in the caller's chosen
// node order. The node's id is its index in Spec.Nodes.
type NodeSpec struct {
	SurfaceForm       string
	Layer             format.Layer
	Etymology         format.EtymologyOrigin
	Morpheme          format.MorphemeType
	Flags             format.NodeFlag
	Position          format.Coordinate
	PhoneticSignature uint64
	ProductivityScore float32
	FrequencyRank     uint32
}

// ConnectionSpec is one directed, typed, weighted edge between two
// node indices.
type ConnectionSpec struct {
	From, To  int
	Strength  float32
	Kind      format.ConnectionKind
	Context   format.ContextMask
	Transform format.Coordinate
}

// VerticalLinkSpec relates a node at a lower layer (Descendant) to a
// node at a higher layer (Ancestor), with a confidence score. The
// builder records it in both directions: as an ancestor entry on the
// descendant and as a descendant entry on the ancestor.
type VerticalLinkSpec struct {
	Descendant, Ancestor int
	Confidence           float32
}

// Spec is the full logical content of a .lingo file, in the shape the
// builder needs to lay out every section.
type Spec struct {
	Nodes         []NodeSpec
	Connections   []ConnectionSpec
	VerticalLinks []VerticalLinkSpec

	// LeafCapacity bounds how many nodes an octree leaf holds before
	// the builder subdivides it further. Zero uses DefaultLeafCapacity.
	LeafCapacity int
	// MaxDepth bounds octree subdivision depth, guarding against
	// infinite recursion when many nodes share a position. Zero uses
	// DefaultMaxDepth.
	MaxDepth int

	BuildTimestamp uint64
	LanguageTag    [8]byte
}

// DefaultLeafCapacity and DefaultMaxDepth are applied when a Spec
// leaves the corresponding field at zero.
const (
	DefaultLeafCapacity = 16
	DefaultMaxDepth     = 12
)

// Build validates spec and writes a complete .lingo file to path,
// truncating any existing file at that path.
func Build(path string, spec Spec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}
	if spec.LeafCapacity <= 0 {
		spec.LeafCapacity = DefaultLeafCapacity
	}
	if spec.MaxDepth <= 0 {
		spec.MaxDepth = DefaultMaxDepth
	}

	stringTable, surfaceRanges := buildStringTable(spec.Nodes)
	connSection, connRanges := buildConnections(spec)
	octNodes, leafBucket := buildOctree(spec)
	vertSection, layerConnSection := buildVertical(spec)

	nodeSectionSize, err := utils.SafeMultiply(uint64(len(spec.Nodes)), uint64(format.NodeRecordSize))
	if err != nil {
		return fmt.Errorf("node section: %w", err)
	}
	nodeSection := make([]byte, nodeSectionSize)
	for i, ns := range spec.Nodes {
		rec := format.Node{
			ID:                format.NodeID(i),
			Layer:             ns.Layer,
			Etymology:         ns.Etymology,
			Morpheme:          ns.Morpheme,
			Flags:             ns.Flags,
			Position:          clampCoordinate(ns.Position),
			SurfaceFormOffset: surfaceRanges[i].offset,
			SurfaceFormLength: surfaceRanges[i].length,
			PhoneticSignature: ns.PhoneticSignature,
			ProductivityScore: ns.ProductivityScore,
			FrequencyRank:     ns.FrequencyRank,
			ConnectionsOffset: connRanges[i].offset,
			ConnectionsCount:  connRanges[i].count,
		}
		format.EncodeNode(nodeSection[i*format.NodeRecordSize:], rec)
	}

	octreeSection := make([]byte, len(octNodes)*format.OctreeNodeSize)
	for i, o := range octNodes {
		format.EncodeOctreeNode(octreeSection[i*format.OctreeNodeSize:], o)
	}

	leafSection := make([]byte, len(leafBucket)*4)
	for i, id := range leafBucket {
		format.Endian.PutUint32(leafSection[i*4:], uint32(id))
	}

	fw, err := NewFileWriter(path, ModeTruncate, format.HeaderSize)
	if err != nil {
		return err
	}

	hdr := &format.Header{
		VersionMajor:          format.SupportedMajor,
		VersionMinor:          0,
		Flags:                 0,
		ChecksumAlgo:          format.ChecksumXXHash64,
		NodeRecordWidth:       format.NodeRecordSize,
		ConnectionRecordWidth: format.ConnectionRecordSize,
		OctreeNodeWidth:       format.OctreeNodeSize,
		BuildTimestamp:        spec.BuildTimestamp,
		LanguageTag:           spec.LanguageTag,
	}

	sections := []struct {
		id   format.SectionID
		data []byte
	}{
		{format.SectionStringTable, stringTable},
		{format.SectionNodes, nodeSection},
		{format.SectionConnections, connSection},
		{format.SectionOctreeNodes, octreeSection},
		{format.SectionVerticalMappings, vertSection},
		{format.SectionLayerConnections, layerConnSection},
		{format.SectionOctreeLeaves, leafSection},
	}

	for _, s := range sections {
		if len(s.data) == 0 {
			continue
		}
		addr, err := fw.Allocate(uint64(len(s.data)))
		if err != nil {
			_ = fw.Close()
			return err
		}
		if err := fw.WriteAtAddress(s.data, addr); err != nil {
			_ = fw.Close()
			return err
		}
		hdr.SetSection(s.id, addr, s.data)
	}

	hdr.TotalSize = fw.EndOfFile()
	if err := fw.WriteAtAddress(format.WriteHeader(hdr), 0); err != nil {
		_ = fw.Close()
		return err
	}

	if err := fw.Flush(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func validateSpec(spec Spec) error {
	if len(spec.Nodes) == 0 {
		return errors.New("spec has no nodes")
	}
	n := len(spec.Nodes)
	for i, ns := range spec.Nodes {
		if !ns.Layer.Valid() {
			return fmt.Errorf("node %d: invalid layer %d", i, ns.Layer)
		}
		if !ns.Etymology.Valid() {
			return fmt.Errorf("node %d: invalid etymology %d", i, ns.Etymology)
		}
		if !ns.Layer.ZBandContains(ns.Position.Z) {
			lo, hi := ns.Layer.ZBand()
			return fmt.Errorf("node %d: Z=%g outside %s band [%g, %g]", i, ns.Position.Z, ns.Layer, lo, hi)
		}
	}
	for i, c := range spec.Connections {
		if c.From < 0 || c.From >= n || c.To < 0 || c.To >= n {
			return fmt.Errorf("connection %d: node index out of range", i)
		}
		if !c.Kind.Valid() {
			return fmt.Errorf("connection %d: invalid kind %d", i, c.Kind)
		}
	}
	for i, l := range spec.VerticalLinks {
		if l.Descendant < 0 || l.Descendant >= n || l.Ancestor < 0 || l.Ancestor >= n {
			return fmt.Errorf("vertical link %d: node index out of range", i)
		}
	}
	return nil
}

type byteRange struct {
	offset, length uint32
}

func buildStringTable(nodes []NodeSpec) ([]byte, []byteRange) {
	var buf []byte
	ranges := make([]byteRange, len(nodes))
	for i, n := range nodes {
		ranges[i] = byteRange{offset: uint32(len(buf)), length: uint32(len(n.SurfaceForm))}
		buf = append(buf, n.SurfaceForm...)
	}
	return buf, ranges
}

type countRange struct {
	offset, count uint32
}

// buildConnections groups outgoing edges by source node, sorts each
// node's group strength-descending (the invariant the index package
// relies on for Nth/OfKind), and concatenates them into one section.
func buildConnections(spec Spec) ([]byte, []countRange) {
	n := len(spec.Nodes)
	byNode := make([][]ConnectionSpec, n)
	for _, c := range spec.Connections {
		byNode[c.From] = append(byNode[c.From], c)
	}

	ranges := make([]countRange, n)
	var buf []byte
	for i, edges := range byNode {
		insertionSortByStrengthDesc(edges)
		ranges[i] = countRange{offset: uint32(len(buf) / format.ConnectionRecordSize), count: uint32(len(edges))}
		for _, e := range edges {
			rec := make([]byte, format.ConnectionRecordSize)
			format.EncodeConnection(rec, format.Connection{
				Target:    format.NodeID(e.To),
				Strength:  e.Strength,
				Kind:      e.Kind,
				Context:   e.Context,
				Transform: e.Transform,
			})
			buf = append(buf, rec...)
		}
	}
	return buf, ranges
}

func insertionSortByStrengthDesc(edges []ConnectionSpec) {
	for i := 1; i < len(edges); i++ {
		j := i
		for j > 0 && edges[j-1].Strength < edges[j].Strength {
			edges[j-1], edges[j] = edges[j], edges[j-1]
			j--
		}
	}
}

// buildVertical assembles the per-node 7-slot ancestor/descendant
// ranges and the flat layer-connections section they point into.
func buildVertical(spec Spec) ([]byte, []byte) {
	n := len(spec.Nodes)
	type slotKey struct {
		node  int
		layer format.Layer
	}
	ancestorsByLayer := make(map[slotKey][]format.LayerConnection)
	descendantsByLayer := make(map[slotKey][]format.LayerConnection)

	for _, l := range spec.VerticalLinks {
		descLayer := spec.Nodes[l.Descendant].Layer
		ancLayer := spec.Nodes[l.Ancestor].Layer
		ancestorsByLayer[slotKey{l.Descendant, ancLayer}] = append(
			ancestorsByLayer[slotKey{l.Descendant, ancLayer}],
			format.LayerConnection{Target: format.NodeID(l.Ancestor), Confidence: l.Confidence},
		)
		descendantsByLayer[slotKey{l.Ancestor, descLayer}] = append(
			descendantsByLayer[slotKey{l.Ancestor, descLayer}],
			format.LayerConnection{Target: format.NodeID(l.Descendant), Confidence: l.Confidence},
		)
	}

	var layerConnBuf []byte
	vertSection := make([]byte, n*format.VerticalMappingSize)

	appendEntries := func(entries []format.LayerConnection) (offset, count uint32) {
		offset = uint32(len(layerConnBuf) / format.LayerConnectionSize)
		count = uint32(len(entries))
		for _, e := range entries {
			rec := make([]byte, format.LayerConnectionSize)
			format.EncodeLayerConnection(rec, e)
			layerConnBuf = append(layerConnBuf, rec...)
		}
		return offset, count
	}

	for i := 0; i < n; i++ {
		var vm format.VerticalMapping
		for layer := format.LayerLetters; int(layer) < 7; layer++ {
			if entries, ok := ancestorsByLayer[slotKey{i, layer}]; ok {
				off, cnt := appendEntries(entries)
				vm.Ancestors[layer].Offset = off
				vm.Ancestors[layer].Count = cnt
			}
			if entries, ok := descendantsByLayer[slotKey{i, layer}]; ok {
				off, cnt := appendEntries(entries)
				vm.Descendants[layer].Offset = off
				vm.Descendants[layer].Count = cnt
			}
		}
		format.EncodeVerticalMapping(vertSection[i*format.VerticalMappingSize:], vm)
	}

	return vertSection, layerConnBuf
}

type pointRef struct {
	id  format.NodeID
	pos format.Coordinate
}

// buildOctree recursively partitions every node's position into an
// octree over the unit cube, returning the flat node-record array (in
// pre-order, so a parent always appears before its children) and the
// concatenated leaf-bucket id array every leaf's LeafOffset/LeafCount
// indexes into.
func buildOctree(spec Spec) ([]format.OctreeNode, []format.NodeID) {
	points := make([]pointRef, len(spec.Nodes))
	for i, n := range spec.Nodes {
		points[i] = pointRef{id: format.NodeID(i), pos: clampCoordinate(n.Position)}
	}

	b := &octreeBuilder{leafCapacity: spec.LeafCapacity, maxDepth: spec.MaxDepth}
	min := format.Coordinate{X: 0, Y: 0, Z: 0}
	max := format.Coordinate{X: 1, Y: 1, Z: 1}
	b.insert(points, min, max, 0)
	return b.nodes, b.leaves
}

type octreeBuilder struct {
	nodes        []format.OctreeNode
	leaves       []format.NodeID
	leafCapacity int
	maxDepth     int
}

// insert appends the subtree rooted at [min, max] holding points,
// returning its index in b.nodes. Children are always placed after
// their parent, so an index recorded in a Children slot or LeafOffset
// is stable once written.
func (b *octreeBuilder) insert(points []pointRef, min, max format.Coordinate, depth int) uint32 {
	idx := uint32(len(b.nodes))
	b.nodes = append(b.nodes, format.NewOctreeNode(min, max, uint8(depth)))

	if len(points) <= b.leafCapacity || depth >= b.maxDepth {
		offset := uint32(len(b.leaves))
		for _, p := range points {
			b.leaves = append(b.leaves, p.id)
		}
		b.nodes[idx].Flags |= format.OctreeFlagLeaf
		b.nodes[idx].LeafOffset = offset
		b.nodes[idx].LeafCount = uint32(len(points))
		return idx
	}

	mid := format.Coordinate{
		X: (min.X + max.X) / 2,
		Y: (min.Y + max.Y) / 2,
		Z: (min.Z + max.Z) / 2,
	}

	var buckets [8][]pointRef
	for _, p := range points {
		buckets[octantOf(p.pos, mid)] = append(buckets[octantOf(p.pos, mid)], p)
	}

	for oct := 0; oct < 8; oct++ {
		if len(buckets[oct]) == 0 {
			continue
		}
		cmin, cmax := octantBounds(min, max, mid, oct)
		childIdx := b.insert(buckets[oct], cmin, cmax, depth+1)
		b.nodes[idx].Children[oct] = childIdx
	}
	return idx
}

// octantOf returns which of the 8 octants p falls in relative to mid,
// one bit per axis: bit0=X, bit1=Y, bit2=Z, set when p is on the
// high side of mid.
func octantOf(p, mid format.Coordinate) int {
	oct := 0
	if p.X >= mid.X {
		oct |= 1
	}
	if p.Y >= mid.Y {
		oct |= 2
	}
	if p.Z >= mid.Z {
		oct |= 4
	}
	return oct
}

// octantBounds returns the sub-box of [min, max] for octant, split at
// mid on each axis.
func octantBounds(min, max, mid format.Coordinate, octant int) (format.Coordinate, format.Coordinate) {
	lo, hi := min, max
	if octant&1 != 0 {
		lo.X = mid.X
	} else {
		hi.X = mid.X
	}
	if octant&2 != 0 {
		lo.Y = mid.Y
	} else {
		hi.Y = mid.Y
	}
	if octant&4 != 0 {
		lo.Z = mid.Z
	} else {
		hi.Z = mid.Z
	}
	return lo, hi
}

// clampCoordinate guards against a caller-supplied position slightly
// outside [0,1] from floating point drift upstream; the reader's own
// Contains check would otherwise silently drop such a node from every
// query.
func clampCoordinate(c format.Coordinate) format.Coordinate {
	return format.Coordinate{X: clampAxis(c.X), Y: clampAxis(c.Y), Z: clampAxis(c.Z)}
}

func clampAxis(v float32) float32 {
	return float32(math.Max(0, math.Min(1, float64(v))))
}
