package format

import "math"

// OctreeNodeSize is the on-disk width of one packed octree node
// record.
const OctreeNodeSize = 68

const (
	octOffBoundsMin  = 0
	octOffBoundsMax  = 12
	octOffChildren   = 24
	octChildSlotSize = 4
	octChildCount    = 8
	octOffLeafOffset = octOffChildren + octChildCount*octChildSlotSize // 56
	octOffLeafCount  = octOffLeafOffset + 4                            // 60
	octOffDepth      = octOffLeafCount + 4                             // 64
	octOffFlags      = octOffDepth + 1                                 // 65
)

// NoChild is the sentinel child index meaning "this octant has no
// child node" in an OctreeNode.Children slot.
const NoChild = math.MaxUint32

// OctreeNodeFlag is one bit of an octree node's flag byte.
type OctreeNodeFlag uint8

const (
	// OctreeFlagLeaf marks a node with no children; its
	// LeafOffset/LeafCount index directly into the octree-leaves
	// section instead of Children.
	OctreeFlagLeaf OctreeNodeFlag = 1 << iota
)

// OctreeNode is the decoded form of one packed octree node record: an
// axis-aligned bounding box, up to eight child indices (one per
// octant), and, for leaves, the bucket of node ids it contains.
type OctreeNode struct {
	BoundsMin  Coordinate
	BoundsMax  Coordinate
	Children   [octChildCount]uint32 // NoChild where absent
	LeafOffset uint32                // index into the octree-leaves section
	LeafCount  uint32
	Depth      uint8
	Flags      OctreeNodeFlag
}

// IsLeaf reports whether this node has no children.
func (o OctreeNode) IsLeaf() bool {
	return o.Flags&OctreeFlagLeaf != 0
}

// Contains reports whether p falls within this node's bounding box,
// inclusive of both BoundsMin and BoundsMax on every axis, so a point
// on a shared face is contained by both neighbouring boxes.
func (o OctreeNode) Contains(p Coordinate) bool {
	return p.X >= o.BoundsMin.X && p.X <= o.BoundsMax.X &&
		p.Y >= o.BoundsMin.Y && p.Y <= o.BoundsMax.Y &&
		p.Z >= o.BoundsMin.Z && p.Z <= o.BoundsMax.Z
}

// DecodeOctreeNode reads one packed octree node record from buf, which
// must be at least OctreeNodeSize bytes.
func DecodeOctreeNode(buf []byte) OctreeNode {
	var o OctreeNode
	o.BoundsMin.X = decodeFloat32(buf[octOffBoundsMin:])
	o.BoundsMin.Y = decodeFloat32(buf[octOffBoundsMin+4:])
	o.BoundsMin.Z = decodeFloat32(buf[octOffBoundsMin+8:])
	o.BoundsMax.X = decodeFloat32(buf[octOffBoundsMax:])
	o.BoundsMax.Y = decodeFloat32(buf[octOffBoundsMax+4:])
	o.BoundsMax.Z = decodeFloat32(buf[octOffBoundsMax+8:])
	for i := 0; i < octChildCount; i++ {
		base := octOffChildren + i*octChildSlotSize
		o.Children[i] = Endian.Uint32(buf[base:])
	}
	o.LeafOffset = Endian.Uint32(buf[octOffLeafOffset:])
	o.LeafCount = Endian.Uint32(buf[octOffLeafCount:])
	o.Depth = buf[octOffDepth]
	o.Flags = OctreeNodeFlag(buf[octOffFlags])
	return o
}

// EncodeOctreeNode writes o into buf, which must be at least
// OctreeNodeSize bytes.
func EncodeOctreeNode(buf []byte, o OctreeNode) {
	encodeFloat32(buf[octOffBoundsMin:], o.BoundsMin.X)
	encodeFloat32(buf[octOffBoundsMin+4:], o.BoundsMin.Y)
	encodeFloat32(buf[octOffBoundsMin+8:], o.BoundsMin.Z)
	encodeFloat32(buf[octOffBoundsMax:], o.BoundsMax.X)
	encodeFloat32(buf[octOffBoundsMax+4:], o.BoundsMax.Y)
	encodeFloat32(buf[octOffBoundsMax+8:], o.BoundsMax.Z)
	for i := 0; i < octChildCount; i++ {
		base := octOffChildren + i*octChildSlotSize
		Endian.PutUint32(buf[base:], o.Children[i])
	}
	Endian.PutUint32(buf[octOffLeafOffset:], o.LeafOffset)
	Endian.PutUint32(buf[octOffLeafCount:], o.LeafCount)
	buf[octOffDepth] = o.Depth
	buf[octOffFlags] = byte(o.Flags)
}

// NewOctreeNode returns an OctreeNode with every child slot set to
// NoChild, ready to have children or a leaf bucket assigned.
func NewOctreeNode(min, max Coordinate, depth uint8) OctreeNode {
	o := OctreeNode{BoundsMin: min, BoundsMax: max, Depth: depth}
	for i := range o.Children {
		o.Children[i] = NoChild
	}
	return o
}
