package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionEncodeDecodeRoundTrip(t *testing.T) {
	c := Connection{
		Target:    7,
		Strength:  0.91,
		Kind:      ConnHypernymy,
		Context:   ContextTechnical | ContextFormal,
		Transform: Coordinate{X: 0.1, Y: -0.2, Z: 0.3},
	}

	buf := make([]byte, ConnectionRecordSize)
	EncodeConnection(buf, c)
	got := DecodeConnection(buf)

	assert.Equal(t, c.Target, got.Target)
	assert.InDelta(t, c.Strength, got.Strength, 1.0/65535)
	assert.Equal(t, c.Kind, got.Kind)
	assert.Equal(t, c.Context, got.Context)
	assert.InDelta(t, c.Transform.X, got.Transform.X, 1e-6)
	assert.InDelta(t, c.Transform.Y, got.Transform.Y, 1e-6)
	assert.InDelta(t, c.Transform.Z, got.Transform.Z, 1e-6)
}

func TestOctreeNodeEncodeDecodeRoundTrip(t *testing.T) {
	o := NewOctreeNode(Coordinate{X: 0, Y: 0, Z: 0}, Coordinate{X: 0.5, Y: 0.5, Z: 0.5}, 2)
	o.Children[3] = 11
	o.LeafOffset = 5
	o.LeafCount = 2
	o.Flags = OctreeFlagLeaf

	buf := make([]byte, OctreeNodeSize)
	EncodeOctreeNode(buf, o)
	got := DecodeOctreeNode(buf)

	assert.Equal(t, o.Depth, got.Depth)
	assert.True(t, got.IsLeaf())
	assert.Equal(t, uint32(11), got.Children[3])
	assert.Equal(t, uint32(NoChild), got.Children[0])
	assert.Equal(t, o.LeafOffset, got.LeafOffset)
	assert.Equal(t, o.LeafCount, got.LeafCount)
	assert.True(t, got.Contains(Coordinate{X: 0.25, Y: 0.25, Z: 0.25}))
	assert.False(t, got.Contains(Coordinate{X: 0.9, Y: 0.9, Z: 0.9}))
}

func TestVerticalMappingEncodeDecodeRoundTrip(t *testing.T) {
	var vm VerticalMapping
	vm.Ancestors[LayerMorphemes].Offset = 12
	vm.Ancestors[LayerMorphemes].Count = 4
	vm.Descendants[LayerWords].Offset = 30
	vm.Descendants[LayerWords].Count = 2

	buf := make([]byte, VerticalMappingSize)
	EncodeVerticalMapping(buf, vm)
	got := DecodeVerticalMapping(buf)

	offset, count := got.AncestorsAt(LayerMorphemes)
	assert.Equal(t, uint32(12), offset)
	assert.Equal(t, uint32(4), count)

	offset, count = got.DescendantsAt(LayerWords)
	assert.Equal(t, uint32(30), offset)
	assert.Equal(t, uint32(2), count)

	offset, count = got.AncestorsAt(LayerDomains)
	assert.Zero(t, offset)
	assert.Zero(t, count)
}

func TestLayerConnectionEncodeDecodeRoundTrip(t *testing.T) {
	lc := LayerConnection{Target: 99, Confidence: 0.42}
	buf := make([]byte, LayerConnectionSize)
	EncodeLayerConnection(buf, lc)
	got := DecodeLayerConnection(buf)

	assert.Equal(t, lc.Target, got.Target)
	assert.InDelta(t, lc.Confidence, got.Confidence, 1.0/65535)
}

func TestStringTableSlice(t *testing.T) {
	st := NewStringTable([]byte("technology"))
	s, err := st.Slice(0, 4)
	assert.NoError(t, err)
	assert.Equal(t, "tech", s)

	_, err = st.Slice(5, 100)
	assert.Error(t, err)
}
