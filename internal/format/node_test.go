package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeEncodeDecodeRoundTrip(t *testing.T) {
	n := Node{
		ID:                42,
		Layer:             LayerWords,
		Etymology:         EtymologyGreek,
		Morpheme:          MorphemeNotApplicable,
		Flags:             FlagIsTerminal | FlagIsFrequent,
		Position:          Coordinate{X: 0.512, Y: 0.125, Z: 0.875},
		SurfaceFormOffset: 1024,
		SurfaceFormLength: 9,
		PhoneticSignature: 0xDEADBEEFCAFEBABE,
		ProductivityScore: 0.75,
		FrequencyRank:     1337,
		ChildrenOffset:    7,
		ChildrenCount:     3,
		ConnectionsOffset: 99,
		ConnectionsCount:  5,
		SpatialBucket:     256,
	}

	buf := make([]byte, NodeRecordSize)
	EncodeNode(buf, n)
	got := DecodeNode(buf)

	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, n.Layer, got.Layer)
	assert.Equal(t, n.Etymology, got.Etymology)
	assert.Equal(t, n.Flags, got.Flags)
	assert.InDelta(t, n.Position.X, got.Position.X, 1e-6)
	assert.InDelta(t, n.Position.Y, got.Position.Y, 1e-6)
	assert.InDelta(t, n.Position.Z, got.Position.Z, 1e-6)
	assert.Equal(t, n.SurfaceFormOffset, got.SurfaceFormOffset)
	assert.Equal(t, n.SurfaceFormLength, got.SurfaceFormLength)
	assert.Equal(t, n.PhoneticSignature, got.PhoneticSignature)
	assert.InDelta(t, n.ProductivityScore, got.ProductivityScore, 1.0/65535)
	assert.Equal(t, n.FrequencyRank, got.FrequencyRank)
	assert.Equal(t, n.ChildrenOffset, got.ChildrenOffset)
	assert.Equal(t, n.ConnectionsCount, got.ConnectionsCount)
	assert.Equal(t, n.SpatialBucket, got.SpatialBucket)
}

func TestNodeProductivityScoreClampsToUnitRange(t *testing.T) {
	buf := make([]byte, NodeRecordSize)
	EncodeNode(buf, Node{ProductivityScore: 1.5})
	assert.InDelta(t, 1.0, DecodeNode(buf).ProductivityScore, 1e-4)

	EncodeNode(buf, Node{ProductivityScore: -0.5})
	assert.InDelta(t, 0.0, DecodeNode(buf).ProductivityScore, 1e-4)
}

func TestLayerZBandsPartitionUnitCube(t *testing.T) {
	var prevMax float32
	for l := LayerLetters; l <= LayerDomains; l++ {
		min, max := l.ZBand()
		assert.Equal(t, prevMax, min)
		assert.Greater(t, max, min)
		prevMax = max
	}
	assert.Equal(t, float32(1.0), prevMax)
}

func TestLayerMask(t *testing.T) {
	var m LayerMask
	m = m.Set(LayerWords).Set(LayerPhrases)
	assert.True(t, m.Has(LayerWords))
	assert.True(t, m.Has(LayerPhrases))
	assert.False(t, m.Has(LayerLetters))
	assert.Equal(t, LayerMask(0x7F), AllLayers)
}
