package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RobAntunes/lingodb/internal/format"
)

// buildTestFile assembles a minimal, valid .lingo file by hand: two
// nodes ("tech" at Morphemes, "technology" at Words), one Derivation
// connection between them, a single-leaf octree covering the whole
// cube, and an empty vertical-mapping/layer-connection pair. It
// exercises the same section layout the builder package produces,
// without depending on it.
func buildTestFile(t *testing.T) string {
	t.Helper()

	stringTable := []byte("techtechnology")
	// "tech" at [0,4), "technology" at [4,14)

	nodes := []format.Node{
		{
			ID:                0,
			Layer:             format.LayerMorphemes,
			Morpheme:          format.MorphemeRoot,
			Position:          format.Coordinate{X: 0.80, Y: 0.75, Z: 0.375},
			SurfaceFormOffset: 0,
			SurfaceFormLength: 4,
			ConnectionsOffset: 0,
			ConnectionsCount:  1,
			SpatialBucket:     0,
		},
		{
			ID:                1,
			Layer:             format.LayerWords,
			Morpheme:          format.MorphemeNotApplicable,
			Position:          format.Coordinate{X: 0.80, Y: 0.75, Z: 0.55},
			SurfaceFormOffset: 4,
			SurfaceFormLength: 10,
			SpatialBucket:     0,
		},
	}

	connections := []format.Connection{
		{Target: 1, Strength: 0.92, Kind: format.ConnDerivation},
	}

	nodeBuf := make([]byte, len(nodes)*format.NodeRecordSize)
	for i, n := range nodes {
		format.EncodeNode(nodeBuf[i*format.NodeRecordSize:], n)
	}

	connBuf := make([]byte, len(connections)*format.ConnectionRecordSize)
	for i, c := range connections {
		format.EncodeConnection(connBuf[i*format.ConnectionRecordSize:], c)
	}

	root := format.NewOctreeNode(format.Coordinate{}, format.Coordinate{X: 1, Y: 1, Z: 1}, 0)
	root.Flags = format.OctreeFlagLeaf
	root.LeafOffset = 0
	root.LeafCount = uint32(len(nodes))
	octreeBuf := make([]byte, format.OctreeNodeSize)
	format.EncodeOctreeNode(octreeBuf, root)

	leafBuf := make([]byte, len(nodes)*4)
	for i, n := range nodes {
		format.Endian.PutUint32(leafBuf[i*4:], uint32(n.ID))
	}

	vmBuf := make([]byte, len(nodes)*format.VerticalMappingSize) // all zero: no vertical links recorded

	h := &format.Header{
		VersionMajor:          format.SupportedMajor,
		ChecksumAlgo:          format.ChecksumXXHash64,
		NodeRecordWidth:       format.NodeRecordSize,
		ConnectionRecordWidth: format.ConnectionRecordSize,
		OctreeNodeWidth:       format.OctreeNodeSize,
	}

	offset := uint64(format.HeaderSize)
	h.SetSection(format.SectionStringTable, offset, stringTable)
	offset += uint64(len(stringTable))
	h.SetSection(format.SectionNodes, offset, nodeBuf)
	offset += uint64(len(nodeBuf))
	h.SetSection(format.SectionConnections, offset, connBuf)
	offset += uint64(len(connBuf))
	h.SetSection(format.SectionOctreeNodes, offset, octreeBuf)
	offset += uint64(len(octreeBuf))
	h.SetSection(format.SectionVerticalMappings, offset, vmBuf)
	offset += uint64(len(vmBuf))
	h.SetSection(format.SectionLayerConnections, offset, nil)
	h.SetSection(format.SectionOctreeLeaves, offset, leafBuf)
	offset += uint64(len(leafBuf))
	h.SetSection(format.SectionCacheHints, offset, nil)
	h.TotalSize = offset

	headerBuf := format.WriteHeader(h)

	path := filepath.Join(t.TempDir(), "test.lingo")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for _, chunk := range [][]byte{headerBuf, stringTable, nodeBuf, connBuf, octreeBuf, vmBuf, leafBuf} {
		_, err := f.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, f.Sync())

	return path
}

func TestOpenAndAccessors(t *testing.T) {
	path := buildTestFile(t)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 2, r.NodeCount())

	tech, err := r.Node(0)
	require.NoError(t, err)
	form, err := r.SurfaceForm(tech)
	require.NoError(t, err)
	require.Equal(t, "tech", form)

	id, ok := r.FindNodeBySurfaceForm("technology")
	require.True(t, ok)
	require.EqualValues(t, 1, id)

	conns, err := r.Connections(tech)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	require.EqualValues(t, 1, conns[0].Target)
	require.Equal(t, format.ConnDerivation, conns[0].Kind)

	root, err := r.OctreeRoot()
	require.NoError(t, err)
	require.True(t, root.IsLeaf())

	bucket, err := r.LeafBucket(root)
	require.NoError(t, err)
	require.ElementsMatch(t, []format.NodeID{0, 1}, bucket)
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	path := buildTestFile(t)
	full, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, full[:len(full)-100], 0o644))

	_, err = Open(path)
	require.Error(t, err)
}

func TestOpenRejectsCorruptSection(t *testing.T) {
	path := buildTestFile(t)
	full, err := os.ReadFile(path)
	require.NoError(t, err)
	full[format.HeaderSize] ^= 0xFF // corrupt a byte inside the string table
	require.NoError(t, os.WriteFile(path, full, 0o644))

	_, err = Open(path)
	require.Error(t, err)
}

func TestClearCaches(t *testing.T) {
	path := buildTestFile(t)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	n, _ := r.Node(0)
	_, _ = r.Connections(n)
	r.ClearCaches() // should not panic, and caches should be empty afterward
}
