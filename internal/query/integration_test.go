package query

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/reader"
	"github.com/RobAntunes/lingodb/internal/vm"
)

// buildScenarioFile reproduces the seeded file named in §8's end-to-end
// scenarios: a Morpheme "tech" with a Derivation edge to "technology",
// plus "technical" and "technique" reachable only through tech's
// Words-layer vertical mapping (which also lists "technology"), and
// "polytechnic", which nothing links to.
func buildScenarioFile(t *testing.T) *reader.Reader {
	t.Helper()

	words := []string{"tech", "technology", "technical", "technique", "polytechnic"}
	var stringTable []byte
	offsets := make([]uint32, len(words))
	lengths := make([]uint32, len(words))
	for i, w := range words {
		offsets[i] = uint32(len(stringTable))
		lengths[i] = uint32(len(w))
		stringTable = append(stringTable, w...)
	}

	nodes := []format.Node{
		{ // 0: tech
			ID: 0, Layer: format.LayerMorphemes, Morpheme: format.MorphemeRoot,
			Etymology:         format.EtymologyGreek,
			Position:          format.Coordinate{X: 0.80, Y: 0.75, Z: 0.375},
			SurfaceFormOffset: offsets[0], SurfaceFormLength: lengths[0],
			ConnectionsOffset: 0, ConnectionsCount: 1,
		},
		{ // 1: technology
			ID: 1, Layer: format.LayerWords, Morpheme: format.MorphemeNotApplicable,
			Etymology: format.EtymologyGreek, FrequencyRank: 10,
			Position:          format.Coordinate{X: 0.82, Y: 0.75, Z: 0.55},
			SurfaceFormOffset: offsets[1], SurfaceFormLength: lengths[1],
		},
		{ // 2: technical
			ID: 2, Layer: format.LayerWords, Morpheme: format.MorphemeNotApplicable,
			Etymology: format.EtymologyGreek, FrequencyRank: 5,
			Position:          format.Coordinate{X: 0.81, Y: 0.76, Z: 0.55},
			SurfaceFormOffset: offsets[2], SurfaceFormLength: lengths[2],
		},
		{ // 3: technique
			ID: 3, Layer: format.LayerWords, Morpheme: format.MorphemeNotApplicable,
			Etymology: format.EtymologyFrench, FrequencyRank: 20,
			Position:          format.Coordinate{X: 0.79, Y: 0.74, Z: 0.55},
			SurfaceFormOffset: offsets[3], SurfaceFormLength: lengths[3],
		},
		{ // 4: polytechnic
			ID: 4, Layer: format.LayerWords, Morpheme: format.MorphemeNotApplicable,
			Etymology: format.EtymologyGreek, FrequencyRank: 1,
			Position:          format.Coordinate{X: 0.20, Y: 0.20, Z: 0.55},
			SurfaceFormOffset: offsets[4], SurfaceFormLength: lengths[4],
		},
	}

	connections := []format.Connection{
		{Target: 1, Strength: 0.92, Kind: format.ConnDerivation},
	}

	layerConns := []format.LayerConnection{
		{Target: 1, Confidence: 0.9},
		{Target: 2, Confidence: 0.8},
		{Target: 3, Confidence: 0.7},
	}

	var vms [5]format.VerticalMapping
	vms[0].Ancestors[format.LayerWords].Offset = 0
	vms[0].Ancestors[format.LayerWords].Count = 3

	nodeBuf := make([]byte, len(nodes)*format.NodeRecordSize)
	for i, n := range nodes {
		format.EncodeNode(nodeBuf[i*format.NodeRecordSize:], n)
	}
	connBuf := make([]byte, len(connections)*format.ConnectionRecordSize)
	for i, c := range connections {
		format.EncodeConnection(connBuf[i*format.ConnectionRecordSize:], c)
	}
	lcBuf := make([]byte, len(layerConns)*format.LayerConnectionSize)
	for i, lc := range layerConns {
		format.EncodeLayerConnection(lcBuf[i*format.LayerConnectionSize:], lc)
	}
	vmBuf := make([]byte, len(nodes)*format.VerticalMappingSize)
	for i, vmap := range vms {
		format.EncodeVerticalMapping(vmBuf[i*format.VerticalMappingSize:], vmap)
	}

	// A single leaf holding every node keeps the spatial fixture simple;
	// SimilarTo/SpatialNeighbors correctness is covered in the index
	// package, not re-derived here.
	root := format.NewOctreeNode(format.Coordinate{}, format.Coordinate{X: 1, Y: 1, Z: 1}, 0)
	root.Flags = format.OctreeFlagLeaf
	root.LeafOffset, root.LeafCount = 0, uint32(len(nodes))
	octreeBuf := make([]byte, format.OctreeNodeSize)
	format.EncodeOctreeNode(octreeBuf, root)

	leafBucket := make([]byte, len(nodes)*4)
	for i, n := range nodes {
		format.Endian.PutUint32(leafBucket[i*4:], uint32(n.ID))
	}

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
	h.SetSection(format.SectionLayerConnections, offset, lcBuf)
	offset += uint64(len(lcBuf))
	h.SetSection(format.SectionOctreeLeaves, offset, leafBucket)
	offset += uint64(len(leafBucket))
	h.SetSection(format.SectionCacheHints, offset, nil)
	h.TotalSize = offset

	path := filepath.Join(t.TempDir(), "scenario.lingo")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, chunk := range [][]byte{format.WriteHeader(h), stringTable, nodeBuf, connBuf, octreeBuf, vmBuf, lcBuf, leafBucket} {
		_, err := f.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, f.Sync())

	r, err := reader.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestScenarioLayerUpThenLimit(t *testing.T) {
	r := buildScenarioFile(t)
	m := vm.NewMachine(r)

	steps := must(t, New().Find("tech").LayerUp(1).Limit(3))
	cq, err := Compile(steps, Balanced, r.NodeCount(), r.Checksum())
	require.NoError(t, err)

	result, err := m.Run(cq.Program, cq.Constants, time.Time{})
	require.NoError(t, err)
	require.Equal(t, []format.NodeID{1, 2, 3}, result.Ids())
}

func TestScenarioFollowConnectionOnMissingNodeIsEmpty(t *testing.T) {
	r := buildScenarioFile(t)
	m := vm.NewMachine(r)

	steps := must(t, New().Find("viral").FollowConnection(0))
	cq, err := Compile(steps, Balanced, r.NodeCount(), r.Checksum())
	require.NoError(t, err)

	result, err := m.Run(cq.Program, cq.Constants, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 0, result.Len())
}

func TestScenarioFilterByEtymologySortByFrequencyLimit(t *testing.T) {
	r := buildScenarioFile(t)
	m := vm.NewMachine(r)

	steps := must(t, New().
		Find("tech").
		LayerUp(1).
		FilterByEtymology(format.EtymologyGreek).
		Sort(vm.SortByFrequency).
		Limit(5))
	cq, err := Compile(steps, Balanced, r.NodeCount(), r.Checksum())
	require.NoError(t, err)

	result, err := m.Run(cq.Program, cq.Constants, time.Time{})
	require.NoError(t, err)
	// 1 (freq 10), 2 (freq 5); "technique" is French and excluded.
	require.Equal(t, []format.NodeID{2, 1}, result.Ids())
}
