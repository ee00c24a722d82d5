// Package reader provides zero-copy, memory-mapped access to an
// opened .lingo file: it validates the header and every section
// against the file's byte size, then exposes typed accessors that
// decode records directly out of the mapping without copying it.
package reader

import (
	"errors"
	"fmt"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sys/unix"

	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/utils"
)

const (
	// defaultCacheBudgetBytes mirrors the Config default in the root
	// package; reader cannot import it without a cycle, so the value is
	// kept in sync by hand.
	defaultCacheBudgetBytes = 64 << 20

	minCoordCacheSize, maxCoordCacheSize = 256, 1 << 20
	minConnCacheSize, maxConnCacheSize   = 256, 1 << 18

	// Per-entry byte estimates used to turn a byte budget into an LRU
	// entry count: a coordinate cache entry is a NodeID key plus a
	// 12-byte Coordinate value and map overhead; a connection cache
	// entry is a NodeID key plus a slice of decoded Connection records,
	// estimated at an average fan-out of 8 edges per node.
	estimatedCoordEntryBytes = 48
	estimatedConnEntryBytes  = 8*format.ConnectionRecordSize + 48
)

// Reader is an opened, validated, memory-mapped .lingo file. It owns
// the mapping for its whole lifetime; Close unmaps and closes the
// underlying file descriptor. A Reader is safe for concurrent use by
// multiple goroutines: everything it exposes is read-only except the
// two LRU caches, which are internally synchronized.
type Reader struct {
	file *os.File
	data []byte // the full mmap'd file
	hdr  *format.Header

	stringTable format.StringTable

	idIndex         map[format.NodeID]int // record index by id; nil when ids are dense (identity)
	surfaceFormByID map[string]format.NodeID

	coordCache *lru.Cache[format.NodeID, format.Coordinate]
	connCache  *lru.Cache[format.NodeID, []format.Connection]

	checksum uint64 // identifies this file's data for query cache keys
}

// Open mmaps path with the default cache budget. See OpenWithCacheBudget.
func Open(path string) (*Reader, error) {
	return OpenWithCacheBudget(path, defaultCacheBudgetBytes)
}

// OpenWithCacheBudget mmaps path, validates its header and sections,
// and builds the derived lookup tables a Reader needs to answer
// queries. cacheBudgetBytes sizes the coordinate and connection LRU
// caches: each budget is split in two (one share per cache) and
// divided by that cache's estimated per-entry size, clamped to a
// sane floor and ceiling so a zero or tiny budget still caches
// something and a huge one doesn't pin an unbounded number of
// entries.
func OpenWithCacheBudget(path string, cacheBudgetBytes int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.WrapError("open failed", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, utils.WrapError("stat failed", err)
	}
	size := fi.Size()
	if size < int64(format.HeaderSize) {
		_ = f.Close()
		return nil, errors.New("file too small to be a .lingo database")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, utils.WrapError("mmap failed", err)
	}

	hdr, err := format.ReadHeader(roReader{data}, uint64(size))
	if err != nil {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, utils.WrapError("header validation failed", err)
	}

	r := &Reader{
		file: f,
		data: data,
		hdr:  hdr,
	}
	r.stringTable = format.NewStringTable(r.section(format.SectionStringTable))

	if err := r.validateStructure(); err != nil {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, utils.WrapError("structural validation failed", err)
	}

	r.buildIndices()

	perCacheBudget := cacheBudgetBytes / 2
	coordCacheSize := utils.CacheCapacityForBudget(perCacheBudget, estimatedCoordEntryBytes, minCoordCacheSize, maxCoordCacheSize)
	connCacheSize := utils.CacheCapacityForBudget(perCacheBudget, estimatedConnEntryBytes, minConnCacheSize, maxConnCacheSize)

	coordCache, _ := lru.New[format.NodeID, format.Coordinate](coordCacheSize)
	connCache, _ := lru.New[format.NodeID, []format.Connection](connCacheSize)
	r.coordCache = coordCache
	r.connCache = connCache

	r.checksum = fileChecksum(hdr)

	return r, nil
}

// roReader adapts a byte slice to io.ReaderAt so format.ReadHeader can
// validate against the mapping before the Reader trusts any offset in
// it.
type roReader struct{ data []byte }

func (r roReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(r.data)) {
		return 0, errors.New("offset out of range")
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("short read at offset %d", off)
	}
	return n, nil
}

// section returns the raw bytes of section id, or nil if it is
// declared empty.
func (r *Reader) section(id format.SectionID) []byte {
	s := r.hdr.Sections[id]
	if s.Size == 0 {
		return nil
	}
	return r.data[s.Offset : s.Offset+s.Size]
}

// validateStructure performs the O(sections + root) spot checks the
// open contract requires: node count agrees with section size, the
// octree root sits at section offset 0, and connection offsets named
// by node records stay within the connection section.
func (r *Reader) validateStructure() error {
	nodes := r.section(format.SectionNodes)
	if len(nodes)%int(r.hdr.NodeRecordWidth) != 0 {
		return fmt.Errorf("node section size %d is not a multiple of record width %d", len(nodes), r.hdr.NodeRecordWidth)
	}

	// The octree root is defined as index 0 of the octree-nodes
	// section, so the section's own declared offset already is the
	// root's address; nothing further to check there.

	connSize := uint64(len(r.section(format.SectionConnections)))
	count := r.NodeCount()
	for i := 0; i < count; i++ {
		n := r.nodeAt(i)
		end := uint64(n.ConnectionsOffset) + uint64(n.ConnectionsCount)
		if end*uint64(r.hdr.ConnectionRecordWidth) > connSize {
			return fmt.Errorf("node %d connections range exceeds connection section", n.ID)
		}
	}
	return nil
}

// buildIndices constructs the id→record-index map (skipped when ids
// are already dense 0..n-1) and the surface-form→id lookup used by
// Find.
func (r *Reader) buildIndices() {
	count := r.NodeCount()
	dense := true
	for i := 0; i < count; i++ {
		if int(r.nodeAt(i).ID) != i {
			dense = false
			break
		}
	}

	r.surfaceFormByID = make(map[string]format.NodeID, count)
	if !dense {
		r.idIndex = make(map[format.NodeID]int, count)
	}

	for i := 0; i < count; i++ {
		n := r.nodeAt(i)
		if !dense {
			r.idIndex[n.ID] = i
		}
		if s, err := r.stringTable.Slice(n.SurfaceFormOffset, n.SurfaceFormLength); err == nil {
			r.surfaceFormByID[s] = n.ID
		}
	}
}

// NodeCount returns the number of node records in the file.
func (r *Reader) NodeCount() int {
	return len(r.section(format.SectionNodes)) / int(r.hdr.NodeRecordWidth)
}

// nodeAt decodes the record at record index i (not node id).
func (r *Reader) nodeAt(i int) format.Node {
	nodes := r.section(format.SectionNodes)
	w := int(r.hdr.NodeRecordWidth)
	return format.DecodeNode(nodes[i*w : i*w+w])
}

func (r *Reader) recordIndex(id format.NodeID) (int, bool) {
	if r.idIndex == nil {
		i := int(id)
		if i < 0 || i >= r.NodeCount() {
			return 0, false
		}
		return i, true
	}
	i, ok := r.idIndex[id]
	return i, ok
}

// Node returns the decoded record for id.
func (r *Reader) Node(id format.NodeID) (format.Node, error) {
	i, ok := r.recordIndex(id)
	if !ok {
		return format.Node{}, fmt.Errorf("node %d: %w", id, ErrLookupMiss)
	}
	return r.nodeAt(i), nil
}

// SurfaceForm returns the UTF-8 spelling of a node.
func (r *Reader) SurfaceForm(n format.Node) (string, error) {
	return r.stringTable.Slice(n.SurfaceFormOffset, n.SurfaceFormLength)
}

// FindNodeBySurfaceForm looks up a node id by its exact, case-sensitive
// surface form.
func (r *Reader) FindNodeBySurfaceForm(s string) (format.NodeID, bool) {
	id, ok := r.surfaceFormByID[s]
	return id, ok
}

// Connections returns the decoded, strength-descending connection
// slice belonging to n, consulting (and populating) the connection
// cache.
func (r *Reader) Connections(n format.Node) ([]format.Connection, error) {
	if cached, ok := r.connCache.Get(n.ID); ok {
		return cached, nil
	}
	section := r.section(format.SectionConnections)
	w := int(r.hdr.ConnectionRecordWidth)
	start := int(n.ConnectionsOffset) * w
	end := start + int(n.ConnectionsCount)*w
	if end > len(section) {
		return nil, fmt.Errorf("node %d: connection range out of bounds", n.ID)
	}
	out := make([]format.Connection, n.ConnectionsCount)
	for i := range out {
		out[i] = format.DecodeConnection(section[start+i*w : start+(i+1)*w])
	}
	r.connCache.Add(n.ID, out)
	return out, nil
}

// VerticalMapping returns the decoded vertical index record for n.
func (r *Reader) VerticalMapping(n format.Node) (format.VerticalMapping, error) {
	section := r.section(format.SectionVerticalMappings)
	i, ok := r.recordIndex(n.ID)
	if !ok {
		return format.VerticalMapping{}, fmt.Errorf("node %d: %w", n.ID, ErrLookupMiss)
	}
	start := i * format.VerticalMappingSize
	end := start + format.VerticalMappingSize
	if end > len(section) {
		return format.VerticalMapping{}, fmt.Errorf("node %d: vertical mapping out of bounds", n.ID)
	}
	return format.DecodeVerticalMapping(section[start:end]), nil
}

// LayerConnectionsAt decodes count layer-connection records starting
// at offset in the layer-connections section.
func (r *Reader) LayerConnectionsAt(offset, count uint32) ([]format.LayerConnection, error) {
	section := r.section(format.SectionLayerConnections)
	start := int(offset) * format.LayerConnectionSize
	end := start + int(count)*format.LayerConnectionSize
	if end > len(section) {
		return nil, errors.New("layer-connection range out of bounds")
	}
	out := make([]format.LayerConnection, count)
	for i := range out {
		out[i] = format.DecodeLayerConnection(section[start+i*format.LayerConnectionSize : start+(i+1)*format.LayerConnectionSize])
	}
	return out, nil
}

// OctreeRoot returns the root octree node, which the format guarantees
// sits at offset 0 of the octree-nodes section.
func (r *Reader) OctreeRoot() (format.OctreeNode, error) {
	return r.octreeNodeAt(0)
}

func (r *Reader) octreeNodeAt(index uint32) (format.OctreeNode, error) {
	section := r.section(format.SectionOctreeNodes)
	w := format.OctreeNodeSize
	start := int(index) * w
	if start+w > len(section) {
		return format.OctreeNode{}, fmt.Errorf("octree index %d out of bounds", index)
	}
	return format.DecodeOctreeNode(section[start : start+w]), nil
}

// OctreeChild returns the child of node at octant index (0-7), or
// false if that octant has no child.
func (r *Reader) OctreeChild(node format.OctreeNode, octant int) (format.OctreeNode, bool) {
	if octant < 0 || octant >= len(node.Children) {
		return format.OctreeNode{}, false
	}
	childIdx := node.Children[octant]
	if childIdx == format.NoChild {
		return format.OctreeNode{}, false
	}
	child, err := r.octreeNodeAt(childIdx)
	if err != nil {
		return format.OctreeNode{}, false
	}
	return child, true
}

// LeafBucket returns the node ids stored in leaf's payload range.
func (r *Reader) LeafBucket(leaf format.OctreeNode) ([]format.NodeID, error) {
	section := r.section(format.SectionOctreeLeaves)
	start := int(leaf.LeafOffset) * 4
	end := start + int(leaf.LeafCount)*4
	if end > len(section) {
		return nil, errors.New("leaf bucket range out of bounds")
	}
	out := make([]format.NodeID, leaf.LeafCount)
	for i := range out {
		out[i] = format.NodeID(format.Endian.Uint32(section[start+i*4:]))
	}
	return out, nil
}

// Coordinate returns n's position, consulting the coordinate cache.
// Positions already live in the mapping with no decode cost beyond
// three float reads, so this cache mainly helps call sites that hash
// or compare coordinates repeatedly.
func (r *Reader) Coordinate(n format.Node) format.Coordinate {
	if c, ok := r.coordCache.Get(n.ID); ok {
		return c
	}
	r.coordCache.Add(n.ID, n.Position)
	return n.Position
}

// ClearCaches evicts every entry from both LRU caches. Subsequent
// lookups re-decode from the mapping.
func (r *Reader) ClearCaches() {
	r.coordCache.Purge()
	r.connCache.Purge()
}

// Checksum returns the value query cache keys are paired with: it
// changes whenever the underlying file's data sections change.
func (r *Reader) Checksum() uint64 {
	return r.checksum
}

// Close unmaps the file and closes its descriptor. Safe to call more
// than once.
func (r *Reader) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// fileChecksum folds every section checksum into a single value that
// identifies this file's data for the purposes of a query result
// cache key; two files with identical bytes produce the same value.
func fileChecksum(hdr *format.Header) uint64 {
	ids := make([]int, 0, len(hdr.Sections))
	for i := range hdr.Sections {
		ids = append(ids, i)
	}
	sort.Ints(ids)
	var acc uint64
	for _, i := range ids {
		acc = acc*1099511628211 ^ hdr.Sections[i].Checksum
	}
	return acc
}
