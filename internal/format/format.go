// Package format defines the on-disk layout of a .lingo database file:
// the fixed header, the section directory, and the packed record codecs
// for nodes, connections, octree nodes, and vertical mappings. It has no
// knowledge of mmap, queries, or the VM — it only reads and writes bytes
// at declared offsets using header-declared widths.
package format

import (
	"encoding/binary"

	"github.com/RobAntunes/lingodb/internal/utils"
)

// Signature is the fixed 8-byte magic at the start of every .lingo file.
const Signature = "LINGO1.0"

// Supported major version. A reader refuses to open a file whose major
// version differs from this; newer minor versions are accepted with
// unrecognised non-strict feature flags ignored.
const SupportedMajor = 1

// ChecksumAlgorithm identifies the hash used for section and header
// checksums. Only algorithm 0 is implemented.
type ChecksumAlgorithm uint8

const (
	// ChecksumXXHash64 uses github.com/cespare/xxhash/v2. The format
	// declares this slot as "xxhash3" (spec); no xxh3 implementation
	// appears anywhere in the reference corpus this library was built
	// against, so xxhash64 occupies algorithm value 0 instead — see
	// DESIGN.md.
	ChecksumXXHash64 ChecksumAlgorithm = 0
)

// SectionID indexes the eight declared sections, in file order.
type SectionID int

const (
	SectionStringTable SectionID = iota
	SectionNodes
	SectionConnections
	SectionOctreeNodes
	SectionVerticalMappings
	SectionLayerConnections
	SectionOctreeLeaves
	SectionCacheHints
	sectionCount
)

// Endian is the byte order for every integer in a .lingo file.
var Endian = binary.LittleEndian

// FeatureFlags is a bitfield of optional format features. The high
// byte is reserved for "strict" flags: a reader that does not
// recognise a set strict flag must refuse to open the file.
type FeatureFlags uint32

const (
	// FlagCacheHints indicates the optional cache-hint section is
	// populated and should be consulted by the result cache.
	FlagCacheHints FeatureFlags = 1 << 0

	// strictFlagMask marks bits 24-31 as requiring reader support.
	strictFlagMask FeatureFlags = 0xFF000000
)

// UnsupportedStrictFlags returns the subset of flags this reader does
// not know how to honour, restricted to the strict range.
func UnsupportedStrictFlags(flags FeatureFlags) FeatureFlags {
	const knownStrict FeatureFlags = 0 // no strict flags defined yet
	return flags & strictFlagMask &^ knownStrict
}

// wrapf is a small alias kept for readability at call sites that want
// the teacher's WrapError-with-context idiom without importing utils
// by name twice.
func wrapf(context string, cause error) error {
	return utils.WrapError(context, cause)
}
