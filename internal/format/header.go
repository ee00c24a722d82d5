package format

import (
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/RobAntunes/lingodb/internal/utils"
)

// Sentinel errors for the open-time failures spec §7 classifies as
// format problems (bad magic, unsupported version, an unsupported
// strict feature flag) as opposed to integrity problems (a checksum
// or bounds violation on an otherwise well-formed header). Callers use
// errors.Is against these rather than matching on message text.
var (
	ErrBadSignature           = errors.New("invalid lingodb signature")
	ErrUnsupportedVersion     = errors.New("unsupported major version")
	ErrUnsupportedStrictFlags = errors.New("file requires unsupported strict features")
	ErrUnsupportedChecksum    = errors.New("unsupported checksum algorithm")
)

// sectionEntry is one (offset, size, checksum) triple in the section
// directory, in the fixed file order declared by SectionID.
type sectionEntry struct {
	Offset   uint64
	Size     uint64
	Checksum uint64
}

// Header is the decoded fixed header of a .lingo file: the section
// directory plus the record widths and metadata needed to interpret
// every other section. It holds no data of its own beyond what was on
// disk at offset 0.
type Header struct {
	VersionMajor uint16
	VersionMinor uint16
	Flags        FeatureFlags
	ChecksumAlgo ChecksumAlgorithm
	TotalSize    uint64

	Sections [sectionCount]sectionEntry

	NodeRecordWidth       uint16
	ConnectionRecordWidth uint16
	OctreeNodeWidth       uint16

	BuildTimestamp uint64
	LanguageTag    [8]byte
}

// Byte offsets within the fixed header. Keeping these as named
// constants rather than a struct tag scheme mirrors how the teacher's
// superblock reader lays out its fixed fields: every offset is an
// explicit, reviewable number.
const (
	offMagic           = 0
	offVersionMajor    = 8
	offVersionMinor    = 10
	offFeatureFlags    = 12
	offChecksumAlgo    = 16
	offTotalSize       = 24
	offSectionDir      = 32
	sectionEntrySize   = 24 // offset(8) + size(8) + checksum(8)
	sectionDirSize     = int(sectionCount) * sectionEntrySize
	offRecordWidths    = offSectionDir + sectionDirSize // 224
	offNodeWidth       = offRecordWidths
	offConnectionWidth = offRecordWidths + 2
	offOctreeWidth     = offRecordWidths + 4
	offBuildTimestamp  = offRecordWidths + 8 // 232
	offLanguageTag     = offBuildTimestamp + 8
	offReservedTail    = offLanguageTag + 8 // 248
	reservedTailSize   = 64
	offHeaderChecksum  = offReservedTail + reservedTailSize // 312

	// HeaderSize is the total fixed size of a .lingo header, in bytes.
	HeaderSize = offHeaderChecksum + 8 // 320
)

// ReadHeader reads and validates the fixed header at the start of r.
// Validation proceeds in the order the format requires: magic,
// version, header checksum, declared-section bounds against fileSize,
// per-section checksums, then a handful of structural spot checks.
// Section checksums are validated against the raw bytes of each
// section, so the caller must pass a ReaderAt over the whole file (not
// just the header) and the file's total size.
func ReadHeader(r io.ReaderAt, fileSize uint64) (*Header, error) {
	buf := utils.GetBuffer(HeaderSize)
	defer utils.ReleaseBuffer(buf)

	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, utils.WrapError("header read failed", err)
	}
	if n < HeaderSize {
		return nil, errors.New("file too small to contain a header")
	}

	if string(buf[offMagic:offMagic+8]) != Signature {
		return nil, ErrBadSignature
	}

	h := &Header{}
	h.VersionMajor = Endian.Uint16(buf[offVersionMajor : offVersionMajor+2])
	h.VersionMinor = Endian.Uint16(buf[offVersionMinor : offVersionMinor+2])
	if h.VersionMajor != SupportedMajor {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.VersionMajor)
	}

	h.Flags = FeatureFlags(Endian.Uint32(buf[offFeatureFlags : offFeatureFlags+4]))
	if bad := UnsupportedStrictFlags(h.Flags); bad != 0 {
		return nil, fmt.Errorf("%w: %#x", ErrUnsupportedStrictFlags, uint32(bad))
	}

	h.ChecksumAlgo = ChecksumAlgorithm(buf[offChecksumAlgo])
	if h.ChecksumAlgo != ChecksumXXHash64 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChecksum, h.ChecksumAlgo)
	}

	h.TotalSize = Endian.Uint64(buf[offTotalSize : offTotalSize+8])

	// Header checksum covers everything before the checksum field
	// itself. Computed first so a corrupt directory is caught before
	// we trust any offset in it.
	wantChecksum := Endian.Uint64(buf[offHeaderChecksum : offHeaderChecksum+8])
	gotChecksum := xxhash.Sum64(buf[:offHeaderChecksum])
	if gotChecksum != wantChecksum {
		return nil, fmt.Errorf("header checksum mismatch: got %#x, want %#x", gotChecksum, wantChecksum)
	}

	for i := 0; i < int(sectionCount); i++ {
		base := offSectionDir + i*sectionEntrySize
		h.Sections[i] = sectionEntry{
			Offset:   Endian.Uint64(buf[base : base+8]),
			Size:     Endian.Uint64(buf[base+8 : base+16]),
			Checksum: Endian.Uint64(buf[base+16 : base+24]),
		}
	}

	h.NodeRecordWidth = Endian.Uint16(buf[offNodeWidth : offNodeWidth+2])
	h.ConnectionRecordWidth = Endian.Uint16(buf[offConnectionWidth : offConnectionWidth+2])
	h.OctreeNodeWidth = Endian.Uint16(buf[offOctreeWidth : offOctreeWidth+2])
	h.BuildTimestamp = Endian.Uint64(buf[offBuildTimestamp : offBuildTimestamp+8])
	copy(h.LanguageTag[:], buf[offLanguageTag:offLanguageTag+8])

	effectiveSize := h.TotalSize
	if effectiveSize == 0 || effectiveSize > fileSize {
		effectiveSize = fileSize
	}
	for i, s := range h.Sections {
		if s.Size == 0 {
			continue // optional sections (e.g. cache hints) may be absent
		}
		if err := utils.ValidateSectionBounds(SectionID(i).String(), s.Offset, s.Size, effectiveSize); err != nil {
			return nil, wrapf("section bounds", err)
		}
	}

	if err := verifySectionChecksums(r, h); err != nil {
		return nil, err
	}

	if h.NodeRecordWidth == 0 || h.ConnectionRecordWidth == 0 || h.OctreeNodeWidth == 0 {
		return nil, errors.New("header declares a zero-width record type")
	}

	return h, nil
}

// verifySectionChecksums re-reads every non-empty section from r and
// compares its xxhash64 digest against the directory entry. This is
// the expensive half of opening a file. A read error on any section
// fails the check, and the reader always runs it on Open.
func verifySectionChecksums(r io.ReaderAt, h *Header) error {
	for i, s := range h.Sections {
		if s.Size == 0 {
			continue
		}
		buf := make([]byte, s.Size)
		if _, err := r.ReadAt(buf, int64(s.Offset)); err != nil && !errors.Is(err, io.EOF) {
			return wrapf(fmt.Sprintf("reading section %s", SectionID(i)), err)
		}
		got := xxhash.Sum64(buf)
		if got != s.Checksum {
			return fmt.Errorf("section %s checksum mismatch: got %#x, want %#x", SectionID(i), got, s.Checksum)
		}
	}
	return nil
}

// String renders a SectionID the way it appears in error messages.
func (s SectionID) String() string {
	switch s {
	case SectionStringTable:
		return "string-table"
	case SectionNodes:
		return "nodes"
	case SectionConnections:
		return "connections"
	case SectionOctreeNodes:
		return "octree-nodes"
	case SectionVerticalMappings:
		return "vertical-mappings"
	case SectionLayerConnections:
		return "layer-connections"
	case SectionOctreeLeaves:
		return "octree-leaves"
	case SectionCacheHints:
		return "cache-hints"
	default:
		return fmt.Sprintf("section(%d)", int(s))
	}
}

// WriteHeader encodes h into a HeaderSize-byte buffer suitable for
// writing at offset 0 of a new .lingo file. The header checksum is
// computed over the freshly encoded bytes, so callers must populate
// every other field of h before calling WriteHeader.
func WriteHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[offMagic:offMagic+8], Signature)
	Endian.PutUint16(buf[offVersionMajor:offVersionMajor+2], h.VersionMajor)
	Endian.PutUint16(buf[offVersionMinor:offVersionMinor+2], h.VersionMinor)
	Endian.PutUint32(buf[offFeatureFlags:offFeatureFlags+4], uint32(h.Flags))
	buf[offChecksumAlgo] = byte(h.ChecksumAlgo)
	Endian.PutUint64(buf[offTotalSize:offTotalSize+8], h.TotalSize)

	for i, s := range h.Sections {
		base := offSectionDir + i*sectionEntrySize
		Endian.PutUint64(buf[base:base+8], s.Offset)
		Endian.PutUint64(buf[base+8:base+16], s.Size)
		Endian.PutUint64(buf[base+16:base+24], s.Checksum)
	}

	Endian.PutUint16(buf[offNodeWidth:offNodeWidth+2], h.NodeRecordWidth)
	Endian.PutUint16(buf[offConnectionWidth:offConnectionWidth+2], h.ConnectionRecordWidth)
	Endian.PutUint16(buf[offOctreeWidth:offOctreeWidth+2], h.OctreeNodeWidth)
	Endian.PutUint64(buf[offBuildTimestamp:offBuildTimestamp+8], h.BuildTimestamp)
	copy(buf[offLanguageTag:offLanguageTag+8], h.LanguageTag[:])

	checksum := xxhash.Sum64(buf[:offHeaderChecksum])
	Endian.PutUint64(buf[offHeaderChecksum:offHeaderChecksum+8], checksum)
	return buf
}

// SetSection records the (offset, size) of section id and computes its
// checksum from data, so WriteHeader later encodes a consistent
// directory entry. Builder calls this once per section as it finishes
// writing each one.
func (h *Header) SetSection(id SectionID, offset uint64, data []byte) {
	h.Sections[id] = sectionEntry{
		Offset:   offset,
		Size:     uint64(len(data)),
		Checksum: xxhash.Sum64(data),
	}
}
