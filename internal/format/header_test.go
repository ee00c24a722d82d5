package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHeader() *Header {
	h := &Header{
		VersionMajor:          SupportedMajor,
		VersionMinor:          0,
		ChecksumAlgo:          ChecksumXXHash64,
		NodeRecordWidth:       NodeRecordSize,
		ConnectionRecordWidth: ConnectionRecordSize,
		OctreeNodeWidth:       OctreeNodeSize,
		BuildTimestamp:        1700000000,
	}
	copy(h.LanguageTag[:], "en")
	return h
}

func TestWriteReadHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()

	nodeData := bytes.Repeat([]byte{0xAB}, 128)
	h.SetSection(SectionNodes, uint64(HeaderSize), nodeData)
	connData := bytes.Repeat([]byte{0xCD}, 40)
	h.SetSection(SectionConnections, uint64(HeaderSize)+128, connData)
	h.TotalSize = uint64(HeaderSize) + uint64(len(nodeData)) + uint64(len(connData))

	buf := WriteHeader(h)
	require.Len(t, buf, HeaderSize)

	var file bytes.Buffer
	file.Write(buf)
	file.Write(nodeData)
	file.Write(connData)

	got, err := ReadHeader(bytes.NewReader(file.Bytes()), uint64(file.Len()))
	require.NoError(t, err)

	assert.Equal(t, h.VersionMajor, got.VersionMajor)
	assert.Equal(t, h.ChecksumAlgo, got.ChecksumAlgo)
	assert.Equal(t, h.NodeRecordWidth, got.NodeRecordWidth)
	assert.Equal(t, h.Sections[SectionNodes], got.Sections[SectionNodes])
	assert.Equal(t, h.Sections[SectionConnections], got.Sections[SectionConnections])
	assert.Equal(t, h.BuildTimestamp, got.BuildTimestamp)
}

func TestReadHeaderRejectsBadSignature(t *testing.T) {
	h := sampleHeader()
	buf := WriteHeader(h)
	buf[0] = 'X'

	_, err := ReadHeader(bytes.NewReader(buf), uint64(len(buf)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestReadHeaderRejectsUnsupportedMajorVersion(t *testing.T) {
	h := sampleHeader()
	h.VersionMajor = SupportedMajor + 1
	buf := WriteHeader(h)

	_, err := ReadHeader(bytes.NewReader(buf), uint64(len(buf)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "major version")
}

func TestReadHeaderRejectsCorruptChecksum(t *testing.T) {
	h := sampleHeader()
	buf := WriteHeader(h)
	buf[offVersionMinor] ^= 0xFF // flip a byte covered by the header checksum

	_, err := ReadHeader(bytes.NewReader(buf), uint64(len(buf)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestReadHeaderRejectsSectionOutOfBounds(t *testing.T) {
	h := sampleHeader()
	h.SetSection(SectionNodes, uint64(HeaderSize), bytes.Repeat([]byte{1}, 64))
	h.Sections[SectionNodes].Size = 1_000_000 // lie about the size
	buf := WriteHeader(h)

	_, err := ReadHeader(bytes.NewReader(buf), uint64(len(buf)))
	require.Error(t, err)
}

func TestReadHeaderRejectsUnsupportedStrictFlags(t *testing.T) {
	h := sampleHeader()
	h.Flags = FeatureFlags(0x01000000) // a strict bit this reader doesn't know
	buf := WriteHeader(h)

	_, err := ReadHeader(bytes.NewReader(buf), uint64(len(buf)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict")
}

func TestReadHeaderTooSmall(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(make([]byte, 10)), 10)
	require.Error(t, err)
}
