package format

import "fmt"

// StringTable decodes the raw bytes of the string-table section: a
// flat, unindexed byte blob where every node's SurfaceFormOffset and
// SurfaceFormLength point directly into this slice. There is no
// separator or length prefix between entries; the node record is the
// only source of truth for where a string starts and ends.
type StringTable struct {
	data []byte
}

// NewStringTable wraps the raw bytes of a string-table section.
func NewStringTable(data []byte) StringTable {
	return StringTable{data: data}
}

// Slice returns the substring at [offset, offset+length) as a string,
// copying out of the backing byte slice so the result stays valid
// after the underlying mmap is closed.
func (t StringTable) Slice(offset, length uint32) (string, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(t.data)) {
		return "", fmt.Errorf("string table range [%d, %d) exceeds section size %d", offset, end, len(t.data))
	}
	return string(t.data[offset:end]), nil
}

// Len returns the size of the underlying section in bytes.
func (t StringTable) Len() int {
	return len(t.data)
}
