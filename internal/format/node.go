package format

import "math"

// NodeRecordSize is the on-disk width of one packed node record. It
// matches the NodeRecordWidth a builder writes into the header; a
// reader should prefer h.NodeRecordWidth over this constant so that a
// future minor version could widen the record and still be read, but
// every record this package itself encodes uses this width.
const NodeRecordSize = 64

// Node offsets within a packed node record.
const (
	nodeOffID          = 0
	nodeOffLayer       = 4
	nodeOffEtymology   = 5
	nodeOffMorpheme    = 6
	nodeOffFlags       = 7
	nodeOffPosX        = 8
	nodeOffPosY        = 12
	nodeOffPosZ        = 16
	nodeOffSurfOffset  = 20
	nodeOffSurfLength  = 24
	nodeOffPhonetic    = 28
	nodeOffProductiv   = 36
	nodeOffFreqRank    = 38
	nodeOffChildOffset = 42
	nodeOffChildCount  = 46
	nodeOffConnOffset  = 50
	nodeOffConnCount   = 54
	nodeOffSpatialBkt  = 58
	// bytes 62-63 reserved
)

// Node is the decoded form of one packed node record.
type Node struct {
	ID                NodeID
	Layer             Layer
	Etymology         EtymologyOrigin
	Morpheme          MorphemeType
	Flags             NodeFlag
	Position          Coordinate
	SurfaceFormOffset uint32 // byte offset into the string table
	SurfaceFormLength uint32
	PhoneticSignature uint64
	ProductivityScore float32 // decoded from a fixed-point uint16 in [0,1]
	FrequencyRank     uint32
	ChildrenOffset    uint32 // index into the connections section
	ChildrenCount     uint32
	ConnectionsOffset uint32
	ConnectionsCount  uint32
	SpatialBucket     uint32 // leaf index into the octree's leaf-bucket section
}

// productivityScale maps the [0,1] productivity score to a uint16
// fixed-point representation and back, the same trick the format uses
// for connection strength.
const productivityScale = float32(math.MaxUint16)

// DecodeNode reads one packed node record from buf, which must be at
// least NodeRecordSize bytes.
func DecodeNode(buf []byte) Node {
	var n Node
	n.ID = NodeID(Endian.Uint32(buf[nodeOffID:]))
	n.Layer = Layer(buf[nodeOffLayer])
	n.Etymology = EtymologyOrigin(buf[nodeOffEtymology])
	n.Morpheme = MorphemeType(buf[nodeOffMorpheme])
	n.Flags = NodeFlag(buf[nodeOffFlags])
	n.Position.X = decodeFloat32(buf[nodeOffPosX:])
	n.Position.Y = decodeFloat32(buf[nodeOffPosY:])
	n.Position.Z = decodeFloat32(buf[nodeOffPosZ:])
	n.SurfaceFormOffset = Endian.Uint32(buf[nodeOffSurfOffset:])
	n.SurfaceFormLength = Endian.Uint32(buf[nodeOffSurfLength:])
	n.PhoneticSignature = Endian.Uint64(buf[nodeOffPhonetic:])
	n.ProductivityScore = float32(Endian.Uint16(buf[nodeOffProductiv:])) / productivityScale
	n.FrequencyRank = Endian.Uint32(buf[nodeOffFreqRank:])
	n.ChildrenOffset = Endian.Uint32(buf[nodeOffChildOffset:])
	n.ChildrenCount = Endian.Uint32(buf[nodeOffChildCount:])
	n.ConnectionsOffset = Endian.Uint32(buf[nodeOffConnOffset:])
	n.ConnectionsCount = Endian.Uint32(buf[nodeOffConnCount:])
	n.SpatialBucket = Endian.Uint32(buf[nodeOffSpatialBkt:])
	return n
}

// EncodeNode writes n into buf, which must be at least NodeRecordSize
// bytes; bytes beyond the declared fields (the 2-byte reserved tail)
// are left zeroed.
func EncodeNode(buf []byte, n Node) {
	Endian.PutUint32(buf[nodeOffID:], uint32(n.ID))
	buf[nodeOffLayer] = byte(n.Layer)
	buf[nodeOffEtymology] = byte(n.Etymology)
	buf[nodeOffMorpheme] = byte(n.Morpheme)
	buf[nodeOffFlags] = byte(n.Flags)
	encodeFloat32(buf[nodeOffPosX:], n.Position.X)
	encodeFloat32(buf[nodeOffPosY:], n.Position.Y)
	encodeFloat32(buf[nodeOffPosZ:], n.Position.Z)
	Endian.PutUint32(buf[nodeOffSurfOffset:], n.SurfaceFormOffset)
	Endian.PutUint32(buf[nodeOffSurfLength:], n.SurfaceFormLength)
	Endian.PutUint64(buf[nodeOffPhonetic:], n.PhoneticSignature)
	Endian.PutUint16(buf[nodeOffProductiv:], uint16(clamp01(n.ProductivityScore)*productivityScale))
	Endian.PutUint32(buf[nodeOffFreqRank:], n.FrequencyRank)
	Endian.PutUint32(buf[nodeOffChildOffset:], n.ChildrenOffset)
	Endian.PutUint32(buf[nodeOffChildCount:], n.ChildrenCount)
	Endian.PutUint32(buf[nodeOffConnOffset:], n.ConnectionsOffset)
	Endian.PutUint32(buf[nodeOffConnCount:], n.ConnectionsCount)
	Endian.PutUint32(buf[nodeOffSpatialBkt:], n.SpatialBucket)
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func decodeFloat32(buf []byte) float32 {
	return math.Float32frombits(Endian.Uint32(buf))
}

func encodeFloat32(buf []byte, v float32) {
	Endian.PutUint32(buf, math.Float32bits(v))
}
