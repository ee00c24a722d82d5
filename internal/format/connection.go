package format

import "math"

// ConnectionRecordSize is the on-disk width of one packed connection
// (edge) record.
const ConnectionRecordSize = 20

const (
	connOffTarget      = 0
	connOffStrength    = 4
	connOffKind        = 6
	connOffContext     = 7
	connOffTransformX  = 8
	connOffTransformY  = 12
	connOffTransformZ  = 16
)

// strengthScale maps the [0,1] edge strength to a uint16 fixed-point
// representation, the same scheme node.go uses for productivity.
const strengthScale = float32(math.MaxUint16)

// Connection is the decoded form of one packed edge record. It is
// stored as part of the source node's adjacency slice in the
// connections section; the source node is implicit from the slice it
// belongs to.
type Connection struct {
	Target    NodeID
	Strength  float32 // decoded from a fixed-point uint16 in [0,1]
	Kind      ConnectionKind
	Context   ContextMask
	Transform Coordinate // offset applied when following this edge spatially
}

// DecodeConnection reads one packed connection record from buf, which
// must be at least ConnectionRecordSize bytes.
func DecodeConnection(buf []byte) Connection {
	var c Connection
	c.Target = NodeID(Endian.Uint32(buf[connOffTarget:]))
	c.Strength = float32(Endian.Uint16(buf[connOffStrength:])) / strengthScale
	c.Kind = ConnectionKind(buf[connOffKind])
	c.Context = ContextMask(buf[connOffContext])
	c.Transform.X = decodeFloat32(buf[connOffTransformX:])
	c.Transform.Y = decodeFloat32(buf[connOffTransformY:])
	c.Transform.Z = decodeFloat32(buf[connOffTransformZ:])
	return c
}

// EncodeConnection writes c into buf, which must be at least
// ConnectionRecordSize bytes.
func EncodeConnection(buf []byte, c Connection) {
	Endian.PutUint32(buf[connOffTarget:], uint32(c.Target))
	Endian.PutUint16(buf[connOffStrength:], uint16(clamp01(c.Strength)*strengthScale))
	buf[connOffKind] = byte(c.Kind)
	buf[connOffContext] = byte(c.Context)
	encodeFloat32(buf[connOffTransformX:], c.Transform.X)
	encodeFloat32(buf[connOffTransformY:], c.Transform.Y)
	encodeFloat32(buf[connOffTransformZ:], c.Transform.Z)
}
