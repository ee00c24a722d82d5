package format

// VerticalMappingSize is the on-disk width of one node's vertical
// mapping record: two fixed 7-slot arrays, one per Layer, each an
// (offset, count) range into the layer-connections section — one
// array for ancestors at that layer, one for descendants. A node's
// own layer slot is always empty (count 0) in both arrays.
const VerticalMappingSize = 2 * int(layerCount) * 8 // 112

const verticalSlotCount = int(layerCount) // 7

// LayerConnectionSize is the on-disk width of one entry in the
// layer-connections section: the id of the related node at the
// neighbouring layer and a confidence score for that vertical link.
const LayerConnectionSize = 6

const (
	lcOffTarget     = 0
	lcOffConfidence = 4
)

// LayerConnection is one entry of a node's vertical mapping slot: a
// node id at a different layer and how confidently it relates.
type LayerConnection struct {
	Target     NodeID
	Confidence float32 // decoded from a fixed-point uint16 in [0,1]
}

// DecodeLayerConnection reads one packed layer-connection record from
// buf, which must be at least LayerConnectionSize bytes.
func DecodeLayerConnection(buf []byte) LayerConnection {
	return LayerConnection{
		Target:     NodeID(Endian.Uint32(buf[lcOffTarget:])),
		Confidence: float32(Endian.Uint16(buf[lcOffConfidence:])) / strengthScale,
	}
}

// EncodeLayerConnection writes lc into buf, which must be at least
// LayerConnectionSize bytes.
func EncodeLayerConnection(buf []byte, lc LayerConnection) {
	Endian.PutUint32(buf[lcOffTarget:], uint32(lc.Target))
	Endian.PutUint16(buf[lcOffConfidence:], uint16(clamp01(lc.Confidence)*strengthScale))
}

// verticalSlot is one (offset, count) range into the layer-connections
// section.
type verticalSlot struct {
	Offset uint32
	Count  uint32
}

// VerticalMapping is the decoded form of one node's vertical index
// record: which nodes at each other layer are its ancestors, and
// which are its descendants.
type VerticalMapping struct {
	Ancestors   [verticalSlotCount]verticalSlot
	Descendants [verticalSlotCount]verticalSlot
}

// DecodeVerticalMapping reads one packed vertical mapping record from
// buf, which must be at least VerticalMappingSize bytes. Ancestor
// slots occupy the first half of the record, descendant slots the
// second half, both in layer order.
func DecodeVerticalMapping(buf []byte) VerticalMapping {
	var vm VerticalMapping
	half := verticalSlotCount * 8
	for i := 0; i < verticalSlotCount; i++ {
		base := i * 8
		vm.Ancestors[i].Offset = Endian.Uint32(buf[base:])
		vm.Ancestors[i].Count = Endian.Uint32(buf[base+4:])
		vm.Descendants[i].Offset = Endian.Uint32(buf[half+base:])
		vm.Descendants[i].Count = Endian.Uint32(buf[half+base+4:])
	}
	return vm
}

// EncodeVerticalMapping writes vm into buf, which must be at least
// VerticalMappingSize bytes.
func EncodeVerticalMapping(buf []byte, vm VerticalMapping) {
	half := verticalSlotCount * 8
	for i := 0; i < verticalSlotCount; i++ {
		base := i * 8
		Endian.PutUint32(buf[base:], vm.Ancestors[i].Offset)
		Endian.PutUint32(buf[base+4:], vm.Ancestors[i].Count)
		Endian.PutUint32(buf[half+base:], vm.Descendants[i].Offset)
		Endian.PutUint32(buf[half+base+4:], vm.Descendants[i].Count)
	}
}

// AncestorsAt returns the (offset, count) range of ancestor nodes at
// layer l, or (0, 0) if l is invalid or has none recorded.
func (vm VerticalMapping) AncestorsAt(l Layer) (offset, count uint32) {
	if !l.Valid() {
		return 0, 0
	}
	s := vm.Ancestors[l]
	return s.Offset, s.Count
}

// DescendantsAt returns the (offset, count) range of descendant nodes
// at layer l, or (0, 0) if l is invalid or has none recorded.
func (vm VerticalMapping) DescendantsAt(l Layer) (offset, count uint32) {
	if !l.Valid() {
		return 0, 0
	}
	s := vm.Descendants[l]
	return s.Offset, s.Count
}
