package index

import (
	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/reader"
)

// Vertical wraps a reader with the layer-traversal operations of
// §4.3: ancestors/descendants at a target layer, reached in O(1) via
// each node's 7-slot vertical mapping arrays.
type Vertical struct {
	r *reader.Reader
}

// NewVertical returns a Vertical view over r.
func NewVertical(r *reader.Reader) *Vertical {
	return &Vertical{r: r}
}

// LayerUp returns n's ancestors n levels up, clamped to Domains. A
// multi-level jump is the union of direct ancestors at the clamped
// target layer, deduplicated, preserving first-insertion order.
func (v *Vertical) LayerUp(n format.Node, levels int) ([]format.NodeID, error) {
	target := clampLayer(int(n.Layer) + levels)
	if target == n.Layer {
		return nil, nil
	}
	return v.relatedAt(n, target, true)
}

// LayerDown returns n's descendants n levels down, clamped to Letters.
func (v *Vertical) LayerDown(n format.Node, levels int) ([]format.NodeID, error) {
	target := clampLayer(int(n.Layer) - levels)
	if target == n.Layer {
		return nil, nil
	}
	return v.relatedAt(n, target, false)
}

func (v *Vertical) relatedAt(n format.Node, target format.Layer, ancestors bool) ([]format.NodeID, error) {
	vm, err := v.r.VerticalMapping(n)
	if err != nil {
		return nil, err
	}
	var offset, count uint32
	if ancestors {
		offset, count = vm.AncestorsAt(target)
	} else {
		offset, count = vm.DescendantsAt(target)
	}
	if count == 0 {
		return nil, nil
	}
	links, err := v.r.LayerConnectionsAt(offset, count)
	if err != nil {
		return nil, err
	}

	seen := make(map[format.NodeID]struct{}, len(links))
	out := make([]format.NodeID, 0, len(links))
	for _, l := range links {
		if _, dup := seen[l.Target]; dup {
			continue
		}
		seen[l.Target] = struct{}{}
		out = append(out, l.Target)
	}
	return out, nil
}

// clampLayer clamps target into [LayerLetters, LayerDomains].
func clampLayer(target int) format.Layer {
	switch {
	case target < int(format.LayerLetters):
		return format.LayerLetters
	case target > int(format.LayerDomains):
		return format.LayerDomains
	default:
		return format.Layer(target)
	}
}
