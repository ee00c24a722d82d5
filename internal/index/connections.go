package index

import (
	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/reader"
)

// Connections wraps a reader with the orthogonal-connection
// operations of §4.3: k-th strongest edge, same-kind scan, and
// bidirectional-peer detection.
type Connections struct {
	r *reader.Reader
}

// NewConnections returns a Connections view over r.
func NewConnections(r *reader.Reader) *Connections {
	return &Connections{r: r}
}

// Nth returns n's rank-th strongest outgoing connection (rank 0 is the
// strongest, since the slice is pre-sorted strength-descending), or
// false if n has fewer than rank+1 connections.
func (c *Connections) Nth(n format.Node, rank int) (format.Connection, bool, error) {
	edges, err := c.r.Connections(n)
	if err != nil {
		return format.Connection{}, false, err
	}
	if rank < 0 || rank >= len(edges) {
		return format.Connection{}, false, nil
	}
	return edges[rank], true, nil
}

// OfKind returns every outgoing connection of n matching kind, in
// their stored (strength-descending) order.
func (c *Connections) OfKind(n format.Node, kind format.ConnectionKind) ([]format.Connection, error) {
	edges, err := c.r.Connections(n)
	if err != nil {
		return nil, err
	}
	var out []format.Connection
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

// BidirectionalPeers returns the subset of n's outgoing connections
// whose target also lists n among its own outgoing connections with
// the same kind.
func (c *Connections) BidirectionalPeers(n format.Node) ([]format.Connection, error) {
	edges, err := c.r.Connections(n)
	if err != nil {
		return nil, err
	}

	var out []format.Connection
	for _, e := range edges {
		peer, err := c.r.Node(e.Target)
		if err != nil {
			continue
		}
		peerEdges, err := c.r.Connections(peer)
		if err != nil {
			continue
		}
		for _, pe := range peerEdges {
			if pe.Target == n.ID && pe.Kind == e.Kind {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}
