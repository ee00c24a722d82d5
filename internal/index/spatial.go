// Package index implements the spatial, vertical, and connection
// index operations of §4.3: octree radius and k-nearest queries, layer
// traversal via the per-node vertical mapping, and connection-slice
// operations (k-th strongest edge, same-kind scan, bidirectional
// peers). It reads everything through a *reader.Reader and never
// copies the underlying mapping itself.
package index

import (
	"container/heap"
	"math"

	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/reader"
)

// Spatial wraps a reader with the octree query algorithms. It holds
// no state of its own; every call walks the reader's mapping fresh,
// since the tree is immutable for the reader's lifetime.
type Spatial struct {
	r *reader.Reader
}

// NewSpatial returns a Spatial view over r.
func NewSpatial(r *reader.Reader) *Spatial {
	return &Spatial{r: r}
}

// distanceResult pairs a node id with its distance from a query
// centre, used to build both the radius-query output and the
// k-nearest candidate heap.
type distanceResult struct {
	ID       format.NodeID
	Distance float64
}

// RadiusQuery returns every node within radius r of centre whose layer
// is included in mask, sorted by ascending distance. r == 0 matches
// only nodes at exactly centre.
func (s *Spatial) RadiusQuery(centre format.Coordinate, r float64, mask format.LayerMask) ([]format.NodeID, error) {
	root, err := s.r.OctreeRoot()
	if err != nil {
		return nil, err
	}

	var results []distanceResult
	if err := s.radiusWalk(root, centre, r, mask, &results); err != nil {
		return nil, err
	}

	sortByDistance(results)
	out := make([]format.NodeID, len(results))
	for i, d := range results {
		out[i] = d.ID
	}
	return out, nil
}

func (s *Spatial) radiusWalk(node format.OctreeNode, centre format.Coordinate, r float64, mask format.LayerMask, out *[]distanceResult) error {
	if !sphereIntersectsAABB(centre, r, node.BoundsMin, node.BoundsMax) {
		return nil
	}

	if node.IsLeaf() {
		ids, err := s.r.LeafBucket(node)
		if err != nil {
			return err
		}
		for _, id := range ids {
			n, err := s.r.Node(id)
			if err != nil {
				continue
			}
			if !mask.Has(n.Layer) {
				continue
			}
			d := coordDistance(centre, n.Position)
			if d <= r {
				*out = append(*out, distanceResult{ID: id, Distance: d})
			}
		}
		return nil
	}

	for octant := 0; octant < 8; octant++ {
		child, ok := s.r.OctreeChild(node, octant)
		if !ok {
			continue
		}
		if err := s.radiusWalk(child, centre, r, mask, out); err != nil {
			return err
		}
	}
	return nil
}

// KNearest returns up to k nodes closest to centre among those whose
// layer is in mask, sorted ascending by distance. It uses a best-first
// traversal: a max-heap of the best k candidates found so far, and a
// min-heap of unexplored subtrees ordered by each subtree's minimum
// possible distance to centre, pruning any subtree whose minimum
// distance already exceeds the current k-th candidate.
func (s *Spatial) KNearest(centre format.Coordinate, k int, mask format.LayerMask) ([]format.NodeID, error) {
	if k <= 0 {
		return nil, nil
	}
	root, err := s.r.OctreeRoot()
	if err != nil {
		return nil, err
	}

	candidates := &maxDistHeap{}
	heap.Init(candidates)

	frontier := &minSubtreeHeap{}
	heap.Init(frontier)
	heap.Push(frontier, subtreeEntry{node: root, minDist: aabbMinDistance(centre, root.BoundsMin, root.BoundsMax)})

	for frontier.Len() > 0 {
		entry := heap.Pop(frontier).(subtreeEntry)
		if candidates.Len() == k && entry.minDist > candidates.worst() {
			continue // pruned: cannot beat current k-th best
		}

		if entry.node.IsLeaf() {
			ids, err := s.r.LeafBucket(entry.node)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				n, err := s.r.Node(id)
				if err != nil {
					continue
				}
				if !mask.Has(n.Layer) {
					continue
				}
				d := coordDistance(centre, n.Position)
				pushCandidate(candidates, distanceResult{ID: id, Distance: d}, k)
			}
			continue
		}

		for octant := 0; octant < 8; octant++ {
			child, ok := s.r.OctreeChild(entry.node, octant)
			if !ok {
				continue
			}
			minD := aabbMinDistance(centre, child.BoundsMin, child.BoundsMax)
			if candidates.Len() == k && minD > candidates.worst() {
				continue
			}
			heap.Push(frontier, subtreeEntry{node: child, minDist: minD})
		}
	}

	results := candidates.drain()
	sortByDistance(results)
	out := make([]format.NodeID, len(results))
	for i, d := range results {
		out[i] = d.ID
	}
	return out, nil
}

func coordDistance(a, b format.Coordinate) float64 {
	return a.Distance(b)
}

// sphereIntersectsAABB tests whether a sphere of radius r around
// centre intersects the axis-aligned box [min, max].
func sphereIntersectsAABB(centre format.Coordinate, r float64, min, max format.Coordinate) bool {
	return aabbMinDistance(centre, min, max) <= r
}

// aabbMinDistance returns the minimum possible Euclidean distance from
// centre to any point inside [min, max], zero if centre is inside it.
func aabbMinDistance(centre format.Coordinate, min, max format.Coordinate) float64 {
	dx := axisGap(centre.X, min.X, max.X)
	dy := axisGap(centre.Y, min.Y, max.Y)
	dz := axisGap(centre.Z, min.Z, max.Z)
	return math.Sqrt(float64(dx*dx + dy*dy + dz*dz))
}

func axisGap(v, lo, hi float32) float32 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

func sortByDistance(results []distanceResult) {
	// Simple insertion sort: radius/k-NN result sets are small (bucket
	// capacity sized), so an O(n log n) library sort buys nothing
	// measurable over a direct insertion sort here.
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].Distance > results[j].Distance {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
}
