package lingo

import (
	"github.com/RobAntunes/lingodb/internal/format"
	iquery "github.com/RobAntunes/lingodb/internal/query"
	"github.com/RobAntunes/lingodb/internal/vm"
)

// Re-exported so callers never import the internal packages directly.
type (
	Layer           = format.Layer
	LayerMask       = format.LayerMask
	EtymologyOrigin = format.EtymologyOrigin
	NodeFlag        = format.NodeFlag
	ConnectionKind  = format.ConnectionKind
	SortCriterion   = vm.SortCriterion
	OptimizationLevel = iquery.Level
)

const (
	LayerLetters   = format.LayerLetters
	LayerPhonemes  = format.LayerPhonemes
	LayerMorphemes = format.LayerMorphemes
	LayerWords     = format.LayerWords
	LayerPhrases   = format.LayerPhrases
	LayerConcepts  = format.LayerConcepts
	LayerDomains   = format.LayerDomains
	AllLayers      = format.AllLayers
)

const (
	SortByStrength  = vm.SortByStrength
	SortByDistance  = vm.SortByDistance
	SortByFrequency = vm.SortByFrequency
	SortByID        = vm.SortByID
)

const (
	Debug      = iquery.Debug
	Balanced   = iquery.Balanced
	Aggressive = iquery.Aggressive
)

// Query is a fluent chain of operations (§4.4), built up one call at a
// time and turned into a CompiledQuery against an opened DB.
type Query struct {
	b *iquery.Builder
}

// NewQuery starts an empty chain.
func NewQuery() *Query {
	return &Query{b: iquery.New()}
}

func (q *Query) Find(surfaceForm string) *Query {
	q.b.Find(surfaceForm)
	return q
}

func (q *Query) LayerUp(levels int) *Query {
	q.b.LayerUp(levels)
	return q
}

func (q *Query) LayerDown(levels int) *Query {
	q.b.LayerDown(levels)
	return q
}

func (q *Query) SimilarTo(threshold float64) *Query {
	q.b.SimilarTo(threshold)
	return q
}

func (q *Query) SpatialNeighbors(radius float64, mask LayerMask) *Query {
	q.b.SpatialNeighbors(radius, mask)
	return q
}

func (q *Query) FollowConnection(rank int) *Query {
	q.b.FollowConnection(rank)
	return q
}

func (q *Query) FollowConnectionKind(kind ConnectionKind) *Query {
	q.b.FollowConnectionKind(kind)
	return q
}

func (q *Query) Bidirectional() *Query {
	q.b.Bidirectional()
	return q
}

func (q *Query) FilterByLayer(mask LayerMask) *Query {
	q.b.FilterByLayer(mask)
	return q
}

func (q *Query) FilterByEtymology(origin EtymologyOrigin) *Query {
	q.b.FilterByEtymology(origin)
	return q
}

func (q *Query) FilterByFlags(mask NodeFlag) *Query {
	q.b.FilterByFlags(mask)
	return q
}

func (q *Query) Sort(criterion SortCriterion) *Query {
	q.b.Sort(criterion)
	return q
}

func (q *Query) Limit(n int) *Query {
	q.b.Limit(n)
	return q
}

func (q *Query) Deduplicate() *Query {
	q.b.Deduplicate()
	return q
}

// CompiledQuery is a query lowered to a bytecode stream, ready to run
// against the DB it was compiled for.
type CompiledQuery struct {
	inner *iquery.CompiledQuery
}

// Cost is the compiler's integer cost estimate for this query.
func (cq *CompiledQuery) Cost() int { return cq.inner.Cost }

// CacheKey is a stable hash of the instruction stream and the file it
// was compiled against.
func (cq *CompiledQuery) CacheKey() uint64 { return cq.inner.CacheKey }

// Compile lowers q into a CompiledQuery against db, at the given
// optimization level.
func (db *DB) Compile(q *Query, level OptimizationLevel) (*CompiledQuery, error) {
	steps, err := q.b.Steps()
	if err != nil {
		return nil, newError(KindCompile, "invalid operation chain", err)
	}
	cq, err := iquery.Compile(steps, level, db.r.NodeCount(), db.r.Checksum())
	if err != nil {
		return nil, newError(KindCompile, "compilation failed", err)
	}
	return &CompiledQuery{inner: cq}, nil
}
