package lingo

import (
	"errors"
	"time"

	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/vm"
)

// cacheWriteThreshold is the minimum measured execution time a result
// must cross before it's worth caching, per spec §4.5: "cheap queries
// are not cached."
const cacheWriteThreshold = 50 * time.Microsecond

// Node is one member of a Result: a node's identity plus the fields a
// caller typically needs without a further lookup (spec §6's executor
// surface).
type Node struct {
	ID          format.NodeID
	SurfaceForm string
	Layer       format.Layer
	Etymology   format.EtymologyOrigin
	Flags       format.NodeFlag
	Position    format.Coordinate
}

// Result is the ordered outcome of executing a CompiledQuery.
type Result struct {
	Nodes         []Node
	ExecutionTime time.Duration
}

// Execute runs cq against db. If deadline is the zero Time, the
// database's configured QueryTimeout applies from the call's start.
func (db *DB) Execute(cq *CompiledQuery, deadline time.Time) (*Result, error) {
	if deadline.IsZero() {
		deadline = time.Now().Add(db.cfg.QueryTimeout)
	}

	digest := vm.Digest(cq.inner.Program, cq.inner.Constants)
	fileChecksum := db.r.Checksum()

	if cached, ok := db.cache.Get(fileChecksum, digest); ok {
		db.trace(cq, digest, true, cached.Len(), 0)
		return db.toResult(cached, 0), nil
	}

	m := db.machines.Get().(*vm.Machine)
	defer db.machines.Put(m)

	start := time.Now()
	set, err := m.Run(cq.inner.Program, cq.inner.Constants, deadline)
	elapsed := time.Since(start)
	db.stats.RecordExecution(elapsed)

	if err != nil {
		if errors.Is(err, vm.ErrTimeout) {
			db.stats.RecordTimeout()
			return nil, newError(KindTimeout, "query exceeded its deadline", err)
		}
		return nil, newError(KindRuntime, "query execution failed", err)
	}

	if db.cfg.MaxResultSize > 0 && set.Len() > db.cfg.MaxResultSize {
		set.Truncate(db.cfg.MaxResultSize)
	}

	if elapsed >= cacheWriteThreshold {
		db.cache.Put(fileChecksum, digest, set)
	}

	db.trace(cq, digest, false, set.Len(), elapsed)
	return db.toResult(set, elapsed), nil
}

// trace emits one optional tracing record per query execution, per
// spec §4.5's "optional tracing records." Only active when
// Config.Profiling is set; otherwise this is a no-op so the common
// path never pays for building the log attributes.
func (db *DB) trace(cq *CompiledQuery, digest uint64, cacheHit bool, resultLen int, elapsed time.Duration) {
	if !db.cfg.Profiling {
		return
	}
	db.logger.Debug("query executed",
		"digest", digest,
		"cost", cq.inner.Cost,
		"cacheHit", cacheHit,
		"results", resultLen,
		"elapsed", elapsed,
	)
}

func (db *DB) toResult(set vm.NodeSet, elapsed time.Duration) *Result {
	ids := set.Ids()
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		n, err := db.r.Node(id)
		if err != nil {
			continue // a stale cached id in a since-truncated set; skip rather than fail the whole result
		}
		form, _ := db.r.SurfaceForm(n)
		nodes = append(nodes, Node{
			ID:          n.ID,
			SurfaceForm: form,
			Layer:       n.Layer,
			Etymology:   n.Etymology,
			Flags:       n.Flags,
			Position:    n.Position,
		})
	}
	return &Result{Nodes: nodes, ExecutionTime: elapsed}
}
