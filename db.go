package lingo

import (
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/RobAntunes/lingodb/internal/format"
	"github.com/RobAntunes/lingodb/internal/reader"
	"github.com/RobAntunes/lingodb/internal/utils"
	"github.com/RobAntunes/lingodb/internal/vm"
)

// Result cache sizing: a NodeSet entry is dominated by its inline
// 8-id array plus bookkeeping, so an entry runs small; sets that
// spill to the heap cost more, but the LRU counts entries rather
// than bytes directly, so this is an estimate rather than a hard
// bound.
const (
	estimatedResultEntryBytes              = 256
	minResultCacheSize, maxResultCacheSize = 32, 1 << 16

	// resultCacheBudgetShare is the fraction of Config.CacheBudgetBytes
	// given to the result cache; the remainder is passed to the reader
	// for its coordinate and connection caches.
	resultCacheBudgetShare = 0.5
)

// DB is an opened .lingo file: the memory-mapped reader, the
// interpreter machinery that runs compiled queries against it, and the
// observability surface (stats, logging) around both. A DB is safe for
// concurrent use — each call to Execute borrows a per-call *vm.Machine
// from a pool rather than sharing one, per spec §5's per-thread
// interpreter state requirement.
type DB struct {
	cfg    *Config
	r      *reader.Reader
	cache  *vm.ResultCache
	stats  *vm.Stats
	logger *slog.Logger

	machines sync.Pool
}

// Open opens path with default configuration.
func Open(path string) (*DB, error) {
	cfg := &Config{
		Path:             path,
		LogLevel:         slog.LevelInfo,
		CacheBudgetBytes: DefaultCacheBudgetBytes,
		QueryTimeout:     DefaultQueryTimeout,
		MaxResultSize:    DefaultMaxResultSize,
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig opens cfg.Path under the given configuration.
func OpenWithConfig(cfg *Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, newError(KindConfig, "config has no Path set", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	readerBudget := int64(float64(cfg.CacheBudgetBytes) * (1 - resultCacheBudgetShare))
	r, err := reader.OpenWithCacheBudget(cfg.Path, readerBudget)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("opened lingo database", "path", cfg.Path, "nodes", r.NodeCount())

	resultCacheBudget := int64(float64(cfg.CacheBudgetBytes) * resultCacheBudgetShare)
	resultCacheCapacity := utils.CacheCapacityForBudget(resultCacheBudget, estimatedResultEntryBytes, minResultCacheSize, maxResultCacheSize)

	var stats vm.Stats
	cache, err := vm.NewResultCache(resultCacheCapacity, &stats)
	if err != nil {
		_ = r.Close()
		return nil, newError(KindCache, "failed to construct result cache", err)
	}

	db := &DB{cfg: cfg, r: r, cache: cache, stats: &stats, logger: logger}
	db.machines.New = func() any { return vm.NewMachine(r) }
	return db, nil
}

// classifyOpenError maps a reader.Open failure to the FormatError /
// IntegrityError split of spec §7: a bad signature, unsupported
// version, or unsupported strict feature flag is a format problem;
// anything else (truncated file, section bounds/checksum failure) is
// an integrity problem. format.ReadHeader wraps its format-class
// failures in one of its exported sentinel errors, so this checks
// against those with errors.Is rather than matching on message text.
func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, format.ErrBadSignature),
		errors.Is(err, format.ErrUnsupportedVersion),
		errors.Is(err, format.ErrUnsupportedStrictFlags),
		errors.Is(err, format.ErrUnsupportedChecksum):
		return newError(KindFormat, "failed to open database", err)
	default:
		return newError(KindIntegrity, "failed to open database", err)
	}
}

// NodeCount returns the number of nodes in the opened file.
func (db *DB) NodeCount() int { return db.r.NodeCount() }

// Stats returns a point-in-time snapshot of execution counters.
func (db *DB) Stats() vm.Snapshot { return db.stats.Snapshot() }

// ClearCaches empties both the reader's coordinate/connection caches
// and the compiled-query result cache.
func (db *DB) ClearCaches() {
	db.r.ClearCaches()
	db.cache.Purge()
}

// Close releases the memory mapping. Safe to call more than once.
func (db *DB) Close() error {
	return db.r.Close()
}
