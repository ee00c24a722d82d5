package vm

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey identifies one compiled query's result within one file. A
// cache built against one .lingo file must never serve a hit to
// another, so the file's section checksum fold is part of the key.
type cacheKey struct {
	fileChecksum  uint64
	programDigest uint64
}

// ResultCache memoizes Machine.Run results, keyed by the executing
// file's checksum and a hash of the compiled instruction stream plus
// its constants. Safe for concurrent use; the underlying LRU is
// internally locked.
type ResultCache struct {
	entries *lru.Cache[cacheKey, NodeSet]
	stats   *Stats
}

// NewResultCache returns a cache holding at most capacity entries.
func NewResultCache(capacity int, stats *Stats) (*ResultCache, error) {
	c, err := lru.New[cacheKey, NodeSet](capacity)
	if err != nil {
		return nil, err
	}
	return &ResultCache{entries: c, stats: stats}, nil
}

// Digest hashes a compiled instruction stream and its string constants
// into a single value suitable as the programDigest argument of Get and
// Put.
func Digest(program []Instruction, constants []string) uint64 {
	h := xxhash.New()
	var buf []byte
	for _, in := range program {
		buf = in.Encode(buf[:0])
		h.Write(buf)
	}
	for _, c := range constants {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// Get looks up a previously cached result for (fileChecksum,
// programDigest), recording a hit or miss against stats.
func (rc *ResultCache) Get(fileChecksum, programDigest uint64) (NodeSet, bool) {
	key := cacheKey{fileChecksum, programDigest}
	set, ok := rc.entries.Get(key)
	if ok {
		rc.stats.RecordCacheHit()
	} else {
		rc.stats.RecordCacheMiss()
	}
	return set, ok
}

// Put stores result under (fileChecksum, programDigest), evicting the
// least recently used entry if the cache is full.
func (rc *ResultCache) Put(fileChecksum, programDigest uint64, result NodeSet) {
	rc.entries.Add(cacheKey{fileChecksum, programDigest}, result)
}

// Len returns the number of entries currently cached.
func (rc *ResultCache) Len() int { return rc.entries.Len() }

// Purge empties the cache.
func (rc *ResultCache) Purge() { rc.entries.Purge() }
