package controllers

import (
	"strconv"
	"sync"
)

// cacheKeys derives response-cache keys carrying a per-(kind, target)
// generation segment. Read keys may fan out per visitor, limit or page,
// so they cannot be deleted one by one on a write; bumping the
// generation retires every cached read for the pair at once, and the
// retired entries age out of the cache by TTL.
type cacheKeys struct {
	mu   sync.Mutex
	gens map[string]uint64
}

func newCacheKeys() *cacheKeys {
	return &cacheKeys{gens: make(map[string]uint64)}
}

func (ck *cacheKeys) generation(kind, target string) uint64 {
	ck.mu.Lock()
	defer ck.mu.Unlock()
	return ck.gens[kind+":"+target]
}

// bump invalidates all cached reads for the (kind, target) pair.
func (ck *cacheKeys) bump(kind, target string) {
	ck.mu.Lock()
	defer ck.mu.Unlock()
	ck.gens[kind+":"+target]++
}

func (ck *cacheKeys) key(kind, target string, parts ...string) string {
	k := kind + ":" + strconv.FormatUint(ck.generation(kind, target), 10) + ":" + target
	for _, part := range parts {
		k += ":" + part
	}
	return k
}
