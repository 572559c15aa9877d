package interpreter

import (
	"fmt"
	"sync"
)

// KeyGenerator hands out stable rendering keys per node id. Keys keep the
// rendering layer's object identity intact across rebuilds: as long as a
// node id survives an update, its key does too.
type KeyGenerator struct {
	mu        sync.Mutex
	keys      map[string]string
	conflicts map[string]int
	preserved map[string]struct{}
}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{
		keys:      make(map[string]string),
		conflicts: make(map[string]int),
		preserved: make(map[string]struct{}),
	}
}

// GenerateKey returns the key for id, minting one on first use. Repeated
// calls return the same key until ClearCache or RegisterConflict intervenes.
func (g *KeyGenerator) GenerateKey(id string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if key, ok := g.keys[id]; ok {
		return key
	}

	key := id
	if n := g.conflicts[id]; n > 0 {
		key = fmt.Sprintf("%s~%d", id, n)
	}
	g.keys[id] = key
	return key
}

// RegisterConflict records that id appeared more than once in a tree and
// forces the next GenerateKey call to mint a disambiguated key.
func (g *KeyGenerator) RegisterConflict(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.conflicts[id]++
	delete(g.keys, id)
}

// PreserveKey marks one id's key to survive the next ClearCache.
func (g *KeyGenerator) PreserveKey(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.preserved[id] = struct{}{}
}

// PrepareForUpdate marks every currently issued key as preserved, so an
// update cycle's ClearCache keeps identity for nodes that survive it.
func (g *KeyGenerator) PrepareForUpdate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id := range g.keys {
		g.preserved[id] = struct{}{}
	}
}

// ClearCache drops all keys except the preserved set, then forgets the
// preservation marks.
func (g *KeyGenerator) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id := range g.keys {
		if _, keep := g.preserved[id]; !keep {
			delete(g.keys, id)
		}
	}
	g.preserved = make(map[string]struct{})
}

// CleanupAfterUpdate drops retained keys whose id is absent from the new
// tree, bounding cache growth over a long session.
func (g *KeyGenerator) CleanupAfterUpdate(liveIDs map[string]struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id := range g.keys {
		if _, live := liveIDs[id]; !live {
			delete(g.keys, id)
			delete(g.conflicts, id)
			delete(g.preserved, id)
		}
	}
}

// Reset wipes keys, conflicts and preservation marks. Used when a full
// update arrives without state preservation: the next build starts from a
// clean identity slate.
func (g *KeyGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.keys = make(map[string]string)
	g.conflicts = make(map[string]int)
	g.preserved = make(map[string]struct{})
}
