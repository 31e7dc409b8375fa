package replay

import (
	"context"
	"sync"
	"time"
)

var _ Guard = (*MemoryGuard)(nil)

// MemoryGuard is a process-local guard. Entries survive until swept; nothing
// is persisted across restarts.
type MemoryGuard struct {
	decode ExpiryDecoder
	used   map[string]struct{}
	mu     sync.RWMutex
}

func NewMemoryGuard(decode ExpiryDecoder) *MemoryGuard {
	return &MemoryGuard{
		decode: decode,
		used:   make(map[string]struct{}),
	}
}

func (g *MemoryGuard) Contains(_ context.Context, token string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.used[token]
	return ok, nil
}

// Consume checks and inserts under one lock so concurrent redemptions of the
// same token cannot both succeed.
func (g *MemoryGuard) Consume(_ context.Context, token string, _ time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.used[token]; ok {
		return ErrReplayed
	}
	g.used[token] = struct{}{}
	return nil
}

// Sweep decodes each entry's expiry and drops the elapsed ones. Entries that
// cannot be decoded can never pass verification again, so they are dropped too.
func (g *MemoryGuard) Sweep(_ context.Context, now time.Time) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for token := range g.used {
		exp, err := g.decode(token)
		if err != nil || exp.Before(now) {
			delete(g.used, token)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked tokens.
func (g *MemoryGuard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.used)
}
