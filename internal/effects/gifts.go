package effects

import "sync"

// GiftCounter tracks announced gift-sub batches per gifter so the individual
// gift notifications that follow don't each replay the subscription effect.
// Presence of a key is the "pending gift" flag; an entry never goes below one.
type GiftCounter struct {
	mu      sync.Mutex
	pending map[string]int
}

// NewGiftCounter creates an empty counter.
func NewGiftCounter() *GiftCounter {
	return &GiftCounter{pending: make(map[string]int)}
}

// RegisterBatch adds count pending gifts for the user.
func (g *GiftCounter) RegisterBatch(user string, count int) {
	if count <= 0 {
		return
	}
	g.mu.Lock()
	g.pending[user] += count
	g.mu.Unlock()
}

// ConsumeOne reports whether an individual gift from the user was already
// accounted for by a batch. True means the caller must suppress the standalone
// effect; false means this is a standalone subscription.
func (g *GiftCounter) ConsumeOne(user string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.pending[user]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(g.pending, user)
	} else {
		g.pending[user] = n - 1
	}
	return true
}
