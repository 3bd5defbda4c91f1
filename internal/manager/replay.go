package manager

import (
	"sync"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
)

// ReplayGuard remembers request signatures for as long as their timestamp is acceptable, so a captured
// request cannot be submitted twice inside the clock-skew window.
type ReplayGuard struct {
	window time.Duration

	mu   sync.Mutex
	seen map[address.Address]map[string]time.Time // identity -> signature -> expiry
}

func NewReplayGuard(window time.Duration) *ReplayGuard {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &ReplayGuard{
		window: window,
		seen:   make(map[address.Address]map[string]time.Time),
	}
}

func (g *ReplayGuard) Window() time.Duration {
	return g.window
}

// Check records the signature and reports whether it is fresh. A signature signed at ts stays
// remembered until ts+window, after which the timestamp check rejects it anyway.
func (g *ReplayGuard) Check(identity address.Address, signature string, ts, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	sigs, ok := g.seen[identity]
	if !ok {
		sigs = make(map[string]time.Time)
		g.seen[identity] = sigs
	}
	for sig, expiry := range sigs {
		if now.After(expiry) {
			delete(sigs, sig)
		}
	}
	if _, dup := sigs[signature]; dup {
		return false
	}
	sigs[signature] = ts.Add(g.window)
	return true
}

// Prune drops identities with no live signatures.
func (g *ReplayGuard) Prune(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, sigs := range g.seen {
		for sig, expiry := range sigs {
			if now.After(expiry) {
				delete(sigs, sig)
			}
		}
		if len(sigs) == 0 {
			delete(g.seen, id)
		}
	}
}
