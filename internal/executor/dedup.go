package executor

import (
	"sync"
	"time"
)

// Dedup prevents the same source transaction from being mirrored more than
// once within a time-to-live window. The same pending transaction is often
// announced again after a reconnect, and occasionally by the provider
// itself. Safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // source tx hash -> first seen time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup that treats a transaction hash as a duplicate if
// it has been seen within the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate returns true if txHash has been seen within the TTL window.
// If it has not been seen (or has expired) it is recorded and false is
// returned.
func (d *Dedup) IsDuplicate(txHash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if firstSeen, ok := d.seen[txHash]; ok {
		if now.Sub(firstSeen) < d.ttl {
			return true
		}
	}

	d.seen[txHash] = now
	return false
}

// Cleanup removes entries that have expired beyond the TTL. Called
// periodically by the mirror loop to bound memory.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for hash, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, hash)
		}
	}
}
