// Package dedup suppresses redelivered transport events. Telegram (and any
// at-least-once transport) may hand the same update to the bot more than
// once; the guard is the compensating control in front of the dialog state
// machine.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultCapacity      = 1000
	DefaultSnapshotEvery = 10

	snapshotTimeout = 10 * time.Second
)

// Guard is a bounded recency set with FIFO eviction. Accept returns true
// exactly once per distinct key within the capacity window; once the set
// exceeds capacity the oldest key is forgotten and would be accepted again.
//
// Commands/free text and media uploads each get their own Guard instance:
// a media upload may need to be re-examined for completion without being
// mistaken for a duplicate of the next text message in the same chat.
type Guard struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int

	snapshotEvery int
	inserts       int

	blobs       storageBlobs
	snapshotKey string
	snapSeq     uint64

	// persistMu serialises snapshot writes; persistedSeq is guarded by it.
	// Without the sequence check a slow early write could land after a
	// later one and roll the durable window backwards.
	persistMu    sync.Mutex
	persistedSeq uint64
}

type storageBlobs interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

func New(capacity, snapshotEvery int, blobs storageBlobs, snapshotKey string) *Guard {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if snapshotEvery <= 0 {
		snapshotEvery = DefaultSnapshotEvery
	}
	return &Guard{
		seen:          make(map[string]struct{}, capacity),
		capacity:      capacity,
		snapshotEvery: snapshotEvery,
		blobs:         blobs,
		snapshotKey:   snapshotKey,
	}
}

// Load restores the recency window from the last durable snapshot. Up to
// snapshotEvery-1 events handled after that snapshot may replay after a
// crash; that trade-off keeps the write rate bounded.
func (g *Guard) Load(ctx context.Context) error {
	if g.blobs == nil {
		return nil
	}
	data, ok, err := g.blobs.Load(ctx, g.snapshotKey)
	if err != nil {
		return fmt.Errorf("Guard.Load: %w", err)
	}
	if !ok {
		return nil
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("Guard.Load: decode snapshot: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		if _, dup := g.seen[k]; dup {
			continue
		}
		g.seen[k] = struct{}{}
		g.order = append(g.order, k)
	}
	g.evictLocked()
	return nil
}

// Accept reports whether key is novel. It records the key before returning,
// so a redelivery racing the first delivery still sees false.
func (g *Guard) Accept(key string) bool {
	g.mu.Lock()

	if _, dup := g.seen[key]; dup {
		g.mu.Unlock()
		return false
	}

	g.seen[key] = struct{}{}
	g.order = append(g.order, key)
	g.evictLocked()

	g.inserts++
	var snapshot []string
	var seq uint64
	if g.blobs != nil && g.inserts%g.snapshotEvery == 0 {
		snapshot = append([]string(nil), g.order...)
		g.snapSeq++
		seq = g.snapSeq
	}
	g.mu.Unlock()

	if snapshot != nil {
		go g.persist(snapshot, seq)
	}
	return true
}

// Len reports the current window size.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

func (g *Guard) evictLocked() {
	for len(g.order) > g.capacity {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
	}
}

func (g *Guard) persist(keys []string, seq uint64) {
	g.persistMu.Lock()
	defer g.persistMu.Unlock()
	if seq <= g.persistedSeq {
		// A newer snapshot already reached storage.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	data, err := json.Marshal(keys)
	if err != nil {
		slog.Error("dedup snapshot encode failed", "key", g.snapshotKey, "error", err)
		return
	}
	if err := g.blobs.Save(ctx, g.snapshotKey, data); err != nil {
		slog.Error("dedup snapshot write failed", "key", g.snapshotKey, "error", err)
		return
	}
	g.persistedSeq = seq
}
