package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the value for a cache key on a miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// TrackedComputeFunc additionally reports the ids of the documents the
// value was derived from, so the manager can register them for
// invalidation after the entry is committed.
type TrackedComputeFunc func(ctx context.Context) ([]byte, []string, error)

// Manager is the engine's only shared mutable resource. It layers a
// bounded in-process LRU tier over an optional Redis tier and coalesces
// concurrent computations for the same key so an expensive backend call
// runs exactly once.
type Manager struct {
	l1      *LRUStore
	l2      Store
	group   singleflight.Group
	metrics *Metrics
	logger  *logrus.Logger
	now     func() time.Time

	mu      sync.Mutex
	docKeys map[string]map[string]struct{}
}

// NewManager creates a cache manager with the given L1 size. l2 may be
// nil when no shared tier is configured.
func NewManager(size int, l2 Store, metrics *Metrics, logger *logrus.Logger) (*Manager, error) {
	l1, err := NewLRUStore(size)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		l1:      l1,
		l2:      l2,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		docKeys: make(map[string]map[string]struct{}),
	}, nil
}

// GetOrCompute returns the live entry for key, or invokes compute
// exactly once and caches its result for ttl. Concurrent callers for
// the same key block on the single in-flight computation and share its
// result. The computation is detached from the requesting context: a
// caller that cancels gets its context error back, but a write already
// committed by the in-flight computation is retained for other callers.
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	return m.GetOrComputeTracked(ctx, key, ttl, func(ctx context.Context) ([]byte, []string, error) {
		value, err := compute(ctx)
		return value, nil, err
	})
}

// GetOrComputeTracked is GetOrCompute for computations that report
// document provenance. Tracking is registered only after the entry is
// committed: an invalidation that lands while the computation is still
// in flight cannot leave the committed entry untracked.
func (m *Manager) GetOrComputeTracked(ctx context.Context, key string, ttl time.Duration, compute TrackedComputeFunc) ([]byte, error) {
	if value, ok := m.lookup(ctx, key); ok {
		m.metrics.Hits.Inc()
		return value, nil
	}
	m.metrics.Misses.Inc()

	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (interface{}, error) {
		// Double-check under the flight gate: a sibling may have
		// committed between our miss and this call.
		if value, ok := m.lookup(detached, key); ok {
			return value, nil
		}

		value, docIDs, err := compute(detached)
		if err != nil {
			return nil, err
		}
		m.commit(detached, key, value, ttl)
		for _, docID := range docIDs {
			m.TrackDocument(docID, key)
		}
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			m.metrics.Coalesced.Inc()
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) lookup(ctx context.Context, key string) ([]byte, bool) {
	if entry, ok, _ := m.l1.Get(ctx, key); ok {
		return entry.Value, true
	}
	if m.l2 == nil {
		return nil, false
	}
	entry, ok, err := m.l2.Get(ctx, key)
	if err != nil {
		m.logger.WithError(err).Warn("cache L2 read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	// Promote to L1 so repeated reads stay in-process.
	_ = m.l1.Set(ctx, key, entry)
	return entry.Value, true
}

func (m *Manager) commit(ctx context.Context, key string, value []byte, ttl time.Duration) {
	entry := Entry{Value: value, CreatedAt: m.now(), TTL: ttl}
	if err := m.l1.Set(ctx, key, entry); err != nil {
		m.logger.WithError(err).Warn("cache L1 write failed")
	}
	if m.l2 != nil {
		if err := m.l2.Set(ctx, key, entry); err != nil {
			m.logger.WithError(err).Warn("cache L2 write failed")
		}
	}
}

// TrackDocument records that the given keys were derived from a
// document's chunks, so an ingestion update for that document can
// invalidate them.
func (m *Manager) TrackDocument(documentID string, keys ...string) {
	if documentID == "" || len(keys) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.docKeys[documentID]
	if !ok {
		set = make(map[string]struct{})
		m.docKeys[documentID] = set
	}
	for _, key := range keys {
		set[key] = struct{}{}
	}
}

// InvalidateDocument removes every cache entry derived from the given
// document. Returns the number of keys invalidated.
func (m *Manager) InvalidateDocument(ctx context.Context, documentID string) int {
	m.mu.Lock()
	set := m.docKeys[documentID]
	delete(m.docKeys, documentID)
	m.mu.Unlock()

	for key := range set {
		if err := m.l1.Delete(ctx, key); err != nil {
			m.logger.WithError(err).Warn("cache L1 delete failed")
		}
		if m.l2 != nil {
			if err := m.l2.Delete(ctx, key); err != nil {
				m.logger.WithError(err).Warn("cache L2 delete failed")
			}
		}
	}
	count := len(set)
	m.metrics.Invalidations.Add(float64(count))
	return count
}

// Sweep removes expired L1 entries. Wired to a background worker; the
// Redis tier expires server-side and needs no sweep.
func (m *Manager) Sweep(ctx context.Context) error {
	removed := m.l1.Sweep()
	if removed > 0 {
		m.metrics.Swept.Add(float64(removed))
		m.logger.WithField("removed", removed).Debug("cache sweep completed")
	}
	return nil
}

// Flush empties all tiers. Called on shutdown.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	m.docKeys = make(map[string]map[string]struct{})
	m.mu.Unlock()

	if err := m.l1.Purge(ctx); err != nil {
		return err
	}
	if m.l2 != nil {
		return m.l2.Purge(ctx)
	}
	return nil
}
