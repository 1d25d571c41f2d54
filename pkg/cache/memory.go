package cache

import (
	"context"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/metrics"
	"github.com/dgraph-io/ristretto/v2"
)

// MemoryClient implements Client in process on ristretto.
//
// ristretto hashes keys and cannot enumerate them, so MemoryClient keeps a secondary
// index from namespace (the first key segment) to the keys written under it. Set adds to
// the index; DeleteByPattern walks only the namespaces the pattern can match and
// prunes entries that ristretto already expired or evicted.
type MemoryClient struct {
	rc         *ristretto.Cache[string, []byte]
	codec      Codec
	logger     *logging.Logger
	prefix     string
	defaultTTL time.Duration
	closed     atomic.Bool

	mu    sync.Mutex
	index map[string]map[string]struct{}
}

// NewMemory creates an in-process client holding at most cfg.MemoryMaxEntries entries.
func NewMemory(cfg config.CacheConfig, logger *logging.Logger) (*MemoryClient, error) {
	maxEntries := cfg.MemoryMaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.NewPermanent("failed to create in-memory cache", err)
	}

	if logger == nil {
		logger = logging.Nop()
	}
	metrics.SetCacheState(int(StateConnected))

	return &MemoryClient{
		rc:         rc,
		codec:      JSONCodec{},
		logger:     logger.WithComponent("cache"),
		prefix:     cfg.KeyPrefix,
		defaultTTL: durationOr(cfg.DefaultTTL, 30*time.Minute),
		index:      make(map[string]map[string]struct{}),
	}, nil
}

// Get implements Client.
func (m *MemoryClient) Get(_ context.Context, key string, dest any) bool {
	const op = "get"
	if m.closed.Load() {
		metrics.RecordCacheOperation(op, metrics.ResultSkipped, 0)
		return false
	}
	start := time.Now()
	full := qualify(m.prefix, key)

	data, ok := m.rc.Get(full)
	if !ok {
		metrics.RecordCacheOperation(op, metrics.ResultMiss, time.Since(start))
		return false
	}
	if err := m.codec.Unmarshal(data, dest); err != nil {
		metrics.RecordCacheOperation(op, metrics.ResultError, time.Since(start))
		m.logger.Warn().Err(err).Str(logging.CacheKey, full).Msg("undecodable cache entry treated as miss")
		return false
	}

	metrics.RecordCacheOperation(op, metrics.ResultHit, time.Since(start))
	return true
}

// Set implements Client.
func (m *MemoryClient) Set(ctx context.Context, key string, value any, opts ...SetOption) bool {
	const op = "set"
	key, ttl := resolveSet(key, m.defaultTTL, opts)
	if ttl <= 0 {
		m.Delete(ctx, key)
		return false
	}
	if m.closed.Load() {
		metrics.RecordCacheOperation(op, metrics.ResultSkipped, 0)
		return false
	}
	start := time.Now()
	full := qualify(m.prefix, key)

	data, err := m.codec.Marshal(value)
	if err != nil {
		metrics.RecordCacheOperation(op, metrics.ResultError, time.Since(start))
		m.logger.Warn().Err(err).Str(logging.CacheKey, full).Msg("cache value not encodable")
		return false
	}

	if !m.rc.SetWithTTL(full, data, 1, ttl) {
		metrics.RecordCacheOperation(op, metrics.ResultError, time.Since(start))
		return false
	}
	m.rc.Wait()
	m.track(key, full)

	metrics.RecordCacheOperation(op, metrics.ResultOK, time.Since(start))
	return true
}

func (m *MemoryClient) track(key, full string) {
	ns := namespaceOf(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	keys, ok := m.index[ns]
	if !ok {
		keys = make(map[string]struct{})
		m.index[ns] = keys
	}
	keys[full] = struct{}{}
}

// Delete implements Client.
func (m *MemoryClient) Delete(_ context.Context, key string) bool {
	const op = "delete"
	if m.closed.Load() {
		metrics.RecordCacheOperation(op, metrics.ResultSkipped, 0)
		return false
	}
	start := time.Now()
	full := qualify(m.prefix, key)

	m.rc.Del(full)
	m.mu.Lock()
	if keys, ok := m.index[namespaceOf(key)]; ok {
		delete(keys, full)
	}
	m.mu.Unlock()

	metrics.RecordCacheOperation(op, metrics.ResultOK, time.Since(start))
	return true
}

// DeleteByPattern implements Client through the namespace index. Matching follows
// path.Match, so '*' does not cross '/'.
func (m *MemoryClient) DeleteByPattern(_ context.Context, pattern string) int {
	const op = "delete_pattern"
	if m.closed.Load() {
		metrics.RecordCacheOperation(op, metrics.ResultSkipped, 0)
		return 0
	}
	start := time.Now()
	full := qualify(m.prefix, pattern)

	if _, err := path.Match(full, ""); err != nil {
		metrics.RecordCacheOperation(op, metrics.ResultError, time.Since(start))
		m.logger.Warn().Err(err).Str(logging.CachePattern, full).Msg("invalid cache pattern")
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var namespaces []string
	if ns := namespaceOf(pattern); hasGlob(ns) {
		for candidate := range m.index {
			namespaces = append(namespaces, candidate)
		}
	} else {
		namespaces = []string{ns}
	}

	removed := 0
	for _, ns := range namespaces {
		keys := m.index[ns]
		for k := range keys {
			if ok, _ := path.Match(full, k); !ok {
				continue
			}
			if _, live := m.rc.Get(k); live {
				m.rc.Del(k)
				removed++
			}
			delete(keys, k)
		}
		if len(keys) == 0 {
			delete(m.index, ns)
		}
	}

	metrics.RecordCacheOperation(op, metrics.ResultOK, time.Since(start))
	metrics.AddPatternDeleted(removed)
	return removed
}

// TTL implements Client.
func (m *MemoryClient) TTL(_ context.Context, key string) int64 {
	if m.closed.Load() {
		return NoTTL
	}
	full := qualify(m.prefix, key)
	if _, ok := m.rc.Get(full); !ok {
		return NoTTL
	}
	d, ok := m.rc.GetTTL(full)
	if !ok || d <= 0 {
		return NoTTL
	}
	return int64(d / time.Second)
}

// IsReady implements Client.
func (m *MemoryClient) IsReady() bool {
	return !m.closed.Load()
}

// Check fails only after Close.
func (m *MemoryClient) Check(context.Context) error {
	if m.closed.Load() {
		return errors.NewTemporary("cache is closed", nil)
	}
	return nil
}

// Close implements Client.
func (m *MemoryClient) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.rc.Close()
	metrics.SetCacheState(int(StateDisconnected))
	return nil
}
