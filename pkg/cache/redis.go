package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/metrics"
	"github.com/Combine-Capital/lovetree/pkg/retry"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 100

// RedisClient implements Client on Redis.
//
// Lifecycle: NewRedis leaves the client Disconnected; Connect moves it to Connecting and
// then Connected. A transport failure on any operation moves Connected to Error and
// starts one background reconnect loop (Reconnecting) that pings with capped
// exponential backoff. Success returns to Connected. Exhausting
// cache.reconnect_max_attempts leaves the client Disconnected for good. Close always ends
// in Disconnected. Outside Connected no command is sent to Redis.
type RedisClient struct {
	client     *redis.Client
	codec      Codec
	logger     *logging.Logger
	state      *stateMachine
	prefix     string
	defaultTTL time.Duration
	opTimeout  time.Duration
	reconnect  retry.Config

	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex // orders wg.Add against Close
	wg        sync.WaitGroup
	closed    atomic.Bool
	exhausted atomic.Bool
}

// NewRedis builds a client from cfg without contacting Redis. It fails only when the
// connection string cannot be parsed.
func NewRedis(cfg config.CacheConfig, logger *logging.Logger) (*RedisClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, errors.NewInvalidInputWithCause("cache.url", "invalid redis connection string", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("cache")

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client:     redis.NewClient(opts),
		codec:      JSONCodec{},
		logger:     logger,
		state:      newStateMachine(logger),
		prefix:     cfg.KeyPrefix,
		defaultTTL: durationOr(cfg.DefaultTTL, 30*time.Minute),
		opTimeout:  durationOr(cfg.OperationTimeout, 2*time.Second),
		reconnect: retry.Config{
			MaxAttempts:  uint(max(cfg.ReconnectMaxAttempts, 1)),
			InitialDelay: cfg.ReconnectInitialBackoff,
			MaxDelay:     cfg.ReconnectMaxBackoff,
			Policy:       retry.PolicyAll,
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	// Socket deadlines follow the per-operation context, so a hung server costs at most
	// OperationTimeout instead of ReadTimeout per attempt.
	opts.ContextTimeoutEnabled = true

	if cfg.MaxRetries != 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	return opts, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Connect pings Redis. On failure the client enters Error, starts reconnecting in the
// background and Connect returns a Temporary error; the client stays usable in degraded
// mode either way.
func (r *RedisClient) Connect(ctx context.Context) error {
	if r.closed.Load() {
		return errors.NewPermanent("cache client is closed", nil)
	}
	if r.exhausted.Load() {
		return errors.NewPermanent("cache reconnect attempts exhausted", nil)
	}
	if !r.state.transition(StateDisconnected, StateConnecting) {
		return nil
	}

	if err := r.ping(ctx); err != nil {
		r.state.set(StateError)
		r.logger.Warn().Err(err).Msg("cache unreachable, continuing without it")
		r.startReconnect()
		return errors.NewTemporary("failed to connect to cache", err)
	}

	r.state.transition(StateConnecting, StateConnected)
	return nil
}

// State returns the current connection state.
func (r *RedisClient) State() State {
	return r.state.load()
}

func (r *RedisClient) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// startReconnect launches the reconnect loop if the client is in Error.
func (r *RedisClient) startReconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() || r.exhausted.Load() {
		return
	}
	if !r.state.transition(StateError, StateReconnecting) {
		return
	}

	r.wg.Add(1)
	go r.reconnectLoop()
}

func (r *RedisClient) reconnectLoop() {
	defer r.wg.Done()

	cfg := r.reconnect
	cfg.OnRetry = func(err error, attempt uint, next time.Duration) {
		metrics.RecordCacheReconnect(false)
		r.logger.Warn().
			Err(err).
			Uint(logging.Attempt, attempt).
			Dur("next_backoff", next).
			Msg("cache reconnect attempt failed")
	}

	err := retry.Do(r.ctx, cfg, func() error {
		return r.ping(r.ctx)
	})
	if r.closed.Load() {
		return
	}
	if err != nil {
		metrics.RecordCacheReconnect(false)
		r.exhausted.Store(true)
		r.state.set(StateDisconnected)
		r.logger.Error().
			Err(err).
			Uint("max_attempts", cfg.MaxAttempts).
			Msg("cache reconnect attempts exhausted, caching disabled")
		return
	}

	metrics.RecordCacheReconnect(true)
	r.state.transition(StateReconnecting, StateConnected)
}

// ready reports whether commands may be sent, counting skipped operations.
func (r *RedisClient) ready(op string) bool {
	if r.state.load() == StateConnected {
		return true
	}
	metrics.RecordCacheOperation(op, metrics.ResultSkipped, 0)
	return false
}

// fail logs err, counts it and starts a reconnect when it is a transport failure.
func (r *RedisClient) fail(ctx context.Context, op, key string, start time.Time, err error) {
	metrics.RecordCacheOperation(op, metrics.ResultError, time.Since(start))
	r.logger.Warn().
		Err(err).
		Str(logging.Operation, op).
		Str(logging.CacheKey, key).
		Msg("cache operation failed")

	if isTransportError(ctx, err) && r.state.transition(StateConnected, StateError) {
		r.startReconnect()
	}
}

// isTransportError separates connection problems from Redis error replies and from
// cancellation by the caller.
func isTransportError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var replyErr redis.Error
	return !errors.As(err, &replyErr)
}

// Get implements Client.
func (r *RedisClient) Get(ctx context.Context, key string, dest any) bool {
	const op = "get"
	if !r.ready(op) {
		return false
	}
	start := time.Now()
	full := qualify(r.prefix, key)

	opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	data, err := r.client.Get(opCtx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheOperation(op, metrics.ResultMiss, time.Since(start))
		return false
	}
	if err != nil {
		r.fail(ctx, op, full, start, err)
		return false
	}

	if err := r.codec.Unmarshal(data, dest); err != nil {
		metrics.RecordCacheOperation(op, metrics.ResultError, time.Since(start))
		r.logger.Warn().Err(err).Str(logging.CacheKey, full).Msg("undecodable cache entry treated as miss")
		return false
	}

	metrics.RecordCacheOperation(op, metrics.ResultHit, time.Since(start))
	return true
}

// Set implements Client.
func (r *RedisClient) Set(ctx context.Context, key string, value any, opts ...SetOption) bool {
	const op = "set"
	key, ttl := resolveSet(key, r.defaultTTL, opts)
	if ttl <= 0 {
		r.Delete(ctx, key)
		return false
	}
	if !r.ready(op) {
		return false
	}
	start := time.Now()
	full := qualify(r.prefix, key)

	data, err := r.codec.Marshal(value)
	if err != nil {
		metrics.RecordCacheOperation(op, metrics.ResultError, time.Since(start))
		r.logger.Warn().Err(err).Str(logging.CacheKey, full).Msg("cache value not encodable")
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	if err := r.client.Set(opCtx, full, data, ttl).Err(); err != nil {
		r.fail(ctx, op, full, start, err)
		return false
	}

	metrics.RecordCacheOperation(op, metrics.ResultOK, time.Since(start))
	return true
}

// Delete implements Client.
func (r *RedisClient) Delete(ctx context.Context, key string) bool {
	const op = "delete"
	if !r.ready(op) {
		return false
	}
	start := time.Now()
	full := qualify(r.prefix, key)

	opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	if err := r.client.Del(opCtx, full).Err(); err != nil {
		r.fail(ctx, op, full, start, err)
		return false
	}

	metrics.RecordCacheOperation(op, metrics.ResultOK, time.Since(start))
	return true
}

// DeleteByPattern implements Client with SCAN MATCH and batched DEL, so a large keyspace
// never blocks Redis the way KEYS would.
func (r *RedisClient) DeleteByPattern(ctx context.Context, pattern string) int {
	const op = "delete_pattern"
	if !r.ready(op) {
		return 0
	}
	start := time.Now()
	full := qualify(r.prefix, pattern)

	opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	removed := 0
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(opCtx, cursor, full, scanBatchSize).Result()
		if err != nil {
			r.fail(ctx, op, full, start, err)
			metrics.AddPatternDeleted(removed)
			return removed
		}

		if len(keys) > 0 {
			n, err := r.client.Del(opCtx, keys...).Result()
			if err != nil {
				r.fail(ctx, op, full, start, err)
				metrics.AddPatternDeleted(removed)
				return removed
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	metrics.RecordCacheOperation(op, metrics.ResultOK, time.Since(start))
	metrics.AddPatternDeleted(removed)
	r.logger.Debug().
		Str(logging.CachePattern, full).
		Int("removed", removed).
		Msg("cache pattern deleted")
	return removed
}

// TTL implements Client.
func (r *RedisClient) TTL(ctx context.Context, key string) int64 {
	const op = "ttl"
	if !r.ready(op) {
		return NoTTL
	}
	start := time.Now()
	full := qualify(r.prefix, key)

	opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	d, err := r.client.TTL(opCtx, full).Result()
	if err != nil {
		r.fail(ctx, op, full, start, err)
		return NoTTL
	}

	metrics.RecordCacheOperation(op, metrics.ResultOK, time.Since(start))
	// -1 (no expiry) and -2 (absent) come back as raw negative durations.
	if d < 0 {
		return NoTTL
	}
	return int64(d / time.Second)
}

// IsReady implements Client.
func (r *RedisClient) IsReady() bool {
	return r.state.load() == StateConnected
}

// Check reports an error unless the client is connected and Redis answers PING. It
// plugs into the health framework.
func (r *RedisClient) Check(ctx context.Context) error {
	if s := r.state.load(); s != StateConnected {
		return errors.NewTemporary(fmt.Sprintf("cache is %s", s), nil)
	}
	if err := r.ping(ctx); err != nil {
		return errors.NewTemporary("cache ping failed", err)
	}
	return nil
}

// Close stops any reconnect loop and releases the connection pool.
func (r *RedisClient) Close() error {
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.state.set(StateDisconnected)
	return r.client.Close()
}
