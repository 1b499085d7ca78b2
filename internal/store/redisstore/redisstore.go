// Package redisstore keeps disk-tier entries in Redis so several processes
// can share one persistent tier.
//
// Each entry is a hash at prefix+"e:"+key whose fields "0".."n-1" hold the
// values. A sorted set at prefix+"lru" orders keys by last access and a hash
// at prefix+"sizes" records each entry's byte size; Flush uses both to trim
// the store to MaxSizeBytes. Commits are applied in one MULTI/EXEC.
package redisstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/pixcache/internal/config"
	"github.com/LavishGent/pixcache/internal/store"
)

// Name is reported through store.Named.
const Name = "redis"

const disconnectErrorThreshold = 5

// Options configures a Store.
type Options struct {
	Logger         *slog.Logger
	ValuesPerEntry int
	MaxSizeBytes   int64
}

// Store implements store.Store on Redis.
type Store struct {
	client *redis.Client
	cfg    config.RedisConfig
	opts   Options
	logger *slog.Logger
	fields []string

	mu            sync.Mutex
	editing       map[string]struct{}
	lastError     error
	lastErrorTime time.Time

	closed     atomic.Bool
	connected  atomic.Bool
	errorCount atomic.Int64
	size       atomic.Int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New connects to Redis. A failed initial ping is logged and the store
// starts disconnected; operations are still attempted so the caller's
// circuit breaker decides when to stop.
func New(cfg config.RedisConfig, opts Options) (*Store, error) {
	if cfg.Address == "" {
		return nil, errors.New("redisstore: address is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ValuesPerEntry <= 0 {
		opts.ValuesPerEntry = 1
	}

	ropts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}
	logger := opts.Logger.With("component", "redisstore")
	if cfg.EnableTLS {
		ropts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in for test clusters
		}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	s := &Store{
		client:  redis.NewClient(ropts),
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		editing: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}
	s.fields = make([]string, opts.ValuesPerEntry)
	for i := range s.fields {
		s.fields[i] = strconv.Itoa(i)
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("Redis initial connection failed", "error", err)
		s.setError(err)
	} else {
		s.connected.Store(true)
		s.logger.Info("Redis connected", "address", cfg.Address)
		if err := s.reconcileSize(ctx); err != nil {
			s.logger.Warn("failed to read stored sizes", "error", err)
		}
	}

	if cfg.HealthCheckInterval > 0 {
		s.wg.Add(1)
		go s.healthCheckWorker()
	}

	return s, nil
}

func (s *Store) Name() string { return Name }

// IsAvailable reports whether recent calls reached Redis.
func (s *Store) IsAvailable() bool {
	return !s.closed.Load() && s.connected.Load()
}

func (s *Store) entryKey(key string) string { return s.cfg.KeyPrefix + "e:" + key }
func (s *Store) lruKey() string             { return s.cfg.KeyPrefix + "lru" }
func (s *Store) sizesKey() string           { return s.cfg.KeyPrefix + "sizes" }

func (s *Store) Edit(ctx context.Context, key string) (store.Editor, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.editing[key]; busy {
		return nil, store.ErrEditInProgress
	}
	s.editing[key] = struct{}{}

	commit := func(values [][]byte) error {
		if s.closed.Load() {
			return store.ErrClosed
		}
		timeout := s.cfg.WriteTimeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.commit(ctx, key, values)
	}
	return store.NewBufferedEditor(s.opts.ValuesPerEntry, commit, func() { s.release(key) }), nil
}

func (s *Store) Get(ctx context.Context, key string) (store.Snapshot, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	vals, err := s.client.HMGet(ctx, s.entryKey(key), s.fields...).Result()
	if err != nil {
		s.handleError(err)
		return nil, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	s.clearError()

	values := make([][]byte, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Expired by TTL or never committed.
			s.forget(ctx, key)
			return nil, store.ErrNotFound
		}
		values[i] = []byte(str)
	}

	if err := s.client.ZAdd(ctx, s.lruKey(), redis.Z{Score: now(), Member: key}).Err(); err != nil {
		s.logger.Debug("failed to touch entry", "key", key, "error", err)
	}
	return store.NewMemorySnapshot(values), nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	s.mu.Lock()
	_, busy := s.editing[key]
	s.mu.Unlock()
	if busy {
		return store.ErrEditInProgress
	}

	old := s.storedSize(ctx, key)

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.entryKey(key))
		pipe.ZRem(ctx, s.lruKey(), key)
		pipe.HDel(ctx, s.sizesKey(), key)
		return nil
	})
	if err != nil {
		s.handleError(err)
		return fmt.Errorf("redisstore: remove %s: %w", key, err)
	}
	s.clearError()
	s.size.Add(-old)

	if del.Val() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Flush re-reads the recorded sizes and evicts least recently used entries
// until the store fits MaxSizeBytes. Redis persistence itself is the
// server's concern.
func (s *Store) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	if err := s.reconcileSize(ctx); err != nil {
		s.handleError(err)
		return fmt.Errorf("redisstore: flush: %w", err)
	}

	for s.opts.MaxSizeBytes > 0 && s.size.Load() > s.opts.MaxSizeBytes {
		popped, err := s.client.ZPopMin(ctx, s.lruKey(), 1).Result()
		if err != nil {
			s.handleError(err)
			return fmt.Errorf("redisstore: trim: %w", err)
		}
		if len(popped) == 0 {
			break
		}
		key, _ := popped[0].Member.(string)
		old := s.storedSize(ctx, key)
		if err := s.client.Del(ctx, s.entryKey(key)).Err(); err != nil {
			s.handleError(err)
			return fmt.Errorf("redisstore: trim %s: %w", key, err)
		}
		s.client.HDel(ctx, s.sizesKey(), key)
		s.size.Add(-old)
		s.logger.Debug("evicted entry", "key", key, "size", old)
	}

	s.clearError()
	return nil
}

func (s *Store) Size() int64    { return s.size.Load() }
func (s *Store) MaxSize() int64 { return s.opts.MaxSizeBytes }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// LastError returns the most recent Redis error and when it happened.
func (s *Store) LastError() (error, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError, s.lastErrorTime
}

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.connected.Store(false)

	close(s.stopCh)
	s.wg.Wait()

	return s.client.Close()
}

func (s *Store) reconcileSize(ctx context.Context) error {
	sizes, err := s.client.HVals(ctx, s.sizesKey()).Result()
	if err != nil {
		return err
	}
	var total int64
	for _, v := range sizes {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			total += n
		}
	}
	s.size.Store(total)
	return nil
}

func (s *Store) storedSize(ctx context.Context, key string) int64 {
	n, err := s.client.HGet(ctx, s.sizesKey(), key).Int64()
	if err != nil {
		return 0
	}
	return n
}

// forget drops bookkeeping for an entry whose hash is gone.
func (s *Store) forget(ctx context.Context, key string) {
	old := s.storedSize(ctx, key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.entryKey(key))
		pipe.ZRem(ctx, s.lruKey(), key)
		pipe.HDel(ctx, s.sizesKey(), key)
		return nil
	})
	if err == nil {
		s.size.Add(-old)
	}
}

func (s *Store) commit(ctx context.Context, key string, values [][]byte) error {
	var total int64
	args := make([]any, 0, 2*len(values))
	for i, v := range values {
		args = append(args, s.fields[i], v)
		total += int64(len(v))
	}
	old := s.storedSize(ctx, key)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		ek := s.entryKey(key)
		pipe.Del(ctx, ek)
		pipe.HSet(ctx, ek, args...)
		if s.cfg.TTL > 0 {
			pipe.Expire(ctx, ek, s.cfg.TTL)
		}
		pipe.ZAdd(ctx, s.lruKey(), redis.Z{Score: now(), Member: key})
		pipe.HSet(ctx, s.sizesKey(), key, total)
		return nil
	})
	if err != nil {
		s.handleError(err)
		return fmt.Errorf("redisstore: commit %s: %w", key, err)
	}
	s.clearError()
	s.size.Add(total - old)
	return nil
}

func (s *Store) release(key string) {
	s.mu.Lock()
	delete(s.editing, key)
	s.mu.Unlock()
}

func (s *Store) healthCheckWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.performHealthCheck()
		}
	}
}

func (s *Store) performHealthCheck() {
	wasConnected := s.connected.Load()

	timeout := s.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		if wasConnected {
			s.logger.Warn("Redis health check failed", "error", err)
			s.setError(err)
		}
		return
	}

	if !wasConnected {
		s.connected.Store(true)
		s.errorCount.Store(0)
		s.logger.Info("Redis connection restored via health check")
	}
}

func (s *Store) handleError(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	s.mu.Lock()
	s.lastError = err
	s.lastErrorTime = time.Now()
	s.mu.Unlock()

	count := s.errorCount.Add(1)
	if count >= disconnectErrorThreshold && s.connected.CompareAndSwap(true, false) {
		s.logger.Warn("Redis marked as disconnected after errors",
			"error_count", count,
			"last_error", err,
		)
	}
}

func (s *Store) clearError() {
	s.errorCount.Store(0)
	if s.connected.CompareAndSwap(false, true) && !s.closed.Load() {
		s.logger.Info("Redis connection restored")
	}
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastErrorTime = time.Now()
	s.connected.Store(false)
}

func now() float64 {
	return float64(time.Now().UnixNano())
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Named  = (*Store)(nil)
	_ store.Pinger = (*Store)(nil)
)
