package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/pixcache/internal/bitmap"
	"github.com/LavishGent/pixcache/internal/config"
	"github.com/LavishGent/pixcache/internal/handle"
	"github.com/LavishGent/pixcache/internal/metrics"
	"github.com/LavishGent/pixcache/internal/pool"
	"github.com/LavishGent/pixcache/internal/resilience"
	"github.com/LavishGent/pixcache/internal/store"
	"github.com/LavishGent/pixcache/internal/store/bigcachestore"
	"github.com/LavishGent/pixcache/internal/store/diskstore"
	"github.com/LavishGent/pixcache/internal/store/redisstore"
	"github.com/LavishGent/pixcache/internal/types"
)

// DefaultShutdownTimeout is the default timeout for shutting down the cache manager.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultBackgroundOpTimeout is the default timeout for background operations.
const DefaultBackgroundOpTimeout = 5 * time.Second

// acquireAttempts bounds how often Acquire reloads an entry that was
// reclaimed between load and acquire.
const acquireAttempts = 3

// Manager is the two-tier cache: a memory LRU of handles in front of a
// persistent disk layer, with a pool of reclaimed allocations for decoding.
type Manager struct {
	memory         MemoryLayer
	disk           types.DiskLayer
	reuse          *pool.Pool
	sched          *handle.Scheduler
	decoder        types.Decoder
	encoder        types.Encoder
	config         *config.Config
	metrics        types.MetricsRecorder
	logger         *slog.Logger
	keyValidator   *types.KeyValidator
	shutdownCancel context.CancelFunc
	shutdownCtx    context.Context
	sfGroup        singleflight.Group
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	closed         atomic.Bool
}

// NewManager creates a new cache manager with the given configuration and options.
//
//nolint:gocyclo // Configuration initialization requires multiple conditional checks
func NewManager(cfg *config.Config, opts *types.ManagerOptions) (*Manager, error) {
	if opts == nil {
		opts = &types.ManagerOptions{}
	}

	logger := SlogLogger(opts.Logger)

	if opts.DiskLocation != "" {
		cfg.Disk.Location = opts.DiskLocation
	}
	if opts.Policy != 0 {
		cfg.Reclaim.Policy = opts.Policy.String()
	}
	if opts.GracePeriod > 0 {
		cfg.Reclaim.GracePeriod = opts.GracePeriod
	}
	if opts.RedisAddress != "" {
		cfg.Redis.Address = opts.RedisAddress
	}
	if !opts.RedisPassword.IsEmpty() {
		cfg.Redis.Password = opts.RedisPassword
	}
	if opts.DisableDisk {
		cfg.Disk.Enabled = false
	}
	if opts.DisableResilience {
		cfg.CircuitBreaker.Enabled = false
		cfg.Retry.Enabled = false
		cfg.Bulkhead.Enabled = false
	}

	policy, ok := types.ParsePolicy(cfg.Reclaim.Policy)
	if !ok {
		return nil, fmt.Errorf("cache: unknown reclaim policy %q", cfg.Reclaim.Policy)
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	m := &Manager{
		config:         cfg,
		logger:         logger.With("component", "cache-manager"),
		metrics:        opts.Metrics,
		decoder:        opts.Decoder,
		encoder:        opts.Encoder,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	if m.metrics == nil {
		m.metrics = metrics.NewNoOpTracker()
	}
	if m.decoder == nil || m.encoder == nil {
		codec := bitmap.DefaultCodec()
		if m.decoder == nil {
			m.decoder = codec
		}
		if m.encoder == nil {
			m.encoder = codec
		}
	}

	if cfg.KeyValidation.Enabled {
		m.keyValidator = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	m.sched = handle.NewScheduler(handle.Config{
		Policy:      policy,
		GracePeriod: cfg.Reclaim.GracePeriod,
		Logger:      logger,
		OnReclaim:   m.metrics.RecordReclaim,
	})

	if cfg.ReusePool.Enabled {
		m.reuse = pool.New(cfg.ReusePool.MaxEntries, logger)
	}

	if cfg.Memory.Enabled {
		m.memory = NewMemoryCache(cfg.Memory.ResolveMaxSize(), m.reuse, m.metrics, logger)
	} else {
		m.memory = NewDisabledMemoryCache()
	}

	m.disk = m.openDisk(cfg, opts.Store, logger)

	m.logger.Info("Cache manager ready",
		"memory_max_bytes", m.memory.MaxSize(),
		"disk", m.disk.Name(),
		"policy", policy.String(),
		"grace_period", m.sched.GracePeriod(),
	)
	return m, nil
}

// openDisk builds the disk layer. A store that cannot be opened disables
// the tier instead of failing the manager.
func (m *Manager) openDisk(cfg *config.Config, st store.Store, logger *slog.Logger) types.DiskLayer {
	if !cfg.Disk.Enabled {
		return NewDisabledDiskCache()
	}

	if st == nil {
		var err error
		st, err = buildStore(cfg, logger)
		if err != nil {
			m.logger.Warn("Disk store unavailable, disk cache disabled",
				"backend", cfg.Disk.Backend,
				"error", err,
			)
			return NewDisabledDiskCache()
		}
	}

	name := cfg.Disk.Backend
	if named, ok := st.(store.Named); ok {
		name = named.Name()
	}

	var runner resilience.Runner = resilience.NewDisabledPolicy()
	if cfg.CircuitBreaker.Enabled || cfg.Retry.Enabled || cfg.Bulkhead.Enabled {
		runner = resilience.NewPolicy(name, cfg)
	}

	return NewDiskCache(DiskOptions{
		Store:       st,
		Runner:      runner,
		Metrics:     m.metrics,
		Logger:      logger,
		FlushDelay:  cfg.Disk.FlushDelay,
		LockTimeout: cfg.Disk.LockTimeout,
	})
}

func buildStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Disk.Backend {
	case config.BackendLocal, "":
		if cfg.Disk.Location == "" {
			return nil, errors.New("no disk location configured")
		}
		loc := filepath.Clean(cfg.Disk.Location)
		return diskstore.Open(osfs.New(filepath.Dir(loc)), filepath.Base(loc), diskstore.Options{
			Logger:           logger,
			SchemaVersion:    cfg.Disk.SchemaVersion,
			ValuesPerEntry:   1,
			MaxSizeBytes:     cfg.Disk.MaxSizeBytes,
			Compression:      cfg.Disk.Compression,
			WriteBytesPerSec: cfg.Disk.WriteBytesPerSec,
		})
	case config.BackendRedis:
		return redisstore.New(cfg.Redis, redisstore.Options{
			Logger:         logger,
			ValuesPerEntry: 1,
			MaxSizeBytes:   cfg.Disk.MaxSizeBytes,
		})
	case config.BackendBigcache:
		return bigcachestore.New(context.Background(), bigcachestore.Options{
			Logger:         logger,
			ValuesPerEntry: 1,
			MaxSizeBytes:   cfg.Disk.MaxSizeBytes,
		})
	default:
		return nil, fmt.Errorf("unknown disk backend %q", cfg.Disk.Backend)
	}
}

// Get returns the handle for key from memory, falling back to disk. The
// handle is not acquired; use Acquire when the resource will be used.
func (m *Manager) Get(ctx context.Context, key string) (*handle.Handle, error) {
	h, err := m.GetFromMemory(ctx, key)
	if err == nil || !types.IsCacheMiss(err) {
		return h, err
	}
	return m.GetFromDisk(ctx, key)
}

// GetFromMemory consults the memory tier only.
func (m *Manager) GetFromMemory(ctx context.Context, key string) (*handle.Handle, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return nil, err
	}

	start := time.Now()
	h, ok := m.memory.Get(key)
	if ok && !h.IsValid() {
		m.logger.Warn("Dropping reclaimed handle found in memory", "key", key)
		m.memory.Remove(key)
		ok = false
	}
	if !ok {
		m.metrics.RecordMiss(types.LayerMemory, key, time.Since(start))
		return nil, types.ErrCacheMiss
	}
	m.metrics.RecordHit(types.LayerMemory, key, time.Since(start))
	return h, nil
}

// GetFromDisk reads key from the disk tier, decodes it into a new handle and
// promotes it into memory. Concurrent loads of one key share a single read.
//
// It blocks on I/O and must not be called from a latency-sensitive goroutine.
func (m *Manager) GetFromDisk(ctx context.Context, key string, opts ...types.DecodeOption) (*handle.Handle, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return nil, err
	}

	options := types.ApplyDecodeOptions(opts...)
	sfKey := key
	if options.DisableReuse || options.SkipPromotion {
		sfKey = fmt.Sprintf("%s\x00%t\x00%t", key, options.DisableReuse, options.SkipPromotion)
	}

	v, err, _ := m.sfGroup.Do(sfKey, func() (any, error) {
		return m.loadFromDisk(ctx, key, options)
	})
	if err != nil {
		return nil, err
	}
	return v.(*handle.Handle), nil
}

func (m *Manager) loadFromDisk(ctx context.Context, key string, options *types.DecodeOptions) (*handle.Handle, error) {
	data, err := m.disk.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	res, origin, err := m.decode(data, options)
	if err != nil {
		m.logger.Warn("Removing undecodable disk entry", "key", key, "error", err)
		m.metrics.RecordError(types.LayerDisk, "decode", err)
		m.runBackground(func(ctx context.Context) {
			if err := m.disk.Remove(ctx, key); err != nil {
				m.logger.Warn("Failed to remove undecodable disk entry", "key", key, "error", err)
			}
		})
		return nil, types.NewCacheError("GetFromDisk", key, types.LayerDisk, types.ErrCacheMiss)
	}

	h := handle.New(res, origin, m.sched)
	if !options.SkipPromotion {
		m.promote(key, h)
	}
	return h, nil
}

// decode bounds-decodes data, claims a pooled allocation of that shape and
// decodes into it.
func (m *Manager) decode(data []byte, options *types.DecodeOptions) (types.Resource, types.Origin, error) {
	width, height, err := m.decoder.DecodeBounds(data)
	if err != nil {
		return nil, types.OriginUnknown, fmt.Errorf("%w: %w", types.ErrDecodeFailed, err)
	}

	var reuse types.Resource
	if m.reuse != nil && !options.DisableReuse {
		reuse, _ = m.reuse.Claim(width, height)
	}

	res, err := m.decoder.Decode(data, reuse)
	if err != nil {
		if reuse != nil {
			reuse.Reclaim()
		}
		return nil, types.OriginUnknown, fmt.Errorf("%w: %w", types.ErrDecodeFailed, err)
	}

	origin := types.OriginFresh
	if reuse != nil {
		if res == reuse {
			origin = types.OriginReused
		} else {
			reuse.Reclaim()
		}
	}
	return res, origin, nil
}

func (m *Manager) promote(key string, h *handle.Handle) {
	if _, err := m.memory.Put(key, h); err != nil {
		m.logger.Debug("Not cached in memory", "key", key, "error", err)
	}
}

// Acquire returns the handle for key with one active use already recorded.
// The caller must call Release on it when done.
func (m *Manager) Acquire(ctx context.Context, key string) (*handle.Handle, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < acquireAttempts; attempt++ {
		start := time.Now()
		h, err := m.memory.GetAndAcquire(key)
		if err == nil {
			m.metrics.RecordHit(types.LayerMemory, key, time.Since(start))
			return h, nil
		}
		if !types.IsCacheMiss(err) && !types.IsReclaimed(err) {
			return nil, err
		}
		m.metrics.RecordMiss(types.LayerMemory, key, time.Since(start))

		h, err = m.GetFromDisk(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := h.Acquire(); err == nil {
			return h, nil
		}
		// Reclaimed between load and acquire; load again.
	}
	return nil, types.NewCacheError("Acquire", key, types.LayerMemory, types.ErrReclaimed)
}

// Put wraps res in a handle, caches it in memory and writes it through to
// disk. The handle is returned even when the disk write fails; the error
// then reports the disk failure.
func (m *Manager) Put(ctx context.Context, key string, res types.Resource) (*handle.Handle, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}
	if res == nil {
		return nil, types.ErrResourceRequired
	}
	if err := m.validateKey(key); err != nil {
		return nil, err
	}

	// Encode before the handle is published so an eviction cannot reclaim
	// the resource mid-encode.
	var buf bytes.Buffer
	var encErr error
	if m.IsDiskCacheEnabled() {
		if err := m.encoder.Encode(&buf, res); err != nil {
			encErr = types.NewCacheError("Put", key, types.LayerDisk, fmt.Errorf("%w: %w", types.ErrEncodeFailed, err))
		}
	}

	start := time.Now()
	h := handle.New(res, types.OriginUnknown, m.sched)
	if m.IsMemoryCacheEnabled() {
		m.promote(key, h)
		m.metrics.RecordSet(types.LayerMemory, key, int(h.SizeBytes()), time.Since(start))
	}

	if !m.IsDiskCacheEnabled() {
		return h, nil
	}
	if encErr != nil {
		m.metrics.RecordError(types.LayerDisk, "encode", encErr)
		return h, encErr
	}
	if limit := m.config.Disk.MaxEntrySize; limit > 0 && int64(buf.Len()) > limit {
		return h, types.NewCacheError("Put", key, types.LayerDisk, types.ErrEntryTooLarge)
	}
	return h, m.disk.Put(ctx, key, &buf)
}

// PutStream reads an encoded resource from r, decodes it into memory and
// stores the original bytes on disk. Input larger than Disk.MaxEntrySize is
// rejected before anything is stored.
func (m *Manager) PutStream(ctx context.Context, key string, r io.Reader, opts ...types.DecodeOption) (*handle.Handle, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return nil, err
	}

	data, err := readBounded(r, m.config.Disk.MaxEntrySize)
	if err != nil {
		return nil, types.NewCacheError("PutStream", key, types.LayerDisk, err)
	}

	options := types.ApplyDecodeOptions(opts...)
	res, origin, err := m.decode(data, options)
	if err != nil {
		m.metrics.RecordError(types.LayerMemory, "decode", err)
		return nil, types.NewCacheError("PutStream", key, types.LayerMemory, err)
	}

	start := time.Now()
	h := handle.New(res, origin, m.sched)
	if m.IsMemoryCacheEnabled() && !options.SkipPromotion {
		m.promote(key, h)
		m.metrics.RecordSet(types.LayerMemory, key, int(h.SizeBytes()), time.Since(start))
	}

	if !m.IsDiskCacheEnabled() {
		return h, nil
	}
	return h, m.disk.Put(ctx, key, bytes.NewReader(data))
}

func readBounded(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, types.ErrEntryTooLarge
	}
	return data, nil
}

// Remove deletes key from both tiers.
func (m *Manager) Remove(ctx context.Context, key string) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	if m.memory.Remove(key) != nil {
		m.metrics.RecordDelete(types.LayerMemory, key, time.Since(start))
	}
	return m.disk.Remove(ctx, key)
}

// TrimUnused drops every memory entry that is not actively used and returns
// the number removed.
func (m *Manager) TrimUnused(_ context.Context) int {
	if m.closed.Load() {
		return 0
	}
	return m.memory.TrimUnused()
}

// Contains reports whether key is in either tier.
func (m *Manager) Contains(ctx context.Context, key string) (bool, error) {
	if m.ContainsInMemory(key) {
		return true, nil
	}
	return m.ContainsInDisk(ctx, key)
}

func (m *Manager) ContainsInMemory(key string) bool {
	if m.closed.Load() || m.validateKey(key) != nil {
		return false
	}
	return m.memory.Contains(key)
}

// ContainsInDisk checks the disk tier. It blocks on I/O.
func (m *Manager) ContainsInDisk(ctx context.Context, key string) (bool, error) {
	if m.closed.Load() {
		return false, types.ErrClosed
	}
	if err := m.validateKey(key); err != nil {
		return false, err
	}
	return m.disk.Contains(ctx, key)
}

// Flush persists pending disk state now instead of after the debounce delay.
func (m *Manager) Flush(ctx context.Context) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	return m.disk.Flush(ctx)
}

func (m *Manager) IsMemoryCacheEnabled() bool {
	_, disabled := m.memory.(*DisabledMemoryCache)
	return !disabled
}

func (m *Manager) IsDiskCacheEnabled() bool {
	_, disabled := m.disk.(*DisabledDiskCache)
	return !disabled
}

// Health reports the state of both tiers and the reuse pool.
func (m *Manager) Health(_ context.Context) (*types.HealthMetrics, error) {
	health := &types.HealthMetrics{
		Timestamp: time.Now(),
	}

	memStats := m.memory.Stats()
	health.Memory = types.MemoryHealthMetrics{
		Status:          types.HealthStatusHealthy,
		Available:       m.memory.IsAvailable(),
		EntryCount:      m.memory.Len(),
		SizeBytes:       m.memory.Size(),
		MaxSizeBytes:    m.memory.MaxSize(),
		UsagePercentage: m.memory.UsagePercentage(),
		HitCount:        memStats.Hits,
		MissCount:       memStats.Misses,
		HitRatio:        m.memory.HitRatio(),
		EvictionCount:   memStats.Evictions,
	}
	if m.IsMemoryCacheEnabled() && !m.memory.IsAvailable() {
		health.Memory.Status = types.HealthStatusUnhealthy
	}

	diskStats := m.disk.Stats()
	health.Disk = types.DiskHealthMetrics{
		Status:        types.HealthStatusHealthy,
		Backend:       m.disk.Name(),
		Available:     m.disk.IsAvailable(),
		SizeBytes:     m.disk.SizeBytes(),
		MaxSizeBytes:  m.disk.MaxSizeBytes(),
		HitCount:      diskStats.Hits,
		MissCount:     diskStats.Misses,
		FlushCount:    diskStats.Flushes,
		LockTimeouts:  diskStats.LockTimeouts,
		LastFlushTime: diskStats.LastFlushTime,
		LastErrorTime: m.disk.LastErrorTime(),
	}
	if total := diskStats.Hits + diskStats.Misses; total > 0 {
		health.Disk.HitRatio = float64(diskStats.Hits) / float64(total)
	}
	if err := m.disk.LastError(); err != nil {
		health.Disk.LastError = err.Error()
	}
	if m.IsDiskCacheEnabled() && !health.Disk.Available {
		health.Disk.Status = types.HealthStatusUnhealthy
	}

	if m.reuse != nil {
		health.Pool = m.reuse.Stats()
	}

	switch {
	case m.closed.Load() || health.Memory.Status == types.HealthStatusUnhealthy:
		health.Status = types.HealthStatusUnhealthy
	case health.Disk.Status == types.HealthStatusUnhealthy:
		health.Status = types.HealthStatusDegraded
	default:
		health.Status = types.HealthStatusHealthy
	}

	return health, nil
}

// IsHealthy returns true if the cache is operational.
func (m *Manager) IsHealthy(ctx context.Context) bool {
	health, err := m.Health(ctx)
	return err == nil && health.Status != types.HealthStatusUnhealthy
}

// PublisherHealth summarizes the cache for a metrics publisher.
func (m *Manager) PublisherHealth() *types.PublisherHealthMetrics {
	hm := &types.PublisherHealthMetrics{
		MemoryUsedBytes:       m.memory.Size(),
		MemoryLimitBytes:      m.memory.MaxSize(),
		MemoryUsagePercentage: m.memory.UsagePercentage(),
		TotalEntries:          int64(m.memory.Len()),
		DiskBackend:           m.disk.Name(),
		DiskUsedBytes:         m.disk.SizeBytes(),
		DiskLimitBytes:        m.disk.MaxSizeBytes(),
		DiskAvailable:         m.disk.IsAvailable(),
		Reclaims:              m.sched.Reclaimed(),
	}
	if s, ok := m.metrics.(interface{ Snapshot() types.MetricsSnapshot }); ok {
		snap := s.Snapshot()
		hm.HitRatio = snap.TotalHitRatio()
		hm.AverageLatencyMs = snap.AvgLatencyMs
	}
	return hm
}

// Close releases all resources.
func (m *Manager) Close() error {
	return m.CloseWithTimeout(DefaultShutdownTimeout)
}

// CloseWithTimeout releases all resources with a configurable timeout.
// If background operations don't complete within the timeout, it returns
// ErrShutdownTimeout but still proceeds to close both tiers.
func (m *Manager) CloseWithTimeout(timeout time.Duration) error {
	// Holding bgMu keeps runBackground from adding to bgWg once Wait may have started.
	m.bgMu.Lock()
	if m.closed.Swap(true) {
		m.bgMu.Unlock()
		return nil
	}
	m.shutdownCancel()
	m.bgMu.Unlock()

	m.logger.Info("Closing cache manager, waiting for background operations", "timeout", timeout)

	done := make(chan struct{})
	go func() {
		m.bgWg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-time.After(timeout):
		m.logger.Warn("Shutdown timeout exceeded, proceeding with close", "timeout", timeout)
		errs = append(errs, types.ErrShutdownTimeout)
	}

	if err := m.memory.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.disk.Close(); err != nil {
		errs = append(errs, err)
	}
	if m.reuse != nil {
		m.reuse.Clear()
	}

	return errors.Join(errs...)
}

// runBackground executes fn in a goroutine tracked for graceful shutdown.
// fn gets a context derived from the shutdown context with a timeout. Nothing
// starts once the manager is closed.
func (m *Manager) runBackground(fn func(ctx context.Context)) {
	m.bgMu.Lock()
	if m.closed.Load() {
		m.bgMu.Unlock()
		return
	}
	m.bgWg.Add(1)
	m.bgMu.Unlock()

	go func() {
		defer m.bgWg.Done()
		ctx, cancel := context.WithTimeout(m.shutdownCtx, DefaultBackgroundOpTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (m *Manager) validateKey(key string) error {
	if m.keyValidator == nil {
		return nil
	}
	return m.keyValidator.Validate(key)
}

// SlogLogger returns l as a *slog.Logger, or slog.Default() when l is nil.
func SlogLogger(l types.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return slog.New(slogAdapter{logger: l})
}

//nolint:govet // Simple adapter struct - alignment optimization minimal
type slogAdapter struct {
	attrs  []slog.Attr
	logger types.Logger
	group  string // current group prefix from WithGroup calls
}

func (a slogAdapter) Enabled(context.Context, slog.Level) bool {
	return true
}

//nolint:gocritic // slog.Handler interface requires passing Record by value
func (a slogAdapter) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, 0, (len(a.attrs)+r.NumAttrs())*2)

	for _, attr := range a.attrs {
		args = append(args, attr.Key, attr.Value.Any())
	}
	r.Attrs(func(attr slog.Attr) bool {
		args = append(args, a.qualify(attr.Key), attr.Value.Any())
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		a.logger.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		a.logger.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		a.logger.Info(r.Message, args...)
	default:
		a.logger.Debug(r.Message, args...)
	}
	return nil
}

func (a slogAdapter) qualify(key string) string {
	if a.group == "" {
		return key
	}
	return a.group + "." + key
}

func (a slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(a.attrs), len(a.attrs)+len(attrs))
	copy(newAttrs, a.attrs)
	for _, attr := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: a.qualify(attr.Key), Value: attr.Value})
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  newAttrs,
		group:  a.group,
	}
}

func (a slogAdapter) WithGroup(name string) slog.Handler {
	newGroup := name
	if a.group != "" {
		newGroup = a.group + "." + name
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  a.attrs,
		group:  newGroup,
	}
}
