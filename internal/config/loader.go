package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PIXCACHE_MEMORY_ENABLED"); v != "" {
		cfg.Memory.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIXCACHE_MEMORY_MAX_SIZE_BYTES"); v != "" {
		cfg.Memory.MaxSizeBytes = parseInt64(v, cfg.Memory.MaxSizeBytes)
	}
	if v := os.Getenv("PIXCACHE_MEMORY_HEAP_RATIO"); v != "" {
		cfg.Memory.HeapRatio = parseFloat(v, cfg.Memory.HeapRatio)
	}

	if v := os.Getenv("PIXCACHE_DISK_ENABLED"); v != "" {
		cfg.Disk.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIXCACHE_DISK_BACKEND"); v != "" {
		cfg.Disk.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("PIXCACHE_DISK_LOCATION"); v != "" {
		cfg.Disk.Location = v
	}
	if v := os.Getenv("PIXCACHE_DISK_MAX_SIZE_BYTES"); v != "" {
		cfg.Disk.MaxSizeBytes = parseInt64(v, cfg.Disk.MaxSizeBytes)
	}
	if v := os.Getenv("PIXCACHE_DISK_FLUSH_DELAY"); v != "" {
		cfg.Disk.FlushDelay = parseDuration(v, cfg.Disk.FlushDelay)
	}
	if v := os.Getenv("PIXCACHE_DISK_LOCK_TIMEOUT"); v != "" {
		cfg.Disk.LockTimeout = parseDuration(v, cfg.Disk.LockTimeout)
	}
	if v := os.Getenv("PIXCACHE_DISK_COMPRESSION"); v != "" {
		cfg.Disk.Compression = parseBool(v)
	}
	if v := os.Getenv("PIXCACHE_DISK_WRITE_BYTES_PER_SEC"); v != "" {
		cfg.Disk.WriteBytesPerSec = parseInt64(v, cfg.Disk.WriteBytesPerSec)
	}

	if v := os.Getenv("PIXCACHE_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("PIXCACHE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = NewSecretString(v)
	}
	if v := os.Getenv("PIXCACHE_REDIS_DB"); v != "" {
		cfg.Redis.DB = parseInt(v, cfg.Redis.DB)
	}
	if v := os.Getenv("PIXCACHE_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("PIXCACHE_REDIS_TTL"); v != "" {
		cfg.Redis.TTL = parseDuration(v, cfg.Redis.TTL)
	}
	if v := os.Getenv("PIXCACHE_REDIS_ENABLE_TLS"); v != "" {
		cfg.Redis.EnableTLS = parseBool(v)
	}

	if v := os.Getenv("PIXCACHE_RECLAIM_POLICY"); v != "" {
		cfg.Reclaim.Policy = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("PIXCACHE_RECLAIM_GRACE_PERIOD"); v != "" {
		cfg.Reclaim.GracePeriod = parseDuration(v, cfg.Reclaim.GracePeriod)
	}
	if v := os.Getenv("PIXCACHE_REUSE_POOL_ENABLED"); v != "" {
		cfg.ReusePool.Enabled = parseBool(v)
	}

	if v := os.Getenv("PIXCACHE_KEY_ALLOWED_SCHEMES"); v != "" {
		cfg.KeyValidation.AllowedSchemes = strings.Split(strings.ReplaceAll(v, " ", ""), ",")
	}

	if v := os.Getenv("PIXCACHE_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIXCACHE_RETRY_ENABLED"); v != "" {
		cfg.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIXCACHE_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}
	if v := os.Getenv("PIXCACHE_BULKHEAD_ENABLED"); v != "" {
		cfg.Bulkhead.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIXCACHE_BULKHEAD_MAX_CONCURRENT"); v != "" {
		cfg.Bulkhead.MaxConcurrent = parseInt(v, cfg.Bulkhead.MaxConcurrent)
	}

	if v := os.Getenv("PIXCACHE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}

	// DD_* wins over the PIXCACHE_* equivalents.
	if v := os.Getenv("PIXCACHE_DATADOG_ENABLED"); v != "" && os.Getenv("DD_AGENT_HOST") == "" {
		cfg.Metrics.DataDog.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIXCACHE_DATADOG_PREFIX"); v != "" && os.Getenv("DD_SERVICE") == "" {
		cfg.Metrics.DataDog.Prefix = v
	}
}

// Validate checks if the configuration is valid.
//
//nolint:gocyclo // One branch per setting
func (c *Config) Validate() error {
	if c.Memory.Enabled {
		if c.Memory.HeapRatio < 0 {
			return fmt.Errorf("memory.heapRatio must not be negative")
		}
		if c.Memory.HeapRatio == 0 && c.Memory.MaxSizeBytes <= 0 {
			return fmt.Errorf("memory.maxSizeBytes must be positive")
		}
	}

	if c.Disk.Enabled {
		switch c.Disk.Backend {
		case BackendLocal, BackendBigcache:
		case BackendRedis:
			if c.Redis.Address == "" {
				return fmt.Errorf("redis.address is required when disk.backend is redis")
			}
			if c.Redis.PoolSize <= 0 {
				return fmt.Errorf("redis.poolSize must be positive")
			}
		default:
			return fmt.Errorf("disk.backend %q is not one of local, redis, bigcache", c.Disk.Backend)
		}
		if c.Disk.MaxSizeBytes <= 0 {
			return fmt.Errorf("disk.maxSizeBytes must be positive")
		}
		if c.Disk.MaxEntrySize <= 0 {
			return fmt.Errorf("disk.maxEntrySize must be positive")
		}
		if c.Disk.FlushDelay < 0 {
			return fmt.Errorf("disk.flushDelay must not be negative")
		}
		if c.Disk.LockTimeout < 0 {
			return fmt.Errorf("disk.lockTimeout must not be negative")
		}
		if c.Disk.WriteBytesPerSec < 0 {
			return fmt.Errorf("disk.writeBytesPerSec must not be negative")
		}
	}

	if _, ok := types.ParsePolicy(c.Reclaim.Policy); !ok {
		return fmt.Errorf("reclaim.policy %q is not one of disabled, eager, lazy", c.Reclaim.Policy)
	}
	if c.Reclaim.GracePeriod < 0 {
		return fmt.Errorf("reclaim.gracePeriod must not be negative")
	}

	if c.ReusePool.Enabled && c.ReusePool.MaxEntries <= 0 {
		return fmt.Errorf("reusePool.maxEntries must be positive")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
		}
		if c.CircuitBreaker.OpenDuration <= 0 {
			return fmt.Errorf("circuitBreaker.openDuration must be positive")
		}
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("retry.maxAttempts must be positive")
		}
	}

	if c.Bulkhead.Enabled {
		if c.Bulkhead.MaxConcurrent <= 0 {
			return fmt.Errorf("bulkhead.maxConcurrent must be positive")
		}
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseInt64(s string, defaultVal int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseFloat(s string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
