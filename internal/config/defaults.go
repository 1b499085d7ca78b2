package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Memory: MemoryConfig{
			Enabled:      true,
			MaxSizeBytes: 3 * 1024 * 1024, // 3MB
		},
		Disk: DiskConfig{
			Enabled:          true,
			Backend:          BackendLocal,
			Location:         "",
			MaxSizeBytes:     10 * 1024 * 1024, // 10MB
			MaxEntrySize:     10 * 1024 * 1024,
			SchemaVersion:    1,
			FlushDelay:       5 * time.Second,
			LockTimeout:      10 * time.Second,
			Compression:      false,
			WriteBytesPerSec: 0,
		},
		Redis: RedisConfig{
			Address:             "localhost:6379",
			Password:            SecretString{},
			DB:                  0,
			KeyPrefix:           "pixcache:",
			TTL:                 24 * time.Hour,
			PoolSize:            20,
			MinIdleConns:        2,
			DialTimeout:         5 * time.Second,
			ReadTimeout:         3 * time.Second,
			WriteTimeout:        3 * time.Second,
			PoolTimeout:         4 * time.Second,
			EnableTLS:           false,
			TLSSkipVerify:       false,
			HealthCheckInterval: 5 * time.Second,
		},
		Reclaim: ReclaimConfig{
			Policy:      "lazy",
			GracePeriod: 2 * time.Second,
		},
		ReusePool: ReusePoolConfig{
			Enabled:    true,
			MaxEntries: 32,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenDuration:        30 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		Retry: RetryConfig{
			Enabled:         true,
			MaxAttempts:     3,
			InitialBackoff:  50 * time.Millisecond,
			MaxBackoff:      1 * time.Second,
			Multiplier:      2.0,
			Jitter:          true,
			BudgetPerSecond: 10,
			BudgetBurst:     20,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        true,
			MaxConcurrent:  16,
			MaxQueue:       64,
			AcquireTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				Enabled:                false,
				AgentHost:              "127.0.0.1",
				Port:                   8125,
				Prefix:                 "pixcache",
				Tags:                   []string{},
				PublishIntervalSeconds: 30,
			},
		},
		KeyValidation: KeyValidationConfig{
			Enabled:           true,
			MaxKeyLength:      2048,
			AllowEmpty:        false,
			AllowControlChars: false,
			AllowWhitespace:   false,
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
// The disk tier uses the volatile bigcache backend so tests never touch the
// filesystem, and debounce windows are short.
func ForTesting() *Config {
	return &Config{
		Memory: MemoryConfig{
			Enabled:      true,
			MaxSizeBytes: 1024 * 1024, // 1MB
		},
		Disk: DiskConfig{
			Enabled:       true,
			Backend:       BackendBigcache,
			MaxSizeBytes:  4 * 1024 * 1024,
			MaxEntrySize:  1024 * 1024,
			SchemaVersion: 1,
			FlushDelay:    50 * time.Millisecond,
			LockTimeout:   500 * time.Millisecond,
		},
		Redis: RedisConfig{
			Address:             "localhost:6379",
			KeyPrefix:           "pixcache-test:",
			TTL:                 1 * time.Minute,
			PoolSize:            10,
			MinIdleConns:        1,
			DialTimeout:         1 * time.Second,
			ReadTimeout:         1 * time.Second,
			WriteTimeout:        1 * time.Second,
			PoolTimeout:         1 * time.Second,
			HealthCheckInterval: 0,
		},
		Reclaim: ReclaimConfig{
			Policy:      "lazy",
			GracePeriod: 50 * time.Millisecond,
		},
		ReusePool: ReusePoolConfig{
			Enabled:    true,
			MaxEntries: 8,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			FailureThreshold:    3,
			SuccessThreshold:    1,
			OpenDuration:        1 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		Retry: RetryConfig{
			Enabled:        false,
			MaxAttempts:    1,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			Multiplier:     2.0,
			Jitter:         false,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        false,
			MaxConcurrent:  10,
			MaxQueue:       5,
			AcquireTimeout: 50 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 1 * time.Second,
		},
		KeyValidation: KeyValidationConfig{
			Enabled:           true,
			MaxKeyLength:      2048,
			AllowEmpty:        false,
			AllowControlChars: false,
			AllowWhitespace:   false,
		},
	}
}

// ForTestingWithRedis returns a test config whose disk tier is Redis at addr.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Disk.Backend = BackendRedis
	cfg.Redis.Address = addr
	return cfg
}
