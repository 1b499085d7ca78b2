// Package config provides configuration management for pixcache.
package config

import (
	"math"
	"runtime/debug"
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

// MaxHeapRatio caps Memory.HeapRatio so the cache can never claim the whole heap.
const MaxHeapRatio = 0.75

// Disk backends.
const (
	BackendLocal    = "local"
	BackendRedis    = "redis"
	BackendBigcache = "bigcache"
)

// SecretString is a string type that redacts its value when marshaled to JSON.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Config contains all configuration for the pixcache manager.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Memory         MemoryConfig         `json:"memory"`
	Disk           DiskConfig           `json:"disk"`
	Redis          RedisConfig          `json:"redis"`
	Reclaim        ReclaimConfig        `json:"reclaim"`
	ReusePool      ReusePoolConfig      `json:"reusePool"`
	Metrics        MetricsConfig        `json:"metrics"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Retry          RetryConfig          `json:"retry"`
	Bulkhead       BulkheadConfig       `json:"bulkhead"`
	KeyValidation  KeyValidationConfig  `json:"keyValidation"`
}

// KeyValidationConfig contains configuration for cache key validation.
type KeyValidationConfig struct {
	ReservedPatterns  []string `json:"reservedPatterns"`
	AllowedSchemes    []string `json:"allowedSchemes"`
	MaxKeyLength      int      `json:"maxKeyLength"`
	Enabled           bool     `json:"enabled"`
	AllowEmpty        bool     `json:"allowEmpty"`
	AllowControlChars bool     `json:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:      c.MaxKeyLength,
		AllowEmpty:        c.AllowEmpty,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPatterns:  c.ReservedPatterns,
		AllowedSchemes:    c.AllowedSchemes,
	}
}

// MemoryConfig sizes the in-memory tier.
//
// When HeapRatio is set the budget is that fraction of HeapLimitBytes (or of
// the runtime memory limit when HeapLimitBytes is zero) and MaxSizeBytes is
// ignored.
type MemoryConfig struct {
	MaxSizeBytes   int64   `json:"maxSizeBytes"`
	HeapLimitBytes int64   `json:"heapLimitBytes"`
	HeapRatio      float64 `json:"heapRatio"`
	Enabled        bool    `json:"enabled"`
}

// ResolveMaxSize returns the memory budget in bytes.
func (c MemoryConfig) ResolveMaxSize() int64 {
	if c.HeapRatio <= 0 {
		return c.MaxSizeBytes
	}

	ratio := math.Min(c.HeapRatio, MaxHeapRatio)
	limit := c.HeapLimitBytes
	if limit <= 0 {
		// A negative input reads the limit without changing it.
		limit = debug.SetMemoryLimit(-1)
	}
	if limit <= 0 || limit == math.MaxInt64 {
		return c.MaxSizeBytes
	}
	return int64(float64(limit) * ratio)
}

// DiskConfig contains configuration for the persistent tier.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type DiskConfig struct {
	Backend  string `json:"backend"`
	Location string `json:"location"`

	MaxSizeBytes     int64 `json:"maxSizeBytes"`
	MaxEntrySize     int64 `json:"maxEntrySize"`
	WriteBytesPerSec int64 `json:"writeBytesPerSec"`
	SchemaVersion    int   `json:"schemaVersion"`

	// FlushDelay is the debounce window between the last write and a flush.
	FlushDelay  time.Duration `json:"flushDelay"`
	LockTimeout time.Duration `json:"lockTimeout"`

	Enabled     bool `json:"enabled"`
	Compression bool `json:"compression"`
}

// RedisConfig contains configuration for the Redis disk backend.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	TTL                 time.Duration `json:"ttl"`
	DialTimeout         time.Duration `json:"dialTimeout"`
	ReadTimeout         time.Duration `json:"readTimeout"`
	WriteTimeout        time.Duration `json:"writeTimeout"`
	PoolTimeout         time.Duration `json:"poolTimeout"`
	HealthCheckInterval time.Duration `json:"healthCheckInterval"`
	Password            SecretString  `json:"password"`
	Address             string        `json:"address"`
	KeyPrefix           string        `json:"keyPrefix"`
	DB                  int           `json:"db"`
	PoolSize            int           `json:"poolSize"`
	MinIdleConns        int           `json:"minIdleConns"`
	EnableTLS           bool          `json:"enableTLS"`
	TLSSkipVerify       bool          `json:"tlsSkipVerify"`
}

// ReclaimConfig controls when unreferenced resources are released.
type ReclaimConfig struct {
	Policy      string        `json:"policy"`
	GracePeriod time.Duration `json:"gracePeriod"`
}

// ReusePoolConfig controls the pool of reclaimed buffers offered to the decoder.
type ReusePoolConfig struct {
	MaxEntries int  `json:"maxEntries"`
	Enabled    bool `json:"enabled"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker pattern.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// RetryConfig contains configuration for the retry pattern.
//
// BudgetPerSecond caps retries across all callers; zero means unlimited.
type RetryConfig struct {
	InitialBackoff  time.Duration `json:"initialBackoff"`
	MaxBackoff      time.Duration `json:"maxBackoff"`
	Multiplier      float64       `json:"multiplier"`
	BudgetPerSecond float64       `json:"budgetPerSecond"`
	BudgetBurst     int           `json:"budgetBurst"`
	MaxAttempts     int           `json:"maxAttempts"`
	Enabled         bool          `json:"enabled"`
	Jitter          bool          `json:"jitter"`
}

// BulkheadConfig contains configuration for the bulkhead pattern.
type BulkheadConfig struct {
	Enabled        bool          `json:"enabled"`
	MaxConcurrent  int           `json:"maxConcurrent"`
	MaxQueue       int           `json:"maxQueue"`
	AcquireTimeout time.Duration `json:"acquireTimeout"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration `json:"publishInterval"`
	DataDog         DataDogConfig `json:"datadog"`
	Enabled         bool          `json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags                   []string `json:"tags"`
	AgentHost              string   `json:"agentHost"`
	Prefix                 string   `json:"prefix"`
	Port                   int      `json:"port"`
	PublishIntervalSeconds int      `json:"publishIntervalSeconds"`
	Enabled                bool     `json:"enabled"`
}
