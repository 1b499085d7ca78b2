package pixcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LavishGent/pixcache/internal/cache"
	"github.com/LavishGent/pixcache/internal/config"
	"github.com/LavishGent/pixcache/internal/metrics"
	"github.com/LavishGent/pixcache/internal/metrics/datadog"
	"github.com/LavishGent/pixcache/internal/types"
)

// New creates a cache with the default configuration. Without
// WithDiskLocation the local disk tier has nowhere to live and is disabled.
func New(opts ...ManagerOption) (Cache, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromConfig creates a cache from cfg. When metrics and DataDog are both
// enabled, health gauges are published in the background until Close.
func NewFromConfig(cfg *config.Config, opts ...ManagerOption) (Cache, error) {
	managerOpts := &ManagerOptions{}
	for _, opt := range opts {
		opt(managerOpts)
	}
	logger := cache.SlogLogger(managerOpts.Logger)

	var publisher types.Publisher
	if cfg.Metrics.Enabled && cfg.Metrics.DataDog.Enabled {
		pub, err := datadog.NewPublisher(&cfg.Metrics.DataDog, logger)
		if err != nil {
			return nil, fmt.Errorf("pixcache: datadog publisher: %w", err)
		}
		publisher = pub
		if managerOpts.Metrics == nil {
			managerOpts.Metrics = metrics.NewTracker(metrics.WithPublisher(pub))
		}
	}

	m, err := cache.NewManager(cfg, managerOpts)
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		return nil, err
	}

	c := &client{Manager: m, publisher: publisher}
	if publisher != nil {
		interval := cfg.Metrics.PublishInterval
		if s := cfg.Metrics.DataDog.PublishIntervalSeconds; s > 0 {
			interval = time.Duration(s) * time.Second
		}
		c.background = metrics.NewBackgroundPublisher(publisher, interval, m.PublisherHealth, logger)
		c.background.Start(context.Background())
	}
	return c, nil
}

// NewFromFile creates a cache from a JSON config file. PIXCACHE_* and DD_*
// environment variables override the file.
func NewFromFile(path string, opts ...ManagerOption) (Cache, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewMemoryOnly creates a cache without a disk tier.
func NewMemoryOnly(opts ...ManagerOption) (Cache, error) {
	cfg := config.DefaultConfig()
	cfg.Disk.Enabled = false
	return NewFromConfig(cfg, opts...)
}

// Config returns a default configuration that can be modified before creating a cache.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests. Its disk tier
// is the in-process bigcache backend.
func TestConfig() *config.Config {
	return config.ForTesting()
}

// client owns the background publisher alongside the manager.
type client struct {
	*cache.Manager
	publisher  types.Publisher
	background *metrics.BackgroundPublisher
	closeOnce  sync.Once
}

func (c *client) Close() error {
	return c.CloseWithTimeout(cache.DefaultShutdownTimeout)
}

func (c *client) CloseWithTimeout(timeout time.Duration) error {
	if c.background != nil {
		c.background.Stop()
	}
	err := c.Manager.CloseWithTimeout(timeout)
	c.closeOnce.Do(func() {
		if c.publisher != nil {
			err = errors.Join(err, c.publisher.Close())
		}
	})
	return err
}

var _ Cache = (*client)(nil)
