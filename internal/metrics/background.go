package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

const defaultPublishInterval = 10 * time.Second

// HealthSampler returns the current cache health. A nil result skips the
// publish.
type HealthSampler func() *types.PublisherHealthMetrics

// BackgroundPublisher samples cache health on an interval and hands it to a
// Publisher. A final sample is published when the loop stops so the last
// state before Close reaches the agent.
type BackgroundPublisher struct {
	publisher types.Publisher
	sample    HealthSampler
	logger    *slog.Logger
	interval  time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	published atomic.Int64
	failures  atomic.Int64
}

func NewBackgroundPublisher(publisher types.Publisher, interval time.Duration, sample HealthSampler, logger *slog.Logger) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultPublishInterval
	}
	return &BackgroundPublisher{
		publisher: publisher,
		sample:    sample,
		interval:  interval,
		logger:    logger.With("component", "metrics-background"),
		done:      make(chan struct{}),
	}
}

// Start launches the loop. Calling it more than once has no effect.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		ctx, b.cancel = context.WithCancel(ctx)
		go b.loop(ctx)
		b.logger.Info("background metrics publisher started", "interval", b.interval)
	})
}

// Stop cancels the loop and waits for the final publish. It is safe to call
// without Start and more than once.
func (b *BackgroundPublisher) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel == nil {
			close(b.done)
			return
		}
		b.cancel()
		<-b.done
		b.logger.Info("background metrics publisher stopped",
			"published", b.published.Load(), "failures", b.failures.Load())
	})
}

func (b *BackgroundPublisher) loop(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.PublishNow()
			return
		case <-ticker.C:
			b.PublishNow()
		}
	}
}

// PublishNow samples and publishes once on the calling goroutine. A panic in
// the sampler or the publisher is logged and counted, never propagated.
func (b *BackgroundPublisher) PublishNow() {
	if err := b.publishOnce(); err != nil {
		b.failures.Add(1)
		b.logger.Error("metrics publish failed", "error", err)
	}
}

func (b *BackgroundPublisher) publishOnce() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if b.sample == nil {
		return nil
	}
	m := b.sample()
	if m == nil {
		return nil
	}
	b.publisher.PublishHealthMetrics(m)
	b.published.Add(1)
	return nil
}

// Published returns how many samples have been handed to the publisher.
func (b *BackgroundPublisher) Published() int64 { return b.published.Load() }

// Failures returns how many publishes panicked.
func (b *BackgroundPublisher) Failures() int64 { return b.failures.Load() }
