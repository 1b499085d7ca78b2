package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

// LoggingPublisher writes every metric as a debug record. Health snapshots
// and events are logged at info so they show up without debug logging.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

func (p *LoggingPublisher) record(kind, name string, value slog.Value, tags []string) {
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, kind,
		slog.String("name", name),
		slog.Attr{Key: "value", Value: value},
		slog.Any("tags", p.mergeTags(tags)),
	)
}

func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.record("gauge", name, slog.Float64Value(value), tags)
}

func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.record("incr", name, slog.Int64Value(1), tags)
}

func (p *LoggingPublisher) Count(name string, value int64, tags ...string) {
	p.record("count", name, slog.Int64Value(value), tags)
}

func (p *LoggingPublisher) Histogram(name string, value float64, tags ...string) {
	p.record("histogram", name, slog.Float64Value(value), tags)
}

// Timing logs the duration in milliseconds.
func (p *LoggingPublisher) Timing(name string, d time.Duration, tags ...string) {
	p.record("timing", name, slog.Float64Value(float64(d)/float64(time.Millisecond)), tags)
}

func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	p.logger.Info("event",
		"title", title,
		"text", text,
		"alert_type", alertType,
		"tags", p.mergeTags(tags),
	)
}

func (p *LoggingPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}
	p.logger.LogAttrs(context.Background(), slog.LevelInfo, "health_metrics",
		slog.Group("memory",
			slog.Int64("used_bytes", m.MemoryUsedBytes),
			slog.Int64("limit_bytes", m.MemoryLimitBytes),
			slog.Float64("usage_pct", m.MemoryUsagePercentage),
			slog.Int64("entries", m.TotalEntries),
		),
		slog.Group("disk",
			slog.String("backend", m.DiskBackend),
			slog.Int64("used_bytes", m.DiskUsedBytes),
			slog.Int64("limit_bytes", m.DiskLimitBytes),
			slog.Bool("available", m.DiskAvailable),
		),
		slog.Float64("hit_ratio", m.HitRatio),
		slog.Float64("avg_latency_ms", m.AverageLatencyMs),
		slog.Int64("reclaims", m.Reclaims),
	)
}

func (p *LoggingPublisher) Close() error { return nil }

func (p *LoggingPublisher) mergeTags(tags []string) []string {
	switch {
	case len(tags) == 0:
		return p.baseTags
	case len(p.baseTags) == 0:
		return tags
	}
	return append(append(make([]string, 0, len(p.baseTags)+len(tags)), p.baseTags...), tags...)
}

var _ types.Publisher = (*LoggingPublisher)(nil)
