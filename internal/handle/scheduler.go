package handle

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/LavishGent/pixcache/internal/types"
)

// DefaultGracePeriod is used when a lazy scheduler is given no grace period.
const DefaultGracePeriod = 2 * time.Second

// Config configures a Scheduler.
type Config struct {
	Policy      types.Policy
	GracePeriod time.Duration
	Logger      *slog.Logger
	// OnReclaim is called after every destructive reclamation.
	OnReclaim func(origin types.Origin)
}

// Scheduler holds the reclaim policy shared by a family of handles and runs
// their grace timers.
type Scheduler struct {
	logger    *slog.Logger
	onReclaim func(types.Origin)
	grace     time.Duration
	policy    types.Policy

	pending   atomic.Int64
	reclaimed atomic.Int64
}

// NewScheduler creates a scheduler. An unset policy means PolicyLazy.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Policy == 0 {
		cfg.Policy = types.PolicyLazy
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:    logger.With("component", "handle"),
		onReclaim: cfg.OnReclaim,
		grace:     cfg.GracePeriod,
		policy:    cfg.Policy,
	}
}

func (s *Scheduler) Policy() types.Policy {
	return s.policy
}

func (s *Scheduler) GracePeriod() time.Duration {
	return s.grace
}

// Pending returns the number of handles waiting out their grace period.
func (s *Scheduler) Pending() int64 {
	return s.pending.Load()
}

// Reclaimed returns the number of destructive reclamations so far.
func (s *Scheduler) Reclaimed() int64 {
	return s.reclaimed.Load()
}

func (s *Scheduler) schedule(fn func()) *time.Timer {
	s.pending.Add(1)
	return time.AfterFunc(s.grace, fn)
}

func (s *Scheduler) unschedule(t *time.Timer) {
	if t.Stop() {
		s.pending.Add(-1)
	}
}

func (s *Scheduler) fired() {
	s.pending.Add(-1)
}

func (s *Scheduler) didReclaim(origin types.Origin) {
	s.reclaimed.Add(1)
	if s.onReclaim != nil {
		s.onReclaim(origin)
	}
}
