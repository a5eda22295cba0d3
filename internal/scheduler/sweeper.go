package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/config"
	"github.com/leozw/mantenapp/internal/core"
)

type Store interface {
	PruneSiteData(ctx context.Context, cutoff time.Time) (int64, error)
	ActiveAlertsBySeverity(ctx context.Context, userID string) ([]core.SeverityCount, error)
}

type Recorder interface {
	RecordSweep(pruned int64)
	SetActiveAlerts(counts []core.SeverityCount)
}

// Sweeper runs periodic maintenance: it prunes old telemetry and refreshes
// the active alert gauges.
type Sweeper struct {
	store     Store
	recorder  Recorder
	logger    *zap.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewSweeper(store Store, recorder Recorder, logger *zap.Logger, cfg config.WorkerConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Sweeper{
		store:     store,
		recorder:  recorder,
		logger:    logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention),
	)

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping sweeper")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single maintenance pass. Each step is independent; a
// failure is logged and the next step still runs.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.retention)

	pruned, err := s.store.PruneSiteData(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune site data", zap.Time("cutoff", cutoff), zap.Error(err))
	} else {
		s.recorder.RecordSweep(pruned)
		if pruned > 0 {
			s.logger.Info("Pruned site data", zap.Int64("rows", pruned), zap.Time("cutoff", cutoff))
		}
	}

	counts, err := s.store.ActiveAlertsBySeverity(ctx, "")
	if err != nil {
		s.logger.Error("Failed to count active alerts", zap.Error(err))
		return
	}
	s.recorder.SetActiveAlerts(counts)
}
