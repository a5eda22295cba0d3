package probe

import (
	"context"

	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/metrics"
	"github.com/leozw/mantenapp/internal/storage/redis"
)

// Sink publishes finished probes. Every destination is optional and a failing
// destination never blocks the others.
type Sink struct {
	cache     *redis.Client
	collector *metrics.Collector
	writer    *metrics.RemoteWriter
	logger    *zap.Logger
}

func NewSink(cache *redis.Client, collector *metrics.Collector, writer *metrics.RemoteWriter, logger *zap.Logger) *Sink {
	return &Sink{
		cache:     cache,
		collector: collector,
		writer:    writer,
		logger:    logger,
	}
}

func (s *Sink) ProbeCompleted(ctx context.Context, probe *core.SiteProbe) {
	if s.collector != nil {
		s.collector.RecordProbe(probe)
	}
	if err := s.writer.PushProbe(ctx, probe); err != nil {
		s.logger.Warn("Failed to push probe metrics", zap.String("client_id", probe.ClientID), zap.Error(err))
	}
	if err := s.cache.CacheProbe(ctx, probe.ClientID, probe); err != nil {
		s.logger.Warn("Failed to cache probe", zap.String("client_id", probe.ClientID), zap.Error(err))
	}
}
