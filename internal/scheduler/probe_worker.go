package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/queue"
)

const popTimeout = 5 * time.Second

type JobSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.Job, error)
}

type SiteProber interface {
	Probe(ctx context.Context, clientID, siteURL string) (*core.SiteProbe, error)
}

// ProbeSink receives every finished probe: cache, metrics and remote write.
type ProbeSink interface {
	ProbeCompleted(ctx context.Context, probe *core.SiteProbe)
}

// ProbeWorker consumes queued probe jobs.
type ProbeWorker struct {
	id     int
	jobs   JobSource
	prober SiteProber
	sink   ProbeSink
	logger *zap.Logger
}

func NewProbeWorker(id int, jobs JobSource, prober SiteProber, sink ProbeSink, logger *zap.Logger) *ProbeWorker {
	return &ProbeWorker{
		id:     id,
		jobs:   jobs,
		prober: prober,
		sink:   sink,
		logger: logger.With(zap.Int("worker_id", id)),
	}
}

func (w *ProbeWorker) Start(ctx context.Context) {
	w.logger.Info("Probe worker started")

	for {
		if ctx.Err() != nil {
			w.logger.Info("Probe worker stopped")
			return
		}

		job, err := w.jobs.Pop(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) || ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to pop probe job", zap.Error(err))
			// Back off so a broken Redis does not spin the loop.
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		w.processJob(ctx, job)
	}
}

func (w *ProbeWorker) processJob(ctx context.Context, job *queue.Job) {
	if job.Type != queue.JobTypeSiteProbe {
		w.logger.Warn("Unknown job type", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return
	}

	start := time.Now()
	probe, err := w.prober.Probe(ctx, job.ClientID, job.SiteURL)
	if err != nil {
		w.logger.Error("Probe failed",
			zap.String("job_id", job.ID),
			zap.String("client_id", job.ClientID),
			zap.Error(err),
		)
		return
	}

	w.sink.ProbeCompleted(ctx, probe)

	w.logger.Info("Probe completed",
		zap.String("job_id", job.ID),
		zap.String("client_id", job.ClientID),
		zap.Int("health_score", probe.HealthScore),
		zap.Duration("duration", time.Since(start)),
	)
}
