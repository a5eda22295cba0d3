package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/config"
)

// RemoteWriter pushes samples to a Prometheus remote write endpoint such as
// Mimir, under a single tenant.
type RemoteWriter struct {
	config *config.MimirConfig
	client *http.Client
}

// NewRemoteWriter returns nil when no endpoint is configured.
func NewRemoteWriter(cfg config.MimirConfig) *RemoteWriter {
	if cfg.URL == "" {
		return nil
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.TenantHeader == "" {
		cfg.TenantHeader = "X-Scope-OrgID"
	}
	return &RemoteWriter{
		config: &cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// StartRemoteWrite periodically gathers the collector's registry and pushes it
// until ctx is cancelled.
func (c *Collector) StartRemoteWrite(ctx context.Context, w *RemoteWriter, logger *zap.Logger) {
	if w == nil {
		return
	}

	interval := w.config.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.WriteGathered(ctx, c.registry); err != nil {
				logger.Warn("Remote write failed", zap.Error(err))
			}
		}
	}
}

func (w *RemoteWriter) WriteGathered(ctx context.Context, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	return w.Push(ctx, familiesToTimeSeries(mfs, time.Now()))
}

// Push sends series in batches of the configured size.
func (w *RemoteWriter) Push(ctx context.Context, series []prompb.TimeSeries) error {
	for i := 0; i < len(series); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(series) {
			end = len(series)
		}
		if err := w.sendBatch(ctx, series[i:end]); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}
	return nil
}

func familiesToTimeSeries(mfs []*dto.MetricFamily, now time.Time) []prompb.TimeSeries {
	var series []prompb.TimeSeries
	ts := now.UnixMilli()

	sample := func(name string, labels []prompb.Label, value float64, extra ...prompb.Label) prompb.TimeSeries {
		all := make([]prompb.Label, 0, len(labels)+len(extra)+1)
		all = append(all, prompb.Label{Name: "__name__", Value: name})
		all = append(all, labels...)
		all = append(all, extra...)
		return prompb.TimeSeries{
			Labels:  all,
			Samples: []prompb.Sample{{Value: value, Timestamp: ts}},
		}
	}

	for _, mf := range mfs {
		name := mf.GetName()
		for _, m := range mf.Metric {
			labels := make([]prompb.Label, 0, len(m.Label))
			for _, l := range m.Label {
				labels = append(labels, prompb.Label{Name: l.GetName(), Value: l.GetValue()})
			}

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				series = append(series, sample(name, labels, m.Counter.GetValue()))
			case dto.MetricType_GAUGE:
				series = append(series, sample(name, labels, m.Gauge.GetValue()))
			case dto.MetricType_UNTYPED:
				series = append(series, sample(name, labels, m.Untyped.GetValue()))
			case dto.MetricType_HISTOGRAM:
				hist := m.Histogram
				for _, bucket := range hist.Bucket {
					series = append(series, sample(name+"_bucket", labels,
						float64(bucket.GetCumulativeCount()),
						prompb.Label{Name: "le", Value: fmt.Sprintf("%g", bucket.GetUpperBound())},
					))
				}
				series = append(series,
					sample(name+"_bucket", labels, float64(hist.GetSampleCount()), prompb.Label{Name: "le", Value: "+Inf"}),
					sample(name+"_sum", labels, hist.GetSampleSum()),
					sample(name+"_count", labels, float64(hist.GetSampleCount())),
				)
			}
		}
	}

	return series
}

func (w *RemoteWriter) sendBatch(ctx context.Context, series []prompb.TimeSeries) error {
	req := &prompb.WriteRequest{Timeseries: series}

	data, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL+"/api/v1/push", bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	httpReq.Header.Set(w.config.TenantHeader, w.config.TenantID)
	if w.config.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+w.config.AuthToken)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote write failed with status %d", resp.StatusCode)
	}
	return nil
}
