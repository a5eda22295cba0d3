package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/prometheus/prompb"

	"github.com/leozw/mantenapp/internal/core"
)

// PushProbe sends the outcome of a site probe as point-in-time series.
func (w *RemoteWriter) PushProbe(ctx context.Context, probe *core.SiteProbe) error {
	if w == nil {
		return nil
	}
	return w.Push(ctx, probeTimeSeries(probe, time.Now()))
}

func probeTimeSeries(probe *core.SiteProbe, now time.Time) []prompb.TimeSeries {
	ts := now.UnixMilli()
	point := func(name string, value float64, extra ...prompb.Label) prompb.TimeSeries {
		labels := []prompb.Label{
			{Name: "__name__", Value: name},
			{Name: "client_id", Value: probe.ClientID},
			{Name: "host", Value: probe.Host},
		}
		return prompb.TimeSeries{
			Labels:  append(labels, extra...),
			Samples: []prompb.Sample{{Value: value, Timestamp: ts}},
		}
	}

	series := []prompb.TimeSeries{
		point("mantenapp_site_health_score", float64(probe.HealthScore)),
	}

	for checkType, result := range probe.Checks {
		checkLabel := prompb.Label{Name: "check_type", Value: checkType}

		success := 0.0
		if result.Success {
			success = 1.0
		}
		series = append(series,
			point("mantenapp_site_check_success", success, checkLabel),
			point("mantenapp_site_check_duration_seconds", result.ResponseTime/1000, checkLabel),
		)

		if !result.Success || result.Details == nil {
			continue
		}

		switch checkType {
		case "ssl":
			var details core.SSLCheckDetails
			if err := json.Unmarshal(result.Details, &details); err == nil {
				series = append(series, point("mantenapp_site_ssl_days_remaining", float64(details.DaysToExpiry)))
			}
		case "http":
			var details core.HTTPCheckDetails
			if err := json.Unmarshal(result.Details, &details); err == nil {
				series = append(series, point("mantenapp_site_http_status_code", float64(details.StatusCode)))
			}
		case "dns":
			var details core.DNSCheckDetails
			if err := json.Unmarshal(result.Details, &details); err == nil {
				series = append(series, point("mantenapp_site_dns_record_count", float64(len(details.ARecords)),
					prompb.Label{Name: "record_type", Value: "A"}))
			}
		}
	}

	return series
}
