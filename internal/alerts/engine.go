// Package alerts turns site telemetry into alerts.
//
// Engine is a pure function of a telemetry snapshot: it never touches storage
// and may return several drafts of the same type. Processor persists drafts
// while keeping at most one active alert per (client, type).
package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/leozw/mantenapp/internal/core"
)

type Engine struct {
	rules Rules
}

func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

type rule func(s *core.TelemetrySnapshot) (core.AlertDraft, bool)

// Derive evaluates every rule independently and returns one draft per rule
// that matched, in rule order. Missing telemetry sections skip their rules.
func (e *Engine) Derive(s *core.TelemetrySnapshot) []core.AlertDraft {
	if s == nil {
		return nil
	}

	rules := []rule{
		e.coreUpdate,
		e.pluginUpdates,
		e.vulnerablePlugins,
		e.missingSSL,
		e.slowLoadTime,
		e.lowMemoryLimit,
		e.outdatedCore,
	}

	var drafts []core.AlertDraft
	for _, r := range rules {
		if d, ok := r(s); ok {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

func (e *Engine) coreUpdate(s *core.TelemetrySnapshot) (core.AlertDraft, bool) {
	if s.Core == nil || len(s.Core.AvailableUpdates) == 0 {
		return core.AlertDraft{}, false
	}
	next := s.Core.AvailableUpdates[0]
	return core.AlertDraft{
		Type:     core.AlertTypeCoreUpdate,
		Severity: core.SeverityHigh,
		Title: fmt.Sprintf("WordPress update available: core running %s, %s available",
			versionLabel(s.Core.CurrentVersion), versionLabel(next.Version)),
		Message: fmt.Sprintf("WordPress %s is available. The site is running version %s.",
			versionLabel(next.Version), versionLabel(s.Core.CurrentVersion)),
		Metadata: core.JSONB{
			"currentVersion":   s.Core.CurrentVersion,
			"availableVersion": next.Version,
			"isSecurityUpdate": next.IsSecurityUpdate,
		},
	}, true
}

func (e *Engine) pluginUpdates(s *core.TelemetrySnapshot) (core.AlertDraft, bool) {
	if s.Plugins == nil || len(s.Plugins.Updatable) == 0 {
		return core.AlertDraft{}, false
	}
	updatable := s.Plugins.Updatable
	names := make([]string, 0, len(updatable))
	plugins := make([]interface{}, 0, len(updatable))
	for _, p := range updatable {
		names = append(names, p.Name)
		plugins = append(plugins, map[string]interface{}{
			"name":       p.Name,
			"version":    p.Version,
			"newVersion": p.NewVersion,
		})
	}
	joined := strings.Join(names, ", ")
	return core.AlertDraft{
		Type:     core.AlertTypePluginUpdate,
		Severity: core.SeverityMedium,
		Title:    fmt.Sprintf("%d plugin update(s) available: %s", len(updatable), joined),
		Message:  fmt.Sprintf("The following plugins have updates available: %s.", joined),
		Metadata: core.JSONB{
			"count":   len(updatable),
			"plugins": plugins,
		},
	}, true
}

func (e *Engine) vulnerablePlugins(s *core.TelemetrySnapshot) (core.AlertDraft, bool) {
	if s.Security == nil || len(s.Security.VulnerablePlugins) == 0 {
		return core.AlertDraft{}, false
	}
	vulnerable := s.Security.VulnerablePlugins
	return core.AlertDraft{
		Type:     core.AlertTypeSecurity,
		Severity: core.SeverityCritical,
		Title:    fmt.Sprintf("%d plugin(s) with known vulnerabilities detected", len(vulnerable)),
		Message: fmt.Sprintf("Plugins with known vulnerabilities: %s. Update or remove them.",
			strings.Join(vulnerable, ", ")),
		Metadata: core.JSONB{
			"count":             len(vulnerable),
			"vulnerablePlugins": append([]string(nil), vulnerable...),
		},
	}, true
}

func (e *Engine) missingSSL(s *core.TelemetrySnapshot) (core.AlertDraft, bool) {
	if s.Security == nil || s.Security.HasSSL == nil || *s.Security.HasSSL {
		return core.AlertDraft{}, false
	}
	return core.AlertDraft{
		Type:     core.AlertTypeSecurity,
		Severity: core.SeverityHigh,
		Title:    "SSL not configured on site",
		Message:  "The site does not serve a valid SSL configuration.",
		Metadata: core.JSONB{
			"securityIssue": "no_ssl",
			"hasSSL":        false,
		},
	}, true
}

func (e *Engine) slowLoadTime(s *core.TelemetrySnapshot) (core.AlertDraft, bool) {
	if s.Performance == nil || s.Performance.AverageLoadTimeSeconds == nil {
		return core.AlertDraft{}, false
	}
	loadTime := *s.Performance.AverageLoadTimeSeconds
	if loadTime <= e.rules.MaxLoadTimeSeconds {
		return core.AlertDraft{}, false
	}
	return core.AlertDraft{
		Type:     core.AlertTypePerformance,
		Severity: core.SeverityMedium,
		Title:    fmt.Sprintf("Average load time is %ss", formatNumber(loadTime)),
		Message: fmt.Sprintf("The average page load time is %s seconds, above the %s second threshold.",
			formatNumber(loadTime), formatNumber(e.rules.MaxLoadTimeSeconds)),
		Metadata: core.JSONB{
			"averageLoadTimeSeconds": loadTime,
			"thresholdSeconds":       e.rules.MaxLoadTimeSeconds,
		},
	}, true
}

func (e *Engine) lowMemoryLimit(s *core.TelemetrySnapshot) (core.AlertDraft, bool) {
	if s.Performance == nil || s.Performance.PHPMemoryLimitMB == nil {
		return core.AlertDraft{}, false
	}
	limit := *s.Performance.PHPMemoryLimitMB
	if limit >= e.rules.MinPHPMemoryLimitMB {
		return core.AlertDraft{}, false
	}
	return core.AlertDraft{
		Type:     core.AlertTypePerformance,
		Severity: core.SeverityMedium,
		Title: fmt.Sprintf("PHP memory limit is %sMB; recommend ≥%sMB",
			formatNumber(limit), formatNumber(e.rules.MinPHPMemoryLimitMB)),
		Message: fmt.Sprintf("The PHP memory limit is %sMB. At least %sMB is recommended.",
			formatNumber(limit), formatNumber(e.rules.MinPHPMemoryLimitMB)),
		Metadata: core.JSONB{
			"phpMemoryLimitMB":   limit,
			"recommendedLimitMB": e.rules.MinPHPMemoryLimitMB,
		},
	}, true
}

func (e *Engine) outdatedCore(s *core.TelemetrySnapshot) (core.AlertDraft, bool) {
	if s.Core == nil || s.Core.CurrentVersion == "" || e.rules.LatestWordPress == nil {
		return core.AlertDraft{}, false
	}
	current, err := version.NewVersion(s.Core.CurrentVersion)
	if err != nil {
		return core.AlertDraft{}, false
	}
	behind := minorReleasesBehind(current, e.rules.LatestWordPress)
	if behind <= e.rules.MaxMinorReleasesBehind {
		return core.AlertDraft{}, false
	}
	latest := e.rules.LatestWordPress.Original()
	return core.AlertDraft{
		Type:     core.AlertTypeSecurity,
		Severity: core.SeverityMedium,
		Title:    fmt.Sprintf("WordPress %s is outdated; recommended %s", s.Core.CurrentVersion, latest),
		Message: fmt.Sprintf("WordPress %s is %d feature releases behind %s.",
			s.Core.CurrentVersion, behind, latest),
		Metadata: core.JSONB{
			"currentVersion":      s.Core.CurrentVersion,
			"recommendedVersion":  latest,
			"minorReleasesBehind": behind,
		},
	}, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// versionLabel renders a version the site did not report as "unknown".
func versionLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
