package alerts

import (
	"testing"

	"github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leozw/mantenapp/internal/config"
	"github.com/leozw/mantenapp/internal/core"
)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func testEngine() *Engine {
	return NewEngine(DefaultRules())
}

func typesOf(drafts []core.AlertDraft) []core.AlertType {
	out := make([]core.AlertType, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, d.Type)
	}
	return out
}

func TestDeriveEmptySnapshot(t *testing.T) {
	e := testEngine()
	assert.Empty(t, e.Derive(&core.TelemetrySnapshot{}))
	assert.Empty(t, e.Derive(nil))
}

func TestDeriveSectionsWithoutFindings(t *testing.T) {
	e := testEngine()
	snap := &core.TelemetrySnapshot{
		Core:        &core.CoreTelemetry{CurrentVersion: "6.8"},
		Plugins:     &core.PluginTelemetry{},
		Security:    &core.SecurityTelemetry{HasSSL: boolPtr(true)},
		Performance: &core.PerformanceTelemetry{},
	}
	assert.Empty(t, e.Derive(snap))
}

func TestDeriveCoreUpdate(t *testing.T) {
	e := testEngine()
	snap := &core.TelemetrySnapshot{
		Core: &core.CoreTelemetry{
			CurrentVersion:   "6.4",
			AvailableUpdates: []core.CoreUpdate{{Version: "6.5", IsSecurityUpdate: false}},
		},
	}
	// Pin the baseline so 6.4 is not considered outdated.
	e.rules.LatestWordPress = version.Must(version.NewVersion("6.5"))

	drafts := e.Derive(snap)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, core.AlertTypeCoreUpdate, d.Type)
	assert.Equal(t, core.SeverityHigh, d.Severity)
	assert.Equal(t, "WordPress update available: core running 6.4, 6.5 available", d.Title)
	assert.Equal(t, "6.4", d.Metadata["currentVersion"])
	assert.Equal(t, "6.5", d.Metadata["availableVersion"])
	assert.Equal(t, false, d.Metadata["isSecurityUpdate"])
}

func TestDeriveCoreUpdateWithoutVersions(t *testing.T) {
	e := testEngine()
	snap := &core.TelemetrySnapshot{
		Core:     &core.CoreTelemetry{AvailableUpdates: []core.CoreUpdate{{IsSecurityUpdate: true}}},
		Security: &core.SecurityTelemetry{HasSSL: boolPtr(false)},
	}

	drafts := e.Derive(snap)
	require.Len(t, drafts, 2)
	assert.Equal(t, core.AlertTypeCoreUpdate, drafts[0].Type)
	assert.Equal(t, "WordPress update available: core running unknown, unknown available", drafts[0].Title)
	assert.Equal(t, "", drafts[0].Metadata["currentVersion"])
	assert.Equal(t, true, drafts[0].Metadata["isSecurityUpdate"])
	assert.Equal(t, "SSL not configured on site", drafts[1].Title)
}

func TestDerivePluginUpdates(t *testing.T) {
	e := testEngine()
	snap := &core.TelemetrySnapshot{
		Plugins: &core.PluginTelemetry{
			Updatable: []core.PluginUpdate{{Name: "A"}, {Name: "B"}},
		},
	}

	drafts := e.Derive(snap)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, core.AlertTypePluginUpdate, d.Type)
	assert.Equal(t, core.SeverityMedium, d.Severity)
	assert.Equal(t, "2 plugin update(s) available: A, B", d.Title)
	assert.Contains(t, d.Message, "A, B")
	assert.Equal(t, 2, d.Metadata["count"])
}

func TestDeriveSecurityRulesBothFire(t *testing.T) {
	e := testEngine()
	snap := &core.TelemetrySnapshot{
		Security: &core.SecurityTelemetry{
			HasSSL:            boolPtr(false),
			VulnerablePlugins: []string{"x"},
		},
	}

	drafts := e.Derive(snap)
	require.Len(t, drafts, 2)
	assert.Equal(t, []core.AlertType{core.AlertTypeSecurity, core.AlertTypeSecurity}, typesOf(drafts))

	assert.Equal(t, core.SeverityCritical, drafts[0].Severity)
	assert.Equal(t, "1 plugin(s) with known vulnerabilities detected", drafts[0].Title)
	assert.Equal(t, core.SeverityHigh, drafts[1].Severity)
	assert.Equal(t, "SSL not configured on site", drafts[1].Title)
}

func TestDeriveSSLAbsentIsNotAFinding(t *testing.T) {
	e := testEngine()
	snap := &core.TelemetrySnapshot{Security: &core.SecurityTelemetry{}}
	assert.Empty(t, e.Derive(snap))
}

func TestDeriveLoadTimeBoundary(t *testing.T) {
	tests := []struct {
		name     string
		loadTime float64
		want     bool
	}{
		{name: "below threshold", loadTime: 1.2, want: false},
		{name: "exactly threshold", loadTime: 3.0, want: false},
		{name: "just above threshold", loadTime: 3.01, want: true},
	}

	e := testEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &core.TelemetrySnapshot{
				Performance: &core.PerformanceTelemetry{AverageLoadTimeSeconds: floatPtr(tt.loadTime)},
			}
			drafts := e.Derive(snap)
			if !tt.want {
				assert.Empty(t, drafts)
				return
			}
			require.Len(t, drafts, 1)
			assert.Equal(t, core.AlertTypePerformance, drafts[0].Type)
			assert.Equal(t, core.SeverityMedium, drafts[0].Severity)
			assert.Equal(t, "Average load time is 3.01s", drafts[0].Title)
			assert.Equal(t, 3.01, drafts[0].Metadata["averageLoadTimeSeconds"])
		})
	}
}

func TestDeriveMemoryLimitBoundary(t *testing.T) {
	tests := []struct {
		name  string
		limit float64
		want  bool
	}{
		{name: "exactly threshold", limit: 256, want: false},
		{name: "above threshold", limit: 512, want: false},
		{name: "just below threshold", limit: 255, want: true},
	}

	e := testEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &core.TelemetrySnapshot{
				Performance: &core.PerformanceTelemetry{PHPMemoryLimitMB: floatPtr(tt.limit)},
			}
			drafts := e.Derive(snap)
			if !tt.want {
				assert.Empty(t, drafts)
				return
			}
			require.Len(t, drafts, 1)
			assert.Equal(t, core.AlertTypePerformance, drafts[0].Type)
			assert.Equal(t, "PHP memory limit is 255MB; recommend ≥256MB", drafts[0].Title)
		})
	}
}

func TestDeriveOutdatedCore(t *testing.T) {
	tests := []struct {
		name    string
		current string
		want    bool
		behind  int
	}{
		{name: "current release", current: "6.8", want: false},
		{name: "patch release of latest", current: "6.8.1", want: false},
		{name: "two releases behind", current: "6.6.2", want: false},
		{name: "three releases behind", current: "6.5", want: true, behind: 3},
		{name: "across a major bump", current: "5.9", want: true, behind: 9},
		{name: "unparseable version", current: "trunk", want: false},
	}

	e := testEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &core.TelemetrySnapshot{Core: &core.CoreTelemetry{CurrentVersion: tt.current}}
			drafts := e.Derive(snap)
			if !tt.want {
				assert.Empty(t, drafts)
				return
			}
			require.Len(t, drafts, 1)
			d := drafts[0]
			assert.Equal(t, core.AlertTypeSecurity, d.Type)
			assert.Equal(t, core.SeverityMedium, d.Severity)
			assert.Equal(t, "WordPress "+tt.current+" is outdated; recommended 6.8", d.Title)
			assert.Equal(t, tt.behind, d.Metadata["minorReleasesBehind"])
		})
	}
}

func TestDeriveOutdatedCoreDisabled(t *testing.T) {
	rules := DefaultRules()
	rules.LatestWordPress = nil
	e := NewEngine(rules)

	snap := &core.TelemetrySnapshot{Core: &core.CoreTelemetry{CurrentVersion: "4.0"}}
	assert.Empty(t, e.Derive(snap))
}

func TestDeriveAllRules(t *testing.T) {
	e := testEngine()
	snap := &core.TelemetrySnapshot{
		Core: &core.CoreTelemetry{
			CurrentVersion:   "6.1",
			AvailableUpdates: []core.CoreUpdate{{Version: "6.8", IsSecurityUpdate: true}},
		},
		Plugins: &core.PluginTelemetry{Updatable: []core.PluginUpdate{{Name: "akismet"}}},
		Security: &core.SecurityTelemetry{
			HasSSL:            boolPtr(false),
			VulnerablePlugins: []string{"revslider"},
		},
		Performance: &core.PerformanceTelemetry{
			AverageLoadTimeSeconds: floatPtr(4.5),
			PHPMemoryLimitMB:       floatPtr(128),
		},
	}

	drafts := e.Derive(snap)
	assert.Equal(t, []core.AlertType{
		core.AlertTypeCoreUpdate,
		core.AlertTypePluginUpdate,
		core.AlertTypeSecurity,
		core.AlertTypeSecurity,
		core.AlertTypePerformance,
		core.AlertTypePerformance,
		core.AlertTypeSecurity,
	}, typesOf(drafts))
}

func TestRulesFromConfig(t *testing.T) {
	rules, err := RulesFromConfig(config.AlertsConfig{
		MaxLoadTimeSeconds:     5,
		LatestWordPressVersion: "6.9",
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, rules.MaxLoadTimeSeconds)
	assert.Equal(t, 256.0, rules.MinPHPMemoryLimitMB)
	assert.Equal(t, 2, rules.MaxMinorReleasesBehind)
	assert.Equal(t, "6.9", rules.LatestWordPress.Original())

	_, err = RulesFromConfig(config.AlertsConfig{LatestWordPressVersion: "not a version"})
	assert.Error(t, err)
}
