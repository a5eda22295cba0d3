package alerts

import (
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/leozw/mantenapp/internal/config"
)

// Rules carries the thresholds the engine compares telemetry against.
type Rules struct {
	MaxLoadTimeSeconds  float64
	MinPHPMemoryLimitMB float64
	// LatestWordPress is the newest known core release. Nil disables the
	// outdated-core rule.
	LatestWordPress        *version.Version
	MaxMinorReleasesBehind int
}

func DefaultRules() Rules {
	return Rules{
		MaxLoadTimeSeconds:     3.0,
		MinPHPMemoryLimitMB:    256,
		LatestWordPress:        version.Must(version.NewVersion("6.8")),
		MaxMinorReleasesBehind: 2,
	}
}

func RulesFromConfig(cfg config.AlertsConfig) (Rules, error) {
	rules := DefaultRules()
	if cfg.MaxLoadTimeSeconds > 0 {
		rules.MaxLoadTimeSeconds = cfg.MaxLoadTimeSeconds
	}
	if cfg.MinPHPMemoryLimitMB > 0 {
		rules.MinPHPMemoryLimitMB = cfg.MinPHPMemoryLimitMB
	}
	if cfg.MaxMinorReleasesBehind > 0 {
		rules.MaxMinorReleasesBehind = cfg.MaxMinorReleasesBehind
	}
	if cfg.LatestWordPressVersion != "" {
		v, err := version.NewVersion(cfg.LatestWordPressVersion)
		if err != nil {
			return Rules{}, fmt.Errorf("invalid latest wordpress version %q: %w", cfg.LatestWordPressVersion, err)
		}
		rules.LatestWordPress = v
	}
	return rules, nil
}

// minorReleasesBehind counts WordPress feature releases between current and
// latest. Feature releases run X.0 through X.9 before the major bumps, so
// 5.9 -> 6.0 is one release.
func minorReleasesBehind(current, latest *version.Version) int {
	return releaseIndex(latest) - releaseIndex(current)
}

func releaseIndex(v *version.Version) int {
	seg := v.Segments()
	major, minor := 0, 0
	if len(seg) > 0 {
		major = seg[0]
	}
	if len(seg) > 1 {
		minor = seg[1]
	}
	return major*10 + minor
}
