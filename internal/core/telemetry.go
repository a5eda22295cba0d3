package core

// TelemetrySnapshot is one bundle of facts reported by a monitored WordPress
// site. Every section is optional: a nil section means "not reported this
// cycle", never "known good".
type TelemetrySnapshot struct {
	SiteInfo    *SiteInfo             `json:"siteInfo,omitempty"`
	Core        *CoreTelemetry        `json:"core,omitempty"`
	Plugins     *PluginTelemetry      `json:"plugins,omitempty"`
	Themes      []InstalledPackage    `json:"themes,omitempty" binding:"omitempty,dive"`
	Users       *UserCounts           `json:"users,omitempty"`
	Content     *ContentCounts        `json:"content,omitempty"`
	Security    *SecurityTelemetry    `json:"security,omitempty"`
	Performance *PerformanceTelemetry `json:"performance,omitempty"`
}

type SiteInfo struct {
	Name         string `json:"name,omitempty" binding:"omitempty,max=255"`
	URL          string `json:"url,omitempty" binding:"omitempty,url"`
	PHPVersion   string `json:"phpVersion,omitempty"`
	MySQLVersion string `json:"mysqlVersion,omitempty"`
	ThemeName    string `json:"themeName,omitempty"`
	Multisite    *bool  `json:"multisite,omitempty"`
}

type CoreTelemetry struct {
	CurrentVersion   string       `json:"currentVersion,omitempty"`
	AvailableUpdates []CoreUpdate `json:"availableUpdates,omitempty" binding:"omitempty,dive"`
}

type CoreUpdate struct {
	Version          string `json:"version,omitempty"`
	IsSecurityUpdate bool   `json:"isSecurityUpdate"`
}

type PluginTelemetry struct {
	Installed []InstalledPackage `json:"installed,omitempty" binding:"omitempty,dive"`
	Updatable []PluginUpdate     `json:"updatable,omitempty" binding:"omitempty,dive"`
}

type PluginUpdate struct {
	Name       string `json:"name" binding:"required"`
	Version    string `json:"version,omitempty"`
	NewVersion string `json:"newVersion,omitempty"`
}

type InstalledPackage struct {
	Name     string `json:"name" binding:"required"`
	Version  string `json:"version,omitempty"`
	IsActive bool   `json:"isActive"`
}

type UserCounts struct {
	Total          int `json:"total" binding:"gte=0"`
	Administrators int `json:"administrators" binding:"gte=0"`
}

type ContentCounts struct {
	Posts    int `json:"posts" binding:"gte=0"`
	Pages    int `json:"pages" binding:"gte=0"`
	Comments int `json:"comments" binding:"gte=0"`
	Media    int `json:"media" binding:"gte=0"`
}

type SecurityTelemetry struct {
	HasSSL            *bool    `json:"hasSSL,omitempty"`
	VulnerablePlugins []string `json:"vulnerablePlugins,omitempty"`
}

type PerformanceTelemetry struct {
	AverageLoadTimeSeconds *float64 `json:"averageLoadTimeSeconds,omitempty" binding:"omitempty,gte=0"`
	PHPMemoryLimitMB       *float64 `json:"phpMemoryLimitMB,omitempty" binding:"omitempty,gte=0"`
}
