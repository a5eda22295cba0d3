package core

import "time"

type ClientStatus string

const (
	ClientStatusActive    ClientStatus = "active"
	ClientStatusInactive  ClientStatus = "inactive"
	ClientStatusSuspended ClientStatus = "suspended"
)

// Client is a monitored WordPress site owned by an admin user.
type Client struct {
	ID           string       `json:"id" db:"id"`
	UserID       string       `json:"userId" db:"user_id"`
	SiteName     string       `json:"siteName" db:"site_name"`
	SiteURL      string       `json:"siteUrl" db:"site_url"`
	APIKey       string       `json:"apiKey" db:"api_key"`
	Status       ClientStatus `json:"status" db:"status"`
	Description  *string      `json:"description,omitempty" db:"description"`
	ContactName  *string      `json:"contactName,omitempty" db:"contact_name"`
	ContactEmail *string      `json:"contactEmail,omitempty" db:"contact_email"`
	LastSync     *time.Time   `json:"lastSync,omitempty" db:"last_sync"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
	AlertCount   int          `json:"alertCount" db:"alert_count"`
}

type ClientSummary struct {
	ID       string       `json:"id"`
	SiteName string       `json:"siteName"`
	SiteURL  string       `json:"siteUrl"`
	Status   ClientStatus `json:"status"`
}

type ClientFilters struct {
	UserID string
	Status ClientStatus
	Search string
	Limit  int
	Offset int
}

const (
	SiteDataFullSync = "full_sync"
	SiteDataWebhook  = "webhook"
)

// SiteData is a stored telemetry payload, kept for audit and history.
type SiteData struct {
	ID          string    `json:"id" db:"id"`
	ClientID    string    `json:"clientId" db:"client_id"`
	DataType    string    `json:"dataType" db:"data_type"`
	DataContent RawJSON   `json:"dataContent" db:"data_content"`
	CollectedAt time.Time `json:"collectedAt" db:"collected_at"`
}

type DashboardStats struct {
	Clients struct {
		Total            int `json:"total"`
		Active           int `json:"active"`
		Inactive         int `json:"inactive"`
		ActivePercentage int `json:"activePercentage"`
		WithAlerts       int `json:"withAlerts"`
	} `json:"clients"`
	Alerts struct {
		Total            int `json:"total"`
		Active           int `json:"active"`
		Critical         int `json:"critical"`
		AlertsPercentage int `json:"alertsPercentage"`
	} `json:"alerts"`
	Sync struct {
		Recent         int `json:"recent"`
		SyncPercentage int `json:"syncPercentage"`
	} `json:"sync"`
}

type SyncActivityPoint struct {
	Date  string `json:"date" db:"date"`
	Syncs int    `json:"syncs" db:"syncs"`
}

type SystemHealth struct {
	HealthScore int    `json:"healthScore"`
	Status      string `json:"status"`
	Issues      struct {
		StaleClients    int `json:"staleClients"`
		CriticalClients int `json:"criticalClients"`
	} `json:"issues"`
	Recommendations []Recommendation `json:"recommendations"`
}

type Recommendation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action"`
}
