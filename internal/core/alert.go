package core

import "time"

type AlertType string

const (
	AlertTypeCoreUpdate   AlertType = "core_update"
	AlertTypePluginUpdate AlertType = "plugin_update"
	AlertTypeSecurity     AlertType = "security"
	AlertTypePerformance  AlertType = "performance"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeCoreUpdate, AlertTypePluginUpdate, AlertTypeSecurity, AlertTypePerformance:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (1) to critical (4); unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusResolved  AlertStatus = "resolved"
	AlertStatusDismissed AlertStatus = "dismissed"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusActive, AlertStatusResolved, AlertStatusDismissed:
		return true
	}
	return false
}

// AlertDraft is a proposed alert that has not yet been checked against the
// site's active alerts nor persisted.
type AlertDraft struct {
	Type     AlertType `json:"alertType"`
	Severity Severity  `json:"severity"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Metadata JSONB     `json:"metadata"`
}

type Alert struct {
	ID         string         `json:"id" db:"id"`
	ClientID   string         `json:"clientId" db:"client_id"`
	Type       AlertType      `json:"alertType" db:"alert_type"`
	Severity   Severity       `json:"severity" db:"severity"`
	Title      string         `json:"title" db:"title"`
	Message    string         `json:"message" db:"message"`
	Status     AlertStatus    `json:"status" db:"status"`
	Metadata   JSONB          `json:"metadata" db:"metadata"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time      `json:"updatedAt" db:"updated_at"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty" db:"resolved_at"`
	ResolvedBy *string        `json:"resolvedBy,omitempty" db:"resolved_by"`
	Client     *ClientSummary `json:"client,omitempty" db:"-"`
}

// NewAlert turns a draft into an active alert for the given client.
func NewAlert(id, clientID string, d AlertDraft, now time.Time) *Alert {
	return &Alert{
		ID:        id,
		ClientID:  clientID,
		Type:      d.Type,
		Severity:  d.Severity,
		Title:     d.Title,
		Message:   d.Message,
		Status:    AlertStatusActive,
		Metadata:  d.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type AlertFilters struct {
	UserID   string
	ClientID string
	Status   AlertStatus
	Severity Severity
	Type     AlertType
	Limit    int
	Offset   int
}

type AlertStats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	BySeverity map[string]int `json:"bySeverity"`
	ByType     []TypeCount    `json:"byType"`
	Recent     int            `json:"recent"`
}

type TypeCount struct {
	Type  string `json:"type" db:"type"`
	Count int    `json:"count" db:"count"`
}

type SeverityCount struct {
	Severity string `json:"severity" db:"severity"`
	Count    int    `json:"count" db:"count"`
}
