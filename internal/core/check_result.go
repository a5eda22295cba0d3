package core

import (
	"encoding/json"
	"time"
)

// SiteProbe is the outcome of an on-demand reachability probe of a client site.
type SiteProbe struct {
	ClientID    string                  `json:"clientId"`
	Host        string                  `json:"host"`
	HealthScore int                     `json:"healthScore"`
	Checks      map[string]*CheckResult `json:"checks"`
	ProbedAt    time.Time               `json:"probedAt"`
}

type CheckResult struct {
	CheckType    string          `json:"checkType"`
	Success      bool            `json:"success"`
	ResponseTime float64         `json:"responseTimeMs"`
	Details      json.RawMessage `json:"details,omitempty"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	CheckedAt    time.Time       `json:"checkedAt"`
}

type SSLCheckDetails struct {
	Grade            string    `json:"grade"`
	DaysToExpiry     int       `json:"daysToExpiry"`
	Issuer           string    `json:"issuer"`
	Subject          string    `json:"subject"`
	ValidFrom        time.Time `json:"validFrom"`
	ValidTo          time.Time `json:"validTo"`
	Protocol         string    `json:"protocol"`
	CipherSuite      string    `json:"cipherSuite"`
	CertificateChain []string  `json:"certificateChain"`
}

type DNSCheckDetails struct {
	ARecords     []string   `json:"aRecords"`
	AAAARecords  []string   `json:"aaaaRecords"`
	MXRecords    []MXRecord `json:"mxRecords"`
	NSRecords    []string   `json:"nsRecords"`
	CNAMERecord  *string    `json:"cnameRecord,omitempty"`
	HasDNSSEC    bool       `json:"hasDnssec"`
	ResponseTime float64    `json:"responseTimeMs"`
}

type MXRecord struct {
	Priority int    `json:"priority"`
	Host     string `json:"host"`
}

type HTTPCheckDetails struct {
	URL             string          `json:"url"`
	StatusCode      int             `json:"statusCode"`
	ResponseTime    float64         `json:"responseTimeMs"`
	BodySize        int64           `json:"bodySizeBytes"`
	Generator       string          `json:"generator,omitempty"`
	SecurityHeaders SecurityHeaders `json:"securityHeaders"`
}

type SecurityHeaders struct {
	StrictTransportSecurity bool `json:"strictTransportSecurity"`
	XContentTypeOptions     bool `json:"xContentTypeOptions"`
	XFrameOptions           bool `json:"xFrameOptions"`
	ContentSecurityPolicy   bool `json:"contentSecurityPolicy"`
}
