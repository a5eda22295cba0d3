// Package probe runs on-demand reachability checks against a client site:
// HTTP response, TLS certificate and DNS records.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/leozw/mantenapp/internal/core"
)

const (
	CheckHTTP = "http"
	CheckSSL  = "ssl"
	CheckDNS  = "dns"
)

var weights = map[string]int{
	CheckHTTP: 40,
	CheckSSL:  35,
	CheckDNS:  25,
}

type Prober struct {
	dns  *DNSChecker
	ssl  *SSLChecker
	http *HTTPChecker
	now  func() time.Time
}

func NewProber() *Prober {
	return &Prober{
		dns:  NewDNSChecker(),
		ssl:  NewSSLChecker(),
		http: NewHTTPChecker(),
		now:  time.Now,
	}
}

// Target splits a site URL into the host and the port used for TLS.
func Target(siteURL string) (host, tlsPort string, err error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid site url: %w", err)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("invalid site url: missing host")
	}

	tlsPort = "443"
	if u.Scheme == "https" && u.Port() != "" {
		tlsPort = u.Port()
	}
	return u.Hostname(), tlsPort, nil
}

// Probe runs every check concurrently. Individual check failures are part of
// the result; only an unusable URL is returned as an error.
func (p *Prober) Probe(ctx context.Context, clientID, siteURL string) (*core.SiteProbe, error) {
	host, tlsPort, err := Target(siteURL)
	if err != nil {
		return nil, err
	}

	result := &core.SiteProbe{
		ClientID: clientID,
		Host:     host,
		Checks:   make(map[string]*core.CheckResult),
		ProbedAt: p.now(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, checkType := range []string{CheckDNS, CheckSSL, CheckHTTP} {
		wg.Add(1)
		go func(ct string) {
			defer wg.Done()

			var check *core.CheckResult
			startTime := time.Now()

			switch ct {
			case CheckDNS:
				details, err := p.dns.Check(ctx, host)
				check = createCheckResult(ct, details, err, startTime)
			case CheckSSL:
				details, err := p.ssl.Check(ctx, host, tlsPort)
				check = createCheckResult(ct, details, err, startTime)
			case CheckHTTP:
				details, err := p.http.Check(ctx, siteURL)
				check = createCheckResult(ct, details, err, startTime)
			}

			mu.Lock()
			result.Checks[ct] = check
			mu.Unlock()
		}(checkType)
	}

	wg.Wait()

	result.HealthScore = healthScore(result.Checks)
	return result, nil
}

func createCheckResult(checkType string, details interface{}, err error, startTime time.Time) *core.CheckResult {
	result := &core.CheckResult{
		CheckType:    checkType,
		Success:      err == nil,
		ResponseTime: float64(time.Since(startTime).Milliseconds()),
		CheckedAt:    time.Now(),
	}

	if err != nil {
		errMsg := err.Error()
		result.ErrorMessage = &errMsg
	}
	// Details are kept on failure too: an expiring certificate still has a subject.
	if details != nil && !isNilDetails(details) {
		if detailsJSON, mErr := json.Marshal(details); mErr == nil {
			result.Details = detailsJSON
		}
	}

	return result
}

func isNilDetails(details interface{}) bool {
	switch d := details.(type) {
	case *core.DNSCheckDetails:
		return d == nil
	case *core.SSLCheckDetails:
		return d == nil
	case *core.HTTPCheckDetails:
		return d == nil
	}
	return false
}

func healthScore(checks map[string]*core.CheckResult) int {
	score := 100
	for checkType, weight := range weights {
		if check, ok := checks[checkType]; ok && !check.Success {
			score -= weight
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func isIP(host string) bool {
	return net.ParseIP(strings.Trim(host, "[]")) != nil
}
