package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"regexp"
	"strings"
	"time"

	"github.com/leozw/mantenapp/internal/core"
)

const maxBodyBytes = 1024 * 1024

var generatorPattern = regexp.MustCompile(`(?i)<meta[^>]+name=["']generator["'][^>]+content=["']([^"']+)["']`)

type HTTPChecker struct {
	client *http.Client
}

func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, siteURL string) (*core.HTTPCheckDetails, error) {
	details := &core.HTTPCheckDetails{URL: siteURL}

	var start time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			details.ResponseTime = float64(time.Since(start).Milliseconds())
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, siteURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "MantenApp-Probe/1.0")

	start = time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if details.ResponseTime == 0 {
		details.ResponseTime = float64(time.Since(start).Milliseconds())
	}

	details.StatusCode = resp.StatusCode
	details.SecurityHeaders = securityHeaders(resp.Header)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err == nil {
		details.BodySize = int64(len(body))
		if m := generatorPattern.FindSubmatch(body); m != nil {
			details.Generator = string(m[1])
		}
	}

	if resp.StatusCode >= 400 {
		return details, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return details, nil
}

func securityHeaders(headers http.Header) core.SecurityHeaders {
	return core.SecurityHeaders{
		StrictTransportSecurity: headers.Get("Strict-Transport-Security") != "",
		XContentTypeOptions:     strings.EqualFold(headers.Get("X-Content-Type-Options"), "nosniff"),
		XFrameOptions:           headers.Get("X-Frame-Options") != "",
		ContentSecurityPolicy:   headers.Get("Content-Security-Policy") != "",
	}
}
