package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/leozw/mantenapp/internal/core"
)

type DNSChecker struct {
	resolver   *net.Resolver
	client     *dns.Client
	nameserver string
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: 5 * time.Second}
				return d.DialContext(ctx, network, address)
			},
		},
		client:     &dns.Client{Timeout: 5 * time.Second},
		nameserver: "8.8.8.8:53",
	}
}

func (d *DNSChecker) Check(ctx context.Context, host string) (*core.DNSCheckDetails, error) {
	details := &core.DNSCheckDetails{
		ARecords:    []string{},
		AAAARecords: []string{},
		MXRecords:   []core.MXRecord{},
		NSRecords:   []string{},
	}

	// Sites addressed by IP have nothing to resolve.
	if isIP(host) {
		ip := strings.Trim(host, "[]")
		if strings.Contains(ip, ":") {
			details.AAAARecords = append(details.AAAARecords, ip)
		} else {
			details.ARecords = append(details.ARecords, ip)
		}
		return details, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	startTime := time.Now()

	ips, err := d.resolver.LookupHost(ctx, host)
	if err == nil {
		for _, ip := range ips {
			if strings.Contains(ip, ":") {
				details.AAAARecords = append(details.AAAARecords, ip)
			} else {
				details.ARecords = append(details.ARecords, ip)
			}
		}
	}

	mxRecords, err := d.resolver.LookupMX(ctx, host)
	if err == nil {
		for _, mx := range mxRecords {
			details.MXRecords = append(details.MXRecords, core.MXRecord{
				Priority: int(mx.Pref),
				Host:     strings.TrimSuffix(mx.Host, "."),
			})
		}
	}

	nsRecords, err := d.resolver.LookupNS(ctx, host)
	if err == nil {
		for _, ns := range nsRecords {
			details.NSRecords = append(details.NSRecords, strings.TrimSuffix(ns.Host, "."))
		}
	}

	cname, err := d.resolver.LookupCNAME(ctx, host)
	if err == nil && cname != dns.Fqdn(host) {
		cnameStr := strings.TrimSuffix(cname, ".")
		details.CNAMERecord = &cnameStr
	}

	details.HasDNSSEC = d.checkDNSSEC(ctx, host)
	details.ResponseTime = float64(time.Since(startTime).Milliseconds())

	if len(details.ARecords) == 0 && len(details.AAAARecords) == 0 && details.CNAMERecord == nil {
		return details, fmt.Errorf("no A, AAAA or CNAME records found")
	}

	return details, nil
}

func (d *DNSChecker) checkDNSSEC(ctx context.Context, host string) bool {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeDNSKEY)
	m.SetEdns0(4096, true)

	r, _, err := d.client.ExchangeContext(ctx, m, d.nameserver)
	if err != nil || r == nil {
		return false
	}

	// AD flag set by a validating resolver.
	return r.AuthenticatedData
}
