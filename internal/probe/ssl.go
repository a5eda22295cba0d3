package probe

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/leozw/mantenapp/internal/core"
)

type SSLChecker struct {
	timeout     time.Duration
	warningDays int
	rootCAs     *x509.CertPool
}

func NewSSLChecker() *SSLChecker {
	return &SSLChecker{
		timeout:     10 * time.Second,
		warningDays: 30,
	}
}

func (s *SSLChecker) Check(ctx context.Context, host, port string) (*core.SSLCheckDetails, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.timeout},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    s.rootCAs,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("no certificates found")
	}

	cert := state.PeerCertificates[0]

	details := &core.SSLCheckDetails{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
		DaysToExpiry: int(time.Until(cert.NotAfter).Hours() / 24),
		Protocol:     tls.VersionName(state.Version),
		CipherSuite:  tls.CipherSuiteName(state.CipherSuite),
		Grade:        grade(state, cert),
	}

	for _, c := range state.PeerCertificates {
		details.CertificateChain = append(details.CertificateChain, c.Subject.String())
	}

	if time.Now().After(cert.NotAfter) {
		return details, fmt.Errorf("certificate expired")
	}
	if details.DaysToExpiry < s.warningDays {
		return details, fmt.Errorf("certificate expiring soon (%d days)", details.DaysToExpiry)
	}

	return details, nil
}

func grade(state tls.ConnectionState, cert *x509.Certificate) string {
	score := 100

	switch state.Version {
	case tls.VersionTLS13:
	case tls.VersionTLS12:
		score -= 10
	default:
		score -= 30
	}

	switch key := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if key.N.BitLen() < 2048 {
			score -= 20
		}
	case *ecdsa.PublicKey:
		if key.Curve.Params().BitSize < 256 {
			score -= 20
		}
	}

	switch state.CipherSuite {
	case tls.TLS_AES_128_GCM_SHA256,
		tls.TLS_AES_256_GCM_SHA384,
		tls.TLS_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:
	default:
		score -= 10
	}

	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	default:
		return "F"
	}
}
