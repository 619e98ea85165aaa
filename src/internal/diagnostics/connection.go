// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package diagnostics

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/tlsconfig"
)

// ErrNoPeerCertificates is returned when the server presented no certificate.
var ErrNoPeerCertificates = errors.New("diagnostics: no certificates received from server")

// ConnectionReport is the result of [TestConnection].
type ConnectionReport struct {
	Host        string              `json:"host"`
	Port        int                 `json:"port"`
	Protocol    string              `json:"protocol"`
	Cipher      string              `json:"cipher"`
	Verified    bool                `json:"verified"`
	VerifyError string              `json:"verify_error,omitempty"`
	Latency     time.Duration       `json:"latency"`
	Chain       []*x509.Certificate `json:"-"`
}

// ConnOption configures [TestConnection].
type ConnOption func(*connConfig)

type connConfig struct {
	roots      *x509.CertPool
	serverName string
}

// WithRoots verifies against pool instead of the system roots.
func WithRoots(pool *x509.CertPool) ConnOption {
	return func(c *connConfig) { c.roots = pool }
}

// WithServerName verifies the chain against name instead of host.
func WithServerName(name string) ConnOption {
	return func(c *connConfig) { c.serverName = name }
}

// WithCABundle verifies against the PEM bundle at path. An unreadable bundle
// falls back to the system roots.
func WithCABundle(path string) ConnOption {
	return func(c *connConfig) {
		if path == "" {
			return
		}
		if pool, err := tlsconfig.LoadCertPool(path); err == nil {
			c.roots = pool
		}
	}
}

// TestConnection performs a TLS handshake with host:port and reports the
// negotiated parameters and whether the presented chain verifies.
//
// The handshake itself never fails on verification, so the chain can be
// inspected even when it is untrusted; the verification outcome is carried in
// the report.
//
// Parameters:
//   - ctx: Context for the dial
//   - host: Host name or IP address
//   - port: TCP port
//   - timeout: Dial and handshake timeout
//   - withChain: Whether the presented certificates are kept in the report
//   - opts: Verification options
//
// Returns:
//   - *ConnectionReport: Handshake result
//   - error: Dial or handshake failure
func TestConnection(ctx context.Context, host string, port int, timeout time.Duration, withChain bool, opts ...ConnOption) (*ConnectionReport, error) {
	cfg := connConfig{serverName: host}
	for _, opt := range opts {
		opt(&cfg)
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName: cfg.serverName,
			// Verification is done below so untrusted chains can be reported.
			InsecureSkipVerify: true,
		},
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()
	latency := time.Since(start)

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, ErrNoPeerCertificates
	}

	report := &ConnectionReport{
		Host:     host,
		Port:     port,
		Protocol: tlsconfig.VersionName(state.Version),
		Cipher:   tls.CipherSuiteName(state.CipherSuite),
		Latency:  latency,
	}

	inter := x509.NewCertPool()
	for _, c := range state.PeerCertificates[1:] {
		inter.AddCert(c)
	}
	_, verr := state.PeerCertificates[0].Verify(x509.VerifyOptions{
		DNSName:       cfg.serverName,
		Roots:         cfg.roots,
		Intermediates: inter,
	})
	report.Verified = verr == nil
	if verr != nil {
		report.VerifyError = verr.Error()
	}

	if withChain {
		report.Chain = state.PeerCertificates
	}
	return report, nil
}

// certificateRole names the position of cert index in a chain of total.
func certificateRole(index, total int) string {
	switch {
	case total == 1:
		return "Self-Signed Certificate"
	case index == 0:
		return "End-Entity (Server/Leaf) Certificate"
	case index == total-1:
		return "Root CA Certificate"
	default:
		return "Intermediate CA Certificate"
	}
}

func keySize(cert *x509.Certificate) string {
	switch k := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("%d-bit RSA", k.Size()*8)
	case *ecdsa.PublicKey:
		return fmt.Sprintf("%d-bit ECDSA", k.Curve.Params().BitSize)
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return "unknown"
	}
}

// RenderChainTable renders certs as a markdown table.
func RenderChainTable(certs []*x509.Certificate) string {
	if len(certs) == 0 {
		return "No certificates to display"
	}

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"#", "Role", "Subject", "Issuer", "Valid Until", "Key Size"})

	rows := make([][]string, 0, len(certs))
	for i, cert := range certs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			certificateRole(i, len(certs)),
			cert.Subject.CommonName,
			cert.Issuer.CommonName,
			cert.NotAfter.Format("2006-01-02"),
			keySize(cert),
		})
	}
	_ = table.Bulk(rows)
	_ = table.Render()
	return buf.String()
}
