// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package diagnostics

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/tlsconfig"
	x509certs "github.com/H0llyW00dzZ/verial-resilience/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/x509/rotation"
)

// Status is the outcome of a check.
type Status string

const (
	Pass    Status = "pass"
	Warning Status = "warning"
	Fail    Status = "fail"
)

func (s Status) rank() int {
	switch s {
	case Fail:
		return 2
	case Warning:
		return 1
	default:
		return 0
	}
}

// Check is one diagnostic result.
type Check struct {
	Name        string `json:"name"`
	Status      Status `json:"status"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

// Thresholds used by the checks.
const (
	// MinLookups is the number of cache lookups below which the hit ratio is not judged.
	MinLookups = 20
	// MinHitRatio is the lowest healthy cache hit ratio.
	MinHitRatio = 0.5
	// RootExpiryWindow flags bundle roots expiring within this window.
	RootExpiryWindow = 30 * 24 * time.Hour
)

// CheckCABundle inspects the CA bundle at path.
func CheckCABundle(path string, now time.Time) Check {
	c := Check{Name: "ca_bundle"}
	if path == "" {
		c.Status = Warning
		c.Message = "no CA bundle configured, system roots are used"
		c.Remediation = "set ca_bundle_path or run `cert rotate` to install a managed bundle"
		return c
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.Status = Fail
		c.Message = fmt.Sprintf("CA bundle %s is not readable: %v", path, err)
		c.Remediation = "check the path and file permissions, or run `cert rotate --force`"
		return c
	}

	certs, err := x509certs.New().DecodeBundle(data)
	if err != nil || len(certs) == 0 {
		c.Status = Fail
		c.Message = fmt.Sprintf("CA bundle %s holds no parseable certificate", path)
		c.Remediation = "run `cert rotate --force` to replace the bundle"
		return c
	}

	if expiring := x509certs.ExpiringRoots(certs, now, RootExpiryWindow); len(expiring) > 0 {
		c.Status = Warning
		c.Message = fmt.Sprintf("%d of %d certificates in %s expire within 30 days", len(expiring), len(certs), path)
		c.Remediation = "run `cert rotate --force` to fetch a current bundle"
		return c
	}

	c.Status = Pass
	c.Message = fmt.Sprintf("%d certificates in %s", len(certs), path)
	return c
}

// CheckSSLPolicy reports unsafe settings of p.
func CheckSSLPolicy(p tlsconfig.Policy) Check {
	c := Check{Name: "ssl_policy", Status: Pass}
	var problems, fixes []string
	raise := func(s Status, problem, fix string) {
		if s.rank() > c.Status.rank() {
			c.Status = s
		}
		problems = append(problems, problem)
		fixes = append(fixes, fix)
	}

	if !p.VerifyPeer {
		raise(Fail, "peer verification is disabled", "enable verify_peer")
	} else if !p.VerifyPeerName {
		raise(Warning, "host name verification is disabled", "enable verify_peer_name")
	}
	if p.AllowSelfSigned {
		raise(Warning, "self-signed certificates are accepted", "disable allow_self_signed outside development")
	}
	if p.SSLVersion != "" {
		v, err := tlsconfig.ParseVersion(p.SSLVersion)
		switch {
		case err != nil:
			raise(Warning, fmt.Sprintf("ssl_version %q is not recognised", p.SSLVersion), "use 1.2 or 1.3")
		case v < tls.VersionTLS12:
			raise(Warning, fmt.Sprintf("minimum protocol %s is weak", tlsconfig.VersionName(v)), "set ssl_version to 1.2 or 1.3")
		}
	}
	if p.DebugSSL {
		raise(Warning, "TLS debug transcript is enabled", "disable debug_ssl when not troubleshooting")
	}

	if len(problems) == 0 {
		c.Message = "verification enabled"
		return c
	}
	c.Message = strings.Join(problems, "; ")
	c.Remediation = strings.Join(fixes, "; ")
	return c
}

// CheckCacheHitRatio judges the response cache efficiency from the request
// counters of the current process.
func CheckCacheHitRatio(enabled bool, counters httpcache.Counters) Check {
	c := Check{Name: "cache_hit_ratio", Status: Pass}
	if !enabled {
		c.Status = Warning
		c.Message = "response cache is disabled"
		c.Remediation = "run `cache toggle on`"
		return c
	}

	lookups := counters.Hits + counters.Misses
	ratio := counters.HitRatio()
	if lookups == 0 {
		c.Message = "no lookups recorded by this process; the ratio is per process and is not persisted"
		return c
	}
	if lookups < MinLookups {
		c.Message = fmt.Sprintf("%d lookups, not enough data", lookups)
		return c
	}
	c.Message = fmt.Sprintf("hit ratio %.1f%% over %d lookups", ratio*100, lookups)
	if ratio < MinHitRatio {
		c.Status = Warning
		c.Remediation = "raise the TTL of frequently requested groups with `cache ttl`"
	}
	return c
}

// CheckRotation reports whether the managed bundle is overdue.
func CheckRotation(st rotation.Status) Check {
	c := Check{Name: "cert_rotation", Status: Pass}
	switch {
	case st.LastRotation == nil:
		c.Status = Warning
		c.Message = "the CA bundle has never been rotated"
		c.Remediation = "run `cert rotate`"
	case st.NeedsRotation:
		c.Status = Warning
		c.Message = fmt.Sprintf("rotation due: %s", st.Reason)
		c.Remediation = "run `cert rotate`"
	default:
		c.Message = fmt.Sprintf("last rotated %s", st.LastRotation.UTC().Format(time.RFC3339))
		if st.NextRotation != nil {
			c.Message += fmt.Sprintf(", next %s", st.NextRotation.UTC().Format(time.RFC3339))
		}
	}
	return c
}

// Report is an ordered list of checks.
type Report struct {
	Checks []Check `json:"checks"`
}

// Add appends checks.
func (r *Report) Add(checks ...Check) { r.Checks = append(r.Checks, checks...) }

// Overall returns the worst status in the report.
func (r *Report) Overall() Status {
	worst := Pass
	for _, c := range r.Checks {
		if c.Status.rank() > worst.rank() {
			worst = c.Status
		}
	}
	return worst
}

// RenderTable renders the report as a text table.
func (r *Report) RenderTable() string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf)
	table.Header([]string{"Check", "Status", "Message", "Remediation"})

	rows := make([][]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		rows = append(rows, []string{c.Name, strings.ToUpper(string(c.Status)), c.Message, c.Remediation})
	}
	_ = table.Bulk(rows)
	_ = table.Render()
	return buf.String()
}
