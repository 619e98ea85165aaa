// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"time"
)

// beginMarker opens every PEM encoded certificate.
var beginMarker = []byte("-----BEGIN CERTIFICATE-----")

// CountPEMCertificates returns the number of BEGIN CERTIFICATE markers in data.
// It does not parse anything, so it is cheap enough to run on untrusted
// downloads before deciding whether they look like a real bundle.
func CountPEMCertificates(data []byte) int {
	return bytes.Count(data, beginMarker)
}

// FormatBundle rewrites every certificate block in data with canonical
// 64-column base64 lines, one blank line between blocks and a trailing newline.
// Text outside certificate blocks is dropped.
func FormatBundle(data []byte) []byte {
	var out bytes.Buffer
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != blockType {
			continue
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		pem.Encode(&out, &pem.Block{Type: blockType, Bytes: block.Bytes})
	}
	return out.Bytes()
}

// IsRootLike reports whether the certificate looks like a trust anchor, using
// the heuristic that its subject and issuer common names are identical.
func IsRootLike(cert *x509.Certificate) bool {
	return cert.Subject.CommonName == cert.Issuer.CommonName
}

// ExpiringRoots returns the root-like certificates whose NotAfter falls
// before now plus threshold. Leaf and intermediate certificates are ignored.
func ExpiringRoots(certs []*x509.Certificate, now time.Time, threshold time.Duration) []*x509.Certificate {
	limit := now.Add(threshold)

	var expiring []*x509.Certificate
	for _, cert := range certs {
		if IsRootLike(cert) && cert.NotAfter.Before(limit) {
			expiring = append(expiring, cert)
		}
	}
	return expiring
}
