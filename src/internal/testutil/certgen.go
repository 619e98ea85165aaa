// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package testutil generates certificates and bundles for tests.
package testutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var serial atomic.Int64

// Authority is a self-signed CA able to issue leaf certificates.
type Authority struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
	PEM  []byte
}

// NewAuthority creates a self-signed root with the given common name and expiry.
func NewAuthority(tb testing.TB, cn string, notAfter time.Time) *Authority {
	tb.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(tb, err, "failed to generate CA key")

	cert, der := selfSigned(tb, key, cn, notAfter)
	return &Authority{
		Cert: cert,
		Key:  key,
		PEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

func selfSigned(tb testing.TB, key *ecdsa.PrivateKey, cn string, notAfter time.Time) (*x509.Certificate, []byte) {
	tb.Helper()

	template := x509.Certificate{
		SerialNumber:          big.NewInt(serial.Add(1)),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test Trust Services"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(tb, err, "failed to create self-signed certificate")

	cert, err := x509.ParseCertificate(der)
	require.NoError(tb, err, "failed to parse self-signed certificate")
	return cert, der
}

// Issue signs a server certificate for the given hosts, returning PEM encoded
// certificate and PKCS8 key.
func (a *Authority) Issue(tb testing.TB, cn string, hosts ...string) (certPEM, keyPEM []byte) {
	tb.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(tb, err, "failed to generate leaf key")

	template := x509.Certificate{
		SerialNumber: big.NewInt(serial.Add(1)),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, a.Cert, &key.PublicKey, a.Key)
	require.NoError(tb, err, "failed to issue certificate")

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(tb, err, "failed to marshal leaf key")

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
}

// Bundle returns n distinct self-signed roots concatenated as PEM, each
// expiring at notAfter.
func Bundle(tb testing.TB, n int, notAfter time.Time) []byte {
	tb.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(tb, err, "failed to generate bundle key")

	var buf bytes.Buffer
	for i := range n {
		_, der := selfSigned(tb, key, fmt.Sprintf("Test Root CA %03d", i), notAfter)
		require.NoError(tb, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	}
	return buf.Bytes()
}

// SelfSignedLeaf returns a self-issued server certificate for hosts that no
// authority vouches for, PEM encoded with its PKCS8 key.
func SelfSignedLeaf(tb testing.TB, cn string, hosts ...string) (certPEM, keyPEM []byte) {
	tb.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(tb, err, "failed to generate leaf key")

	template := x509.Certificate{
		SerialNumber: big.NewInt(serial.Add(1)),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(tb, err, "failed to create self-signed leaf")

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(tb, err, "failed to marshal leaf key")

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
}
