// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tlsconfig

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ocsp"
)

var (
	// ErrNoCertificates is returned when a CA bundle holds no parseable certificate.
	ErrNoCertificates = errors.New("tlsconfig: CA bundle contains no certificates")

	// ErrVerification is returned from the handshake when the peer chain is not trusted.
	ErrVerification = errors.New("tlsconfig: peer verification failed")

	// ErrChainTooDeep is returned when no verified chain fits within verify_depth.
	ErrChainTooDeep = errors.New("tlsconfig: certificate chain exceeds verify depth")

	// ErrRevoked is returned when a stapled OCSP response reports the leaf as revoked.
	ErrRevoked = errors.New("tlsconfig: certificate revoked")

	// ErrBadStaple is returned when a stapled OCSP response cannot be validated.
	ErrBadStaple = errors.New("tlsconfig: invalid stapled OCSP response")
)

// LoadCertPool reads a PEM bundle into a new pool.
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsconfig: read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w: %s", ErrNoCertificates, path)
	}
	return pool, nil
}

// TLSConfig renders opts into a client TLS configuration.
//
// With verify_peer on, chains are verified against the CA bundle (or the
// system roots when none is set). When peer name checks are off or self
// signed peers are allowed, the standard verification is replaced by an
// equivalent check in VerifyConnection that applies those relaxations.
// verify_depth and stapled OCSP revocation are enforced in VerifyConnection
// in every verifying mode. A connection without a stapled response passes the
// revocation check.
//
// Unknown cipher names are ignored; the remaining suites are used.
//
// Parameters:
//   - opts: Rendered request options
//
// Returns:
//   - *tls.Config: Client configuration
//   - error: CA bundle or client key pair load failure
func TLSConfig(opts RequestOptions) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: opts.MinVersion}

	if opts.CipherList != "" {
		if ids, _ := ParseCipherList(opts.CipherList); len(ids) > 0 {
			cfg.CipherSuites = ids
		}
	}

	if opts.ClientCert != "" && opts.ClientKey != "" {
		pair, err := tls.LoadX509KeyPair(opts.ClientCert, opts.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("tlsconfig: load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	if !opts.VerifyPeer {
		cfg.InsecureSkipVerify = true
		return cfg, nil
	}

	if opts.CABundle != "" {
		pool, err := LoadCertPool(opts.CABundle)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	v := &verifier{
		roots:           cfg.RootCAs,
		checkName:       opts.VerifyPeerName,
		allowSelfSigned: opts.AllowSelfSigned,
		depth:           opts.VerifyDepth,
		revocation:      opts.RevocationCheck,
	}

	switch {
	case !opts.VerifyPeerName || opts.AllowSelfSigned:
		v.manual = true
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = v.verify
	case opts.VerifyDepth > 0 || opts.RevocationCheck:
		cfg.VerifyConnection = v.verify
	}
	return cfg, nil
}

type verifier struct {
	roots           *x509.CertPool
	manual          bool
	checkName       bool
	allowSelfSigned bool
	depth           int
	revocation      bool
}

func (v *verifier) verify(cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return fmt.Errorf("%w: no peer certificates", ErrVerification)
	}
	leaf := cs.PeerCertificates[0]

	chains := cs.VerifiedChains
	if v.manual {
		var err error
		if chains, err = v.verifyChain(cs, leaf); err != nil {
			return err
		}
	}

	if v.depth > 0 && !withinDepth(chains, v.depth) {
		return ErrChainTooDeep
	}

	if v.revocation && len(cs.OCSPResponse) > 0 {
		issuer := leaf
		if len(chains) > 0 && len(chains[0]) > 1 {
			issuer = chains[0][1]
		}
		return checkStaple(cs.OCSPResponse, leaf, issuer)
	}
	return nil
}

func (v *verifier) verifyChain(cs tls.ConnectionState, leaf *x509.Certificate) ([][]*x509.Certificate, error) {
	inter := x509.NewCertPool()
	for _, c := range cs.PeerCertificates[1:] {
		inter.AddCert(c)
	}

	vo := x509.VerifyOptions{Roots: v.roots, Intermediates: inter}
	if v.checkName {
		vo.DNSName = cs.ServerName
	}

	chains, err := leaf.Verify(vo)
	if err == nil {
		return chains, nil
	}
	if !v.allowSelfSigned || !SelfSigned(leaf) {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if v.checkName {
		if err := leaf.VerifyHostname(cs.ServerName); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVerification, err)
		}
	}
	return [][]*x509.Certificate{{leaf}}, nil
}

// SelfSigned reports whether cert is issued by itself and carries a valid
// self signature.
func SelfSigned(cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

// withinDepth reports whether some chain has at most depth certificates above the leaf.
func withinDepth(chains [][]*x509.Certificate, depth int) bool {
	for _, c := range chains {
		if len(c)-1 <= depth {
			return true
		}
	}
	return len(chains) == 0
}

func checkStaple(staple []byte, leaf, issuer *x509.Certificate) error {
	resp, err := ocsp.ParseResponseForCert(staple, leaf, issuer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadStaple, err)
	}
	if resp.Status == ocsp.Revoked {
		return fmt.Errorf("%w: serial %s at %s", ErrRevoked, leaf.SerialNumber, resp.RevokedAt.UTC().Format("2006-01-02"))
	}
	return nil
}
