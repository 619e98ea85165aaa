// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tlsconfig

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownVersion is returned by [ParseVersion] for an unrecognised label.
	ErrUnknownVersion = errors.New("tlsconfig: unknown TLS version label")

	// ErrUnknownCipher is returned by [ParseCipherList] for names that are not IANA suite names.
	ErrUnknownCipher = errors.New("tlsconfig: unknown cipher suite")
)

// RequestOptions is the options bag handed to the HTTP layer for one request.
type RequestOptions struct {
	Timeout          time.Duration `json:"timeout"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	HandshakeTimeout time.Duration `json:"ssl_handshake_timeout"`

	VerifyPeer      bool   `json:"verify_peer"`
	VerifyPeerName  bool   `json:"verify_peer_name"`
	AllowSelfSigned bool   `json:"allow_self_signed"`
	VerifyDepth     int    `json:"verify_depth"`
	CABundle        string `json:"ca_bundle"`
	MinVersion      uint16 `json:"min_version"`
	ClientCert      string `json:"client_cert"`
	ClientKey       string `json:"client_key"`
	CipherList      string `json:"cipher_list"`
	RevocationCheck bool   `json:"revocation_check"`
	Proxy           string `json:"proxy"`

	// Transcript receives connection events when set.
	Transcript *Transcript `json:"-"`
}

// ApplyToRequestOptions overlays the active policy onto opts.
//
// Peer verification is forced off when isLocal is set and the policy has
// disable_ssl_local. An invalid ssl_version label is logged and leaves the
// version unset. Timeout fields of opts are left as they are.
//
// Parameters:
//   - opts: Options to overlay
//   - isLocal: Whether the caller runs in a local development environment
//
// Returns:
//   - RequestOptions: The rendered options
func (m *Manager) ApplyToRequestOptions(opts RequestOptions, isLocal bool) RequestOptions {
	p := m.Policy()

	verify := p.VerifyPeer
	if isLocal && p.DisableSSLLocal {
		verify = false
	}

	opts.VerifyPeer = verify
	opts.VerifyPeerName = verify && p.VerifyPeerName
	opts.AllowSelfSigned = p.AllowSelfSigned
	opts.VerifyDepth = p.VerifyDepth
	opts.RevocationCheck = verify && p.RevocationCheck

	if verify && p.CABundlePath != "" && m.ValidateCABundle(p.CABundlePath) {
		opts.CABundle = p.CABundlePath
	}

	opts.MinVersion = 0
	if p.SSLVersion != "" {
		v, err := ParseVersion(p.SSLVersion)
		if err != nil {
			m.log.Warnf("tlsconfig: %v: %q", err, p.SSLVersion)
		} else {
			opts.MinVersion = v
		}
	}

	if p.ClientCertPath != "" && p.ClientKeyPath != "" {
		opts.ClientCert = p.ClientCertPath
		opts.ClientKey = p.ClientKeyPath
	}
	if p.CipherList != "" {
		opts.CipherList = p.CipherList
	}
	if p.Proxy != "" {
		opts.Proxy = p.Proxy
	}

	if p.DebugSSL {
		opts.Transcript = m.transcript
	}
	return opts
}

// ParseVersion maps a protocol label such as "TLSv1.2", "tls1.3" or "1.2" to
// its [crypto/tls] constant.
func ParseVersion(label string) (uint16, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.TrimPrefix(l, "tlsv")
	l = strings.TrimPrefix(l, "tls")
	l = strings.TrimPrefix(l, "_")
	l = strings.ReplaceAll(l, "_", ".")

	switch l {
	case "1", "1.0":
		return tls.VersionTLS10, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	}
	return 0, ErrUnknownVersion
}

// VersionName returns the label for a [crypto/tls] version constant.
func VersionName(v uint16) string {
	if v == 0 {
		return "default"
	}
	return tls.VersionName(v)
}

// ParseCipherList resolves a ':' or ',' separated list of IANA cipher suite
// names. Unknown names are collected into an error wrapping
// [ErrUnknownCipher]; the known ones are still returned.
func ParseCipherList(list string) ([]uint16, error) {
	byName := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		byName[s.Name] = s.ID
	}
	for _, s := range tls.InsecureCipherSuites() {
		byName[s.Name] = s.ID
	}

	var (
		ids     []uint16
		unknown []string
	)
	for _, name := range strings.FieldsFunc(list, func(r rune) bool { return r == ':' || r == ',' || r == ' ' }) {
		if id, ok := byName[strings.ToUpper(name)]; ok {
			ids = append(ids, id)
			continue
		}
		unknown = append(unknown, name)
	}
	if len(unknown) > 0 {
		return ids, fmt.Errorf("%w: %s", ErrUnknownCipher, strings.Join(unknown, ", "))
	}
	return ids, nil
}
