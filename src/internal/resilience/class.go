// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package resilience

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpclient"
)

// ErrorClass groups request failures for retry policy selection.
type ErrorClass string

const (
	// ClassNone marks a valid result.
	ClassNone ErrorClass = ""

	ConnectionTimeout ErrorClass = "connection_timeout"
	SSLError          ErrorClass = "ssl_error"
	ServerError       ErrorClass = "server_error"
	ClientError       ErrorClass = "client_error"
	ConnectionError   ErrorClass = "connection_error"
	Exception         ErrorClass = "exception"
)

// Classes lists every failure class.
var Classes = []ErrorClass{ConnectionTimeout, SSLError, ServerError, ClientError, ConnectionError, Exception}

// Classify inspects the outcome of one attempt.
//
// A result is valid (ClassNone) only when err is nil and resp carries a 2xx
// status. Non-2xx statuses below 500 count as client errors. A nil response
// without an error is a connection error.
func Classify(resp *httpclient.Response, err error) ErrorClass {
	if err != nil {
		return classifyError(err)
	}
	switch {
	case resp == nil:
		return ConnectionError
	case resp.OK():
		return ClassNone
	case resp.StatusCode >= 500:
		return ServerError
	default:
		return ClientError
	}
}

func classifyError(err error) ErrorClass {
	if errors.Is(err, ErrRequestPanicked) {
		return Exception
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ConnectionTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ConnectionTimeout
	}
	if isTLSError(err) {
		return SSLError
	}
	return ConnectionError
}

func isTLSError(err error) bool {
	var (
		verr  *tls.CertificateVerificationError
		rerr  tls.RecordHeaderError
		aerr  tls.AlertError
		uaerr x509.UnknownAuthorityError
		herr  x509.HostnameError
		cerr  x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &rerr), errors.As(err, &aerr),
		errors.As(err, &uaerr), errors.As(err, &herr), errors.As(err, &cerr):
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:") || strings.Contains(msg, "tlsconfig:")
}
