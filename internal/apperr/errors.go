// Package apperr defines the error kinds surfaced by the identity session and
// the data client. None of them is fatal: callers report the message and the
// program keeps running.
package apperr

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"deltactl/pkg/oauth"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnauthenticated means no token was available; no network call was made.
	KindUnauthenticated
	// KindSilentAcquisition means the provider could not renew a token without
	// user interaction. The caller should prompt an interactive sign-in.
	KindSilentAcquisition
	// KindHTTP covers non-2xx responses and normalized transport failures.
	KindHTTP
	// KindMalformedPayload means a body that should be JSON was not.
	KindMalformedPayload
	// KindTokenDecode means the ID token did not have the expected structure.
	KindTokenDecode
	// KindUninitialized means an identity operation ran before Initialize succeeded.
	KindUninitialized
	// KindConfig means the supplied configuration was rejected.
	KindConfig
	// KindInteraction means an interactive sign-in was refused, cancelled or
	// could not be completed.
	KindInteraction
	// KindForbidden means the signed-in account lacks a role the operation
	// requires. The check is local; the backend authorizes independently.
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindSilentAcquisition:
		return "silent_acquisition_failure"
	case KindHTTP:
		return "http_failure"
	case KindMalformedPayload:
		return "malformed_payload"
	case KindTokenDecode:
		return "token_decode_failure"
	case KindUninitialized:
		return "uninitialized"
	case KindConfig:
		return "invalid_config"
	case KindInteraction:
		return "interaction_failure"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is comparisons. Matching is by kind only.
var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrSilentAcquisition = &Error{Kind: KindSilentAcquisition}
	ErrHTTP              = &Error{Kind: KindHTTP}
	ErrMalformedPayload  = &Error{Kind: KindMalformedPayload}
	ErrTokenDecode       = &Error{Kind: KindTokenDecode}
	ErrUninitialized     = &Error{Kind: KindUninitialized}
	ErrConfig            = &Error{Kind: KindConfig}
	ErrInteraction       = &Error{Kind: KindInteraction}
	ErrForbidden         = &Error{Kind: KindForbidden}
)

// Error is the concrete error type returned across deltactl.
type Error struct {
	Kind Kind
	// Op names the failed operation, e.g. "fetch primary data".
	Op string
	// StatusCode is set for KindHTTP failures that reached the server.
	StatusCode int
	// Body holds the response body text of a failed HTTP call.
	Body string
	// Challenge is the bearer challenge of a 401 or 403 response, if sent.
	Challenge *oauth.Challenge
	// Message overrides the default description.
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Kind == KindHTTP && e.StatusCode != 0:
		fmt.Fprintf(&b, "HTTP %d", e.StatusCode)
		if body := strings.TrimSpace(e.Body); body != "" {
			b.WriteString(": ")
			b.WriteString(body)
		}
		if e.Challenge != nil && e.Challenge.Error != "" {
			b.WriteString(" [")
			b.WriteString(e.Challenge.String())
			b.WriteString("]")
		}
	default:
		b.WriteString(e.Kind.String())
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is() to match any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind and operation to err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// HTTPStatus builds a KindHTTP error carrying the response status and body.
func HTTPStatus(op string, status int, body string) *Error {
	return &Error{Kind: KindHTTP, Op: op, StatusCode: status, Body: body}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Cause describes the category of a transport failure.
type Cause string

const (
	CauseDNS     Cause = "dns"
	CauseTimeout Cause = "timeout"
	CauseRefused Cause = "network"
	CauseTLS     Cause = "tls"
	CauseUnknown Cause = "unknown"
)

// TransportError records a network-level failure behind a KindHTTP error.
type TransportError struct {
	Cause    Cause
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	host := e.Endpoint
	if u, err := url.Parse(e.Endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	switch e.Cause {
	case CauseDNS:
		return fmt.Sprintf("cannot resolve host %s", host)
	case CauseTimeout:
		return fmt.Sprintf("request to %s timed out", host)
	case CauseRefused:
		return fmt.Sprintf("cannot connect to %s", host)
	case CauseTLS:
		return fmt.Sprintf("TLS handshake with %s failed", host)
	default:
		return fmt.Sprintf("request to %s failed", host)
	}
}

// Unwrap returns the raw transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Classify normalizes a transport error into a KindHTTP error with a generic
// message. Errors that already are *Error pass through unchanged.
func Classify(op, endpoint string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{
		Kind: KindHTTP,
		Op:   op,
		Err:  &TransportError{Cause: classifyCause(err), Endpoint: endpoint, Err: err},
	}
}

func classifyCause(err error) Cause {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CauseDNS
	}
	if isTLSError(err) {
		return CauseTLS
	}
	if isTimeoutError(err) {
		return CauseTimeout
	}
	if isNetworkError(err.Error()) {
		return CauseRefused
	}
	return CauseUnknown
}

func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &hostErr) {
		return true
	}
	errStr := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(errStr string) bool {
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"connect:",
	} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
