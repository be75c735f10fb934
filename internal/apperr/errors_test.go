package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltactl/pkg/oauth"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", HTTPStatus("save user data", 500, "boom"))

	assert.True(t, errors.Is(err, ErrHTTP))
	assert.False(t, errors.Is(err, ErrUnauthenticated))
	assert.Equal(t, KindHTTP, KindOf(err))

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 500, e.StatusCode)
	assert.Equal(t, "boom", e.Body)
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"status with body", HTTPStatus("save user data", 403, " forbidden \n"), "save user data: HTTP 403: forbidden"},
		{"status without body", HTTPStatus("fetch", 502, ""), "fetch: HTTP 502"},
		{"status with challenge", &Error{Kind: KindHTTP, Op: "fetch", StatusCode: 401, Body: "unauthorized",
			Challenge: &oauth.Challenge{Scheme: "Bearer", Error: "invalid_token", ErrorDescription: "expired"}},
			"fetch: HTTP 401: unauthorized [invalid_token (expired)]"},
		{"kind only", &Error{Kind: KindUnauthenticated, Op: "fetch primary data"}, "fetch primary data: unauthenticated"},
		{"custom message", New(KindConfig, "", "client id is required"), "client id is required"},
		{"wrapped", Wrap(KindTokenDecode, "decode claims", errors.New("bad segment")), "decode claims: token_decode_failure: bad segment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify("op", "http://x", nil))

	tests := []struct {
		name  string
		err   error
		cause Cause
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "api.example"}, CauseDNS},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), CauseRefused},
		{"deadline", context.DeadlineExceeded, CauseTimeout},
		{"tls", errors.New("tls: failed to verify certificate"), CauseTLS},
		{"other", errors.New("something odd"), CauseUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("fetch primary data", "https://api.example/data", tt.err)
			assert.True(t, errors.Is(err, ErrHTTP))

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.cause, te.Cause)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_PassesThroughTypedErrors(t *testing.T) {
	orig := New(KindUnauthenticated, "fetch", "")
	assert.Same(t, orig, Classify("fetch", "http://x", orig))
}

func TestTransportError_GenericMessage(t *testing.T) {
	err := &TransportError{Cause: CauseRefused, Endpoint: "https://api.example:8443/v1", Err: errors.New("raw")}
	assert.Equal(t, "cannot connect to api.example:8443", err.Error())
}
