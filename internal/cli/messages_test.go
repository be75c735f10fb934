package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"deltactl/internal/apperr"
	"deltactl/pkg/oauth"
)

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ""},
		{"unauthenticated", apperr.New(apperr.KindUnauthenticated, "fetch primary data", "no token"), "Run 'signin' first."},
		{"forbidden", apperr.New(apperr.KindForbidden, "list admin files", "no role"), "Your account has none of the admin roles."},
		{"http status", apperr.HTTPStatus("fetch primary data", 500, "boom"), ""},
		{
			"rejected token",
			&apperr.Error{Kind: apperr.KindHTTP, StatusCode: 401, Challenge: &oauth.Challenge{Scheme: "Bearer", Error: oauth.ErrorInvalidToken}},
			"The server rejected your ID token; run 'signin' again.",
		},
		{
			"missing scope",
			&apperr.Error{Kind: apperr.KindHTTP, StatusCode: 403, Challenge: &oauth.Challenge{Scheme: "Bearer", Error: oauth.ErrorInsufficientScope, Scope: "delta.write"}},
			`The server requires the scopes "delta.write"; add them to the scopes setting.`,
		},
		{
			"transport",
			apperr.Classify("fetch primary data", "https://api.example.com/data", errors.New("dial tcp: connection refused")),
			"Could not reach https://api.example.com/data; check the endpoint URL and your network.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hint(tt.err))
		})
	}
}

func TestFormatMessages(t *testing.T) {
	msg := FormatError(apperr.New(apperr.KindUnauthenticated, "fetch user data", "no signed-in account"))
	assert.Contains(t, msg, "Error: fetch user data: no signed-in account")
	assert.Contains(t, msg, "Run 'signin' first.")

	assert.Equal(t, "Error: boom", FormatError(errors.New("boom")))
	assert.Equal(t, "✓ saved", FormatSuccess("saved"))
	assert.Equal(t, "⚠ careful", FormatWarning("careful"))
}

func TestProgress(t *testing.T) {
	quiet := StartProgress(&bytes.Buffer{}, "working", true)
	quiet.Stop()
	quiet.Fail("nope")

	var buf bytes.Buffer
	p := StartProgress(&buf, "Signing in...", false)
	p.Fail("Sign-in failed")
	assert.Contains(t, buf.String(), "Sign-in failed")
}
