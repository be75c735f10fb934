package oauth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChallenge(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   Challenge
	}{
		{
			name:   "scheme only",
			header: "Bearer",
			want:   Challenge{Scheme: "Bearer"},
		},
		{
			name:   "expired token",
			header: `Bearer realm="api", error="invalid_token", error_description="The access token expired"`,
			want: Challenge{
				Scheme:           "Bearer",
				Realm:            "api",
				Error:            ErrorInvalidToken,
				ErrorDescription: "The access token expired",
			},
		},
		{
			name:   "insufficient scope",
			header: `Bearer error="insufficient_scope", scope="delta.write admin"`,
			want:   Challenge{Scheme: "Bearer", Error: ErrorInsufficientScope, Scope: "delta.write admin"},
		},
		{
			name:   "unquoted values and spacing",
			header: `Bearer error = invalid_request,realm=files`,
			want:   Challenge{Scheme: "Bearer", Error: ErrorInvalidRequest, Realm: "files"},
		},
		{
			name:   "escaped quote",
			header: `Bearer error_description="say \"hi\""`,
			want:   Challenge{Scheme: "Bearer", ErrorDescription: `say "hi"`},
		},
		{
			name:   "case insensitive keys",
			header: `Bearer ERROR="invalid_token"`,
			want:   Challenge{Scheme: "Bearer", Error: ErrorInvalidToken},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChallenge(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseChallenge_Invalid(t *testing.T) {
	_, err := ParseChallenge("   ")
	assert.Error(t, err)

	_, err = ParseChallenge(`error="invalid_token"`)
	assert.Error(t, err)
}

func TestChallenge_String(t *testing.T) {
	assert.Equal(t, "", (*Challenge)(nil).String())
	assert.Equal(t, "Bearer", (&Challenge{Scheme: "Bearer"}).String())
	assert.Equal(t, "invalid_token", (&Challenge{Error: ErrorInvalidToken}).String())
	assert.Equal(t, "invalid_token (expired)", (&Challenge{Error: ErrorInvalidToken, ErrorDescription: "expired"}).String())

	assert.True(t, (&Challenge{Error: ErrorInvalidToken}).TokenRejected())
	assert.False(t, (&Challenge{Error: ErrorInsufficientScope}).TokenRejected())
	assert.False(t, (*Challenge)(nil).TokenRejected())
}

func TestChallengeFromResponse(t *testing.T) {
	resp := func(status int, header string) *http.Response {
		r := &http.Response{StatusCode: status, Header: http.Header{}}
		if header != "" {
			r.Header.Set("WWW-Authenticate", header)
		}
		return r
	}

	c := ChallengeFromResponse(resp(http.StatusUnauthorized, `Bearer error="invalid_token"`))
	require.NotNil(t, c)
	assert.Equal(t, ErrorInvalidToken, c.Error)

	c = ChallengeFromResponse(resp(http.StatusForbidden, `Bearer error="insufficient_scope"`))
	require.NotNil(t, c)
	assert.Equal(t, ErrorInsufficientScope, c.Error)

	assert.Nil(t, ChallengeFromResponse(nil))
	assert.Nil(t, ChallengeFromResponse(resp(http.StatusUnauthorized, "")))
	assert.Nil(t, ChallengeFromResponse(resp(http.StatusInternalServerError, `Bearer error="invalid_token"`)))
}
