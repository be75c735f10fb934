package identity

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCallbackServer_RejectsNonLoopback(t *testing.T) {
	for _, uri := range []string{"https://127.0.0.1/callback", "http://example.com/callback", "http://10.0.0.1:80/cb"} {
		_, err := NewCallbackServer(uri)
		assert.Error(t, err, uri)
	}
}

func TestCallbackServer_ReceivesSingleCallback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewCallbackServer("http://localhost:0/auth/done")
	require.NoError(t, err)
	redirect, err := s.Start(ctx)
	require.NoError(t, err)
	defer s.Stop()

	assert.Regexp(t, `^http://127\.0\.0\.1:\d+/auth/done$`, redirect)
	assert.Equal(t, redirect, s.RedirectURI())

	resp, err := http.Get(redirect + "?code=abc&state=xyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, string(body), "Sign-in complete")

	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Code)
	assert.Equal(t, "xyz", result.State)
	assert.False(t, result.IsError())

	resp, err = http.Get(redirect + "?code=again&state=xyz")
	if err == nil {
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestCallbackServer_ErrorCallback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewCallbackServer(DefaultRedirectURI)
	require.NoError(t, err)
	redirect, err := s.Start(ctx)
	require.NoError(t, err)
	defer s.Stop()

	resp, err := http.Get(redirect + "?error=access_denied&error_description=%3Cb%3Eno%3C%2Fb%3E&state=s")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Contains(t, string(body), "access_denied")
	assert.NotContains(t, string(body), "<b>no</b>", "description must be escaped")

	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "<b>no</b>", result.ErrorDescription)
}

func TestCallbackServer_MissingCodeIsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewCallbackServer(DefaultRedirectURI)
	require.NoError(t, err)
	redirect, err := s.Start(ctx)
	require.NoError(t, err)
	defer s.Stop()

	resp, err := http.Get(redirect + "?state=s")
	require.NoError(t, err)
	resp.Body.Close()

	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "invalid_request", result.Error)
}

func TestCallbackServer_WaitHonoursContext(t *testing.T) {
	s, err := NewCallbackServer(DefaultRedirectURI)
	require.NoError(t, err)
	_, err = s.Start(context.Background())
	require.NoError(t, err)
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.WaitForCallback(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
