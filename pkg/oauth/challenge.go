package oauth

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Bearer error codes defined by RFC 6750.
const (
	ErrorInvalidRequest    = "invalid_request"
	ErrorInvalidToken      = "invalid_token"
	ErrorInsufficientScope = "insufficient_scope"
)

// Challenge is one parsed WWW-Authenticate challenge.
type Challenge struct {
	Scheme           string `json:"scheme" yaml:"scheme"`
	Realm            string `json:"realm,omitempty" yaml:"realm,omitempty"`
	Scope            string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Error            string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty" yaml:"errorDescription,omitempty"`
}

// String renders the challenge for error messages, e.g.
// `invalid_token (token expired)`.
func (c *Challenge) String() string {
	if c == nil {
		return ""
	}
	switch {
	case c.Error != "" && c.ErrorDescription != "":
		return fmt.Sprintf("%s (%s)", c.Error, c.ErrorDescription)
	case c.Error != "":
		return c.Error
	default:
		return c.Scheme
	}
}

// TokenRejected reports whether the server refused the token itself, as
// opposed to the request or the token's scope.
func (c *Challenge) TokenRejected() bool {
	return c != nil && c.Error == ErrorInvalidToken
}

var authParam = regexp.MustCompile(`([A-Za-z0-9_-]+)\s*=\s*(?:"((?:[^"\\]|\\.)*)"|([^\s,]+))`)

// ParseChallenge parses a WWW-Authenticate header value. Only the first
// challenge of a multi-challenge header is returned.
func ParseChallenge(header string) (*Challenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty WWW-Authenticate header")
	}

	scheme, params, _ := strings.Cut(header, " ")
	if strings.Contains(scheme, "=") {
		return nil, fmt.Errorf("WWW-Authenticate header has no scheme: %q", header)
	}

	c := &Challenge{Scheme: scheme}
	for _, m := range authParam.FindAllStringSubmatch(params, -1) {
		value := m[3]
		if value == "" {
			value = strings.ReplaceAll(m[2], `\"`, `"`)
		}
		switch strings.ToLower(m[1]) {
		case "realm":
			c.Realm = value
		case "scope":
			c.Scope = value
		case "error":
			c.Error = value
		case "error_description":
			c.ErrorDescription = value
		}
	}
	return c, nil
}

// ChallengeFromResponse returns the challenge of a 401 or 403 response, or
// nil when there is none or it cannot be parsed.
func ChallengeFromResponse(resp *http.Response) *Challenge {
	if resp == nil {
		return nil
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return nil
	}
	header := resp.Header.Get("WWW-Authenticate")
	if header == "" {
		return nil
	}
	c, err := ParseChallenge(header)
	if err != nil {
		return nil
	}
	return c
}
