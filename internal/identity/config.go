package identity

import (
	"net/url"
	"strings"
	"time"

	"deltactl/internal/apperr"
)

// Strategy selects how the interactive sign-in is driven.
type Strategy string

const (
	// StrategyPopup opens the browser and blocks until the callback arrives.
	StrategyPopup Strategy = "popup"
	// StrategyRedirect returns immediately and completes through provider events.
	StrategyRedirect Strategy = "redirect"
)

const (
	// DefaultRedirectURI binds the loopback callback server to a random port.
	DefaultRedirectURI = "http://127.0.0.1:0/callback"

	// DefaultCallbackTimeout is how long an interactive sign-in may take.
	DefaultCallbackTimeout = 10 * time.Minute

	// DefaultHTTPTimeout is the default timeout for provider requests.
	DefaultHTTPTimeout = 30 * time.Second
)

// DefaultScopes are requested when Config.Scopes is empty.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access"}

// Config configures a Session and its provider.
type Config struct {
	// ClientID is the public client identifier registered with the provider.
	ClientID string

	// Authority is the tenant-scoped issuer URL used for discovery.
	Authority string

	// RedirectURI is the loopback address the provider redirects back to.
	// Port 0 picks a free port for every sign-in.
	RedirectURI string

	// Scopes are the permission scopes requested at sign-in.
	Scopes []string

	Strategy Strategy

	// ProfileEndpoint overrides the discovered userinfo endpoint.
	ProfileEndpoint string

	// PostLogoutRedirectURI is sent to the end-session endpoint, if set.
	PostLogoutRedirectURI string

	CallbackTimeout time.Duration

	// SkipSignatureCheck disables ID token signature verification.
	// Issuer, audience, expiry and nonce are still checked.
	SkipSignatureCheck bool
}

// WithDefaults returns a copy of c with empty fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.RedirectURI == "" {
		c.RedirectURI = DefaultRedirectURI
	}
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), DefaultScopes...)
	}
	if c.Strategy == "" {
		c.Strategy = StrategyPopup
	}
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = DefaultCallbackTimeout
	}
	c.Authority = strings.TrimSuffix(c.Authority, "/")
	return c
}

// Validate checks that the configuration can be used to build a provider.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return apperr.New(apperr.KindConfig, "", "client id is required")
	}
	if err := validateURL("authority", c.Authority, true); err != nil {
		return err
	}
	if err := validateURL("redirect uri", c.RedirectURI, false); err != nil {
		return err
	}
	if c.ProfileEndpoint != "" {
		if err := validateURL("profile endpoint", c.ProfileEndpoint, false); err != nil {
			return err
		}
	}
	switch c.Strategy {
	case StrategyPopup, StrategyRedirect:
	default:
		return apperr.New(apperr.KindConfig, "", "unknown sign-in strategy "+string(c.Strategy))
	}
	return nil
}

func validateURL(name, raw string, required bool) error {
	if raw == "" {
		if required {
			return apperr.New(apperr.KindConfig, "", name+" is required")
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperr.New(apperr.KindConfig, "", name+" must be an absolute http(s) URL")
	}
	return nil
}
