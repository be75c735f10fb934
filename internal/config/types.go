package config

import (
	"time"

	"deltactl/internal/dataclient"
	"deltactl/internal/identity"
)

// Configuration keys. Flags, config file entries and environment variables
// (DELTACTL_ prefix, dashes become underscores) share these names.
const (
	KeyClientID              = "client-id"
	KeyAuthority             = "authority"
	KeyRedirectURI           = "redirect-uri"
	KeyScopes                = "scopes"
	KeySignInStrategy        = "sign-in-strategy"
	KeyProfileEndpoint       = "profile-endpoint"
	KeyPostLogoutRedirectURI = "post-logout-redirect-uri"
	KeyCallbackTimeout       = "callback-timeout"
	KeySkipSignatureCheck    = "skip-signature-check"
	KeyPrimaryEndpoint       = "primary-endpoint"
	KeyDeltaEndpoint         = "delta-endpoint"
	KeyAdminEndpoint         = "admin-endpoint"
	KeyAdminRoles            = "admin-roles"
	KeyHTTPTimeout           = "http-timeout"
	KeyOutput                = "output"
	KeyLogLevel              = "log-level"
	KeyLogFormat             = "log-format"
	KeyMetricsListen         = "metrics-listen"
)

// Config is the merged configuration.
type Config struct {
	ClientID              string        `mapstructure:"client-id" yaml:"client-id"`
	Authority             string        `mapstructure:"authority" yaml:"authority"`
	RedirectURI           string        `mapstructure:"redirect-uri" yaml:"redirect-uri"`
	Scopes                []string      `mapstructure:"scopes" yaml:"scopes"`
	SignInStrategy        string        `mapstructure:"sign-in-strategy" yaml:"sign-in-strategy"`
	ProfileEndpoint       string        `mapstructure:"profile-endpoint" yaml:"profile-endpoint,omitempty"`
	PostLogoutRedirectURI string        `mapstructure:"post-logout-redirect-uri" yaml:"post-logout-redirect-uri,omitempty"`
	CallbackTimeout       time.Duration `mapstructure:"callback-timeout" yaml:"callback-timeout"`
	SkipSignatureCheck    bool          `mapstructure:"skip-signature-check" yaml:"skip-signature-check"`

	PrimaryEndpoint string        `mapstructure:"primary-endpoint" yaml:"primary-endpoint"`
	DeltaEndpoint   string        `mapstructure:"delta-endpoint" yaml:"delta-endpoint"`
	AdminEndpoint   string        `mapstructure:"admin-endpoint" yaml:"admin-endpoint"`
	AdminRoles      []string      `mapstructure:"admin-roles" yaml:"admin-roles"`
	HTTPTimeout     time.Duration `mapstructure:"http-timeout" yaml:"http-timeout"`

	Output        string `mapstructure:"output" yaml:"output"`
	LogLevel      string `mapstructure:"log-level" yaml:"log-level"`
	LogFormat     string `mapstructure:"log-format" yaml:"log-format"`
	MetricsListen string `mapstructure:"metrics-listen" yaml:"metrics-listen,omitempty"`
}

// Identity returns the identity session configuration.
func (c Config) Identity() identity.Config {
	return identity.Config{
		ClientID:              c.ClientID,
		Authority:             c.Authority,
		RedirectURI:           c.RedirectURI,
		Scopes:                c.Scopes,
		Strategy:              identity.Strategy(c.SignInStrategy),
		ProfileEndpoint:       c.ProfileEndpoint,
		PostLogoutRedirectURI: c.PostLogoutRedirectURI,
		CallbackTimeout:       c.CallbackTimeout,
		SkipSignatureCheck:    c.SkipSignatureCheck,
	}
}

// Endpoints returns the data client endpoints.
func (c Config) Endpoints() dataclient.Endpoints {
	return dataclient.Endpoints{
		Primary: c.PrimaryEndpoint,
		Delta:   c.DeltaEndpoint,
		Admin:   c.AdminEndpoint,
	}
}
