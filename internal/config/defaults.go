package config

import (
	"github.com/spf13/viper"

	"deltactl/internal/dataclient"
	"deltactl/internal/identity"
)

const (
	// EnvPrefix prefixes every environment variable deltactl reads.
	EnvPrefix = "DELTACTL"

	// ConfigName is the config file name without extension.
	ConfigName = ".deltactl"

	DefaultOutput    = "table"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		RedirectURI:     identity.DefaultRedirectURI,
		Scopes:          append([]string(nil), identity.DefaultScopes...),
		SignInStrategy:  string(identity.StrategyPopup),
		CallbackTimeout: identity.DefaultCallbackTimeout,
		AdminRoles:      []string{"admin"},
		HTTPTimeout:     dataclient.DefaultTimeout,
		Output:          DefaultOutput,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
	}
}

// SetDefaults registers Default() on v. Keys without a default are
// registered empty so environment variables resolve for them too.
func SetDefaults(v *viper.Viper) {
	for _, key := range []string{
		KeyClientID, KeyAuthority, KeyProfileEndpoint, KeyPostLogoutRedirectURI,
		KeyPrimaryEndpoint, KeyDeltaEndpoint, KeyAdminEndpoint, KeyMetricsListen,
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault(KeySkipSignatureCheck, false)

	d := Default()
	v.SetDefault(KeyRedirectURI, d.RedirectURI)
	v.SetDefault(KeyScopes, d.Scopes)
	v.SetDefault(KeySignInStrategy, d.SignInStrategy)
	v.SetDefault(KeyCallbackTimeout, d.CallbackTimeout)
	v.SetDefault(KeyAdminRoles, d.AdminRoles)
	v.SetDefault(KeyHTTPTimeout, d.HTTPTimeout)
	v.SetDefault(KeyOutput, d.Output)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
}
