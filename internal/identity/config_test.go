package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"deltactl/internal/apperr"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{ClientID: "c", Authority: "https://idp.example/tenant/"}.WithDefaults()

	assert.Equal(t, DefaultRedirectURI, cfg.RedirectURI)
	assert.Equal(t, DefaultScopes, cfg.Scopes)
	assert.Equal(t, StrategyPopup, cfg.Strategy)
	assert.Equal(t, DefaultCallbackTimeout, cfg.CallbackTimeout)
	assert.Equal(t, "https://idp.example/tenant", cfg.Authority)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{ClientID: "c", Authority: "https://idp.example"}.WithDefaults()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing client id", func(c *Config) { c.ClientID = " " }, true},
		{"missing authority", func(c *Config) { c.Authority = "" }, true},
		{"relative authority", func(c *Config) { c.Authority = "/tenant" }, true},
		{"bad profile endpoint", func(c *Config) { c.ProfileEndpoint = "ftp://x" }, true},
		{"unknown strategy", func(c *Config) { c.Strategy = "tab" }, true},
		{"redirect strategy", func(c *Config) { c.Strategy = StrategyRedirect }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrConfig), "got %v", err)
		})
	}
}
