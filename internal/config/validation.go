package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"deltactl/internal/apperr"
	"deltactl/internal/identity"
	"deltactl/pkg/logging"
)

// OutputFormats lists the accepted values of the output key.
var OutputFormats = []string{"table", "json", "yaml"}

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	messages := lo.Map(ve, func(e ValidationError, _ int) string { return e.Error() })
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{Field: field, Value: val, Message: message})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Value: value, Message: "is required"}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	if lo.Contains(allowed, value) {
		return nil
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateHTTPURL checks that value is an absolute http or https URL.
func ValidateHTTPURL(field, value string) error {
	if err := ValidateRequired(field, value); err != nil {
		return err
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{Field: field, Value: value, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// Validate checks everything needed to start the shell. The returned error
// is a KindConfig *apperr.Error wrapping ValidationErrors.
func (c Config) Validate() error {
	var errs ValidationErrors
	collect := func(err error) {
		if ve, ok := err.(ValidationError); ok {
			errs = append(errs, ve)
		}
	}

	collect(ValidateRequired(KeyClientID, c.ClientID))
	collect(ValidateHTTPURL(KeyAuthority, c.Authority))
	collect(ValidateHTTPURL(KeyPrimaryEndpoint, c.PrimaryEndpoint))
	collect(ValidateHTTPURL(KeyDeltaEndpoint, c.DeltaEndpoint))
	collect(ValidateHTTPURL(KeyAdminEndpoint, c.AdminEndpoint))
	if c.ProfileEndpoint != "" {
		collect(ValidateHTTPURL(KeyProfileEndpoint, c.ProfileEndpoint))
	}
	collect(ValidateOneOf(KeySignInStrategy, c.SignInStrategy,
		[]string{string(identity.StrategyPopup), string(identity.StrategyRedirect)}))
	collect(ValidateOneOf(KeyOutput, c.Output, OutputFormats))

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add(KeyLogLevel, err.Error(), c.LogLevel)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs.Add(KeyLogFormat, err.Error(), c.LogFormat)
	}
	if c.HTTPTimeout <= 0 {
		errs.Add(KeyHTTPTimeout, "must be positive", c.HTTPTimeout)
	}
	if len(c.AdminRoles) == 0 {
		errs.Add(KeyAdminRoles, "must list at least one role")
	}

	if errs.HasErrors() {
		return apperr.Wrap(apperr.KindConfig, "validate config", errs)
	}
	return nil
}
