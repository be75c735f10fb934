package cli

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"

	"deltactl/internal/apperr"
	"deltactl/pkg/oauth"
)

// FormatError formats an error message for CLI output, followed by a hint
// when the error is one the user can do something about.
func FormatError(err error) string {
	msg := text.FgRed.Sprintf("Error: %v", err)
	if hint := Hint(err); hint != "" {
		msg += "\n" + text.FgHiBlack.Sprint("  "+hint)
	}
	return msg
}

// FormatSuccess formats a success message for CLI output
func FormatSuccess(msg string) string {
	return text.FgGreen.Sprintf("✓ %s", msg)
}

// FormatWarning formats a warning message for CLI output
func FormatWarning(msg string) string {
	return text.FgYellow.Sprintf("⚠ %s", msg)
}

// Hint suggests what to do about err, or returns "".
func Hint(err error) string {
	if err == nil {
		return ""
	}
	var transport *apperr.TransportError
	if errors.As(err, &transport) {
		return fmt.Sprintf("Could not reach %s; check the endpoint URL and your network.", transport.Endpoint)
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Challenge != nil {
		switch appErr.Challenge.Error {
		case oauth.ErrorInvalidToken:
			return "The server rejected your ID token; run 'signin' again."
		case oauth.ErrorInsufficientScope:
			if appErr.Challenge.Scope != "" {
				return fmt.Sprintf("The server requires the scopes %q; add them to the scopes setting.", appErr.Challenge.Scope)
			}
			return "Your ID token lacks a scope the server requires."
		}
	}

	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		return "Run 'signin' first."
	case apperr.KindSilentAcquisition:
		return "Your session expired; run 'signin' again."
	case apperr.KindUninitialized:
		return "Sign-in is unavailable; check the authority and client ID settings."
	case apperr.KindForbidden:
		return "Your account has none of the admin roles."
	case apperr.KindConfig:
		return "Check your configuration file, flags and DELTACTL_ environment variables."
	case apperr.KindInteraction:
		return "Sign-in did not complete; run 'signin' to try again."
	default:
		return ""
	}
}
