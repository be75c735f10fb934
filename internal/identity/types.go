package identity

import "time"

// AuthState is the lifecycle state of a Session.
type AuthState int

const (
	StateUninitialized AuthState = iota
	StateUnauthenticated
	// StatePending means a redirect sign-in was started and has not completed.
	StatePending
	StateAuthenticated
	// StateStaleCredential means silent acquisition failed. The session is
	// kept; the caller decides whether to sign in again.
	StateStaleCredential
)

// String returns a human-readable representation of the auth state.
func (s AuthState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePending:
		return "pending"
	case StateAuthenticated:
		return "authenticated"
	case StateStaleCredential:
		return "stale_credential"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s AuthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Account identifies the signed-in principal.
type Account struct {
	// HomeAccountID is "<subject>.<issuer>" and keys per-user state.
	HomeAccountID string `json:"homeAccountId"`
	Subject       string `json:"subject"`
	Issuer        string `json:"issuer"`
	// Username is the preferred_username claim, falling back to email.
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// UserProfile is the document returned by the provider's profile endpoint.
type UserProfile struct {
	Subject           string         `json:"sub"`
	Name              string         `json:"name,omitempty"`
	Email             string         `json:"email,omitempty"`
	PreferredUsername string         `json:"preferred_username,omitempty"`
	Raw               map[string]any `json:"-"`
}

// SessionEvent is delivered to session-established handlers.
type SessionEvent struct {
	Account Account
	Claims  *Claims
	At      time.Time
}

// AuthResult is what the provider yields after an interactive or silent
// token acquisition.
type AuthResult struct {
	Account     Account
	IDToken     string
	AccessToken string
	ExpiresOn   time.Time
	Scopes      []string
}

// LoginRequest parameterizes an interactive sign-in.
type LoginRequest struct {
	Scopes []string
	// Prompt is passed through as the OIDC prompt parameter when set.
	Prompt string
	// LoginHint pre-fills the username on the provider's sign-in page.
	LoginHint string
}

// LogoutRequest parameterizes a provider sign-out.
type LogoutRequest struct {
	Account               *Account
	IDTokenHint           string
	PostLogoutRedirectURI string
}

// SilentRequest parameterizes a non-interactive token acquisition.
type SilentRequest struct {
	Account Account
	Scopes  []string
	// ForceRefresh skips the held access token even if it is still valid.
	ForceRefresh bool
}

// EventType names a provider event.
type EventType string

const (
	EventLoginSuccess        EventType = "login_success"
	EventLoginFailure        EventType = "login_failure"
	EventAcquireTokenSuccess EventType = "acquire_token_success"
	EventAcquireTokenFailure EventType = "acquire_token_failure"
	EventLogoutSuccess       EventType = "logout_success"
)

// Interaction tells how a login event was driven.
type Interaction string

const (
	InteractionPopup    Interaction = "popup"
	InteractionRedirect Interaction = "redirect"
	InteractionSilent   Interaction = "silent"
)

// ProviderEvent is passed to callbacks registered with Provider.AddEventCallback.
type ProviderEvent struct {
	Type        EventType
	Interaction Interaction
	Result      *AuthResult
	Err         error
}
