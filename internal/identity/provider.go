package identity

import "context"

// Provider is the identity provider client the Session drives. It performs
// the protocol work; the Session owns what the application sees.
type Provider interface {
	// Initialize discovers the provider and prepares the client. It fails
	// when the provider cannot be reached or its metadata is unusable.
	Initialize(ctx context.Context, cfg Config) error

	// LoginPopup runs an interactive sign-in and blocks until it completes.
	LoginPopup(ctx context.Context, req LoginRequest) (*AuthResult, error)

	// LoginRedirect starts an interactive sign-in and returns the
	// authorization URL without waiting. The outcome is published as an
	// EventLoginSuccess or EventLoginFailure event.
	LoginRedirect(ctx context.Context, req LoginRequest) (string, error)

	// Logout forgets the account and ends the provider-side session.
	Logout(ctx context.Context, req LogoutRequest) error

	// AcquireTokenSilent returns valid tokens for an account without user
	// interaction, refreshing them if needed.
	AcquireTokenSilent(ctx context.Context, req SilentRequest) (*AuthResult, error)

	// GetAllAccounts lists the accounts the provider holds tokens for.
	GetAllAccounts() []Account

	// AddEventCallback registers fn for provider events. The returned func
	// removes it.
	AddEventCallback(fn func(ProviderEvent)) (remove func())

	// ProfileEndpoint is the discovered userinfo endpoint, or "".
	ProfileEndpoint() string
}
