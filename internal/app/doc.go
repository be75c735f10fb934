// Package app wires the identity session and the data client together and
// sequences application startup for deltactl.
//
// # Components
//
//   - App (app.go): the coordinator. Presentation code calls it for every user
//     intent (sign in, sign out, fetch, save, browse admin files) and reads a
//     View snapshot back for rendering.
//   - Services (services.go): builds the session, the data client and the
//     metrics registry from a validated configuration.
//
// # Startup
//
// Start initializes the identity session, looks for an account the provider
// already knows, subscribes to session-established notifications and
// publishes the first View. When the identity provider cannot be initialized
// Start reports the error but the App stays usable: operations that need a
// session fail with an uninitialized error, everything else keeps working.
//
// # Sign-out
//
// SignOut always clears the data cache, even when the provider-side logout
// fails, so one user's cached data is never shown to the next.
//
// # Admin access
//
// CanViewAdmin checks the ID token's role claims against the configured admin
// roles. Admin operations are refused locally when the check fails; the
// backend still performs its own authorization.
package app
