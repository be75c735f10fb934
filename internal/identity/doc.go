// Package identity owns the signed-in user's session: the account, the ID
// token used as a bearer credential, the access token used against the
// provider's profile endpoint, and the claims decoded from the ID token.
//
// # Sign-in
//
// Sign-in is an OpenID Connect authorization code flow with PKCE. The
// authorization URL is opened in the system browser and the provider redirects
// back to a short-lived loopback CallbackServer. Two strategies exist:
//
//   - popup: SignIn blocks until the callback arrives and the code has been
//     exchanged and the ID token verified.
//   - redirect: SignIn publishes the authorization URL and returns with the
//     session in the pending state. Completion is delivered asynchronously
//     through the provider event callback, after which the session-established
//     handlers run.
//
// # Storage
//
// Token material lives in process memory only. Nothing is written to disk or
// to a keyring; a new process requires a new sign-in.
//
// # Claims
//
// Claims are a pure decode of the ID token's middle segment. They are
// recomputed whenever the held token changes and never mutated on their own.
package identity
