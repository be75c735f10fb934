// Package mock provides in-process test doubles for the services deltactl
// talks to.
//
// OIDCServer is an OpenID Connect provider: discovery, an auto-approving
// authorization endpoint, a token endpoint with PKCE and refresh support,
// RS256-signed ID tokens with a matching JWKS document, userinfo and an
// end-session endpoint. DataBackend serves the primary, user-delta and admin
// endpoints behind a bearer check and counts every call so tests can assert
// on network traffic.
//
// Both servers run on httptest listeners and accept failure injection.
package mock
