// Package dataclient performs bearer-authenticated requests against the
// primary data, user-delta and admin file endpoints, and keeps an in-memory
// cache of the primary and user payloads.
//
// Every operation reads the current ID token from the identity source before
// touching the network. Without a token the operation fails with an
// unauthenticated error and makes no request.
//
// The cache is whole-payload and keyed by account: when the signed-in account
// changes, whatever was cached for the previous one is dropped before use.
// Concurrent non-forced fetches of the same endpoint share one request.
package dataclient
