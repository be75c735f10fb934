// Package oauth parses the bearer challenges resource servers send back in
// WWW-Authenticate headers (RFC 6750 section 3).
//
// The data client attaches a parsed Challenge to 401 and 403 errors so the
// shell can tell an expired ID token from a missing scope:
//
//	if c := oauth.ChallengeFromResponse(resp); c != nil {
//		fmt.Println(c.Error, c.ErrorDescription)
//	}
package oauth
