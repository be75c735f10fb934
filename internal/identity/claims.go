package identity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"

	"deltactl/internal/apperr"
	"deltactl/pkg/logging"
)

// Claims is the typed view of an ID token's payload.
//
// Role-like claims are explicit ordered slices. A token without roles has an
// empty slice, never nil.
type Claims struct {
	Subject           string
	Issuer            string
	Audience          []string
	ExpiresAt         time.Time
	IssuedAt          time.Time
	Name              string
	PreferredUsername string
	Email             string
	Roles             []string
	Groups            []string

	// Raw holds every claim as decoded, numbers kept as json.Number.
	Raw jwt.MapClaims
}

// HasRole reports whether role is among the token's roles.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return lo.Contains(c.Roles, role)
}

// HasAnyRole reports whether at least one of roles is held.
func (c *Claims) HasAnyRole(roles ...string) bool {
	if c == nil {
		return false
	}
	return lo.Some(c.Roles, roles)
}

// Expired reports whether the token's exp claim is before now. Tokens without
// an exp claim never expire.
func (c *Claims) Expired(now time.Time) bool {
	return c != nil && !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Username returns preferred_username, falling back to email.
func (c *Claims) Username() string {
	if c == nil {
		return ""
	}
	return lo.CoalesceOrEmpty(c.PreferredUsername, c.Email)
}

const opDecodeClaims = "decode id token claims"

// DecodeClaims decodes the middle segment of a compact JWT. The signature is
// not checked; verification happens once, when the token is received.
func DecodeClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, apperr.Wrap(apperr.KindTokenDecode, opDecodeClaims,
			fmt.Errorf("expected 3 segments, got %d", len(parts)))
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTokenDecode, opDecodeClaims, err)
	}

	raw := jwt.MapClaims{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, apperr.Wrap(apperr.KindTokenDecode, opDecodeClaims, err)
	}

	return claimsFromMap(raw), nil
}

// claimsFromMap fills the typed fields it can. A standard claim of the wrong
// type is left at its zero value; it is still available in Raw.
func claimsFromMap(raw jwt.MapClaims) *Claims {
	c := &Claims{Raw: raw}

	c.Subject = typedClaim("sub", raw.GetSubject)
	c.Issuer = typedClaim("iss", raw.GetIssuer)
	c.Audience = []string(typedClaim("aud", raw.GetAudience))
	if exp := typedClaim("exp", raw.GetExpirationTime); exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat := typedClaim("iat", raw.GetIssuedAt); iat != nil {
		c.IssuedAt = iat.Time
	}

	c.Name = stringClaim(raw, "name")
	c.PreferredUsername = stringClaim(raw, "preferred_username")
	c.Email = stringClaim(raw, "email")
	c.Groups = stringsClaim(raw["groups"])

	// Keycloak puts realm roles under realm_access.roles.
	roles := stringsClaim(raw["roles"])
	if realm, ok := raw["realm_access"].(map[string]any); ok {
		roles = append(roles, stringsClaim(realm["roles"])...)
	}
	c.Roles = lo.Uniq(roles)

	return c
}

func typedClaim[T any](name string, get func() (T, error)) T {
	v, err := get()
	if err != nil {
		logging.Debug("Identity", "ignoring claim %s: %v", name, err)
		var zero T
		return zero
	}
	return v
}

func stringClaim(raw jwt.MapClaims, key string) string {
	s, _ := raw[key].(string)
	return s
}

// stringsClaim accepts either a single string or an array of strings.
// Non-string array members are skipped.
func stringsClaim(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return []string{}
		}
		return []string{t}
	case []any:
		return lo.FilterMap(t, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok && s != ""
		})
	default:
		return []string{}
	}
}
