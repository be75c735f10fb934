package mock

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Names of the mock provider's endpoints, used for call counting and
// failure injection.
const (
	EndpointDiscovery  = "discovery"
	EndpointAuthorize  = "authorize"
	EndpointToken      = "token"
	EndpointUserInfo   = "userinfo"
	EndpointJWKS       = "jwks"
	EndpointEndSession = "end_session"
)

// User is the identity the mock provider signs in.
type User struct {
	Subject           string
	Name              string
	Email             string
	PreferredUsername string
	Roles             []string
	Groups            []string
}

// OIDCServerConfig configures an OIDCServer.
type OIDCServerConfig struct {
	// ClientID is the only client the server accepts. Defaults to "deltactl-test".
	ClientID string

	User User

	// TokenLifetime is the access token lifetime reported as expires_in.
	TokenLifetime time.Duration

	// IDTokenLifetime bounds the exp claim of issued ID tokens.
	IDTokenLifetime time.Duration

	// OmitEndSession leaves end_session_endpoint out of discovery.
	OmitEndSession bool

	// OmitRefreshToken issues no refresh token.
	OmitRefreshToken bool

	Clock Clock
}

type authCodeEntry struct {
	clientID      string
	redirectURI   string
	scope         string
	nonce         string
	codeChallenge string
	method        string
}

type issuedToken struct {
	clientID  string
	scope     string
	user      User
	expiresAt time.Time
}

type injectedFailure struct {
	status int
	body   string
}

// OIDCServer is an in-process OpenID Connect provider.
type OIDCServer struct {
	cfg    OIDCServerConfig
	server *httptest.Server
	key    *rsa.PrivateKey
	kid    string
	client *http.Client

	mu                 sync.Mutex
	user               User
	codes              map[string]*authCodeEntry
	accessTokens       map[string]*issuedToken
	refreshTokens      map[string]*issuedToken
	failures           map[string]injectedFailure
	denyAuthorize      [2]string
	calls              map[string]int
	endSessionRequests []url.Values
	browseErrors       []error
}

// NewOIDCServer starts a mock provider. Call Close when done.
func NewOIDCServer(cfg OIDCServerConfig) *OIDCServer {
	if cfg.ClientID == "" {
		cfg.ClientID = "deltactl-test"
	}
	if cfg.TokenLifetime == 0 {
		cfg.TokenLifetime = time.Hour
	}
	if cfg.IDTokenLifetime == 0 {
		cfg.IDTokenLifetime = time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.User.Subject == "" {
		cfg.User = User{
			Subject:           "user-123",
			Name:              "Test User",
			Email:             "test.user@example.com",
			PreferredUsername: "test.user",
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("mock: generating signing key: %v", err))
	}

	s := &OIDCServer{
		cfg:           cfg,
		key:           key,
		kid:           uuid.NewString(),
		user:          cfg.User,
		codes:         make(map[string]*authCodeEntry),
		accessTokens:  make(map[string]*issuedToken),
		refreshTokens: make(map[string]*issuedToken),
		failures:      make(map[string]injectedFailure),
		calls:         make(map[string]int),
		client:        &http.Client{Timeout: 10 * time.Second},
	}

	r := chi.NewRouter()
	r.Get("/.well-known/openid-configuration", s.counted(EndpointDiscovery, s.handleDiscovery))
	r.Get("/authorize", s.counted(EndpointAuthorize, s.handleAuthorize))
	r.Post("/token", s.counted(EndpointToken, s.handleToken))
	r.Get("/userinfo", s.counted(EndpointUserInfo, s.handleUserInfo))
	r.Get("/jwks", s.counted(EndpointJWKS, s.handleJWKS))
	r.Post("/logout", s.counted(EndpointEndSession, s.handleEndSession))
	s.server = httptest.NewServer(r)

	return s
}

// Close shuts the server down.
func (s *OIDCServer) Close() {
	s.server.Close()
}

// Issuer returns the issuer URL to configure as authority.
func (s *OIDCServer) Issuer() string {
	return s.server.URL
}

// ClientID returns the accepted client id.
func (s *OIDCServer) ClientID() string {
	return s.cfg.ClientID
}

// SetUser changes the identity used for tokens issued from now on.
func (s *OIDCServer) SetUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// Fail makes the named endpoint answer with status and body until
// ClearFailures is called.
func (s *OIDCServer) Fail(endpoint string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = injectedFailure{status: status, body: body}
}

// DenyAuthorization makes the authorization endpoint redirect back with an
// OAuth error instead of a code.
func (s *OIDCServer) DenyAuthorization(code, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denyAuthorize = [2]string{code, description}
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *OIDCServer) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]*issuedToken)
}

// ClearFailures removes all injected failures.
func (s *OIDCServer) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]injectedFailure)
	s.denyAuthorize = [2]string{}
}

// Calls returns how many requests the named endpoint received.
func (s *OIDCServer) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// EndSessionRequests returns the forms posted to the end-session endpoint.
func (s *OIDCServer) EndSessionRequests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.endSessionRequests...)
}

// Browse plays the user's browser: it follows the authorization URL and its
// redirect to the loopback callback in the background. Its signature matches
// a navigator function.
func (s *OIDCServer) Browse(authURL string) error {
	go func() {
		resp, err := s.client.Get(authURL)
		if err == nil {
			resp.Body.Close()
		}
		if err != nil {
			s.mu.Lock()
			s.browseErrors = append(s.browseErrors, err)
			s.mu.Unlock()
		}
	}()
	return nil
}

// BrowseErrors returns failures seen by Browse.
func (s *OIDCServer) BrowseErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.browseErrors...)
}

// SignIDToken signs an ID token for u with the server's key. Extra claims
// override the defaults.
func (s *OIDCServer) SignIDToken(u User, extra map[string]any) string {
	now := s.cfg.Clock.Now()
	claims := jwt.MapClaims{
		"iss": s.Issuer(),
		"sub": u.Subject,
		"aud": s.cfg.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.IDTokenLifetime).Unix(),
	}
	if u.Name != "" {
		claims["name"] = u.Name
	}
	if u.Email != "" {
		claims["email"] = u.Email
	}
	if u.PreferredUsername != "" {
		claims["preferred_username"] = u.PreferredUsername
	}
	if len(u.Roles) > 0 {
		claims["roles"] = u.Roles
	}
	if len(u.Groups) > 0 {
		claims["groups"] = u.Groups
	}
	for k, v := range extra {
		claims[k] = v
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	signed, err := tok.SignedString(s.key)
	if err != nil {
		panic(fmt.Sprintf("mock: signing id token: %v", err))
	}
	return signed
}

func (s *OIDCServer) counted(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[endpoint]++
		failure, failing := s.failures[endpoint]
		s.mu.Unlock()

		if failing {
			w.WriteHeader(failure.status)
			_, _ = w.Write([]byte(failure.body))
			return
		}
		next(w, r)
	}
}

func (s *OIDCServer) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	issuer := s.Issuer()
	metadata := map[string]any{
		"issuer":                                issuer,
		"authorization_endpoint":                issuer + "/authorize",
		"token_endpoint":                        issuer + "/token",
		"userinfo_endpoint":                     issuer + "/userinfo",
		"jwks_uri":                              issuer + "/jwks",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"token_endpoint_auth_methods_supported": []string{"none"},
		"scopes_supported":                      []string{"openid", "profile", "email", "offline_access"},
		"code_challenge_methods_supported":      []string{"S256"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}
	if !s.cfg.OmitEndSession {
		metadata["end_session_endpoint"] = issuer + "/logout"
	}
	writeJSON(w, http.StatusOK, metadata)
}

func (s *OIDCServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURI := q.Get("redirect_uri")

	if q.Get("response_type") != "code" {
		http.Error(w, "unsupported_response_type", http.StatusBadRequest)
		return
	}
	if q.Get("client_id") != s.cfg.ClientID {
		http.Error(w, "invalid_client", http.StatusBadRequest)
		return
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		http.Error(w, "PKCE with S256 is required", http.StatusBadRequest)
		return
	}
	target, err := url.Parse(redirectURI)
	if err != nil || redirectURI == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	deny := s.denyAuthorize
	s.mu.Unlock()

	params := target.Query()
	params.Set("state", q.Get("state"))
	if deny[0] != "" {
		params.Set("error", deny[0])
		if deny[1] != "" {
			params.Set("error_description", deny[1])
		}
	} else {
		code := generateOpaqueToken()
		s.mu.Lock()
		s.codes[code] = &authCodeEntry{
			clientID:      q.Get("client_id"),
			redirectURI:   redirectURI,
			scope:         q.Get("scope"),
			nonce:         q.Get("nonce"),
			codeChallenge: q.Get("code_challenge"),
			method:        q.Get("code_challenge_method"),
		}
		s.mu.Unlock()
		params.Set("code", code)
	}
	target.RawQuery = params.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *OIDCServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		tokenError(w, "invalid_request", "malformed form")
		return
	}
	if r.FormValue("client_id") != s.cfg.ClientID {
		tokenError(w, "invalid_client", "unknown client")
		return
	}

	switch r.FormValue("grant_type") {
	case "authorization_code":
		s.handleAuthCodeExchange(w, r)
	case "refresh_token":
		s.handleRefreshToken(w, r)
	default:
		tokenError(w, "unsupported_grant_type", "grant_type not supported")
	}
}

func (s *OIDCServer) handleAuthCodeExchange(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")

	s.mu.Lock()
	entry, ok := s.codes[code]
	delete(s.codes, code)
	user := s.user
	s.mu.Unlock()

	if !ok {
		tokenError(w, "invalid_grant", "authorization code not found or already used")
		return
	}
	if r.FormValue("redirect_uri") != entry.redirectURI {
		tokenError(w, "invalid_grant", "redirect_uri mismatch")
		return
	}
	if !verifyPKCE(entry.codeChallenge, r.FormValue("code_verifier")) {
		tokenError(w, "invalid_grant", "code_verifier verification failed")
		return
	}

	extra := map[string]any{}
	if entry.nonce != "" {
		extra["nonce"] = entry.nonce
	}
	s.issueTokens(w, entry.scope, user, s.SignIDToken(user, extra))
}

func (s *OIDCServer) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	rt := r.FormValue("refresh_token")

	s.mu.Lock()
	issued, ok := s.refreshTokens[rt]
	delete(s.refreshTokens, rt)
	user := s.user
	s.mu.Unlock()

	if !ok {
		tokenError(w, "invalid_grant", "refresh token is invalid or expired")
		return
	}
	if user.Subject != issued.user.Subject {
		user = issued.user
	}
	s.issueTokens(w, issued.scope, user, s.SignIDToken(user, nil))
}

func (s *OIDCServer) issueTokens(w http.ResponseWriter, scope string, user User, idToken string) {
	now := s.cfg.Clock.Now()
	accessToken := generateOpaqueToken()
	issued := &issuedToken{
		clientID:  s.cfg.ClientID,
		scope:     scope,
		user:      user,
		expiresAt: now.Add(s.cfg.TokenLifetime),
	}

	resp := map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int(s.cfg.TokenLifetime.Seconds()),
		"scope":        scope,
		"id_token":     idToken,
	}

	s.mu.Lock()
	s.accessTokens[accessToken] = issued
	if !s.cfg.OmitRefreshToken {
		refreshToken := generateOpaqueToken()
		s.refreshTokens[refreshToken] = issued
		resp["refresh_token"] = refreshToken
	}
	s.mu.Unlock()

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (s *OIDCServer) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	issued, known := s.accessTokens[token]
	s.mu.Unlock()

	if !ok || !known || s.cfg.Clock.Now().After(issued.expiresAt) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		http.Error(w, "invalid_token", http.StatusUnauthorized)
		return
	}

	profile := map[string]any{"sub": issued.user.Subject}
	if issued.user.Name != "" {
		profile["name"] = issued.user.Name
	}
	if issued.user.Email != "" {
		profile["email"] = issued.user.Email
	}
	if issued.user.PreferredUsername != "" {
		profile["preferred_username"] = issued.user.PreferredUsername
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *OIDCServer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	pub := s.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": s.kid,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (s *OIDCServer) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.endSessionRequests = append(s.endSessionRequests, r.PostForm)
	s.mu.Unlock()

	if target := r.PostForm.Get("post_logout_redirect_uri"); target != "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func verifyPKCE(challenge, verifier string) bool {
	if verifier == "" {
		return false
	}
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:]) == challenge
}

func tokenError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func generateOpaqueToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("mock: generating token: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
