package identity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"deltactl/internal/apperr"
	"deltactl/pkg/logging"
)

const opProfile = "get user details"

// maxProfileBody bounds how much of a profile response is read.
const maxProfileBody = 1 << 20

// Session owns the current account and its in-memory token material.
// All methods are safe for concurrent use.
type Session struct {
	provider   Provider
	httpClient *http.Client
	now        func() time.Time

	mu          sync.RWMutex
	cfg         Config
	state       AuthState
	account     *Account
	idToken     string
	accessToken string
	claims      *Claims
	// claimsFor is the token claims was decoded from.
	claimsFor string

	removeProviderCallback func()

	hMu      sync.Mutex
	handlers map[int]func(SessionEvent)
	hOrder   []int
	nextHID  int
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient sets the client used for profile requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an uninitialized session over provider.
func New(provider Provider, opts ...Option) *Session {
	s := &Session{
		provider:   provider,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		now:        time.Now,
		state:      StateUninitialized,
		handlers:   make(map[int]func(SessionEvent)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize validates cfg and initializes the provider. Every other
// operation fails with KindUninitialized until this succeeds.
func (s *Session) Initialize(ctx context.Context, cfg Config) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.provider == nil {
		return apperr.New(apperr.KindUninitialized, "initialize", "no identity provider available")
	}
	if err := s.provider.Initialize(ctx, cfg); err != nil {
		logging.Error("Identity", err, "identity provider initialization failed")
		return apperr.Wrap(apperr.KindUninitialized, "initialize", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeProviderCallback != nil {
		s.removeProviderCallback()
	}
	s.removeProviderCallback = s.provider.AddEventCallback(s.onProviderEvent)
	s.cfg = cfg
	if s.state == StateUninitialized {
		s.state = StateUnauthenticated
	}
	return nil
}

// Close detaches the session from the provider's events.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeProviderCallback != nil {
		s.removeProviderCallback()
		s.removeProviderCallback = nil
	}
}

// State returns the current lifecycle state.
func (s *Session) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Strategy returns the configured sign-in strategy.
func (s *Session) Strategy() Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Strategy
}

// SignIn starts the interactive sign-in. With the popup strategy it returns
// once the session is established. With the redirect strategy it returns as
// soon as the authorization URL was published, leaving the session pending.
func (s *Session) SignIn(ctx context.Context) error {
	s.mu.RLock()
	state, strategy, scopes := s.state, s.cfg.Strategy, s.cfg.Scopes
	s.mu.RUnlock()

	if state == StateUninitialized {
		return apperr.New(apperr.KindUninitialized, opSignIn, "identity session is not initialized")
	}

	req := LoginRequest{Scopes: scopes, Prompt: "select_account"}

	if strategy == StrategyRedirect {
		s.setState(StatePending)
		if _, err := s.provider.LoginRedirect(ctx, req); err != nil {
			s.setState(state)
			return err
		}
		return nil
	}

	res, err := s.provider.LoginPopup(ctx, req)
	if err != nil {
		return err
	}
	s.establish(res)
	return nil
}

// SignOut clears every credential held in memory and then ends the provider
// session. The local clear is unconditional; a provider failure is returned
// with the session already cleared.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return apperr.New(apperr.KindUninitialized, opSignOut, "identity session is not initialized")
	}
	account, idToken, postLogout := s.account, s.idToken, s.cfg.PostLogoutRedirectURI
	s.account = nil
	s.idToken = ""
	s.accessToken = ""
	s.claims = nil
	s.claimsFor = ""
	s.state = StateUnauthenticated
	s.mu.Unlock()

	if account == nil {
		if accounts := s.provider.GetAllAccounts(); len(accounts) > 0 {
			account = &accounts[0]
		}
	}

	err := s.provider.Logout(ctx, LogoutRequest{
		Account:               account,
		IDTokenHint:           idToken,
		PostLogoutRedirectURI: postLogout,
	})
	if err != nil {
		logging.Warn("Identity", "provider sign-out failed, local session already cleared: %v", err)
		return err
	}
	logging.Info("Identity", "signed out")
	return nil
}

// GetAccount returns the session's account, or the first account the
// provider knows about.
func (s *Session) GetAccount() (*Account, bool) {
	s.mu.RLock()
	state, account := s.state, s.account
	s.mu.RUnlock()

	if state == StateUninitialized {
		return nil, false
	}
	if account != nil {
		a := *account
		return &a, true
	}
	if accounts := s.provider.GetAllAccounts(); len(accounts) > 0 {
		a := accounts[0]
		return &a, true
	}
	return nil, false
}

// AccountID returns the home account id of the signed-in user, or "".
func (s *Session) AccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return ""
	}
	return s.account.HomeAccountID
}

// GetIDToken returns the held ID token.
func (s *Session) GetIDToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idToken, s.idToken != ""
}

// GetIDTokenClaims returns the claims of the held ID token. The decode runs
// once per token. A missing or malformed token yields false.
func (s *Session) GetIDTokenClaims() (*Claims, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idToken == "" {
		return nil, false
	}
	if s.claims != nil && s.claimsFor == s.idToken {
		return s.claims, true
	}

	claims, err := DecodeClaims(s.idToken)
	if err != nil {
		logging.Debug("Identity", "held id token %s could not be decoded: %v", logging.Redact(s.idToken), err)
		return nil, false
	}
	s.claims, s.claimsFor = claims, s.idToken
	return claims, true
}

// GetUserDetails acquires an access token silently and reads the user's
// profile from the provider. A silent failure marks the session stale
// without clearing it.
func (s *Session) GetUserDetails(ctx context.Context) (*UserProfile, error) {
	s.mu.RLock()
	state, scopes, endpoint := s.state, s.cfg.Scopes, s.cfg.ProfileEndpoint
	var account *Account
	if s.account != nil {
		a := *s.account
		account = &a
	}
	s.mu.RUnlock()

	if state == StateUninitialized {
		return nil, apperr.New(apperr.KindUninitialized, opProfile, "identity session is not initialized")
	}
	if account == nil {
		return nil, apperr.New(apperr.KindUnauthenticated, opProfile, "no signed-in account")
	}

	accessToken, err := s.renew(ctx, *account, scopes, false)
	if err != nil {
		return nil, err
	}

	if endpoint == "" {
		endpoint = s.provider.ProfileEndpoint()
	}
	if endpoint == "" {
		return nil, apperr.New(apperr.KindConfig, opProfile, "provider does not advertise a profile endpoint")
	}

	profile, err := s.fetchProfile(ctx, endpoint, accessToken)
	if !isUnauthorized(err) {
		return profile, err
	}

	// The provider rejected a token the local cache still considers valid.
	// Renew it once, bypassing the cache.
	logging.Debug("Identity", "profile endpoint rejected access token %s, forcing refresh", logging.Redact(accessToken))
	accessToken, err = s.renew(ctx, *account, scopes, true)
	if err != nil {
		return nil, err
	}
	return s.fetchProfile(ctx, endpoint, accessToken)
}

// renew acquires an access token for account without interaction. A failure
// marks the session stale.
func (s *Session) renew(ctx context.Context, account Account, scopes []string, force bool) (string, error) {
	res, err := s.provider.AcquireTokenSilent(ctx, SilentRequest{Account: account, Scopes: scopes, ForceRefresh: force})
	if err != nil {
		s.markStale(account.HomeAccountID)
		if apperr.KindOf(err) != apperr.KindSilentAcquisition {
			err = apperr.Wrap(apperr.KindSilentAcquisition, opProfile, err)
		}
		return "", err
	}
	s.applySilentResult(account.HomeAccountID, res)
	return res.AccessToken, nil
}

func isUnauthorized(err error) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.StatusCode == http.StatusUnauthorized
}

func (s *Session) fetchProfile(ctx context.Context, endpoint, accessToken string) (*UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindHTTP, opProfile, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Classify(opProfile, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return nil, apperr.Classify(opProfile, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.HTTPStatus(opProfile, resp.StatusCode, string(body))
	}

	var profile UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedPayload, opProfile, err)
	}
	if err := json.Unmarshal(body, &profile.Raw); err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedPayload, opProfile, err)
	}
	return &profile, nil
}

// OnSessionEstablished registers handler for successful sign-ins. Handlers
// run in subscription order. The returned func unsubscribes and may be called
// more than once.
func (s *Session) OnSessionEstablished(handler func(SessionEvent)) (unsubscribe func()) {
	s.hMu.Lock()
	defer s.hMu.Unlock()

	id := s.nextHID
	s.nextHID++
	s.handlers[id] = handler
	s.hOrder = append(s.hOrder, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.hMu.Lock()
			defer s.hMu.Unlock()
			delete(s.handlers, id)
			s.hOrder = lo.Without(s.hOrder, id)
		})
	}
}

// establish stores a sign-in result and notifies handlers.
func (s *Session) establish(res *AuthResult) {
	account := res.Account

	s.mu.Lock()
	s.account = &account
	s.idToken = res.IDToken
	s.accessToken = res.AccessToken
	s.claims, s.claimsFor = nil, ""
	s.state = StateAuthenticated
	s.mu.Unlock()

	claims, _ := s.GetIDTokenClaims()
	ev := SessionEvent{Account: account, Claims: claims, At: s.now()}

	s.hMu.Lock()
	handlers := lo.FilterMap(s.hOrder, func(id int, _ int) (func(SessionEvent), bool) {
		h, ok := s.handlers[id]
		return h, ok
	})
	s.hMu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (s *Session) applySilentResult(accountID string, res *AuthResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil || s.account.HomeAccountID != accountID {
		return
	}
	s.accessToken = res.AccessToken
	if res.IDToken != "" && res.IDToken != s.idToken {
		s.idToken = res.IDToken
		s.claims, s.claimsFor = nil, ""
	}
	s.state = StateAuthenticated
}

func (s *Session) markStale(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account != nil && s.account.HomeAccountID == accountID {
		s.state = StateStaleCredential
	}
}

func (s *Session) setState(state AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// onProviderEvent completes redirect sign-ins. Popup results are applied by
// SignIn directly.
func (s *Session) onProviderEvent(ev ProviderEvent) {
	if ev.Interaction != InteractionRedirect {
		return
	}
	switch ev.Type {
	case EventLoginSuccess:
		if ev.Result != nil {
			s.establish(ev.Result)
		}
	case EventLoginFailure:
		s.mu.Lock()
		if s.state == StatePending {
			s.state = StateUnauthenticated
		}
		s.mu.Unlock()
		if !errors.Is(ev.Err, context.Canceled) {
			logging.Error("Identity", ev.Err, "redirect sign-in failed")
		}
	}
}
