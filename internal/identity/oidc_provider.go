package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/samber/lo"
	"golang.org/x/oauth2"

	"deltactl/internal/apperr"
	"deltactl/pkg/logging"
)

const (
	opSignIn  = "sign in"
	opSignOut = "sign out"
	opSilent  = "acquire token silently"
)

// heldTokens is the provider's in-memory token cache for one account.
type heldTokens struct {
	token   *oauth2.Token
	idToken string
}

// authFlow is one in-progress authorization code flow.
type authFlow struct {
	state    string
	nonce    string
	verifier string
	server   *CallbackServer
	oauthCfg oauth2.Config
	authURL  string
}

// OIDCProvider implements Provider against an OpenID Connect issuer using
// discovery, PKCE and a loopback redirect.
type OIDCProvider struct {
	httpClient *http.Client
	navigator  Navigator

	mu            sync.Mutex
	cfg           Config
	provider      *oidc.Provider
	verifier      *oidc.IDTokenVerifier
	oauth2Config  oauth2.Config
	endSessionURL string
	accounts      []Account
	tokens        map[string]*heldTokens
	cancelPending context.CancelFunc

	cbMu      sync.Mutex
	callbacks map[int]func(ProviderEvent)
	cbOrder   []int
	nextCbID  int
}

// ProviderOption configures an OIDCProvider.
type ProviderOption func(*OIDCProvider)

// WithProviderHTTPClient sets the client used for discovery, token and
// end-session requests.
func WithProviderHTTPClient(c *http.Client) ProviderOption {
	return func(p *OIDCProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithNavigator replaces the system browser navigator.
func WithNavigator(n Navigator) ProviderOption {
	return func(p *OIDCProvider) {
		if n != nil {
			p.navigator = n
		}
	}
}

// NewOIDCProvider creates a provider. Initialize must succeed before use.
func NewOIDCProvider(opts ...ProviderOption) *OIDCProvider {
	p := &OIDCProvider{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		navigator:  NewBrowserNavigator(nil),
		tokens:     make(map[string]*heldTokens),
		callbacks:  make(map[int]func(ProviderEvent)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize implements Provider.
func (p *OIDCProvider) Initialize(ctx context.Context, cfg Config) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	provider, err := oidc.NewProvider(p.clientContext(ctx), cfg.Authority)
	if err != nil {
		return fmt.Errorf("failed to discover identity provider %s: %w", cfg.Authority, err)
	}

	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		logging.Warn("Identity", "could not read provider metadata: %v", err)
	}

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.provider = provider
	p.verifier = provider.Verifier(&oidc.Config{
		ClientID:                   cfg.ClientID,
		InsecureSkipSignatureCheck: cfg.SkipSignatureCheck,
	})
	p.oauth2Config = oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: endpoint,
		Scopes:   cfg.Scopes,
	}
	p.endSessionURL = extra.EndSessionEndpoint

	logging.Debug("Identity", "discovered provider %s (end session: %t)", cfg.Authority, p.endSessionURL != "")
	return nil
}

// ProfileEndpoint implements Provider.
func (p *OIDCProvider) ProfileEndpoint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provider == nil {
		return ""
	}
	return p.provider.UserInfoEndpoint()
}

// LoginPopup implements Provider.
func (p *OIDCProvider) LoginPopup(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	p.cancelPendingFlow()

	flowCtx, cancel := context.WithTimeout(ctx, p.callbackTimeout())
	defer cancel()

	flow, err := p.startFlow(flowCtx, req)
	if err != nil {
		return nil, err
	}
	if err := p.navigator.Open(flow.authURL); err != nil {
		return nil, apperr.Wrap(apperr.KindInteraction, opSignIn, err)
	}

	res, err := p.completeFlow(flowCtx, flow)
	p.emitLogin(InteractionPopup, res, err)
	return res, err
}

// LoginRedirect implements Provider.
func (p *OIDCProvider) LoginRedirect(ctx context.Context, req LoginRequest) (string, error) {
	p.cancelPendingFlow()

	flowCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.callbackTimeout())
	flow, err := p.startFlow(flowCtx, req)
	if err != nil {
		cancel()
		return "", err
	}

	p.mu.Lock()
	p.cancelPending = cancel
	p.mu.Unlock()

	if err := p.navigator.Open(flow.authURL); err != nil {
		cancel()
		return "", apperr.Wrap(apperr.KindInteraction, opSignIn, err)
	}

	go func() {
		defer cancel()
		res, err := p.completeFlow(flowCtx, flow)
		if err != nil && errors.Is(flowCtx.Err(), context.Canceled) {
			// Superseded by another sign-in or a sign-out.
			logging.Debug("Identity", "pending sign-in abandoned")
			return
		}
		p.emitLogin(InteractionRedirect, res, err)
	}()

	return flow.authURL, nil
}

// Logout implements Provider.
func (p *OIDCProvider) Logout(ctx context.Context, req LogoutRequest) error {
	p.cancelPendingFlow()

	p.mu.Lock()
	if req.Account != nil {
		delete(p.tokens, req.Account.HomeAccountID)
		p.accounts = lo.Reject(p.accounts, func(a Account, _ int) bool {
			return a.HomeAccountID == req.Account.HomeAccountID
		})
	} else {
		p.tokens = make(map[string]*heldTokens)
		p.accounts = nil
	}
	endSession, clientID := p.endSessionURL, p.cfg.ClientID
	p.mu.Unlock()

	if endSession != "" {
		if err := p.endSession(ctx, endSession, clientID, req); err != nil {
			return err
		}
	}

	p.emit(ProviderEvent{Type: EventLogoutSuccess})
	return nil
}

// endSession asks the provider to terminate its own session for the user.
func (p *OIDCProvider) endSession(ctx context.Context, endpoint, clientID string, req LogoutRequest) error {
	form := url.Values{"client_id": {clientID}}
	if req.IDTokenHint != "" {
		form.Set("id_token_hint", req.IDTokenHint)
	}
	if req.PostLogoutRedirectURI != "" {
		form.Set("post_logout_redirect_uri", req.PostLogoutRedirectURI)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return apperr.Wrap(apperr.KindHTTP, opSignOut, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// The provider answers with a redirect meant for a browser.
	client := *p.httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return apperr.Classify(opSignOut, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperr.HTTPStatus(opSignOut, resp.StatusCode, string(body))
	}
	return nil
}

// AcquireTokenSilent implements Provider. Valid tokens are returned as held;
// expired ones are refreshed with the refresh token.
func (p *OIDCProvider) AcquireTokenSilent(ctx context.Context, req SilentRequest) (*AuthResult, error) {
	p.mu.Lock()
	ready := p.provider != nil
	held, ok := p.tokens[req.Account.HomeAccountID]
	base, verifier := p.oauth2Config, p.verifier
	p.mu.Unlock()

	if !ready {
		return nil, apperr.New(apperr.KindUninitialized, opSilent, "provider is not initialized")
	}
	if !ok {
		err := apperr.New(apperr.KindSilentAcquisition, opSilent, "no tokens held for account")
		p.emit(ProviderEvent{Type: EventAcquireTokenFailure, Interaction: InteractionSilent, Err: err})
		return nil, err
	}

	src := held.token
	if req.ForceRefresh {
		src = &oauth2.Token{RefreshToken: held.token.RefreshToken}
	}

	tok, err := base.TokenSource(p.clientContext(ctx), src).Token()
	if err != nil {
		err = apperr.Wrap(apperr.KindSilentAcquisition, opSilent, err)
		p.emit(ProviderEvent{Type: EventAcquireTokenFailure, Interaction: InteractionSilent, Err: err})
		return nil, err
	}

	idToken := held.idToken
	if raw, _ := tok.Extra("id_token").(string); raw != "" && raw != idToken {
		if _, err := verifier.Verify(p.clientContext(ctx), raw); err != nil {
			err = apperr.Wrap(apperr.KindSilentAcquisition, opSilent, err)
			p.emit(ProviderEvent{Type: EventAcquireTokenFailure, Interaction: InteractionSilent, Err: err})
			return nil, err
		}
		idToken = raw
	}

	p.mu.Lock()
	if _, still := p.tokens[req.Account.HomeAccountID]; still {
		p.tokens[req.Account.HomeAccountID] = &heldTokens{token: tok, idToken: idToken}
	}
	p.mu.Unlock()

	res := p.result(req.Account, tok, idToken)
	p.emit(ProviderEvent{Type: EventAcquireTokenSuccess, Interaction: InteractionSilent, Result: res})
	return res, nil
}

// GetAllAccounts implements Provider.
func (p *OIDCProvider) GetAllAccounts() []Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Account(nil), p.accounts...)
}

// AddEventCallback implements Provider. Callbacks run in registration order.
func (p *OIDCProvider) AddEventCallback(fn func(ProviderEvent)) func() {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()

	id := p.nextCbID
	p.nextCbID++
	p.callbacks[id] = fn
	p.cbOrder = append(p.cbOrder, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.cbMu.Lock()
			defer p.cbMu.Unlock()
			delete(p.callbacks, id)
			p.cbOrder = lo.Without(p.cbOrder, id)
		})
	}
}

func (p *OIDCProvider) emit(ev ProviderEvent) {
	p.cbMu.Lock()
	fns := lo.FilterMap(p.cbOrder, func(id int, _ int) (func(ProviderEvent), bool) {
		fn, ok := p.callbacks[id]
		return fn, ok
	})
	p.cbMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (p *OIDCProvider) emitLogin(interaction Interaction, res *AuthResult, err error) {
	if err != nil {
		p.emit(ProviderEvent{Type: EventLoginFailure, Interaction: interaction, Err: err})
		return
	}
	p.emit(ProviderEvent{Type: EventLoginSuccess, Interaction: interaction, Result: res})
}

// startFlow prepares PKCE, state and nonce, starts the callback server and
// builds the authorization URL.
func (p *OIDCProvider) startFlow(ctx context.Context, req LoginRequest) (*authFlow, error) {
	p.mu.Lock()
	ready := p.provider != nil
	redirectURI := p.cfg.RedirectURI
	base := p.oauth2Config
	p.mu.Unlock()

	if !ready {
		return nil, apperr.New(apperr.KindUninitialized, opSignIn, "provider is not initialized")
	}

	state, err := generateState()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInteraction, opSignIn, err)
	}
	nonce, err := generateState()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInteraction, opSignIn, err)
	}
	verifier := oauth2.GenerateVerifier()

	server, err := NewCallbackServer(redirectURI)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, opSignIn, err)
	}
	effective, err := server.Start(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInteraction, opSignIn, err)
	}

	base.RedirectURL = effective
	if len(req.Scopes) > 0 {
		base.Scopes = lo.Uniq(append(append([]string(nil), base.Scopes...), req.Scopes...))
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	}
	if req.Prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", req.Prompt))
	}
	if req.LoginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", req.LoginHint))
	}

	logging.Debug("Identity", "authorization flow started, callback on %s", effective)

	return &authFlow{
		state:    state,
		nonce:    nonce,
		verifier: verifier,
		server:   server,
		oauthCfg: base,
		authURL:  base.AuthCodeURL(state, opts...),
	}, nil
}

// completeFlow waits for the callback, checks it, exchanges the code and
// verifies the ID token.
func (p *OIDCProvider) completeFlow(ctx context.Context, flow *authFlow) (*AuthResult, error) {
	defer flow.server.Stop()

	cb, err := flow.server.WaitForCallback(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInteraction, opSignIn, err)
	}

	if cb.State != flow.state {
		logging.Warn("Identity", "state mismatch on callback, possible CSRF attack (expected %s, got %s)",
			logging.Redact(flow.state), logging.Redact(cb.State))
		return nil, apperr.New(apperr.KindInteraction, opSignIn, "state mismatch, possible CSRF attack")
	}
	if cb.IsError() {
		msg := "authorization failed: " + cb.Error
		if cb.ErrorDescription != "" {
			msg += " - " + cb.ErrorDescription
		}
		return nil, apperr.New(apperr.KindInteraction, opSignIn, msg)
	}

	tok, err := flow.oauthCfg.Exchange(p.clientContext(ctx), cb.Code, oauth2.VerifierOption(flow.verifier))
	if err != nil {
		return nil, tokenEndpointError(opSignIn, flow.oauthCfg.Endpoint.TokenURL, err)
	}

	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, apperr.New(apperr.KindInteraction, opSignIn, "token response did not include an id_token")
	}

	p.mu.Lock()
	verifier := p.verifier
	p.mu.Unlock()

	idt, err := verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInteraction, opSignIn, fmt.Errorf("id token verification failed: %w", err))
	}
	if idt.Nonce != flow.nonce {
		return nil, apperr.New(apperr.KindInteraction, opSignIn, "id token nonce mismatch")
	}

	claims, err := DecodeClaims(rawID)
	if err != nil {
		return nil, err
	}
	account := accountFromClaims(idt.Subject, idt.Issuer, claims)

	p.mu.Lock()
	p.tokens = map[string]*heldTokens{account.HomeAccountID: {token: tok, idToken: rawID}}
	p.accounts = []Account{account}
	p.mu.Unlock()

	logging.Info("Identity", "sign-in completed for %s", lo.CoalesceOrEmpty(account.Username, account.Subject))
	return p.result(account, tok, rawID), nil
}

func (p *OIDCProvider) result(account Account, tok *oauth2.Token, idToken string) *AuthResult {
	scopes := p.configuredScopes()
	if s, _ := tok.Extra("scope").(string); s != "" {
		scopes = strings.Fields(s)
	}
	return &AuthResult{
		Account:     account,
		IDToken:     idToken,
		AccessToken: tok.AccessToken,
		ExpiresOn:   tok.Expiry,
		Scopes:      scopes,
	}
}

func (p *OIDCProvider) configuredScopes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.cfg.Scopes...)
}

func (p *OIDCProvider) callbackTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg.CallbackTimeout <= 0 {
		return DefaultCallbackTimeout
	}
	return p.cfg.CallbackTimeout
}

func (p *OIDCProvider) cancelPendingFlow() {
	p.mu.Lock()
	cancel := p.cancelPending
	p.cancelPending = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// clientContext makes oauth2 and go-oidc use the provider's HTTP client.
func (p *OIDCProvider) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), p.httpClient)
}

// tokenEndpointError maps token endpoint failures onto the error taxonomy.
func tokenEndpointError(op, endpoint string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return apperr.HTTPStatus(op, re.Response.StatusCode, string(re.Body))
	}
	return apperr.Classify(op, endpoint, err)
}

func accountFromClaims(subject, issuer string, c *Claims) Account {
	return Account{
		HomeAccountID: subject + "." + issuer,
		Subject:       subject,
		Issuer:        issuer,
		Username:      c.Username(),
		Name:          c.Name,
	}
}
