package app

import (
	"context"
	"sync"

	"deltactl/internal/apperr"
	"deltactl/internal/dataclient"
	"deltactl/internal/identity"
	"deltactl/internal/metrics"
	"deltactl/pkg/logging"
)

// DefaultAdminRoles are the role claims that unlock admin operations when
// none are configured.
var DefaultAdminRoles = []string{"admin"}

// Identity is the part of *identity.Session the coordinator drives.
type Identity interface {
	Initialize(ctx context.Context, cfg identity.Config) error
	State() identity.AuthState
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
	GetAccount() (*identity.Account, bool)
	GetIDToken() (string, bool)
	GetIDTokenClaims() (*identity.Claims, bool)
	GetUserDetails(ctx context.Context) (*identity.UserProfile, error)
	OnSessionEstablished(handler func(identity.SessionEvent)) (unsubscribe func())
}

// Data is the part of *dataclient.Client the coordinator drives.
type Data interface {
	FetchPrimaryData(ctx context.Context, forceRefresh bool) (*dataclient.Payload, error)
	FetchUserData(ctx context.Context, forceRefresh bool) (*dataclient.Payload, error)
	SaveUserData(ctx context.Context, doc dataclient.Document) (*dataclient.Payload, error)
	SaveUserDataJSON(ctx context.Context, raw []byte) (*dataclient.Payload, error)
	ListAdminFiles(ctx context.Context) ([]string, error)
	GetAdminFile(ctx context.Context, path string) (*dataclient.Payload, error)
	ClearCache()
	Snapshot() dataclient.Snapshot
}

// View is what the presentation layer renders.
type View struct {
	State        identity.AuthState  `json:"state" yaml:"state"`
	Ready        bool                `json:"ready" yaml:"ready"`
	InitError    string              `json:"initError,omitempty" yaml:"initError,omitempty"`
	Account      *identity.Account   `json:"account,omitempty" yaml:"account,omitempty"`
	CanViewAdmin bool                `json:"canViewAdmin" yaml:"canViewAdmin"`
	Cache        dataclient.Snapshot `json:"cache" yaml:"cache"`
	LastError    string              `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

// App coordinates the identity session and the data client.
type App struct {
	session    Identity
	data       Data
	idConfig   identity.Config
	adminRoles []string
	metrics    *metrics.Metrics

	mu          sync.Mutex
	ready       bool
	initErr     error
	lastErr     error
	unsubscribe func()
	onChange    []func(View)
}

// Option configures an App.
type Option func(*App)

// WithIdentityConfig sets the configuration Start initializes the session with.
func WithIdentityConfig(cfg identity.Config) Option {
	return func(a *App) {
		a.idConfig = cfg
	}
}

// WithAdminRoles replaces DefaultAdminRoles.
func WithAdminRoles(roles ...string) Option {
	return func(a *App) {
		if len(roles) > 0 {
			a.adminRoles = append([]string(nil), roles...)
		}
	}
}

// WithMetrics records sign-in outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithViewHandler registers fn to receive a fresh View after every change
// the coordinator makes or observes, including sign-ins that complete in the
// background.
func WithViewHandler(fn func(View)) Option {
	return func(a *App) {
		if fn != nil {
			a.onChange = append(a.onChange, fn)
		}
	}
}

// New creates a coordinator. Call Start before anything else.
func New(session Identity, data Data, opts ...Option) *App {
	a := &App{
		session:    session,
		data:       data,
		adminRoles: DefaultAdminRoles,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start initializes the identity session and subscribes to sign-in
// notifications. An initialization failure is returned, but the App remains
// usable in a degraded mode.
func (a *App) Start(ctx context.Context) error {
	if err := a.session.Initialize(ctx, a.idConfig); err != nil {
		a.mu.Lock()
		a.initErr = err
		a.lastErr = err
		a.mu.Unlock()
		logging.Error("App", err, "Identity session unavailable, continuing without sign-in")
		a.notify()
		return err
	}

	unsubscribe := a.session.OnSessionEstablished(a.onSessionEstablished)

	a.mu.Lock()
	a.ready = true
	a.initErr = nil
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.unsubscribe = unsubscribe
	a.mu.Unlock()

	if account, ok := a.session.GetAccount(); ok {
		logging.Info("App", "Found existing account %s", account.Username)
	}
	a.notify()
	return nil
}

// Close drops the session subscription.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// SignIn runs the interactive sign-in. With the redirect strategy it returns
// before the sign-in completes; completion is reported through the view
// handlers.
func (a *App) SignIn(ctx context.Context) error {
	err := a.session.SignIn(ctx)
	switch {
	case err != nil:
		a.metrics.SignIn("failure")
	case a.session.State() == identity.StatePending:
		a.metrics.SignIn("pending")
	default:
		a.metrics.SignIn("success")
	}
	return a.track(err)
}

// SignOut ends the session and clears the data cache. The cache is cleared
// even when the provider-side logout fails.
func (a *App) SignOut(ctx context.Context) error {
	err := a.session.SignOut(ctx)
	a.data.ClearCache()
	err = a.track(err)
	a.notify()
	return err
}

// Profile returns the signed-in user's provider profile.
func (a *App) Profile(ctx context.Context) (*identity.UserProfile, error) {
	profile, err := a.session.GetUserDetails(ctx)
	return profile, a.track(err)
}

// Claims returns the decoded claims of the current ID token.
func (a *App) Claims() (*identity.Claims, error) {
	if claims, ok := a.session.GetIDTokenClaims(); ok {
		return claims, nil
	}
	if _, ok := a.session.GetIDToken(); ok {
		return nil, a.track(apperr.New(apperr.KindTokenDecode, "read claims", "ID token is malformed"))
	}
	return nil, a.track(apperr.New(apperr.KindUnauthenticated, "read claims", "no signed-in account"))
}

// Account returns the signed-in account, if any.
func (a *App) Account() (*identity.Account, bool) {
	return a.session.GetAccount()
}

// FetchPrimary returns the primary data payload.
func (a *App) FetchPrimary(ctx context.Context, force bool) (*dataclient.Payload, error) {
	p, err := a.data.FetchPrimaryData(ctx, force)
	return p, a.track(err)
}

// FetchUser returns the signed-in user's delta document.
func (a *App) FetchUser(ctx context.Context, force bool) (*dataclient.Payload, error) {
	p, err := a.data.FetchUserData(ctx, force)
	return p, a.track(err)
}

// Save stores doc as the user's delta document.
func (a *App) Save(ctx context.Context, doc dataclient.Document) (*dataclient.Payload, error) {
	p, err := a.data.SaveUserData(ctx, doc)
	return p, a.track(err)
}

// SaveJSON stores raw, which must be a JSON object, as the user's delta document.
func (a *App) SaveJSON(ctx context.Context, raw []byte) (*dataclient.Payload, error) {
	p, err := a.data.SaveUserDataJSON(ctx, raw)
	return p, a.track(err)
}

// AdminList lists the admin file store.
func (a *App) AdminList(ctx context.Context) ([]string, error) {
	if err := a.requireAdmin("list admin files"); err != nil {
		return nil, a.track(err)
	}
	paths, err := a.data.ListAdminFiles(ctx)
	return paths, a.track(err)
}

// AdminGet reads one admin file.
func (a *App) AdminGet(ctx context.Context, path string) (*dataclient.Payload, error) {
	if err := a.requireAdmin("get admin file"); err != nil {
		return nil, a.track(err)
	}
	p, err := a.data.GetAdminFile(ctx, path)
	return p, a.track(err)
}

// ClearCache empties the data cache.
func (a *App) ClearCache() {
	a.data.ClearCache()
	a.notify()
}

// CanViewAdmin reports whether the current ID token carries one of the
// admin roles.
func (a *App) CanViewAdmin() bool {
	claims, ok := a.session.GetIDTokenClaims()
	return ok && claims.HasAnyRole(a.adminRoles...)
}

// AdminRoles returns the roles that unlock admin operations.
func (a *App) AdminRoles() []string {
	return append([]string(nil), a.adminRoles...)
}

// View returns the current state for rendering.
func (a *App) View() View {
	a.mu.Lock()
	ready, initErr, lastErr := a.ready, a.initErr, a.lastErr
	a.mu.Unlock()

	v := View{
		State:        a.session.State(),
		Ready:        ready,
		CanViewAdmin: a.CanViewAdmin(),
		Cache:        a.data.Snapshot(),
	}
	if initErr != nil {
		v.InitError = initErr.Error()
	}
	if lastErr != nil {
		v.LastError = lastErr.Error()
	}
	if account, ok := a.session.GetAccount(); ok {
		v.Account = account
	}
	return v
}

// requireAdmin refuses admin operations locally. Without a token the data
// client reports unauthenticated itself, so only a present token lacking the
// role is refused here.
func (a *App) requireAdmin(op string) error {
	if _, ok := a.session.GetIDToken(); !ok {
		return nil
	}
	if a.CanViewAdmin() {
		return nil
	}
	return apperr.New(apperr.KindForbidden, op, "signed-in account has none of the admin roles")
}

func (a *App) onSessionEstablished(ev identity.SessionEvent) {
	// The data client drops another account's cache on its own; clearing here
	// keeps the shared status from leaking across users too.
	if owner := a.data.Snapshot().Owner; owner != "" && owner != ev.Account.HomeAccountID {
		a.data.ClearCache()
	}
	a.mu.Lock()
	a.lastErr = nil
	a.mu.Unlock()

	logging.Info("App", "Session established for %s", ev.Account.Username)
	a.notify()
}

// track records err as the last error shown in the View.
func (a *App) track(err error) error {
	if err == nil {
		return nil
	}
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
	return err
}

func (a *App) notify() {
	if len(a.onChange) == 0 {
		return
	}
	v := a.View()
	for _, fn := range a.onChange {
		fn(v)
	}
}
