package app

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"deltactl/internal/config"
	"deltactl/internal/dataclient"
	"deltactl/internal/identity"
	"deltactl/internal/metrics"
	"deltactl/pkg/logging"
)

// Services holds the long-lived components built from a configuration.
type Services struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Provider *identity.OIDCProvider
	Session  *identity.Session
	Data     *dataclient.Client
}

// ServiceOptions adjusts how services are built.
type ServiceOptions struct {
	// Out receives the sign-in URL when no browser can be opened.
	Out io.Writer
	// Navigator replaces the system browser.
	Navigator identity.Navigator
	// HTTPClient is used for provider and data requests. A client with the
	// configured timeout is created when nil.
	HTTPClient *http.Client
}

// InitializeServices builds the identity session and the data client. It
// does not contact the provider; App.Start does that.
func InitializeServices(cfg config.Config, opts ServiceOptions) *Services {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	navigator := opts.Navigator
	if navigator == nil {
		navigator = identity.NewBrowserNavigator(opts.Out)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	provider := identity.NewOIDCProvider(
		identity.WithNavigator(navigator),
		identity.WithProviderHTTPClient(httpClient),
	)
	session := identity.New(provider, identity.WithHTTPClient(httpClient))
	data := dataclient.New(session, cfg.Endpoints(),
		dataclient.WithHTTPClient(httpClient),
		dataclient.WithMetrics(m),
	)

	logging.Debug("Services", "Services initialized for client %s", cfg.ClientID)
	return &Services{
		Registry: registry,
		Metrics:  m,
		Provider: provider,
		Session:  session,
		Data:     data,
	}
}

// NewApp returns a coordinator over s configured from cfg.
func (s *Services) NewApp(cfg config.Config, opts ...Option) *App {
	base := []Option{
		WithIdentityConfig(cfg.Identity()),
		WithAdminRoles(cfg.AdminRoles...),
		WithMetrics(s.Metrics),
	}
	return New(s.Session, s.Data, append(base, opts...)...)
}
