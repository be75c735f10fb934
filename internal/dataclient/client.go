package dataclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"deltactl/internal/apperr"
	"deltactl/internal/metrics"
	"deltactl/pkg/logging"
	"deltactl/pkg/oauth"
)

const (
	opFetchPrimary = "fetch primary data"
	opFetchUser    = "fetch user data"
	opSave         = "save user data"
	opListAdmin    = "list admin files"
	opGetAdmin     = "get admin file"
)

// Endpoint names, used as metric labels and coalescing keys.
const (
	EndpointPrimary = "primary"
	EndpointDelta   = "delta"
	EndpointAdmin   = "admin"
)

// AssetPathHeader selects the admin object to list (empty) or read.
const AssetPathHeader = "Asset-Path"

// LastModifiedField is stamped on every saved document.
const LastModifiedField = "lastModified"

// LastModifiedLayout is ISO-8601 in UTC with millisecond precision.
const LastModifiedLayout = "2006-01-02T15:04:05.000Z"

// DefaultTimeout bounds each request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// maxResponseBody bounds how much of any response is read.
const maxResponseBody = 8 << 20

// IdentitySource supplies the bearer credential. *identity.Session implements it.
type IdentitySource interface {
	GetIDToken() (string, bool)
	AccountID() string
}

// Endpoints holds the URLs of the three backends.
type Endpoints struct {
	Primary string
	Delta   string
	Admin   string
}

// Client performs authenticated requests and owns the data cache.
// All methods are safe for concurrent use.
type Client struct {
	identity   IdentitySource
	endpoints  Endpoints
	httpClient *http.Client
	now        func() time.Time
	metrics    *metrics.Metrics
	inflight   singleflight.Group

	mu    sync.Mutex
	cache cache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClock replaces time.Now for cache busters and lastModified stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics records requests and cache lookups on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client that reads tokens from identity.
func New(identity IdentitySource, endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		identity:   identity,
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPrimaryData returns the primary payload, from cache unless forceRefresh
// is set or nothing is cached.
func (c *Client) FetchPrimaryData(ctx context.Context, forceRefresh bool) (*Payload, error) {
	return c.fetch(ctx, opFetchPrimary, EndpointPrimary, c.endpoints.Primary, forceRefresh)
}

// FetchUserData returns the signed-in user's delta document, from cache unless
// forceRefresh is set or nothing is cached.
func (c *Client) FetchUserData(ctx context.Context, forceRefresh bool) (*Payload, error) {
	return c.fetch(ctx, opFetchUser, EndpointDelta, c.endpoints.Delta, forceRefresh)
}

func (c *Client) fetch(ctx context.Context, op, name, endpoint string, force bool) (*Payload, error) {
	token, owner, err := c.credentials(op, endpoint)
	if err != nil {
		return nil, err
	}

	if !force {
		c.mu.Lock()
		c.cache.claim(owner)
		cached := c.cache.data(name)
		c.mu.Unlock()

		c.metrics.CacheLookup(name, cached != nil)
		if cached != nil {
			logging.Debug("DataClient", "Serving %s data from cache", name)
			return NewPayload(cached), nil
		}

		// The shared request outlives any one caller; each caller may still
		// give up on its own.
		ch := c.inflight.DoChan(name+"/"+owner, func() (any, error) {
			shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sharedTimeout())
			defer cancel()
			return c.load(shared, op, name, endpoint, token, owner)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			return NewPayload(res.Val.([]byte)), nil
		case <-ctx.Done():
			return nil, apperr.Classify(op, endpoint, ctx.Err())
		}
	}

	raw, err := c.load(ctx, op, name, endpoint, token, owner)
	if err != nil {
		return nil, err
	}
	return NewPayload(raw), nil
}

// sharedTimeout bounds a coalesced request that no caller can cancel.
func (c *Client) sharedTimeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return DefaultTimeout
}

// load issues the GET and records the outcome. A failure leaves cached data
// untouched; only status and error change.
func (c *Client) load(ctx context.Context, op, name, endpoint, token, owner string) ([]byte, error) {
	c.begin(owner)

	target, err := c.withCacheBuster(endpoint)
	if err != nil {
		err = apperr.Wrap(apperr.KindConfig, op, err)
		c.finish(owner, err)
		return nil, err
	}

	raw, err := c.do(ctx, op, name, http.MethodGet, target, token, nil, nil)
	if err == nil && !json.Valid(raw) {
		err = apperr.New(apperr.KindMalformedPayload, op, "response is not valid JSON")
	}
	if err != nil {
		logging.Warn("DataClient", "Fetching %s data failed: %v", name, err)
		c.finish(owner, err)
		return nil, err
	}

	c.mu.Lock()
	if c.cache.owner == owner {
		c.cache.store(name, raw)
		c.cache.lastFetched = c.now()
		c.cache.status = StatusSuccess
		c.cache.err = ""
	}
	c.mu.Unlock()

	return raw, nil
}

// SaveUserData stamps doc with the current time under lastModified, PUTs it to
// the delta endpoint and, on a 2xx, caches the submitted document as the
// user's data. The response body is returned as is and may be empty.
func (c *Client) SaveUserData(ctx context.Context, doc Document) (*Payload, error) {
	token, owner, err := c.credentials(opSave, c.endpoints.Delta)
	if err != nil {
		return nil, err
	}
	return c.save(ctx, token, owner, doc)
}

// SaveUserDataJSON is SaveUserData for a caller-supplied JSON object.
func (c *Client) SaveUserDataJSON(ctx context.Context, raw []byte) (*Payload, error) {
	token, owner, err := c.credentials(opSave, c.endpoints.Delta)
	if err != nil {
		return nil, err
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedPayload, opSave, err)
	}
	if doc == nil {
		return nil, apperr.New(apperr.KindMalformedPayload, opSave, "document must be a JSON object")
	}
	return c.save(ctx, token, owner, doc)
}

// decodeDocument keeps numbers as json.Number so large integers survive the
// round trip.
func decodeDocument(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return doc, nil
}

func (c *Client) save(ctx context.Context, token, owner string, doc Document) (*Payload, error) {
	stamped := make(Document, len(doc)+1)
	for k, v := range doc {
		stamped[k] = v
	}
	stamped[LastModifiedField] = c.now().UTC().Format(LastModifiedLayout)

	body, err := json.Marshal(stamped)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedPayload, opSave, err)
	}

	c.begin(owner)
	resp, err := c.do(ctx, opSave, EndpointDelta, http.MethodPut, c.endpoints.Delta, token, body, func(h http.Header) {
		h.Set("Content-Type", "application/json")
	})
	if err != nil {
		logging.Warn("DataClient", "Saving user data failed: %v", err)
		c.finish(owner, err)
		return nil, err
	}

	c.mu.Lock()
	if c.cache.owner == owner {
		c.cache.userData = body
		c.cache.status = StatusSuccess
		c.cache.err = ""
	}
	c.mu.Unlock()

	logging.Info("DataClient", "Saved user data (%d bytes)", len(body))
	return NewPayload(resp), nil
}

// ListAdminFiles lists the admin store root. An empty listing is not an error.
func (c *Client) ListAdminFiles(ctx context.Context) ([]string, error) {
	raw, err := c.admin(ctx, opListAdmin, "")
	if err != nil {
		return nil, err
	}

	var paths []string
	if err := json.Unmarshal(raw, &paths); err != nil {
		err = apperr.Wrap(apperr.KindMalformedPayload, opListAdmin, err)
		c.finish(c.identity.AccountID(), err)
		return nil, err
	}
	return lo.Compact(paths), nil
}

// GetAdminFile reads one object from the admin store.
func (c *Client) GetAdminFile(ctx context.Context, path string) (*Payload, error) {
	if path == "" {
		if _, _, err := c.credentials(opGetAdmin, c.endpoints.Admin); err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.KindConfig, opGetAdmin, "asset path is required")
	}

	raw, err := c.admin(ctx, opGetAdmin, path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		err := apperr.New(apperr.KindMalformedPayload, opGetAdmin, "response is not valid JSON")
		c.finish(c.identity.AccountID(), err)
		return nil, err
	}
	return NewPayload(raw), nil
}

// admin requests path from the admin endpoint. Results are not cached.
func (c *Client) admin(ctx context.Context, op, path string) ([]byte, error) {
	token, owner, err := c.credentials(op, c.endpoints.Admin)
	if err != nil {
		return nil, err
	}

	c.begin(owner)
	raw, err := c.do(ctx, op, EndpointAdmin, http.MethodGet, c.endpoints.Admin, token, nil, func(h http.Header) {
		h.Set(AssetPathHeader, path)
	})
	if err != nil {
		c.finish(owner, err)
		return nil, err
	}
	c.finish(owner, nil)
	return raw, nil
}

// ClearCache resets the cache to its initial idle state.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache.reset()
	c.mu.Unlock()
	logging.Debug("DataClient", "Cache cleared")
}

// Snapshot returns a copy of the cache.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.snapshot()
}

// credentials reads the token before anything else happens. Without one the
// operation fails and no request is made.
func (c *Client) credentials(op, endpoint string) (token, owner string, err error) {
	if c.identity == nil {
		return "", "", apperr.New(apperr.KindUnauthenticated, op, "no identity source")
	}
	token, ok := c.identity.GetIDToken()
	if !ok || token == "" {
		return "", "", apperr.New(apperr.KindUnauthenticated, op, "no signed-in account")
	}
	if endpoint == "" {
		return "", "", apperr.New(apperr.KindConfig, op, "endpoint is not configured")
	}
	return token, c.identity.AccountID(), nil
}

func (c *Client) begin(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.claim(owner)
	c.cache.status = StatusLoading
}

func (c *Client) finish(owner string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache.owner != owner {
		return
	}
	if err != nil {
		c.cache.status = StatusError
		c.cache.err = err.Error()
		return
	}
	c.cache.status = StatusSuccess
	c.cache.err = ""
}

func (c *Client) withCacheBuster(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("ts", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// do sends one request and returns the body of a 2xx response. Any other
// status becomes a KindHTTP error carrying the body text.
func (c *Client) do(ctx context.Context, op, name, method, target, token string, body []byte, header func(http.Header)) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if header != nil {
		header(req.Header)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(name, method, "transport_error", start)
		return nil, apperr.Classify(op, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.metrics.ObserveRequest(name, method, "transport_error", start)
		return nil, apperr.Classify(op, target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveRequest(name, method, "http_error", start)
		httpErr := apperr.HTTPStatus(op, resp.StatusCode, string(raw))
		httpErr.Challenge = oauth.ChallengeFromResponse(resp)
		return nil, httpErr
	}
	c.metrics.ObserveRequest(name, method, "success", start)

	logging.Debug("DataClient", "%s %s -> %d (%d bytes)", method, name, resp.StatusCode, len(raw))
	return raw, nil
}
