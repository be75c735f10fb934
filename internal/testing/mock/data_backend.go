package mock

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Routes of the data backend, used for call counting and failure injection.
const (
	RoutePrimary  = "primary"
	RouteDeltaGet = "delta_get"
	RouteDeltaPut = "delta_put"
	RouteAdmin    = "admin"
)

// Default paths served by DataBackend.
const (
	PrimaryPath = "/api/data"
	DeltaPath   = "/api/delta"
	AdminPath   = "/api/admin"
)

// AssetPathHeader selects the admin object to list or read.
const AssetPathHeader = "Asset-Path"

// RecordedRequest is one request seen by the data backend.
type RecordedRequest struct {
	Route  string
	Method string
	Header http.Header
	Query  url.Values
	Body   []byte
}

type routeFailure struct {
	status int
	body   string
	once   bool
}

// DataBackend serves the primary, user-delta and admin endpoints.
type DataBackend struct {
	server *httptest.Server

	mu         sync.Mutex
	authorize  func(token string) bool
	primary    []byte
	delta      []byte
	files      map[string][]byte
	listing    []byte
	saveStatus int
	saveBody   string
	failures   map[string]routeFailure
	holds      map[string]chan struct{}
	calls      map[string]int
	requests   []RecordedRequest
}

// NewDataBackend starts a backend that accepts any non-empty bearer token.
func NewDataBackend() *DataBackend {
	b := &DataBackend{
		authorize:  func(token string) bool { return token != "" },
		primary:    []byte(`{"items":[]}`),
		delta:      []byte(`{}`),
		files:      make(map[string][]byte),
		saveStatus: http.StatusOK,
		failures:   make(map[string]routeFailure),
		holds:      make(map[string]chan struct{}),
		calls:      make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get(PrimaryPath, b.route(RoutePrimary, b.handlePrimary))
	r.Get(DeltaPath, b.route(RouteDeltaGet, b.handleDeltaGet))
	r.Put(DeltaPath, b.route(RouteDeltaPut, b.handleDeltaPut))
	r.Get(AdminPath, b.route(RouteAdmin, b.handleAdmin))
	b.server = httptest.NewServer(r)

	return b
}

// Close shuts the backend down.
func (b *DataBackend) Close() {
	b.server.Close()
}

// PrimaryURL returns the primary data endpoint.
func (b *DataBackend) PrimaryURL() string { return b.server.URL + PrimaryPath }

// DeltaURL returns the user-delta endpoint.
func (b *DataBackend) DeltaURL() string { return b.server.URL + DeltaPath }

// AdminURL returns the admin file endpoint.
func (b *DataBackend) AdminURL() string { return b.server.URL + AdminPath }

// SetAuthorizer replaces the bearer token check.
func (b *DataBackend) SetAuthorizer(fn func(token string) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authorize = fn
}

// SetPrimary sets the primary payload, marshalled as JSON.
func (b *DataBackend) SetPrimary(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.primary = mustJSON(v)
}

// SetDelta sets the stored delta document.
func (b *DataBackend) SetDelta(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delta = mustJSON(v)
}

// Delta returns the stored delta document as raw JSON.
func (b *DataBackend) Delta() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.delta...)
}

// SetAdminFiles replaces the admin object store.
func (b *DataBackend) SetAdminFiles(files map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files = make(map[string][]byte, len(files))
	for path, v := range files {
		b.files[path] = mustJSON(v)
	}
	b.listing = nil
}

// SetAdminListing overrides the raw body returned for the root listing.
func (b *DataBackend) SetAdminListing(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listing = []byte(raw)
}

// SetSaveResponse sets the status and body returned by a successful PUT.
func (b *DataBackend) SetSaveResponse(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveStatus, b.saveBody = status, body
}

// Fail makes route answer with status and body until ClearFailures.
func (b *DataBackend) Fail(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = routeFailure{status: status, body: body}
}

// FailNext makes only the next request to route fail.
func (b *DataBackend) FailNext(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = routeFailure{status: status, body: body, once: true}
}

// ClearFailures removes all injected failures.
func (b *DataBackend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]routeFailure)
}

// Hold blocks requests to route until the returned release func is called.
func (b *DataBackend) Hold(route string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.holds[route] = ch
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.holds, route)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many requests route received.
func (b *DataBackend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// TotalCalls returns the number of requests across all routes.
func (b *DataBackend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// Requests returns every recorded request in arrival order.
func (b *DataBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// LastRequest returns the most recent request to route.
func (b *DataBackend) LastRequest(route string) (RecordedRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Route == route {
			return b.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

func (b *DataBackend) route(name string, next func(http.ResponseWriter, *http.Request, []byte)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.calls[name]++
		b.requests = append(b.requests, RecordedRequest{
			Route:  name,
			Method: r.Method,
			Header: r.Header.Clone(),
			Query:  r.URL.Query(),
			Body:   body,
		})
		hold := b.holds[name]
		authorize := b.authorize
		failure, failing := b.failures[name]
		if failing && failure.once {
			delete(b.failures, name)
		}
		b.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !authorize(token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="deltactl-test", error="invalid_token", error_description="token rejected"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if failing {
			w.WriteHeader(failure.status)
			_, _ = w.Write([]byte(failure.body))
			return
		}
		next(w, r, body)
	}
}

func (b *DataBackend) handlePrimary(w http.ResponseWriter, _ *http.Request, _ []byte) {
	b.mu.Lock()
	payload := append([]byte(nil), b.primary...)
	b.mu.Unlock()
	writeRaw(w, http.StatusOK, payload)
}

func (b *DataBackend) handleDeltaGet(w http.ResponseWriter, _ *http.Request, _ []byte) {
	writeRaw(w, http.StatusOK, b.Delta())
}

func (b *DataBackend) handleDeltaPut(w http.ResponseWriter, r *http.Request, body []byte) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		http.Error(w, "expected application/json", http.StatusUnsupportedMediaType)
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		http.Error(w, "body is not a JSON object", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.delta = body
	status, respBody := b.saveStatus, b.saveBody
	b.mu.Unlock()

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(respBody))
}

func (b *DataBackend) handleAdmin(w http.ResponseWriter, r *http.Request, _ []byte) {
	path := r.Header.Get(AssetPathHeader)

	b.mu.Lock()
	defer b.mu.Unlock()

	if path == "" {
		if b.listing != nil {
			writeRaw(w, http.StatusOK, b.listing)
			return
		}
		paths := make([]string, 0, len(b.files))
		for p := range b.files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		writeRaw(w, http.StatusOK, mustJSON(paths))
		return
	}

	content, ok := b.files[path]
	if !ok {
		http.Error(w, "no such asset: "+path, http.StatusNotFound)
		return
	}
	writeRaw(w, http.StatusOK, content)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func mustJSON(v any) []byte {
	if raw, ok := v.(string); ok {
		return []byte(raw)
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic("mock: marshalling fixture: " + err.Error())
	}
	return data
}
