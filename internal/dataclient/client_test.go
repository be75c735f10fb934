package dataclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltactl/internal/apperr"
	"deltactl/internal/metrics"
	"deltactl/internal/testing/mock"
)

type fakeIdentity struct {
	mu      sync.Mutex
	token   string
	account string
}

func (f *fakeIdentity) GetIDToken() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeIdentity) AccountID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account
}

func (f *fakeIdentity) set(token, account string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token, f.account = token, account
}

func setup(t *testing.T, opts ...Option) (*Client, *mock.DataBackend, *fakeIdentity) {
	t.Helper()
	backend := mock.NewDataBackend()
	t.Cleanup(backend.Close)

	id := &fakeIdentity{token: "id-token-a", account: "user-a.issuer"}
	c := New(id, Endpoints{
		Primary: backend.PrimaryURL(),
		Delta:   backend.DeltaURL(),
		Admin:   backend.AdminURL(),
	}, opts...)
	return c, backend, id
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetchPrimaryData_ServesCacheUntilForced(t *testing.T) {
	c, backend, _ := setup(t)
	backend.SetPrimary(map[string]any{"items": []string{"a", "b"}, "version": 3})
	ctx := testContext(t)

	first, err := c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)
	second, err := c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.Calls(mock.RoutePrimary))
	assert.Equal(t, first.Bytes(), second.Bytes())

	_, err = c.FetchPrimaryData(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(mock.RoutePrimary))
}

func TestFetchUserData_CachedIndependently(t *testing.T) {
	c, backend, _ := setup(t)
	backend.SetDelta(map[string]any{"theme": "dark"})
	ctx := testContext(t)

	_, err := c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)
	user, err := c.FetchUserData(ctx, false)
	require.NoError(t, err)
	_, err = c.FetchUserData(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.Calls(mock.RoutePrimary))
	assert.Equal(t, 1, backend.Calls(mock.RouteDeltaGet))
	assert.JSONEq(t, `{"theme":"dark"}`, user.String())

	snap := c.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.NotNil(t, snap.PrimaryData)
	assert.NotNil(t, snap.UserData)
}

func TestFetch_RequestShape(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 89_000_000, time.UTC)
	c, backend, _ := setup(t, WithClock(func() time.Time { return now }))

	_, err := c.FetchPrimaryData(testContext(t), false)
	require.NoError(t, err)

	req, ok := backend.LastRequest(mock.RoutePrimary)
	require.True(t, ok)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "Bearer id-token-a", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
	assert.Equal(t, strconv.FormatInt(now.UnixMilli(), 10), req.Query.Get("ts"))
}

func TestFetch_FailureKeepsCachedData(t *testing.T) {
	c, backend, _ := setup(t)
	backend.SetPrimary(map[string]any{"v": 1})
	ctx := testContext(t)

	good, err := c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)

	backend.Fail(mock.RoutePrimary, http.StatusInternalServerError, "backend exploded")
	_, err = c.FetchPrimaryData(ctx, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrHTTP))

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	assert.Equal(t, "backend exploded", appErr.Body)

	snap := c.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Contains(t, snap.Error, "500")
	assert.Equal(t, good.Bytes(), snap.PrimaryData.Bytes())

	again, err := c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, good.Bytes(), again.Bytes())
	assert.Equal(t, 2, backend.Calls(mock.RoutePrimary))
}

func TestFetch_FailureOnEmptyCacheStoresNothing(t *testing.T) {
	c, backend, _ := setup(t)
	backend.FailNext(mock.RouteDeltaGet, http.StatusForbidden, "nope")

	_, err := c.FetchUserData(testContext(t), false)
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Nil(t, snap.UserData)
	assert.Equal(t, StatusError, snap.Status)
	assert.True(t, snap.LastFetched.IsZero())
}

func TestFetch_MalformedResponse(t *testing.T) {
	c, backend, _ := setup(t)
	backend.SetPrimary(`{"unterminated":`)

	_, err := c.FetchPrimaryData(testContext(t), false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindMalformedPayload, apperr.KindOf(err))
	assert.Nil(t, c.Snapshot().PrimaryData)
}

func TestFetch_TransportErrorIsNormalized(t *testing.T) {
	backend := mock.NewDataBackend()
	url := backend.PrimaryURL()
	backend.Close()

	c := New(&fakeIdentity{token: "t", account: "a"}, Endpoints{Primary: url})
	_, err := c.FetchPrimaryData(testContext(t), false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindHTTP, apperr.KindOf(err))

	var transport *apperr.TransportError
	require.True(t, errors.As(err, &transport))
	assert.NotContains(t, err.Error(), "dial tcp")
}

func TestFetch_ConcurrentCallsShareOneRequest(t *testing.T) {
	c, backend, _ := setup(t)
	release := backend.Hold(mock.RoutePrimary)
	defer release()
	ctx := testContext(t)

	results := make([]*Payload, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.FetchPrimaryData(ctx, false)
	}()
	require.Eventually(t, func() bool { return backend.Calls(mock.RoutePrimary) == 1 }, 5*time.Second, 10*time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = c.FetchPrimaryData(ctx, false)
	}()
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].Bytes(), results[1].Bytes())
	assert.Equal(t, 1, backend.Calls(mock.RoutePrimary))
}

func TestFetch_CancelledLeaderDoesNotFailWaiters(t *testing.T) {
	c, backend, _ := setup(t)
	release := backend.Hold(mock.RoutePrimary)
	defer release()

	leaderCtx, cancelLeader := context.WithCancel(testContext(t))
	defer cancelLeader()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.FetchPrimaryData(leaderCtx, false)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return backend.Calls(mock.RoutePrimary) == 1 }, 5*time.Second, 10*time.Millisecond)

	var (
		waiterPayload *Payload
		waiterErr     error
		wg            sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		waiterPayload, waiterErr = c.FetchPrimaryData(testContext(t), false)
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	release()
	wg.Wait()

	require.NoError(t, waiterErr)
	assert.NotEmpty(t, waiterPayload.Bytes())
	assert.Equal(t, 1, backend.Calls(mock.RoutePrimary))

	snap := c.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Empty(t, snap.Error)
	assert.NotNil(t, snap.PrimaryData)
}

func TestFetch_AccountChangeDropsCache(t *testing.T) {
	c, backend, id := setup(t)
	ctx := testContext(t)

	_, err := c.FetchUserData(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "user-a.issuer", c.Snapshot().Owner)

	id.set("id-token-b", "user-b.issuer")
	_, err = c.FetchUserData(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.Calls(mock.RouteDeltaGet))
	assert.Equal(t, "user-b.issuer", c.Snapshot().Owner)
	req, _ := backend.LastRequest(mock.RouteDeltaGet)
	assert.Equal(t, "Bearer id-token-b", req.Header.Get("Authorization"))
}

func TestClearCache(t *testing.T) {
	c, backend, _ := setup(t)
	ctx := testContext(t)

	_, err := c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)
	c.ClearCache()

	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.PrimaryData)
	assert.Empty(t, snap.Owner)

	_, err = c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(mock.RoutePrimary))
}

func TestSaveUserData_StampsLastModified(t *testing.T) {
	c, backend, _ := setup(t)
	before := time.Now().UTC().Truncate(time.Millisecond)

	_, err := c.SaveUserData(testContext(t), Document{"name": "x", "lastModified": "1999-01-01T00:00:00.000Z"})
	require.NoError(t, err)
	after := time.Now().UTC()

	req, ok := backend.LastRequest(mock.RouteDeltaPut)
	require.True(t, ok)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, "x", sent["name"])

	stamp, err := time.Parse(LastModifiedLayout, sent[LastModifiedField].(string))
	require.NoError(t, err)
	assert.False(t, stamp.Before(before), "stamp %s before %s", stamp, before)
	assert.False(t, stamp.After(after), "stamp %s after %s", stamp, after)
}

func TestSaveUserData_DoesNotMutateCallerDocument(t *testing.T) {
	c, _, _ := setup(t)
	doc := Document{"name": "x"}

	_, err := c.SaveUserData(testContext(t), doc)
	require.NoError(t, err)
	assert.NotContains(t, doc, LastModifiedField)
}

func TestSaveUserData_UpdatesCacheOptimistically(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "json body", status: http.StatusOK, body: `{"ok":true}`},
		{name: "no content", status: http.StatusNoContent},
		{name: "plain text body", status: http.StatusCreated, body: "saved"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, backend, _ := setup(t)
			backend.SetSaveResponse(tc.status, tc.body)
			ctx := testContext(t)

			resp, err := c.SaveUserData(ctx, Document{"name": "x"})
			require.NoError(t, err)
			assert.Equal(t, tc.body, resp.String())

			cached, err := c.FetchUserData(ctx, false)
			require.NoError(t, err)
			doc, err := cached.Map()
			require.NoError(t, err)
			assert.Equal(t, "x", doc["name"])
			assert.Contains(t, doc, LastModifiedField)
			assert.Equal(t, 0, backend.Calls(mock.RouteDeltaGet))
		})
	}
}

func TestSaveUserData_FailureSurfacesBody(t *testing.T) {
	c, backend, _ := setup(t)
	backend.Fail(mock.RouteDeltaPut, http.StatusConflict, "version conflict")

	_, err := c.SaveUserData(testContext(t), Document{"name": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version conflict")
	assert.Contains(t, err.Error(), "409")

	snap := c.Snapshot()
	assert.Nil(t, snap.UserData)
	assert.Equal(t, StatusError, snap.Status)
}

func TestFetch_RejectedTokenCarriesChallenge(t *testing.T) {
	c, backend, _ := setup(t)
	backend.SetAuthorizer(func(string) bool { return false })

	_, err := c.FetchPrimaryData(testContext(t), false)
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
	require.NotNil(t, appErr.Challenge)
	assert.True(t, appErr.Challenge.TokenRejected())
	assert.Equal(t, "token rejected", appErr.Challenge.ErrorDescription)

	backend.SetAuthorizer(func(string) bool { return true })
	backend.Fail(mock.RoutePrimary, http.StatusInternalServerError, "boom")
	_, err = c.FetchPrimaryData(testContext(t), true)
	require.True(t, errors.As(err, &appErr))
	assert.Nil(t, appErr.Challenge)
}

func TestSaveUserDataJSON(t *testing.T) {
	c, backend, _ := setup(t)
	ctx := testContext(t)

	_, err := c.SaveUserDataJSON(ctx, []byte(`{"count": 12345678901234567890}`))
	require.NoError(t, err)
	assert.Contains(t, string(backend.Delta()), "12345678901234567890")

	for _, bad := range []string{`[1,2]`, `null`, `{"a":`, `"text"`, `{} {}`} {
		_, err := c.SaveUserDataJSON(ctx, []byte(bad))
		assert.Equal(t, apperr.KindMalformedPayload, apperr.KindOf(err), bad)
	}
	assert.Equal(t, 1, backend.Calls(mock.RouteDeltaPut))
}

func TestUnauthenticated_NoNetworkCalls(t *testing.T) {
	c, backend, id := setup(t)
	id.set("", "")
	ctx := testContext(t)

	ops := map[string]func() error{
		"fetch primary":        func() error { _, err := c.FetchPrimaryData(ctx, false); return err },
		"fetch primary forced": func() error { _, err := c.FetchPrimaryData(ctx, true); return err },
		"fetch user":           func() error { _, err := c.FetchUserData(ctx, false); return err },
		"save":                 func() error { _, err := c.SaveUserData(ctx, Document{"a": 1}); return err },
		"save json":            func() error { _, err := c.SaveUserDataJSON(ctx, []byte("not json")); return err },
		"list admin":           func() error { _, err := c.ListAdminFiles(ctx); return err },
		"get admin":            func() error { _, err := c.GetAdminFile(ctx, "a.json"); return err },
		"get admin empty":      func() error { _, err := c.GetAdminFile(ctx, ""); return err },
	}
	for name, op := range ops {
		err := op()
		assert.True(t, errors.Is(err, apperr.ErrUnauthenticated), "%s: %v", name, err)
	}
	assert.Equal(t, 0, backend.TotalCalls())
}

func TestUnauthenticated_AfterSignOutDoesNotServeCache(t *testing.T) {
	c, _, id := setup(t)
	ctx := testContext(t)

	_, err := c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)

	id.set("", "")
	c.ClearCache()
	_, err = c.FetchPrimaryData(ctx, false)
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
}

func TestListAdminFiles(t *testing.T) {
	c, backend, _ := setup(t)
	ctx := testContext(t)

	backend.SetAdminFiles(map[string]any{
		"reports/b.json": map[string]any{"b": 2},
		"reports/a.json": map[string]any{"a": 1},
	})
	paths, err := c.ListAdminFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/a.json", "reports/b.json"}, paths)

	req, ok := backend.LastRequest(mock.RouteAdmin)
	require.True(t, ok)
	assert.Contains(t, req.Header, AssetPathHeader)
	assert.Empty(t, req.Header.Get(AssetPathHeader))
}

func TestListAdminFiles_EmptyIsNotAnError(t *testing.T) {
	for _, body := range []string{`[]`, `null`} {
		t.Run(body, func(t *testing.T) {
			c, backend, _ := setup(t)
			backend.SetAdminListing(body)

			paths, err := c.ListAdminFiles(testContext(t))
			require.NoError(t, err)
			assert.NotNil(t, paths)
			assert.Empty(t, paths)
		})
	}
}

func TestListAdminFiles_NotAnArray(t *testing.T) {
	c, backend, _ := setup(t)
	backend.SetAdminListing(`{"files":[]}`)

	_, err := c.ListAdminFiles(testContext(t))
	assert.Equal(t, apperr.KindMalformedPayload, apperr.KindOf(err))
	assert.Equal(t, StatusError, c.Snapshot().Status)
}

func TestGetAdminFile(t *testing.T) {
	c, backend, _ := setup(t)
	backend.SetAdminFiles(map[string]any{"config/site.json": map[string]any{"title": "Site"}})
	ctx := testContext(t)

	payload, err := c.GetAdminFile(ctx, "config/site.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Site"}`, payload.String())

	req, _ := backend.LastRequest(mock.RouteAdmin)
	assert.Equal(t, "config/site.json", req.Header.Get(AssetPathHeader))

	_, err = c.GetAdminFile(ctx, "missing.json")
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)

	_, err = c.GetAdminFile(ctx, "")
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestAdminResultsAreNotCached(t *testing.T) {
	c, backend, _ := setup(t)
	backend.SetAdminFiles(map[string]any{"a.json": 1})
	ctx := testContext(t)

	_, err := c.ListAdminFiles(ctx)
	require.NoError(t, err)
	_, err = c.ListAdminFiles(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.Calls(mock.RouteAdmin))
	snap := c.Snapshot()
	assert.Nil(t, snap.PrimaryData)
	assert.Nil(t, snap.UserData)
	assert.Equal(t, StatusSuccess, snap.Status)
}

func TestMissingEndpointIsConfigError(t *testing.T) {
	c := New(&fakeIdentity{token: "t", account: "a"}, Endpoints{})
	_, err := c.FetchPrimaryData(testContext(t), false)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c, backend, _ := setup(t, WithMetrics(m))
	ctx := testContext(t)

	_, err := c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)
	_, err = c.FetchPrimaryData(ctx, false)
	require.NoError(t, err)
	backend.FailNext(mock.RoutePrimary, http.StatusBadGateway, "")
	_, err = c.FetchPrimaryData(ctx, true)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(EndpointPrimary, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(EndpointPrimary, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(EndpointPrimary, http.MethodGet, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(EndpointPrimary, http.MethodGet, "http_error")))
}
