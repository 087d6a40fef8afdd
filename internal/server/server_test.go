package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	brewmap "github.com/brewmap/brewmap/internal"
	"github.com/brewmap/brewmap/internal/app"
	"github.com/brewmap/brewmap/internal/cache"
	"github.com/brewmap/brewmap/internal/circuitbreaker"
	"github.com/brewmap/brewmap/internal/ratelimit"
	"github.com/brewmap/brewmap/internal/testutil"
)

type handlerOpts struct {
	transport app.Transport
	store     *testutil.FakeStore
	limiter   *ratelimit.Registry
}

func newTestHandler(t testing.TB, opts handlerOpts) http.Handler {
	t.Helper()

	if opts.transport == nil {
		opts.transport = &testutil.FakeTransport{
			TransportName: "overpass-api.de",
			QueryFn: func(context.Context, brewmap.Bounds) ([]brewmap.Element, error) {
				return []brewmap.Element{
					testutil.Node(1, 48.851, 2.341, map[string]string{"amenity": "cafe", "name": "Le Percolateur"}),
					testutil.Way(2, 48.852, 2.342, map[string]string{"craft": "roaster"}),
				}, nil
			},
		}
	}
	if opts.store == nil {
		opts.store = testutil.NewFakeStore()
	}

	c := cache.New(50, 5*time.Minute)
	filters := app.NewFilterService(nil, c)
	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())
	locations := app.NewLocationService([]app.Transport{opts.transport}, c, filters, breakers)

	favorites, err := app.NewFavoriteService(opts.store)
	if err != nil {
		t.Fatalf("NewFavoriteService: %v", err)
	}

	return New(Deps{
		Locations:   locations,
		Filters:     filters,
		Favorites:   favorites,
		Queries:     opts.store,
		Cache:       c,
		Breakers:    breakers,
		RateLimiter: opts.limiter,
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestLocations(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations?south=48.85&west=2.34&north=48.86&east=2.36", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp locationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 || len(resp.Locations) != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Locations[0].Name != "Le Percolateur" {
		t.Errorf("name = %q", resp.Locations[0].Name)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

func TestLocations_TypesParam(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations?south=48.85&west=2.34&north=48.86&east=2.36&types=roastery", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp locationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Locations[0].Type != brewmap.TypeRoastery {
		t.Fatalf("got %+v, want one roastery", resp.Locations)
	}
}

func TestLocations_BadParams(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	cases := []struct {
		name string
		url  string
	}{
		{"missing south", "/api/v1/locations?west=2.34&north=48.86&east=2.36"},
		{"non-numeric", "/api/v1/locations?south=abc&west=2.34&north=48.86&east=2.36"},
		{"inverted bounds", "/api/v1/locations?south=48.90&west=2.34&north=48.86&east=2.36"},
		{"unknown type", "/api/v1/locations?south=48.85&west=2.34&north=48.86&east=2.36&types=pub"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.url, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestLocations_UpstreamFailure(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{
		transport: &testutil.FakeTransport{
			TransportName: "overpass-api.de",
			QueryFn: func(context.Context, brewmap.Bounds) ([]brewmap.Element, error) {
				return nil, errors.New("connect: connection refused")
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations?south=48.85&west=2.34&north=48.86&east=2.36", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestNearby(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nearby?lat=48.855&lon=2.35&radius=500", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Missing coordinates are rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/nearby?lon=2.35", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTypes(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/types", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var types []typeInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(types) != len(brewmap.KnownTypes) {
		t.Fatalf("got %d types, want %d", len(types), len(brewmap.KnownTypes))
	}
}

func TestFilters_RoundTrip(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	// Narrow the filters to cafes only.
	body := strings.NewReader(`{"enabled":["cafe"]}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/filters", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/filters", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp filtersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Enabled) != 1 || resp.Enabled[0] != brewmap.TypeCafe {
		t.Fatalf("enabled = %v, want [cafe]", resp.Enabled)
	}

	// Unknown types are rejected.
	req = httptest.NewRequest(http.MethodPut, "/api/v1/filters", strings.NewReader(`{"enabled":["pub"]}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT unknown type status = %d, want 400", rec.Code)
	}
}

func TestFavorites_CRUD(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	// Without a device header favorites are rejected.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("no device: status = %d, want 400", rec.Code)
	}

	body := strings.NewReader(`{"location_id":42,"name":"Le Percolateur","type":"roastery","lat":48.85,"lon":2.35}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/favorites", body)
	req.Header.Set("X-Device-Id", "device-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var fav brewmap.Favorite
	if err := json.Unmarshal(rec.Body.Bytes(), &fav); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fav.ID == "" || fav.LocationID != 42 {
		t.Fatalf("favorite = %+v", fav)
	}

	// Duplicate location conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/favorites",
		strings.NewReader(`{"location_id":42}`))
	req.Header.Set("X-Device-Id", "device-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate POST status = %d, want 409", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
	req.Header.Set("X-Device-Id", "device-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var favs []brewmap.Favorite
	if err := json.Unmarshal(rec.Body.Bytes(), &favs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(favs) != 1 {
		t.Fatalf("got %d favorites, want 1", len(favs))
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/favorites/"+fav.ID, nil)
	req.Header.Set("X-Device-Id", "device-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}

	// Deleting again is a 404.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/favorites/"+fav.ID, nil)
	req.Header.Set("X-Device-Id", "device-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", rec.Code)
	}
}

func TestCacheAdmin(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	// Populate the cache with one viewport.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations?south=48.85&west=2.34&north=48.86&east=2.36", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("locations status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var stats cacheStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.ValidEntries != 1 {
		t.Fatalf("valid entries = %d, want 1", stats.ValidEntries)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE cache status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.TotalEntries != 0 {
		t.Errorf("total entries = %d after clear, want 0", stats.TotalEntries)
	}
}

func TestMirrors(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{})

	// Trigger one upstream query so the mirror's breaker exists.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations?south=48.85&west=2.34&north=48.86&east=2.36", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/mirrors", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var states map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &states); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if states["overpass-api.de"] != "closed" {
		t.Errorf("states = %v, want overpass-api.de closed", states)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, handlerOpts{limiter: ratelimit.NewRegistry(2)})

	url := "/api/v1/types"
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.Header.Set("X-Device-Id", "device-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("X-Device-Id", "device-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// A different device is unaffected.
	req = httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("X-Device-Id", "device-2")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other device status = %d, want 200", rec.Code)
	}
}

func TestRecentQueries(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	store.InsertQueries(context.Background(), []brewmap.QueryRecord{
		{ID: "q-1", ResultCount: 3, CreatedAt: time.Now()},
	})
	h := newTestHandler(t, handlerOpts{store: store})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var recs []brewmap.QueryRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "q-1" {
		t.Fatalf("records = %+v", recs)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/queries?limit=bogus", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}
