package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akarpov/skycast/internal/location"
	"github.com/akarpov/skycast/internal/store"
	"github.com/akarpov/skycast/internal/weather"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	last  weather.Coordinates
	snap  weather.Snapshot
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, coords weather.Coordinates) (weather.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = coords
	return f.snap, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeResolver delivers a fix for every subscription at or past deliverFrom
// and blocks the earlier ones until their context is canceled. It records
// whether the previous subscription's context was already canceled when a new
// one arrived.
type fakeResolver struct {
	mu          sync.Mutex
	fix         location.Fix
	deliverFrom int
	subscribes  int
	prevCtx     context.Context
	prevLive    bool // a previous subscription was still live on a new Subscribe
}

func (r *fakeResolver) Subscribe(ctx context.Context) (<-chan location.Fix, error) {
	r.mu.Lock()
	r.subscribes++
	n := r.subscribes
	if r.prevCtx != nil && r.prevCtx.Err() == nil {
		r.prevLive = true
	}
	r.prevCtx = ctx
	deliver := r.deliverFrom <= n
	fix := r.fix
	r.mu.Unlock()

	fixes := make(chan location.Fix, 1)
	go func() {
		defer close(fixes)
		if deliver {
			fixes <- fix
		}
		<-ctx.Done()
	}()
	return fixes, nil
}

func (r *fakeResolver) subscribeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribes
}

type fakeCaps struct {
	enabled bool
	consent location.Permission
	network bool
}

func (c *fakeCaps) ServiceEnabled() bool { return c.enabled }

func (c *fakeCaps) NetworkReachable(context.Context) bool { return c.network }

func (c *fakeCaps) RequestPermission(context.Context) location.Permission { return c.consent }

type fakeGeocoder struct {
	mu     sync.Mutex
	place  weather.Place
	err    error
	coords []weather.Coordinates
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, coords weather.Coordinates) (weather.Place, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.coords = append(g.coords, coords)
	return g.place, g.err
}

type fixture struct {
	fetcher  *fakeFetcher
	resolver *fakeResolver
	caps     *fakeCaps
	geocoder *fakeGeocoder
	cache    *store.MemoryCache
	pipe     *Pipeline
}

func newFixture(cfgFns ...func(*Config)) *fixture {
	f := &fixture{
		fetcher: &fakeFetcher{snap: weather.Snapshot{
			Conditions: []weather.Condition{{Main: "Clear", Description: "clear sky", Icon: "01d"}},
			Temp:       18.2,
			TempMin:    15.0,
			TempMax:    21.4,
			Humidity:   40,
			WindSpeed:  1.2,
			Sunrise:    1700000000,
			Sunset:     1700040000,
		}},
		resolver: &fakeResolver{fix: location.Fix{
			Coordinates: weather.Coordinates{Latitude: 10, Longitude: 20},
			Time:        time.Now().UTC(),
		}},
		caps:     &fakeCaps{enabled: true, consent: location.PermissionGranted, network: true},
		geocoder: &fakeGeocoder{place: weather.Place{Locality: "Bengaluru", Country: "India"}},
		cache:    store.NewMemoryCache(),
	}

	cfg := Config{
		Fetcher:      f.fetcher,
		Cache:        f.cache,
		Resolver:     f.resolver,
		Capabilities: f.caps,
		Geocoder:     f.geocoder,
		FixTimeout:   2 * time.Second,
	}
	for _, fn := range cfgFns {
		fn(&cfg)
	}
	f.pipe = New(cfg)
	return f
}

func TestColdStartWithoutCache(t *testing.T) {
	f := newFixture()

	f.pipe.Start(context.Background())

	assert.Equal(t, StateIdle, f.pipe.State())
	_, ok := f.pipe.Report("")
	assert.False(t, ok, "nothing should be rendered without a cache entry")
	assert.Zero(t, f.fetcher.callCount())
}

func TestColdStartRendersCache(t *testing.T) {
	f := newFixture()

	cached := weather.CachedEntry{
		Snapshot:    f.fetcher.snap,
		Coordinates: weather.Coordinates{Latitude: 12.9, Longitude: 77.6},
	}
	require.NoError(t, f.cache.Put(cached))

	f.pipe.Start(context.Background())

	require.Equal(t, StateRendered, f.pipe.State())
	rep, ok := f.pipe.Report("")
	require.True(t, ok)
	assert.Equal(t, "18.2 ℃", rep.Temperature)
	assert.Equal(t, "15 ℃ min", rep.TempMin)
	assert.Equal(t, "21.4 ℃ max", rep.TempMax)
	assert.Equal(t, "40 per cent", rep.Humidity)
	assert.Equal(t, weather.AssetSunny, rep.Icon)
	assert.Equal(t, weather.Place{Locality: "Bengaluru", Country: "India"}, rep.Place)

	// The display name is resolved for the cached coordinates.
	require.NotEmpty(t, f.geocoder.coords)
	assert.Equal(t, cached.Coordinates, f.geocoder.coords[0])

	// Cold start never fetches.
	assert.Zero(t, f.fetcher.callCount())
}

func TestLaunchEmptyCacheLocationDisabled(t *testing.T) {
	f := newFixture()
	f.caps.enabled = false

	_, err := f.pipe.Launch(context.Background())
	require.ErrorIs(t, err, ErrLocationDisabled)
	assert.Equal(t, StateIdle, f.pipe.State())
	_, ok := f.pipe.Report("")
	assert.False(t, ok, "nothing to render on a cold start with location disabled")
}

func TestLaunchFetchesAfterCacheRender(t *testing.T) {
	f := newFixture()

	stale := weather.CachedEntry{
		Snapshot:    f.fetcher.snap,
		Coordinates: weather.Coordinates{Latitude: 12.9, Longitude: 77.6},
	}
	stale.Snapshot.Temp = 5.0
	require.NoError(t, f.cache.Put(stale))

	rep, err := f.pipe.Launch(context.Background())
	require.NoError(t, err)

	// The launch trigger fetches exactly once and supersedes the cached render.
	assert.Equal(t, 1, f.fetcher.callCount())
	assert.Equal(t, "18.2 ℃", rep.Temperature)
	assert.Equal(t, StateRendered, f.pipe.State())
}

func TestLaunchRefreshFailureKeepsCachedRender(t *testing.T) {
	f := newFixture()
	f.fetcher.err = weather.ErrTransport

	cached := weather.CachedEntry{
		Snapshot:    f.fetcher.snap,
		Coordinates: weather.Coordinates{Latitude: 12.9, Longitude: 77.6},
	}
	require.NoError(t, f.cache.Put(cached))

	_, err := f.pipe.Launch(context.Background())
	require.ErrorIs(t, err, weather.ErrTransport)

	rep, ok := f.pipe.Report("")
	require.True(t, ok, "the cached render survives a failed launch fetch")
	assert.Equal(t, "18.2 ℃", rep.Temperature)
}

func TestRefreshLocationDisabled(t *testing.T) {
	f := newFixture()
	f.caps.enabled = false

	_, err := f.pipe.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrLocationDisabled)
	assert.Equal(t, StateIdle, f.pipe.State())
	assert.Zero(t, f.fetcher.callCount())
	assert.Zero(t, f.resolver.subscribeCount())
}

func TestRefreshPermissionDenied(t *testing.T) {
	f := newFixture()
	f.caps.consent = location.PermissionDenied

	_, err := f.pipe.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Zero(t, f.resolver.subscribeCount())
}

func TestRefreshPermissionPermanentlyDenied(t *testing.T) {
	f := newFixture()
	f.caps.consent = location.PermissionPermanentlyDenied

	_, err := f.pipe.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrPermissionPermanentlyDenied)
}

func TestRefreshNetworkUnavailable(t *testing.T) {
	f := newFixture()
	f.caps.network = false

	_, err := f.pipe.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNetworkUnavailable)

	// The fetch is never issued and the cache is untouched.
	assert.Zero(t, f.fetcher.callCount())
	_, err = f.cache.Get()
	assert.ErrorIs(t, err, store.ErrNoEntry)
}

func TestRefreshHappyPath(t *testing.T) {
	f := newFixture()

	rep, err := f.pipe.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateRendered, f.pipe.State())
	assert.Equal(t, "18.2 ℃", rep.Temperature)
	assert.Equal(t, weather.AssetSunny, rep.Icon)
	assert.Equal(t, 1, f.fetcher.callCount())
	assert.Equal(t, weather.Coordinates{Latitude: 10, Longitude: 20}, f.fetcher.last)

	want := weather.CachedEntry{
		Snapshot:    f.fetcher.snap,
		Coordinates: weather.Coordinates{Latitude: 10, Longitude: 20},
	}
	got, err := f.cache.Get()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A second read returns the same entry.
	again, err := f.cache.Get()
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestFetchFailureKeepsCache(t *testing.T) {
	f := newFixture()

	stale := weather.CachedEntry{
		Snapshot:    weather.Snapshot{Temp: -1.5, Humidity: 90},
		Coordinates: weather.Coordinates{Latitude: 1, Longitude: 2},
	}
	require.NoError(t, f.cache.Put(stale))

	f.fetcher.err = fmt.Errorf("%w: status 404", weather.ErrNotFound)

	_, err := f.pipe.Refresh(context.Background())
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.Equal(t, StateIdle, f.pipe.State())

	got, err := f.cache.Get()
	require.NoError(t, err)
	assert.Equal(t, stale, got, "a fetch error must never touch the cache")
}

func TestRefreshFixTimeout(t *testing.T) {
	f := newFixture(func(cfg *Config) {
		cfg.FixTimeout = 50 * time.Millisecond
	})
	f.resolver.deliverFrom = 2 // first subscription never delivers

	_, err := f.pipe.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoFix)
	assert.Zero(t, f.fetcher.callCount())
}

func TestSecondRefreshCancelsFirstSubscription(t *testing.T) {
	f := newFixture()
	f.resolver.deliverFrom = 2 // the first subscription blocks until canceled

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.pipe.Refresh(context.Background())
		firstDone <- err
	}()

	// Wait for the first cycle to hold its subscription.
	require.Eventually(t, func() bool {
		return f.resolver.subscribeCount() == 1
	}, time.Second, 5*time.Millisecond)

	rep, err := f.pipe.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "18.2 ℃", rep.Temperature)

	select {
	case err := <-firstDone:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("first refresh did not finish after being superseded")
	}

	// The first subscription was canceled before the second one started,
	// and only the second cycle fetched.
	assert.False(t, f.resolver.prevLive, "two subscriptions were live at once")
	assert.Equal(t, 2, f.resolver.subscribeCount())
	assert.Equal(t, 1, f.fetcher.callCount())

	got, err := f.cache.Get()
	require.NoError(t, err)
	assert.Equal(t, weather.Coordinates{Latitude: 10, Longitude: 20}, got.Coordinates)
}

func TestUnknownIconKeepsPreviousAsset(t *testing.T) {
	f := newFixture()

	_, err := f.pipe.Refresh(context.Background())
	require.NoError(t, err)

	rep, ok := f.pipe.Report("")
	require.True(t, ok)
	require.Equal(t, weather.AssetSunny, rep.Icon)

	f.fetcher.snap.Conditions = []weather.Condition{{Main: "Haze", Description: "haze", Icon: "50d"}}

	rep, err = f.pipe.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, weather.AssetSunny, rep.Icon, "unknown icon code must keep the prior asset")
	assert.Equal(t, "Haze", rep.Condition)
}

func TestIconFollowsFirstCondition(t *testing.T) {
	f := newFixture()
	f.fetcher.snap.Conditions = []weather.Condition{
		{Main: "Thunderstorm", Description: "thunderstorm", Icon: "11d"},
		{Main: "Clear", Description: "clear sky", Icon: "01d"},
	}

	rep, err := f.pipe.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, weather.AssetStormy, rep.Icon, "icon must come from the first condition")
	assert.Equal(t, "Clear", rep.Condition, "text must come from the last condition")
}

func TestReportUnitDerivedAtRenderTime(t *testing.T) {
	f := newFixture()

	_, err := f.pipe.Refresh(context.Background())
	require.NoError(t, err)

	metric, ok := f.pipe.Report("")
	require.True(t, ok)
	assert.Equal(t, "18.2 ℃", metric.Temperature)

	imperial, ok := f.pipe.Report("US")
	require.True(t, ok)
	assert.Equal(t, "18.2 ℉", imperial.Temperature)
}

func TestGeocodeFailureDegradesToEmptyPlace(t *testing.T) {
	f := newFixture()
	f.geocoder.err = errors.New("nominatim api error: 502 Bad Gateway")

	rep, err := f.pipe.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, weather.Place{}, rep.Place)
}
