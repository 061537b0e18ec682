// Package pipeline turns a location fix into a rendered, cached weather
// report: resolve one fix, fetch current weather, persist the snapshot,
// format it for display. One fetch per explicit trigger, no background loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akarpov/skycast/internal/location"
	"github.com/akarpov/skycast/internal/logger"
	"github.com/akarpov/skycast/internal/store"
	"github.com/akarpov/skycast/internal/weather"
)

// State is the pipeline's current position in a refresh cycle.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingPermission State = "awaiting_permission"
	StateAwaitingFix        State = "awaiting_fix"
	StateFetching           State = "fetching"
	StateRendered           State = "rendered"
)

// Attempt-terminal errors. None of them is fatal to the process and none of
// them touches the cached entry.
var (
	ErrLocationDisabled            = errors.New("location service is disabled")
	ErrPermissionDenied            = errors.New("location permission denied")
	ErrPermissionPermanentlyDenied = errors.New("location permission permanently denied")
	ErrNetworkUnavailable          = errors.New("network unavailable")

	// ErrNoFix covers a failed subscription and an expired fix wait.
	ErrNoFix = errors.New("no location fix received")

	// ErrSuperseded marks a cycle canceled by a newer refresh trigger.
	ErrSuperseded = errors.New("refresh superseded by a newer trigger")
)

const defaultFixTimeout = 30 * time.Second

// Config carries the pipeline's collaborators.
type Config struct {
	Fetcher      weather.Fetcher
	Cache        store.Cache
	Resolver     location.Resolver
	Capabilities location.Capabilities
	Geocoder     location.Geocoder

	// Region selects the display unit; empty means Celsius.
	Region string

	// FixTimeout bounds the wait for a location fix.
	FixTimeout time.Duration
}

// Pipeline orchestrates the fix → fetch → cache → render sequence. At most
// one location subscription and one in-flight fetch exist per instance: every
// refresh cancels the outstanding subscription before starting its own, and a
// generation counter keeps superseded cycles from writing or rendering.
type Pipeline struct {
	fetcher    weather.Fetcher
	cache      store.Cache
	resolver   location.Resolver
	caps       location.Capabilities
	geocoder   location.Geocoder
	region     string
	fixTimeout time.Duration
	log        *zap.SugaredLogger

	mu          sync.Mutex
	state       State
	cancelFix   context.CancelFunc
	generation  uint64
	lastAttempt string
	lastEntry   *weather.CachedEntry
	lastPlace   weather.Place
	lastAsset   weather.Asset
}

func New(cfg Config) *Pipeline {
	fixTimeout := cfg.FixTimeout
	if fixTimeout <= 0 {
		fixTimeout = defaultFixTimeout
	}

	return &Pipeline{
		fetcher:    cfg.Fetcher,
		cache:      cfg.Cache,
		resolver:   cfg.Resolver,
		caps:       cfg.Capabilities,
		geocoder:   cfg.Geocoder,
		region:     cfg.Region,
		fixTimeout: fixTimeout,
		log:        logger.Get(),
		state:      StateIdle,
	}
}

// Start renders the cached entry if one exists. Synchronous, so the cold-start
// render happens before any fetch-triggered render.
func (p *Pipeline) Start(ctx context.Context) {
	entry, err := p.cache.Get()
	if err != nil {
		if !errors.Is(err, store.ErrNoEntry) {
			p.log.Warnw("cache read failed on startup", "error", err)
		}
		return
	}

	p.mu.Lock()
	gen := p.generation
	p.mu.Unlock()

	if _, ok := p.render(ctx, entry, gen); ok {
		p.log.Infow("rendered cached snapshot",
			"latitude", entry.Coordinates.Latitude,
			"longitude", entry.Coordinates.Longitude)
	}
}

// Launch runs the app-open trigger: render the cached entry first, then run
// one refresh cycle. A failed refresh is terminal for that attempt only and
// leaves the cached render in place.
func (p *Pipeline) Launch(ctx context.Context) (weather.Report, error) {
	p.Start(ctx)
	return p.Refresh(ctx)
}

// Refresh runs one full resolution cycle and returns the rendered report.
// Every error is terminal for this attempt only; the last good cache entry
// survives all of them.
func (p *Pipeline) Refresh(ctx context.Context) (weather.Report, error) {
	attempt := uuid.New().String()

	p.mu.Lock()
	if p.cancelFix != nil {
		// Cancel the outstanding subscription before starting a new one;
		// the platform never disposes of it implicitly.
		p.cancelFix()
		p.cancelFix = nil
	}
	p.generation++
	gen := p.generation
	p.lastAttempt = attempt
	p.mu.Unlock()

	p.log.Infow("refresh started", "attempt", attempt)

	if !p.caps.ServiceEnabled() {
		p.endAttempt(gen)
		return weather.Report{}, ErrLocationDisabled
	}

	p.setState(gen, StateAwaitingPermission)
	switch p.caps.RequestPermission(ctx) {
	case location.PermissionDenied:
		p.endAttempt(gen)
		return weather.Report{}, ErrPermissionDenied
	case location.PermissionPermanentlyDenied:
		p.endAttempt(gen)
		return weather.Report{}, ErrPermissionPermanentlyDenied
	}

	p.setState(gen, StateAwaitingFix)
	fix, err := p.awaitFix(ctx, gen)
	if err != nil {
		p.endAttempt(gen)
		return weather.Report{}, err
	}

	p.log.Infow("location fix received", "attempt", attempt,
		"latitude", fix.Coordinates.Latitude, "longitude", fix.Coordinates.Longitude)

	p.setState(gen, StateFetching)
	if !p.caps.NetworkReachable(ctx) {
		p.endAttempt(gen)
		return weather.Report{}, ErrNetworkUnavailable
	}

	snap, err := p.fetcher.Fetch(ctx, fix.Coordinates)
	if err != nil {
		p.log.Warnw("weather fetch failed", "attempt", attempt, "error", err)
		p.endAttempt(gen)
		return weather.Report{}, err
	}

	entry := weather.CachedEntry{Snapshot: snap, Coordinates: fix.Coordinates}

	p.mu.Lock()
	superseded := gen != p.generation
	p.mu.Unlock()
	if superseded {
		return weather.Report{}, ErrSuperseded
	}

	if err := p.cache.Put(entry); err != nil {
		// The render still happens; only the offline fallback is affected.
		p.log.Warnw("cache write failed", "attempt", attempt, "error", err)
	}

	rep, ok := p.render(ctx, entry, gen)
	if !ok {
		return weather.Report{}, ErrSuperseded
	}

	p.log.Infow("refresh complete", "attempt", attempt)
	return rep, nil
}

// awaitFix subscribes for location updates, consumes the first fix and
// cancels the subscription immediately: at most one fix per request cycle.
func (p *Pipeline) awaitFix(ctx context.Context, gen uint64) (location.Fix, error) {
	fixCtx, cancel := context.WithTimeout(ctx, p.fixTimeout)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		cancel()
		return location.Fix{}, ErrSuperseded
	}
	p.cancelFix = cancel
	p.mu.Unlock()

	unsubscribe := func() {
		cancel()
		p.mu.Lock()
		if gen == p.generation {
			p.cancelFix = nil
		}
		p.mu.Unlock()
	}

	fixes, err := p.resolver.Subscribe(fixCtx)
	if err != nil {
		unsubscribe()
		return location.Fix{}, fmt.Errorf("%w: %v", ErrNoFix, err)
	}

	select {
	case fix, ok := <-fixes:
		unsubscribe()
		if !ok {
			return location.Fix{}, ErrNoFix
		}
		return fix, nil
	case <-fixCtx.Done():
		unsubscribe()
		p.mu.Lock()
		superseded := gen != p.generation
		p.mu.Unlock()
		if superseded {
			return location.Fix{}, ErrSuperseded
		}
		return location.Fix{}, fmt.Errorf("%w: %v", ErrNoFix, fixCtx.Err())
	}
}

// render publishes an entry as the current report. Returns ok=false when the
// cycle was superseded before publication.
func (p *Pipeline) render(ctx context.Context, entry weather.CachedEntry, gen uint64) (weather.Report, bool) {
	place, err := p.geocoder.ReverseGeocode(ctx, entry.Coordinates)
	if err != nil {
		// Best effort: render without a display name.
		p.log.Debugw("reverse geocode failed", "error", err)
		place = weather.Place{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		return weather.Report{}, false
	}

	if len(entry.Snapshot.Conditions) > 0 {
		// The first condition drives the icon; unknown codes keep the
		// previously selected asset.
		if a, ok := weather.IconFor(entry.Snapshot.Conditions[0].Icon); ok {
			p.lastAsset = a
		}
	}
	p.lastEntry = &entry
	p.lastPlace = place
	p.state = StateRendered

	return p.reportLocked(p.region), true
}

// Report formats the last rendered entry for display. An empty region uses
// the configured one; the unit is derived here, at render time, so a locale
// change shows up without refetching.
func (p *Pipeline) Report(region string) (weather.Report, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastEntry == nil {
		return weather.Report{}, false
	}
	if region == "" {
		region = p.region
	}
	return p.reportLocked(region), true
}

func (p *Pipeline) reportLocked(region string) weather.Report {
	rep := weather.FormatReport(p.lastEntry.Snapshot, weather.UnitFor(region), p.lastPlace)
	rep.Icon = p.lastAsset
	return rep
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastAttempt returns the ID of the most recent refresh attempt.
func (p *Pipeline) LastAttempt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAttempt
}

func (p *Pipeline) setState(gen uint64, s State) {
	p.mu.Lock()
	if gen == p.generation {
		p.state = s
	}
	p.mu.Unlock()
}

// endAttempt returns a still-current cycle to idle.
func (p *Pipeline) endAttempt(gen uint64) {
	p.mu.Lock()
	if gen == p.generation {
		p.state = StateIdle
	}
	p.mu.Unlock()
}
