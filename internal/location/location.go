// Package location holds the collaborator boundaries of the resolution
// pipeline: obtaining a location fix, the device-level capability checks, and
// best-effort reverse geocoding of coordinates into a display name.
package location

import (
	"context"
	"time"

	"github.com/akarpov/skycast/internal/weather"
)

// Fix is a single resolved location reading.
type Fix struct {
	Coordinates weather.Coordinates
	Time        time.Time
}

// Resolver delivers location fixes on the returned channel until ctx is
// canceled. Consumers interested in a single fix take the first update and
// cancel; the resolver must stop delivering and release resources once the
// context is done.
type Resolver interface {
	Subscribe(ctx context.Context) (<-chan Fix, error)
}

// Permission is the outcome of a location permission request.
type Permission int

const (
	PermissionGranted Permission = iota
	PermissionDenied
	PermissionPermanentlyDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	case PermissionPermanentlyDenied:
		return "permanently_denied"
	default:
		return "unknown"
	}
}

// Capabilities are the OS-level collaborator checks the pipeline consults
// before and during a refresh cycle.
type Capabilities interface {
	// ServiceEnabled reports whether the location capability is switched on.
	ServiceEnabled() bool

	// NetworkReachable reports whether the network is usable right now.
	NetworkReachable(ctx context.Context) bool

	// RequestPermission asks for location permission and reports the outcome.
	RequestPermission(ctx context.Context) Permission
}
