package location

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/akarpov/skycast/internal/weather"
)

// StaticResolver delivers the configured host coordinates as location fixes.
// It keeps delivering on an interval until the subscription is canceled,
// the way a device location provider streams updates.
type StaticResolver struct {
	Coords   weather.Coordinates
	Interval time.Duration
}

var _ Resolver = (*StaticResolver)(nil)

func NewStaticResolver(coords weather.Coordinates) *StaticResolver {
	return &StaticResolver{Coords: coords, Interval: time.Second}
}

func (r *StaticResolver) Subscribe(ctx context.Context) (<-chan Fix, error) {
	if !r.Coords.Valid() {
		return nil, fmt.Errorf("invalid configured coordinates: %+v", r.Coords)
	}

	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}

	fixes := make(chan Fix, 1)
	go func() {
		defer close(fixes)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case fixes <- Fix{Coordinates: r.Coords, Time: time.Now().UTC()}:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return fixes, nil
}

// DeviceSettings is the configuration-backed implementation of Capabilities:
// the daemon's analog of the device's location toggle, permission state and
// connectivity check.
type DeviceSettings struct {
	Enabled      bool
	Consent      Permission
	ProbeAddr    string
	ProbeTimeout time.Duration
}

var _ Capabilities = (*DeviceSettings)(nil)

func (d *DeviceSettings) ServiceEnabled() bool {
	return d.Enabled
}

func (d *DeviceSettings) RequestPermission(_ context.Context) Permission {
	return d.Consent
}

// NetworkReachable probes connectivity with a short TCP dial.
func (d *DeviceSettings) NetworkReachable(ctx context.Context) bool {
	timeout := d.ProbeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.ProbeAddr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
