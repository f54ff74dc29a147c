// Package discovery implements Discovery (C9): mDNS-style device
// enumeration, spec.md §4.9. Pure discovery — it never connects to a
// device, only tracks found/updated/lost and optionally synthesizes a
// mock device. Grounded on the teacher's rate-limited polling shape
// (internal/providers/kraken/ratelimiter.go) for the scan cadence, and on
// the Stream Node's bounded-event-channel idiom for found/updated/lost
// notifications.
package discovery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/synopticon/telemetry-fusion/internal/clock"
)

// DefaultServiceName is the mDNS-style service name, spec.md §4.9.
const DefaultServiceName = "_pupil-mobile._tcp"

// DefaultUnseenTimeout is how long a device can go unseen before it is
// considered lost, spec.md §4.9.
const DefaultUnseenTimeout = 60 * time.Second

// DefaultWindow is the bounded discovery scan window, spec.md §4.9.
const DefaultWindow = 7 * time.Second

// Device is one discovered device record, spec.md §6.
type Device struct {
	ID           string
	Name         string
	Address      string
	Port         int
	Capabilities []string
	Info         map[string]string
	lastSeenNs   int64
}

// EventKind names a Discovery lifecycle event, spec.md §4.9.
type EventKind string

const (
	EventFound   EventKind = "found"
	EventUpdated EventKind = "updated"
	EventLost    EventKind = "lost"
)

// Event pairs an EventKind with the Device it concerns.
type Event struct {
	Kind   EventKind
	Device Device
}

// Scanner is the pluggable mDNS-style lookup this package drives; a real
// implementation would browse _pupil-mobile._tcp, a test implementation
// returns a canned list.
type Scanner interface {
	Scan(ctx context.Context) ([]Device, error)
}

// Config configures scan cadence and timeouts, spec.md §4.9/§6.
type Config struct {
	ServiceName   string
	Window        time.Duration
	UnseenTimeout time.Duration
	ScanRateHz    float64
	MockEnabled   bool
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.UnseenTimeout <= 0 {
		c.UnseenTimeout = DefaultUnseenTimeout
	}
	if c.ScanRateHz <= 0 {
		c.ScanRateHz = 1
	}
	return c
}

// Discovery tracks known devices across repeated scans and emits
// found/updated/lost events.
type Discovery struct {
	cfg     Config
	scanner Scanner
	clk     clock.Clock
	limiter *rate.Limiter

	mu      sync.Mutex
	known   map[string]Device
	events  chan Event
}

// New builds a Discovery driven by scanner.
func New(cfg Config, scanner Scanner, clk clock.Clock) *Discovery {
	cfg = cfg.withDefaults()
	return &Discovery{
		cfg:     cfg,
		scanner: scanner,
		clk:     clk,
		limiter: rate.NewLimiter(rate.Limit(cfg.ScanRateHz), 1),
		known:   make(map[string]Device),
		events:  make(chan Event, 64),
	}
}

// Events returns the discovery event stream.
func (d *Discovery) Events() <-chan Event { return d.events }

// Run scans repeatedly until ctx is cancelled or the bounded window
// elapses, emitting found/updated/lost, spec.md §4.9. Aborts cleanly on
// ctx cancellation ("stop()").
func (d *Discovery) Run(ctx context.Context) {
	windowCtx, cancel := context.WithTimeout(ctx, d.cfg.Window)
	defer cancel()

	for {
		if err := d.limiter.Wait(windowCtx); err != nil {
			break
		}
		devices, err := d.scanner.Scan(windowCtx)
		if err != nil {
			if windowCtx.Err() != nil {
				break
			}
			continue
		}
		d.reconcile(devices)
	}

	d.mu.Lock()
	foundAny := len(d.known) > 0
	d.mu.Unlock()
	if !foundAny && d.cfg.MockEnabled {
		d.reconcile([]Device{mockDevice()})
	}
}

// reconcile diffs a scan result against known devices, emitting
// found/updated and marking unseen devices lost.
func (d *Discovery) reconcile(scanned []Device) {
	now := d.clk.NowNs()
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]bool, len(scanned))
	for _, dev := range scanned {
		dev.lastSeenNs = now
		seen[dev.ID] = true
		if existing, ok := d.known[dev.ID]; !ok {
			d.known[dev.ID] = dev
			d.emit(Event{Kind: EventFound, Device: dev})
		} else if existing.Address != dev.Address || existing.Port != dev.Port {
			d.known[dev.ID] = dev
			d.emit(Event{Kind: EventUpdated, Device: dev})
		} else {
			existing.lastSeenNs = now
			d.known[dev.ID] = existing
		}
	}

	for id, dev := range d.known {
		if seen[id] {
			continue
		}
		if time.Duration(now-dev.lastSeenNs) >= d.cfg.UnseenTimeout {
			delete(d.known, id)
			d.emit(Event{Kind: EventLost, Device: dev})
		}
	}
}

func (d *Discovery) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
	}
}

// Known returns a snapshot of currently-known devices.
func (d *Discovery) Known() []Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Device, 0, len(d.known))
	for _, dev := range d.known {
		out = append(out, dev)
	}
	return out
}

func mockDevice() Device {
	return Device{
		ID:           "mock-eye-tracker-0",
		Name:         "Mock Eye Tracker",
		Address:      "127.0.0.1",
		Port:         8080,
		Capabilities: []string{"gaze", "video", "imu"},
		Info:         map[string]string{"model": "mock"},
	}
}
