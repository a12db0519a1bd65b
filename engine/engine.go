// Package engine orchestrates the screen filter: it owns the enabled state,
// resolves the active profile into a display adjustment, re-applies it on a
// timed cadence, and persists every change write-through.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/isaacp5/OpenBlueFilter/display"
	"github.com/isaacp5/OpenBlueFilter/gamma"
	"github.com/isaacp5/OpenBlueFilter/profile"
)

// ErrProfileNotFound is returned when an operation names an unknown profile.
// Callers decide the UI feedback; the engine never silently defaults.
var ErrProfileNotFound = profile.ErrNotFound

// DefaultInterval is the re-apply cadence. Some display backends silently
// drop custom gamma ramps (resolution changes, exclusive-fullscreen apps),
// so the current adjustment is re-applied even when unchanged.
const DefaultInterval = 10 * time.Second

// Config tunes an Engine.
type Config struct {
	// Interval is the re-apply cadence. Zero means DefaultInterval.
	Interval time.Duration

	// Schedule, if set, derives the applied color temperature from the
	// sun's position instead of the active profile's fixed value.
	Schedule *Schedule
}

// Engine is the single owner of display state. All adapter calls are
// serialized through its mutex, including the ones made by the background
// re-apply loop.
type Engine struct {
	store    *profile.Store
	adapter  display.Adapter
	logger   *slog.Logger
	interval time.Duration
	schedule *Schedule

	mu       sync.Mutex
	enabled  bool
	degraded bool
	stop     chan struct{} // non-nil while enabled; closing it cancels the loop
	done     chan struct{} // closed when the loop goroutine exits
}

// Status is a snapshot of the engine's observable state for UI consumers.
type Status struct {
	Enabled       bool
	Degraded      bool // enabled but the display backend is rejecting applies
	StorageDirty  bool // the last settings write failed; changes may not survive restart
	ActiveProfile profile.Profile
	Profiles      []profile.Profile
}

// New creates an engine. It does not touch the display until Start or an
// operation requires it.
func New(store *profile.Store, adapter display.Adapter, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		store:    store,
		adapter:  adapter,
		logger:   logger,
		interval: interval,
		schedule: cfg.Schedule.withDefaults(),
	}
}

// Start restores the persisted state: if the filter was enabled when the
// process last exited, the adjustment is applied once at its final value (no
// neutral-then-tinted flash) and the re-apply loop starts.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store.Enabled() && !e.enabled {
		e.enableLocked()
	}
	if e.schedule != nil {
		e.logger.Info("solar schedule active", "next", e.schedule.nextTransition())
	}
}

// Toggle flips between Disabled and Enabled and returns the new state.
// Repeated toggles alternate cleanly: ramps are written in absolute terms,
// so nothing accumulates.
func (e *Engine) Toggle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled {
		e.disableLocked()
	} else {
		e.enableLocked()
	}
	e.store.SetEnabled(e.enabled)
	return e.enabled
}

func (e *Engine) enableLocked() {
	e.enabled = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.applyLocked()
	go e.run(e.stop, e.done)
	e.logger.Info("filter enabled", "profile", e.store.Active().ID)
}

// disableLocked cancels the loop and reverts while still holding the mutex:
// once stop is closed under the lock, a stale tick that was already waiting
// can only observe the cancellation and skip, so the revert happens-before
// any further apply.
func (e *Engine) disableLocked() {
	e.enabled = false
	close(e.stop)
	e.stop = nil
	if err := e.adapter.Revert(); err != nil {
		e.logger.Warn("revert to neutral failed", "error", err)
	}
	e.degraded = false
	e.logger.Info("filter disabled")
}

func (e *Engine) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			e.reapply(stop)
		}
	}
}

func (e *Engine) reapply(stop chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-stop:
		return // disabled while this tick was waiting for the lock
	default:
	}
	e.applyLocked()
}

// applyLocked computes and applies the current adjustment. Display errors
// are non-fatal: the engine stays logically enabled, reports a degraded
// status, and retries on the next tick.
func (e *Engine) applyLocked() {
	p := e.store.Active()
	t := gamma.Temperature(p.TemperatureKelvin)
	if e.schedule != nil {
		t = e.schedule.temperature(t)
	}
	adj := gamma.Compute(t, p.IntensityPercent)

	if err := e.adapter.Apply(adj); err != nil {
		if !e.degraded {
			e.logger.Warn("filter inactive: display rejected adjustment", "error", err,
				"unsupported", errors.Is(err, display.ErrUnsupported),
				"no_display", errors.Is(err, display.ErrNoDisplay))
		}
		e.degraded = true
		return
	}
	if e.degraded {
		e.logger.Info("display adjustment restored")
	}
	e.degraded = false
}

// SetProfile switches the active profile, persists the change, and re-applies
// exactly once if the filter is enabled.
func (e *Engine) SetProfile(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.store.Get(id); !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, id)
	}
	if err := e.store.SetActive(id); err != nil {
		return err
	}
	if e.enabled {
		e.applyLocked()
	}
	e.logger.Info("profile selected", "profile", id)
	return nil
}

// SetIntensity updates the active profile's intensity. Out-of-range values
// are clamped, never rejected.
func (e *Engine) SetIntensity(percent int) error {
	return e.updateActive(func(p *profile.Profile) {
		p.IntensityPercent = gamma.ClampIntensity(percent)
	})
}

// SetTemperature updates the active profile's color temperature.
// Out-of-range values are clamped, never rejected.
func (e *Engine) SetTemperature(kelvin int) error {
	return e.updateActive(func(p *profile.Profile) {
		p.TemperatureKelvin = int(gamma.ClampTemperature(gamma.Temperature(kelvin)))
	})
}

func (e *Engine) updateActive(mutate func(*profile.Profile)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.store.Active()
	mutate(&p)
	if err := e.store.Upsert(p); err != nil {
		return err
	}
	if e.enabled {
		e.applyLocked()
	}
	return nil
}

// Refresh re-applies the current adjustment if enabled. Used after the
// configuration was reloaded from an external edit.
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled {
		e.applyLocked()
	}
}

// Status returns the observable state for UI consumers.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Enabled:       e.enabled,
		Degraded:      e.enabled && e.degraded,
		StorageDirty:  e.store.Dirty(),
		ActiveProfile: e.store.Active(),
		Profiles:      e.store.All(),
	}
}

// Close stops the loop and reverts the display to neutral. Leaving a tint
// behind after the process dies is the one unacceptable failure mode, so
// this must run before the adapter is released on every exit path.
func (e *Engine) Close() {
	e.mu.Lock()
	var done chan struct{}
	if e.enabled {
		done = e.done
		e.disableLocked()
		e.enabled = false
	} else if err := e.adapter.Revert(); err != nil {
		e.logger.Warn("revert to neutral failed", "error", err)
	}
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}
