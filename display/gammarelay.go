package display

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/isaacp5/OpenBlueFilter/gamma"
)

// wl-gammarelay D-Bus interface. The daemon owns the zwlr_gamma_control_v1
// protocol state; we drive it through its Temperature/Brightness/Gamma
// properties instead of speaking the Wayland protocol in-process.
const (
	relayName  = "rs.wl-gammarelay"
	relayPath  = dbus.ObjectPath("/")
	relayIface = "rs.wl.gammarelay"
)

// relayAdapter applies adjustments on Wayland through a running wl-gammarelay
// instance. The relay exposes a temperature knob rather than raw channel
// scales, so Apply maps the adjustment back onto the nearest temperature plus
// a brightness factor.
type relayAdapter struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
	mu     sync.Mutex
}

// NewGammaRelay connects to wl-gammarelay on the session bus.
func NewGammaRelay(logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus: %v", ErrUnsupported, err)
	}

	a := &relayAdapter{
		conn:   conn,
		obj:    conn.Object(relayName, relayPath),
		logger: logger,
	}

	var current uint16
	if err := a.obj.StoreProperty(relayIface+".Temperature", &current); err != nil {
		return nil, fmt.Errorf("%w: wl-gammarelay not running: %v", ErrUnsupported, err)
	}
	return a, nil
}

func (a *relayAdapter) Apply(adj gamma.Adjustment) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, brightness := relayParams(adj)
	if err := a.obj.SetProperty(relayIface+".Temperature", dbus.MakeVariant(uint16(t))); err != nil {
		return fmt.Errorf("%w: set temperature: %v", ErrUnsupported, err)
	}
	if err := a.obj.SetProperty(relayIface+".Brightness", dbus.MakeVariant(brightness)); err != nil {
		return fmt.Errorf("%w: set brightness: %v", ErrUnsupported, err)
	}
	if err := a.obj.SetProperty(relayIface+".Gamma", dbus.MakeVariant(1+adj.GammaBias)); err != nil {
		return fmt.Errorf("%w: set gamma: %v", ErrUnsupported, err)
	}
	a.logger.Debug("gammarelay: applied adjustment", "temperature", t, "brightness", brightness)
	return nil
}

func (a *relayAdapter) Revert() error {
	return a.Apply(gamma.Neutral)
}

// Close releases nothing: the session bus connection is shared, and the
// relay keeps whatever state was last applied. Callers revert explicitly
// before closing when the tint must not outlive them.
func (a *relayAdapter) Close() {}

// relayParams maps an adjustment back to the nearest color temperature and a
// uniform brightness. The blue/red ratio of the white point is monotonic in
// temperature, so a bisection recovers the temperature the adjustment was
// blended from (or the closest match for partial intensities).
func relayParams(adj gamma.Adjustment) (gamma.Temperature, float64) {
	if adj.IsNeutral() {
		return gamma.NeutralTemperature, 1
	}

	target := adj.Blue / adj.Red
	lo, hi := gamma.MinTemperature, gamma.MaxTemperature
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		r, _, b := gamma.White(mid)
		if b/r < target {
			lo = mid
		} else {
			hi = mid
		}
	}

	r, _, _ := gamma.White(lo)
	return lo, clampBrightness(adj.Red / r)
}

func clampBrightness(v float64) float64 {
	return min(max(v, 0), 1)
}
