// Package display applies color adjustments to the active display's gamma
// ramps. Backends exist for X11 (RandR) and Wayland (via the wl-gammarelay
// daemon's D-Bus interface). The display ramp is a global exclusive resource;
// every adapter serializes its own calls and only one adapter should be open
// per process.
package display

import (
	"errors"
	"log/slog"
	"os"

	"github.com/isaacp5/OpenBlueFilter/gamma"
)

var (
	// ErrUnsupported means no supported display server is reachable, or the
	// display server denied access to the gamma ramps.
	ErrUnsupported = errors.New("display: unsupported display server")

	// ErrNoDisplay means the connection works but no display device exists.
	ErrNoDisplay = errors.New("display: no display device found")
)

// Adapter applies and reverts adjustments on the active display. Apply is
// idempotent: the ramp is always written in absolute terms, so applying the
// same adjustment twice produces the same visible state.
type Adapter interface {
	Apply(gamma.Adjustment) error
	Revert() error
	Close()
}

// New opens an adapter for the current display server, if supported. If
// logger is nil, debug output is discarded.
func New(logger *slog.Logger) (Adapter, error) {
	switch {
	case os.Getenv("WAYLAND_DISPLAY") != "":
		return NewGammaRelay(logger)
	case os.Getenv("DISPLAY") != "":
		return NewX11("", logger)
	default:
		return nil, ErrUnsupported
	}
}
