package display

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/isaacp5/OpenBlueFilter/gamma"
)

// xAdapter sets gamma ramps for X11 displays using RandR. It re-applies the
// current adjustment whenever a CRTC changes (resolution switches and
// exclusive-fullscreen apps reset the ramps), so callers get self-healing on
// top of their own periodic re-apply.
type xAdapter struct {
	conn   *xgb.Conn
	logger *slog.Logger
	root   xproto.Window

	mu      sync.Mutex
	current gamma.Adjustment
}

// NewX11 opens an X11 connection to the specified display (empty for the
// default), processing RandR events in another goroutine.
func NewX11(displayName string, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	conn, err := xgb.NewConnDisplay(displayName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}

	a := &xAdapter{conn: conn, logger: logger, current: gamma.Neutral}
	a.root = xproto.Setup(conn).DefaultScreen(conn).Root

	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: randr: %v", ErrUnsupported, err)
	}
	if err := randr.SelectInputChecked(conn, a.root, randr.NotifyMaskCrtcChange).Check(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: randr: %v", ErrUnsupported, err)
	}

	go func() {
		for {
			e, err := conn.WaitForEvent()
			if err != nil {
				a.logger.Warn("x11: connection lost", "error", err)
				return
			}
			switch e := e.(type) {
			case randr.NotifyEvent:
				if e.SubCode == randr.NotifyCrtcChange {
					a.mu.Lock()
					if err := a.applyLocked(); err != nil {
						a.logger.Warn("x11: re-apply after crtc change failed", "error", err)
					}
					a.mu.Unlock()
				}
			}
		}
	}()

	return a, nil
}

func (a *xAdapter) Apply(adj gamma.Adjustment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = adj
	return a.applyLocked()
}

func (a *xAdapter) Revert() error {
	return a.Apply(gamma.Neutral)
}

func (a *xAdapter) Close() {
	a.conn.Close()
}

func (a *xAdapter) applyLocked() error {
	resources, err := randr.GetScreenResourcesCurrent(a.conn, a.root).Reply()
	if err != nil {
		return fmt.Errorf("%w: get screen resources: %v", ErrUnsupported, err)
	}
	if len(resources.Crtcs) == 0 {
		return ErrNoDisplay
	}
	for _, crtc := range resources.Crtcs {
		if err := setCrtcRamp(a.conn, crtc, a.current); err != nil {
			return fmt.Errorf("%w: crtc %d: %v", ErrUnsupported, crtc, err)
		}
	}
	a.logger.Debug("x11: applied adjustment", "crtcs", len(resources.Crtcs),
		"red", a.current.Red, "green", a.current.Green, "blue", a.current.Blue)
	return nil
}

// setCrtcRamp applies an adjustment to the specified CRTC. The RandR
// extension must be initialized.
func setCrtcRamp(conn *xgb.Conn, crtc randr.Crtc, adj gamma.Adjustment) error {
	size, err := randr.GetCrtcGammaSize(conn, crtc).Reply()
	if err != nil {
		return fmt.Errorf("get crtc gamma size: %w", err)
	}
	gr := make([]uint16, size.Size)
	gg := make([]uint16, size.Size)
	gb := make([]uint16, size.Size)
	gamma.Ramp(gr, gg, gb, adj)
	if err := randr.SetCrtcGammaChecked(conn, crtc, size.Size, gr, gg, gb).Check(); err != nil {
		return fmt.Errorf("set crtc gamma: %w", err)
	}
	return nil
}
