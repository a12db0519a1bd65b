// Package tray exposes the filter in the system tray as a freedesktop
// StatusNotifierItem with a dbusmenu. It is a thin event source: every
// action goes through the engine's public operations and the rendered state
// is always re-read from the engine.
package tray

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/isaacp5/OpenBlueFilter/engine"
)

// Controller is the slice of the engine the tray consumes.
type Controller interface {
	Toggle() bool
	SetProfile(id string) error
	SetIntensity(percent int) error
	Status() engine.Status
}

const (
	sniPath     = dbus.ObjectPath("/StatusNotifierItem")
	menuPath    = dbus.ObjectPath("/MenuBar")
	sniIface    = "org.kde.StatusNotifierItem"
	menuIface   = "com.canonical.dbusmenu"
	watcherName = "org.kde.StatusNotifierWatcher"
	watcherPath = dbus.ObjectPath("/StatusNotifierWatcher")
)

// tooltip is the (sa(iiay)ss) ToolTip property layout.
type tooltip struct {
	IconName    string
	Pixmaps     []pixmap
	Title       string
	Description string
}

// Tray is the exported StatusNotifierItem object.
type Tray struct {
	conn   *dbus.Conn
	ctl    Controller
	logger *slog.Logger
	quit   func()

	props *prop.Properties
	menu  *menu

	mu   sync.Mutex
	last viewState
}

type viewState struct {
	enabled  bool
	degraded bool
	dirty    bool
	active   string
	profiles string
}

// Run registers the tray item and serves it until ctx is cancelled. quit is
// invoked when the user picks Quit from the menu. It returns an error if no
// StatusNotifierWatcher is available (no tray on this desktop); the caller
// is expected to continue without a tray.
func Run(ctx context.Context, ctl Controller, logger *slog.Logger, quit func()) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}
	defer conn.Close()

	t := &Tray{conn: conn, ctl: ctl, logger: logger, quit: quit}
	t.menu = &menu{tray: t}

	name := fmt.Sprintf("org.kde.StatusNotifierItem-%d-1", os.Getpid())
	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", name)
	}

	if err := t.export(); err != nil {
		return err
	}

	call := conn.Object(watcherName, watcherPath).CallWithContext(ctx,
		watcherName+".RegisterStatusNotifierItem", 0, name)
	if call.Err != nil {
		return fmt.Errorf("no status notifier host: %w", call.Err)
	}
	logger.Info("tray item registered", "name", name)

	// The engine has no change feed; poll it. Entering/leaving degraded
	// state and external config edits surface here within a tick.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	t.refresh()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) export() error {
	if err := t.conn.Export(t, sniPath, sniIface); err != nil {
		return fmt.Errorf("export item: %w", err)
	}

	status := t.ctl.Status()
	sniProps := map[string]*prop.Prop{
		"Category":   {Value: "ApplicationStatus", Emit: prop.EmitTrue},
		"Id":         {Value: "openbluefilter", Emit: prop.EmitTrue},
		"Title":      {Value: "OpenBlueFilter", Emit: prop.EmitTrue},
		"Status":     {Value: "Active", Emit: prop.EmitTrue},
		"IconName":   {Value: "", Emit: prop.EmitTrue},
		"IconPixmap": {Value: renderIcon(status.Enabled, status.Degraded), Emit: prop.EmitTrue},
		"ToolTip":    {Value: makeTooltip(status), Emit: prop.EmitTrue},
		"ItemIsMenu": {Value: false, Emit: prop.EmitTrue},
		"Menu":       {Value: menuPath, Emit: prop.EmitTrue},
	}
	props, err := prop.Export(t.conn, sniPath, map[string]map[string]*prop.Prop{sniIface: sniProps})
	if err != nil {
		return fmt.Errorf("export item properties: %w", err)
	}
	t.props = props

	if err := t.conn.Export(t.menu, menuPath, menuIface); err != nil {
		return fmt.Errorf("export menu: %w", err)
	}
	menuProps := map[string]*prop.Prop{
		"Version":       {Value: uint32(3)},
		"Status":        {Value: "normal"},
		"TextDirection": {Value: "ltr"},
		"IconThemePath": {Value: []string{}},
	}
	if _, err := prop.Export(t.conn, menuPath, map[string]map[string]*prop.Prop{menuIface: menuProps}); err != nil {
		return fmt.Errorf("export menu properties: %w", err)
	}

	for path, v := range map[dbus.ObjectPath]any{sniPath: t, menuPath: t.menu} {
		node := &introspect.Node{
			Name: string(path),
			Interfaces: []introspect.Interface{
				introspect.IntrospectData,
				prop.IntrospectData,
				{
					Name:    map[dbus.ObjectPath]string{sniPath: sniIface, menuPath: menuIface}[path],
					Methods: introspect.Methods(v),
				},
			},
		}
		if err := t.conn.Export(introspect.NewIntrospectable(node), path, "org.freedesktop.DBus.Introspectable"); err != nil {
			return fmt.Errorf("export introspection: %w", err)
		}
	}
	return nil
}

// refresh re-reads the engine state and pushes changed icon/tooltip/menu
// data to the host.
func (t *Tray) refresh() {
	status := t.ctl.Status()
	view := viewState{
		enabled:  status.Enabled,
		degraded: status.Degraded,
		dirty:    status.StorageDirty,
		active:   status.ActiveProfile.ID,
		profiles: profilesKey(status),
	}
	t.mu.Lock()
	if view == t.last {
		t.mu.Unlock()
		return
	}
	t.last = view
	t.mu.Unlock()

	t.props.SetMust(sniIface, "IconPixmap", renderIcon(status.Enabled, status.Degraded))
	t.props.SetMust(sniIface, "ToolTip", makeTooltip(status))
	if err := t.conn.Emit(sniPath, sniIface+".NewIcon"); err != nil {
		t.logger.Warn("tray: emit NewIcon", "error", err)
	}
	if err := t.conn.Emit(sniPath, sniIface+".NewToolTip"); err != nil {
		t.logger.Warn("tray: emit NewToolTip", "error", err)
	}
	t.menu.bump()
}

func profilesKey(status engine.Status) string {
	var b strings.Builder
	for _, p := range status.Profiles {
		b.WriteString(p.ID)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.TemperatureKelvin))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.IntensityPercent))
		b.WriteByte(';')
	}
	return b.String()
}

func makeTooltip(status engine.Status) tooltip {
	p := status.ActiveProfile
	desc := fmt.Sprintf("%s · %dK · %d%%", p.DisplayName, p.TemperatureKelvin, p.IntensityPercent)
	switch {
	case status.Degraded:
		desc += " (display unavailable)"
	case !status.Enabled:
		desc += " (off)"
	}
	if status.StorageDirty {
		desc += " (settings may not be saved)"
	}
	return tooltip{Title: "OpenBlueFilter", Description: desc}
}

// Activate toggles the filter (left click).
func (t *Tray) Activate(x, y int32) *dbus.Error {
	t.ctl.Toggle()
	t.refresh()
	return nil
}

// SecondaryActivate toggles the filter (middle click).
func (t *Tray) SecondaryActivate(x, y int32) *dbus.Error {
	return t.Activate(x, y)
}

// ContextMenu is handled by the host through the Menu property.
func (t *Tray) ContextMenu(x, y int32) *dbus.Error {
	return nil
}

// Scroll adjusts the active profile's intensity in 5% steps.
func (t *Tray) Scroll(delta int32, orientation string) *dbus.Error {
	if orientation != "vertical" {
		return nil
	}
	step := 5
	if delta < 0 {
		step = -5
	}
	if err := t.ctl.SetIntensity(t.ctl.Status().ActiveProfile.IntensityPercent + step); err != nil {
		t.logger.Warn("tray: set intensity", "error", err)
	}
	t.refresh()
	return nil
}
