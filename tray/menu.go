package tray

import (
	"sync"

	"github.com/godbus/dbus/v5"
)

// Menu item ids. Profile entries start at menuProfileBase in the order the
// engine reports them.
const (
	menuRootID      = int32(0)
	menuToggleID    = int32(1)
	menuQuitID      = int32(2)
	menuDegradedID  = int32(3)
	menuProfileBase = int32(100)
)

// layoutNode is the (ia{sv}av) recursive layout structure of
// com.canonical.dbusmenu.
type layoutNode struct {
	ID         int32
	Properties map[string]dbus.Variant
	Children   []dbus.Variant
}

// groupProperty is one element of GetGroupProperties' a(ia{sv}) reply.
type groupProperty struct {
	ID         int32
	Properties map[string]dbus.Variant
}

// menuEvent is one element of EventGroup's a(isvu) argument.
type menuEvent struct {
	ID        int32
	EventID   string
	Data      dbus.Variant
	Timestamp uint32
}

// menu serves com.canonical.dbusmenu, rebuilding the layout from the engine
// on every request so it never caches stale profile data.
type menu struct {
	tray *Tray

	mu       sync.Mutex
	revision uint32
}

func (m *menu) build() layoutNode {
	status := m.tray.ctl.Status()

	items := make([]layoutNode, 0, len(status.Profiles)+5)

	toggleState := int32(0)
	if status.Enabled {
		toggleState = 1
	}
	items = append(items, layoutNode{
		ID: menuToggleID,
		Properties: map[string]dbus.Variant{
			"label":        dbus.MakeVariant("Filter enabled"),
			"toggle-type":  dbus.MakeVariant("checkmark"),
			"toggle-state": dbus.MakeVariant(toggleState),
		},
	})

	if status.Degraded {
		items = append(items, layoutNode{
			ID: menuDegradedID,
			Properties: map[string]dbus.Variant{
				"label":   dbus.MakeVariant("Display unavailable, retrying"),
				"enabled": dbus.MakeVariant(false),
			},
		})
	}

	items = append(items, separator(-1))
	for i, p := range status.Profiles {
		state := int32(0)
		if p.ID == status.ActiveProfile.ID {
			state = 1
		}
		items = append(items, layoutNode{
			ID: menuProfileBase + int32(i),
			Properties: map[string]dbus.Variant{
				"label":        dbus.MakeVariant(p.DisplayName),
				"toggle-type":  dbus.MakeVariant("radio"),
				"toggle-state": dbus.MakeVariant(state),
			},
		})
	}
	items = append(items, separator(-2), layoutNode{
		ID: menuQuitID,
		Properties: map[string]dbus.Variant{
			"label": dbus.MakeVariant("Quit"),
		},
	})

	children := make([]dbus.Variant, len(items))
	for i, item := range items {
		children[i] = dbus.MakeVariant(item)
	}
	return layoutNode{
		ID: menuRootID,
		Properties: map[string]dbus.Variant{
			"children-display": dbus.MakeVariant("submenu"),
		},
		Children: children,
	}
}

func separator(id int32) layoutNode {
	return layoutNode{
		ID:         id,
		Properties: map[string]dbus.Variant{"type": dbus.MakeVariant("separator")},
	}
}

// bump invalidates the host's cached layout.
func (m *menu) bump() {
	m.mu.Lock()
	m.revision++
	rev := m.revision
	m.mu.Unlock()
	if err := m.tray.conn.Emit(menuPath, menuIface+".LayoutUpdated", rev, menuRootID); err != nil {
		m.tray.logger.Warn("tray: emit LayoutUpdated", "error", err)
	}
}

func (m *menu) GetLayout(parentID int32, recursionDepth int32, propertyNames []string) (uint32, layoutNode, *dbus.Error) {
	m.mu.Lock()
	rev := m.revision
	m.mu.Unlock()

	root := m.build()
	if parentID == menuRootID {
		return rev, root, nil
	}
	if node, ok := findNode(root, parentID); ok {
		return rev, node, nil
	}
	return rev, layoutNode{ID: parentID, Properties: map[string]dbus.Variant{}}, nil
}

func findNode(node layoutNode, id int32) (layoutNode, bool) {
	if node.ID == id {
		return node, true
	}
	for _, child := range node.Children {
		if c, ok := child.Value().(layoutNode); ok {
			if found, ok := findNode(c, id); ok {
				return found, true
			}
		}
	}
	return layoutNode{}, false
}

func (m *menu) GetGroupProperties(ids []int32, propertyNames []string) ([]groupProperty, *dbus.Error) {
	root := m.build()
	out := make([]groupProperty, 0, len(ids))
	for _, id := range ids {
		if node, ok := findNode(root, id); ok {
			out = append(out, groupProperty{ID: id, Properties: node.Properties})
		}
	}
	return out, nil
}

func (m *menu) GetProperty(id int32, name string) (dbus.Variant, *dbus.Error) {
	if node, ok := findNode(m.build(), id); ok {
		if v, ok := node.Properties[name]; ok {
			return v, nil
		}
	}
	return dbus.MakeVariant(""), nil
}

func (m *menu) Event(id int32, eventID string, data dbus.Variant, timestamp uint32) *dbus.Error {
	if eventID != "clicked" {
		return nil
	}
	m.activate(id)
	return nil
}

func (m *menu) EventGroup(events []menuEvent) ([]int32, *dbus.Error) {
	for _, ev := range events {
		if ev.EventID == "clicked" {
			m.activate(ev.ID)
		}
	}
	return nil, nil
}

func (m *menu) activate(id int32) {
	switch {
	case id == menuToggleID:
		m.tray.ctl.Toggle()
	case id == menuQuitID:
		m.tray.logger.Info("quit requested from tray")
		m.tray.quit()
		return
	case id >= menuProfileBase:
		profiles := m.tray.ctl.Status().Profiles
		if i := int(id - menuProfileBase); i < len(profiles) {
			if err := m.tray.ctl.SetProfile(profiles[i].ID); err != nil {
				m.tray.logger.Warn("tray: set profile", "error", err)
			}
		}
	}
	m.tray.refresh()
}

func (m *menu) AboutToShow(id int32) (bool, *dbus.Error) {
	return false, nil
}

func (m *menu) AboutToShowGroup(ids []int32) ([]int32, []int32, *dbus.Error) {
	return nil, nil, nil
}
