// Package prefs provides typed accessors for the small set of UI
// preference keys stored alongside document data. Values are validated on
// read; unknown or missing values fall back to defaults so a corrupted
// preference never breaks the UI.
package prefs

import (
	"go.uber.org/zap"

	"github.com/notionmini/gonote/internal/store"
)

// Storage keys.
const (
	EditorWidthKey    = "editor-width"
	AutoSaveKey       = "editor-autoSave"
	SidebarOpenKey    = "sidebar-open"
	PropertiesOpenKey = "properties-panel-open"
	EdgeStyleKey      = "edge-style"
)

// EditorWidth is the editor column width setting.
type EditorWidth string

const (
	WidthNarrow EditorWidth = "narrow"
	WidthMedium EditorWidth = "medium"
	WidthWide   EditorWidth = "wide"
	WidthFull   EditorWidth = "full"
)

// EdgeStyle is the canvas edge rendering style.
type EdgeStyle string

const (
	EdgeSmoothstep EdgeStyle = "smoothstep"
	EdgeStraight   EdgeStyle = "straight"
	EdgeStep       EdgeStyle = "step"
	EdgeBezier     EdgeStyle = "bezier"
)

// Prefs reads and writes preference keys on a backing store.
type Prefs struct {
	store store.Store
	log   *zap.Logger
}

// New returns a Prefs over s. Pass a nil logger to disable logging.
func New(s store.Store, log *zap.Logger) *Prefs {
	if log == nil {
		log = zap.NewNop()
	}
	return &Prefs{store: s, log: log}
}

// EditorWidth returns the stored width, or WidthMedium when unset or
// invalid.
func (p *Prefs) EditorWidth() EditorWidth {
	v, ok := p.store.Get(EditorWidthKey)
	if !ok {
		return WidthMedium
	}
	switch w := EditorWidth(v); w {
	case WidthNarrow, WidthMedium, WidthWide, WidthFull:
		return w
	}
	p.log.Debug("ignoring invalid editor width", zap.String("value", v))
	return WidthMedium
}

// SetEditorWidth persists w. Invalid values are ignored.
func (p *Prefs) SetEditorWidth(w EditorWidth) error {
	switch w {
	case WidthNarrow, WidthMedium, WidthWide, WidthFull:
		return p.store.Set(EditorWidthKey, string(w))
	}
	p.log.Debug("refusing to store invalid editor width", zap.String("value", string(w)))
	return nil
}

// AutoSave reports whether autosave is enabled. Defaults to true.
func (p *Prefs) AutoSave() bool {
	return p.boolPref(AutoSaveKey, true)
}

// SetAutoSave persists the autosave toggle.
func (p *Prefs) SetAutoSave(on bool) error {
	return p.setBool(AutoSaveKey, on)
}

// SidebarOpen reports whether the sidebar is open. Defaults to true.
func (p *Prefs) SidebarOpen() bool {
	return p.boolPref(SidebarOpenKey, true)
}

// SetSidebarOpen persists the sidebar toggle.
func (p *Prefs) SetSidebarOpen(open bool) error {
	return p.setBool(SidebarOpenKey, open)
}

// PropertiesOpen reports whether the properties panel is open. Defaults to
// false.
func (p *Prefs) PropertiesOpen() bool {
	return p.boolPref(PropertiesOpenKey, false)
}

// SetPropertiesOpen persists the properties panel toggle.
func (p *Prefs) SetPropertiesOpen(open bool) error {
	return p.setBool(PropertiesOpenKey, open)
}

// EdgeStyle returns the stored canvas edge style, or EdgeSmoothstep when
// unset or invalid.
func (p *Prefs) EdgeStyle() EdgeStyle {
	v, ok := p.store.Get(EdgeStyleKey)
	if !ok {
		return EdgeSmoothstep
	}
	switch s := EdgeStyle(v); s {
	case EdgeSmoothstep, EdgeStraight, EdgeStep, EdgeBezier:
		return s
	}
	p.log.Debug("ignoring invalid edge style", zap.String("value", v))
	return EdgeSmoothstep
}

// SetEdgeStyle persists s. Invalid values are ignored.
func (p *Prefs) SetEdgeStyle(s EdgeStyle) error {
	switch s {
	case EdgeSmoothstep, EdgeStraight, EdgeStep, EdgeBezier:
		return p.store.Set(EdgeStyleKey, string(s))
	}
	p.log.Debug("refusing to store invalid edge style", zap.String("value", string(s)))
	return nil
}

// OnChange subscribes fn to external changes of any preference key. The
// returned cancel function removes the subscription. Returns a no-op cancel
// when the store does not support notifications.
func (p *Prefs) OnChange(fn func(key string)) (cancel func()) {
	n, ok := p.store.(store.Notifier)
	if !ok {
		return func() {}
	}
	return n.Subscribe(func(key string) {
		switch key {
		case EditorWidthKey, AutoSaveKey, SidebarOpenKey, PropertiesOpenKey, EdgeStyleKey:
			fn(key)
		}
	})
}

func (p *Prefs) boolPref(key string, def bool) bool {
	v, ok := p.store.Get(key)
	if !ok {
		return def
	}
	// Stored as "true"/"false"; anything else falls back.
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	p.log.Debug("ignoring invalid boolean preference", zap.String("key", key), zap.String("value", v))
	return def
}

func (p *Prefs) setBool(key string, v bool) error {
	if v {
		return p.store.Set(key, "true")
	}
	return p.store.Set(key, "false")
}
