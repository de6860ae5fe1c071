package prefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notionmini/gonote/internal/store"
)

func TestEditorWidthDefaultsToMedium(t *testing.T) {
	p := New(store.NewMemoryStore(), nil)
	assert.Equal(t, WidthMedium, p.EditorWidth())
}

func TestEditorWidthRoundTrip(t *testing.T) {
	p := New(store.NewMemoryStore(), nil)
	require.NoError(t, p.SetEditorWidth(WidthFull))
	assert.Equal(t, WidthFull, p.EditorWidth())
}

func TestEditorWidthIgnoresInvalidStoredValue(t *testing.T) {
	s := store.NewMemoryStore()
	s.Set(EditorWidthKey, "gigantic")
	p := New(s, nil)
	assert.Equal(t, WidthMedium, p.EditorWidth())
}

func TestSetEditorWidthRefusesInvalidValue(t *testing.T) {
	s := store.NewMemoryStore()
	p := New(s, nil)
	require.NoError(t, p.SetEditorWidth("gigantic"))
	_, ok := s.Get(EditorWidthKey)
	assert.False(t, ok, "invalid width must not be written")
}

func TestBooleanPreferences(t *testing.T) {
	p := New(store.NewMemoryStore(), nil)

	assert.True(t, p.AutoSave(), "autosave defaults on")
	assert.True(t, p.SidebarOpen(), "sidebar defaults open")
	assert.False(t, p.PropertiesOpen(), "properties panel defaults closed")

	require.NoError(t, p.SetAutoSave(false))
	require.NoError(t, p.SetSidebarOpen(false))
	require.NoError(t, p.SetPropertiesOpen(true))

	assert.False(t, p.AutoSave())
	assert.False(t, p.SidebarOpen())
	assert.True(t, p.PropertiesOpen())
}

func TestBooleanPreferenceIgnoresGarbage(t *testing.T) {
	s := store.NewMemoryStore()
	s.Set(AutoSaveKey, "maybe")
	p := New(s, nil)
	assert.True(t, p.AutoSave(), "garbage falls back to the default")
}

func TestEdgeStyle(t *testing.T) {
	s := store.NewMemoryStore()
	p := New(s, nil)

	assert.Equal(t, EdgeSmoothstep, p.EdgeStyle())

	require.NoError(t, p.SetEdgeStyle(EdgeBezier))
	assert.Equal(t, EdgeBezier, p.EdgeStyle())

	s.Set(EdgeStyleKey, "zigzag")
	assert.Equal(t, EdgeSmoothstep, p.EdgeStyle())
}

func TestOnChangeFiltersPreferenceKeys(t *testing.T) {
	s := store.NewMemoryStore()
	p := New(s, nil)

	var seen []string
	cancel := p.OnChange(func(key string) { seen = append(seen, key) })
	defer cancel()

	s.EmitExternal(EditorWidthKey)
	s.EmitExternal("documents-list")
	s.EmitExternal(EdgeStyleKey)

	assert.Equal(t, []string{EditorWidthKey, EdgeStyleKey}, seen)
}
