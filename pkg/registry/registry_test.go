package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notionmini/gonote/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	r := New(s, nil)
	if _, _, err := r.LoadAll(); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	return r, s
}

func TestLoadAllSeedsWelcome(t *testing.T) {
	r, s := newTestRegistry(t)

	docs := r.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "Welcome", docs[0].Title)
	assert.Equal(t, TypeNote, docs[0].Type)
	assert.Equal(t, docs[0].ID, r.CurrentID())

	content, ok := s.Get(DocumentPrefix + docs[0].ID)
	require.True(t, ok)
	var bs []any
	require.NoError(t, json.Unmarshal([]byte(content), &bs), "welcome content must be a block array")
}

func TestLoadAllMigratesLegacyContent(t *testing.T) {
	s := store.NewMemoryStore()
	legacy := `[{"type":"paragraph","content":"old note"}]`
	s.Set(LegacyContentKey, legacy)

	r := New(s, nil)
	docs, currentID, err := r.LoadAll()
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, TypeNote, docs[0].Type)
	assert.Equal(t, "Migrated Document", docs[0].Title)
	assert.Equal(t, docs[0].ID, currentID)

	content, ok := r.GetContent(docs[0].ID)
	require.True(t, ok)
	assert.Equal(t, legacy, content)

	if _, ok := s.Get(LegacyContentKey); ok {
		t.Error("legacy key should be removed after migration")
	}
}

func TestLoadAllRepairsDanglingCurrentPointer(t *testing.T) {
	s := store.NewMemoryStore()
	docs := []Document{{ID: "a", Title: "A", Type: TypeNote}, {ID: "b", Title: "B", Type: TypeNote}}
	data, _ := json.Marshal(docs)
	s.Set(DocumentsListKey, string(data))
	s.Set(CurrentDocumentKey, "gone")

	r := New(s, nil)
	_, currentID, err := r.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, "a", currentID)

	persisted, _ := s.Get(CurrentDocumentKey)
	assert.Equal(t, "a", persisted)
}

func TestLoadAllMapsLegacyDocumentType(t *testing.T) {
	s := store.NewMemoryStore()
	s.Set(DocumentsListKey, `[{"id":"a","title":"Old","type":"document"}]`)

	r := New(s, nil)
	docs, _, err := r.LoadAll()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, TypeNote, docs[0].Type)
}

func TestCreateAppendsAndSwitches(t *testing.T) {
	r, _ := newTestRegistry(t)

	doc, err := r.Create(TypeCanvas)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, r.CurrentID(), "create always switches focus")
	assert.Equal(t, TypeCanvas, doc.Type)

	content, ok := r.GetContent(doc.ID)
	require.True(t, ok)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, content)

	docs := r.Documents()
	assert.Equal(t, doc.ID, docs[len(docs)-1].ID, "new documents append to the catalog")
}

func TestCreateGeneratesUniqueIDs(t *testing.T) {
	r, _ := newTestRegistry(t)
	// Freeze the clock so every id shares the same millisecond.
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		doc, err := r.Create(TypeNote)
		require.NoError(t, err)
		if seen[doc.ID] {
			t.Fatalf("duplicate id generated: %s", doc.ID)
		}
		seen[doc.ID] = true
	}
}

func TestRename(t *testing.T) {
	r, _ := newTestRegistry(t)
	doc, _ := r.Create(TypeNote)

	require.NoError(t, r.Rename(doc.ID, "My Notes"))
	got, _ := r.Get(doc.ID)
	assert.Equal(t, "My Notes", got.Title)

	// Blank titles are a no-op, previous title stays
	require.NoError(t, r.Rename(doc.ID, "   "))
	got, _ = r.Get(doc.ID)
	assert.Equal(t, "My Notes", got.Title)

	assert.ErrorIs(t, r.Rename("missing", "X"), ErrNotFound)
}

func TestDeleteReassignsCurrent(t *testing.T) {
	r, _ := newTestRegistry(t)
	welcome := r.Documents()[0]
	a, _ := r.Create(TypeNote)
	b, _ := r.Create(TypeNote)
	require.NoError(t, r.SetCurrent(a.ID))

	require.NoError(t, r.Delete(a.ID))

	assert.Equal(t, welcome.ID, r.CurrentID(), "current moves to first remaining entry")
	if _, ok := r.GetContent(a.ID); ok {
		t.Error("deleted document's content record should be gone")
	}
	if _, ok := r.Get(b.ID); !ok {
		t.Error("unrelated document lost")
	}
}

func TestDeleteLastDocumentClearsCurrent(t *testing.T) {
	r, s := newTestRegistry(t)
	welcome := r.Documents()[0]

	require.NoError(t, r.Delete(welcome.ID))
	assert.Equal(t, "", r.CurrentID())
	if _, ok := s.Get(CurrentDocumentKey); ok {
		t.Error("current pointer key should be removed when catalog empties")
	}
}

func TestDuplicateCopiesContentVerbatim(t *testing.T) {
	r, _ := newTestRegistry(t)
	doc, _ := r.Create(TypeNote)
	content := `[{"type":"paragraph","content":"exact bytes"}]`
	require.NoError(t, r.SetContent(doc.ID, content))

	clone, err := r.Duplicate(doc.ID)
	require.NoError(t, err)

	assert.NotEqual(t, doc.ID, clone.ID)
	assert.Equal(t, "Untitled (Copy)", clone.Title)
	assert.Equal(t, doc.Type, clone.Type)
	assert.Equal(t, clone.ID, r.CurrentID())

	got, ok := r.GetContent(clone.ID)
	require.True(t, ok)
	assert.Equal(t, content, got, "content copies byte for byte")
}

func TestContentRoundTrip(t *testing.T) {
	r, _ := newTestRegistry(t)
	doc, _ := r.Create(TypeNote)

	content := `[{"content":"hello","type":"paragraph"}]`
	require.NoError(t, r.SetContent(doc.ID, content))

	got, ok := r.GetContent(doc.ID)
	require.True(t, ok)
	assert.Equal(t, content, got, "stored content must be byte-identical")
}

func TestSetContentRejectsInvalidPayloads(t *testing.T) {
	r, _ := newTestRegistry(t)
	doc, _ := r.Create(TypeNote)
	require.NoError(t, r.SetContent(doc.ID, `["ok"]`))

	for _, bad := range []string{
		"{not json",
		`"just a string"`,
		`42`,
		`{"nodes":[]}`,   // canvas payload missing edges
		`{"columns":[]}`, // database payload missing rows
	} {
		err := r.SetContent(doc.ID, bad)
		assert.ErrorIs(t, err, ErrInvalidPayload, "payload %q", bad)
	}

	// Prior content untouched after rejections
	got, _ := r.GetContent(doc.ID)
	assert.Equal(t, `["ok"]`, got)
}

func TestSetContentAcceptsAllDocumentShapes(t *testing.T) {
	r, _ := newTestRegistry(t)
	doc, _ := r.Create(TypeNote)

	for _, good := range []string{
		`[]`,
		`[{"type":"paragraph","content":"x"}]`,
		`{"nodes":[],"edges":[]}`,
		`{"columns":[{"id":"c1","name":"Name","type":"text"}],"rows":[]}`,
	} {
		assert.NoError(t, r.SetContent(doc.ID, good), "payload %q", good)
	}
}

func TestSetContentRefreshesUpdatedAt(t *testing.T) {
	r, _ := newTestRegistry(t)
	doc, _ := r.Create(TypeNote)

	later := doc.UpdatedAt.Add(time.Minute)
	r.now = func() time.Time { return later }

	require.NoError(t, r.SetContent(doc.ID, `[]`))
	got, _ := r.Get(doc.ID)
	assert.True(t, got.UpdatedAt.After(doc.UpdatedAt))
}

// verifyFailStore accepts writes to content keys but drops them, simulating
// a quota-exhausted backing store.
type verifyFailStore struct {
	*store.MemoryStore
	failPrefix string
}

func (s *verifyFailStore) Set(key, value string) error {
	if s.failPrefix != "" && len(key) >= len(s.failPrefix) && key[:len(s.failPrefix)] == s.failPrefix {
		return nil // silently dropped
	}
	return s.MemoryStore.Set(key, value)
}

func TestSetContentDetectsUnverifiedWrite(t *testing.T) {
	base := store.NewMemoryStore()
	r := New(base, nil)
	_, _, err := r.LoadAll()
	require.NoError(t, err)
	doc, _ := r.Create(TypeNote)

	failing := &verifyFailStore{MemoryStore: base, failPrefix: DocumentPrefix + doc.ID}
	r.store = failing

	err = r.SetContent(doc.ID, `["lost"]`)
	assert.ErrorIs(t, err, ErrWriteNotVerified)
}

func TestOnExternalChangeReloads(t *testing.T) {
	r, s := newTestRegistry(t)

	// Another tab rewrites the catalog behind our back.
	s.Set(DocumentsListKey, `[{"id":"ext","title":"From other tab","type":"note"}]`)
	s.Set(CurrentDocumentKey, "ext")

	called := 0
	cancel := r.OnExternalChange(func() { called++ })
	defer cancel()

	s.EmitExternal(DocumentsListKey)

	require.Equal(t, 1, called)
	docs := r.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "ext", docs[0].ID)
	assert.Equal(t, "ext", r.CurrentID())

	// Unrelated keys do not trigger a reload
	s.EmitExternal("editor-width")
	assert.Equal(t, 1, called)
}
