package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notionmini/gonote/internal/store"
)

var (
	// ErrNotFound reports an id with no catalog entry.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidPayload reports content that failed shape validation.
	// The write is rejected and prior content is left intact.
	ErrInvalidPayload = errors.New("invalid content payload")

	// ErrWriteNotVerified reports a write whose read-back did not match,
	// e.g. the backing store hit its quota.
	ErrWriteNotVerified = errors.New("content write could not be verified")
)

// Registry is the single authority for the document catalog, the current
// document pointer and per-document content records. Thread-safe.
type Registry struct {
	mu    sync.RWMutex
	store store.Store
	log   *zap.Logger

	docs      []Document
	currentID string

	now func() time.Time
}

// New creates a Registry over the given store. A nil logger disables
// diagnostics. Call LoadAll before using the catalog.
func New(s store.Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		store: s,
		log:   log,
		now:   time.Now,
	}
}

// LoadAll reads the catalog and current pointer, performing the one-time
// legacy migration or seeding the default document when the catalog is
// absent, and repairing a dangling current pointer. Returns the loaded
// snapshot.
func (r *Registry) LoadAll() ([]Document, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return nil, "", err
	}
	return r.snapshotLocked(), r.currentID, nil
}

func (r *Registry) loadLocked() error {
	raw, ok := r.store.Get(DocumentsListKey)
	if ok {
		var docs []Document
		if err := json.Unmarshal([]byte(raw), &docs); err != nil {
			r.log.Warn("catalog unreadable, reseeding", zap.Error(err))
			ok = false
		} else {
			r.docs = docs
		}
	}

	if !ok {
		if legacy, exists := r.store.Get(LegacyContentKey); exists && json.Valid([]byte(legacy)) {
			if err := r.migrateLegacyLocked(legacy); err != nil {
				return err
			}
		} else if err := r.seedWelcomeLocked(); err != nil {
			return err
		}
	}

	current, _ := r.store.Get(CurrentDocumentKey)
	if current != "" && !r.hasLocked(current) {
		r.log.Warn("current pointer references missing document", zap.String("id", current))
		current = ""
	}
	if current == "" && len(r.docs) > 0 {
		current = r.docs[0].ID
		if err := r.store.Set(CurrentDocumentKey, current); err != nil {
			return fmt.Errorf("persist current pointer: %w", err)
		}
	}
	r.currentID = current
	return nil
}

// migrateLegacyLocked wraps the pre-catalog single-document content in a
// fresh catalog and removes the legacy key.
func (r *Registry) migrateLegacyLocked(content string) error {
	now := r.now()
	doc := Document{
		ID:        fmt.Sprintf("doc-%d-migrated", now.UnixMilli()),
		Title:     "Migrated Document",
		Type:      TypeNote,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.docs = []Document{doc}
	if err := r.saveListLocked(); err != nil {
		return err
	}
	if err := r.store.Set(DocumentPrefix+doc.ID, content); err != nil {
		return fmt.Errorf("migrate legacy content: %w", err)
	}
	if err := r.store.Set(CurrentDocumentKey, doc.ID); err != nil {
		return fmt.Errorf("persist current pointer: %w", err)
	}
	r.store.Remove(LegacyContentKey)
	r.currentID = doc.ID

	r.log.Info("migrated legacy single-document storage", zap.String("id", doc.ID))
	return nil
}

// seedWelcomeLocked creates the default document for an empty store.
func (r *Registry) seedWelcomeLocked() error {
	now := r.now()
	doc := Document{
		ID:        fmt.Sprintf("doc-%d-default", now.UnixMilli()),
		Title:     welcomeTitle,
		Type:      TypeNote,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.docs = []Document{doc}
	if err := r.saveListLocked(); err != nil {
		return err
	}
	if err := r.store.Set(DocumentPrefix+doc.ID, welcomeContent); err != nil {
		return fmt.Errorf("seed welcome content: %w", err)
	}
	if err := r.store.Set(CurrentDocumentKey, doc.ID); err != nil {
		return fmt.Errorf("persist current pointer: %w", err)
	}
	r.currentID = doc.ID
	return nil
}

// Documents returns a copy of the catalog in order.
func (r *Registry) Documents() []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Get returns the catalog entry for id.
func (r *Registry) Get(id string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.docs {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// CurrentID returns the current document pointer, or "" when no document
// is selected.
func (r *Registry) CurrentID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentID
}

// SetCurrent moves the current pointer to an existing document and
// persists it.
func (r *Registry) SetCurrent(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasLocked(id) {
		return fmt.Errorf("switch to %s: %w", id, ErrNotFound)
	}
	if err := r.store.Set(CurrentDocumentKey, id); err != nil {
		return fmt.Errorf("persist current pointer: %w", err)
	}
	r.currentID = id
	return nil
}

// Create allocates a new document of the given type, writes its blank
// content record, makes it current and persists catalog and pointer.
func (r *Registry) Create(t Type) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	doc := Document{
		ID:        r.newIDLocked(now),
		Title:     "Untitled",
		Type:      t,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.docs = append(r.docs, doc)
	if err := r.saveListLocked(); err != nil {
		return Document{}, err
	}
	if err := r.store.Set(DocumentPrefix+doc.ID, EmptyContent(t)); err != nil {
		return Document{}, fmt.Errorf("write blank content: %w", err)
	}
	if err := r.store.Set(CurrentDocumentKey, doc.ID); err != nil {
		return Document{}, fmt.Errorf("persist current pointer: %w", err)
	}
	r.currentID = doc.ID
	return doc, nil
}

// Rename updates a document's title. A title that trims to empty is a
// no-op, leaving the previous title in place.
func (r *Registry) Rename(id, newTitle string) error {
	if strings.TrimSpace(newTitle) == "" {
		r.log.Debug("ignoring empty rename", zap.String("id", id))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.docs {
		if r.docs[i].ID == id {
			r.docs[i].Title = newTitle
			r.docs[i].UpdatedAt = r.now()
			return r.saveListLocked()
		}
	}
	return fmt.Errorf("rename %s: %w", id, ErrNotFound)
}

// Delete removes a document and its content record. When the deleted
// document was current, the pointer moves to the first remaining entry, or
// to none when the catalog empties.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.docs {
		if r.docs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	r.docs = append(r.docs[:idx], r.docs[idx+1:]...)
	if err := r.saveListLocked(); err != nil {
		return err
	}
	r.store.Remove(DocumentPrefix + id)

	if r.currentID == id {
		if len(r.docs) > 0 {
			r.currentID = r.docs[0].ID
			if err := r.store.Set(CurrentDocumentKey, r.currentID); err != nil {
				return fmt.Errorf("persist current pointer: %w", err)
			}
		} else {
			r.currentID = ""
			r.store.Remove(CurrentDocumentKey)
		}
	}
	return nil
}

// Duplicate clones a document's metadata under a fresh id and copies its
// content record byte for byte. The clone becomes current.
func (r *Registry) Duplicate(id string) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.getLocked(id)
	if !ok {
		return Document{}, fmt.Errorf("duplicate %s: %w", id, ErrNotFound)
	}

	content, ok := r.store.Get(DocumentPrefix + id)
	if !ok {
		content = EmptyContent(src.Type)
	}

	now := r.now()
	clone := Document{
		ID:        r.newIDLocked(now),
		Title:     src.Title + " (Copy)",
		Type:      src.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.docs = append(r.docs, clone)
	if err := r.saveListLocked(); err != nil {
		return Document{}, err
	}
	if err := r.store.Set(DocumentPrefix+clone.ID, content); err != nil {
		return Document{}, fmt.Errorf("copy content: %w", err)
	}
	if err := r.store.Set(CurrentDocumentKey, clone.ID); err != nil {
		return Document{}, fmt.Errorf("persist current pointer: %w", err)
	}
	r.currentID = clone.ID
	return clone, nil
}

// GetContent returns the raw content record for id. The bool distinguishes
// "no content yet" from empty content.
func (r *Registry) GetContent(id string) (string, bool) {
	return r.store.Get(DocumentPrefix + id)
}

// SetContent validates and writes a content record, verifies the write by
// reading it back, then refreshes the owning document's UpdatedAt.
// Rejected writes leave prior content intact.
func (r *Registry) SetContent(id, content string) error {
	if id == "" || content == "" {
		r.log.Warn("ignoring content write with missing id or content", zap.String("id", id))
		return ErrInvalidPayload
	}
	if err := ValidatePayload(content); err != nil {
		r.log.Warn("rejecting invalid content payload", zap.String("id", id), zap.Error(err))
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := DocumentPrefix + id
	if err := r.store.Set(key, content); err != nil {
		r.log.Error("content write failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("write content: %w", err)
	}
	if saved, ok := r.store.Get(key); !ok || saved != content {
		r.log.Error("content write did not verify", zap.String("id", id))
		return ErrWriteNotVerified
	}

	for i := range r.docs {
		if r.docs[i].ID == id {
			r.docs[i].UpdatedAt = r.now()
			if err := r.saveListLocked(); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// OnExternalChange registers fn to run after the catalog or current pointer
// is rewritten by another handle on the same storage (another tab). The
// registry re-reads its state before invoking fn. Returns a no-op cancel
// when the store cannot observe external writes.
func (r *Registry) OnExternalChange(fn func()) (cancel func()) {
	n, ok := r.store.(store.Notifier)
	if !ok {
		return func() {}
	}
	return n.Subscribe(func(key string) {
		if key != DocumentsListKey && key != CurrentDocumentKey {
			return
		}
		r.mu.Lock()
		if err := r.loadLocked(); err != nil {
			r.log.Warn("reload after external change failed", zap.Error(err))
		}
		r.mu.Unlock()
		fn()
	})
}

// ValidatePayload checks that content parses as JSON and has one of the
// recognized top-level shapes: a block array (note), an object with nodes
// and edges (canvas), or an object with columns and rows (database).
func ValidatePayload(content string) error {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch v := parsed.(type) {
	case []any:
		return nil
	case map[string]any:
		if _, ok := v["nodes"]; ok {
			if _, ok := v["edges"]; ok {
				return nil
			}
		}
		if _, ok := v["columns"]; ok {
			if _, ok := v["rows"]; ok {
				return nil
			}
		}
		return fmt.Errorf("%w: object is neither a canvas nor a database payload", ErrInvalidPayload)
	default:
		return fmt.Errorf("%w: top-level value must be an array or object", ErrInvalidPayload)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// newIDLocked allocates a fresh unique id. The timestamp plus random suffix
// makes collisions unlikely even under rapid repeated calls; the catalog
// check closes the remaining window.
func (r *Registry) newIDLocked(now time.Time) string {
	for {
		id := fmt.Sprintf("doc-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
		if !r.hasLocked(id) {
			return id
		}
	}
}

func (r *Registry) hasLocked(id string) bool {
	_, ok := r.getLocked(id)
	return ok
}

func (r *Registry) getLocked(id string) (Document, bool) {
	for _, d := range r.docs {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

func (r *Registry) snapshotLocked() []Document {
	out := make([]Document, len(r.docs))
	copy(out, r.docs)
	return out
}

func (r *Registry) saveListLocked() error {
	data, err := json.Marshal(r.docs)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := r.store.Set(DocumentsListKey, string(data)); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}
	return nil
}
