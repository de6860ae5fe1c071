// Package switcher coordinates transitions between documents so edits are
// never silently lost and loads never show stale or foreign content. It sits
// between the UI collaborator and the registry: change notifications buffer
// here, and on every switch the outgoing document is flushed strictly before
// the incoming one is loaded.
package switcher

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/notionmini/gonote/pkg/registry"
)

// Collaborator is the UI surface bound to one document at a time. Bind
// (re)mounts the surface; ok=false means a blank document of the surface's
// type, as opposed to mounting with empty-string content.
type Collaborator interface {
	Bind(initial string, ok bool)
}

// Extractor is optionally implemented by collaborators that can report
// their live content synchronously. Used as a last resort during flush when
// no pending change was captured (the change debounce had not fired yet).
type Extractor interface {
	ExtractCurrentContent() (string, bool)
}

// State names the controller's position in the switch protocol.
type State int

const (
	// StateIdle: no document bound.
	StateIdle State = iota
	// StateBound: a document is bound and receiving change notifications.
	StateBound
	// StateFlushing: mid-switch, between flushing the outgoing document and
	// binding the incoming one. Change notifications arriving here belong
	// to the outgoing document and are dropped.
	StateFlushing
)

// Controller implements the document switch protocol.
// Not safe for concurrent use: callers drive it from a single event loop,
// matching the browser's cooperative scheduler.
type Controller struct {
	reg *registry.Registry
	log *zap.Logger

	state      State
	boundID    string
	pending    string
	hasPending bool
	autoSave   bool

	collab Collaborator
}

// New creates a controller over the registry. A nil logger disables
// diagnostics. Autosave starts enabled.
func New(reg *registry.Registry, collab Collaborator, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		reg:      reg,
		log:      log,
		collab:   collab,
		state:    StateIdle,
		autoSave: true,
	}
}

// State returns the controller's current protocol state.
func (c *Controller) State() State { return c.state }

// BoundID returns the id of the document the UI is bound to, or "".
func (c *Controller) BoundID() string { return c.boundID }

// SetAutoSave toggles immediate persistence of change notifications.
// Pending-content capture is unaffected; a later switch still flushes.
func (c *Controller) SetAutoSave(enabled bool) { c.autoSave = enabled }

// OnContentChange records a change notification from the collaborator for
// the currently bound document. Notifications with no content, or arriving
// while no document is bound, are ignored.
func (c *Controller) OnContentChange(content string) {
	if content == "" || c.state != StateBound || c.boundID == "" {
		return
	}

	c.pending = content
	c.hasPending = true

	if c.autoSave {
		if err := c.reg.SetContent(c.boundID, content); err != nil {
			c.log.Warn("autosave rejected", zap.String("id", c.boundID), zap.Error(err))
		}
	}
}

// SwitchTo transitions the UI to newID: flush the outgoing document, remount
// the collaborator, load and bind the incoming content. Switching to the
// already-bound document is a no-op, leaving content and timestamps alone.
func (c *Controller) SwitchTo(newID string) {
	if newID == c.boundID && c.state == StateBound {
		return
	}

	c.state = StateFlushing
	c.flush(c.boundID)

	if newID == "" {
		c.boundID = ""
		c.state = StateIdle
		c.collab.Bind("", false)
		return
	}

	initial, ok := c.load(newID)
	c.boundID = newID
	c.state = StateBound
	c.collab.Bind(initial, ok)
}

// Unmount flushes whatever document was last bound and releases it. Called
// on teardown so navigating away never drops the last edit.
func (c *Controller) Unmount() {
	c.state = StateFlushing
	c.flush(c.boundID)
	c.boundID = ""
	c.hasPending = false
	c.pending = ""
	c.state = StateIdle
}

// flush persists the outgoing document's latest content: the pending
// notification if one was captured, otherwise a best-effort synchronous
// extraction from the collaborator.
func (c *Controller) flush(oldID string) {
	if oldID == "" {
		c.hasPending = false
		c.pending = ""
		return
	}

	if c.hasPending {
		if err := c.reg.SetContent(oldID, c.pending); err != nil {
			c.log.Warn("flush of pending content rejected", zap.String("id", oldID), zap.Error(err))
		}
		c.hasPending = false
		c.pending = ""
		return
	}

	if ex, ok := c.collab.(Extractor); ok {
		if content, ok := ex.ExtractCurrentContent(); ok {
			if err := c.reg.SetContent(oldID, content); err != nil {
				c.log.Warn("flush of extracted content rejected", zap.String("id", oldID), zap.Error(err))
			}
		}
	}
}

// load reads and validates newID's stored content. Returns ok=false for a
// blank bind (absent or invalid content). A canvas document stored in the
// old array-wrapped convention is unwrapped and rewritten in place before
// being returned, so subsequent loads see the corrected shape.
func (c *Controller) load(newID string) (string, bool) {
	content, ok := c.reg.GetContent(newID)
	if !ok {
		return "", false
	}

	if unwrapped, ok := unwrapLegacyCanvas(content); ok {
		c.log.Info("unwrapped legacy canvas content", zap.String("id", newID))
		if err := c.reg.SetContent(newID, unwrapped); err != nil {
			c.log.Warn("rewrite of unwrapped canvas failed", zap.String("id", newID), zap.Error(err))
		}
		return unwrapped, true
	}

	if err := registry.ValidatePayload(content); err != nil {
		c.log.Warn("stored content failed validation, binding blank", zap.String("id", newID), zap.Error(err))
		return "", false
	}
	return content, true
}

// unwrapLegacyCanvas detects the older storage convention where a canvas
// payload was wrapped in a single-element array, and returns the inner
// object re-serialized.
func unwrapLegacyCanvas(content string) (string, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(content), &arr); err != nil || len(arr) != 1 {
		return "", false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(arr[0], &obj); err != nil {
		return "", false
	}
	if _, ok := obj["nodes"]; !ok {
		return "", false
	}
	if _, ok := obj["edges"]; !ok {
		return "", false
	}
	return string(arr[0]), true
}
