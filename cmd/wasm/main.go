//go:build js && wasm

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"syscall/js"

	"go.uber.org/zap"

	"github.com/notionmini/gonote/internal/store"
	"github.com/notionmini/gonote/pkg/convert"
	"github.com/notionmini/gonote/pkg/prefs"
	"github.com/notionmini/gonote/pkg/registry"
	"github.com/notionmini/gonote/pkg/search"
	"github.com/notionmini/gonote/pkg/share"
	"github.com/notionmini/gonote/pkg/switcher"
)

// Version info
const Version = "1.0.0"

// Global state
var (
	logger     *zap.Logger
	kv         *localStorageStore
	reg        *registry.Registry
	controller *switcher.Controller
	collab     *jsCollaborator
	searcher   *search.Searcher
	settings   *prefs.Prefs
	encoder    *share.Encoder
)

func main() {
	logger, _ = zap.NewDevelopment()
	if logger == nil {
		logger = zap.NewNop()
	}

	kv = newLocalStorageStore()
	reg = registry.New(kv, logger)
	collab = &jsCollaborator{}
	controller = switcher.New(reg, collab, logger)
	searcher = search.NewSearcher(reg, logger)
	settings = prefs.New(kv, logger)
	encoder = share.NewEncoder(js.Global().Get("location").Get("origin").String(), logger)

	fmt.Println("[GoNote] WASM Ready v" + Version)

	js.Global().Set("GoNote", js.ValueOf(map[string]interface{}{
		"version":    js.FuncOf(getVersion),
		"initialize": js.FuncOf(initialize),
		// Registry API
		"listDocuments":     js.FuncOf(listDocuments),
		"getDocument":       js.FuncOf(getDocument),
		"currentDocumentId": js.FuncOf(currentDocumentID),
		"createDocument":    js.FuncOf(createDocument),
		"renameDocument":    js.FuncOf(renameDocument),
		"deleteDocument":    js.FuncOf(deleteDocument),
		"duplicateDocument": js.FuncOf(duplicateDocument),
		"getContent":        js.FuncOf(getContent),
		"setContent":        js.FuncOf(setContent),
		"onExternalChange":  js.FuncOf(onExternalChange),
		// Switch controller API
		"setCollaborator": js.FuncOf(setCollaborator),
		"switchTo":        js.FuncOf(switchTo),
		"onContentChange": js.FuncOf(onContentChange),
		"unmount":         js.FuncOf(unmount),
		"setAutoSave":     js.FuncOf(setAutoSave),
		// Converter API
		"exportMarkdown": js.FuncOf(exportMarkdown),
		"exportHTML":     js.FuncOf(exportHTML),
		"importMarkdown": js.FuncOf(importMarkdown),
		"importHTML":     js.FuncOf(importHTML),
		"importJSON":     js.FuncOf(importJSON),
		// Share link API
		"shareEncode": js.FuncOf(shareEncode),
		"shareDecode": js.FuncOf(shareDecode),
		"shareQRCode": js.FuncOf(shareQRCode),
		// Search API
		"search": js.FuncOf(searchDocuments),
		// Preferences API
		"getPreferences": js.FuncOf(getPreferences),
		"setPreference":  js.FuncOf(setPreference),
	}))

	select {}
}

// =============================================================================
// localStorage-backed store
// =============================================================================

// localStorageStore adapts window.localStorage to the store interfaces.
// Storage events from other tabs feed Subscribe callbacks.
type localStorageStore struct {
	storage js.Value
	subs    map[int]func(key string)
	nextSub int
}

var _ store.Store = (*localStorageStore)(nil)
var _ store.Notifier = (*localStorageStore)(nil)

func newLocalStorageStore() *localStorageStore {
	s := &localStorageStore{
		storage: js.Global().Get("localStorage"),
		subs:    make(map[int]func(key string)),
	}
	js.Global().Call("addEventListener", "storage", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) == 0 {
			return nil
		}
		key := args[0].Get("key")
		if key.Type() != js.TypeString {
			return nil
		}
		for _, fn := range s.subs {
			fn(key.String())
		}
		return nil
	}))
	return s
}

func (s *localStorageStore) Get(key string) (string, bool) {
	v := s.storage.Call("getItem", key)
	if v.IsNull() {
		return "", false
	}
	return v.String(), true
}

func (s *localStorageStore) Set(key, value string) error {
	// setItem throws on quota exhaustion; surface that as an error so the
	// registry's read-back verification can catch silent failures too.
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("localStorage setItem: %v", r)
			}
		}()
		s.storage.Call("setItem", key, value)
	}()
	return err
}

func (s *localStorageStore) Remove(key string) {
	s.storage.Call("removeItem", key)
}

func (s *localStorageStore) Keys() []string {
	n := s.storage.Get("length").Int()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k := s.storage.Call("key", i)
		if k.Type() == js.TypeString {
			keys = append(keys, k.String())
		}
	}
	return keys
}

func (s *localStorageStore) Subscribe(fn func(key string)) (cancel func()) {
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() { delete(s.subs, id) }
}

// =============================================================================
// JS collaborator bridge
// =============================================================================

// jsCollaborator forwards bind/extract calls to functions the UI registers
// through setCollaborator.
type jsCollaborator struct {
	bind    js.Value
	extract js.Value
}

func (c *jsCollaborator) Bind(initial string, ok bool) {
	if c.bind.Type() != js.TypeFunction {
		return
	}
	if ok {
		c.bind.Invoke(initial)
	} else {
		c.bind.Invoke(js.Null())
	}
}

func (c *jsCollaborator) ExtractCurrentContent() (string, bool) {
	if c.extract.Type() != js.TypeFunction {
		return "", false
	}
	v := c.extract.Invoke()
	if v.Type() != js.TypeString || v.String() == "" {
		return "", false
	}
	return v.String(), true
}

// setCollaborator: [bindFn function, extractFn function (optional)]
func setCollaborator(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("setCollaborator requires 1+ args: bindFn, [extractFn]")
	}
	collab.bind = args[0]
	if len(args) > 1 {
		collab.extract = args[1]
	}
	return successResult("collaborator registered")
}

// =============================================================================
// Lifecycle
// =============================================================================

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// initialize loads the catalog, runs any pending legacy migration, and
// returns the documents plus the current document id.
func initialize(this js.Value, args []js.Value) interface{} {
	docs, currentID, err := reg.LoadAll()
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{
		"documents": docs,
		"currentId": currentID,
	})
}

// =============================================================================
// Registry API
// =============================================================================

func listDocuments(this js.Value, args []js.Value) interface{} {
	return jsonResult(reg.Documents())
}

// getDocument: [id string]
func getDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("getDocument requires 1 arg: id")
	}
	doc, ok := reg.Get(args[0].String())
	if !ok {
		return errorResult("document not found: " + args[0].String())
	}
	return jsonResult(doc)
}

func currentDocumentID(this js.Value, args []js.Value) interface{} {
	return reg.CurrentID()
}

// createDocument: [type string ("note"|"canvas"|"database")]
func createDocument(this js.Value, args []js.Value) interface{} {
	t := registry.TypeNote
	if len(args) > 0 && args[0].String() != "" {
		t = registry.Type(args[0].String())
	}
	doc, err := reg.Create(t)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(doc)
}

// renameDocument: [id string, title string]
func renameDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("renameDocument requires 2 args: id, title")
	}
	if err := reg.Rename(args[0].String(), args[1].String()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("renamed " + args[0].String())
}

// deleteDocument: [id string]
func deleteDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("deleteDocument requires 1 arg: id")
	}
	if err := reg.Delete(args[0].String()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("deleted " + args[0].String())
}

// duplicateDocument: [id string]
func duplicateDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("duplicateDocument requires 1 arg: id")
	}
	doc, err := reg.Duplicate(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(doc)
}

// getContent: [id string]
func getContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("getContent requires 1 arg: id")
	}
	content, ok := reg.GetContent(args[0].String())
	if !ok {
		return js.Null()
	}
	return content
}

// setContent: [id string, contentJSON string]
func setContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("setContent requires 2 args: id, contentJSON")
	}
	if err := reg.SetContent(args[0].String(), args[1].String()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("saved " + args[0].String())
}

// onExternalChange: [callback function]
// Reloads the catalog when another tab writes it, then invokes callback.
func onExternalChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return errorResult("onExternalChange requires 1 arg: callback")
	}
	cb := args[0]
	reg.OnExternalChange(func() {
		cb.Invoke()
	})
	return successResult("subscribed")
}

// =============================================================================
// Switch controller API
// =============================================================================

// switchTo: [id string] - flushes the outgoing document, then binds the new one
func switchTo(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("switchTo requires 1 arg: id")
	}
	id := args[0].String()
	controller.SwitchTo(id)
	if id != "" {
		if err := reg.SetCurrent(id); err != nil {
			return errorResult(err.Error())
		}
	}
	return successResult("switched to " + id)
}

// onContentChange: [serializedPayload string]
func onContentChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("onContentChange requires 1 arg: serializedPayload")
	}
	controller.OnContentChange(args[0].String())
	return successResult("noted")
}

func unmount(this js.Value, args []js.Value) interface{} {
	controller.Unmount()
	return successResult("unmounted")
}

// setAutoSave: [enabled bool]
func setAutoSave(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("setAutoSave requires 1 arg: enabled")
	}
	on := args[0].Truthy()
	controller.SetAutoSave(on)
	if err := settings.SetAutoSave(on); err != nil {
		return errorResult(err.Error())
	}
	return successResult("autosave updated")
}

// =============================================================================
// Converter API
// =============================================================================

// exportMarkdown: [contentJSON string]
func exportMarkdown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("exportMarkdown requires 1 arg: contentJSON")
	}
	parsed, err := convert.ParseJSONBlocks(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return convert.BlocksToMarkdown(parsed)
}

// exportHTML: [contentJSON string]
func exportHTML(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("exportHTML requires 1 arg: contentJSON")
	}
	parsed, err := convert.ParseJSONBlocks(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return convert.BlocksToHTML(parsed)
}

// importMarkdown: [text string] -> block JSON
func importMarkdown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("importMarkdown requires 1 arg: text")
	}
	out, err := convert.BlocksToJSON(convert.MarkdownToBlocks(args[0].String()))
	if err != nil {
		return errorResult(err.Error())
	}
	return out
}

// importHTML: [html string] -> block JSON
func importHTML(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("importHTML requires 1 arg: html")
	}
	parsed, err := convert.HTMLToBlocks(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	out, err := convert.BlocksToJSON(parsed)
	if err != nil {
		return errorResult(err.Error())
	}
	return out
}

// importJSON: [text string] -> validated, reformatted block JSON
func importJSON(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("importJSON requires 1 arg: text")
	}
	parsed, err := convert.ParseJSONBlocks(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	out, err := convert.BlocksToJSON(parsed)
	if err != nil {
		return errorResult(err.Error())
	}
	return out
}

// =============================================================================
// Share link API
// =============================================================================

// shareEncode: [contentJSON string]
func shareEncode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("shareEncode requires 1 arg: contentJSON")
	}
	link, err := encoder.EncodeDocument(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{
		"url":        link.URL,
		"fragment":   link.Fragment,
		"compressed": link.Compressed,
		"warning":    link.Warning,
	})
}

// shareDecode: [fragment string]
func shareDecode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("shareDecode requires 1 arg: fragment")
	}
	shared, err := share.Decode(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{
		"title":      shared.Title,
		"text":       shared.Text,
		"compressed": shared.Compressed,
	})
}

// shareQRCode: [contentJSON string] -> base64 PNG
func shareQRCode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("shareQRCode requires 1 arg: contentJSON")
	}
	link, err := encoder.EncodeDocument(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	png, err := link.QRPNG()
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]interface{}{
		"url":       link.URL,
		"pngBase64": base64.StdEncoding.EncodeToString(png),
		"warning":   link.Warning,
	})
}

// =============================================================================
// Search API
// =============================================================================

// searchDocuments: [query string]
func searchDocuments(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("search requires 1 arg: query")
	}
	results, err := searcher.Search(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(results)
}

// =============================================================================
// Preferences API
// =============================================================================

func getPreferences(this js.Value, args []js.Value) interface{} {
	return jsonResult(map[string]interface{}{
		"editorWidth":    string(settings.EditorWidth()),
		"autoSave":       settings.AutoSave(),
		"sidebarOpen":    settings.SidebarOpen(),
		"propertiesOpen": settings.PropertiesOpen(),
		"edgeStyle":      string(settings.EdgeStyle()),
	})
}

// setPreference: [name string, value string|bool]
func setPreference(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("setPreference requires 2 args: name, value")
	}
	var err error
	switch args[0].String() {
	case "editorWidth":
		err = settings.SetEditorWidth(prefs.EditorWidth(args[1].String()))
	case "autoSave":
		err = settings.SetAutoSave(args[1].Truthy())
	case "sidebarOpen":
		err = settings.SetSidebarOpen(args[1].Truthy())
	case "propertiesOpen":
		err = settings.SetPropertiesOpen(args[1].Truthy())
	case "edgeStyle":
		err = settings.SetEdgeStyle(prefs.EdgeStyle(args[1].String()))
	default:
		return errorResult("unknown preference: " + args[0].String())
	}
	if err != nil {
		return errorResult(err.Error())
	}
	return successResult("preference updated")
}

// =============================================================================
// Result helpers
// =============================================================================

func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

func jsonResult(v interface{}) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(jsonBytes)
}
