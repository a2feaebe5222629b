// Package kinds holds the per-resource-type configuration: descriptor
// names, offline extraction tables, nested collections, and how each type
// is addressed on disk and on the remote API.
package kinds

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/marshal"
)

// Kind is one resource type.
type Kind struct {
	*marshal.Kind

	// Command is the CLI name, e.g. "message-type".
	Command string
	// Dir is the default index directory name.
	Dir string
	// Collection is the API collection path, e.g. "workflows".
	Collection string
	// Body wraps upsert payloads and responses, e.g. {"workflow": {...}}.
	Body string
	// KeyField names the field holding the resource key.
	KeyField string
	// Grouped kinds store one descriptor file per resource inside shared
	// group directories instead of one directory per resource.
	Grouped bool

	// FromRemote converts a fetched resource into the object written to
	// disk. Nil means the resource is written as fetched.
	FromRemote func(res ir.Resource) (ir.Resource, error)
	// ToRemote converts an inlined local object into the upload payload.
	// Nil means the object is sent as is.
	ToRemote func(key string, obj ir.Resource) (ir.Resource, error)

	entryKey  func(e ir.Entry) string
	target    func(key string) Target
	groupOf   func(key string) string
	recognize marshal.RecognizeFunc
	checkKey  func(key string) error
}

// Target addresses one resource on the remote API.
type Target struct {
	Path  string
	Query url.Values
}

// EntryKey returns the key of a list entry or fetched resource.
func (k *Kind) EntryKey(e ir.Entry) string {
	if k.entryKey != nil {
		return k.entryKey(e)
	}
	key, _ := e[k.KeyField].(string)
	return key
}

// Target returns the API address of key.
func (k *Kind) Target(key string) Target {
	if k.target != nil {
		return k.target(key)
	}
	return Target{Path: k.Collection + "/" + url.PathEscape(key)}
}

// ResourceDir returns the directory holding key's descriptor.
func (k *Kind) ResourceDir(indexDir, key string) string {
	if k.groupOf != nil {
		return filepath.Join(indexDir, k.groupOf(key))
	}
	return filepath.Join(indexDir, key)
}

// Recognize reports the ref stored in file inside group. Only grouped
// kinds recognize files.
func (k *Kind) Recognize(group, file string) (string, bool) {
	if k.recognize == nil {
		return "", false
	}
	return k.recognize(group, file)
}

// ValidateKey rejects keys that cannot name a resource directory.
func (k *Kind) ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid %s key %q", k.Name, key)
	}
	if k.checkKey != nil {
		return k.checkKey(key)
	}
	return nil
}

// PrepareLocal applies FromRemote.
func (k *Kind) PrepareLocal(res ir.Resource) (ir.Resource, error) {
	if k.FromRemote == nil {
		return res, nil
	}
	return k.FromRemote(res)
}

// PrepareRemote applies ToRemote.
func (k *Kind) PrepareRemote(key string, obj ir.Resource) (ir.Resource, error) {
	if k.ToRemote == nil {
		return obj, nil
	}
	return k.ToRemote(key, obj)
}

func schemaURL(name string) string {
	return "https://schemas.tether.dev/" + name + ".json"
}

// static builds an offline annotation from a field table.
func static(fields map[string]ir.ExtractableField, readonly ...string) func(map[string]any) ir.Annotation {
	return func(map[string]any) ir.Annotation {
		return ir.Annotation{ExtractableFields: fields, ReadonlyFields: readonly}
	}
}
