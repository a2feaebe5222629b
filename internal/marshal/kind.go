package marshal

import (
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/objpath"
)

// Element is one member of a repeatable structure, such as a workflow step
// or a message type variant.
type Element struct {
	// Path locates the annotatable object within the resource.
	Path objpath.Path
	// Value is the annotatable object itself. For a workflow step this is
	// the step's template; for a variant it is the variant.
	Value map[string]any
	// Owner is the record the element id is derived from.
	Owner map[string]any
}

// Collection describes a repeatable structure inside a resource.
type Collection interface {
	// Elements lists every annotatable element of obj in document order.
	Elements(obj map[string]any) []Element
	// ElementID returns the identifier used to namespace extracted files.
	ElementID(el Element) string
	// Annotation returns the extraction contract for one element.
	Annotation(el Element) ir.Annotation
}

// Kind is the per-resource-type configuration consumed by the engine.
type Kind struct {
	// Name is the singular resource type name, e.g. "workflow".
	Name string
	// DescriptorFile is the primary descriptor name, e.g. "workflow.json".
	DescriptorFile string
	// DescriptorFor overrides DescriptorFile for kinds whose descriptor is
	// named after the resource key.
	DescriptorFor func(key string) string
	// SchemaURL, when set, is written as $schema into every descriptor.
	SchemaURL string
	// Static is the offline extraction contract, used when a resource
	// carries no __annotation.
	Static func(obj map[string]any) ir.Annotation
	// Collections lists nested repeatable structures.
	Collections []Collection
	// JSONFields names fields whose extracted files hold JSON. Matched on
	// the final key of the field path.
	JSONFields []string
	// Opaque kinds never carry extraction markers. Their descriptor is
	// user content and is read back verbatim apart from sidecar stripping.
	Opaque bool
}

// DescriptorName returns the descriptor file name for the given key.
func (k *Kind) DescriptorName(key string) string {
	if k.DescriptorFor != nil {
		return k.DescriptorFor(key)
	}
	return k.DescriptorFile
}

// Annotation returns obj's own __annotation when present and the static
// contract otherwise.
func (k *Kind) Annotation(obj map[string]any) ir.Annotation {
	if ann, ok := DecodeAnnotation(obj[ir.AnnotationKey]); ok {
		return ann
	}
	if k.Static != nil {
		return k.Static(obj)
	}
	return ir.Annotation{}
}

// IsJSONField reports whether the field at p holds structured JSON.
func (k *Kind) IsJSONField(p objpath.Path) bool {
	if len(p) == 0 || p.Last().IsIndex {
		return false
	}
	name := p.Last().Key
	for _, f := range k.JSONFields {
		if f == name {
			return true
		}
	}
	return false
}

// DecodeAnnotation reads an __annotation value as decoded from JSON. It
// reports false when v is not an annotation object.
func DecodeAnnotation(v any) (ir.Annotation, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return ir.Annotation{}, false
	}
	var ann ir.Annotation
	if fields, ok := m["extractable_fields"].(map[string]any); ok {
		ann.ExtractableFields = make(map[string]ir.ExtractableField, len(fields))
		for name, raw := range fields {
			settings, _ := raw.(map[string]any)
			def, _ := settings["default"].(bool)
			ext, _ := settings["file_ext"].(string)
			ann.ExtractableFields[name] = ir.ExtractableField{Default: def, FileExt: ext}
		}
	}
	if fields, ok := m["readonly_fields"].([]any); ok {
		for _, f := range fields {
			if s, ok := f.(string); ok {
				ann.ReadonlyFields = append(ann.ReadonlyFields, s)
			}
		}
	}
	return ann, true
}
