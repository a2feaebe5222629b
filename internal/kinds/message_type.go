package kinds

import (
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/marshal"
	"github.com/picklr-io/tether/internal/objpath"
)

// MessageType is the in-app message type kind.
func MessageType() *Kind {
	return &Kind{
		Kind: &marshal.Kind{
			Name:           "message_type",
			DescriptorFile: "message_type.json",
			SchemaURL:      schemaURL("message_type"),
			Static: static(map[string]ir.ExtractableField{
				"preview": {Default: true, FileExt: "html"},
			}, "key", "valid", "owner", "environment", "created_at", "archived_at", "updated_at", "sha"),
			Collections: []marshal.Collection{keyedList{field: "variants", id: "key"}},
		},
		Command:    "message-type",
		Dir:        "message-types",
		Collection: "message_types",
		Body:       "message_type",
		KeyField:   "key",
	}
}

// keyedList is a top-level list of objects identified by one of their
// fields. Elements carry no extractable fields unless annotated.
type keyedList struct {
	field string
	id    string
	// fallback applies when an element has no __annotation.
	fallback ir.Annotation
}

func (l keyedList) Elements(obj map[string]any) []marshal.Element {
	items, _ := obj[l.field].([]any)
	var out []marshal.Element
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, marshal.Element{Path: objpath.Keys(l.field).At(i), Value: m, Owner: m})
	}
	return out
}

func (l keyedList) ElementID(el marshal.Element) string {
	id, _ := el.Owner[l.id].(string)
	return id
}

func (l keyedList) Annotation(el marshal.Element) ir.Annotation {
	if ann, ok := marshal.DecodeAnnotation(el.Value[ir.AnnotationKey]); ok {
		return ann
	}
	return l.fallback
}
