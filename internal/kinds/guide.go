package kinds

import (
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/marshal"
)

// Guide is the in-app guide kind. Step values stay inline unless the
// user extracts them.
func Guide() *Kind {
	return &Kind{
		Kind: &marshal.Kind{
			Name:           "guide",
			DescriptorFile: "guide.json",
			SchemaURL:      schemaURL("guide"),
			Static:         static(nil, "key", "valid", "active", "environment", "created_at", "updated_at", "sha"),
			Collections: []marshal.Collection{keyedList{
				field: "steps",
				id:    "ref",
				fallback: ir.Annotation{ExtractableFields: map[string]ir.ExtractableField{
					"values": {Default: false, FileExt: "json"},
				}},
			}},
			JSONFields: []string{"values"},
		},
		Command:    "guide",
		Dir:        "guides",
		Collection: "guides",
		Body:       "guide",
		KeyField:   "key",
	}
}
