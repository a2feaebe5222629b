package kinds

import (
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/marshal"
)

// Layout is the email layout kind.
func Layout() *Kind {
	return &Kind{
		Kind: &marshal.Kind{
			Name:           "layout",
			DescriptorFile: "layout.json",
			SchemaURL:      schemaURL("layout"),
			Static: static(map[string]ir.ExtractableField{
				"html_layout": {Default: true, FileExt: "html"},
				"text_layout": {Default: true, FileExt: "txt"},
			}, "key", "environment", "created_at", "updated_at", "sha"),
		},
		Command:    "layout",
		Dir:        "layouts",
		Collection: "email_layouts",
		Body:       "email_layout",
		KeyField:   "key",
	}
}
