package kinds

import (
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/marshal"
)

var partialExt = map[string]string{
	"html":     "html",
	"text":     "txt",
	"markdown": "md",
	"json":     "json",
}

// Partial is the reusable template partial kind. Its content file
// extension follows the partial's type.
func Partial() *Kind {
	return &Kind{
		Kind: &marshal.Kind{
			Name:           "partial",
			DescriptorFile: "partial.json",
			SchemaURL:      schemaURL("partial"),
			Static:         partialAnnotation,
		},
		Command:    "partial",
		Dir:        "partials",
		Collection: "partials",
		Body:       "partial",
		KeyField:   "key",
	}
}

func partialAnnotation(obj map[string]any) ir.Annotation {
	typ, _ := obj["type"].(string)
	ext, ok := partialExt[typ]
	if !ok {
		ext = "txt"
	}
	return ir.Annotation{
		ExtractableFields: map[string]ir.ExtractableField{
			"content": {Default: true, FileExt: ext},
		},
		ReadonlyFields: []string{"key", "type", "valid", "environment", "created_at", "updated_at", "sha"},
	}
}
