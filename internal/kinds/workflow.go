package kinds

import (
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/marshal"
	"github.com/picklr-io/tether/internal/objpath"
)

var templateFields = map[string]ir.ExtractableField{
	"html_body":            {Default: true, FileExt: "html"},
	"text_body":            {Default: true, FileExt: "txt"},
	"markdown_body":        {Default: true, FileExt: "md"},
	"json_body":            {Default: true, FileExt: "json"},
	"visual_blocks":        {Default: true, FileExt: "json"},
	"settings.pre_content": {Default: true, FileExt: "txt"},
}

// Workflow is the workflow kind. Channel step templates are extracted into
// a directory per step ref.
func Workflow() *Kind {
	return &Kind{
		Kind: &marshal.Kind{
			Name:           "workflow",
			DescriptorFile: "workflow.json",
			SchemaURL:      schemaURL("workflow"),
			Static:         static(nil, "key", "active", "valid", "environment", "created_at", "updated_at", "sha"),
			Collections:    []marshal.Collection{workflowSteps{}},
			JSONFields:     []string{"visual_blocks"},
		},
		Command:    "workflow",
		Dir:        "workflows",
		Collection: "workflows",
		Body:       "workflow",
		KeyField:   "key",
	}
}

// workflowSteps lists every step template, descending into branch steps.
type workflowSteps struct{}

func (workflowSteps) Elements(obj map[string]any) []marshal.Element {
	return collectSteps(obj, objpath.Path{}, nil)
}

func collectSteps(obj map[string]any, base objpath.Path, out []marshal.Element) []marshal.Element {
	steps, _ := obj["steps"].([]any)
	for i, s := range steps {
		step, ok := s.(map[string]any)
		if !ok {
			continue
		}
		stepPath := base.Child("steps").At(i)
		if tpl, ok := step["template"].(map[string]any); ok {
			out = append(out, marshal.Element{Path: stepPath.Child("template"), Value: tpl, Owner: step})
		}
		branches, _ := step["branches"].([]any)
		for j, b := range branches {
			if branch, ok := b.(map[string]any); ok {
				out = collectSteps(branch, stepPath.Child("branches").At(j), out)
			}
		}
	}
	return out
}

func (workflowSteps) ElementID(el marshal.Element) string {
	ref, _ := el.Owner["ref"].(string)
	return ref
}

func (workflowSteps) Annotation(el marshal.Element) ir.Annotation {
	if ann, ok := marshal.DecodeAnnotation(el.Value[ir.AnnotationKey]); ok {
		return ann
	}
	return ir.Annotation{ExtractableFields: templateFields}
}
