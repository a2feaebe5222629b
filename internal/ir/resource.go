package ir

import "path/filepath"

// Reserved names in remote resources and on-disk descriptors.
const (
	// ReadonlyKey holds server-owned values in a descriptor. Never uploaded.
	ReadonlyKey = "__readonly"
	// AnnotationKey carries extraction metadata on fetched resources. Never written.
	AnnotationKey = "__annotation"
	// SchemaKey is an informational JSON Schema URI at the top of a descriptor.
	SchemaKey = "$schema"
	// FilepathMarker suffixes a field name whose value is a relative file path.
	FilepathMarker = "@"
)

// Resource is one decoded remote entity: a workflow, layout, partial, etc.
type Resource = map[string]any

// Entry is one item of a list response.
type Entry = map[string]any

// PageInfo is the cursor block of a paginated list response.
type PageInfo struct {
	After    string `json:"after"`
	Before   string `json:"before"`
	PageSize int    `json:"page_size"`
}

// DirContext locates one resource instance on disk. Exists is true only when
// the primary descriptor file is present, not merely the directory.
type DirContext struct {
	Type       string
	Key        string
	Abspath    string
	Descriptor string
	Exists     bool
}

// DescriptorPath returns the absolute path of the primary descriptor.
func (d DirContext) DescriptorPath() string {
	return filepath.Join(d.Abspath, d.Descriptor)
}
