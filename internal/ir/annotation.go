package ir

// ExtractableField describes a field whose content may live in its own file.
type ExtractableField struct {
	Default bool   `json:"default"`
	FileExt string `json:"file_ext"`
}

// Annotation is the extraction contract for one annotated object: which
// fields may be extracted into files and which are server-owned.
type Annotation struct {
	ExtractableFields map[string]ExtractableField `json:"extractable_fields"`
	ReadonlyFields    []string                    `json:"readonly_fields"`
}

// IsZero reports whether the annotation declares nothing.
func (a Annotation) IsZero() bool {
	return len(a.ExtractableFields) == 0 && len(a.ReadonlyFields) == 0
}
