package ir

import "sort"

// Bundle maps a relative POSIX path to file content. String values are
// written verbatim; any other value is written as JSON.
type Bundle map[string]any

// Paths returns the bundle's file paths in lexical order.
func (b Bundle) Paths() []string {
	paths := make([]string, 0, len(b))
	for p := range b {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
