package marshal

import (
	"path"
	"path/filepath"
	"strings"
)

// CleanRelPath normalizes a marker path and rejects anything that is
// absolute or climbs out of the resource directory.
func CleanRelPath(p string) (string, error) {
	if p == "" || path.IsAbs(p) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" || strings.HasPrefix(p, `\`) {
		return "", &PathSafetyError{Path: p}
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &PathSafetyError{Path: p}
	}
	return clean, nil
}
