package marshal

import (
	"errors"
	"fmt"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/picklr-io/tether/internal/backup"
	"github.com/picklr-io/tether/internal/ir"
)

// EncodeContent renders one bundle entry. Strings are written verbatim and
// every other value as indented JSON.
func EncodeContent(v any) ([]byte, error) {
	switch c := v.(type) {
	case string:
		return []byte(c), nil
	case []byte:
		return c, nil
	default:
		return EncodeJSON(c)
	}
}

// WriteBundle writes every entry of bundle below fsys, which must be
// rooted at the resource directory. Files not named by the bundle are left
// alone. If a write fails, files already touched are restored.
func WriteBundle(fsys billy.Filesystem, bundle ir.Bundle) error {
	paths := make([]string, 0, len(bundle))
	encoded := make(map[string][]byte, len(bundle))
	for _, p := range bundle.Paths() {
		clean, err := CleanRelPath(p)
		if err != nil {
			return fmt.Errorf("refusing to write %s: %w", p, err)
		}
		data, err := EncodeContent(bundle[p])
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", p, err)
		}
		paths = append(paths, clean)
		encoded[clean] = data
	}

	snap, err := backup.Take(fsys, paths)
	if err != nil {
		return fmt.Errorf("failed to snapshot resource directory: %w", err)
	}

	for _, p := range paths {
		if err := writeFile(fsys, p, encoded[p]); err != nil {
			werr := fmt.Errorf("failed to write %s: %w", p, err)
			if rerr := snap.Restore(); rerr != nil {
				return errors.Join(werr, rerr)
			}
			return werr
		}
	}
	return nil
}

func writeFile(fsys billy.Filesystem, p string, data []byte) error {
	if dir := path.Dir(p); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return util.WriteFile(fsys, p, data, 0o644)
}
