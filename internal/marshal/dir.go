package marshal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/picklr-io/tether/internal/ir"
)

// NewDirContext locates the resource directory for key at dir. Exists is
// true only when the descriptor file is present.
func NewDirContext(kind *Kind, dir, key string) (ir.DirContext, error) {
	abspath, err := filepath.Abs(dir)
	if err != nil {
		return ir.DirContext{}, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	d := ir.DirContext{
		Type:       kind.Name,
		Key:        key,
		Abspath:    abspath,
		Descriptor: kind.DescriptorName(key),
	}
	info, err := os.Stat(d.DescriptorPath())
	switch {
	case err == nil:
		d.Exists = !info.IsDir()
	case !os.IsNotExist(err):
		return ir.DirContext{}, fmt.Errorf("failed to stat %s: %w", d.DescriptorPath(), err)
	}
	return d, nil
}

// DirFS returns a file system rooted at the resource directory.
func DirFS(d ir.DirContext) billy.Filesystem {
	return BoundFS(d.Abspath)
}

// BoundFS returns an OS file system bound to root. Relative paths and
// symlinks are resolved inside root, so a link pointing elsewhere never
// reaches a file outside it.
func BoundFS(root string) billy.Filesystem {
	return osfs.New(root, osfs.WithBoundOS())
}
