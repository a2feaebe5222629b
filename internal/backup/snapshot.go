// Package backup protects local resource files: snapshots taken before a
// bundle write, and archives of directories removed by pruning.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Snapshot records the prior state of a set of files so a failed write can
// be rolled back.
type Snapshot struct {
	fs      billy.Filesystem
	saved   map[string][]byte
	created []string
}

// Take records the current content of every path in paths. Paths that do
// not exist yet are remembered so Restore can remove them again.
func Take(fs billy.Filesystem, paths []string) (*Snapshot, error) {
	s := &Snapshot{fs: fs, saved: make(map[string][]byte, len(paths))}
	for _, p := range paths {
		data, err := util.ReadFile(fs, p)
		switch {
		case err == nil:
			s.saved[p] = data
		case errors.Is(err, os.ErrNotExist):
			s.created = append(s.created, p)
		default:
			info, statErr := fs.Stat(p)
			if statErr == nil && info.IsDir() {
				return nil, fmt.Errorf("cannot overwrite directory %s with a file", p)
			}
			return nil, fmt.Errorf("failed to snapshot %s: %w", p, err)
		}
	}
	return s, nil
}

// Len returns the number of files that existed when the snapshot was taken.
func (s *Snapshot) Len() int {
	return len(s.saved)
}

// Restore puts every recorded file back and removes files that did not
// exist at snapshot time.
func (s *Snapshot) Restore() error {
	var errs []error
	for p, data := range s.saved {
		if err := util.WriteFile(s.fs, p, data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s: %w", p, err))
		}
	}
	for _, p := range s.created {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// Collect reads every regular file below dir, keyed by its slash-separated
// path relative to dir.
func Collect(fs billy.Filesystem, dir string) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := util.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := util.ReadFile(fs, p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files[toSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect %s: %w", dir, err)
	}
	return files, nil
}
