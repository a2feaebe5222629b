package marshal

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// PruneOptions controls an index directory prune.
type PruneOptions struct {
	// BeforeRemove, when set, is called for each entry about to be
	// deleted, with its path relative to the index directory. Returning an
	// error stops the prune before that entry is removed.
	BeforeRemove func(name string, isDir bool) error
}

// RecognizeFunc reports the resource ref stored in file inside group, for
// index directories that hold one file per resource.
type RecognizeFunc func(group, file string) (ref string, ok bool)

// ListIndexDir returns the keys of every recognized resource directory in
// the index directory rooted at fsys.
func ListIndexDir(fsys billy.Filesystem, kind *Kind) ([]string, error) {
	entries, err := readDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() && isFile(fsys, path.Join(e.Name(), kind.DescriptorName(e.Name()))) {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}

// PruneIndexDir reconciles the index directory rooted at fsys against the
// keys present remotely. Loose files, directories without a descriptor,
// and resource directories whose key is not in keep are deleted. Every
// other entry is left untouched. It returns the removed names.
func PruneIndexDir(fsys billy.Filesystem, kind *Kind, keep []string, opts PruneOptions) ([]string, error) {
	entries, err := readDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	keepSet := toSet(keep)

	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() && isFile(fsys, path.Join(name, kind.DescriptorName(name))) && keepSet[name] {
			continue
		}
		if err := remove(fsys, name, e.IsDir(), opts); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// ListGroupedIndexDir returns every recognized ref in an index directory
// whose resources are files grouped into subdirectories.
func ListGroupedIndexDir(fsys billy.Filesystem, recognize RecognizeFunc) ([]string, error) {
	groups, err := readDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, g := range groups {
		if !g.IsDir() {
			continue
		}
		files, err := readDir(fsys, g.Name())
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if ref, ok := recognize(g.Name(), f.Name()); ok {
				refs = append(refs, ref)
			}
		}
	}
	sort.Strings(refs)
	return refs, nil
}

// PruneGroupedIndexDir is PruneIndexDir for grouped index directories.
// Loose files at the root, unrecognized or orphaned files inside a group,
// nested directories, and groups left empty are deleted.
func PruneGroupedIndexDir(fsys billy.Filesystem, recognize RecognizeFunc, keep []string, opts PruneOptions) ([]string, error) {
	groups, err := readDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	keepSet := toSet(keep)

	var removed []string
	for _, g := range groups {
		group := g.Name()
		if !g.IsDir() {
			if err := remove(fsys, group, false, opts); err != nil {
				return removed, err
			}
			removed = append(removed, group)
			continue
		}

		files, err := readDir(fsys, group)
		if err != nil {
			return removed, err
		}
		remaining := len(files)
		for _, f := range files {
			if !f.IsDir() {
				if ref, ok := recognize(group, f.Name()); ok && keepSet[ref] {
					continue
				}
			}
			name := path.Join(group, f.Name())
			if err := remove(fsys, name, f.IsDir(), opts); err != nil {
				return removed, err
			}
			removed = append(removed, name)
			remaining--
		}
		if remaining == 0 {
			if err := remove(fsys, group, true, opts); err != nil {
				return removed, err
			}
			removed = append(removed, group)
		}
	}
	return removed, nil
}

func remove(fsys billy.Filesystem, name string, isDir bool, opts PruneOptions) error {
	if opts.BeforeRemove != nil {
		if err := opts.BeforeRemove(name, isDir); err != nil {
			return err
		}
	}
	if isDir {
		if err := util.RemoveAll(fsys, name); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		return nil
	}
	if err := fsys.Remove(name); err != nil {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// readDir lists dir sorted by name. A missing directory is empty.
func readDir(fsys billy.Filesystem, dir string) ([]os.FileInfo, error) {
	entries, err := fsys.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func isFile(fsys billy.Filesystem, p string) bool {
	info, err := fsys.Stat(p)
	return err == nil && !info.IsDir()
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
