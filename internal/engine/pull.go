package engine

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"

	"github.com/picklr-io/tether/internal/backup"
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/kinds"
	"github.com/picklr-io/tether/internal/logging"
	"github.com/picklr-io/tether/internal/marshal"
)

// PullResult summarizes a bulk pull.
type PullResult struct {
	Keys    []string
	Removed []string
}

// List returns every remote entry of a kind.
func (e *Engine) List(ctx context.Context, k *kinds.Kind, opts Options) ([]ir.Entry, error) {
	entries, err := e.remote.ListAll(ctx, k.Collection, opts.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", k.Collection, err)
	}
	return entries, nil
}

// PullOne fetches key and writes it into dir, keeping the file layout of
// any descriptor already there.
func (e *Engine) PullOne(ctx context.Context, k *kinds.Kind, dir, key string, opts Options) (ir.DirContext, error) {
	if err := k.ValidateKey(key); err != nil {
		return ir.DirContext{}, err
	}
	dctx, err := marshal.NewDirContext(k.Kind, dir, key)
	if err != nil {
		return ir.DirContext{}, err
	}

	start := time.Now()
	opts.emit(Event{Kind: k.Name, Ref: key, Action: ActionPull, Status: StatusStarted})
	res, err := e.fetch(ctx, k, key, opts)
	if err == nil {
		err = writeResource(k, dctx, res)
	}
	if err != nil {
		opts.emit(Event{Kind: k.Name, Ref: key, Action: ActionPull, Status: StatusFailed, Duration: time.Since(start), Error: err})
		return dctx, err
	}
	opts.emit(Event{Kind: k.Name, Ref: key, Action: ActionPull, Status: StatusCompleted, Duration: time.Since(start)})
	dctx.Exists = true
	return dctx, nil
}

// PullAll fetches every resource of a kind into indexDir, then prunes
// everything in indexDir that no longer corresponds to a remote resource.
// Fetches run in parallel up to Concurrency; the first failure aborts the
// batch before anything is written.
func (e *Engine) PullAll(ctx context.Context, k *kinds.Kind, indexDir string, opts Options) (_ *PullResult, err error) {
	unlock, err := lockIndex(indexDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()

	entries, err := e.List(ctx, k, opts)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		key := k.EntryKey(entry)
		if err := k.ValidateKey(key); err != nil {
			return nil, fmt.Errorf("remote returned an unusable key: %w", err)
		}
		keys = append(keys, key)
	}

	resources := make([]ir.Resource, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency())
	for i, key := range keys {
		g.Go(func() error {
			res, err := e.fetch(gctx, k, key, opts)
			if err != nil {
				return err
			}
			resources[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", indexDir, err)
	}
	for i, key := range keys {
		start := time.Now()
		opts.emit(Event{Kind: k.Name, Ref: key, Action: ActionPull, Status: StatusStarted})
		dctx, err := marshal.NewDirContext(k.Kind, k.ResourceDir(indexDir, key), key)
		if err == nil {
			err = writeResource(k, dctx, resources[i])
		}
		if err != nil {
			opts.emit(Event{Kind: k.Name, Ref: key, Action: ActionPull, Status: StatusFailed, Duration: time.Since(start), Error: err})
			return nil, err
		}
		opts.emit(Event{Kind: k.Name, Ref: key, Action: ActionPull, Status: StatusCompleted, Duration: time.Since(start)})
	}

	removed, err := e.prune(ctx, k, indexDir, keys, opts)
	return &PullResult{Keys: keys, Removed: removed}, err
}

func (e *Engine) concurrency() int {
	if e.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return e.Concurrency
}

func (e *Engine) fetch(ctx context.Context, k *kinds.Kind, key string, opts Options) (ir.Resource, error) {
	target := k.Target(key)
	p := opts.Params
	p.Annotate = true
	res, err := e.remote.Get(ctx, target.Path, target.Query, p)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %q: %w", k.Name, key, err)
	}
	return res, nil
}

func (e *Engine) prune(ctx context.Context, k *kinds.Kind, indexDir string, keys []string, opts Options) ([]string, error) {
	fsys, err := indexFS(indexDir)
	if err != nil {
		return nil, err
	}
	stamp := e.now().UTC().Format("20060102T150405Z")

	popts := marshal.PruneOptions{
		BeforeRemove: func(name string, isDir bool) error {
			if e.Archiver != nil {
				if err := archive(ctx, e.Archiver, fsys, path.Join(k.Dir, stamp, name), name, isDir); err != nil {
					return err
				}
			}
			logging.Debug("pruning", "kind", k.Name, "entry", name)
			opts.emit(Event{Kind: k.Name, Ref: name, Action: ActionPrune, Status: StatusCompleted})
			return nil
		},
	}

	var removed []string
	if k.Grouped {
		removed, err = marshal.PruneGroupedIndexDir(fsys, k.Recognize, keys, popts)
	} else {
		removed, err = marshal.PruneIndexDir(fsys, k.Kind, keys, popts)
	}
	if err != nil {
		return removed, fmt.Errorf("failed to prune %s: %w", indexDir, err)
	}
	return removed, nil
}

func archive(ctx context.Context, a backup.Archiver, fsys billy.Filesystem, dest, name string, isDir bool) error {
	var files map[string][]byte
	if isDir {
		var err error
		if files, err = backup.Collect(fsys, name); err != nil {
			return err
		}
	} else {
		data, err := util.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		files = map[string][]byte{path.Base(name): data}
		dest = path.Dir(dest)
	}
	if len(files) == 0 {
		return nil
	}
	if err := a.Archive(ctx, dest, files); err != nil {
		return fmt.Errorf("failed to archive %s: %w", name, err)
	}
	return nil
}

// writeResource converts a fetched resource to its bundle and writes it,
// reusing the current descriptor's layout when one exists.
func writeResource(k *kinds.Kind, dctx ir.DirContext, res ir.Resource) error {
	obj, err := k.PrepareLocal(res)
	if err != nil {
		return fmt.Errorf("%s %q: %w", k.Name, dctx.Key, err)
	}

	if err := os.MkdirAll(dctx.Abspath, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dctx.Abspath, err)
	}
	fsys := marshal.DirFS(dctx)

	var local map[string]any
	if dctx.Exists {
		local, err = marshal.Inline(fsys, k.Kind, dctx.Descriptor, marshal.InlineOptions{DescriptorOnly: true})
		if err != nil {
			logging.Warn("ignoring unreadable local descriptor", "path", dctx.DescriptorPath(), "error", err)
			local = nil
		}
	}

	bundle, err := marshal.Extract(k.Kind, dctx.Descriptor, obj, local)
	if err != nil {
		return fmt.Errorf("failed to extract %s %q: %w", k.Name, dctx.Key, err)
	}
	if err := marshal.WriteBundle(fsys, bundle); err != nil {
		return fmt.Errorf("failed to write %s %q: %w", k.Name, dctx.Key, err)
	}
	return nil
}
