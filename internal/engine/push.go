package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/picklr-io/tether/internal/api"
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/kinds"
	"github.com/picklr-io/tether/internal/marshal"
)

// Validate reads one resource directory and asks the remote to validate
// it. Local and remote content problems come back as a
// *marshal.ResourceError.
func (e *Engine) Validate(ctx context.Context, k *kinds.Kind, dctx ir.DirContext, opts Options) error {
	return e.run(ActionValidate, k, dctx, opts, func(payload ir.Resource) error {
		target := k.Target(dctx.Key)
		return e.remote.Validate(ctx, target.Path, k.Body, payload, target.Query, opts.Params)
	})
}

// Push upserts one resource directory and rewrites it from the saved
// version returned by the remote.
func (e *Engine) Push(ctx context.Context, k *kinds.Kind, dctx ir.DirContext, opts Options) error {
	return e.run(ActionPush, k, dctx, opts, func(payload ir.Resource) error {
		target := k.Target(dctx.Key)
		p := opts.Params
		p.Annotate = true
		saved, err := e.remote.Upsert(ctx, target.Path, k.Body, payload, target.Query, p)
		if err != nil {
			return err
		}
		return writeResource(k, dctx, saved)
	})
}

// ValidateAll validates every resource in indexDir. Content problems are
// collected across resources; a transport failure stops the batch.
func (e *Engine) ValidateAll(ctx context.Context, k *kinds.Kind, indexDir string, opts Options) error {
	return e.runAll(k, indexDir, func(dctx ir.DirContext) error {
		return e.Validate(ctx, k, dctx, opts)
	})
}

// PushAll pushes every resource in indexDir with the same error policy as
// ValidateAll.
func (e *Engine) PushAll(ctx context.Context, k *kinds.Kind, indexDir string, opts Options) error {
	return e.runAll(k, indexDir, func(dctx ir.DirContext) error {
		return e.Push(ctx, k, dctx, opts)
	})
}

// LocalKeys lists the resources present in indexDir.
func LocalKeys(k *kinds.Kind, indexDir string) ([]string, error) {
	fsys, err := indexFS(indexDir)
	if err != nil {
		return nil, err
	}
	if k.Grouped {
		return marshal.ListGroupedIndexDir(fsys, k.Recognize)
	}
	return marshal.ListIndexDir(fsys, k.Kind)
}

func indexFS(indexDir string) (billy.Filesystem, error) {
	abs, err := filepath.Abs(indexDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", indexDir, err)
	}
	return marshal.BoundFS(abs), nil
}

func (e *Engine) runAll(k *kinds.Kind, indexDir string, fn func(ir.DirContext) error) (err error) {
	unlock, err := lockIndex(indexDir)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()

	keys, err := LocalKeys(k, indexDir)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		dctx, err := marshal.NewDirContext(k.Kind, k.ResourceDir(indexDir, key), key)
		if err != nil {
			return err
		}
		if err := fn(dctx); err != nil {
			var rerr *marshal.ResourceError
			if !errors.As(err, &rerr) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) run(action string, k *kinds.Kind, dctx ir.DirContext, opts Options, send func(ir.Resource) error) error {
	start := time.Now()
	opts.emit(Event{Kind: k.Name, Ref: dctx.Key, Action: action, Status: StatusStarted})

	err := e.prepareAndSend(k, dctx, send)
	if err != nil {
		opts.emit(Event{Kind: k.Name, Ref: dctx.Key, Action: action, Status: StatusFailed, Duration: time.Since(start), Error: err})
		return err
	}
	opts.emit(Event{Kind: k.Name, Ref: dctx.Key, Action: action, Status: StatusCompleted, Duration: time.Since(start)})
	return nil
}

func (e *Engine) prepareAndSend(k *kinds.Kind, dctx ir.DirContext, send func(ir.Resource) error) error {
	if !dctx.Exists {
		return fmt.Errorf("cannot locate %s at %s", dctx.Descriptor, dctx.Abspath)
	}

	obj, err := marshal.Inline(marshal.DirFS(dctx), k.Kind, dctx.Descriptor, marshal.InlineOptions{})
	if err != nil {
		if marshal.IsValidationClass(err) {
			return marshal.NewResourceError(k.Name, dctx.Key, err)
		}
		return err
	}
	payload, err := k.PrepareRemote(dctx.Key, obj)
	if err != nil {
		return marshal.NewResourceError(k.Name, dctx.Key, err)
	}

	if err := send(payload); err != nil {
		var verr *api.ValidationError
		if errors.As(err, &verr) {
			return marshal.NewResourceError(k.Name, dctx.Key, verr.DataErrors())
		}
		return err
	}
	return nil
}
