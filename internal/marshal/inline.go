package marshal

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/objpath"
)

// InlineOptions controls how a resource directory is read back.
type InlineOptions struct {
	// DescriptorOnly returns the descriptor as authored, markers and
	// sidecars included, without reading any extracted file.
	DescriptorOnly bool
}

// ReadDescriptor parses the primary descriptor in fsys.
func ReadDescriptor(fsys billy.Filesystem, descriptor string) (map[string]any, error) {
	data, err := util.ReadFile(fsys, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", descriptor, err)
	}
	return ParseObject(descriptor, data)
}

// Inline reads the resource directory rooted at fsys back into a resource
// object ready for validation or upload. Every marker field is replaced by
// its plain field holding the referenced file's content, and server-owned
// sidecars are dropped. A marker replaces a plain field of the same name,
// even when the marker cannot be resolved.
//
// Field problems do not stop the walk: the returned error is a DataErrors
// listing all of them. A descriptor that does not parse yields a
// *SyntaxError.
func Inline(fsys billy.Filesystem, kind *Kind, descriptor string, opts InlineOptions) (map[string]any, error) {
	obj, err := ReadDescriptor(fsys, descriptor)
	if err != nil {
		return nil, err
	}
	if opts.DescriptorOnly {
		return obj, nil
	}

	in := &inliner{fsys: fsys, kind: kind}
	if !kind.Opaque {
		in.walk(obj, objpath.Path{})
	}
	StripInbound(obj)
	if len(in.errs) > 0 {
		return obj, in.errs
	}
	return obj, nil
}

type inliner struct {
	fsys billy.Filesystem
	kind *Kind
	errs DataErrors
}

func (in *inliner) walk(v any, p objpath.Path) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range objpath.SortedKeys(val) {
			if k == ir.ReadonlyKey || k == ir.AnnotationKey {
				continue
			}
			if field, ok := strings.CutSuffix(k, ir.FilepathMarker); ok && field != "" {
				fp := p.Child(field)
				rel := val[k]
				delete(val, k)
				content, err := in.resolve(fp, rel)
				if err != nil {
					delete(val, field)
					in.errs = append(in.errs, err)
					continue
				}
				val[field] = content
				continue
			}
			in.walk(val[k], p.Child(k))
		}
	case []any:
		for i, item := range val {
			in.walk(item, p.At(i))
		}
	}
}

func (in *inliner) resolve(fp objpath.Path, rel any) (any, *DataError) {
	s, ok := rel.(string)
	if !ok || s == "" {
		return nil, &DataError{Field: fp.String(), Message: "extraction marker must be a relative file path"}
	}
	clean, err := CleanRelPath(s)
	if err != nil {
		return nil, &DataError{Field: fp.String(), Message: err.Error(), Err: err}
	}

	data, err := util.ReadFile(in.fsys, clean)
	switch {
	case errors.Is(err, billy.ErrCrossedBoundary):
		perr := &PathSafetyError{Path: s}
		return nil, &DataError{Field: fp.String(), Message: perr.Error(), Err: perr}
	case errors.Is(err, os.ErrNotExist):
		return nil, &DataError{Field: fp.String(), Message: fmt.Sprintf("extracted file not found: %s", clean), Err: err}
	case err != nil:
		return nil, &DataError{Field: fp.String(), Message: fmt.Sprintf("failed to read %s: %v", clean, err), Err: err}
	}

	if in.kind.IsJSONField(fp) {
		parsed, err := ValidateJSON(clean, data)
		if err != nil {
			return nil, &DataError{Field: fp.String(), Message: err.Error(), Err: err}
		}
		return parsed, nil
	}

	content := string(data)
	if err := ValidateTemplateSyntax(content); err != nil {
		return nil, &DataError{Field: fp.String(), Message: fmt.Sprintf("%s: %v", clean, err), Err: err}
	}
	return content, nil
}
