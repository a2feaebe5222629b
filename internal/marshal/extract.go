package marshal

import (
	"fmt"
	"strings"

	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/objpath"
)

// Extract projects a fetched resource into a directory bundle. The entry
// at descriptor holds the resource with extracted fields replaced by
// markers and server-owned fields moved to __readonly.
//
// local is the descriptor currently on disk, or nil. It is only consulted
// for the file paths the user already chose: a field with a marker there
// keeps that path, any other field is extracted only when its annotation
// defaults to extraction.
func Extract(kind *Kind, descriptor string, resource, local map[string]any) (ir.Bundle, error) {
	x := &extractor{
		kind:   kind,
		bundle: ir.Bundle{},
		owners: map[string]string{descriptor: "descriptor"},
	}
	desc := objpath.CopyMap(resource)
	if desc == nil {
		desc = map[string]any{}
	}

	top := kind.Annotation(desc)
	if err := x.extractFields(desc, "", top, local); err != nil {
		return nil, err
	}

	for _, coll := range kind.Collections {
		var prior map[string]Element
		if local != nil {
			prior = indexElements(coll, local)
		}
		for _, el := range coll.Elements(desc) {
			id := elementID(coll, el)
			ann := coll.Annotation(el)
			var localValue map[string]any
			if p, ok := prior[id]; ok {
				localValue = p.Value
			}
			if err := x.extractFields(el.Value, id+"/", ann, localValue); err != nil {
				return nil, fmt.Errorf("%s: %w", el.Path, err)
			}
			StripReadonly(el.Value, ann)
		}
	}

	StripReadonly(desc, top)
	objpath.OmitDeep(desc, ir.AnnotationKey)
	if kind.SchemaURL != "" {
		desc[ir.SchemaKey] = kind.SchemaURL
	}
	x.bundle[descriptor] = desc
	return x.bundle, nil
}

type extractor struct {
	kind   *Kind
	bundle ir.Bundle
	// owners maps each claimed bundle path to the field that claimed it.
	owners map[string]string
}

func (x *extractor) extractFields(obj map[string]any, ns string, ann ir.Annotation, local map[string]any) error {
	for _, field := range objpath.SortedKeys(ann.ExtractableFields) {
		settings := ann.ExtractableFields[field]
		fp, err := objpath.Parse(field)
		if err != nil {
			return fmt.Errorf("invalid extractable field: %w", err)
		}
		if len(fp) == 0 || fp.Last().IsIndex {
			return fmt.Errorf("invalid extractable field %q: must name an object field", field)
		}

		value, ok := objpath.Get(obj, fp)
		if !ok || value == nil {
			continue
		}
		content, ok := x.content(fp, value)
		if !ok {
			continue
		}

		marker := fp.WithLastKey(fp.Last().Key + ir.FilepathMarker)
		rel := priorPath(local, marker)
		if rel == "" {
			if !settings.Default {
				continue
			}
			rel, err = CleanRelPath(ns + fp.Dotted() + "." + fileExt(settings))
			if err != nil {
				return fmt.Errorf("invalid default path for %s: %w", ns+field, err)
			}
		}
		if err := x.claim(rel, ns+field); err != nil {
			return err
		}

		if err := objpath.Delete(obj, fp); err != nil {
			return err
		}
		if err := objpath.Set(obj, marker, rel); err != nil {
			return err
		}
		x.bundle[rel] = content
	}
	return nil
}

// content returns what an extracted file for fp would hold. Strings are
// written verbatim; structured values only for JSON-typed fields.
func (x *extractor) content(fp objpath.Path, value any) (any, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case map[string]any, []any:
		if x.kind.IsJSONField(fp) {
			return v, true
		}
	}
	return nil, false
}

func (x *extractor) claim(rel, field string) error {
	if owner, taken := x.owners[rel]; taken {
		return fmt.Errorf("%w: %s is claimed by both %s and %s", ErrPathCollision, rel, owner, field)
	}
	x.owners[rel] = field
	return nil
}

// priorPath returns the user's existing, safe extraction path for marker,
// or "" when there is none.
func priorPath(local map[string]any, marker objpath.Path) string {
	if local == nil {
		return ""
	}
	v, ok := objpath.Get(local, marker)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	clean, err := CleanRelPath(s)
	if err != nil {
		return ""
	}
	return clean
}

func fileExt(settings ir.ExtractableField) string {
	ext := strings.TrimPrefix(settings.FileExt, ".")
	if ext == "" {
		return "txt"
	}
	return ext
}

func elementID(coll Collection, el Element) string {
	if id := coll.ElementID(el); id != "" {
		return id
	}
	return el.Path.Dotted()
}

func indexElements(coll Collection, obj map[string]any) map[string]Element {
	out := map[string]Element{}
	for _, el := range coll.Elements(obj) {
		out[elementID(coll, el)] = el
	}
	return out
}
