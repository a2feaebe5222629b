package marshal

import (
	"bytes"

	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/objpath"
)

// ReadonlyField is one entry of a __readonly sidecar.
type ReadonlyField struct {
	Key   string
	Value any
}

// ReadonlyFields is a __readonly sidecar. It encodes as a JSON object whose
// keys keep the annotation's declared order.
type ReadonlyFields []ReadonlyField

// Get returns the value recorded for key.
func (r ReadonlyFields) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (r ReadonlyFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := EncodeCompactJSON(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := EncodeCompactJSON(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// StripReadonly moves every readonly field of obj into a __readonly sidecar,
// in annotation order, and drops obj's __annotation. obj is modified in
// place and returned.
func StripReadonly(obj map[string]any, ann ir.Annotation) map[string]any {
	var sidecar ReadonlyFields
	for _, field := range ann.ReadonlyFields {
		p, err := objpath.Parse(field)
		if err != nil || len(p) == 0 {
			continue
		}
		v, ok := objpath.Get(obj, p)
		if !ok {
			continue
		}
		sidecar = append(sidecar, ReadonlyField{Key: field, Value: v})
		_ = objpath.Delete(obj, p)
	}
	delete(obj, ir.AnnotationKey)
	if len(sidecar) > 0 {
		obj[ir.ReadonlyKey] = sidecar
	}
	return obj
}

// StripInbound removes everything that must never be sent to the remote:
// every __readonly sidecar, every __annotation, and the top-level $schema.
func StripInbound(obj map[string]any) map[string]any {
	delete(obj, ir.SchemaKey)
	objpath.OmitDeep(obj, ir.ReadonlyKey, ir.AnnotationKey)
	return obj
}
