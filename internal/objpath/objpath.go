// Package objpath addresses values inside decoded JSON trees
// (map[string]any / []any) with an explicit sequence of segments.
package objpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Segment is a single step in a Path: either a field name or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key returns a field-name segment.
func Key(k string) Segment {
	return Segment{Key: k}
}

// Index returns a list-index segment.
func Index(i int) Segment {
	return Segment{Index: i, IsIndex: true}
}

func (s Segment) String() string {
	if s.IsIndex {
		return fmt.Sprintf("[%d]", s.Index)
	}
	if plainKey.MatchString(s.Key) {
		return s.Key
	}
	return "[" + strconv.Quote(s.Key) + "]"
}

// Path is an ordered sequence of segments. The zero value addresses the root.
type Path []Segment

var plainKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// New builds a path from segments.
func New(segs ...Segment) Path {
	return append(Path{}, segs...)
}

// Keys builds a path made only of field names.
func Keys(keys ...string) Path {
	p := make(Path, len(keys))
	for i, k := range keys {
		p[i] = Key(k)
	}
	return p
}

// Child returns a copy of p extended with a field name.
func (p Path) Child(k string) Path {
	return p.Join(Path{Key(k)})
}

// At returns a copy of p extended with a list index.
func (p Path) At(i int) Path {
	return p.Join(Path{Index(i)})
}

// Join returns a new path with other appended to p.
func (p Path) Join(other Path) Path {
	out := make(Path, 0, len(p)+len(other))
	out = append(out, p...)
	return append(out, other...)
}

// Last returns the final segment. It panics on the root path.
func (p Path) Last() Segment {
	return p[len(p)-1]
}

// WithLastKey returns a copy of p whose final field name is replaced.
func (p Path) WithLastKey(k string) Path {
	out := append(Path{}, p...)
	out[len(out)-1] = Key(k)
	return out
}

// String renders the path in dot/bracket notation, e.g. steps[0].template.html_body.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		str := s.String()
		if i > 0 && !strings.HasPrefix(str, "[") {
			b.WriteByte('.')
		}
		b.WriteString(str)
	}
	return b.String()
}

// Dotted joins the field names of p with dots and indexes without brackets,
// e.g. settings.pre_content. Used for synthesized file names.
func (p Path) Dotted() string {
	parts := make([]string, len(p))
	for i, s := range p {
		if s.IsIndex {
			parts[i] = strconv.Itoa(s.Index)
		} else {
			parts[i] = s.Key
		}
	}
	return strings.Join(parts, ".")
}

// Parse reads a dot/bracket path such as steps[0].template["html_body"].
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	x, err := jp.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", s, err)
	}
	p := make(Path, 0, len(x))
	for _, frag := range x {
		switch f := frag.(type) {
		case jp.Root, jp.Bracket:
			continue
		case jp.Child:
			p = append(p, Key(string(f)))
		case jp.Nth:
			p = append(p, Index(int(f)))
		default:
			return nil, fmt.Errorf("invalid path %q: unsupported segment %v", s, frag)
		}
	}
	return p, nil
}

// MustParse is Parse for static tables; it panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) expr() jp.Expr {
	x := jp.R()
	for _, s := range p {
		if s.IsIndex {
			x = x.N(s.Index)
		} else {
			x = x.C(s.Key)
		}
	}
	return x
}

// Get returns the value at p and whether it exists. A present JSON null is
// reported as (nil, true).
func Get(obj any, p Path) (any, bool) {
	if len(p) == 0 {
		return obj, obj != nil
	}
	found := p.expr().Get(obj)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

// Has reports whether a value exists at p.
func Has(obj any, p Path) bool {
	_, ok := Get(obj, p)
	return ok
}

// Set writes v at p, creating intermediate objects as needed.
func Set(obj any, p Path, v any) error {
	if len(p) == 0 {
		return fmt.Errorf("cannot set the root path")
	}
	if err := ensureParents(obj, p); err != nil {
		return err
	}
	if err := p.expr().SetOne(obj, v); err != nil {
		return fmt.Errorf("failed to set %s: %w", p, err)
	}
	return nil
}

// Delete removes the value at p. Deleting a missing path is not an error.
func Delete(obj any, p Path) error {
	if len(p) == 0 {
		return fmt.Errorf("cannot delete the root path")
	}
	if !Has(obj, p) {
		return nil
	}
	if err := p.expr().DelOne(obj); err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

func ensureParents(obj any, p Path) error {
	cur := obj
	for i, s := range p[:len(p)-1] {
		switch c := cur.(type) {
		case map[string]any:
			if s.IsIndex {
				return fmt.Errorf("failed to set %s: %s is an object", p, p[:i+1])
			}
			next, ok := c[s.Key]
			if !ok || next == nil {
				next = map[string]any{}
				c[s.Key] = next
			}
			cur = next
		case []any:
			if !s.IsIndex || s.Index < 0 || s.Index >= len(c) {
				return fmt.Errorf("failed to set %s: %s is out of range", p, p[:i+1])
			}
			cur = c[s.Index]
		default:
			return fmt.Errorf("failed to set %s: %s is not a container", p, p[:i])
		}
	}
	return nil
}
