package marshal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/tether/internal/backup"
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/objpath"
)

type testSteps struct{}

func (testSteps) Elements(obj map[string]any) []Element {
	steps, _ := obj["steps"].([]any)
	var out []Element
	for i, s := range steps {
		step, ok := s.(map[string]any)
		if !ok {
			continue
		}
		tpl, ok := step["template"].(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Element{
			Path:  objpath.New(objpath.Key("steps"), objpath.Index(i), objpath.Key("template")),
			Value: tpl,
			Owner: step,
		})
	}
	return out
}

func (testSteps) ElementID(el Element) string {
	ref, _ := el.Owner["ref"].(string)
	return ref
}

func (testSteps) Annotation(el Element) ir.Annotation {
	ann, _ := DecodeAnnotation(el.Value[ir.AnnotationKey])
	return ann
}

func testKind() *Kind {
	return &Kind{
		Name:           "workflow",
		DescriptorFile: "workflow.json",
		SchemaURL:      "https://schemas.tether.dev/workflow.json",
		Collections:    []Collection{testSteps{}},
		JSONFields:     []string{"visual_blocks"},
	}
}

func workflowResource() map[string]any {
	return map[string]any{
		"key":        "welcome",
		"name":       "Welcome",
		"created_at": "2026-01-01T00:00:00Z",
		ir.AnnotationKey: map[string]any{
			"extractable_fields": map[string]any{},
			"readonly_fields":    []any{"key", "created_at"},
		},
		"steps": []any{
			map[string]any{
				"ref":  "email_1",
				"type": "channel",
				"template": map[string]any{
					"subject":   "Hi <there>",
					"html_body": "<p>Hello {{ recipient.name }}</p>",
					"visual_blocks": []any{
						map[string]any{"type": "markdown", "content": "# Hello"},
					},
					"settings": map[string]any{"pre_content": "pre"},
					ir.AnnotationKey: map[string]any{
						"extractable_fields": map[string]any{
							"html_body":            map[string]any{"default": true, "file_ext": "html"},
							"visual_blocks":        map[string]any{"default": true, "file_ext": "json"},
							"settings.pre_content": map[string]any{"default": false, "file_ext": "txt"},
						},
						"readonly_fields": []any{},
					},
				},
			},
		},
	}
}

func TestExtractScenario(t *testing.T) {
	kind := &Kind{Name: "thing", DescriptorFile: "x.json"}
	resource := map[string]any{
		"key":        "x",
		"name":       "X",
		"body":       "hello",
		"created_at": "t0",
		ir.AnnotationKey: map[string]any{
			"extractable_fields": map[string]any{
				"body": map[string]any{"default": true, "file_ext": "txt"},
			},
			"readonly_fields": []any{"key", "created_at"},
		},
	}

	bundle, err := Extract(kind, "x.json", resource, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Bundle{
		"x.json": map[string]any{
			"name":  "X",
			"body@": "body.txt",
			ir.ReadonlyKey: ReadonlyFields{
				{Key: "key", Value: "x"},
				{Key: "created_at", Value: "t0"},
			},
		},
		"body.txt": "hello",
	}, bundle)

	data, err := EncodeContent(bundle["x.json"])
	require.NoError(t, err)
	assert.Equal(t, `{
  "__readonly": {
    "key": "x",
    "created_at": "t0"
  },
  "body@": "body.txt",
  "name": "X"
}
`, string(data))
}

func TestExtractDoesNotMutateInput(t *testing.T) {
	resource := workflowResource()
	_, err := Extract(testKind(), "workflow.json", resource, nil)
	require.NoError(t, err)
	assert.Equal(t, workflowResource(), resource)
}

func TestExtractNestedDefaults(t *testing.T) {
	bundle, err := Extract(testKind(), "workflow.json", workflowResource(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"email_1/html_body.html", "email_1/visual_blocks.json", "workflow.json"}, bundle.Paths())
	assert.Equal(t, "<p>Hello {{ recipient.name }}</p>", bundle["email_1/html_body.html"])

	desc := bundle["workflow.json"].(map[string]any)
	assert.Equal(t, "https://schemas.tether.dev/workflow.json", desc[ir.SchemaKey])
	assert.NotContains(t, desc, "key")
	assert.NotContains(t, desc, "created_at")
	assert.NotContains(t, desc, ir.AnnotationKey)

	tpl, ok := objpath.Get(desc, objpath.MustParse("steps[0].template"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"subject":        "Hi <there>",
		"html_body@":     "email_1/html_body.html",
		"visual_blocks@": "email_1/visual_blocks.json",
		"settings":       map[string]any{"pre_content": "pre"},
	}, tpl)
}

func TestExtractDefaultLayoutIsStable(t *testing.T) {
	first, err := Extract(testKind(), "workflow.json", workflowResource(), nil)
	require.NoError(t, err)
	second, err := Extract(testKind(), "workflow.json", workflowResource(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Paths(), second.Paths())
	assert.Equal(t, first, second)
}

func TestExtractPreservesLocalLayout(t *testing.T) {
	local := map[string]any{
		"steps": []any{
			map[string]any{
				"ref": "email_1",
				"template": map[string]any{
					"html_body@": "templates/welcome.html",
					"settings":   map[string]any{"pre_content@": "email_1/pre.txt"},
				},
			},
		},
	}

	bundle, err := Extract(testKind(), "workflow.json", workflowResource(), local)
	require.NoError(t, err)

	assert.Equal(t, "<p>Hello {{ recipient.name }}</p>", bundle["templates/welcome.html"])
	assert.Equal(t, "pre", bundle["email_1/pre.txt"], "a non-default field the user extracted stays extracted")
	assert.NotContains(t, bundle, "email_1/html_body.html")

	desc := bundle["workflow.json"].(map[string]any)
	v, _ := objpath.Get(desc, objpath.MustParse("steps[0].template.html_body@"))
	assert.Equal(t, "templates/welcome.html", v)
}

func TestExtractMatchesLocalElementsByRef(t *testing.T) {
	resource := workflowResource()
	steps := resource["steps"].([]any)
	other := objpath.CopyMap(steps[0].(map[string]any))
	other["ref"] = "email_2"
	resource["steps"] = []any{other, steps[0]}

	local := map[string]any{
		"steps": []any{
			map[string]any{"ref": "email_1", "template": map[string]any{"html_body@": "custom.html"}},
		},
	}

	bundle, err := Extract(testKind(), "workflow.json", resource, local)
	require.NoError(t, err)
	assert.Contains(t, bundle, "custom.html")
	assert.Contains(t, bundle, "email_2/html_body.html")
}

func TestExtractIgnoresUnsafePriorPath(t *testing.T) {
	local := map[string]any{
		"steps": []any{
			map[string]any{"ref": "email_1", "template": map[string]any{"html_body@": "../../outside.html"}},
		},
	}

	bundle, err := Extract(testKind(), "workflow.json", workflowResource(), local)
	require.NoError(t, err)
	assert.Contains(t, bundle, "email_1/html_body.html")
}

func TestExtractPathCollision(t *testing.T) {
	kind := &Kind{Name: "thing", DescriptorFile: "thing.json"}
	resource := map[string]any{
		"a": "one",
		"b": "two",
		ir.AnnotationKey: map[string]any{
			"extractable_fields": map[string]any{
				"a": map[string]any{"default": true, "file_ext": "txt"},
				"b": map[string]any{"default": true, "file_ext": "txt"},
			},
		},
	}
	local := map[string]any{"a@": "same.txt", "b@": "same.txt"}

	_, err := Extract(kind, "thing.json", resource, local)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathCollision))

	_, err = Extract(kind, "thing.json", resource, map[string]any{"a@": "thing.json"})
	assert.True(t, errors.Is(err, ErrPathCollision), "the descriptor path cannot be claimed")
}

func TestExtractEmptyContent(t *testing.T) {
	kind := &Kind{Name: "thing", DescriptorFile: "thing.json", Static: func(map[string]any) ir.Annotation {
		return ir.Annotation{ExtractableFields: map[string]ir.ExtractableField{"body": {Default: true, FileExt: ".md"}}}
	}}

	bundle, err := Extract(kind, "thing.json", map[string]any{"body": ""}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", bundle["body.md"])

	bundle, err = Extract(kind, "thing.json", map[string]any{"title": "t"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"thing.json"}, bundle.Paths(), "absent fields are not extracted")
}

func TestReadonlyStripping(t *testing.T) {
	ann := ir.Annotation{ReadonlyFields: []string{"sha", "environment", "key", "settings.locked"}}
	obj := map[string]any{
		"key":         "k",
		"name":        "N",
		"environment": "development",
		"sha":         "abc",
		"settings":    map[string]any{"locked": true, "open": true},
	}

	StripReadonly(obj, ann)

	assert.Equal(t, map[string]any{
		"name":     "N",
		"settings": map[string]any{"open": true},
		ir.ReadonlyKey: ReadonlyFields{
			{Key: "sha", Value: "abc"},
			{Key: "environment", Value: "development"},
			{Key: "key", Value: "k"},
			{Key: "settings.locked", Value: true},
		},
	}, obj)

	data, err := EncodeContent(obj[ir.ReadonlyKey])
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"sha\": \"abc\",\n  \"environment\": \"development\",\n  \"key\": \"k\",\n  \"settings.locked\": true\n}\n", string(data))
}

func TestRoundTrip(t *testing.T) {
	fs := memfs.New()
	kind := testKind()

	bundle, err := Extract(kind, "workflow.json", workflowResource(), nil)
	require.NoError(t, err)
	require.NoError(t, WriteBundle(fs, bundle))

	got, err := Inline(fs, kind, "workflow.json", InlineOptions{})
	require.NoError(t, err)

	want := workflowResource()
	delete(want, "key")
	delete(want, "created_at")
	objpath.OmitDeep(want, ir.AnnotationKey)
	assert.Equal(t, want, got)
}

func TestInlineDescriptorOnly(t *testing.T) {
	fs := memfs.New()
	bundle, err := Extract(testKind(), "workflow.json", workflowResource(), nil)
	require.NoError(t, err)
	require.NoError(t, WriteBundle(fs, bundle))

	got, err := Inline(fs, testKind(), "workflow.json", InlineOptions{DescriptorOnly: true})
	require.NoError(t, err)
	assert.Contains(t, got, ir.ReadonlyKey)
	v, _ := objpath.Get(got, objpath.MustParse("steps[0].template.html_body@"))
	assert.Equal(t, "email_1/html_body.html", v)
}

func TestInlineRejectsPathTraversal(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "workflow.json", []byte(`{"name": "X", "body@": "../../etc/passwd"}`), 0o644))

	got, err := Inline(fs, testKind(), "workflow.json", InlineOptions{})
	require.Error(t, err)

	var derrs DataErrors
	require.True(t, errors.As(err, &derrs))
	require.Len(t, derrs, 1)
	assert.Equal(t, "body", derrs[0].Field)

	var perr *PathSafetyError
	assert.True(t, errors.As(err, &perr))
	assert.NotContains(t, got, "body")
	assert.NotContains(t, got, "body@")
}

func TestInlineDoesNotFollowSymlinksOutOfDir(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s3cret"), 0o600))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow.json"), []byte(`{"name": "X", "body@": "body.txt"}`), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "body.txt")))

	got, err := Inline(DirFS(ir.DirContext{Abspath: dir}), testKind(), "workflow.json", InlineOptions{})
	require.Error(t, err)

	var derrs DataErrors
	require.True(t, errors.As(err, &derrs))
	require.Len(t, derrs, 1)
	assert.Equal(t, "body", derrs[0].Field)
	assert.NotContains(t, err.Error(), "s3cret")
	assert.Equal(t, map[string]any{"name": "X"}, got)
}

func TestInlineMarkerWinsOverPlainField(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "workflow.json", []byte(`{"name": "X", "body": "stale", "body@": "body.txt"}`), 0o644))
	require.NoError(t, util.WriteFile(fs, "body.txt", []byte("Hello {{ recipient.name }}"), 0o644))

	got, err := Inline(fs, testKind(), "workflow.json", InlineOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "X", "body": "Hello {{ recipient.name }}"}, got)
}

func TestInlineMarkerWithMissingFileDropsPlainField(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "workflow.json", []byte(`{"name": "X", "body": "stale", "body@": "missing.txt"}`), 0o644))

	got, err := Inline(fs, testKind(), "workflow.json", InlineOptions{})
	var derrs DataErrors
	require.True(t, errors.As(err, &derrs))
	require.Len(t, derrs, 1)
	assert.Equal(t, "body", derrs[0].Field)
	assert.Contains(t, derrs[0].Message, "extracted file not found: missing.txt")
	assert.Equal(t, map[string]any{"name": "X"}, got)
}

func TestInlineCollectsAllFieldErrors(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "workflow.json", []byte(`{
  "steps": [
    {"ref": "a", "template": {"html_body@": "a/missing.html", "visual_blocks@": "a/blocks.json"}},
    {"ref": "b", "template": {"text_body@": "b/text.txt"}}
  ]
}`), 0o644))
	require.NoError(t, util.WriteFile(fs, "a/blocks.json", []byte(`[{"type": `), 0o644))
	require.NoError(t, util.WriteFile(fs, "b/text.txt", []byte(`{% if recipient %}unterminated`), 0o644))

	got, err := Inline(fs, testKind(), "workflow.json", InlineOptions{})
	var derrs DataErrors
	require.True(t, errors.As(err, &derrs))

	fields := make([]string, len(derrs))
	for i, e := range derrs {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{
		"steps[0].template.html_body",
		"steps[0].template.visual_blocks",
		"steps[1].template.text_body",
	}, fields)

	var serr *SyntaxError
	assert.True(t, errors.As(err, &serr), "bad JSON in a JSON-typed file is a syntax problem on that field")

	tpl, _ := objpath.Get(got, objpath.MustParse("steps[0].template"))
	for k := range tpl.(map[string]any) {
		assert.NotContains(t, k, "@")
	}
}

func TestInlineSyntaxError(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "workflow.json", []byte("{\n  \"name\": \"X\",\n  oops\n}"), 0o644))

	_, err := Inline(fs, testKind(), "workflow.json", InlineOptions{})
	var serr *SyntaxError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "workflow.json", serr.File)
	assert.Equal(t, 3, serr.Line)
	assert.False(t, errors.As(err, new(DataErrors)))
}

func TestInlineStripsSidecars(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "workflow.json", []byte(`{
  "$schema": "https://schemas.tether.dev/workflow.json",
  "__readonly": {"key": "welcome"},
  "__annotation": {"readonly_fields": ["key"]},
  "name": "Welcome",
  "steps": [{"ref": "a", "template": {"__readonly": {"x": 1}, "subject": "s"}}]
}`), 0o644))

	got, err := Inline(fs, testKind(), "workflow.json", InlineOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":  "Welcome",
		"steps": []any{map[string]any{"ref": "a", "template": map[string]any{"subject": "s"}}},
	}, got)
}

func TestWriteBundleIsIdempotent(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "README.md", []byte("mine"), 0o644))

	bundle, err := Extract(testKind(), "workflow.json", workflowResource(), nil)
	require.NoError(t, err)
	require.NoError(t, WriteBundle(fs, bundle))
	first := snapshotFS(t, fs)
	require.NoError(t, WriteBundle(fs, bundle))
	second := snapshotFS(t, fs)

	assert.Equal(t, first, second)
	assert.Equal(t, "mine", first["README.md"], "files outside the bundle are untouched")
	assert.Contains(t, first["workflow.json"], `"subject": "Hi <there>"`, "HTML is not escaped")
	assert.Contains(t, first["workflow.json"], "{\n  \"$schema\"")
}

func TestWriteBundleRestoresOnFailure(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("old"), 0o644))
	require.NoError(t, util.WriteFile(fs, "c", []byte("a file, not a directory"), 0o644))

	err := WriteBundle(fs, ir.Bundle{"a.txt": "new", "c/d.txt": "x"})
	require.Error(t, err)

	data, err := util.ReadFile(fs, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestWriteBundleRejectsUnsafePaths(t *testing.T) {
	err := WriteBundle(memfs.New(), ir.Bundle{"../x.txt": "x"})
	var perr *PathSafetyError
	assert.True(t, errors.As(err, &perr))
}

func snapshotFS(t *testing.T, fs billy.Filesystem) map[string]string {
	t.Helper()
	files, err := backup.Collect(fs, ".")
	require.NoError(t, err)
	out := make(map[string]string, len(files))
	for k, v := range files {
		out[k] = string(v)
	}
	return out
}
