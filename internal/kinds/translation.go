package kinds

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/marshal"
)

// Translation is the translation kind. Each translation is a single JSON
// file named <ref>.json inside its locale directory, where ref is either
// <locale> or <namespace>.<locale>.
func Translation() *Kind {
	return &Kind{
		Kind: &marshal.Kind{
			Name:          "translation",
			DescriptorFor: func(ref string) string { return ref + ".json" },
			Opaque:        true,
		},
		Command:    "translation",
		Dir:        "translations",
		Collection: "translations",
		Body:       "translation",
		Grouped:    true,
		FromRemote: translationFromRemote,
		ToRemote:   translationToRemote,
		entryKey: func(e ir.Entry) string {
			locale, _ := e["locale_code"].(string)
			namespace, _ := e["namespace"].(string)
			return TranslationRef(namespace, locale)
		},
		target: func(ref string) Target {
			namespace, locale := SplitTranslationRef(ref)
			t := Target{Path: "translations/" + url.PathEscape(locale), Query: url.Values{}}
			if namespace != "" {
				t.Query.Set("namespace", namespace)
			}
			return t
		},
		groupOf: func(ref string) string {
			_, locale := SplitTranslationRef(ref)
			return locale
		},
		recognize: recognizeTranslation,
		checkKey: func(ref string) error {
			namespace, locale := SplitTranslationRef(ref)
			if locale == "" || strings.HasSuffix(namespace, ".") {
				return fmt.Errorf("invalid translation ref %q: expected <locale> or <namespace>.<locale>", ref)
			}
			return nil
		},
	}
}

// TranslationRef joins a namespace and locale into a translation ref.
func TranslationRef(namespace, locale string) string {
	if namespace == "" {
		return locale
	}
	return namespace + "." + locale
}

// SplitTranslationRef splits a ref at its last dot.
func SplitTranslationRef(ref string) (namespace, locale string) {
	i := strings.LastIndex(ref, ".")
	if i < 0 {
		return "", ref
	}
	return ref[:i], ref[i+1:]
}

func recognizeTranslation(group, file string) (string, bool) {
	ref, ok := strings.CutSuffix(file, ".json")
	if !ok || ref == "" {
		return "", false
	}
	if _, locale := SplitTranslationRef(ref); locale != group {
		return "", false
	}
	return ref, true
}

func translationFromRemote(res ir.Resource) (ir.Resource, error) {
	raw, ok := res["content"].(string)
	if !ok {
		return nil, fmt.Errorf("translation has no content string")
	}
	content, err := marshal.ParseObject("content", []byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse translation content: %w", err)
	}
	return content, nil
}

func translationToRemote(ref string, obj ir.Resource) (ir.Resource, error) {
	namespace, locale := SplitTranslationRef(ref)
	content, err := marshal.EncodeCompactJSON(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode translation content: %w", err)
	}
	return ir.Resource{
		"locale_code": locale,
		"namespace":   namespace,
		"content":     string(content),
	}, nil
}
