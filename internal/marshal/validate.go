package marshal

import (
	"fmt"

	"github.com/osteele/liquid"
)

var liquidEngine = liquid.NewEngine()

// ValidateTemplateSyntax checks that content parses as a liquid template.
func ValidateTemplateSyntax(content string) error {
	if _, err := liquidEngine.ParseString(content); err != nil {
		return fmt.Errorf("invalid liquid syntax: %w", err)
	}
	return nil
}

// ValidateJSON parses the content of an extracted JSON file. Parse errors
// are *SyntaxError values naming filename.
func ValidateJSON(filename string, data []byte) (any, error) {
	return ParseJSON(filename, data)
}
