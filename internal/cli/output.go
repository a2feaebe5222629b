package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/picklr-io/tether/internal/engine"
	"github.com/picklr-io/tether/internal/marshal"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	keyStyle     = lipgloss.NewStyle().Bold(true)
)

var pastTense = map[string]string{
	engine.ActionPull:     "pulled",
	engine.ActionPush:     "pushed",
	engine.ActionValidate: "validated",
	engine.ActionPrune:    "removed",
}

// progress prints one line per finished resource.
func progress(w io.Writer) engine.Callback {
	return func(e engine.Event) {
		switch e.Status {
		case engine.StatusCompleted:
			line := fmt.Sprintf("%s %s %s", pastTense[e.Action], e.Kind, keyStyle.Render(e.Ref))
			if e.Action == engine.ActionPrune {
				fmt.Fprintln(w, warnStyle.Render("- ")+line)
				return
			}
			fmt.Fprintln(w, successStyle.Render("✓ ")+line+dimStyle.Render(fmt.Sprintf(" (%s)", e.Duration.Round(time.Millisecond))))
		case engine.StatusFailed:
			fmt.Fprintln(w, errorStyle.Render("✗ ")+fmt.Sprintf("%s %s %s", e.Action, e.Kind, keyStyle.Render(e.Ref)))
		}
	}
}

// reportErrors prints every per-resource error in err and returns a short
// summary error. Errors that are not per-resource are returned as is.
func reportErrors(w io.Writer, action string, err error) error {
	if err == nil {
		return nil
	}
	resErrs := resourceErrors(err)
	if len(resErrs) == 0 {
		return err
	}

	fmt.Fprintln(w)
	for _, re := range resErrs {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%s %q", re.Kind, re.Ref)))
		for _, e := range re.Errs {
			for _, line := range strings.Split(e.Error(), "\n") {
				fmt.Fprintln(w, "  "+line)
			}
		}
	}
	noun := "resource"
	if len(resErrs) > 1 {
		noun = "resources"
	}
	return fmt.Errorf("%s failed for %d %s", action, len(resErrs), noun)
}

func resourceErrors(err error) []*marshal.ResourceError {
	if re, ok := err.(*marshal.ResourceError); ok {
		return []*marshal.ResourceError{re}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*marshal.ResourceError
		for _, e := range joined.Unwrap() {
			out = append(out, resourceErrors(e)...)
		}
		return out
	}
	var re *marshal.ResourceError
	if errors.As(err, &re) {
		return []*marshal.ResourceError{re}
	}
	return nil
}
