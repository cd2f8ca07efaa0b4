package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"nsresolve/internal/core/app"
	"nsresolve/internal/engine/diagnostics"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints the edited file, or a one-line summary when it was
// written in place.
func (e *env) printResult(res app.Result, write bool) error {
	if e.json {
		return writeJSON(e.out, res)
	}
	switch {
	case res.Cancelled:
		fmt.Fprintln(e.out, "cancelled")
	case write && res.Written:
		fmt.Fprintf(e.out, "%s: updated\n", e.rel(res.Path))
	case write:
		fmt.Fprintf(e.out, "%s: unchanged\n", e.rel(res.Path))
	default:
		fmt.Fprint(e.out, res.Text)
	}
	return nil
}

// printDiagnostics prints one line per finding with 1-based positions.
func printDiagnostics(w io.Writer, name string, diags []diagnostics.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", name, d.Line+1, d.Character+1, d.Kind, d.Message)
	}
}
