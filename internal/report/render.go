package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteText renders one line per finding followed by a summary line.
func WriteText(w io.Writer, r *Report) error {
	for _, f := range r.Findings {
		if _, err := fmt.Fprintln(w, f.String()); err != nil {
			return err
		}
	}
	s := r.Summary
	_, err := fmt.Fprintf(w, "%d documents (%d typed, %d unmanaged, %d excluded, %d ambiguous): %d errors, %d warnings\n",
		s.Documents, s.Typed, s.Unmanaged, s.Excluded, s.Ambiguous, s.Errors, s.Warnings)
	if err != nil {
		return err
	}
	if r.Aborted {
		_, err = fmt.Fprintln(w, "validation stopped early: maximum error count reached")
	}
	return err
}

// WriteJSON renders the whole report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	out := *r
	if out.Findings == nil {
		out.Findings = []ValidationError{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
