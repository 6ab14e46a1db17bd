package pamedit

import (
	"fmt"
	"io"
	"strings"
)

// Writer serializes service files back to text. Lines are emitted in
// document order; PAM evaluates the stack top to bottom, so the writer
// never regroups or sorts rules.
type Writer struct{}

// NewWriter creates a new service file writer.
func NewWriter() *Writer {
	return &Writer{}
}

// FormatRule renders a single rule as one service-file line.
func (w *Writer) FormatRule(rule Rule) string {
	parts := []string{string(rule.Type), rule.Control, rule.Module}
	parts = append(parts, rule.Args...)

	line := strings.Join(parts, " ")
	if rule.Comment != "" {
		line += " # " + rule.Comment
	}
	return line
}

// Write serializes f to out, one line per Line entry. Raw lines are
// written verbatim so comments and blank lines survive a rewrite.
func (w *Writer) Write(f *ServiceFile, out io.Writer) error {
	if f == nil {
		return fmt.Errorf("service file cannot be nil")
	}

	for i, ln := range f.Lines {
		var text string
		if ln.Rule != nil {
			text = w.FormatRule(*ln.Rule)
		} else {
			text = ln.Raw
		}
		if _, err := io.WriteString(out, text+"\n"); err != nil {
			return fmt.Errorf("error writing line %d: %w", i+1, err)
		}
	}

	return nil
}

// WriteString returns the serialized service file as a string.
func (w *Writer) WriteString(f *ServiceFile) (string, error) {
	var b strings.Builder
	if err := w.Write(f, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
