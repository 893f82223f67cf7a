// Package cli provides output helpers for the faqrag command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/faqrag/internal/rag"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

type answerOutput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// WriteAnswer writes a question and its answer to w.
func WriteAnswer(w io.Writer, question, answer string, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answerOutput{Question: question, Answer: answer})
	}
	_, err := fmt.Fprintf(w, "%s\n", answer)
	return err
}

// WriteStatus writes index status to w.
func WriteStatus(w io.Writer, st *rag.Status, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "state:       %s\n", st.State)
	fmt.Fprintf(w, "entries:     %d   # indexed FAQ records\n", st.Entries)
	fmt.Fprintf(w, "index_path:  %s\n", st.IndexPath)
	if st.Source != "" {
		fmt.Fprintf(w, "source:      %s\n", st.Source)
	}
	if !st.BuiltAt.IsZero() {
		fmt.Fprintf(w, "built_at:    %s\n", st.BuiltAt.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "embedder:    %s\n", st.Embedder)
	fmt.Fprintf(w, "model:       %s\n", st.Model)
	if st.Error != "" {
		fmt.Fprintf(w, "error:       %s\n", st.Error)
	}
	return nil
}
