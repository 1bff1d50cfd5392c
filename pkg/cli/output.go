package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"mercator-hq/erasure/pkg/deletion"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
)

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// NewFormatter returns the formatter for format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatText, "":
		return &TextFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want text or json)", format)
	}
}

// TextFormatter prints batches as a table and anything else with %v.
type TextFormatter struct{}

// FormatTo writes data to w.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	switch v := data.(type) {
	case *deletion.Batch:
		return writeBatchTable(w, []*deletion.Batch{v})
	case []*deletion.Batch:
		return writeBatchTable(w, v)
	default:
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
}

func writeBatchTable(w io.Writer, batches []*deletion.Batch) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tREQUESTED\tWINDOW START\tWINDOW END\tCOMPLETED\tREMAINING")
	for _, b := range batches {
		completed, remaining := "-", "-"
		if b.CompletionTime != nil {
			completed = b.CompletionTime.UTC().Format(time.RFC3339)
		}
		if b.RemainingInWindow != nil {
			remaining = strconv.Itoa(*b.RemainingInWindow)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID,
			b.Status(),
			b.RequestTime.UTC().Format(time.RFC3339),
			b.WindowStart.UTC().Format(time.RFC3339),
			b.WindowEnd.UTC().Format(time.RFC3339),
			completed,
			remaining,
		)
	}
	return tw.Flush()
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}
