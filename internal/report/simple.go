package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs human-readable text summaries for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists every failure instead of only counting them.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables the failure listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeTotals(&sb, summary)
	w.writeHosts(&sb, summary)
	w.writeDepths(&sb, summary)
	w.writeErrors(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         ACTOCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seeds:          %s\n", strings.Join(s.Seeds, ", "))
	if s.RunID != "" {
		fmt.Fprintf(sb, "Run ID:         %s\n", s.RunID)
	}
	fmt.Fprintf(sb, "Started:        %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", s.Duration().Round(timeRounding))
	fmt.Fprintf(sb, "Status:         %s\n", statusText(s))
	sb.WriteString("\n")
}

func statusText(s *Summary) string {
	if s.Interrupted {
		return "INTERRUPTED (partial results)"
	}
	return "Complete"
}

func (w *SimpleWriter) writeTotals(sb *strings.Builder, s *Summary) {
	writeSection(sb, "TOTALS")

	fmt.Fprintf(sb, "  REQUESTS:  %d\n", s.Requests)
	fmt.Fprintf(sb, "  SUCCEEDED: %d\n", s.Succeeded)
	fmt.Fprintf(sb, "  FAILED:    %d\n", s.Failed)
	fmt.Fprintf(sb, "  MAX DEPTH: %d\n", s.MaxDepth)
	fmt.Fprintf(sb, "  SUCCESS:   %.1f%%\n", s.SuccessRate()*100)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHosts(sb *strings.Builder, s *Summary) {
	if len(s.Hosts) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "HOSTS")

	if len(s.Hosts) == 0 {
		sb.WriteString("  No hosts crawled\n\n")
		return
	}
	for _, h := range s.Hosts {
		fmt.Fprintf(sb, "  [+] %s: %d requests (%d ok, %d failed)\n", h.Host, h.Requests, h.Succeeded, h.Failed)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDepths(sb *strings.Builder, s *Summary) {
	if len(s.Depths) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "DEPTHS")

	if len(s.Depths) == 0 {
		sb.WriteString("  No requests\n\n")
		return
	}
	for _, d := range s.Depths {
		fmt.Fprintf(sb, "  depth %d: %d\n", d.Depth, d.Requests)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeErrors(sb *strings.Builder, s *Summary) {
	if len(s.Errors) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "ERRORS")

	if len(s.Errors) == 0 {
		sb.WriteString("  No errors\n\n")
		return
	}
	for _, e := range s.Errors {
		fmt.Fprintf(sb, "  [!] %s: %d\n", e.Kind, e.Count)
	}
	sb.WriteString("\n")

	if !w.verbose {
		return
	}
	for _, f := range s.Failures {
		fmt.Fprintf(sb, "  * [%d] [d=%d] %s\n", f.Order, f.Depth, f.URL)
		fmt.Fprintf(sb, "    Error: %s\n", f.Error)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by actocrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
