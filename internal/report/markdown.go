package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxFailureRows caps the failure table; the rest are counted only.
const maxFailureRows = 50

// MarkdownWriter outputs summaries in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeTotals(md, summary)
	w.writeHosts(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("ActoCrawl Report")
	md.PlainText("")

	rows := [][]string{}
	for _, seed := range s.Seeds {
		rows = append(rows, []string{"Seed", "`" + seed + "`"})
	}
	if s.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + s.RunID + "`"})
	}
	rows = append(rows,
		[]string{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", s.Duration().Round(timeRounding).String()},
		[]string{"Status", markdownStatus(s)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func markdownStatus(s *Summary) string {
	if s.Interrupted {
		return "⚠️ Interrupted (partial results)"
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, s *Summary) {
	md.H2("Totals")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Requests", strconv.Itoa(s.Requests)},
			{"🟢 Succeeded", strconv.Itoa(s.Succeeded)},
			{"🔴 Failed", strconv.Itoa(s.Failed)},
			{"Max Depth", strconv.FormatUint(s.MaxDepth, 10)},
			{"**Success Rate**", fmt.Sprintf("**%.1f%%**", s.SuccessRate()*100)},
		},
	})
	md.PlainText("")

	if s.Requests > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of successes and failure kinds.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Crawl Results"),
		piechart.WithShowData(true),
	)

	if s.Succeeded > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(s.Succeeded))
	}
	for _, e := range s.Errors {
		chart.LabelAndIntValue(e.Kind, uint64(e.Count))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Interrupted:
		md.Warningf("The crawl was interrupted after %d request(s); results are partial.", s.Requests)
	case s.Requests == 0:
		md.Note("No requests were crawled.")
	case s.Failed == s.Requests:
		md.Cautionf("All %d request(s) failed.", s.Failed)
	case s.Failed > 0:
		md.Importantf("%d of %d request(s) failed.", s.Failed, s.Requests)
	default:
		md.Tip("All requests succeeded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, s *Summary) {
	md.H2("Hosts")
	md.PlainText("")

	if len(s.Hosts) == 0 {
		md.PlainText("No hosts crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Hosts))
	for i, h := range s.Hosts {
		rows[i] = []string{
			"`" + h.Host + "`",
			strconv.Itoa(h.Requests),
			strconv.Itoa(h.Succeeded),
			strconv.Itoa(h.Failed),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Requests", "Succeeded", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")

	depths := make([]string, len(s.Depths))
	for i, d := range s.Depths {
		depths[i] = fmt.Sprintf("depth %d: %d request(s)", d.Depth, d.Requests)
	}
	if len(depths) > 0 {
		md.H3("Depths")
		md.PlainText("")
		md.BulletList(depths...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *Summary) {
	md.H2("Failures")
	md.PlainText("")

	if len(s.Failures) == 0 {
		md.PlainText("No failed requests.")
		md.PlainText("")
		return
	}

	shown := s.Failures
	if len(shown) > maxFailureRows {
		shown = shown[:maxFailureRows]
	}

	rows := make([][]string, len(shown))
	for i, f := range shown {
		rows[i] = []string{
			strconv.FormatUint(f.Order, 10),
			strconv.FormatUint(f.Depth, 10),
			truncateString(f.URL, 60),
			f.Kind,
			truncateString(f.Error, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Order", "Depth", "URL", "Kind", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	if rest := len(s.Failures) - len(shown); rest > 0 {
		md.PlainTextf("*%d more failure(s) omitted.*", rest)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by actocrawl*")
}
