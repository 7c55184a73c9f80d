// Package report summarizes a crawl and writes the summary out.
//
// A Summary is filled from DidCrawl events with Observe and sealed with
// Finish. Writers render it in different formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with tables and a mermaid pie chart
//
// Writers implement the Writer interface and can be combined with MultiWriter.
package report
