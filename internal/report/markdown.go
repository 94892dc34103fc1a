package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/webcrawl/internal/model"
)

// MarkdownWriter outputs crawl results in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	// maxPages limits how many page rows appear in the pages table.
	// Zero means no limit.
	maxPages int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxPages caps the number of rows in the pages table.
func WithMaxPages(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxPages = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result.Summary)
	w.writeSkips(md, result.Summary)
	w.writePages(md, result.Records)

	return len(md.String()), md.Build()
}

// writeHeader writes the crawl overview table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	robots := "enabled"
	if !summary.RobotsCompliance {
		robots = "disabled"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + summary.StartURL + "`"},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed.Round(10 * time.Millisecond).String()},
			{"Pages Fetched", strconv.Itoa(summary.PagesFetched)},
			{"URLs Visited", strconv.Itoa(summary.URLsVisited)},
			{"Domains", strings.Join(summary.Domains, ", ")},
			{"Total Links", strconv.Itoa(summary.TotalLinks)},
			{"Total Images", strconv.Itoa(summary.TotalImages)},
			{"Robots Compliance", robots},
		},
	})
	md.PlainText("")
}

// writeSkips writes the skipped-page breakdown, omitted when empty.
func (w *MarkdownWriter) writeSkips(md *markdown.Markdown, summary *model.Summary) {
	if summary.TotalSkipped() == 0 {
		return
	}

	md.H2("Skipped Pages")
	rows := make([][]string, 0, len(summary.Skipped))
	for _, reason := range summary.SkipReasons() {
		rows = append(rows, []string{reason, strconv.Itoa(summary.Skipped[reason])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Reason", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePages writes the per-page table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, records []*model.PageRecord) {
	md.H2("Pages")
	if len(records) == 0 {
		md.PlainText("No pages were fetched.")
		return
	}

	limit := len(records)
	if w.maxPages > 0 && w.maxPages < limit {
		limit = w.maxPages
	}

	rows := make([][]string, 0, limit)
	for _, rec := range records[:limit] {
		rows = append(rows, []string{
			rec.URL,
			escapePipes(rec.Title),
			strconv.Itoa(rec.StatusCode),
			strconv.Itoa(rec.TextLength),
			strconv.Itoa(len(rec.Links)),
			strconv.Itoa(len(rec.Images)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Title", "Status", "Text", "Links", "Images"},
		Rows:   rows,
	})

	if limit < len(records) {
		md.PlainText("")
		md.PlainTextf("…and %d more pages.", len(records)-limit)
	}
}

// escapePipes keeps titles from breaking markdown table cells.
func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
