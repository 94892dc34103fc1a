package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/webcrawl/internal/model"
)

// SimpleWriter outputs human-readable text for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables per-page detail lines in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables per-page details in addition to the summary.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl result as readable text: one line per page,
// then the summary block.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString("CRAWL RESULT\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, rec := range result.Records {
		title := rec.Title
		if title == "" {
			title = "(no title)"
		}
		fmt.Fprintf(&sb, "[%d] %s\n", rec.StatusCode, rec.URL)
		fmt.Fprintf(&sb, "    %s\n", title)
		if w.verbose {
			fmt.Fprintf(&sb, "    text=%d links=%d images=%d h1=%d h2=%d h3=%d\n",
				rec.TextLength, len(rec.Links), len(rec.Images),
				len(rec.Headings.H1), len(rec.Headings.H2), len(rec.Headings.H3))
			if rec.MetaDescription != "" {
				fmt.Fprintf(&sb, "    %s\n", rec.MetaDescription)
			}
		}
	}
	if len(result.Records) > 0 {
		sb.WriteString("\n")
	}

	w.writeSummary(&sb, result.Summary)

	return w.output.Write([]byte(sb.String()))
}

// writeSummary renders the summary block.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString(strings.Repeat("-", 60) + "\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 60) + "\n")
	fmt.Fprintf(sb, "Start URL:      %s\n", summary.StartURL)
	fmt.Fprintf(sb, "Pages fetched:  %d\n", summary.PagesFetched)
	fmt.Fprintf(sb, "URLs visited:   %d\n", summary.URLsVisited)
	fmt.Fprintf(sb, "Domains:        %s\n", strings.Join(summary.Domains, ", "))
	fmt.Fprintf(sb, "Total links:    %d\n", summary.TotalLinks)
	fmt.Fprintf(sb, "Total images:   %d\n", summary.TotalImages)
	fmt.Fprintf(sb, "Elapsed:        %s\n", summary.Elapsed)

	if summary.TotalSkipped() > 0 {
		fmt.Fprintf(sb, "Skipped:        %d\n", summary.TotalSkipped())
		for _, reason := range summary.SkipReasons() {
			fmt.Fprintf(sb, "  %-22s %d\n", reason, summary.Skipped[reason])
		}
	}
	if !summary.RobotsCompliance {
		sb.WriteString("Note: robots.txt compliance was disabled for this crawl\n")
	}
}
