package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/webcrawl/internal/model"
)

// CSVWriter outputs crawl results as a flat CSV table, one row per page.
// Nested fields are flattened: headings become per-level counts plus the
// joined h1 texts, links and images become counts.
//
// Design decision: We use standard encoding/csv because RFC 4180 quoting
// is all the format needs; the flattening is the interesting part, not
// the encoding.
type CSVWriter struct {
	baseWriter
}

// csvHeader is the fixed column order of the CSV output.
var csvHeader = []string{
	"url",
	"domain",
	"title",
	"meta_description",
	"meta_keywords",
	"text_length",
	"status_code",
	"timestamp",
	"num_links",
	"num_images",
	"h1_count",
	"h2_count",
	"h3_count",
	"h1_text",
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one CSV row per page record, preceded by a header row.
func (w *CSVWriter) Write(result *model.CrawlResult) (int, error) {
	counter := &countingWriter{w: w.output}
	cw := csv.NewWriter(counter)

	if err := cw.Write(csvHeader); err != nil {
		return counter.n, err
	}
	for _, rec := range result.Records {
		if err := cw.Write(recordRow(rec)); err != nil {
			return counter.n, err
		}
	}
	cw.Flush()
	return counter.n, cw.Error()
}

// recordRow flattens a page record into CSV columns.
func recordRow(rec *model.PageRecord) []string {
	return []string{
		rec.URL,
		rec.Domain,
		rec.Title,
		rec.MetaDescription,
		rec.MetaKeywords,
		strconv.Itoa(rec.TextLength),
		strconv.Itoa(rec.StatusCode),
		rec.Timestamp.Format(time.RFC3339),
		strconv.Itoa(len(rec.Links)),
		strconv.Itoa(len(rec.Images)),
		strconv.Itoa(len(rec.Headings.H1)),
		strconv.Itoa(len(rec.Headings.H2)),
		strconv.Itoa(len(rec.Headings.H3)),
		strings.Join(rec.Headings.H1, "; "),
	}
}

// countingWriter counts bytes passed through to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
