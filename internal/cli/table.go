package cli

import (
	"fmt"
	"io"
	"strings"
)

// tableColumnGap is the minimum space between columns.
const tableColumnGap = 3

// PlainTableWriter provides kubectl-style plain table output without
// box-drawing characters: upper-cased headers, space-aligned cells. The
// format survives copy/paste and pipes to grep, awk and cut.
type PlainTableWriter struct {
	headers     []string
	rows        [][]string
	widths      []int
	showHeaders bool
	out         io.Writer
}

// NewPlainTableWriter creates a table writer with the given column headers.
// Headers are displayed in uppercase; use SetNoHeaders(true) to suppress
// them.
func NewPlainTableWriter(out io.Writer, headers ...string) *PlainTableWriter {
	w := &PlainTableWriter{
		headers:     make([]string, len(headers)),
		widths:      make([]int, len(headers)),
		showHeaders: true,
		out:         out,
	}
	for i, h := range headers {
		w.headers[i] = strings.ToUpper(h)
		w.widths[i] = len(w.headers[i])
	}
	return w
}

// SetNoHeaders controls whether to suppress the header row.
func (w *PlainTableWriter) SetNoHeaders(noHeaders bool) {
	w.showHeaders = !noHeaders
}

// AppendRow adds a row. Missing cells render empty; extra cells are dropped.
func (w *PlainTableWriter) AppendRow(cells ...string) {
	row := make([]string, len(w.headers))
	for i := range w.headers {
		if i < len(cells) {
			row[i] = cells[i]
			if len(cells[i]) > w.widths[i] {
				w.widths[i] = len(cells[i])
			}
		}
	}
	w.rows = append(w.rows, row)
}

// Render writes the table. Nothing is written when there are no columns, or
// when there are no rows and headers are suppressed.
func (w *PlainTableWriter) Render() {
	if len(w.headers) == 0 {
		return
	}
	if len(w.rows) == 0 && !w.showHeaders {
		return
	}

	if w.showHeaders {
		w.printRow(w.headers)
	}
	for _, row := range w.rows {
		w.printRow(row)
	}
}

// printRow prints one row with column alignment. The last column is never
// padded so lines carry no trailing spaces.
func (w *PlainTableWriter) printRow(row []string) {
	var sb strings.Builder
	for i, cell := range row {
		if i == len(row)-1 {
			sb.WriteString(cell)
		} else {
			fmt.Fprintf(&sb, "%-*s", w.widths[i]+tableColumnGap, cell)
		}
	}
	fmt.Fprintln(w.out, strings.TrimRight(sb.String(), " "))
}
