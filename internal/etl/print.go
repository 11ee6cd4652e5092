package etl

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var titleColor = color.New(color.FgCyan, color.Bold)

// PrintQuery writes a titled query result to w in q's format.
func PrintQuery(w io.Writer, q Query, res *QueryResult) {
	if q.Title != "" {
		titleColor.Fprintf(w, "%s:\n", q.Title)
	}

	switch q.Format {
	case FormatScalar:
		if len(res.Rows) > 0 && len(res.Rows[0]) > 0 {
			fmt.Fprintln(w, FormatValue(res.Rows[0][0]))
		} else {
			fmt.Fprintln(w)
		}
	case FormatFirstColumn:
		for _, row := range res.Rows {
			if len(row) > 0 {
				fmt.Fprintln(w, FormatValue(row[0]))
			}
		}
	default:
		PrintDataset(w, res.Columns, len(res.Rows), func(i int) []any { return res.Rows[i] })
	}
	fmt.Fprintln(w)
}

// PrintDataset writes a tab-aligned table with a header line.
func PrintDataset(w io.Writer, columns []string, n int, row func(int) []any) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for i := 0; i < n; i++ {
		values := row(i)
		cells := make([]string, len(values))
		for j, v := range values {
			cells[j] = FormatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}
