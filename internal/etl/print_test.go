package etl_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"banks/internal/etl"
)

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{int64(7), "7"},
		{80.0, "80.0"},
		{346.34, "346.34"},
		{"HSBC", "HSBC"},
	}
	for _, c := range cases {
		if got := etl.FormatValue(c.in); got != c.want {
			t.Errorf("FormatValue(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPrintQuery_Formats(t *testing.T) {
	color.NoColor = true
	res := &etl.QueryResult{
		Columns: []string{"Bank name", "MC_GBP_Billion"},
		Rows:    [][]any{{"JPMorgan Chase", 346.34}, {"Bank of America", 185.22}},
	}

	var buf bytes.Buffer
	etl.PrintQuery(&buf, etl.Query{Title: "First", Format: etl.FormatFirstColumn}, res)
	if got := buf.String(); got != "First:\nJPMorgan Chase\nBank of America\n\n" {
		t.Errorf("first_column: got %q", got)
	}

	buf.Reset()
	etl.PrintQuery(&buf, etl.Query{Title: "Avg", Format: etl.FormatScalar}, &etl.QueryResult{Columns: []string{"avg"}, Rows: [][]any{{151.5}}})
	if got := buf.String(); got != "Avg:\n151.5\n\n" {
		t.Errorf("scalar: got %q", got)
	}

	buf.Reset()
	etl.PrintQuery(&buf, etl.Query{Title: "All", Format: etl.FormatRows}, res)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("rows: got %q", buf.String())
	}
	if !strings.HasPrefix(lines[1], "Bank name") || !strings.Contains(lines[2], "346.34") {
		t.Errorf("rows: got %q", buf.String())
	}
}

func TestPrintQuery_EmptyScalar(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	etl.PrintQuery(&buf, etl.Query{Format: etl.FormatScalar}, &etl.QueryResult{})
	if buf.String() != "\n\n" {
		t.Errorf("got %q", buf.String())
	}
}
