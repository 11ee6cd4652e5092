package sources_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"banks/internal/etl"
	"banks/internal/etl/sources"
)

const page = `<html><body>
<p>By market capitalization</p>
<div><span class="mw-headline" id="By_market_capitalization">By market capitalization</span></div>
<div class="note">Data as of 2023</div>
<table class="wikitable">
<tr><th>Rank</th><th>Bank name</th><th>Market cap<br>(US$ billion)</th></tr>
<tr><td>1</td><td>JPMorgan Chase</td><td>432.92</td></tr>
<tr><td>2</td><td>Bank of America<sup>[2]</sup></td><td>231.52</td></tr>
<tr><td>3</td><td>ICBC <table><tr><td>nested</td></tr></table></td><td>194.56</td></tr>
</table>
<table><tr><th>Other</th></tr><tr><td>x</td></tr></table>
</body></html>`

// ─────────────────────────────────────────────────────────────
// ParseHTMLTable
// ─────────────────────────────────────────────────────────────

func TestParseHTMLTable(t *testing.T) {
	ds, err := sources.ParseHTMLTable(strings.NewReader(page), "By market capitalization")
	if err != nil {
		t.Fatalf("ParseHTMLTable: %v", err)
	}

	want := []string{"Rank", "Bank name", "Market cap (US$ billion)"}
	got := ds.Schema().FieldNames()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("header: got %q, want %q", got, want)
	}
	if ds.Len() != 3 {
		t.Fatalf("rows: got %d, want 3 (nested table rows must be skipped)", ds.Len())
	}

	names, _ := ds.Column("Bank name")
	if names.Values[1] != "Bank of America" {
		t.Errorf("footnote not stripped: %q", names.Values[1])
	}
	caps, _ := ds.Column(etl.MarketCapColumn)
	if caps.Type != etl.FieldReal || caps.Values[0] != 432.92 {
		t.Errorf("market cap: %+v", caps)
	}
	rank, _ := ds.Column("Rank")
	if rank.Type != etl.FieldInteger {
		t.Errorf("rank type: %q", rank.Type)
	}
}

func TestParseHTMLTable_MarkerMissing(t *testing.T) {
	_, err := sources.ParseHTMLTable(strings.NewReader(page), "By total assets")
	if !errors.Is(err, etl.ErrTableNotFound) {
		t.Fatalf("got %v, want ErrTableNotFound", err)
	}
}

func TestParseHTMLTable_NoTableAfterMarker(t *testing.T) {
	html := `<html><body><table><tr><td>1</td></tr></table><span>Marker</span><p>end</p></body></html>`
	_, err := sources.ParseHTMLTable(strings.NewReader(html), "Marker")
	if !errors.Is(err, etl.ErrTableNotFound) {
		t.Fatalf("got %v, want ErrTableNotFound", err)
	}
}

func TestParseHTMLTable_NonSpanMarker(t *testing.T) {
	html := `<html><body><h3>Top banks</h3><table><tr><th>A</th></tr><tr><td>1</td></tr></table></body></html>`
	ds, err := sources.ParseHTMLTable(strings.NewReader(html), "Top banks")
	if err != nil {
		t.Fatalf("ParseHTMLTable: %v", err)
	}
	if ds.Len() != 1 {
		t.Errorf("rows: got %d", ds.Len())
	}
}

func TestParseHTMLTable_GroupedMarketCap(t *testing.T) {
	html := `<html><body><span>Banks</span><table>
<tr><th>Rank</th><th>Bank name</th><th>Market cap<br>(US$ billion)</th></tr>
<tr><td>1</td><td>Big Bank</td><td>1,234.50</td></tr>
<tr><td>2</td><td>Small Bank</td><td>231.52</td></tr>
</table></body></html>`
	ds, err := sources.ParseHTMLTable(strings.NewReader(html), "Banks")
	if err != nil {
		t.Fatalf("ParseHTMLTable: %v", err)
	}
	caps, _ := ds.Column(etl.MarketCapColumn)
	if caps.Type != etl.FieldReal {
		t.Fatalf("market cap type: got %q, want real", caps.Type)
	}
	if caps.Values[0] != 1234.5 || caps.Values[1] != 231.52 {
		t.Errorf("market cap values: %v", caps.Values)
	}
}

// ─────────────────────────────────────────────────────────────
// HTMLTableSource over HTTP
// ─────────────────────────────────────────────────────────────

type lines []string

func (l *lines) Log(msg string) { *l = append(*l, msg) }

func TestHTMLTableSource_Read(t *testing.T) {
	var gotUA, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotHeader = r.Header.Get("X-Test")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	var log lines
	src := &sources.HTMLTableSource{Client: srv.Client(), Log: &log}
	ds, err := src.Read(context.Background(), etl.SourceConfig{
		"url":     srv.URL,
		"marker":  "By market capitalization",
		"headers": `{"X-Test":"yes"}`,
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ds.Len() != 3 {
		t.Errorf("rows: got %d", ds.Len())
	}
	if gotUA == "" || gotHeader != "yes" {
		t.Errorf("headers: ua=%q x-test=%q", gotUA, gotHeader)
	}
	if len(log) == 0 || !strings.HasPrefix(log[len(log)-1], "Data extraction complete") {
		t.Errorf("log: %v", log)
	}
}

func TestHTMLTableSource_HTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var log lines
	src := &sources.HTMLTableSource{Client: srv.Client(), Log: &log}
	_, err := src.Extract(context.Background(), srv.URL, "x", "")
	if !errors.Is(err, etl.ErrNetwork) {
		t.Fatalf("404: got %v, want ErrNetwork", err)
	}
	if len(log) != 1 || !strings.HasPrefix(log[0], "Network error") {
		t.Errorf("log: %v", log)
	}

	srv.Close()
	if _, err := src.Extract(context.Background(), srv.URL, "x", ""); !errors.Is(err, etl.ErrNetwork) {
		t.Fatalf("closed server: got %v, want ErrNetwork", err)
	}
}

func TestHTMLTableSource_RequiresConfig(t *testing.T) {
	src := &sources.HTMLTableSource{}
	if _, err := src.Read(context.Background(), etl.SourceConfig{"url": "http://example.invalid"}); err == nil {
		t.Fatal("expected missing marker to fail")
	}
}

// ─────────────────────────────────────────────────────────────
// Registry and CSV source
// ─────────────────────────────────────────────────────────────

func TestRegistry(t *testing.T) {
	for _, typ := range []string{"html_table", "csv_file"} {
		if _, err := etl.GetSource(typ); err != nil {
			t.Errorf("source %q not registered: %v", typ, err)
		}
	}
}

func TestResolveSource_BindsDeps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	var log lines
	src, err := etl.ResolveSource("html_table", etl.SourceDeps{Client: srv.Client(), Log: &log})
	if err != nil {
		t.Fatalf("ResolveSource: %v", err)
	}
	if _, err := src.Read(context.Background(), etl.SourceConfig{"url": srv.URL, "marker": "By market capitalization"}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(log) == 0 {
		t.Error("bound html_table source should log through the injected logger")
	}

	// The registered template stays unbound.
	tmpl, _ := etl.GetSource("html_table")
	if tmpl == src {
		t.Error("ResolveSource returned the shared registry instance")
	}

	if _, err := etl.ResolveSource("ftp", etl.SourceDeps{}); err == nil {
		t.Error("unknown source type should fail")
	}
}

func TestListSources_Sorted(t *testing.T) {
	var types []string
	for _, spec := range etl.ListSources() {
		types = append(types, spec.Type)
	}
	if strings.Join(types, ",") != "csv_file,html_table" {
		t.Errorf("sources: %v", types)
	}
}

func TestCSVFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banks.csv")
	if err := os.WriteFile(path, []byte("Rank;Bank name\n1;HSBC\n2;BNP\n"), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := etl.GetSource("csv_file")
	if err != nil {
		t.Fatal(err)
	}
	ds, err := src.Read(context.Background(), etl.SourceConfig{"filePath": path, "delimiter": ";"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ds.Len() != 2 || ds.Width() != 2 {
		t.Errorf("shape: got %dx%d", ds.Len(), ds.Width())
	}
}

func TestCSVFileSource_MissingFile(t *testing.T) {
	var log lines
	src, err := etl.ResolveSource("csv_file", etl.SourceDeps{Log: &log})
	if err != nil {
		t.Fatal(err)
	}
	_, err = src.Read(context.Background(), etl.SourceConfig{"filePath": filepath.Join(t.TempDir(), "none.csv")})
	if !errors.Is(err, etl.ErrResourceNotFound) {
		t.Fatalf("got %v, want ErrResourceNotFound", err)
	}
	if len(log) != 1 || !strings.HasPrefix(log[0], "Data extraction error") {
		t.Errorf("log: %v", log)
	}

	if _, err := src.Read(context.Background(), etl.SourceConfig{}); !errors.Is(err, etl.ErrUnexpected) {
		t.Errorf("missing filePath: got %v", err)
	}
}
