package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"banks/internal/etl"
)

// ── HTML Table Source ───────────────────────────────────────
// Scrapes one table out of a web page. The table is located by a text
// marker (a caption or heading span) that precedes it in document order.

// HTMLTableSource implements etl.Source for HTML pages.
type HTMLTableSource struct {
	Client *http.Client
	Log    etl.Logger
}

func init() { etl.RegisterSource(&HTMLTableSource{}) }

func (s *HTMLTableSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "html_table",
		Label: "HTML Table",
		ConfigFields: []etl.ConfigField{
			{Key: "url", Label: "URL", Type: "url", Required: true, Help: "Page containing the table"},
			{Key: "marker", Label: "Table Marker", Type: "string", Required: true, Help: "Exact text of the element right before the table"},
			{Key: "headers", Label: "Headers", Type: "string", Required: false, Help: "JSON object of request headers"},
		},
	}
}

// WithDeps returns a source using deps' client and progress log.
func (s *HTMLTableSource) WithDeps(deps etl.SourceDeps) etl.Source {
	return &HTMLTableSource{Client: deps.Client, Log: deps.Log}
}

func (s *HTMLTableSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	ds, err := s.Read(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ds.Schema(), nil
}

func (s *HTMLTableSource) Read(ctx context.Context, cfg etl.SourceConfig) (*etl.Dataset, error) {
	if err := cfg.Require(s.Spec()); err != nil {
		return nil, etl.NewError(etl.StageExtract, etl.ErrUnexpected, err, "invalid source config")
	}
	return s.Extract(ctx, cfg.String("url"), cfg.String("marker"), cfg.String("headers"))
}

// Extract fetches url and parses the first table following marker.
func (s *HTMLTableSource) Extract(ctx context.Context, url, marker, headersJSON string) (*etl.Dataset, error) {
	log := s.logger()

	body, err := fetchHTTP(ctx, s.Client, url, headersJSON)
	if err != nil {
		log.Log(fmt.Sprintf("Network error: %v", err))
		return nil, err
	}

	ds, err := ParseHTMLTable(bytes.NewReader(body), marker)
	if err != nil {
		if errors.Is(err, etl.ErrTableNotFound) {
			log.Log(fmt.Sprintf("Data extraction error: %v", err))
		} else {
			log.Log(fmt.Sprintf("Unexpected error during extraction: %v", err))
		}
		return nil, err
	}

	log.Log("Data extraction complete. Initiating Transformation process")
	return ds, nil
}

func (s *HTMLTableSource) logger() etl.Logger {
	if s.Log == nil {
		return etl.NopLogger
	}
	return s.Log
}

// ParseHTMLTable locates the marker and the next table in document order
// and converts that table into a dataset. The first row is the header.
func ParseHTMLTable(r io.Reader, marker string) (*etl.Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, etl.NewError(etl.StageExtract, etl.ErrUnexpected, err, "parse html")
	}

	anchor := findMarker(doc, marker)
	if anchor.Length() == 0 {
		return nil, etl.NewError(etl.StageExtract, etl.ErrTableNotFound, nil,
			"table with attributes %q not found on the webpage", marker)
	}

	table := nextTable(doc, anchor)
	if table.Length() == 0 {
		return nil, etl.NewError(etl.StageExtract, etl.ErrTableNotFound, nil,
			"no table found after the element %q", marker)
	}

	header, rows := tableRows(table)
	if len(header) == 0 {
		return nil, etl.NewError(etl.StageExtract, etl.ErrUnexpected, nil, "table after %q has no rows", marker)
	}

	ds, err := etl.FromRows(header, rows)
	if err != nil {
		return nil, etl.NewError(etl.StageExtract, etl.ErrUnexpected, err, "build dataset")
	}
	return ds, nil
}

// findMarker prefers a span whose text is exactly marker, then falls back to
// the innermost element of any kind with that text.
func findMarker(doc *goquery.Document, marker string) *goquery.Selection {
	matches := func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == marker
	}

	if span := doc.Find("span").FilterFunction(matches).First(); span.Length() > 0 {
		return span
	}

	return doc.Find("body *").FilterFunction(matches).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Children().FilterFunction(matches).Length() == 0
	}).First()
}

// nextTable returns the first <table> that starts after anchor in document order.
func nextTable(doc *goquery.Document, anchor *goquery.Selection) *goquery.Selection {
	all := doc.Find("*")
	target := anchor.Get(0)
	pos := -1
	all.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.Get(0) == target {
			pos = i
			return false
		}
		return true
	})
	if pos < 0 {
		return doc.FindNodes()
	}
	return all.Slice(pos+1, all.Length()).Filter("table").First()
}

// tableRows returns the header cells and the data rows of table,
// ignoring rows that belong to nested tables.
func tableRows(table *goquery.Selection) ([]string, [][]string) {
	node := table.Get(0)
	var header []string
	var rows [][]string

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").Get(0) != node {
			return
		}
		var cells []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, td *goquery.Selection) {
			td.Find("br").ReplaceWithHtml(" ")
			cells = append(cells, etl.CleanCell(td.Text()))
		})
		if len(cells) == 0 {
			return
		}
		if header == nil {
			header = cells
			return
		}
		rows = append(rows, cells)
	})
	return header, rows
}
