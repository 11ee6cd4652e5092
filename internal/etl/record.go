package etl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ── Dataset ────────────────────────────────────────────────
// Common intermediate data format.
// Sources build a Dataset, transformers append columns to it,
// destinations consume it read-only.

// FieldType is the storage type of a column.
type FieldType string

const (
	FieldInteger FieldType = "integer"
	FieldReal    FieldType = "real"
	FieldText    FieldType = "text"
)

// Field describes a single column in a dataset.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema describes the shape of a dataset.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Column is a named, homogeneous sequence of values.
// Values are int64, float64, string or nil (empty cell).
type Column struct {
	Name   string
	Type   FieldType
	Values []any
}

// Dataset is an ordered set of equal-length columns with unique names.
type Dataset struct {
	columns []*Column
	index   map[string]int
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// AddColumn appends a column after validating its name, length and value types.
// The first column fixes the row count.
func (d *Dataset) AddColumn(name string, values []any) error {
	if name == "" {
		return fmt.Errorf("column name is empty")
	}
	if _, exists := d.index[name]; exists {
		return fmt.Errorf("duplicate column %q", name)
	}
	if len(d.columns) > 0 && len(values) != d.Len() {
		return fmt.Errorf("column %q has %d values, dataset has %d rows", name, len(values), d.Len())
	}

	typ, vals, err := normalizeValues(values)
	if err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}

	d.index[name] = len(d.columns)
	d.columns = append(d.columns, &Column{Name: name, Type: typ, Values: vals})
	return nil
}

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Columns returns the columns in order. Callers must not mutate the slice.
func (d *Dataset) Columns() []*Column {
	if d == nil {
		return nil
	}
	return d.columns
}

// Len returns the number of rows. A nil dataset has zero rows.
func (d *Dataset) Len() int {
	if d == nil || len(d.columns) == 0 {
		return 0
	}
	return len(d.columns[0].Values)
}

// Width returns the number of columns.
func (d *Dataset) Width() int {
	if d == nil {
		return 0
	}
	return len(d.columns)
}

// Row returns the values of row i in column order.
func (d *Dataset) Row(i int) []any {
	row := make([]any, len(d.columns))
	for j, c := range d.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Schema returns the dataset's current field list.
func (d *Dataset) Schema() *Schema {
	s := &Schema{Fields: make([]Field, 0, d.Width())}
	for _, c := range d.Columns() {
		s.Fields = append(s.Fields, Field{Name: c.Name, Type: c.Type})
	}
	return s
}

// normalizeValues checks that values share one type and returns it.
// int64 mixed with float64 promotes the column to real.
func normalizeValues(values []any) (FieldType, []any, error) {
	var hasInt, hasReal, hasText bool
	out := make([]any, len(values))
	for i, v := range values {
		switch n := v.(type) {
		case nil:
		case int:
			out[i] = int64(n)
			hasInt = true
			continue
		case int64:
			hasInt = true
		case float64:
			hasReal = true
		case float32:
			out[i] = float64(n)
			hasReal = true
			continue
		case string:
			hasText = true
		default:
			return "", nil, fmt.Errorf("unsupported value type %T at row %d", v, i)
		}
		out[i] = v
	}

	switch {
	case hasText && (hasInt || hasReal):
		return "", nil, fmt.Errorf("mixed text and numeric values")
	case hasText:
		return FieldText, out, nil
	case hasReal:
		for i, v := range out {
			if n, ok := v.(int64); ok {
				out[i] = float64(n)
			}
		}
		return FieldReal, out, nil
	case hasInt:
		return FieldInteger, out, nil
	default:
		// All cells empty.
		return FieldText, out, nil
	}
}

var footnoteRe = regexp.MustCompile(`\[[^\]]*\]`)

// CleanCell strips footnote markers like "[1]" and collapses whitespace,
// non-breaking spaces included, to single spaces.
func CleanCell(s string) string {
	s = footnoteRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// groupedNumber matches numbers written with comma thousands separators.
var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// numericCell trims c and drops comma grouping from "1,234.50" style numbers.
func numericCell(c string) string {
	c = strings.TrimSpace(c)
	if groupedNumber.MatchString(c) {
		return strings.ReplaceAll(c, ",", "")
	}
	return c
}

// ParseColumn converts raw cells into typed values.
// All-integer cells become int64, all-numeric become float64, anything else
// stays text. Comma thousands separators are accepted in numeric cells.
// Blank cells are nil and do not take part in inference.
func ParseColumn(cells []string) []any {
	kind := FieldInteger
	seen := false
	for _, c := range cells {
		c = numericCell(c)
		if c == "" {
			continue
		}
		seen = true
		if kind == FieldInteger {
			if _, err := strconv.ParseInt(c, 10, 64); err == nil {
				continue
			}
			kind = FieldReal
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			kind = FieldText
			break
		}
	}
	if !seen {
		kind = FieldText
	}

	values := make([]any, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		switch kind {
		case FieldInteger:
			n, _ := strconv.ParseInt(numericCell(c), 10, 64)
			values[i] = n
		case FieldReal:
			f, _ := strconv.ParseFloat(numericCell(c), 64)
			values[i] = f
		default:
			values[i] = c
		}
	}
	return values
}

// FromRows builds a dataset from a header row and string rows.
// Short rows are padded with blanks, long rows truncated.
// Duplicate header names get a ".1", ".2" suffix.
func FromRows(header []string, rows [][]string) (*Dataset, error) {
	names := uniqueNames(header)
	ds := NewDataset()
	for j, name := range names {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		if err := ds.AddColumn(name, ParseColumn(cells)); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func uniqueNames(header []string) []string {
	seen := make(map[string]int, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("col_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}
