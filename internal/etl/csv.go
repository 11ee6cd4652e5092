package etl

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const utf8BOM = "\ufeff"

// ReadCSVFile reads a delimited file and splits off the header row.
// delim 0 means comma. Open errors are wrapped with %w so callers can test
// for fs.ErrNotExist.
func ReadCSVFile(path string, delim rune) ([]string, [][]string, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("filePath is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if delim != 0 {
		reader.Comma = delim
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty csv file")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	return header, records[1:], nil
}

// FormatValue renders a dataset value the way it is written to text outputs.
// Reals use the shortest round-trip digits and always keep a fractional part.
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		s := strconv.FormatFloat(n, 'f', -1, 64)
		if !strings.ContainsAny(s, ".NI") {
			s += ".0"
		}
		return s
	case string:
		return n
	default:
		return fmt.Sprint(v)
	}
}
