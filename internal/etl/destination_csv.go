package etl

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// ── CSV Destination ────────────────────────────────────────

// CSVWriter implements Destination for local CSV files.
// The file is always rewritten; mode is ignored.
type CSVWriter struct {
	Log Logger
}

func (w *CSVWriter) Write(ctx context.Context, path string, ds *Dataset, _ SyncMode) (int, error) {
	log := orNop(w.Log)

	if ds == nil || ds.Len() == 0 {
		err := NewError(StageSinkCSV, ErrEmptyDataset, nil, "the provided dataset is empty or nil")
		log.Log(fmt.Sprintf("Data saving error: %v", err))
		return 0, err
	}

	if err := writeCSV(path, ds); err != nil {
		log.Log(fmt.Sprintf("File writing error: %v", err))
		return 0, NewError(StageSinkCSV, ErrIOWrite, err,
			"failed to save CSV to %s, check file permissions or disk space", path)
	}

	log.Log(fmt.Sprintf("Data successfully saved to %s", path))
	return ds.Len(), nil
}

func writeCSV(path string, ds *Dataset) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close file: %w", cerr)
		}
	}()

	buf := bufio.NewWriter(f)
	cw := csv.NewWriter(buf)

	if err := cw.Write(ds.Schema().FieldNames()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, ds.Width())
	for i := 0; i < ds.Len(); i++ {
		for j, v := range ds.Row(i) {
			record[j] = FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush file: %w", err)
	}
	return nil
}
