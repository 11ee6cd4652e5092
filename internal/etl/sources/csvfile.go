package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"banks/internal/etl"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads the bank list from a local CSV file instead of the web page, for
// offline runs and for re-loading a previously saved Largest_banks_data.csv.

type csvFileSource struct {
	Log etl.Logger
}

func init() { etl.RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "csv_file",
		Label: "CSV File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Path to the CSV file"},
			{Key: "delimiter", Label: "Delimiter", Type: "string", Required: false, Default: ",", Help: "Column delimiter (default: comma)"},
		},
	}
}

func (s *csvFileSource) WithDeps(deps etl.SourceDeps) etl.Source {
	return &csvFileSource{Log: deps.Log}
}

func (s *csvFileSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	ds, err := s.Read(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ds.Schema(), nil
}

func (s *csvFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (*etl.Dataset, error) {
	log := s.Log
	if log == nil {
		log = etl.NopLogger
	}
	if err := cfg.Require(s.Spec()); err != nil {
		return nil, etl.NewError(etl.StageExtract, etl.ErrUnexpected, err, "invalid source config")
	}
	var delim rune
	if d := cfg.String("delimiter"); d != "" {
		delim = rune(d[0])
	}

	ds, err := ReadCSV(cfg.String("filePath"), delim)
	if err != nil {
		log.Log(fmt.Sprintf("Data extraction error: %v", err))
		kind := etl.ErrUnexpected
		if errors.Is(err, fs.ErrNotExist) {
			kind = etl.ErrResourceNotFound
		}
		return nil, etl.NewError(etl.StageExtract, kind, err, "could not read %s", cfg.String("filePath"))
	}
	log.Log("Data extraction complete. Initiating Transformation process")
	return ds, nil
}

// ReadCSV loads a CSV file with a header row into a typed dataset.
func ReadCSV(path string, delim rune) (*etl.Dataset, error) {
	header, rows, err := etl.ReadCSVFile(path, delim)
	if err != nil {
		return nil, err
	}
	ds, err := etl.FromRows(header, rows)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return ds, nil
}
