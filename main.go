package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"banks/internal/config"
	"banks/internal/dbclient"
	"banks/internal/etl"
	_ "banks/internal/etl/sources"
	"banks/internal/logging"
	"banks/internal/service"
	"banks/internal/storage"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

// previewRows is how many rows -preview prints.
const previewRows = 10

// shutdownGrace bounds how long a triggered run may finish after a signal.
const shutdownGrace = 30 * time.Second

var criticalColor = color.New(color.FgRed, color.Bold)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("banks", flag.ContinueOnError)
	fs.SetOutput(stderr)
	schedule := fs.String("schedule", "", "cron expression; keep running and re-run on schedule")
	watch := fs.Bool("watch", false, "keep running and re-run when the exchange rate file changes")
	preview := fs.Bool("preview", false, "extract and transform only, print the first rows")
	history := fs.Int("history", 0, "print the last N recorded runs and exit")
	showRun := fs.String("show-run", "", "print the stored query results of a recorded run and exit")
	schema := fs.Bool("schema", false, "print the columns the configured source yields and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}

	cfg, err := config.Load()
	if err != nil {
		critical(stderr, err)
		return exitConfig
	}
	if *schedule != "" {
		cfg.Trigger.Schedule = *schedule
	}
	if *watch {
		cfg.Trigger.Watch = true
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *storage.ETLStore
	if cfg.Paths.History != "" {
		db, err := storage.New(cfg.Paths.History)
		if err != nil {
			slog.Warn("run history disabled", "path", cfg.Paths.History, "error", err)
		} else {
			defer db.Close()
			store = storage.NewETLStore(db)
		}
	}

	if *history > 0 {
		return printHistory(stdout, stderr, store, *history)
	}
	if *showRun != "" {
		return printRun(stdout, stderr, store, *showRun)
	}

	progress := logging.NewProgressLog(cfg.Paths.Log)
	engine, err := newEngine(cfg, progress, stdout)
	if err != nil {
		critical(stderr, err)
		return exitConfig
	}
	if store != nil {
		engine.Recorder = store
	}
	job := newJob(cfg)

	if *schema {
		return printSchema(ctx, engine.Source, job, stdout, stderr)
	}
	if *preview {
		return runPreview(ctx, engine, job, stdout, stderr)
	}

	if cfg.Trigger.Schedule == "" && !cfg.Trigger.Watch {
		if _, err := engine.Run(ctx, job); err != nil {
			critical(stderr, err)
			return exitFailure
		}
		return exitOK
	}
	return serve(ctx, cfg, engine, job, stderr)
}

// newEngine wires the configured source, the currency transform, both sinks
// and the database opener around one progress log.
func newEngine(cfg *config.Config, log etl.Logger, out io.Writer) (*etl.Engine, error) {
	src, err := etl.ResolveSource(cfg.Source.Type, etl.SourceDeps{
		Client: &http.Client{Timeout: cfg.Source.HTTPTimeout},
		Log:    log,
	})
	if err != nil {
		var types []string
		for _, spec := range etl.ListSources() {
			types = append(types, spec.Type)
		}
		return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(types, ", "))
	}

	return &etl.Engine{
		Source: src,
		Transforms: []etl.Transformer{
			&etl.CurrencyTransform{RatesPath: cfg.Paths.Rates, Log: log},
		},
		CSV: &etl.CSVWriter{Log: log},
		Connect: dbclient.Opener(dbclient.Config{
			Driver:   cfg.Database.Driver,
			Path:     cfg.Database.Path,
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Name,
			Username: cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
		}, log),
		Log: log,
		Out: out,
	}, nil
}

func newJob(cfg *config.Config) *etl.Job {
	return &etl.Job{
		Name:      "largest_banks",
		SourceCfg: sourceConfig(cfg.Source),
		CSVPath:   cfg.Paths.CSV,
		TableName: cfg.Database.Table,
		SyncMode:  etl.SyncMode(cfg.Database.Sync),
		Queries:   banksQueries(cfg.Database.Driver, cfg.Database.Table),
	}
}

func sourceConfig(src config.SourceConfig) etl.SourceConfig {
	if src.Type == config.SourceCSVFile {
		return etl.SourceConfig{"filePath": src.Path, "delimiter": src.Delimiter}
	}
	return etl.SourceConfig{"url": src.URL, "marker": src.Marker, "headers": src.Headers}
}

// banksQueries are the three reports printed after every load. Names are
// quoted the way SQLWriter created them on driver.
func banksQueries(driver, table string) []etl.Query {
	q := func(name string) string { return etl.QuoteIdent(driver, name) }
	return []etl.Query{
		{
			Title:  "All Records",
			SQL:    fmt.Sprintf("SELECT * FROM %s", q(table)),
			Format: etl.FormatRows,
		},
		{
			Title:  "Average Market Capitalization (in GBP Billion)",
			SQL:    fmt.Sprintf("SELECT AVG(%s) FROM %s", q(etl.ConvertedColumn("GBP")), q(table)),
			Format: etl.FormatScalar,
		},
		{
			Title:  "First 5 Bank Names",
			SQL:    fmt.Sprintf("SELECT %s FROM %s LIMIT 5", q("Bank name"), q(table)),
			Format: etl.FormatFirstColumn,
		},
	}
}

func printSchema(ctx context.Context, src etl.Source, job *etl.Job, stdout, stderr io.Writer) int {
	schema, err := src.Discover(ctx, job.SourceCfg)
	if err != nil {
		critical(stderr, err)
		return exitFailure
	}
	etl.PrintDataset(stdout, []string{"column", "type"}, len(schema.Fields), func(i int) []any {
		f := schema.Fields[i]
		return []any{f.Name, string(f.Type)}
	})
	return exitOK
}

func runPreview(ctx context.Context, engine *etl.Engine, job *etl.Job, stdout, stderr io.Writer) int {
	ds, err := engine.Preview(ctx, job)
	if err != nil {
		critical(stderr, err)
		return exitFailure
	}
	etl.PrintDataset(stdout, ds.Schema().FieldNames(), min(ds.Len(), previewRows), ds.Row)
	fmt.Fprintf(stdout, "(%d rows)\n", ds.Len())
	return exitOK
}

func printHistory(stdout, stderr io.Writer, store *storage.ETLStore, limit int) int {
	if store == nil {
		critical(stderr, errors.New("run history is not available"))
		return exitFailure
	}
	logs, err := store.ListRunLogs(limit)
	if err != nil {
		critical(stderr, err)
		return exitFailure
	}
	columns := []string{"id", "started", "status", "failed_at", "rows_read", "rows_written", "duration_ms", "error"}
	etl.PrintDataset(stdout, columns, len(logs), func(i int) []any {
		l := logs[i]
		return []any{l.ID, l.StartedAt.Format(time.DateTime), l.Status, l.FailedAt,
			int64(l.RowsRead), int64(l.RowsWritten), l.DurationMs, l.Error}
	})
	return exitOK
}

// printRun reprints the query results recorded for runID.
func printRun(stdout, stderr io.Writer, store *storage.ETLStore, runID string) int {
	if store == nil {
		critical(stderr, errors.New("run history is not available"))
		return exitFailure
	}
	stored, err := store.Results().ListByRun(runID)
	if err != nil {
		critical(stderr, err)
		return exitFailure
	}
	if len(stored) == 0 {
		critical(stderr, fmt.Errorf("no stored results for run %q", runID))
		return exitFailure
	}
	for _, r := range stored {
		res, err := r.Decode()
		if err != nil {
			critical(stderr, fmt.Errorf("run %s query %d: %w", runID, r.Position, err))
			return exitFailure
		}
		etl.PrintQuery(stdout, res.Query(), res)
	}
	return exitOK
}

// serve runs the job once, then keeps re-running it on the configured
// triggers until the process is signalled.
func serve(ctx context.Context, cfg *config.Config, engine *etl.Engine, job *etl.Job, stderr io.Writer) int {
	svc := service.NewETLService(engine, job, service.SlogEmitter{})

	watchPath := ""
	if cfg.Trigger.Watch {
		watchPath = cfg.Paths.Rates
	}
	if err := svc.Start(ctx, cfg.Trigger.Schedule, watchPath); err != nil {
		critical(stderr, err)
		return exitConfig
	}
	defer svc.Stop()

	if _, err := svc.RunJob(ctx); err != nil {
		slog.Error("initial run failed", "error", err)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	svc.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	svc.WaitRunning(waitCtx)
	return exitOK
}

func critical(w io.Writer, err error) {
	criticalColor.Fprintf(w, "Critical Error: %v\n", err)
}
