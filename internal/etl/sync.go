package etl

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ── Job ────────────────────────────────────────────────────
// Orchestrates: source.Read → transform chain → CSV → table → queries.

// State is a step of a pipeline run.
type State string

const (
	StateInit      State = "init"
	StateExtract   State = "extract"
	StateTransform State = "transform"
	StateSinkCSV   State = "sink_csv"
	StateSinkDB    State = "sink_db"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// QueryState is the state of the n-th query (1-based).
func QueryState(n int) State { return State(fmt.Sprintf("query%d", n)) }

// QueryFormat selects how a query result is printed.
type QueryFormat string

const (
	FormatRows        QueryFormat = "rows"         // every row
	FormatScalar      QueryFormat = "scalar"       // first cell only
	FormatFirstColumn QueryFormat = "first_column" // first cell of each row
)

// Query is one read query run after loading.
type Query struct {
	Title  string
	SQL    string
	Format QueryFormat
}

// QueryResult is the full result of a read query.
type QueryResult struct {
	Title   string      `json:"title,omitempty"`
	Format  QueryFormat `json:"format,omitempty"`
	Columns []string    `json:"columns"`
	Rows    [][]any     `json:"rows"`
}

// Query returns the title and format res was produced with, for reprinting.
func (res *QueryResult) Query() Query {
	return Query{Title: res.Title, Format: res.Format}
}

// Job holds the configuration for a single pipeline run.
type Job struct {
	Name      string
	SourceCfg SourceConfig
	CSVPath   string
	TableName string
	SyncMode  SyncMode
	Queries   []Query
}

// RunResult is the outcome of a pipeline run.
type RunResult struct {
	RunID       string         `json:"runId"`
	JobName     string         `json:"jobName"`
	State       State          `json:"state"`
	FailedAt    State          `json:"failedAt,omitempty"`
	Status      string         `json:"status"` // "success" | "error"
	RowsRead    int            `json:"rowsRead"`
	RowsWritten int            `json:"rowsWritten"`
	Results     []*QueryResult `json:"results,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt"`
	Duration    time.Duration  `json:"duration"`
	Error       string         `json:"error,omitempty"`
}

// Conn is a database connection held for the load and query stages.
type Conn interface {
	RunQuery(ctx context.Context, query string) (*QueryResult, error)
	DB() *sql.DB
	Driver() string
	Close() error
}

// RunRecorder persists run outcomes.
type RunRecorder interface {
	RecordRun(r *RunResult) error
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs pipeline jobs. Stages run strictly in order; the first failure
// halts the run and nothing already written is rolled back.
type Engine struct {
	Source     Source
	Transforms []Transformer
	CSV        Destination
	Connect    func(ctx context.Context) (Conn, error)
	Log        Logger
	Out        io.Writer
	Recorder   RunRecorder
}

// Run executes a job end-to-end.
func (e *Engine) Run(ctx context.Context, job *Job) (*RunResult, error) {
	log := orNop(e.Log)
	result := &RunResult{
		RunID:     uuid.New().String(),
		JobName:   job.Name,
		State:     StateInit,
		StartedAt: time.Now(),
	}

	log.Log("Preliminaries complete. Initiating ETL process")
	err := e.run(ctx, job, result)

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
		result.FailedAt = result.State
		result.State = StateFailed
		log.Log(fmt.Sprintf("ETL process failed: %v", err))
	} else {
		result.Status = "success"
		result.State = StateDone
		log.Log("ETL process completed successfully.")
	}

	if e.Recorder != nil {
		if rerr := e.Recorder.RecordRun(result); rerr != nil {
			slog.Warn("etl: failed to record run", "run_id", result.RunID, "error", rerr)
		}
	}
	return result, err
}

func (e *Engine) run(ctx context.Context, job *Job, result *RunResult) error {
	log := orNop(e.Log)

	// 1. Extract.
	result.State = StateExtract
	if e.Source == nil {
		return halt(log, StageExtract, "Extraction failed", "extraction",
			NewError(StageExtract, ErrUnexpected, nil, "no source configured"))
	}
	ds, err := e.Source.Read(ctx, job.SourceCfg)
	if err != nil {
		return halt(log, StageExtract, "Extraction failed", "extraction", err)
	}
	result.RowsRead = ds.Len()

	// 2. Transform.
	result.State = StateTransform
	ds, err = ApplyTransformers(ds, e.Transforms)
	if err != nil {
		return halt(log, StageTransform, "Transformation failed", "transformation", err)
	}

	// 3. CSV.
	result.State = StateSinkCSV
	if e.CSV != nil {
		if _, err := e.CSV.Write(ctx, job.CSVPath, ds, SyncReplace); err != nil {
			return halt(log, StageSinkCSV, "Failed to save data to CSV", "CSV load", err)
		}
	}

	// 4. Table + queries, one connection for both.
	result.State = StateSinkDB
	if err := e.load(ctx, job, ds, result); err != nil {
		stage := StageSinkDB
		if s, ok := StageOf(err); ok {
			stage = s
		}
		return halt(log, stage, "Database load or query execution failed", "database operations", err)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, job *Job, ds *Dataset, result *RunResult) error {
	log := orNop(e.Log)
	if e.Connect == nil {
		return NewError(StageSinkDB, ErrPersistence, nil, "no database configured")
	}

	conn, err := e.Connect(ctx)
	if err != nil {
		return NewError(StageSinkDB, ErrPersistence, err, "open database")
	}
	defer conn.Close()

	w := &SQLWriter{DB: conn.DB(), Driver: conn.Driver(), Log: e.Log}
	written, err := w.Write(ctx, job.TableName, ds, job.SyncMode)
	if err != nil {
		return err
	}
	result.RowsWritten = written

	for i, q := range job.Queries {
		result.State = QueryState(i + 1)
		res, err := conn.RunQuery(ctx, q.SQL)
		if err != nil {
			log.Log(fmt.Sprintf("Query %d failed: %v", i+1, err))
			return err
		}
		res.Title, res.Format = q.Title, q.Format
		result.Results = append(result.Results, res)
		if e.Out != nil {
			PrintQuery(e.Out, q, res)
		}
	}
	return nil
}

// halt logs a stage-scoped failure and wraps it into a pipeline error.
func halt(log Logger, stage Stage, logMsg, phase string, err error) error {
	log.Log(fmt.Sprintf("%s: %v", logMsg, err))
	return &Error{Stage: stage, Kind: ErrPipeline, Msg: "ETL process halted during " + phase, Err: err}
}

// Preview runs only extract and transform and returns the dataset.
// Nothing is written.
func (e *Engine) Preview(ctx context.Context, job *Job) (*Dataset, error) {
	if e.Source == nil {
		return nil, NewError(StageExtract, ErrUnexpected, nil, "no source configured")
	}
	ds, err := e.Source.Read(ctx, job.SourceCfg)
	if err != nil {
		return nil, err
	}
	return ApplyTransformers(ds, e.Transforms)
}
