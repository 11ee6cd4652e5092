package etl

import (
	"errors"
	"fmt"
)

// ── Errors ─────────────────────────────────────────────────
// Every stage reports failures as *Error carrying one of the sentinel kinds
// below, so callers classify with errors.Is instead of string matching.

var (
	ErrNetwork          = errors.New("network error")
	ErrTableNotFound    = errors.New("table not found")
	ErrSchema           = errors.New("schema error")
	ErrResourceNotFound = errors.New("resource not found")
	ErrMissingRate      = errors.New("missing exchange rate")
	ErrEmptyDataset     = errors.New("empty dataset")
	ErrIOWrite          = errors.New("write error")
	ErrPersistence      = errors.New("persistence error")
	ErrQuery            = errors.New("query error")
	ErrUnexpected       = errors.New("unexpected error")
	ErrTransformation   = errors.New("transformation failed")
	ErrPipeline         = errors.New("etl process halted")
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageInit      Stage = "init"
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageSinkCSV   Stage = "sink_csv"
	StageSinkDB    Stage = "sink_db"
	StageQuery     Stage = "query"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Error is a stage-scoped failure of a given kind.
type Error struct {
	Stage Stage
	Kind  error
	Msg   string
	Err   error
}

// NewError builds an *Error. cause may be nil.
func NewError(stage Stage, kind error, cause error, format string, args ...any) *Error {
	return &Error{Stage: stage, Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind, so errors.Is(err, ErrMissingRate) works
// through any number of wrapping layers.
func (e *Error) Is(target error) bool { return e.Kind == target }

// StageOf returns the stage of the outermost *Error in err's chain.
func StageOf(err error) (Stage, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage, true
	}
	return "", false
}
