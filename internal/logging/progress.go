package logging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimestampLayout matches "2024-05-01 13:04:05.123456".
const TimestampLayout = "2006-01-02 15:04:05.000000"

// ProgressLog appends "<timestamp>: <message>" lines to a text file.
// The directory is created on first use. Log never fails: problems writing
// the file are reported on Stderr so they cannot mask a pipeline error.
type ProgressLog struct {
	path string

	mu     sync.Mutex
	Now    func() time.Time
	Stderr io.Writer
}

// NewProgressLog returns a log writing to path.
func NewProgressLog(path string) *ProgressLog {
	return &ProgressLog{path: path, Now: time.Now, Stderr: os.Stderr}
}

// Path returns the log file location.
func (l *ProgressLog) Path() string { return l.path }

// Log appends one entry.
func (l *ProgressLog) Log(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slog.Debug("progress", "message", message)

	if err := l.append(message); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			fmt.Fprintln(l.Stderr, "Error: Insufficient permissions to write to the log file.")
			return
		}
		fmt.Fprintf(l.Stderr, "An unexpected error occurred: %v\n", err)
	}
}

func (l *ProgressLog) append(message string) error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s: %s\n", l.Now().Format(TimestampLayout), message)
	return err
}
