package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"banks/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// ETL Service: on-demand and triggered runs
// ─────────────────────────────────────────────────────────────

// Runner executes one pipeline job. *etl.Engine implements it.
type Runner interface {
	Run(ctx context.Context, job *etl.Job) (*etl.RunResult, error)
}

// Event names passed to the EventEmitter.
const (
	EventRunCompleted = "etl:run-completed"
	EventRunFailed    = "etl:run-failed"
	EventRunSkipped   = "etl:run-skipped"
)

// ErrShuttingDown is returned by RunJob once WaitRunning has started.
var ErrShuttingDown = errors.New("service is shutting down")

// watchDebounce collapses bursts of file events into one run.
const watchDebounce = 500 * time.Millisecond

// ETLService runs a job on demand, on a cron schedule, or when a watched
// file changes. Runs of the same job never overlap.
type ETLService struct {
	runner      Runner
	job         *etl.Job
	emitter     EventEmitter
	runningJobs runningJobsGuard

	// watcher / cron lifecycle
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewETLService creates an ETLService ready for use.
func NewETLService(runner Runner, job *etl.Job, emitter EventEmitter) *ETLService {
	if emitter == nil {
		emitter = SlogEmitter{}
	}
	return &ETLService{runner: runner, job: job, emitter: emitter}
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes the job synchronously. It fails fast if a run is already
// in progress.
func (s *ETLService) RunJob(ctx context.Context) (*etl.RunResult, error) {
	if !s.runningJobs.TryLock(s.job.Name) {
		s.emitter.Emit(ctx, EventRunSkipped, s.job.Name)
		if s.runningJobs.IsClosed() {
			return nil, fmt.Errorf("job %s: %w", s.job.Name, ErrShuttingDown)
		}
		return nil, fmt.Errorf("job %s is already running", s.job.Name)
	}
	defer s.runningJobs.Unlock(s.job.Name)

	result, err := s.runner.Run(ctx, s.job)
	if err != nil {
		s.emitter.Emit(ctx, EventRunFailed, result)
		return result, err
	}
	s.emitter.Emit(ctx, EventRunCompleted, result)
	return result, nil
}

// ── Watchers (cron + file_watch) ──────────────────────────

// Start installs a cron schedule (if expr is non-empty) and a file watcher
// (if watchPath is non-empty). It replaces any previous triggers.
func (s *ETLService) Start(ctx context.Context, expr, watchPath string) error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expr != "" {
		c := cron.New()
		if _, err := c.AddFunc(expr, func() { s.trigger(ctx, "etl cron") }); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		c.Start()
		s.cronSched = c
		slog.Info("etl cron: scheduled", "job", s.job.Name, "expr", expr)
	}

	if watchPath != "" {
		if err := s.startWatcherLocked(ctx, watchPath); err != nil {
			s.stopLocked()
			return err
		}
	}
	return nil
}

func (s *ETLService) startWatcherLocked(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("bad watch path %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(absPath), err)
	}
	s.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel

	go func() {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if p, _ := filepath.Abs(event.Name); p != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					slog.Info("etl watcher: file changed", "path", absPath)
					s.trigger(watchCtx, "etl watcher")
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("etl watcher: error", "error", err)
			}
		}
	}()

	slog.Info("etl watcher: watching", "path", absPath)
	return nil
}

func (s *ETLService) trigger(ctx context.Context, source string) {
	slog.Info(source+": running job", "job", s.job.Name)
	if _, err := s.RunJob(ctx); err != nil {
		slog.Error(source+": job failed", "job", s.job.Name, "error", err)
	}
}

// WaitRunning blocks until the running job finishes or ctx is cancelled.
// Used for graceful shutdown: later RunJob calls fail with ErrShuttingDown.
func (s *ETLService) WaitRunning(ctx context.Context) {
	s.runningJobs.Close()
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ETLService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *ETLService) stopLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
