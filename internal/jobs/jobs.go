// package jobs runs the pipeline's scheduled jobs on cron expressions.
//
// Runs of the same job never overlap. A tick that fires while the job is still going is skipped,
// and a manual run is refused with [shared.ErrJobRunning].
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	cronlib "github.com/robfig/cron/v3"

	"github.com/desertthunder/echo/internal/metrics"
	"github.com/desertthunder/echo/internal/shared"
)

// DefaultMaxDuration bounds a single run. A run still going after this is cancelled and recorded as failed.
const DefaultMaxDuration = time.Hour

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Job is a named unit of scheduled work.
type Job struct {
	Name        string
	Spec        string
	MaxDuration time.Duration
	Run         func(ctx context.Context) error
}

// Entry describes a registered job and its next run.
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

// Runtime owns the cron loop and every registered job.
type Runtime struct {
	cron   *cronlib.Cron
	logger *log.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    map[string]Job
	entries map[string]cronlib.EntryID
	running map[string]*atomic.Bool
}

// New creates a [Runtime] that evaluates cron expressions in loc.
func New(loc *time.Location, logger *log.Logger) *Runtime {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		cron: cronlib.New(
			cronlib.WithLocation(loc),
			cronlib.WithParser(cronParser),
			cronlib.WithLogger(cl),
			cronlib.WithChain(cronlib.Recover(cl)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    map[string]Job{},
		entries: map[string]cronlib.EntryID{},
		running: map[string]*atomic.Bool{},
	}
}

// Add registers a job. Names must be unique and the spec must parse.
func (r *Runtime) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return fmt.Errorf("%w: job requires a name and a run function", shared.ErrInvalidInput)
	}
	if _, err := cronParser.Parse(j.Spec); err != nil {
		return fmt.Errorf("%w: job %s: cron %q: %v", shared.ErrInvalidConfig, j.Name, j.Spec, err)
	}
	if j.MaxDuration <= 0 {
		j.MaxDuration = DefaultMaxDuration
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.Name]; ok {
		return fmt.Errorf("%w: job %s already registered", shared.ErrInvalidInput, j.Name)
	}

	r.running[j.Name] = &atomic.Bool{}
	id, err := r.cron.AddJob(j.Spec, r.wrap(j))
	if err != nil {
		delete(r.running, j.Name)
		return fmt.Errorf("failed to schedule %s: %w", j.Name, err)
	}
	r.jobs[j.Name] = j
	r.entries[j.Name] = id
	return nil
}

// RunNow runs a registered job immediately in the caller's goroutine.
// It fails with [shared.ErrJobRunning] while a scheduled or manual run of the job is in progress.
func (r *Runtime) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown job %q", shared.ErrInvalidArgument, name)
	}
	return r.exclusive(ctx, j)
}

// Entries lists registered jobs with their next scheduled time. Next is zero until [Runtime.Start].
func (r *Runtime) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.entries))
	for name, id := range r.entries {
		e := r.cron.Entry(id)
		entries = append(entries, Entry{Name: name, Spec: r.jobs[name].Spec, Next: e.Next})
	}
	return entries
}

// Start begins firing jobs in the background.
func (r *Runtime) Start() {
	r.cron.Start()
	r.logger.Info("job runtime started", "jobs", len(r.jobs))
}

// Stop halts scheduling, cancels running jobs and waits for them to return or for ctx to end.
func (r *Runtime) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	r.cancel()

	select {
	case <-done.Done():
		r.logger.Info("job runtime stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wrap adapts a job for the cron loop. A tick that finds the job running is skipped.
func (r *Runtime) wrap(j Job) cronlib.Job {
	return cronlib.FuncJob(func() {
		err := r.exclusive(r.ctx, j)
		switch {
		case errors.Is(err, shared.ErrJobRunning):
			r.logger.Info("skipping tick, job still running", "job", j.Name)
		case err != nil:
			r.logger.Error("job failed", "job", j.Name, "error", err)
		}
	})
}

// exclusive runs j unless another run of it holds the job's guard.
// Scheduled and manual runs share the guard.
func (r *Runtime) exclusive(ctx context.Context, j Job) error {
	r.mu.Lock()
	guard := r.running[j.Name]
	r.mu.Unlock()

	if !guard.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", shared.ErrJobRunning, j.Name)
	}
	defer guard.Store(false)
	return r.execute(ctx, j)
}

func (r *Runtime) execute(ctx context.Context, j Job) error {
	ctx, cancel := context.WithTimeout(ctx, j.MaxDuration)
	defer cancel()

	start := time.Now()
	err := j.Run(ctx)
	if err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: job %s exceeded %s", shared.ErrTimeout, j.Name, j.MaxDuration)
	}
	duration := time.Since(start)

	metrics.RecordJobRun(j.Name, duration, err == nil)
	if err == nil {
		r.logger.Info("job finished", "job", j.Name, "duration", duration)
	}
	return err
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(spec string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

// cronLogger adapts [log.Logger] to [cronlib.Logger].
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
