package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrJobRunning is returned when a job is asked to run while a previous run
// is still in flight.
var ErrJobRunning = errors.New("job already running")

// ErrUnknownJob is returned by Trigger and Do for a name no job carries.
var ErrUnknownJob = errors.New("unknown job")

// DefaultLockTTL is how long a cross-process lock survives its holder
// crashing. Live holders keep extending it.
const DefaultLockTTL = 2 * time.Minute

// Job is a named unit of work with its cron spec.
type Job struct {
	Name string
	// Spec is a standard five-field cron spec, see DailySpec and MonthlySpec.
	Spec string
	Run  func(ctx context.Context) error
	// RunOnStart fires the job once as soon as the runner starts.
	RunOnStart bool
}

// Locker guards a job across processes. release must be safe to call once.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

type Option func(*Runner)

// WithLocker makes every run also hold a lock named after the job.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(r *Runner) {
		r.locker = l
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

// WithLocation evaluates specs in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		if loc != nil {
			r.loc = loc
		}
	}
}

type jobState struct {
	Job
	mu sync.Mutex
}

// Runner fires jobs on their cron specs. A run, scheduled or triggered by
// hand, is refused while the same job is still running.
type Runner struct {
	jobs    []*jobState
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	loc     *time.Location

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

func NewRunner(jobs []Job, opts ...Option) (*Runner, error) {
	r := &Runner{
		lockTTL: DefaultLockTTL,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}

	logger := cronLogger{log.FromContext(context.Background(), log.ComponentScheduler)}
	r.cron = cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	for _, j := range jobs {
		js := &jobState{Job: j}
		if _, err := r.cron.AddFunc(j.Spec, func() { r.fire(r.baseContext(), js) }); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.Name, err)
		}
		r.jobs = append(r.jobs, js)
	}
	return r, nil
}

// Trigger runs the named job now and waits for it.
func (r *Runner) Trigger(ctx context.Context, name string) error {
	return r.Do(ctx, name, nil)
}

// Do runs fn under the named job's guards, so it never overlaps a scheduled
// or triggered run of that job. A nil fn runs the job itself.
func (r *Runner) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	for _, js := range r.jobs {
		if js.Name == name {
			if fn == nil {
				fn = js.Run
			}
			return r.execute(ctx, js, fn)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

// Start begins firing jobs. Returns an error if already running.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	runCtx := r.ctx
	r.mu.Unlock()

	r.cron.Start()
	for _, js := range r.jobs {
		if js.RunOnStart {
			r.inflight.Add(1)
			go func() {
				defer r.inflight.Done()
				r.fire(runCtx, js)
			}()
		}
	}

	log.FromContext(ctx, log.ComponentScheduler).InfoContext(ctx, "Scheduler started",
		"jobs", len(r.jobs), "location", r.loc.String())
	return nil
}

// Stop halts scheduling and waits for in-flight runs or ctx. On timeout
// the runs still going are cancelled. Stopping an idle runner is a no-op.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()
	defer cancel()

	stopped := r.cron.Stop()
	waited := make(chan struct{})
	go func() {
		<-stopped.Done()
		r.inflight.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		log.FromContext(ctx, log.ComponentScheduler).InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		log.FromContext(ctx, log.ComponentScheduler).WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether jobs are being scheduled
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) baseContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

func (r *Runner) fire(ctx context.Context, js *jobState) {
	err := r.execute(ctx, js, js.Run)
	if errors.Is(err, ErrJobRunning) {
		log.FromContext(ctx, log.ComponentScheduler).WarnContext(ctx, "Previous run still in flight, skipping",
			log.FieldJob, js.Name)
	}
}

func (r *Runner) execute(ctx context.Context, js *jobState, fn func(context.Context) error) error {
	if !js.mu.TryLock() {
		return ErrJobRunning
	}
	defer js.mu.Unlock()

	if r.locker != nil {
		release, ok, err := r.locker.TryLock(ctx, js.Name, r.lockTTL)
		if err != nil {
			return fmt.Errorf("lock %s: %w", js.Name, err)
		}
		if !ok {
			return ErrJobRunning
		}
		defer release()
	}

	logger := log.FromContext(ctx, log.ComponentScheduler).
		With(log.FieldJob, js.Name, log.FieldRunID, uuid.NewString())
	ctx = log.NewContext(ctx, logger)

	start := time.Now()
	logger.InfoContext(ctx, "Job started")
	err := fn(ctx)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logger.ErrorContext(ctx, "Job failed", log.FieldDuration, elapsed, log.FieldError, err)
		return fmt.Errorf("job %s: %w", js.Name, err)
	}
	logger.InfoContext(ctx, "Job finished", log.FieldDuration, elapsed)
	return nil
}

// cronLogger routes cron's own lines into the component logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		c.l.Warn("Previous scheduled run still in flight, skipping", keysAndValues...)
		return
	}
	c.l.Debug("cron "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron "+msg, append(keysAndValues, log.FieldError, err)...)
}
