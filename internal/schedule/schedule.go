package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	appLog "notioncal/internal/log"
	"notioncal/internal/model"
)

// PassRunner runs one import pass.
type PassRunner interface {
	Run(ctx context.Context) (model.Report, error)
}

// Runner executes import passes, once or on a cron schedule, and remembers
// the last report for the status server.
type Runner struct {
	pass PassRunner

	mu   sync.RWMutex
	last *model.Report
}

func NewRunner(pass PassRunner) *Runner {
	return &Runner{pass: pass}
}

// RunOnce runs a single pass and records its report.
func (r *Runner) RunOnce(ctx context.Context) (model.Report, error) {
	report, err := r.pass.Run(ctx)

	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()

	return report, err
}

// LastReport returns the most recent report, if any pass has finished.
func (r *Runner) LastReport() (model.Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return model.Report{}, false
	}
	return *r.last, true
}

// Start runs a pass immediately and then on every tick of spec (standard
// 5-field cron syntax) until ctx is canceled. Passes never overlap; a pass
// error is logged and the schedule continues.
func (r *Runner) Start(ctx context.Context, spec string) error {
	if spec == "" {
		return errors.New("schedule: empty cron spec")
	}

	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	job := cron.FuncJob(func() {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("scheduled import failed", err)
		}
	})
	id, err := c.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("schedule: invalid cron spec %q: %w", spec, err)
	}

	appLog.Info("scheduler started", "schedule", spec)
	c.Start()
	// First pass right away, through the same skip-if-running chain.
	c.Entry(id).WrappedJob.Run()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	appLog.Info("scheduler stopped")
	return nil
}

// cronLogger routes robfig/cron logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
