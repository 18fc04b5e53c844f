package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/babelcloud/navwalk/pkg/logger"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Manager runs jobs on cron schedules. A tick is skipped while the previous
// run of the same job is still in progress.
type Manager struct {
	cron    *cron.Cron
	logger  *logger.Logger
	timeout time.Duration
	runs    atomic.Int64
	failed  atomic.Int64
}

// Validate checks a standard cron expression or descriptor such as "@every 5m"
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// NewManager creates a manager. timeout bounds each run; zero means no bound.
func NewManager(log *logger.Logger, timeout time.Duration) *Manager {
	cronLogger := cron.PrintfLogger(log)
	return &Manager{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  log,
		timeout: timeout,
	}
}

// Add registers job under name on expr
func (m *Manager) Add(expr, name string, job Job) error {
	if err := Validate(expr); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc(expr, m.wrap(name, job)); err != nil {
		return fmt.Errorf("failed to add %s job: %w", name, err)
	}
	m.logger.Debug("Scheduled %s on %q", name, expr)
	return nil
}

// Start starts the scheduler in the background
func (m *Manager) Start() {
	m.cron.Start()
	m.logger.Info("Scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
	m.logger.Info("Scheduler stopped")
}

// Runs returns how many runs finished
func (m *Manager) Runs() int64 {
	return m.runs.Load()
}

// Failures returns how many runs ended with an error
func (m *Manager) Failures() int64 {
	return m.failed.Load()
}

// Next returns the next activation time of the first entry
func (m *Manager) Next() (time.Time, bool) {
	entries := m.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}

func (m *Manager) wrap(name string, job Job) func() {
	return func() {
		m.logger.Info("Running scheduled %s", name)
		ctx := context.Background()
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}

		err := job(ctx)
		m.runs.Add(1)
		if err == nil {
			return
		}
		m.failed.Add(1)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			m.logger.Error("Scheduled %s timed out after %v", name, m.timeout)
			return
		}
		m.logger.Error("Scheduled %s failed: %v", name, err)
	}
}
