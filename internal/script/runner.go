package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/protocol"
	"github.com/smazurov/illuminode/internal/session"
)

// Executor runs one request. *session.Session satisfies it.
type Executor interface {
	Do(ctx context.Context, req protocol.Request) (*session.Response, error)
}

// StepResult records one executed command.
type StepResult struct {
	Step      int // 1-based
	Iteration int // 1-based
	Response  *session.Response
}

// Report summarizes a run.
type Report struct {
	Name    string
	Results []StepResult
	Elapsed time.Duration
}

// StepError identifies the step that stopped a run.
type StepError struct {
	Step      int
	Iteration int
	Command   string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (iteration %d) %s: %v", e.Step, e.Iteration, e.Command, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes scripts against a device.
type Runner struct {
	exec   Executor
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	onStep func(StepResult)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSleep replaces the wait between steps.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// WithStepHook is called after every successful command.
func WithStepHook(fn func(StepResult)) RunnerOption {
	return func(r *Runner) {
		r.onStep = fn
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner for exec.
func NewRunner(exec Executor, opts ...RunnerOption) *Runner {
	r := &Runner{
		exec:   exec,
		logger: logging.GetLogger("script"),
		sleep:  sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every step in order and stops at the first error.
// The returned report covers the commands that succeeded.
func (r *Runner) Run(ctx context.Context, s *Script) (*Report, error) {
	start := r.now()
	report := &Report{Name: s.Name}
	r.logger.Info("Running script", "script", s.Name, "steps", len(s.Steps))

	for i, step := range s.Steps {
		reqs, err := step.Requests()
		if err != nil {
			return report, &StepError{Step: i + 1, Iteration: 1, Command: step.Command, Err: err}
		}
		for iter := 1; iter <= step.Iterations(); iter++ {
			for _, req := range reqs {
				resp, err := r.exec.Do(ctx, req)
				if err != nil {
					serr := &StepError{Step: i + 1, Iteration: iter, Command: protocol.Describe(req), Err: err}
					r.logger.Error("Script step failed", "script", s.Name, "step", i+1, "command", serr.Command, "error", err)
					report.Elapsed = r.now().Sub(start)
					return report, serr
				}
				res := StepResult{Step: i + 1, Iteration: iter, Response: resp}
				report.Results = append(report.Results, res)
				if r.onStep != nil {
					r.onStep(res)
				}
			}
			if step.WaitMs > 0 {
				if err := r.sleep(ctx, time.Duration(step.WaitMs)*time.Millisecond); err != nil {
					report.Elapsed = r.now().Sub(start)
					return report, &StepError{Step: i + 1, Iteration: iter, Command: "wait", Err: err}
				}
			}
		}
	}

	report.Elapsed = r.now().Sub(start)
	r.logger.Info("Script finished", "script", s.Name, "commands", len(report.Results), "elapsed", report.Elapsed)
	return report, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
