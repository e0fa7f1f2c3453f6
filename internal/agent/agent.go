// Package agent runs the prevent-sleep control loop: every interval each
// checker is polled and its inhibitor is updated.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"preventsleep/internal/checks"
	"preventsleep/internal/inhibit"
	"preventsleep/internal/logging"
)

// Options configures an Agent
type Options struct {
	// Interval is the time slept between two loops
	Interval time.Duration
	// MaxLoops stops the agent after that many loops; 0 runs until cancelled
	MaxLoops int
}

// Agent owns the ordered checker/inhibitor pairs and runs them every interval
type Agent struct {
	pairs     []*CheckInhibit
	checkers  []checks.Checker
	interval  time.Duration
	maxLoops  int
	loopNum   int
	logger    *logging.Logger
	observers []Observer

	sleep     func(ctx context.Context, d time.Duration) error
	geteuid   func() int
	startTime time.Time
	cancel    context.CancelFunc
}

// New creates an agent with one pair per checker. Each pair gets its own
// inhibitor; the facility is shared.
func New(checkers []checks.Checker, facility inhibit.Facility, maxInactive time.Duration, opts Options, logger *logging.Logger) *Agent {
	pairs := make([]*CheckInhibit, 0, len(checkers))
	for _, checker := range checkers {
		inhibitor := inhibit.NewInhibitor(checker.Name(), facility, logger)
		pairs = append(pairs, NewCheckInhibit(checker, inhibitor, maxInactive, logger))
	}

	return &Agent{
		pairs:    pairs,
		checkers: checkers,
		interval: opts.Interval,
		maxLoops: opts.MaxLoops,
		logger:   logger,
		sleep:    sleepContext,
		geteuid:  os.Geteuid,
	}
}

// AddObserver registers an observer called after every loop
func (a *Agent) AddObserver(o Observer) {
	a.observers = append(a.observers, o)
}

// LoopNum returns the number of completed loops
func (a *Agent) LoopNum() int {
	return a.loopNum
}

// Run polls until ctx is cancelled, SIGINT or SIGTERM is received, MaxLoops
// is reached or an inhibitor call fails. Held locks are released on return.
//
// The first loop always logs at debug level; afterwards the logger's
// configured level applies so only state changes show up.
func (a *Agent) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	a.startTime = time.Now()
	names := make([]string, 0, len(a.pairs))
	for _, p := range a.pairs {
		names = append(names, p.Name())
	}
	a.logger.Info("agent.started", "Starting prevent-sleep", map[string]interface{}{
		"pid":       os.Getpid(),
		"interval":  a.interval.String(),
		"max_loops": a.maxLoops,
		"checkers":  names,
	})
	if a.geteuid() != 0 {
		a.logger.Warn("agent.not_root", "Not running as root - some activity may not be detected", map[string]interface{}{
			"euid": a.geteuid(),
		})
	}

	defer a.close()

	configured := a.logger.Level()
	for {
		if a.loopNum == 0 {
			a.logger.SetLevel(logging.LevelDebug)
		}

		err := a.tick()

		if a.loopNum == 0 {
			a.logger.SetLevel(configured)
			if err == nil && configured != logging.LevelDebug {
				a.logger.Info("agent.quiet", "Will only log if state changes from now on.", nil)
			}
		}

		if err != nil {
			a.logger.Error("agent.loop.failed", "Inhibitor call failed, stopping", map[string]interface{}{
				"loop":  a.loopNum,
				"error": err.Error(),
			})
			return err
		}

		a.loopNum++
		if a.maxLoops > 0 && a.loopNum >= a.maxLoops {
			a.logger.Info("agent.max_loops", "Reached maximum number of loops", map[string]interface{}{
				"loops": a.loopNum,
			})
			return nil
		}

		if err := a.sleep(ctx, a.interval); err != nil {
			a.logger.Info("agent.shutdown", "Initiating graceful shutdown", map[string]interface{}{
				"reason": err.Error(),
			})
			return nil
		}
	}
}

// Shutdown stops a running agent after the current loop
func (a *Agent) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Agent) tick() error {
	a.logger.Debug("agent.loop", "Running checks", map[string]interface{}{
		"loop": a.loopNum,
	})

	snapshots := make([]Snapshot, 0, len(a.pairs))
	for _, p := range a.pairs {
		if _, err := p.Step(); err != nil {
			return fmt.Errorf("loop %d: %w", a.loopNum, err)
		}
		snapshots = append(snapshots, p.Snapshot())
	}

	for _, o := range a.observers {
		o.Observe(a.loopNum, snapshots)
	}
	return nil
}

// close releases every held lock and closes checkers and observers that
// hold resources. Failures are logged and do not stop the cleanup.
func (a *Agent) close() {
	a.logger.Info("agent.stopping", "Releasing inhibitor locks", nil)

	var errs []error
	for _, p := range a.pairs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.checkers {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, o := range a.observers {
		if closer, ok := o.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("agent.cleanup_failed", "Failed to clean up on exit", map[string]interface{}{
			"error": err.Error(),
		})
	}

	a.logger.Info("agent.stopped", "Stopped prevent-sleep", map[string]interface{}{
		"loops":          a.loopNum,
		"uptime_seconds": time.Since(a.startTime).Seconds(),
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
