// Package toolproc owns the process side of tool invocations: FIFO admission,
// spawn/capture/timeout/retry execution, a live-process registry, and the
// orphan reaper.
package toolproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Classification names the failure mode of an invocation.
type Classification string

const (
	ClassTimeout      Classification = "timeout"
	ClassNonZeroExit  Classification = "nonzero_exit"
	ClassSpawnFailure Classification = "spawn_failure"
)

// Sentinel errors for errors.Is mapping at the transport layer.
var (
	ErrTimeout      = errors.New("invocation timed out")
	ErrNonZeroExit  = errors.New("invocation exited non-zero")
	ErrSpawnFailure = errors.New("invocation could not be spawned")
)

// InvocationError is the classified failure returned on final attempt failure.
type InvocationError struct {
	Classification Classification
	ExitCode       int // meaningful only for nonzero_exit
	Err            error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Classification, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Spec describes one invocation of an external connector tool.
//
// Retries re-run Argv and Stdin verbatim; the executor assumes the underlying
// command is read-style or otherwise idempotent. Callers issuing effectful
// operations should set MaxRetries to 0.
type Spec struct {
	Command    string        // descriptor for diagnostics and the registry
	Argv       []string      // argv[0] is the executable path
	Stdin      []byte        // serialized arguments payload; may be nil
	Timeout    time.Duration // wall-clock budget per attempt
	MaxRetries int           // additional attempts after the first failure
}

// Result carries the outcome of an invocation. Stdout/Stderr hold whatever
// partial output was captured, even on failure, to aid diagnosis.
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
	Attempts int
	Duration time.Duration
}

// ExecutorOptions tunes retry timing and capture bounds.
type ExecutorOptions struct {
	// Backoff maps the failed attempt number to the pre-retry delay.
	// Default: LinearBackoff(500ms).
	Backoff BackoffPolicy
	// Sleep waits between attempts; injectable so retry timing is testable
	// without wall-clock sleeps. Default honors ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	// MaxOutput caps each captured stream in bytes. Default 1MB.
	MaxOutput int
	// KillGrace is the SIGTERM→SIGKILL escalation window. Default 3s.
	KillGrace time.Duration
}

func (o *ExecutorOptions) setDefaults() {
	if o.Backoff == nil {
		o.Backoff = LinearBackoff(500 * time.Millisecond)
	}
	if o.Sleep == nil {
		o.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if o.MaxOutput <= 0 {
		o.MaxOutput = 1 << 20
	}
	if o.KillGrace <= 0 {
		o.KillGrace = 3 * time.Second
	}
}

// Executor spawns one OS process per invocation attempt, bounded by the
// admission Semaphore and mirrored into the Registry.
//
// Lifecycle per attempt:
//
//	Acquire → spawn → Register(pid) → race Wait() vs timeout → Unregister → Release
//
// The attempt owns its process exclusively: only the attempt's timeout kill
// or the process's natural exit end it. A process killed externally (e.g. by
// the reaper) surfaces here as an abnormal exit and stays retryable.
type Executor struct {
	log  *zap.Logger
	sem  *Semaphore
	reg  *Registry
	opts ExecutorOptions
}

// NewExecutor wires the executor to its admission gate and registry.
func NewExecutor(log *zap.Logger, sem *Semaphore, reg *Registry, opts ExecutorOptions) *Executor {
	opts.setDefaults()
	return &Executor{
		log:  log.Named("executor"),
		sem:  sem,
		reg:  reg,
		opts: opts,
	}
}

// Run performs exactly one attempt, blocking until it completes or times out.
// Admission control is still honored. No retry.
func (e *Executor) Run(ctx context.Context, spec Spec) (*Result, error) {
	start := time.Now()

	out, aerr := e.attempt(ctx, spec, 0)
	res := &Result{
		Stdout:   out.stdout,
		Stderr:   out.stderr,
		ExitCode: out.exitCode,
		Attempts: 1,
		Duration: time.Since(start),
	}
	if aerr != nil {
		return res, aerr
	}
	res.Success = true
	return res, nil
}

// Supervise performs up to 1+MaxRetries attempts with backoff between
// failures. Each attempt gets a fresh timeout budget and its own
// acquire/release bracket. On final failure the classified error of the last
// attempt is returned alongside its partial output.
func (e *Executor) Supervise(ctx context.Context, spec Spec) (*Result, error) {
	start := time.Now()
	res := &Result{}

	var lastErr *InvocationError
	for attempt := 0; attempt <= spec.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.opts.Backoff(attempt - 1)
			e.log.Debug("retrying invocation",
				zap.String("command", spec.Command),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay))
			if err := e.opts.Sleep(ctx, delay); err != nil {
				return res, err
			}
		}

		out, aerr := e.attempt(ctx, spec, attempt)
		res.Stdout = out.stdout
		res.Stderr = out.stderr
		res.ExitCode = out.exitCode
		res.Attempts = attempt + 1
		res.Duration = time.Since(start)

		if aerr == nil {
			res.Success = true
			return res, nil
		}
		lastErr = aerr

		e.log.Warn("invocation attempt failed",
			zap.String("command", spec.Command),
			zap.Int("attempt", attempt),
			zap.String("classification", string(aerr.Classification)),
			zap.Error(aerr.Err))
	}

	return res, lastErr
}

// attemptOutput is the raw capture of one attempt.
type attemptOutput struct {
	stdout   string
	stderr   string
	exitCode int
}

// attempt runs one spawn-and-wait cycle under a held slot.
func (e *Executor) attempt(ctx context.Context, spec Spec, attempt int) (attemptOutput, *InvocationError) {
	var out attemptOutput

	if err := e.sem.Acquire(ctx); err != nil {
		return out, &InvocationError{
			Classification: ClassSpawnFailure,
			Err:            fmt.Errorf("%w: %v", ErrSpawnFailure, err),
		}
	}
	defer e.sem.Release()

	stdout := newCapture(e.opts.MaxOutput)
	stderr := newCapture(e.opts.MaxOutput)

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(spec.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}
	applySysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		// Executable missing, permission denied, fork failure. Fails fast:
		// no timeout wait is consumed, but the attempt still counts.
		return out, &InvocationError{
			Classification: ClassSpawnFailure,
			Err:            fmt.Errorf("%w: %v", ErrSpawnFailure, err),
		}
	}

	pid := cmd.Process.Pid
	e.reg.Register(pid, spec.Command)
	defer e.reg.Unregister(pid)

	e.log.Debug("process spawned",
		zap.String("command", spec.Command),
		zap.Int("pid", pid),
		zap.Int("attempt", attempt))

	doneCh := make(chan error, 1)
	go func() { doneCh <- cmd.Wait() }()

	timer := time.NewTimer(spec.Timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false

	select {
	case waitErr = <-doneCh:

	case <-timer.C:
		timedOut = true
		e.kill(pid)
		waitErr = <-doneCh
	}

	out.stdout = stdout.String()
	out.stderr = stderr.String()

	if timedOut {
		return out, &InvocationError{
			Classification: ClassTimeout,
			Err:            fmt.Errorf("%w after %s", ErrTimeout, spec.Timeout),
		}
	}

	if waitErr != nil {
		exitCode := -1
		var eerr *exec.ExitError
		if errors.As(waitErr, &eerr) {
			exitCode = eerr.ExitCode()
		}
		out.exitCode = exitCode
		return out, &InvocationError{
			Classification: ClassNonZeroExit,
			ExitCode:       exitCode,
			Err:            fmt.Errorf("%w: code %d", ErrNonZeroExit, exitCode),
		}
	}

	return out, nil
}

// kill escalates SIGTERM → grace → SIGKILL against the attempt's process
// group only; sibling invocations are untouched.
func (e *Executor) kill(pid int) {
	if err := signalGroup(pid, syscall.SIGTERM); err != nil {
		e.log.Warn("SIGTERM failed", zap.Int("pid", pid), zap.Error(err))
	}

	t := time.NewTimer(e.opts.KillGrace)
	defer t.Stop()

	probe := time.NewTicker(10 * time.Millisecond)
	defer probe.Stop()

	for {
		select {
		case <-t.C:
			if err := signalGroup(pid, syscall.SIGKILL); err != nil {
				e.log.Warn("SIGKILL failed", zap.Int("pid", pid), zap.Error(err))
			}
			return

		case <-probe.C:
			// Signal 0 probes liveness without delivering anything.
			if err := signalGroup(pid, 0); err != nil {
				return // group gone; SIGTERM sufficed
			}
		}
	}
}
