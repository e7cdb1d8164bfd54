package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adopscmd/toolgate/internal/infrastructure/toolproc"
	"github.com/adopscmd/toolgate/internal/metrics"
	"github.com/adopscmd/toolgate/internal/repo"
	"github.com/adopscmd/toolgate/pkg/toolcmd"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBadCommand reports an invocation request that names an invalid
// command/operation identifier. Maps to HTTP 400 at the transport layer.
var ErrBadCommand = errors.New("invalid command")

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
)

// InvokeRequest is the caller-facing invocation descriptor.
type InvokeRequest struct {
	Command    string            `json:"command"`
	Operation  string            `json:"operation"`
	Flags      map[string]string `json:"flags"`
	Arguments  json.RawMessage   `json:"arguments"`
	TimeoutMS  int64             `json:"timeout_ms"`
	MaxRetries *int              `json:"max_retries"`
}

// InvokeResult is the caller-facing outcome envelope. Output is whatever
// partial stdout/stderr was captured, even on failure.
type InvokeResult struct {
	ID             string `json:"id"`
	Success        bool   `json:"success"`
	Output         string `json:"output"`
	Stderr         string `json:"stderr,omitempty"`
	Error          string `json:"error,omitempty"`
	Classification string `json:"classification,omitempty"`
	Attempts       int    `json:"attempts"`
	DurationMS     int64  `json:"durationMs"`
}

// InvokerService turns invocation requests into supervised subprocess runs:
// argv construction, stdin payload serialization, executor supervision,
// metrics, and best-effort history recording.
type InvokerService struct {
	log      *zap.Logger
	exec     *toolproc.Executor
	history  *repo.InvocationRepository
	toolsDir string
}

// NewInvokerService wires the service. history may be nil (recording off).
func NewInvokerService(log *zap.Logger, exec *toolproc.Executor, history *repo.InvocationRepository, toolsDir string) *InvokerService {
	return &InvokerService{
		log:      log.Named("invoker"),
		exec:     exec,
		history:  history,
		toolsDir: toolsDir,
	}
}

// Invoke runs one supervised invocation end to end.
//
// The classified failure (timeout / nonzero_exit / spawn_failure) comes back
// inside the result envelope, not as the error return; the error return is
// reserved for request-shape problems (ErrBadCommand) and context
// cancellation, which the transport maps differently.
func (s *InvokerService) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error) {
	argv, err := toolcmd.FromRequest(s.toolsDir, req.Command, req.Operation, req.Flags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}

	timeout := defaultTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	maxRetries := defaultMaxRetries
	if req.MaxRetries != nil && *req.MaxRetries >= 0 {
		maxRetries = *req.MaxRetries
	}

	descriptor := req.Command
	if req.Operation != "" {
		descriptor += " " + req.Operation
	}

	spec := toolproc.Spec{
		Command:    descriptor,
		Argv:       argv,
		Stdin:      req.Arguments,
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}

	id := uuid.New().String()
	startedAt := time.Now()

	run, runErr := s.exec.Supervise(ctx, spec)

	out := &InvokeResult{
		ID:         id,
		Success:    run.Success,
		Output:     run.Stdout,
		Stderr:     run.Stderr,
		Attempts:   run.Attempts,
		DurationMS: run.Duration.Milliseconds(),
	}

	outcome := "success"
	if runErr != nil {
		var ierr *toolproc.InvocationError
		if errors.As(runErr, &ierr) {
			out.Classification = string(ierr.Classification)
			out.Error = ierr.Error()
			outcome = string(ierr.Classification)
		} else {
			// Context cancellation mid-supervision; not a tool failure.
			return out, runErr
		}
	}

	metrics.InvocationsTotal.WithLabelValues(req.Command, outcome).Inc()
	metrics.InvocationDuration.WithLabelValues(req.Command).Observe(run.Duration.Seconds())
	if run.Attempts > 1 {
		metrics.RetriesTotal.WithLabelValues(req.Command).Add(float64(run.Attempts - 1))
	}

	s.record(ctx, &repo.InvocationRecord{
		ID:             id,
		Command:        req.Command,
		Operation:      req.Operation,
		Success:        out.Success,
		Classification: out.Classification,
		ExitCode:       run.ExitCode,
		Attempts:       run.Attempts,
		DurationMS:     out.DurationMS,
		StartedAt:      startedAt,
	})

	return out, nil
}

// Recent proxies the history ring for the HTTP surface.
func (s *InvokerService) Recent(ctx context.Context, limit int) ([]*repo.InvocationRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

// record persists the outcome best-effort; history must never fail an
// invocation that already ran.
func (s *InvokerService) record(ctx context.Context, rec *repo.InvocationRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, rec); err != nil {
		s.log.Warn("history record failed",
			zap.String("invocation_id", rec.ID),
			zap.Error(err))
	}
}
