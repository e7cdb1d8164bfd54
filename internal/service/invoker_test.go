package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adopscmd/toolgate/internal/infrastructure/toolproc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeTool drops an executable shell script into dir and returns dir.
func writeTool(t *testing.T, dir, name, script string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+script+"\n"), 0o755)
	require.NoError(t, err)
}

func newInvokerFixture(t *testing.T) (*InvokerService, string) {
	t.Helper()
	log := zap.NewNop()
	exec := toolproc.NewExecutor(log, toolproc.NewSemaphore(2), toolproc.NewRegistry(), toolproc.ExecutorOptions{
		Sleep: func(ctx context.Context, d time.Duration) error { return nil },
	})
	dir := t.TempDir()
	return NewInvokerService(log, exec, nil, dir), dir
}

func TestInvokerService_Success(t *testing.T) {
	svc, dir := newInvokerFixture(t)
	writeTool(t, dir, "echotool", "cat")

	res, err := svc.Invoke(context.Background(), &InvokeRequest{
		Command:   "echotool",
		Arguments: json.RawMessage(`{"campaign":"c-1"}`),
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, `{"campaign":"c-1"}`, res.Output)
	assert.Empty(t, res.Classification)
	assert.Equal(t, 1, res.Attempts)
	assert.NotEmpty(t, res.ID)
}

func TestInvokerService_FlagsReachTheTool(t *testing.T) {
	svc, dir := newInvokerFixture(t)
	writeTool(t, dir, "argdump", `echo "$@"`)

	res, err := svc.Invoke(context.Background(), &InvokeRequest{
		Command:   "argdump",
		Operation: "fetch_campaigns",
		Flags:     map[string]string{"account": "act_1"},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "fetch_campaigns --account act_1 --json\n", res.Output)
}

func TestInvokerService_ClassifiedFailureInEnvelope(t *testing.T) {
	svc, dir := newInvokerFixture(t)
	writeTool(t, dir, "broken", "echo boom >&2; exit 2")

	retries := 1
	res, err := svc.Invoke(context.Background(), &InvokeRequest{
		Command:    "broken",
		MaxRetries: &retries,
	})
	require.NoError(t, err, "classified failures ride inside the envelope")

	assert.False(t, res.Success)
	assert.Equal(t, string(toolproc.ClassNonZeroExit), res.Classification)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "boom\n", res.Stderr)
	assert.NotEmpty(t, res.Error)
}

func TestInvokerService_Timeout(t *testing.T) {
	svc, dir := newInvokerFixture(t)
	writeTool(t, dir, "slow", "sleep 30")

	retries := 0
	res, err := svc.Invoke(context.Background(), &InvokeRequest{
		Command:    "slow",
		TimeoutMS:  100,
		MaxRetries: &retries,
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, string(toolproc.ClassTimeout), res.Classification)
}

func TestInvokerService_SpawnFailure(t *testing.T) {
	svc, _ := newInvokerFixture(t)

	retries := 0
	res, err := svc.Invoke(context.Background(), &InvokeRequest{
		Command:    "no-such-tool",
		MaxRetries: &retries,
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, string(toolproc.ClassSpawnFailure), res.Classification)
}

func TestInvokerService_BadCommandName(t *testing.T) {
	svc, _ := newInvokerFixture(t)

	_, err := svc.Invoke(context.Background(), &InvokeRequest{Command: "../../bin/sh"})
	assert.ErrorIs(t, err, ErrBadCommand)

	_, err = svc.Invoke(context.Background(), &InvokeRequest{Command: ""})
	assert.ErrorIs(t, err, ErrBadCommand)
}

func TestInvokerService_RecentWithoutHistory(t *testing.T) {
	svc, _ := newInvokerFixture(t)

	recs, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Nil(t, recs)
}
