package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adopscmd/toolgate/internal/infrastructure/toolproc"
	"github.com/adopscmd/toolgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newInvokeRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	log := zap.NewNop()
	exec := toolproc.NewExecutor(log, toolproc.NewSemaphore(2), toolproc.NewRegistry(), toolproc.ExecutorOptions{
		Sleep: func(ctx context.Context, d time.Duration) error { return nil },
	})
	dir := t.TempDir()
	svc := service.NewInvokerService(log, exec, nil, dir)

	h := NewInvokeHandler(log, svc)
	r := gin.New()
	r.POST("/api/invoke", h.Invoke)
	r.GET("/api/invocations", h.Invocations)
	return r, dir
}

func writeTool(t *testing.T, dir, name, script string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+script+"\n"), 0o755)
	require.NoError(t, err)
}

func postInvoke(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/invoke", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestInvokeHandler_Success(t *testing.T) {
	r, dir := newInvokeRouter(t)
	writeTool(t, dir, "meta", "echo '{\"rows\":3}'")

	w := postInvoke(r, `{"command":"meta","operation":"fetch_campaigns"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res service.InvokeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "{\"rows\":3}\n", res.Output)
	assert.Equal(t, 1, res.Attempts)
}

func TestInvokeHandler_NonZeroExitIs502(t *testing.T) {
	r, dir := newInvokeRouter(t)
	writeTool(t, dir, "broken", "exit 4")

	w := postInvoke(r, `{"command":"broken","max_retries":0}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var res service.InvokeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Equal(t, "nonzero_exit", res.Classification)
}

func TestInvokeHandler_TimeoutIs504(t *testing.T) {
	r, dir := newInvokeRouter(t)
	writeTool(t, dir, "slow", "sleep 30")

	w := postInvoke(r, `{"command":"slow","timeout_ms":100,"max_retries":0}`)
	require.Equal(t, http.StatusGatewayTimeout, w.Code)

	var res service.InvokeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "timeout", res.Classification)
}

func TestInvokeHandler_SpawnFailureIs502(t *testing.T) {
	r, _ := newInvokeRouter(t)

	w := postInvoke(r, `{"command":"ghost","max_retries":0}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var res service.InvokeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "spawn_failure", res.Classification)
}

func TestInvokeHandler_BadBodyIs400(t *testing.T) {
	r, _ := newInvokeRouter(t)

	for _, body := range []string{
		``,
		`{`,
		`{"command":"meta","bogus_field":1}`,
		`{"command":7}`,
	} {
		w := postInvoke(r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body=%q", body)
	}
}

func TestInvokeHandler_BadCommandIs400(t *testing.T) {
	r, _ := newInvokeRouter(t)

	w := postInvoke(r, `{"command":"../../bin/sh"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvokeHandler_InvocationsWithoutHistory(t *testing.T) {
	r, _ := newInvokeRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/invocations", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Total-Count"))
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestInvokeHandler_InvocationsBadLimit(t *testing.T) {
	r, _ := newInvokeRouter(t)

	for _, q := range []string{"limit=0", "limit=-2", "limit=abc"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/invocations?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}
