package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adopscmd/toolgate/internal/infrastructure/toolproc"
	"github.com/adopscmd/toolgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEnumerator struct {
	family []toolproc.FamilyProcess
	killed []int32
}

func (s *stubEnumerator) Family(ctx context.Context) ([]toolproc.FamilyProcess, error) {
	return s.family, nil
}

func (s *stubEnumerator) Kill(pid int32) error {
	s.killed = append(s.killed, pid)
	return nil
}

func TestStatusHandler_SnapshotWire(t *testing.T) {
	log := zap.NewNop()
	sem := toolproc.NewSemaphore(4)
	reg := toolproc.NewRegistry()
	reaper := toolproc.NewReaper(log, &stubEnumerator{})
	reaper.Start(30*time.Second, 2*time.Minute)
	defer reaper.Stop()

	require.NoError(t, sem.Acquire(context.Background()))
	defer sem.Release()
	reg.Register(555, "meta fetch_campaigns")

	svc := service.NewStatusService(log, sem, reg, reaper, service.StatusOptions{})
	h := NewStatusHandler(log, svc)

	r := gin.New()
	r.GET("/api/status", h.Status)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	var semDoc struct {
		Current       int `json:"current"`
		Queued        int `json:"queued"`
		MaxConcurrent int `json:"maxConcurrent"`
	}
	require.NoError(t, json.Unmarshal(doc["semaphore"], &semDoc))
	assert.Equal(t, 1, semDoc.Current)
	assert.Equal(t, 4, semDoc.MaxConcurrent)

	var active struct {
		Count     int `json:"count"`
		Processes []struct {
			PID     int    `json:"pid"`
			Command string `json:"commandDescriptor"`
		} `json:"processes"`
	}
	require.NoError(t, json.Unmarshal(doc["activeProcesses"], &active))
	assert.Equal(t, 1, active.Count)
	require.Len(t, active.Processes, 1)
	assert.Equal(t, 555, active.Processes[0].PID)
	assert.Equal(t, "meta fetch_campaigns", active.Processes[0].Command)

	var cleanup struct {
		IsRunning  bool  `json:"isRunning"`
		IntervalMS int64 `json:"intervalMs"`
		MaxAgeMS   int64 `json:"maxAgeMs"`
	}
	require.NoError(t, json.Unmarshal(doc["cleanup"], &cleanup))
	assert.True(t, cleanup.IsRunning)
	assert.Equal(t, int64(30_000), cleanup.IntervalMS)
	assert.Equal(t, int64(120_000), cleanup.MaxAgeMS)

	assert.Equal(t, "null", string(doc["alert"]))

	// Second read within TTL is served from cache
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("GET", "/api/status", nil))
	assert.Equal(t, "HIT", w2.Header().Get("X-Cache"))

	// force=1 bypasses
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, httptest.NewRequest("GET", "/api/status?force=1", nil))
	assert.Equal(t, "MISS", w3.Header().Get("X-Cache"))
}

func TestCleanupHandler(t *testing.T) {
	log := zap.NewNop()
	enum := &stubEnumerator{family: []toolproc.FamilyProcess{
		{PID: 601, Name: "stuck-connector", StartedAt: time.Now().Add(-time.Hour)},
		{PID: 602, Name: "fresh-connector", StartedAt: time.Now()},
	}}
	reaper := toolproc.NewReaper(log, enum)

	h := NewCleanupHandler(log, reaper)
	r := gin.New()
	r.POST("/api/cleanup", h.Cleanup)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/cleanup", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Age is irrelevant on the manual path
	assert.ElementsMatch(t, []int32{601, 602}, enum.killed)

	var body struct {
		Message string `json:"message"`
		Killed  int64  `json:"killed"`
		Errors  int64  `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Killed)
	assert.Equal(t, int64(0), body.Errors)
}
