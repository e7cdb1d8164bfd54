package handler

import (
	"net/http"

	"github.com/adopscmd/toolgate/internal/infrastructure/toolproc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CleanupHandler exposes the manual orphan-cleanup trigger.
type CleanupHandler struct {
	log    *zap.Logger
	reaper *toolproc.Reaper
}

// NewCleanupHandler constructs a CleanupHandler instance.
func NewCleanupHandler(log *zap.Logger, reaper *toolproc.Reaper) *CleanupHandler {
	return &CleanupHandler{
		log:    log.Named("cleanup"),
		reaper: reaper,
	}
}

// Cleanup handles POST /api/cleanup.
//
// Kills every child process regardless of age and returns the updated
// reaper counters. Used from the ops dashboard when invocations wedge.
func (h *CleanupHandler) Cleanup(c *gin.Context) {
	h.log.Info("manual cleanup requested",
		zap.String("client_ip", c.ClientIP()))

	h.reaper.CleanupAll(c.Request.Context())

	stats := h.reaper.Stats()
	c.JSON(http.StatusOK, gin.H{
		"message": "cleanup completed",
		"killed":  stats.Killed,
		"errors":  stats.Errors,
	})
}
