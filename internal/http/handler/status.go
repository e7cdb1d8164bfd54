package handler

import (
	"net/http"
	"strconv"

	"github.com/adopscmd/toolgate/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusHandler serves the orchestration observability snapshot.
type StatusHandler struct {
	log *zap.Logger
	svc *service.StatusService
}

// NewStatusHandler constructs a StatusHandler instance.
func NewStatusHandler(log *zap.Logger, svc *service.StatusService) *StatusHandler {
	return &StatusHandler{
		log: log.Named("status"),
		svc: svc,
	}
}

// Status handles GET /api/status.
//
// Behavior:
//   - Serves the cached snapshot when fresh; ?force=1 bypasses the cache.
//   - Adds X-Cache and X-Generated-At headers for dashboard debugging.
func (h *StatusHandler) Status(c *gin.Context) {
	if c.Query("force") == "1" {
		h.svc.Invalidate()
	}

	res, err := h.svc.Get(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.Header("X-Cache", map[bool]string{true: "HIT", false: "MISS"}[res.CacheHit])
	c.Header("X-Generated-At", strconv.FormatInt(res.Data.GeneratedAt.UnixMilli(), 10))

	c.JSON(http.StatusOK, res.Data)
}
