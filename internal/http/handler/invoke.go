package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/adopscmd/toolgate/internal/infrastructure/toolproc"
	"github.com/adopscmd/toolgate/internal/repo"
	"github.com/adopscmd/toolgate/internal/service"
	"github.com/adopscmd/toolgate/pkg/jsonx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InvokeHandler serves tool invocation requests.
//
// Supported operations:
//   - POST /api/invoke       → Run a tool through the supervised executor
//   - GET  /api/invocations  → Recent invocation history
type InvokeHandler struct {
	log *zap.Logger
	svc *service.InvokerService
}

// NewInvokeHandler constructs an InvokeHandler instance.
func NewInvokeHandler(log *zap.Logger, svc *service.InvokerService) *InvokeHandler {
	return &InvokeHandler{
		log: log.Named("invoke"),
		svc: svc,
	}
}

// Invoke handles POST /api/invoke.
//
// Status Codes:
//   - 200 OK                  → invocation succeeded
//   - 400 Bad Request         → malformed body or invalid command name
//   - 502 Bad Gateway         → tool failed (nonzero_exit / spawn_failure)
//   - 504 Gateway Timeout     → tool exceeded its wall-clock budget
//
// Failure responses still carry the result envelope so callers can see
// classification, attempts, and any partial output.
func (h *InvokeHandler) Invoke(c *gin.Context) {
	var req service.InvokeRequest
	if err := jsonx.ParseStrictBody(c.Request, &req); err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	res, err := h.svc.Invoke(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		if errors.Is(err, service.ErrBadCommand) {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if res.Success {
		c.JSON(http.StatusOK, res)
		return
	}

	status := http.StatusBadGateway
	if res.Classification == string(toolproc.ClassTimeout) {
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, res)
}

// Invocations handles GET /api/invocations.
//
// Query params:
//   - limit → max records to return (default 50, capped at 500)
func (h *InvokeHandler) Invocations(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil {
			c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > 500 {
		limit = 500
	}

	recs, err := h.svc.Recent(c.Request.Context(), limit)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if recs == nil {
		// History disabled or empty; serve an empty list either way
		recs = []*repo.InvocationRecord{}
	}

	c.Header("X-Total-Count", strconv.Itoa(len(recs)))
	c.JSON(http.StatusOK, recs)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("value must be >= 1")
	}
	return n, nil
}
