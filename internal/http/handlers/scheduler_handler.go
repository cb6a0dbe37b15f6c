package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faresafe/resale-backend/internal/dto"
	"github.com/faresafe/resale-backend/internal/service"
)

// SchedulerSecretHeader authenticates the external cron caller.
const SchedulerSecretHeader = "X-Scheduler-Secret"

// SchedulerHandler exposes the deadline sweep to an external cron trigger.
type SchedulerHandler struct {
	svc    *service.SchedulerService
	secret string
}

func NewSchedulerHandler(svc *service.SchedulerService, secret string) *SchedulerHandler {
	return &SchedulerHandler{svc: svc, secret: secret}
}

// Run POST /internal/scheduler/run
func (h *SchedulerHandler) Run(c *gin.Context) {
	provided := c.GetHeader(SchedulerSecretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid scheduler secret"})
		return
	}

	report, err := h.svc.Run(c.Request.Context(), time.Now().UTC())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}
