package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/faresafe/resale-backend/internal/dto"
	"github.com/faresafe/resale-backend/internal/http/handlers/common"
	"github.com/faresafe/resale-backend/internal/service"
)

type VerificationHandler struct {
	svc *service.VerificationService
}

func NewVerificationHandler(s *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{svc: s}
}

// Get GET /api/verification
func (h *VerificationHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	verification, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

// CompleteStep POST /api/verification/steps
func (h *VerificationHandler) CompleteStep(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CompleteVerificationStepRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	verification, err := h.svc.CompleteStep(c.Request.Context(), userID, req.Step)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, verification)
}
