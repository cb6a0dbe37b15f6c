package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/faresafe/resale-backend/internal/dto"
	"github.com/faresafe/resale-backend/internal/http/handlers/common"
	"github.com/faresafe/resale-backend/internal/service"
)

type TransferHandler struct {
	svc *service.TransferService
}

func NewTransferHandler(s *service.TransferService) *TransferHandler {
	return &TransferHandler{svc: s}
}

// Get GET /api/orders/:id/transfer
func (h *TransferHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	transfer, err := h.svc.Get(c.Request.Context(), userID, orderID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

// SubmitProof POST /api/orders/:id/transfer/proof
func (h *TransferHandler) SubmitProof(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SubmitProofRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	transfer, err := h.svc.SubmitProof(c.Request.Context(), userID, orderID, req.ProofURLs, req.ReferenceCode)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

// ConfirmReceipt POST /api/orders/:id/transfer/confirm
func (h *TransferHandler) ConfirmReceipt(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ConfirmReceiptRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	order, err := h.svc.ConfirmReceipt(c.Request.Context(), userID, orderID, req.ProofURLs)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ReportIssue POST /api/orders/:id/transfer/report
func (h *TransferHandler) ReportIssue(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ReportIssueRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.svc.ReportIssue(c.Request.Context(), userID, orderID, req.Reason, req.Statement, req.Evidence)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dispute)
}
