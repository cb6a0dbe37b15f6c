package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/faresafe/resale-backend/internal/dto"
	"github.com/faresafe/resale-backend/internal/logger"
	"github.com/faresafe/resale-backend/internal/payment"
	"github.com/faresafe/resale-backend/internal/service"
)

// WebhookHandler receives signed payment provider callbacks. It is the only
// unauthenticated write surface, so the signature check runs before the body
// is even parsed.
type WebhookHandler struct {
	svc           *service.OrderService
	webhookSecret string
}

func NewWebhookHandler(svc *service.OrderService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{svc: svc, webhookSecret: webhookSecret}
}

// HandlePaymentWebhook POST /webhooks/payment
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "cannot read request body"})
		return
	}

	signature := c.GetHeader(payment.SignatureHeader)
	if !payment.VerifySignature(h.webhookSecret, body, signature) {
		if logger.Log != nil {
			logger.Log.WithField("path", c.Request.URL.Path).Warn("webhook signature rejected")
		}
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid signature"})
		return
	}

	event, err := payment.ParseWebhook(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.svc.HandleWebhookEvent(c.Request.Context(), event); err != nil {
		// Non-2xx makes the provider retry the delivery later.
		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"event_id":   event.EventID,
				"event_type": event.Type,
				"error":      err.Error(),
			}).Error("webhook processing failed")
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "event processing failed"})
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
}
