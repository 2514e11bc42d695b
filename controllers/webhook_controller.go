package controllers

import (
	"encoding/json"
	"net/http"

	"checkout-service/gateway"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WebhookController struct {
	service   *services.WebhookService
	validator *gateway.WebhookValidator
	logger    *zap.Logger
}

func NewWebhookController(service *services.WebhookService, validator *gateway.WebhookValidator, logger *zap.Logger) *WebhookController {
	return &WebhookController{service: service, validator: validator, logger: logger}
}

// HandleGatewayWebhook handles POST /webhooks/asaas. After signature
// authentication the vendor always gets a success acknowledgment: internal
// failures are logged for operators, never surfaced, so a bug here cannot
// trigger a vendor retry storm.
func (wc *WebhookController) HandleGatewayWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	if wc.validator.Enabled() {
		signature := c.GetHeader("Asaas-Signature")
		if !wc.validator.ValidateSignature(signature, body) {
			wc.logger.Warn("webhook signature verification failed", zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var evt services.WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		wc.logger.Warn("malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	if err := wc.service.ProcessEvent(c.Request.Context(), evt); err != nil {
		wc.logger.Error("webhook processing failed",
			zap.String("event", evt.Event),
			zap.String("external_reference", evt.Payment.ExternalReference),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// ConfirmPayment handles POST /test/confirm-payment/:orderId, the operator
// override for manual reconciliation. Admin-gated in the route registration.
func (wc *WebhookController) ConfirmPayment(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	order, svcErr := wc.service.ConfirmManually(c.Request.Context(), orderID)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}
