package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"brieflycloud/internal/app"
	"brieflycloud/internal/transport/http/response"
)

type BillingHandler struct {
	billingService *app.BillingService
}

type CheckoutRequest struct {
	Tier string `json:"tier" binding:"required"`
}

func NewBillingHandler(billingService *app.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

func (h *BillingHandler) Tiers(c *gin.Context) {
	response.OK(c, h.billingService.Tiers())
}

// Checkout creates a Stripe Checkout session and returns its URL for
// the frontend to redirect to.
func (h *BillingHandler) Checkout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	checkoutURL, err := h.billingService.Checkout(userID, req.Tier)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownTier):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUserNotFound):
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
		default:
			response.Error(c, http.StatusBadGateway, response.CodeUpstream, "create checkout session failed")
		}
		return
	}

	response.OK(c, gin.H{"url": checkoutURL})
}

// Webhook verifies and applies Stripe events. Errors other than a bad
// signature return 500 so Stripe retries the delivery.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read webhook payload failed")
		return
	}

	if err := h.billingService.HandleWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		if errors.Is(err, app.ErrWebhookSignature) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "handle webhook failed")
		return
	}

	response.OK(c, gin.H{"received": true})
}
