package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/middleware"
	"github.com/smarttravel/checkout-backend/internal/models"
	"github.com/smarttravel/checkout-backend/internal/services"
	"github.com/smarttravel/checkout-backend/internal/session"
)

// PaymentFlow is the payment lifecycle the handler exposes
type PaymentFlow interface {
	Initiate(ctx context.Context, sess *session.Context, in services.InitiatePaymentInput) (*models.InitiatePaymentResponse, error)
	Status(ctx context.Context, sess *session.Context, orderCode string) (*models.PaymentSessionResponse, error)
	Leave(ctx context.Context, sess *session.Context, orderCode string) (bool, error)
}

// PaymentHandler handles payment initiation and the waiting view
type PaymentHandler struct {
	payments PaymentFlow
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentFlow, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// ============================================================================
// INITIATE - POST /api/v1/payments
// ============================================================================

// Initiate creates the gateway session for a submitted booking
// @Summary Initiate payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.InitiatePaymentRequest true "Booking and gateway"
// @Success 201 {object} models.InitiatePaymentResponse
// @Failure 400 {object} map[string]interface{} "Gateway not enabled"
// @Failure 502 {object} map[string]interface{} "Gateway session could not be created"
// @Router /payments [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}
	draftID, err := uuid.Parse(req.DraftID)
	if err != nil {
		badRequest(c, "INVALID_DRAFT_ID", "invalid checkout id")
		return
	}

	resp, err := h.payments.Initiate(c.Request.Context(), middleware.MustGetSession(c), services.InitiatePaymentInput{
		BookingCode: strings.TrimSpace(req.BookingCode),
		Gateway:     req.Gateway,
		DraftID:     draftID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ============================================================================
// WAITING VIEW - GET/DELETE /api/v1/payments/:orderCode
// ============================================================================

// Status returns the session state shown on the waiting view
// @Summary Payment status
// @Tags Payments
// @Produce json
// @Param orderCode path string true "Order code"
// @Success 200 {object} models.PaymentSessionResponse
// @Failure 404 {object} map[string]interface{} "Not found"
// @Router /payments/{orderCode} [get]
func (h *PaymentHandler) Status(c *gin.Context) {
	resp, err := h.payments.Status(c.Request.Context(), middleware.MustGetSession(c), c.Param("orderCode"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Leave stops polling because the waiting view was closed
// @Router /payments/{orderCode}/watch [delete]
func (h *PaymentHandler) Leave(c *gin.Context) {
	stopped, err := h.payments.Leave(c.Request.Context(), middleware.MustGetSession(c), c.Param("orderCode"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stopped watching payment",
		"stopped": stopped,
	})
}
