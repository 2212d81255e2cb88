package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/backend"
	"github.com/smarttravel/checkout-backend/internal/checkout"
	"github.com/smarttravel/checkout-backend/internal/models"
	"github.com/smarttravel/checkout-backend/internal/services"
	"github.com/smarttravel/checkout-backend/internal/session"
)

// seatsUnavailableMessage is shown when the capacity race was lost upstream
const seatsUnavailableMessage = "The seats you selected were just taken by another booking. Availability has been refreshed, please review your passengers."

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{session.ErrSessionInvalidated, http.StatusUnauthorized, "SESSION_INVALIDATED", "Your session has expired. Please sign in again."},
	{models.ErrDraftNotFound, http.StatusNotFound, "DRAFT_NOT_FOUND", "This checkout has expired or does not exist."},
	{models.ErrDraftForbidden, http.StatusForbidden, "FORBIDDEN", "This checkout belongs to another account."},
	{models.ErrDraftSubmitted, http.StatusConflict, "DRAFT_SUBMITTED", "This booking has already been submitted."},
	{models.ErrPaymentSessionNotFound, http.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment session not found."},
	{checkout.ErrInvalidEvent, http.StatusBadRequest, "INVALID_EVENT", ""},
	{services.ErrDraftNotSubmitted, http.StatusConflict, "DRAFT_NOT_SUBMITTED", "Submit the booking before paying."},
	{services.ErrGatewayNotEnabled, http.StatusBadRequest, "GATEWAY_NOT_ENABLED", "This payment method is not available."},
	{services.ErrBookingMismatch, http.StatusBadRequest, "BOOKING_MISMATCH", "The booking code does not match this checkout."},
	{services.ErrPaymentInitiation, http.StatusBadGateway, "PAYMENT_INITIATION_FAILED", "We could not reach the payment gateway. Please try again."},
	{services.ErrShuttingDown, http.StatusServiceUnavailable, "SHUTTING_DOWN", "The service is restarting. Please try again shortly."},
	{backend.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "The tour or departure could not be found."},
}

// respondError translates a service error into the JSON error body
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	if verr, ok := models.AsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": verr.Message,
			"code":    "VALIDATION_FAILED",
			"rule":    verr.Rule,
			"field":   verr.Field,
		})
		return
	}

	if rejected, ok := backend.AsSubmissionRejected(err); ok {
		status, message := http.StatusUnprocessableEntity, rejected.Message
		if rejected.SeatsUnavailable() {
			status, message = http.StatusConflict, seatsUnavailableMessage
		}
		c.JSON(status, gin.H{
			"error":   "booking_rejected",
			"message": message,
			"code":    rejected.Code,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			message := m.message
			if message == "" {
				message = err.Error()
			}
			c.JSON(m.status, gin.H{
				"error":   http.StatusText(m.status),
				"message": message,
				"code":    m.code,
			})
			return
		}
	}

	if backend.IsUpstream(err) {
		logger.WithError(err).Warn("Upstream backend failure")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "upstream_error",
			"message": "The booking service is temporarily unavailable. Please try again.",
			"code":    "UPSTREAM_ERROR",
		})
		return
	}

	logger.WithError(err).Error("Unhandled request error")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Something went wrong. Please try again.",
		"code":    "INTERNAL_ERROR",
	})
}

// badRequest reports an unreadable body or path parameter
func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": message,
		"code":    code,
	})
}
