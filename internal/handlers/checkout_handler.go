package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/backend"
	"github.com/smarttravel/checkout-backend/internal/middleware"
	"github.com/smarttravel/checkout-backend/internal/models"
	"github.com/smarttravel/checkout-backend/internal/services"
	"github.com/smarttravel/checkout-backend/internal/session"
	"github.com/smarttravel/checkout-backend/internal/utils"
)

// CheckoutFlow is the draft lifecycle the handler exposes
type CheckoutFlow interface {
	Open(ctx context.Context, sess *session.Context, tourCode, departureID string, device *models.DeviceInfo) (*models.BookingDraft, error)
	Get(ctx context.Context, sess *session.Context, id uuid.UUID) (*models.BookingDraft, error)
	Apply(ctx context.Context, sess *session.Context, id uuid.UUID, event models.DraftEvent) (*models.BookingDraft, *models.RosterWarning, error)
	Submit(ctx context.Context, sess *session.Context, id uuid.UUID) (*services.SubmitResult, error)
	Discard(ctx context.Context, sess *session.Context, id uuid.UUID) error
}

// CheckoutHandler handles booking draft endpoints
type CheckoutHandler struct {
	checkout CheckoutFlow
	logger   *logrus.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkout CheckoutFlow, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// ============================================================================
// OPEN - POST /api/v1/checkout
// ============================================================================

// Open starts a checkout for one departure
// @Summary Open checkout
// @Tags Checkout
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.OpenCheckoutRequest true "Tour and departure"
// @Success 201 {object} models.DraftResponse
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Failure 502 {object} map[string]interface{} "Backend unavailable"
// @Router /checkout [post]
func (h *CheckoutHandler) Open(c *gin.Context) {
	sess := middleware.MustGetSession(c)

	var req models.OpenCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	device := utils.ParseDevice(utils.UserAgent(c), utils.ClientIP(c))
	draft, err := h.checkout.Open(c.Request.Context(), sess, req.TourCode, req.DepartureID, &device)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, models.DraftResponse{Draft: draft})
}

// Get returns the current draft
// @Router /checkout/{id} [get]
func (h *CheckoutHandler) Get(c *gin.Context) {
	id, ok := draftID(c)
	if !ok {
		return
	}

	draft, err := h.checkout.Get(c.Request.Context(), middleware.MustGetSession(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.DraftResponse{Draft: draft})
}

// ============================================================================
// EVENTS - POST /api/v1/checkout/:id/events
// ============================================================================

// Apply runs one checkout screen action. A rejected roster edit answers 200
// with the unchanged draft and a warning.
// @Summary Apply checkout event
// @Tags Checkout
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param request body models.DraftEvent true "Event"
// @Success 200 {object} models.DraftResponse
// @Failure 400 {object} map[string]interface{} "Invalid event"
// @Failure 409 {object} map[string]interface{} "Draft already submitted"
// @Router /checkout/{id}/events [post]
func (h *CheckoutHandler) Apply(c *gin.Context) {
	id, ok := draftID(c)
	if !ok {
		return
	}

	var event models.DraftEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, "INVALID_EVENT", "invalid event: "+err.Error())
		return
	}

	draft, warning, err := h.checkout.Apply(c.Request.Context(), middleware.MustGetSession(c), id, event)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.DraftResponse{Draft: draft, Warning: warning})
}

// ============================================================================
// SUBMIT - POST /api/v1/checkout/:id/submit
// ============================================================================

// Submit validates the draft and creates the booking
// @Summary Submit booking
// @Tags Checkout
// @Produce json
// @Param id path string true "Draft ID"
// @Success 201 {object} models.SubmitResponse
// @Failure 409 {object} map[string]interface{} "Seats unavailable, draft reloaded"
// @Failure 422 {object} map[string]interface{} "Validation failed or booking rejected"
// @Router /checkout/{id}/submit [post]
func (h *CheckoutHandler) Submit(c *gin.Context) {
	id, ok := draftID(c)
	if !ok {
		return
	}

	result, err := h.checkout.Submit(c.Request.Context(), middleware.MustGetSession(c), id)
	if err != nil {
		if rejected, ok := backend.AsSubmissionRejected(err); ok && rejected.SeatsUnavailable() && result != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "booking_rejected",
				"message": seatsUnavailableMessage,
				"code":    rejected.Code,
				"draft":   result.Draft,
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, models.SubmitResponse{
		Booking: result.Booking,
		Payload: result.Payload,
		Draft:   result.Draft,
	})
}

// Discard deletes the draft
// @Router /checkout/{id} [delete]
func (h *CheckoutHandler) Discard(c *gin.Context) {
	id, ok := draftID(c)
	if !ok {
		return
	}

	if err := h.checkout.Discard(c.Request.Context(), middleware.MustGetSession(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Checkout discarded"})
}

func draftID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "INVALID_DRAFT_ID", "invalid checkout id")
		return uuid.Nil, false
	}
	return id, true
}
