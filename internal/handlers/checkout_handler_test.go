package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttravel/checkout-backend/internal/backend"
	"github.com/smarttravel/checkout-backend/internal/checkout"
	"github.com/smarttravel/checkout-backend/internal/middleware"
	"github.com/smarttravel/checkout-backend/internal/models"
	"github.com/smarttravel/checkout-backend/internal/services"
	"github.com/smarttravel/checkout-backend/internal/session"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// withSession stands in for AuthMiddleware
func withSession(sess *session.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.SessionContextKey, sess)
		c.Set(middleware.UserIDContextKey, sess.User.ID.String())
		c.Next()
	}
}

func testSession() *session.Context {
	return &session.Context{
		Token: "user-token",
		User:  session.User{ID: uuid.New(), Email: "guest@example.com", Name: "Tran Thi B"},
	}
}

type fakeCheckoutFlow struct {
	draft       *models.BookingDraft
	warning     *models.RosterWarning
	result      *services.SubmitResult
	err         error
	lastEvent   models.DraftEvent
	lastDevice  *models.DeviceInfo
	lastTour    string
	discardedID uuid.UUID
}

func (f *fakeCheckoutFlow) Open(ctx context.Context, sess *session.Context, tourCode, departureID string, device *models.DeviceInfo) (*models.BookingDraft, error) {
	f.lastTour = tourCode
	f.lastDevice = device
	return f.draft, f.err
}

func (f *fakeCheckoutFlow) Get(ctx context.Context, sess *session.Context, id uuid.UUID) (*models.BookingDraft, error) {
	return f.draft, f.err
}

func (f *fakeCheckoutFlow) Apply(ctx context.Context, sess *session.Context, id uuid.UUID, event models.DraftEvent) (*models.BookingDraft, *models.RosterWarning, error) {
	f.lastEvent = event
	return f.draft, f.warning, f.err
}

func (f *fakeCheckoutFlow) Submit(ctx context.Context, sess *session.Context, id uuid.UUID) (*services.SubmitResult, error) {
	return f.result, f.err
}

func (f *fakeCheckoutFlow) Discard(ctx context.Context, sess *session.Context, id uuid.UUID) error {
	f.discardedID = id
	return f.err
}

func setupCheckoutRouter(flow CheckoutFlow) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewCheckoutHandler(flow, quietLogger())

	group := router.Group("/api/v1", withSession(testSession()))
	group.POST("/checkout", h.Open)
	group.GET("/checkout/:id", h.Get)
	group.DELETE("/checkout/:id", h.Discard)
	group.POST("/checkout/:id/events", h.Apply)
	group.POST("/checkout/:id/submit", h.Submit)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sampleDraft() *models.BookingDraft {
	return &models.BookingDraft{
		ID:     uuid.New(),
		Status: models.DraftStatusOpen,
		Roster: models.Roster{Adults: []models.Passenger{{Category: models.CategoryAdult}}},
		Quote:  models.Quote{Subtotal: 1_000_000, FinalTotal: 900_000},
	}
}

func TestCheckoutHandler_Open(t *testing.T) {
	flow := &fakeCheckoutFlow{draft: sampleDraft()}
	router := setupCheckoutRouter(flow)

	w := doJSON(router, http.MethodPost, "/api/v1/checkout",
		map[string]string{"tour_code": "HLB-3N2D", "departure_id": "dep-1"},
		map[string]string{
			"User-Agent":      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			"X-Forwarded-For": "203.0.113.7, 10.0.0.1",
		})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "HLB-3N2D", flow.lastTour)
	require.NotNil(t, flow.lastDevice)
	assert.Equal(t, "mobile", flow.lastDevice.DeviceType)
	assert.Equal(t, "203.0.113.7", flow.lastDevice.IPAddress)

	body := decode(t, w)
	draft := body["draft"].(map[string]interface{})
	assert.Equal(t, float64(900_000), draft["quote"].(map[string]interface{})["final_total"])
}

func TestCheckoutHandler_Open_MissingFields(t *testing.T) {
	router := setupCheckoutRouter(&fakeCheckoutFlow{})

	w := doJSON(router, http.MethodPost, "/api/v1/checkout", map[string]string{"tour_code": "HLB-3N2D"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w)["code"])
}

func TestCheckoutHandler_InvalidDraftID(t *testing.T) {
	router := setupCheckoutRouter(&fakeCheckoutFlow{})

	w := doJSON(router, http.MethodGet, "/api/v1/checkout/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_DRAFT_ID", decode(t, w)["code"])
}

func TestCheckoutHandler_Apply_Warning(t *testing.T) {
	flow := &fakeCheckoutFlow{
		draft:   sampleDraft(),
		warning: &models.RosterWarning{Code: models.WarnCapacityReached, Message: "Only 1 seat(s) are available on this departure."},
	}
	router := setupCheckoutRouter(flow)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/checkout/%s/events", flow.draft.ID),
		map[string]string{"type": "increment", "category": "ADULT"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EventIncrement, flow.lastEvent.Type)
	warning := decode(t, w)["warning"].(map[string]interface{})
	assert.Equal(t, "CAPACITY_REACHED", warning["code"])
}

func TestCheckoutHandler_Apply_MissingType(t *testing.T) {
	router := setupCheckoutRouter(&fakeCheckoutFlow{})

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/checkout/%s/events", uuid.New()), map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_EVENT", decode(t, w)["code"])
}

func TestCheckoutHandler_Submit(t *testing.T) {
	booking := &models.Booking{BookingCode: "BK-1001", FinalTotal: 900_000}
	flow := &fakeCheckoutFlow{result: &services.SubmitResult{
		Draft:   sampleDraft(),
		Booking: booking,
		Payload: &models.SubmissionPayload{TourCode: "HLB-3N2D"},
	}}
	router := setupCheckoutRouter(flow)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/checkout/%s/submit", uuid.New()), nil, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "BK-1001", body["booking"].(map[string]interface{})["booking_code"])
	assert.Equal(t, "HLB-3N2D", body["payload"].(map[string]interface{})["tour_code"])
}

func TestCheckoutHandler_Submit_SeatsUnavailableReturnsReloadedDraft(t *testing.T) {
	reloaded := sampleDraft()
	reloaded.Context.PriceSchedule.AvailableSlots = 0
	flow := &fakeCheckoutFlow{
		result: &services.SubmitResult{Draft: reloaded},
		err:    &backend.SubmissionRejectedError{StatusCode: 409, Code: backend.CodeSeatsUnavailable, Message: "sold out"},
	}
	router := setupCheckoutRouter(flow)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/checkout/%s/submit", reloaded.ID), nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "SEATS_UNAVAILABLE", body["code"])
	assert.Equal(t, seatsUnavailableMessage, body["message"])
	assert.Equal(t, reloaded.ID.String(), body["draft"].(map[string]interface{})["id"])
}

func TestCheckoutHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &models.ValidationError{Rule: models.RuleContact, Field: "contact.phone", Message: "bad phone"}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"coupon rejected", &backend.SubmissionRejectedError{StatusCode: 422, Code: backend.CodeCouponInvalid, Message: "expired"}, http.StatusUnprocessableEntity, "COUPON_INVALID"},
		{"already submitted", models.ErrDraftSubmitted, http.StatusConflict, "DRAFT_SUBMITTED"},
		{"not found", models.ErrDraftNotFound, http.StatusNotFound, "DRAFT_NOT_FOUND"},
		{"forbidden", models.ErrDraftForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"invalid event", fmt.Errorf("%w: unknown type", checkout.ErrInvalidEvent), http.StatusBadRequest, "INVALID_EVENT"},
		{"session invalidated", fmt.Errorf("%w: 401", session.ErrSessionInvalidated), http.StatusUnauthorized, "SESSION_INVALIDATED"},
		{"upstream", &backend.UpstreamError{Op: "create booking", StatusCode: 503}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupCheckoutRouter(&fakeCheckoutFlow{err: tt.err})

			w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/checkout/%s/submit", uuid.New()), nil, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode(t, w)["code"])
		})
	}
}

func TestCheckoutHandler_Discard(t *testing.T) {
	flow := &fakeCheckoutFlow{}
	router := setupCheckoutRouter(flow)
	id := uuid.New()

	w := doJSON(router, http.MethodDelete, "/api/v1/checkout/"+id.String(), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, flow.discardedID)
}
