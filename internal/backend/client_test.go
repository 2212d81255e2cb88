package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttravel/checkout-backend/internal/config"
	"github.com/smarttravel/checkout-backend/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.BackendConfig{
		BaseURL:      srv.URL + "/",
		Timeout:      5 * time.Second,
		ServiceToken: "service-token",
	}, quietLogger())
}

func TestGetCheckoutContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/checkout-context", r.URL.Path)
		assert.Equal(t, "HLG-3N2D", r.URL.Query().Get("tourCode"))
		assert.Equal(t, "dep-2026-11-02", r.URL.Query().Get("departureId"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"tour_code": "HLG-3N2D",
			"departure_id": "dep-2026-11-02",
			"currency": "VND",
			"price_schedule": {"adult_price": 5000000, "child_price": 3000000, "single_room_surcharge": 1200000, "available_slots": 4},
			"departure_coupon": {"code": "DEP200", "discount_amount": 200000, "scope": "DEPARTURE"},
			"global_coupons": [{"code": "SUMMER500", "discount_amount": 500000, "min_order_value": 8000000, "scope": "GLOBAL"}],
			"loyalty": {"points_available": 1000, "exchange_rate": 1000}
		}`))
	})

	ctx, err := client.GetCheckoutContext(context.Background(), "user-token", "HLG-3N2D", "dep-2026-11-02")
	require.NoError(t, err)

	assert.Equal(t, "HLG-3N2D", ctx.TourCode)
	assert.Equal(t, int64(5000000), ctx.PriceSchedule.AdultPrice)
	require.NotNil(t, ctx.PriceSchedule.ChildPrice)
	assert.Equal(t, int64(3000000), *ctx.PriceSchedule.ChildPrice)
	assert.Nil(t, ctx.PriceSchedule.InfantPrice)
	assert.Equal(t, 4, ctx.PriceSchedule.AvailableSlots)
	require.NotNil(t, ctx.DepartureCoupon)
	assert.Equal(t, "DEP200", ctx.DepartureCoupon.Code)
	require.Len(t, ctx.GlobalCoupons, 1)
	assert.Equal(t, int64(8000000), *ctx.GlobalCoupons[0].MinOrderValue)
	assert.Equal(t, int64(1000), ctx.Loyalty.PointsAvailable)
	assert.False(t, ctx.FetchedAt.IsZero())
}

func TestGetCheckoutContext_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrUnauthorized)
		}},
		{"not found", http.StatusNotFound, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNotFound)
		}},
		{"server error", http.StatusBadGateway, func(t *testing.T, err error) {
			assert.True(t, IsUpstream(err))
			var u *UpstreamError
			require.True(t, errors.As(err, &u))
			assert.Equal(t, http.StatusBadGateway, u.StatusCode)
			assert.Equal(t, "departure service down", u.Message)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"departure service down"}`))
			})
			_, err := client.GetCheckoutContext(context.Background(), "t", "X", "Y")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetCheckoutContext_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := client.GetCheckoutContext(context.Background(), "t", "X", "Y")
	assert.True(t, IsUpstream(err))
}

func TestCreateBooking(t *testing.T) {
	points := int64(150)
	payload := &models.SubmissionPayload{
		TourCode:    "HLG-3N2D",
		DepartureID: "dep-2026-11-02",
		Passengers: []models.SubmissionPassenger{
			{Category: models.CategoryAdult, FullName: "Nguyen Van A", DateOfBirth: "1990-01-01"},
		},
		CouponCodes:   []string{"DEP200"},
		PointsUsed:    &points,
		Contact:       models.ContactInfo{FullName: "Nguyen Van A", Phone: "0901234567", Email: "a@example.com"},
		ExpectedTotal: 4650000,
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bookings", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got models.SubmissionPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, []string{"DEP200"}, got.CouponCodes)
		require.NotNil(t, got.PointsUsed)
		assert.Equal(t, int64(150), *got.PointsUsed)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"booking_code":"BK-0001","status":"PENDING_PAYMENT","subtotal":5000000,"total_discount":350000,"final_total":4650000}`))
	})

	booking, err := client.CreateBooking(context.Background(), "t", "key-123", payload)
	require.NoError(t, err)
	assert.Equal(t, "BK-0001", booking.BookingCode)
	assert.Equal(t, int64(4650000), booking.FinalTotal)
}

func TestCreateBooking_Rejections(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		expectedCode string
	}{
		{"capacity race by code", http.StatusUnprocessableEntity, `{"code":"SEATS_UNAVAILABLE","message":"Only 1 seat left"}`, CodeSeatsUnavailable},
		{"capacity race by status", http.StatusConflict, `{"message":"Only 1 seat left"}`, CodeSeatsUnavailable},
		{"coupon invalid", http.StatusUnprocessableEntity, `{"error":{"code":"coupon_invalid","message":"Coupon expired"}}`, CodeCouponInvalid},
		{"other", http.StatusBadRequest, `{"message":"bad passenger"}`, CodeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.CreateBooking(context.Background(), "t", "k", &models.SubmissionPayload{})
			rejected, ok := AsSubmissionRejected(err)
			require.True(t, ok, "expected a rejection, got %v", err)
			assert.Equal(t, tt.expectedCode, rejected.Code)
			assert.Equal(t, tt.status, rejected.StatusCode)
			assert.NotEmpty(t, rejected.Message)
			assert.Equal(t, tt.expectedCode == CodeSeatsUnavailable, rejected.SeatsUnavailable())
		})
	}
}

func TestCreateBooking_UnauthorizedAndServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.CreateBooking(context.Background(), "t", "k", &models.SubmissionPayload{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err = client.CreateBooking(context.Background(), "t", "k", &models.SubmissionPayload{})
	assert.True(t, IsUpstream(err))
	_, rejected := AsSubmissionRejected(err)
	assert.False(t, rejected)
}

func TestCreatePaymentSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		var got CreatePaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "BK-0001", got.BookingCode)
		assert.Equal(t, int64(4650000), got.Amount)
		assert.Equal(t, "vnpay", got.Gateway)

		_, _ = w.Write([]byte(`{"payment_url":"https://pay.example.com/abc","order_code":"ORD-1"}`))
	})

	resp, err := client.CreatePaymentSession(context.Background(), "t", CreatePaymentRequest{BookingCode: "BK-0001", Amount: 4650000, Gateway: "vnpay"})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", resp.OrderCode)
	assert.Equal(t, "https://pay.example.com/abc", resp.PaymentURL)
}

func TestCreatePaymentSession_IncompleteResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order_code":"ORD-1"}`))
	})
	_, err := client.CreatePaymentSession(context.Background(), "t", CreatePaymentRequest{})
	assert.True(t, IsUpstream(err))
}

func TestPaymentStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/ORD-1/status", r.URL.Path)
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"vnp_ResponseCode":"00"}`))
	})

	body, err := client.PaymentStatus(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"vnp_ResponseCode":"00"}`, string(body))
}

func TestPaymentStatus_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(config.BackendConfig{BaseURL: srv.URL, Timeout: time.Second}, quietLogger())
	srv.Close()

	_, err := client.PaymentStatus(context.Background(), "ORD-1")
	assert.True(t, IsUpstream(err))
}

func TestPaymentStatus_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.PaymentStatus(ctx, "ORD-1")
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
