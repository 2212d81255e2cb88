package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/smarttravel/checkout-backend/internal/config"
	"github.com/smarttravel/checkout-backend/internal/models"
)

// maxBodyBytes caps how much of an upstream response is read
const maxBodyBytes = 1 << 20

// Client talks to the upstream tour REST backend
type Client struct {
	baseURL      string
	serviceToken string
	client       *http.Client
	logger       *logrus.Logger
}

// CreatePaymentRequest is the body of POST payments
type CreatePaymentRequest struct {
	BookingCode string       `json:"booking_code"`
	Amount      models.Money `json:"amount"`
	Gateway     string       `json:"gateway"`
}

// CreatePaymentResponse is the gateway session created by the backend
type CreatePaymentResponse struct {
	PaymentURL string `json:"payment_url"`
	OrderCode  string `json:"order_code"`
}

// NewClient creates a backend client
func NewClient(cfg config.BackendConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		serviceToken: cfg.ServiceToken,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// GetCheckoutContext fetches prices, capacity, coupons and the loyalty balance
// for one departure
func (c *Client) GetCheckoutContext(ctx context.Context, token, tourCode, departureID string) (*models.CheckoutContext, error) {
	q := url.Values{}
	q.Set("tourCode", tourCode)
	q.Set("departureId", departureID)

	status, body, err := c.do(ctx, "get checkout context", http.MethodGet, "/checkout-context?"+q.Encode(), token, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := c.classify("get checkout context", status, body); err != nil {
		return nil, err
	}

	var out models.CheckoutContext
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{Op: "get checkout context", StatusCode: status, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.FetchedAt.IsZero() {
		out.FetchedAt = time.Now()
	}
	return &out, nil
}

// CreateBooking submits a validated draft. The idempotency key lets the
// backend recognise a resubmission of the same draft.
func (c *Client) CreateBooking(ctx context.Context, token, idempotencyKey string, payload *models.SubmissionPayload) (*models.Booking, error) {
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	status, body, err := c.do(ctx, "create booking", http.MethodPost, "/bookings", token, headers, payload)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case status >= 500:
		return nil, &UpstreamError{Op: "create booking", StatusCode: status, Message: errorMessage(body)}
	case status >= 400:
		return nil, rejection(status, body)
	}

	var out models.Booking
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{Op: "create booking", StatusCode: status, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.BookingCode == "" {
		return nil, &UpstreamError{Op: "create booking", StatusCode: status, Message: "response has no booking code"}
	}
	return &out, nil
}

// CreatePaymentSession asks the backend to open a gateway checkout
func (c *Client) CreatePaymentSession(ctx context.Context, token string, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	status, body, err := c.do(ctx, "create payment session", http.MethodPost, "/payments", token, nil, req)
	if err != nil {
		return nil, err
	}
	if err := c.classify("create payment session", status, body); err != nil {
		return nil, err
	}

	var out CreatePaymentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{Op: "create payment session", StatusCode: status, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.OrderCode == "" || out.PaymentURL == "" {
		return nil, &UpstreamError{Op: "create payment session", StatusCode: status, Message: "response is missing payment_url or order_code"}
	}
	return &out, nil
}

// PaymentStatus returns the raw gateway-specific status body for an order.
// Polling runs outside any user request, so the service token is used.
func (c *Client) PaymentStatus(ctx context.Context, orderCode string) ([]byte, error) {
	path := "/payments/" + url.PathEscape(orderCode) + "/status"
	status, body, err := c.do(ctx, "payment status", http.MethodGet, path, c.serviceToken, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := c.classify("payment status", status, body); err != nil {
		return nil, err
	}
	return body, nil
}

// classify maps a non-2xx response onto the error taxonomy
func (c *Client) classify(op string, status int, body []byte) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return &UpstreamError{Op: op, StatusCode: status, Message: errorMessage(body)}
	}
}

func (c *Client) do(ctx context.Context, op, method, path, token string, headers map[string]string, payload interface{}) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"op":     op,
			"method": method,
			"path":   path,
		}).Warn("Backend request failed")
		return 0, nil, &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.WithFields(logrus.Fields{
		"op":         op,
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Backend request completed")

	return resp.StatusCode, body, nil
}

// rejection builds the error for a 4xx create-booking answer
func rejection(status int, body []byte) *SubmissionRejectedError {
	code := strings.ToUpper(gjson.GetBytes(body, "code").String())
	if code == "" {
		code = strings.ToUpper(gjson.GetBytes(body, "error.code").String())
	}
	if code == "" {
		if status == http.StatusConflict {
			code = CodeSeatsUnavailable
		} else {
			code = CodeRejected
		}
	}
	return &SubmissionRejectedError{
		StatusCode: status,
		Code:       code,
		Message:    errorMessage(body),
	}
}

// errorMessage pulls a human message out of an error body
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, path := range []string{"message", "error.message", "error"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}
