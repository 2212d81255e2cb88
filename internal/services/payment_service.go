package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/backend"
	"github.com/smarttravel/checkout-backend/internal/config"
	"github.com/smarttravel/checkout-backend/internal/models"
	"github.com/smarttravel/checkout-backend/internal/payment"
	"github.com/smarttravel/checkout-backend/internal/session"
)

// staleGrace is added to the payment timeout before the sweeper fails a
// PENDING session nobody is watching
const staleGrace = time.Minute

var (
	// ErrGatewayNotEnabled is returned for a gateway this deployment does not offer
	ErrGatewayNotEnabled = errors.New("payment gateway is not enabled")

	// ErrBookingMismatch is returned when the booking code does not belong to the draft
	ErrBookingMismatch = errors.New("booking code does not match the submitted draft")

	// ErrPaymentInitiation is returned once when the gateway session could not be created
	ErrPaymentInitiation = errors.New("failed to create payment session")

	// ErrShuttingDown is returned for new payments while the service stops
	ErrShuttingDown = errors.New("payment service is shutting down")
)

// PaymentBackend is the part of the upstream API the payment flow uses
type PaymentBackend interface {
	payment.StatusChecker
	CreatePaymentSession(ctx context.Context, token string, req backend.CreatePaymentRequest) (*backend.CreatePaymentResponse, error)
}

// PaymentSessionStore persists payment sessions
type PaymentSessionStore interface {
	Create(ctx context.Context, s *models.PaymentSession) error
	GetByOrderCode(ctx context.Context, orderCode string) (*models.PaymentSession, error)
	GetPendingByBooking(ctx context.Context, bookingCode, gateway string) (*models.PaymentSession, error)
	UpdateChecks(ctx context.Context, orderCode string, checks int) error
	Finish(ctx context.Context, s *models.PaymentSession) (bool, error)
	FailStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// PaymentAuditLog appends payment audit entries
type PaymentAuditLog interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// SubmittedDrafts resolves the submitted draft a payment is for
type SubmittedDrafts interface {
	SubmittedDraft(ctx context.Context, sess *session.Context, id uuid.UUID) (*models.BookingDraft, error)
}

// InitiatePaymentInput is a validated payment request
type InitiatePaymentInput struct {
	BookingCode string
	Gateway     string
	DraftID     uuid.UUID
}

// PaymentService starts gateway sessions and watches them to a terminal state
type PaymentService struct {
	backend  PaymentBackend
	sessions PaymentSessionStore
	audits   PaymentAuditLog
	drafts   SubmittedDrafts
	manager  *payment.Manager
	gateways map[string]bool
	timeout  time.Duration
	logger   *logrus.Logger
	now      func() time.Time

	shuttingDown atomic.Bool
}

// NewPaymentService creates the service and its watcher registry
func NewPaymentService(
	cfg config.PaymentConfig,
	backend PaymentBackend,
	sessions PaymentSessionStore,
	audits PaymentAuditLog,
	drafts SubmittedDrafts,
	logger *logrus.Logger,
) *PaymentService {
	s := &PaymentService{
		backend:  backend,
		sessions: sessions,
		audits:   audits,
		drafts:   drafts,
		gateways: make(map[string]bool),
		timeout:  cfg.Timeout,
		logger:   logger,
		now:      time.Now,
	}
	for _, g := range cfg.EnabledGateways {
		name := strings.ToLower(strings.TrimSpace(g))
		if _, err := payment.Lookup(name); err != nil {
			logger.WithField("gateway", g).Warn("Ignoring configured gateway without a status vocabulary")
			continue
		}
		s.gateways[name] = true
	}
	s.manager = payment.NewManager(payment.WatchConfig{
		Interval:      cfg.PollInterval,
		Timeout:       cfg.Timeout,
		RedirectDelay: cfg.RedirectDelay,
	}, backend, s, logger)
	return s
}

// ============================================================================
// INITIATE
// ============================================================================

// Initiate creates the gateway session for a submitted booking and starts
// watching it. An open session for the same booking and gateway is reused.
// A failed creation is audited and reported once without retrying.
func (s *PaymentService) Initiate(ctx context.Context, sess *session.Context, in InitiatePaymentInput) (*models.InitiatePaymentResponse, error) {
	if s.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}
	if !sess.Valid() {
		return nil, session.ErrSessionInvalidated
	}

	gateway := strings.ToLower(strings.TrimSpace(in.Gateway))
	if !s.gateways[gateway] {
		return nil, fmt.Errorf("%w: %s", ErrGatewayNotEnabled, in.Gateway)
	}

	draft, err := s.drafts.SubmittedDraft(ctx, sess, in.DraftID)
	if err != nil {
		return nil, err
	}
	if draft.Booking.BookingCode != in.BookingCode {
		return nil, ErrBookingMismatch
	}

	log := s.logger.WithFields(logrus.Fields{
		"booking_code": in.BookingCode,
		"gateway":      gateway,
		"user_id":      sess.User.ID,
	})

	existing, err := s.sessions.GetPendingByBooking(ctx, in.BookingCode, gateway)
	switch {
	case err == nil && existing.UserID == sess.User.ID:
		if _, _, err := s.manager.Watch(*existing); err != nil {
			return nil, err
		}
		log.WithField("order_code", existing.OrderCode).Info("Reusing pending payment session")
		return initiateResponse(existing), nil
	case err != nil && !errors.Is(err, models.ErrPaymentSessionNotFound):
		return nil, err
	}

	amount := draft.Booking.FinalTotal
	if amount <= 0 {
		amount = draft.Quote.FinalTotal
	}

	created, err := s.backend.CreatePaymentSession(ctx, sess.Token, backend.CreatePaymentRequest{
		BookingCode: in.BookingCode,
		Amount:      amount,
		Gateway:     gateway,
	})
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			sess.Invalidate("create-payment rejected the session token")
		}
		failed := &models.PaymentSession{BookingCode: in.BookingCode, GatewayName: gateway, Amount: amount}
		s.audit(ctx, models.NewPaymentAudit("", models.PaymentEventInitiateFailed, models.PaymentSourceBackend).
			SetSession(failed).
			SetError(err))
		log.WithError(err).Error("Failed to create payment session")
		if errors.Is(err, backend.ErrUnauthorized) {
			return nil, fmt.Errorf("%w: %v", session.ErrSessionInvalidated, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}

	ps := &models.PaymentSession{
		OrderCode:   created.OrderCode,
		BookingCode: in.BookingCode,
		UserID:      sess.User.ID,
		GatewayName: gateway,
		Amount:      amount,
		PaymentURL:  created.PaymentURL,
		Status:      models.PaymentPending,
		StartedAt:   s.now(),
	}
	if err := s.sessions.Create(ctx, ps); err != nil {
		return nil, err
	}
	s.audit(ctx, models.NewPaymentAudit(ps.OrderCode, models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetSession(ps).
		SetPaymentStatus(models.PaymentPending, ""))

	if _, _, err := s.manager.Watch(*ps); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"order_code": ps.OrderCode,
		"amount":     amount,
	}).Info("Payment session initiated")

	return initiateResponse(ps), nil
}

func initiateResponse(ps *models.PaymentSession) *models.InitiatePaymentResponse {
	return &models.InitiatePaymentResponse{
		PaymentURL: ps.PaymentURL,
		OrderCode:  ps.OrderCode,
		Amount:     ps.Amount,
		Gateway:    ps.GatewayName,
	}
}

// ============================================================================
// WAITING VIEW
// ============================================================================

// Status returns the waiting-view state of a session. A PENDING session
// with no live watcher, for example after a restart, is watched again.
func (s *PaymentService) Status(ctx context.Context, sess *session.Context, orderCode string) (*models.PaymentSessionResponse, error) {
	if !sess.Valid() {
		return nil, session.ErrSessionInvalidated
	}

	if w, ok := s.manager.Get(orderCode); ok {
		snap := w.Snapshot()
		if snap.UserID != sess.User.ID {
			return nil, models.ErrPaymentSessionNotFound
		}
		if w.Running() || snap.Status.IsTerminal() {
			return sessionResponse(snap, w.Running()), nil
		}
	}

	ps, err := s.sessions.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	if ps.UserID != sess.User.ID {
		return nil, models.ErrPaymentSessionNotFound
	}

	if ps.Status == models.PaymentPending && !s.shuttingDown.Load() {
		w, _, err := s.manager.Watch(*ps)
		if err != nil {
			return nil, err
		}
		if w != nil {
			return sessionResponse(w.Snapshot(), w.Running()), nil
		}
	}
	return sessionResponse(*ps, false), nil
}

func sessionResponse(ps models.PaymentSession, polling bool) *models.PaymentSessionResponse {
	return &models.PaymentSessionResponse{
		PaymentSession: &ps,
		Message:        ps.Message(),
		Actions:        ps.Actions(),
		Polling:        polling,
	}
}

// Leave stops polling because the user left the waiting view. The session
// stays PENDING.
func (s *PaymentService) Leave(ctx context.Context, sess *session.Context, orderCode string) (bool, error) {
	if !sess.Valid() {
		return false, session.ErrSessionInvalidated
	}
	w, ok := s.manager.Get(orderCode)
	if !ok {
		ps, err := s.sessions.GetByOrderCode(ctx, orderCode)
		if err != nil {
			return false, err
		}
		if ps.UserID != sess.User.ID {
			return false, models.ErrPaymentSessionNotFound
		}
		return false, nil
	}
	if w.Snapshot().UserID != sess.User.ID {
		return false, models.ErrPaymentSessionNotFound
	}
	return s.manager.Cancel(orderCode), nil
}

// Shutdown stops every watcher. Sessions they were polling stay PENDING.
func (s *PaymentService) Shutdown() {
	s.shuttingDown.Store(true)
	s.manager.Shutdown()
	s.logger.Info("Payment watchers stopped")
}

// ActiveWatchers returns the number of sessions currently polled
func (s *PaymentService) ActiveWatchers() int {
	return s.manager.Active()
}

// ============================================================================
// SWEEP
// ============================================================================

// Sweep fails PENDING sessions that outlived the timeout with nobody
// watching them and forgets finished watchers
func (s *PaymentService) Sweep(ctx context.Context, now time.Time) (failed, pruned int, err error) {
	cutoff := now.Add(-s.timeout - staleGrace)
	pruned = s.manager.Prune(cutoff)

	codes, err := s.sessions.FailStale(ctx, cutoff)
	if err != nil {
		return 0, pruned, err
	}
	for _, code := range codes {
		s.audit(ctx, models.NewPaymentAudit(code, models.PaymentEventTimeout, models.PaymentSourceSystem).
			SetPaymentStatus(models.PaymentFailed, string(models.FailureAbandoned)))
	}
	if len(codes) > 0 {
		s.logger.WithField("order_codes", codes).Warn("Failed abandoned payment sessions")
	}
	return len(codes), pruned, nil
}

// ============================================================================
// RECORDER (called from watcher goroutines)
// ============================================================================

// CheckRecorded persists the poll count and audits the gateway answer
func (s *PaymentService) CheckRecorded(ctx context.Context, ps models.PaymentSession, out payment.Outcome, body []byte) {
	if err := s.sessions.UpdateChecks(ctx, ps.OrderCode, ps.Checks); err != nil {
		s.logger.WithError(err).WithField("order_code", ps.OrderCode).Warn("Failed to record payment check")
	}
	s.audit(ctx, models.NewPaymentAudit(ps.OrderCode, models.PaymentEventStatusCheckResponse, models.PaymentSourceWatcher).
		SetSession(&ps).
		SetPaymentStatus(out.Status, out.Code).
		SetCheckNumber(ps.Checks).
		SetRawBody(body))
}

// CheckFailed audits a status check that produced no usable answer
func (s *PaymentService) CheckFailed(ctx context.Context, ps models.PaymentSession, err error) {
	if uerr := s.sessions.UpdateChecks(ctx, ps.OrderCode, ps.Checks); uerr != nil {
		s.logger.WithError(uerr).WithField("order_code", ps.OrderCode).Warn("Failed to record payment check")
	}
	s.audit(ctx, models.NewPaymentAudit(ps.OrderCode, models.PaymentEventStatusCheckError, models.PaymentSourceWatcher).
		SetSession(&ps).
		SetCheckNumber(ps.Checks).
		SetError(err))
}

// Finished persists the terminal state
func (s *PaymentService) Finished(ctx context.Context, ps models.PaymentSession) {
	updated, err := s.sessions.Finish(ctx, &ps)
	log := s.logger.WithFields(logrus.Fields{
		"order_code": ps.OrderCode,
		"status":     ps.Status,
	})
	if err != nil {
		log.WithError(err).Error("Failed to persist payment session result")
	} else if !updated {
		log.Warn("Payment session was already finished")
	}

	eventType := models.PaymentEventSuccess
	if ps.Status == models.PaymentFailed {
		eventType = models.PaymentEventFailed
		if ps.FailureReason != nil && *ps.FailureReason == models.FailureTimeout {
			eventType = models.PaymentEventTimeout
		}
	}
	code := ""
	if ps.GatewayCode != nil {
		code = *ps.GatewayCode
	}
	s.audit(ctx, models.NewPaymentAudit(ps.OrderCode, eventType, models.PaymentSourceWatcher).
		SetSession(&ps).
		SetPaymentStatus(ps.Status, code).
		SetCheckNumber(ps.Checks))
}

// Cancelled audits polling that stopped before a terminal state
func (s *PaymentService) Cancelled(ctx context.Context, ps models.PaymentSession) {
	source := models.PaymentSourceUser
	if s.shuttingDown.Load() {
		source = models.PaymentSourceSystem
	}
	s.audit(ctx, models.NewPaymentAudit(ps.OrderCode, models.PaymentEventWatchCancelled, source).
		SetSession(&ps).
		SetPaymentStatus(ps.Status, "").
		SetCheckNumber(ps.Checks))
}

// audit never fails the caller; the repository logs its own failures
func (s *PaymentService) audit(ctx context.Context, entry *models.PaymentAudit) {
	_ = s.audits.Log(ctx, entry)
}
