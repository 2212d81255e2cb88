package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/backend"
	"github.com/smarttravel/checkout-backend/internal/checkout"
	"github.com/smarttravel/checkout-backend/internal/models"
	"github.com/smarttravel/checkout-backend/internal/session"
	"github.com/smarttravel/checkout-backend/internal/store"
)

// CheckoutBackend is the part of the upstream API the checkout flow uses
type CheckoutBackend interface {
	GetCheckoutContext(ctx context.Context, token, tourCode, departureID string) (*models.CheckoutContext, error)
	CreateBooking(ctx context.Context, token, idempotencyKey string, payload *models.SubmissionPayload) (*models.Booking, error)
}

// SubmitResult is what a submission attempt leaves behind. On a lost
// capacity race Draft holds the reloaded draft and Booking is nil.
type SubmitResult struct {
	Draft   *models.BookingDraft
	Booking *models.Booking
	Payload *models.SubmissionPayload
}

// CheckoutService owns booking drafts from open to submission
type CheckoutService struct {
	backend   CheckoutBackend
	drafts    store.DraftStore
	validator *checkout.SubmissionValidator
	locks     *draftLocks
	logger    *logrus.Logger
	now       func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	backend CheckoutBackend,
	drafts store.DraftStore,
	validator *checkout.SubmissionValidator,
	logger *logrus.Logger,
) *CheckoutService {
	return &CheckoutService{
		backend:   backend,
		drafts:    drafts,
		validator: validator,
		locks:     newDraftLocks(),
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================================
// OPEN
// ============================================================================

// Open fetches the checkout context and starts a draft with one adult and
// the departure coupon applied when eligible
func (s *CheckoutService) Open(ctx context.Context, sess *session.Context, tourCode, departureID string, device *models.DeviceInfo) (*models.BookingDraft, error) {
	if !sess.Valid() {
		return nil, session.ErrSessionInvalidated
	}

	checkoutCtx, err := s.fetchContext(ctx, sess, tourCode, departureID)
	if err != nil {
		return nil, err
	}

	draft := checkout.NewDraft(*checkoutCtx)
	now := s.now()
	draft.ID = uuid.New()
	draft.UserID = sess.User.ID
	draft.IdempotencyKey = uuid.NewString()
	draft.Contact = models.ContactInfo{
		FullName: sess.User.Name,
		Email:    sess.User.Email,
	}
	draft.Device = device
	draft.CreatedAt = now
	draft.UpdatedAt = now

	if err := s.drafts.Save(ctx, &draft); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"draft_id":     draft.ID,
		"user_id":      draft.UserID,
		"tour_code":    tourCode,
		"departure_id": departureID,
		"subtotal":     draft.Quote.Subtotal,
	}).Info("Checkout draft opened")

	return &draft, nil
}

// Get returns a draft owned by the session user
func (s *CheckoutService) Get(ctx context.Context, sess *session.Context, id uuid.UUID) (*models.BookingDraft, error) {
	return s.load(ctx, sess, id)
}

// ============================================================================
// EVENTS
// ============================================================================

// Apply runs one event through the reducer and saves the result. A rejected
// roster edit returns the unchanged draft and the warning with a nil error.
func (s *CheckoutService) Apply(ctx context.Context, sess *session.Context, id uuid.UUID, event models.DraftEvent) (*models.BookingDraft, *models.RosterWarning, error) {
	release := s.locks.lock(id)
	defer release()

	draft, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, nil, err
	}
	if draft.IsSubmitted() {
		return draft, nil, models.ErrDraftSubmitted
	}

	if event.Type == models.EventReloadContext {
		fresh, err := s.fetchContext(ctx, sess, draft.Context.TourCode, draft.Context.DepartureID)
		if err != nil {
			return nil, nil, err
		}
		event.Context = fresh
	}

	next, err := checkout.Apply(*draft, event)
	if err != nil {
		if warning, ok := models.AsWarning(err); ok {
			s.logger.WithFields(logrus.Fields{
				"draft_id": id,
				"event":    event.Type,
				"warning":  warning.Code,
			}).Debug("Draft event rejected")
			return draft, warning, nil
		}
		return nil, nil, err
	}

	if event.Type == models.EventReloadContext {
		next.IdempotencyKey = uuid.NewString()
	}
	next.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, &next); err != nil {
		return nil, nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return &next, nil, nil
}

// ============================================================================
// SUBMIT
// ============================================================================

// Submit validates the draft and creates the booking upstream. Local
// validation failures come back as *models.ValidationError before any
// network call. When the backend reports the seats are gone the checkout
// context is reloaded into the draft and the rejection is returned together
// with the reloaded draft.
func (s *CheckoutService) Submit(ctx context.Context, sess *session.Context, id uuid.UUID) (*SubmitResult, error) {
	release := s.locks.lock(id)
	defer release()

	draft, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if draft.IsSubmitted() {
		return &SubmitResult{Draft: draft, Booking: draft.Booking}, models.ErrDraftSubmitted
	}

	payload, err := s.validator.BuildPayload(*draft)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"draft_id":       id,
		"tour_code":      payload.TourCode,
		"departure_id":   payload.DepartureID,
		"passengers":     len(payload.Passengers),
		"expected_total": payload.ExpectedTotal,
	})

	booking, err := s.backend.CreateBooking(ctx, sess.Token, draft.IdempotencyKey, payload)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			sess.Invalidate("create-booking rejected the session token")
			return nil, fmt.Errorf("%w: %v", session.ErrSessionInvalidated, err)
		}

		rejected, ok := backend.AsSubmissionRejected(err)
		if !ok {
			// network and 5xx failures keep the key so a retry replays the same request
			log.WithError(err).Warn("Booking submission failed")
			return nil, err
		}

		// the next submission carries a different payload
		draft.IdempotencyKey = uuid.NewString()

		if !rejected.SeatsUnavailable() {
			log.WithError(err).WithField("code", rejected.Code).Warn("Booking rejected by backend")
			s.saveRotated(ctx, draft, log)
			return nil, err
		}

		log.Warn("Seats taken before submission, reloading checkout context")
		reloaded, reloadErr := s.reload(ctx, sess, draft)
		if reloadErr != nil {
			log.WithError(reloadErr).Error("Failed to reload checkout context after capacity race")
			s.saveRotated(ctx, draft, log)
			return nil, err
		}
		return &SubmitResult{Draft: reloaded, Payload: payload}, err
	}

	submitted := draft.Clone()
	submitted.Status = models.DraftStatusSubmitted
	submitted.Booking = booking
	submitted.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, &submitted); err != nil {
		// the booking exists upstream; the idempotency key makes a retry safe
		log.WithError(err).Error("Booking created but draft could not be marked submitted")
		return nil, fmt.Errorf("failed to save submitted draft: %w", err)
	}

	log.WithFields(logrus.Fields{
		"booking_code": booking.BookingCode,
		"final_total":  booking.FinalTotal,
	}).Info("Booking created")

	return &SubmitResult{Draft: &submitted, Booking: booking, Payload: payload}, nil
}

// Discard deletes a draft
func (s *CheckoutService) Discard(ctx context.Context, sess *session.Context, id uuid.UUID) error {
	release := s.locks.lock(id)
	defer release()

	if _, err := s.load(ctx, sess, id); err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// SubmittedDraft returns a submitted draft of the session user. Payment
// initiation reads the amount from it.
func (s *CheckoutService) SubmittedDraft(ctx context.Context, sess *session.Context, id uuid.UUID) (*models.BookingDraft, error) {
	draft, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !draft.IsSubmitted() || draft.Booking == nil {
		return nil, ErrDraftNotSubmitted
	}
	return draft, nil
}

// ErrDraftNotSubmitted is returned when a payment is requested for an open draft
var ErrDraftNotSubmitted = errors.New("booking draft has not been submitted")

// ============================================================================
// HELPERS
// ============================================================================

func (s *CheckoutService) load(ctx context.Context, sess *session.Context, id uuid.UUID) (*models.BookingDraft, error) {
	if !sess.Valid() {
		return nil, session.ErrSessionInvalidated
	}
	draft, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.UserID != sess.User.ID {
		return nil, models.ErrDraftForbidden
	}
	return draft, nil
}

func (s *CheckoutService) fetchContext(ctx context.Context, sess *session.Context, tourCode, departureID string) (*models.CheckoutContext, error) {
	checkoutCtx, err := s.backend.GetCheckoutContext(ctx, sess.Token, tourCode, departureID)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			sess.Invalidate("checkout-context rejected the session token")
			return nil, fmt.Errorf("%w: %v", session.ErrSessionInvalidated, err)
		}
		return nil, fmt.Errorf("failed to fetch checkout context: %w", err)
	}
	return checkoutCtx, nil
}

// saveRotated persists a draft whose idempotency key changed after a rejection
func (s *CheckoutService) saveRotated(ctx context.Context, draft *models.BookingDraft, log *logrus.Entry) {
	draft.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, draft); err != nil {
		log.WithError(err).Error("Failed to save draft after booking rejection")
	}
}

// reload replaces the draft's context with a fresh fetch and saves it under
// a new idempotency key
func (s *CheckoutService) reload(ctx context.Context, sess *session.Context, draft *models.BookingDraft) (*models.BookingDraft, error) {
	fresh, err := s.fetchContext(ctx, sess, draft.Context.TourCode, draft.Context.DepartureID)
	if err != nil {
		return nil, err
	}
	next, err := checkout.Apply(*draft, models.DraftEvent{Type: models.EventReloadContext, Context: fresh})
	if err != nil {
		return nil, err
	}
	next.IdempotencyKey = uuid.NewString()
	next.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save reloaded draft: %w", err)
	}
	return &next, nil
}
