package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/models"
)

// StatusChecker fetches the raw payment-status body for an order
type StatusChecker interface {
	PaymentStatus(ctx context.Context, orderCode string) ([]byte, error)
}

// Recorder is told about everything the polling loop observes. Calls are
// made from the watcher goroutine with a context that outlives cancellation.
type Recorder interface {
	CheckRecorded(ctx context.Context, s models.PaymentSession, out Outcome, body []byte)
	CheckFailed(ctx context.Context, s models.PaymentSession, err error)
	Finished(ctx context.Context, s models.PaymentSession)
	Cancelled(ctx context.Context, s models.PaymentSession)
}

// WatchConfig holds the polling timings
type WatchConfig struct {
	Interval      time.Duration
	Timeout       time.Duration
	RedirectDelay time.Duration
}

// Watcher drives one PaymentSession from PENDING to a terminal state
type Watcher struct {
	cfg      WatchConfig
	checker  StatusChecker
	vocab    Vocabulary
	recorder Recorder
	logger   *logrus.Logger
	now      func() time.Time

	mu      sync.RWMutex
	session models.PaymentSession

	cancel context.CancelFunc
	done   chan struct{}
}

// Snapshot returns a copy of the current session state
func (w *Watcher) Snapshot() models.PaymentSession {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session
}

// Done is closed once the polling goroutine has exited
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Running reports whether the polling goroutine is still alive
func (w *Watcher) Running() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Stop cancels polling and waits for the goroutine to exit
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	limit := w.remaining()
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	timeout := time.NewTimer(limit)
	defer timeout.Stop()

	// status requests never outlive the ceiling
	pollCtx, cancelPoll := context.WithTimeout(ctx, limit)
	defer cancelPoll()

	bg := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			w.recorder.Cancelled(bg, w.Snapshot())
			return
		case <-timeout.C:
			w.finish(bg, models.PaymentFailed, models.FailureTimeout, "")
			return
		case <-ticker.C:
			if w.check(pollCtx) {
				return
			}
			if ctx.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded) {
				w.finish(bg, models.PaymentFailed, models.FailureTimeout, "")
				return
			}
		}
	}
}

// remaining is what is left of the ceiling. A session resumed after a
// restart keeps the deadline measured from when it started.
func (w *Watcher) remaining() time.Duration {
	limit := w.cfg.Timeout
	if started := w.session.StartedAt; !started.IsZero() {
		limit -= w.now().Sub(started)
	}
	if limit < 0 {
		return 0
	}
	return limit
}

// check performs one status poll and returns true on a terminal outcome
func (w *Watcher) check(ctx context.Context) bool {
	body, err := w.checker.PaymentStatus(ctx, w.session.OrderCode)
	if ctx.Err() != nil {
		// cancelled or past the ceiling mid-request; the answer is discarded
		return false
	}

	w.mu.Lock()
	w.session.Checks++
	w.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	snap := w.Snapshot()
	log := w.logger.WithFields(logrus.Fields{
		"order_code": snap.OrderCode,
		"gateway":    snap.GatewayName,
		"check":      snap.Checks,
	})

	if err != nil {
		log.WithError(err).Warn("Payment status check failed, polling continues")
		w.recorder.CheckFailed(bg, snap, err)
		return false
	}

	out, err := w.vocab.Normalize(body)
	if err != nil {
		log.WithError(err).Warn("Unreadable payment status response, polling continues")
		w.recorder.CheckFailed(bg, snap, err)
		return false
	}
	if !out.Known {
		log.WithField("gateway_code", out.Code).Warn("Unknown gateway status code, treating as pending")
	}
	w.recorder.CheckRecorded(bg, snap, out, body)

	if !snap.Status.CanTransitionTo(out.Status) {
		return false
	}
	w.finish(bg, out.Status, models.FailureGateway, out.Code)
	return true
}

func (w *Watcher) finish(ctx context.Context, status models.PaymentStatus, reason models.FailureReason, code string) {
	now := w.now()

	w.mu.Lock()
	w.session.Status = status
	w.session.FinishedAt = &now
	if code != "" {
		w.session.GatewayCode = &code
	}
	switch status {
	case models.PaymentSuccess:
		redirect := now.Add(w.cfg.RedirectDelay)
		w.session.RedirectAt = &redirect
	case models.PaymentFailed:
		w.session.FailureReason = &reason
	}
	snap := w.session
	w.mu.Unlock()

	w.logger.WithFields(logrus.Fields{
		"order_code": snap.OrderCode,
		"status":     snap.Status,
		"checks":     snap.Checks,
	}).Info("Payment session reached a terminal state")
	w.recorder.Finished(ctx, snap)
}

// Manager keeps at most one watcher per order code
type Manager struct {
	cfg      WatchConfig
	checker  StatusChecker
	recorder Recorder
	logger   *logrus.Logger
	now      func() time.Time

	base     context.Context
	shutdown context.CancelFunc

	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewManager creates a watcher registry
func NewManager(cfg WatchConfig, checker StatusChecker, recorder Recorder, logger *logrus.Logger) *Manager {
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		checker:  checker,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		base:     base,
		shutdown: cancel,
		watchers: make(map[string]*Watcher),
	}
}

// Watch starts polling for a pending session. When a watcher for the order
// code already exists and is still polling, or has reached a terminal state,
// it is returned instead and started is false.
func (m *Manager) Watch(session models.PaymentSession) (w *Watcher, started bool, err error) {
	vocab, err := Lookup(session.GatewayName)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.watchers[session.OrderCode]; ok {
		if existing.Running() || existing.Snapshot().Status.IsTerminal() {
			return existing, false, nil
		}
	}
	if session.Status.IsTerminal() {
		return nil, false, nil
	}

	ctx, cancel := context.WithCancel(m.base)
	w = &Watcher{
		cfg:      m.cfg,
		checker:  m.checker,
		vocab:    vocab,
		recorder: m.recorder,
		logger:   m.logger,
		now:      m.now,
		session:  session,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.watchers[session.OrderCode] = w
	go w.run(ctx)

	m.logger.WithFields(logrus.Fields{
		"order_code": session.OrderCode,
		"gateway":    session.GatewayName,
		"interval":   m.cfg.Interval.String(),
		"timeout":    m.cfg.Timeout.String(),
	}).Info("Started payment status watcher")
	return w, true, nil
}

// Get returns the watcher for an order code
func (m *Manager) Get(orderCode string) (*Watcher, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watchers[orderCode]
	return w, ok
}

// Cancel stops polling for an order code. The session stays PENDING.
func (m *Manager) Cancel(orderCode string) bool {
	w, ok := m.Get(orderCode)
	if !ok || !w.Running() {
		return false
	}
	w.Stop()
	return true
}

// Prune forgets watchers that exited before the cutoff and returns how many
// were removed.
func (m *Manager) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for code, w := range m.watchers {
		if w.Running() {
			continue
		}
		s := w.Snapshot()
		if s.FinishedAt == nil && s.StartedAt.After(cutoff) {
			continue
		}
		if s.FinishedAt != nil && s.FinishedAt.After(cutoff) {
			continue
		}
		delete(m.watchers, code)
		removed++
	}
	return removed
}

// Active returns the number of watchers still polling
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.watchers {
		if w.Running() {
			n++
		}
	}
	return n
}

// Shutdown cancels every watcher and waits for them to exit
func (m *Manager) Shutdown() {
	m.shutdown()

	m.mu.Lock()
	watchers := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	for _, w := range watchers {
		<-w.done
	}
}
