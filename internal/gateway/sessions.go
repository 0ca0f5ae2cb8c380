package gateway

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
)

// SessionRegistry tracks at most one checkout session per student. While a
// session is open the student's pay action is refused, which prevents
// duplicate order creation from double submits.
type SessionRegistry struct {
	ttl         time.Duration
	graceWindow time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*models.CheckoutSession

	// now is swapped in tests
	now func() time.Time
}

// NewSessionRegistry constructs a registry with the given session TTL and
// post-completion grace window.
func NewSessionRegistry(ttl, graceWindow time.Duration, logger *zap.Logger) *SessionRegistry {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if graceWindow <= 0 {
		graceWindow = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		ttl:         ttl,
		graceWindow: graceWindow,
		logger:      logger,
		sessions:    make(map[string]*models.CheckoutSession),
		now:         time.Now,
	}
}

// Open registers a new session for the student. It fails when a live session
// already exists, including one in the completion grace window.
func (r *SessionRegistry) Open(session *models.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[session.RegistrationNumber]; ok {
		if !r.expired(existing) {
			return ErrSessionOpen
		}
		r.logger.Debug("evicting expired checkout session",
			zap.String("registration_number", existing.RegistrationNumber),
			zap.String("order_id", existing.OrderID),
		)
	}
	session.State = models.CheckoutStateOpen
	session.OpenedAt = r.now()
	r.sessions[session.RegistrationNumber] = session
	return nil
}

// Bind attaches the created gateway order to a previously opened session.
// Open claims the slot before the order call goes out; Bind fills in the
// order once the gateway responds.
func (r *SessionRegistry) Bind(registrationNumber, orderID, gatewayKey string, amount float64, currency string) (*models.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[registrationNumber]
	if !ok || r.expired(session) {
		return nil, ErrSessionNotFound
	}
	session.OrderID = orderID
	session.GatewayKey = gatewayKey
	session.Amount = amount
	session.Currency = currency
	return session, nil
}

// Get returns the live session for a student, if any.
func (r *SessionRegistry) Get(registrationNumber string) (*models.CheckoutSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[registrationNumber]
	if !ok || r.expired(session) {
		return nil, false
	}
	return session, true
}

// BeginCompletion moves the student's session into the completing state and
// schedules its release after the grace window. The window keeps the pay
// action blocked while verification is handed off, mirroring the short
// settle delay after a successful charge.
func (r *SessionRegistry) BeginCompletion(registrationNumber, orderID string) (*models.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[registrationNumber]
	if !ok || r.expired(session) {
		return nil, ErrSessionNotFound
	}
	if session.OrderID != orderID {
		return nil, ErrSessionMismatch
	}
	session.State = models.CheckoutStateCompleting

	time.AfterFunc(r.graceWindow, func() {
		r.release(registrationNumber, orderID)
	})
	return session, nil
}

// Release drops the student's session immediately. Used on dismissal and on
// terminal failures, where the pay action should re-enable right away.
func (r *SessionRegistry) Release(registrationNumber, orderID string) bool {
	return r.release(registrationNumber, orderID)
}

func (r *SessionRegistry) release(registrationNumber, orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[registrationNumber]
	if !ok || session.OrderID != orderID {
		return false
	}
	delete(r.sessions, registrationNumber)
	return true
}

func (r *SessionRegistry) expired(session *models.CheckoutSession) bool {
	return r.now().Sub(session.OpenedAt) > r.ttl
}
