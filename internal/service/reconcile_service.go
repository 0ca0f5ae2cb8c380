package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
	"github.com/isml-edu/student-portal-api/internal/upstream"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

type pendingPaymentRepository interface {
	Create(ctx context.Context, record *models.PendingPayment) error
	FindByOrder(ctx context.Context, registrationNumber, orderID string) (*models.PendingPayment, error)
	ListByRegistration(ctx context.Context, registrationNumber string) ([]models.PendingPayment, error)
	MarkVerified(ctx context.Context, id string) error
	IncrementPollAttempts(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

type reconcileUpstream interface {
	VerifyCharge(ctx context.Context, req upstream.VerifyRequest) (bool, error)
	ChargeStatus(ctx context.Context, paymentID string) (bool, error)
	Transactions(ctx context.Context, token string) ([]models.Transaction, error)
}

type verifyEnqueuer interface {
	Enqueue(id, jobType string, payload interface{}) error
}

// ReconcileConfig bounds pending payment verification.
type ReconcileConfig struct {
	Staleness       time.Duration
	PollInterval    time.Duration
	PollAttempts    int
	TransactionsTTL time.Duration
}

// verifyPayload is the queued unit of verification work.
type verifyPayload struct {
	PendingID          string `json:"pending_id"`
	RegistrationNumber string `json:"registration_number"`
	OrderID            string `json:"order_id"`
	PaymentID          string `json:"payment_id"`
	Signature          string `json:"signature"`
	Token              string `json:"token"`
}

// ReconcileSummary reports the outcome of a reconcile pass.
type ReconcileSummary struct {
	Discarded    int                  `json:"discarded"`
	InFlight     int                  `json:"in_flight"`
	Transactions []models.Transaction `json:"transactions"`
}

// ReconcileService owns pending payment records: it records checkout
// completions durably, verifies them in the background, and reconciles
// leftovers on load. Verification failures never reach the student; the
// pending record and the next reconcile pass carry the truth forward.
type ReconcileService struct {
	repo     pendingPaymentRepository
	upstream reconcileUpstream
	cache    cacheStore
	queue    verifyEnqueuer
	config   ReconcileConfig
	metrics  *MetricsService
	logger   *zap.Logger

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReconcileService constructs a ReconcileService.
func NewReconcileService(repo pendingPaymentRepository, up reconcileUpstream, cache cacheStore, config ReconcileConfig, metrics *MetricsService, logger *zap.Logger) *ReconcileService {
	if config.Staleness <= 0 {
		config.Staleness = 5 * time.Minute
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.PollAttempts <= 0 {
		config.PollAttempts = 5
	}
	if config.TransactionsTTL <= 0 {
		config.TransactionsTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		repo:     repo,
		upstream: up,
		cache:    cache,
		config:   config,
		metrics:  metrics,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// SetQueue wires the verification queue. Set after construction because the
// queue handler needs the service and the service needs the queue.
func (s *ReconcileService) SetQueue(queue verifyEnqueuer) {
	s.queue = queue
}

func transactionsCacheKey(registrationNumber string) string {
	return "portal:txns:" + registrationNumber
}

// RecordCompletion makes the completion durable, then hands verification to
// the background queue. The durable write happens before any verification
// traffic so a crash cannot lose a paid-but-unconfirmed charge.
func (s *ReconcileService) RecordCompletion(ctx context.Context, record *models.PendingPayment, token string) error {
	if err := s.repo.Create(ctx, record); err != nil {
		return err
	}

	s.invalidateTransactions(ctx, record.RegistrationNumber)

	if s.queue != nil {
		payload := verifyPayload{
			PendingID:          record.ID,
			RegistrationNumber: record.RegistrationNumber,
			OrderID:            record.OrderID,
			PaymentID:          record.PaymentID,
			Signature:          record.Signature,
			Token:              token,
		}
		if err := s.queue.Enqueue(record.ID, "verify-payment", payload); err != nil {
			// the record is durable, the next reconcile pass picks it up
			s.logger.Warn("failed to enqueue verification", zap.Error(err), zap.String("order_id", record.OrderID))
		}
	}
	return nil
}

// HandleVerifyJob is the queue handler for one pending payment. It verifies
// the signature, then polls the charge ledger on a fixed interval for a
// bounded number of attempts, and finally discards the record no matter
// what. It always returns nil: the reconcile pass is the retry mechanism.
func (s *ReconcileService) HandleVerifyJob(ctx context.Context, rawPayload interface{}) error {
	payload, err := decodeVerifyPayload(rawPayload)
	if err != nil {
		s.logger.Error("invalid verification payload", zap.Error(err))
		return nil
	}

	record, err := s.repo.FindByOrder(ctx, payload.RegistrationNumber, payload.OrderID)
	if err != nil {
		s.logger.Warn("failed to load pending payment", zap.Error(err), zap.String("order_id", payload.OrderID))
		return nil
	}
	if record == nil {
		return nil
	}

	verified, err := s.upstream.VerifyCharge(ctx, upstream.VerifyRequest{
		OrderID:   payload.OrderID,
		PaymentID: payload.PaymentID,
		Signature: payload.Signature,
	})
	if err != nil {
		s.logger.Warn("verification call failed", zap.Error(err), zap.String("order_id", payload.OrderID))
	}
	if verified {
		s.metrics.RecordVerification("verified")
		s.markVerified(ctx, record)
		s.finalize(ctx, record, "verified")
		return nil
	}

	for record.PollAttempts < s.config.PollAttempts {
		if err := s.sleep(ctx, s.config.PollInterval); err != nil {
			return nil
		}
		attempts, err := s.repo.IncrementPollAttempts(ctx, record.ID)
		if err != nil {
			s.logger.Warn("failed to bump poll attempts", zap.Error(err), zap.String("order_id", payload.OrderID))
			return nil
		}
		record.PollAttempts = attempts

		present, err := s.upstream.ChargeStatus(ctx, payload.PaymentID)
		if err != nil {
			s.logger.Warn("charge status poll failed", zap.Error(err), zap.String("payment_id", payload.PaymentID))
			continue
		}
		if present {
			s.metrics.RecordVerification("confirmed_by_poll")
			s.markVerified(ctx, record)
			s.finalize(ctx, record, "confirmed by poll")
			return nil
		}
	}

	// attempts exhausted: discard unconditionally and refresh, the ledger
	// is the source of truth from here on
	s.metrics.RecordVerification("exhausted")
	s.finalize(ctx, record, "poll attempts exhausted")
	return nil
}

// ReconcilePending sweeps the student's pending records on load. Stale
// records are discarded, records already confirmed in the ledger are
// discarded, and the rest are re-queued for verification. Returns a fresh
// transaction list so the caller renders current state.
func (s *ReconcileService) ReconcilePending(ctx context.Context, registrationNumber, token string) (*ReconcileSummary, error) {
	records, err := s.repo.ListByRegistration(ctx, registrationNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending payments")
	}

	summary := &ReconcileSummary{}
	now := time.Now().UTC()

	var remaining []models.PendingPayment
	for _, record := range records {
		if now.Sub(record.CreatedAt) > s.config.Staleness {
			s.discard(ctx, record.ID, record.OrderID, "stale")
			summary.Discarded++
			continue
		}
		if record.Verified {
			s.discard(ctx, record.ID, record.OrderID, "already verified")
			summary.Discarded++
			continue
		}
		remaining = append(remaining, record)
	}

	transactions, err := s.upstream.Transactions(ctx, token)
	if err != nil {
		return nil, err
	}
	confirmed := make(map[string]bool, len(transactions))
	for _, txn := range transactions {
		if txn.Status {
			confirmed[txn.OrderID] = true
		}
	}

	for _, record := range remaining {
		if confirmed[record.OrderID] {
			s.discard(ctx, record.ID, record.OrderID, "confirmed in ledger")
			summary.Discarded++
			continue
		}
		summary.InFlight++
		if s.queue != nil {
			payload := verifyPayload{
				PendingID:          record.ID,
				RegistrationNumber: record.RegistrationNumber,
				OrderID:            record.OrderID,
				PaymentID:          record.PaymentID,
				Signature:          record.Signature,
				Token:              token,
			}
			if err := s.queue.Enqueue(record.ID, "verify-payment", payload); err != nil {
				s.logger.Warn("failed to enqueue reconcile verification", zap.Error(err), zap.String("order_id", record.OrderID))
			}
		}
	}

	s.invalidateTransactions(ctx, registrationNumber)
	if s.cache != nil {
		if err := s.cache.Set(ctx, transactionsCacheKey(registrationNumber), transactions, s.config.TransactionsTTL); err != nil {
			s.logger.Warn("transactions cache write failed", zap.Error(err))
		}
	}

	summary.Transactions = transactions
	return summary, nil
}

// Transactions returns the student's charge history, cached briefly.
func (s *ReconcileService) Transactions(ctx context.Context, registrationNumber, token string) ([]models.Transaction, error) {
	var cached []models.Transaction
	if s.cache != nil {
		if err := s.cache.Get(ctx, transactionsCacheKey(registrationNumber), &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("transactions cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	transactions, err := s.upstream.Transactions(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, transactionsCacheKey(registrationNumber), transactions, s.config.TransactionsTTL); err != nil {
			s.logger.Warn("transactions cache write failed", zap.Error(err))
		}
	}
	return transactions, nil
}

// Pending lists the student's in-flight payments for optimistic display.
func (s *ReconcileService) Pending(ctx context.Context, registrationNumber string) ([]models.PendingPayment, error) {
	records, err := s.repo.ListByRegistration(ctx, registrationNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending payments")
	}
	return records, nil
}

// markVerified flips the flag before the discard. A crash in between leaves
// a verified record the next reconcile pass drops without re-verifying.
func (s *ReconcileService) markVerified(ctx context.Context, record *models.PendingPayment) {
	if err := s.repo.MarkVerified(ctx, record.ID); err != nil {
		s.logger.Warn("failed to mark pending payment verified", zap.Error(err), zap.String("order_id", record.OrderID))
		return
	}
	record.Verified = true
}

func (s *ReconcileService) finalize(ctx context.Context, record *models.PendingPayment, reason string) {
	s.discard(ctx, record.ID, record.OrderID, reason)
	s.invalidateTransactions(ctx, record.RegistrationNumber)
}

func (s *ReconcileService) discard(ctx context.Context, id, orderID, reason string) {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to discard pending payment", zap.Error(err), zap.String("order_id", orderID))
		return
	}
	s.metrics.RecordPendingDiscarded(reason)
	s.logger.Info("pending payment discarded", zap.String("order_id", orderID), zap.String("reason", reason))
}

func (s *ReconcileService) invalidateTransactions(ctx context.Context, registrationNumber string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, transactionsCacheKey(registrationNumber)); err != nil {
		s.logger.Warn("transactions cache invalidation failed", zap.Error(err))
	}
}

func decodeVerifyPayload(raw interface{}) (verifyPayload, error) {
	if payload, ok := raw.(verifyPayload); ok {
		return payload, nil
	}
	// payloads round-tripped through persistence arrive as JSON
	data, err := json.Marshal(raw)
	if err != nil {
		return verifyPayload{}, err
	}
	var payload verifyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return verifyPayload{}, err
	}
	return payload, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
