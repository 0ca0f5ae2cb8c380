package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
	"github.com/isml-edu/student-portal-api/internal/upstream"
)

func newReconcileService(repo *memoryPendingRepo, up *stubUpstream, cache cacheStore) *ReconcileService {
	svc := NewReconcileService(repo, up, cache, ReconcileConfig{
		Staleness:       5 * time.Minute,
		PollInterval:    5 * time.Second,
		PollAttempts:    5,
		TransactionsTTL: time.Minute,
	}, nil, zap.NewNop())
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

func pendingRecord(orderID string, age time.Duration) *models.PendingPayment {
	return &models.PendingPayment{
		RegistrationNumber: "ISML001",
		OrderID:            orderID,
		PaymentID:          "pay_" + orderID,
		Signature:          "sig",
		Amount:             9000,
		PlanType:           models.PlanTypeEMI,
		InstallmentIndex:   intPtr(1),
		CreatedAt:          time.Now().UTC().Add(-age),
	}
}

func TestRecordCompletionPersistsBeforeEnqueue(t *testing.T) {
	repo := newMemoryPendingRepo()
	queue := &recordingQueue{}
	svc := newReconcileService(repo, &stubUpstream{}, newMemoryCache())
	svc.SetQueue(queue)

	record := pendingRecord("order_1", 0)
	require.NoError(t, svc.RecordCompletion(context.Background(), record, "token"))

	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, queue.len())
}

func TestHandleVerifyJobVerifiedDiscardsRecord(t *testing.T) {
	repo := newMemoryPendingRepo()
	up := &stubUpstream{}
	up.verifyChargeFn = func(ctx context.Context, req upstream.VerifyRequest) (bool, error) {
		return true, nil
	}
	svc := newReconcileService(repo, up, newMemoryCache())

	record := pendingRecord("order_1", 0)
	require.NoError(t, repo.Create(context.Background(), record))

	err := svc.HandleVerifyJob(context.Background(), verifyPayload{
		PendingID:          record.ID,
		RegistrationNumber: record.RegistrationNumber,
		OrderID:            record.OrderID,
		PaymentID:          record.PaymentID,
		Signature:          record.Signature,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.count())
}

func TestHandleVerifyJobPollsThenConfirms(t *testing.T) {
	repo := newMemoryPendingRepo()
	polls := 0
	up := &stubUpstream{}
	up.chargeStatusFn = func(ctx context.Context, paymentID string) (bool, error) {
		polls++
		return polls >= 3, nil
	}
	svc := newReconcileService(repo, up, newMemoryCache())

	record := pendingRecord("order_1", 0)
	require.NoError(t, repo.Create(context.Background(), record))

	err := svc.HandleVerifyJob(context.Background(), verifyPayload{
		PendingID:          record.ID,
		RegistrationNumber: record.RegistrationNumber,
		OrderID:            record.OrderID,
		PaymentID:          record.PaymentID,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, polls)
	assert.Equal(t, 0, repo.count())
}

func TestHandleVerifyJobExhaustsAttemptsAndDiscards(t *testing.T) {
	repo := newMemoryPendingRepo()
	polls := 0
	up := &stubUpstream{}
	up.chargeStatusFn = func(ctx context.Context, paymentID string) (bool, error) {
		polls++
		return false, nil
	}
	svc := newReconcileService(repo, up, newMemoryCache())

	record := pendingRecord("order_1", 0)
	require.NoError(t, repo.Create(context.Background(), record))

	err := svc.HandleVerifyJob(context.Background(), verifyPayload{
		PendingID:          record.ID,
		RegistrationNumber: record.RegistrationNumber,
		OrderID:            record.OrderID,
		PaymentID:          record.PaymentID,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, polls)
	// discarded unconditionally after the attempt budget
	assert.Equal(t, 0, repo.count())
}

func TestHandleVerifyJobResumesPersistedAttemptCount(t *testing.T) {
	repo := newMemoryPendingRepo()
	polls := 0
	up := &stubUpstream{}
	up.chargeStatusFn = func(ctx context.Context, paymentID string) (bool, error) {
		polls++
		return false, nil
	}
	svc := newReconcileService(repo, up, newMemoryCache())

	record := pendingRecord("order_1", 0)
	record.PollAttempts = 3
	require.NoError(t, repo.Create(context.Background(), record))

	err := svc.HandleVerifyJob(context.Background(), verifyPayload{
		PendingID:          record.ID,
		RegistrationNumber: record.RegistrationNumber,
		OrderID:            record.OrderID,
		PaymentID:          record.PaymentID,
	})
	require.NoError(t, err)
	// only the remaining budget is spent after a restart
	assert.Equal(t, 2, polls)
	assert.Equal(t, 0, repo.count())
}

func TestHandleVerifyJobNeverReturnsError(t *testing.T) {
	repo := newMemoryPendingRepo()
	svc := newReconcileService(repo, &stubUpstream{}, newMemoryCache())

	assert.NoError(t, svc.HandleVerifyJob(context.Background(), "not a payload"))
	assert.NoError(t, svc.HandleVerifyJob(context.Background(), verifyPayload{OrderID: "order_unknown"}))
}

func TestReconcilePendingDiscardsStaleRecords(t *testing.T) {
	repo := newMemoryPendingRepo()
	queue := &recordingQueue{}
	svc := newReconcileService(repo, &stubUpstream{}, newMemoryCache())
	svc.SetQueue(queue)

	require.NoError(t, repo.Create(context.Background(), pendingRecord("order_old", 10*time.Minute)))

	summary, err := svc.ReconcilePending(context.Background(), "ISML001", "token")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Discarded)
	assert.Equal(t, 0, summary.InFlight)
	assert.Equal(t, 0, repo.count())
	assert.Equal(t, 0, queue.len())
}

func TestReconcilePendingDiscardsLedgerConfirmed(t *testing.T) {
	repo := newMemoryPendingRepo()
	up := &stubUpstream{}
	up.transactionsFn = func(ctx context.Context, token string) ([]models.Transaction, error) {
		return []models.Transaction{{OrderID: "order_1", PaymentID: "pay_order_1", Status: true}}, nil
	}
	svc := newReconcileService(repo, up, newMemoryCache())

	require.NoError(t, repo.Create(context.Background(), pendingRecord("order_1", time.Minute)))

	summary, err := svc.ReconcilePending(context.Background(), "ISML001", "token")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Discarded)
	assert.Equal(t, 0, repo.count())
	require.Len(t, summary.Transactions, 1)
}

func TestReconcilePendingRequeuesUnconfirmed(t *testing.T) {
	repo := newMemoryPendingRepo()
	queue := &recordingQueue{}
	svc := newReconcileService(repo, &stubUpstream{}, newMemoryCache())
	svc.SetQueue(queue)

	require.NoError(t, repo.Create(context.Background(), pendingRecord("order_1", time.Minute)))

	summary, err := svc.ReconcilePending(context.Background(), "ISML001", "token")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Discarded)
	assert.Equal(t, 1, summary.InFlight)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, queue.len())
}

func TestTransactionsCached(t *testing.T) {
	calls := 0
	up := &stubUpstream{}
	up.transactionsFn = func(ctx context.Context, token string) ([]models.Transaction, error) {
		calls++
		return []models.Transaction{{OrderID: "order_1", Status: true}}, nil
	}
	svc := newReconcileService(newMemoryPendingRepo(), up, newMemoryCache())

	_, err := svc.Transactions(context.Background(), "ISML001", "token")
	require.NoError(t, err)
	_, err = svc.Transactions(context.Background(), "ISML001", "token")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
