package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/isml-edu/student-portal-api/internal/models"
)

// PendingPaymentRepository persists in-flight payment records. A record is
// written before the verification call goes out, so a crash between charge
// and verification leaves a durable trail the reconciler can pick up.
type PendingPaymentRepository struct {
	db *sqlx.DB
}

// NewPendingPaymentRepository constructs the repository.
func NewPendingPaymentRepository(db *sqlx.DB) *PendingPaymentRepository {
	return &PendingPaymentRepository{db: db}
}

// Create persists a new pending payment record.
func (r *PendingPaymentRepository) Create(ctx context.Context, record *models.PendingPayment) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO pending_payments (id, registration_number, order_id, payment_id, signature, amount, plan_type, installment_index, verified, poll_attempts, created_at, updated_at)
        VALUES (:id, :registration_number, :order_id, :payment_id, :signature, :amount, :plan_type, :installment_index, :verified, :poll_attempts, :created_at, :updated_at)
        ON CONFLICT (registration_number, order_id) DO UPDATE
        SET payment_id = EXCLUDED.payment_id, signature = EXCLUDED.signature, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create pending payment: %w", err)
	}
	return nil
}

// FindByOrder returns the pending record for one order of a student.
func (r *PendingPaymentRepository) FindByOrder(ctx context.Context, registrationNumber, orderID string) (*models.PendingPayment, error) {
	const query = `SELECT id, registration_number, order_id, payment_id, signature, amount, plan_type, installment_index, verified, poll_attempts, created_at, updated_at
        FROM pending_payments WHERE registration_number = $1 AND order_id = $2`
	var record models.PendingPayment
	if err := r.db.GetContext(ctx, &record, query, registrationNumber, orderID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending payment: %w", err)
	}
	return &record, nil
}

// ListByRegistration returns all pending records for a student, oldest first.
func (r *PendingPaymentRepository) ListByRegistration(ctx context.Context, registrationNumber string) ([]models.PendingPayment, error) {
	const query = `SELECT id, registration_number, order_id, payment_id, signature, amount, plan_type, installment_index, verified, poll_attempts, created_at, updated_at
        FROM pending_payments WHERE registration_number = $1 ORDER BY created_at ASC`
	var records []models.PendingPayment
	if err := r.db.SelectContext(ctx, &records, query, registrationNumber); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return records, nil
}

// MarkVerified flips the verified flag on a record.
func (r *PendingPaymentRepository) MarkVerified(ctx context.Context, id string) error {
	const query = `UPDATE pending_payments SET verified = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark pending payment verified: %w", err)
	}
	return nil
}

// IncrementPollAttempts bumps the persisted attempt counter and returns the
// new value. Persisting the counter keeps polling bounded across restarts.
func (r *PendingPaymentRepository) IncrementPollAttempts(ctx context.Context, id string) (int, error) {
	const query = `UPDATE pending_payments SET poll_attempts = poll_attempts + 1, updated_at = $2 WHERE id = $1 RETURNING poll_attempts`
	var attempts int
	if err := r.db.GetContext(ctx, &attempts, query, id, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("increment poll attempts: %w", err)
	}
	return attempts, nil
}

// Delete discards a pending record once it is verified, stale, or exhausted.
func (r *PendingPaymentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM pending_payments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete pending payment: %w", err)
	}
	return nil
}
