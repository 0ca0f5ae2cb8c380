package models

import (
	"math"
	"time"
)

// PlanType is the payment plan committed by a student: full or monthly EMI.
type PlanType string

const (
	PlanTypeFull PlanType = "full"
	PlanTypeEMI  PlanType = "emi"
)

// Valid reports whether the plan type is one of the known values.
func (p PlanType) Valid() bool {
	return p == PlanTypeFull || p == PlanTypeEMI
}

// CourseFees describes the fee structure for a student's course.
type CourseFees struct {
	RegistrationNumber string  `json:"registration_number"`
	CourseName         string  `json:"course_name"`
	TotalFees          float64 `json:"total_fees"`
	DiscountPercent    float64 `json:"discount_percentage"`
	FinalFees          float64 `json:"final_fees"`
	Duration           int     `json:"duration"`
}

// EffectiveFinalFees returns the payable total. An upstream-supplied
// final_fees takes precedence over the derived value.
func (f CourseFees) EffectiveFinalFees() float64 {
	if f.FinalFees > 0 {
		return f.FinalFees
	}
	return math.Round(f.TotalFees * (1 - f.DiscountPercent/100))
}

// InstallmentAmount returns the per-period amount for an EMI plan.
func (f CourseFees) InstallmentAmount() float64 {
	if f.Duration <= 0 {
		return f.EffectiveFinalFees()
	}
	return math.Round(f.EffectiveFinalFees() / float64(f.Duration))
}

// PlanLock is the server-recorded, one-way plan commitment.
type PlanLock struct {
	RegistrationNumber string   `json:"registration_number"`
	PlanType           PlanType `json:"payment_type"`
	Locked             bool     `json:"locked"`
}

// Transaction is one attempted or completed charge, owned by the upstream
// ledger. Status is a boolean: confirmed or still pending, no failed state.
type Transaction struct {
	PaymentID        string    `json:"payment_id"`
	OrderID          string    `json:"order_id"`
	CourseName       string    `json:"course_name"`
	FinalFees        float64   `json:"final_fees"`
	PlanType         PlanType  `json:"payment_type"`
	InstallmentIndex *int      `json:"current_emi,omitempty"`
	Status           bool      `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// InstallmentPeriod is the derived view of one EMI month.
type InstallmentPeriod struct {
	Index     int     `json:"index"`
	AmountDue float64 `json:"amount_due"`
	Paid      bool    `json:"paid"`
	Payable   bool    `json:"payable"`
}

// PendingPayment bridges a checkout completion callback and eventual
// upstream confirmation. It is portal-owned durable state; the upstream
// ledger never sees it.
type PendingPayment struct {
	ID                 string    `db:"id" json:"id"`
	RegistrationNumber string    `db:"registration_number" json:"registration_number"`
	OrderID            string    `db:"order_id" json:"order_id"`
	PaymentID          string    `db:"payment_id" json:"payment_id"`
	Signature          string    `db:"signature" json:"-"`
	Amount             float64   `db:"amount" json:"amount"`
	PlanType           PlanType  `db:"plan_type" json:"plan_type"`
	InstallmentIndex   *int      `db:"installment_index" json:"installment_index,omitempty"`
	Verified           bool      `db:"verified" json:"verified"`
	PollAttempts       int       `db:"poll_attempts" json:"poll_attempts"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// CheckoutState tracks one checkout session from open to release.
type CheckoutState string

const (
	CheckoutStateOpen       CheckoutState = "open"
	CheckoutStateCompleting CheckoutState = "completing"
)

// CheckoutSession is the in-memory guard for one open checkout. It exists
// to stop double order creation from the UI; ledger idempotency upstream is
// the real double-payment defence.
type CheckoutSession struct {
	ID                 string        `json:"session_id"`
	RegistrationNumber string        `json:"-"`
	OrderID            string        `json:"order_id"`
	Amount             float64       `json:"amount"`
	Currency           string        `json:"currency"`
	GatewayKey         string        `json:"key"`
	PlanType           PlanType      `json:"plan_type"`
	InstallmentIndex   *int          `json:"installment_index,omitempty"`
	State              CheckoutState `json:"-"`
	OpenedAt           time.Time     `json:"-"`
}
