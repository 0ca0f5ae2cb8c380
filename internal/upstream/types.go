package upstream

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/isml-edu/student-portal-api/internal/models"
)

// envelope mirrors the loose success/data/error contract of the school API.
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

type enrolledBatchesResponse struct {
	Enrollments []models.Enrollment `json:"enrollments"`
}

type transactionsResponse struct {
	Transactions []wireTransaction `json:"transactions"`
}

// wireTransaction tolerates the upstream's inconsistent status encoding,
// which is sometimes a boolean and sometimes the string "true".
type wireTransaction struct {
	PaymentID        string          `json:"payment_id"`
	OrderID          string          `json:"order_id"`
	CourseName       string          `json:"course_name"`
	FinalFees        float64         `json:"final_fees"`
	PlanType         models.PlanType `json:"payment_type"`
	InstallmentIndex *int            `json:"current_emi"`
	Status           flexibleBool    `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (w wireTransaction) toModel() models.Transaction {
	return models.Transaction{
		PaymentID:        w.PaymentID,
		OrderID:          w.OrderID,
		CourseName:       w.CourseName,
		FinalFees:        w.FinalFees,
		PlanType:         w.PlanType,
		InstallmentIndex: w.InstallmentIndex,
		Status:           bool(w.Status),
		CreatedAt:        w.CreatedAt,
	}
}

type flexibleBool bool

func (b *flexibleBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", `"true"`, "1", `"1"`:
		*b = true
	default:
		*b = false
	}
	return nil
}

// OrderRequest carries everything the backend needs to create a gateway
// order. For EMI payments the amount is the single-period amount.
type OrderRequest struct {
	Amount             float64         `json:"amount"`
	RegistrationNumber string          `json:"registration_number"`
	StudentName        string          `json:"student_name"`
	Email              string          `json:"email"`
	Contact            string          `json:"contact"`
	EnrollmentID       string          `json:"enrollment_id"`
	CourseName         string          `json:"course_name"`
	CourseDuration     int             `json:"course_duration"`
	OriginalFees       float64         `json:"original_fees"`
	DiscountPercent    float64         `json:"discount_percentage"`
	FinalFees          float64         `json:"final_fees"`
	PlanType           models.PlanType `json:"payment_type"`
	EMIDuration        *int            `json:"emi_duration"`
	CurrentEMI         *int            `json:"current_emi"`
}

// OrderDescriptor is the gateway order handle the checkout opens against.
type OrderDescriptor struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type orderResponse struct {
	Success bool             `json:"success"`
	Order   *OrderDescriptor `json:"order"`
	Key     string           `json:"key"`
	Message string           `json:"message"`
}

// VerifyRequest is the signature check payload for a completed charge.
type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type chargeStatusResponse struct {
	Success bool `json:"success"`
	Present bool `json:"present"`
}

type paymentLockResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		PaymentType models.PlanType `json:"payment_type"`
	} `json:"data"`
}

type lockPlanRequest struct {
	RegisterNumber string          `json:"register_number"`
	PaymentType    models.PlanType `json:"payment_type"`
}

type notificationsResponse struct {
	Success bool                  `json:"success"`
	Data    []models.Notification `json:"data"`
}

type studentDetailsResponse struct {
	Student models.StudentDetails `json:"student"`
}

type batchListResponse struct {
	Batches []models.Batch `json:"batches"`
}
