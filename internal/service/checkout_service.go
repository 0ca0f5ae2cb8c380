package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/gateway"
	"github.com/isml-edu/student-portal-api/internal/models"
	"github.com/isml-edu/student-portal-api/internal/upstream"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

type checkoutUpstream interface {
	PaymentLock(ctx context.Context, registrationNumber string) (*models.PlanLock, error)
	CourseFees(ctx context.Context, registrationNumber string) (*models.CourseFees, error)
	StudentDetails(ctx context.Context, studentID string) (*models.StudentDetails, error)
	EnrolledBatches(ctx context.Context, token string) ([]models.Enrollment, error)
	Transactions(ctx context.Context, token string) ([]models.Transaction, error)
	CreateOrder(ctx context.Context, req upstream.OrderRequest) (*upstream.OrderDescriptor, string, error)
}

type sessionRegistry interface {
	Open(session *models.CheckoutSession) error
	Bind(registrationNumber, orderID, gatewayKey string, amount float64, currency string) (*models.CheckoutSession, error)
	BeginCompletion(registrationNumber, orderID string) (*models.CheckoutSession, error)
	Release(registrationNumber, orderID string) bool
}

type scriptLoader interface {
	Ensure(ctx context.Context) error
	URL() string
}

type completionRecorder interface {
	RecordCompletion(ctx context.Context, record *models.PendingPayment, token string) error
}

// CheckoutConfig carries display options for the hosted checkout.
type CheckoutConfig struct {
	Currency    string
	DisplayName string
}

// InitiateCheckoutRequest asks to open a checkout. The installment index is
// optional; when present it must match the single payable period.
type InitiateCheckoutRequest struct {
	InstallmentIndex *int `json:"current_emi"`
}

// CheckoutPrefill carries student contact details for the checkout form.
type CheckoutPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// CheckoutDescriptor is everything the client needs to open the hosted
// checkout: script location, gateway key, order handle and prefill.
type CheckoutDescriptor struct {
	SessionID        string          `json:"session_id"`
	ScriptURL        string          `json:"script_url"`
	Key              string          `json:"key"`
	OrderID          string          `json:"order_id"`
	Amount           int64           `json:"amount"`
	Currency         string          `json:"currency"`
	DisplayName      string          `json:"display_name"`
	PlanType         models.PlanType `json:"plan_type"`
	InstallmentIndex *int            `json:"installment_index,omitempty"`
	Prefill          CheckoutPrefill `json:"prefill"`
}

// CompleteCheckoutRequest is the gateway success callback payload.
type CompleteCheckoutRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// FailCheckoutRequest is the gateway failure callback payload.
type FailCheckoutRequest struct {
	OrderID     string `json:"order_id"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CheckoutOutcome is the student-facing result of a checkout callback.
type CheckoutOutcome struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CheckoutService drives hosted checkout sessions: one open session per
// student, order creation behind the plan lock and the installment gate.
type CheckoutService struct {
	upstream  checkoutUpstream
	sessions  sessionRegistry
	loader    scriptLoader
	recorder  completionRecorder
	config    CheckoutConfig
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(up checkoutUpstream, sessions sessionRegistry, loader scriptLoader, recorder completionRecorder, config CheckoutConfig, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CheckoutService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Currency == "" {
		config.Currency = "INR"
	}
	return &CheckoutService{
		upstream:  up,
		sessions:  sessions,
		loader:    loader,
		recorder:  recorder,
		config:    config,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Initiate opens a checkout session for the student's next due payment.
func (s *CheckoutService) Initiate(ctx context.Context, claims *models.JWTClaims, token string, req InitiateCheckoutRequest) (*CheckoutDescriptor, error) {
	registrationNumber := claims.RegistrationNumber

	lock, err := s.upstream.PaymentLock(ctx, registrationNumber)
	if err != nil {
		return nil, err
	}
	if !lock.Locked {
		return nil, appErrors.Clone(appErrors.ErrPlanNotLocked, "select a payment plan before paying")
	}

	fees, err := s.upstream.CourseFees(ctx, registrationNumber)
	if err != nil {
		return nil, err
	}

	transactions, err := s.upstream.Transactions(ctx, token)
	if err != nil {
		return nil, err
	}

	var amount float64
	var installmentIndex *int
	switch lock.PlanType {
	case models.PlanTypeFull:
		for _, txn := range transactions {
			if txn.Status && txn.PlanType == models.PlanTypeFull {
				return nil, appErrors.Clone(appErrors.ErrConflict, "course fees already paid")
			}
		}
		amount = fees.EffectiveFinalFees()
	case models.PlanTypeEMI:
		payable := PayableInstallment(*fees, lock, transactions)
		if payable == 0 {
			return nil, appErrors.Clone(appErrors.ErrPeriodNotPayable, "no installment is due")
		}
		if req.InstallmentIndex != nil && *req.InstallmentIndex != payable {
			return nil, appErrors.Clone(appErrors.ErrPeriodNotPayable, "only the next unpaid installment can be paid")
		}
		amount = fees.InstallmentAmount()
		idx := payable
		installmentIndex = &idx
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "unknown payment plan")
	}

	// Claim the per-student slot before any order call so two concurrent
	// pay actions cannot both create orders.
	session := &models.CheckoutSession{
		ID:                 uuid.NewString(),
		RegistrationNumber: registrationNumber,
		PlanType:           lock.PlanType,
		InstallmentIndex:   installmentIndex,
	}
	if err := s.sessions.Open(session); err != nil {
		if errors.Is(err, gateway.ErrSessionOpen) {
			return nil, appErrors.Clone(appErrors.ErrCheckoutOpen, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open checkout session")
	}

	descriptor, err := s.buildOrder(ctx, claims, token, session, fees, amount)
	if err != nil {
		s.sessions.Release(registrationNumber, session.OrderID)
		return nil, err
	}
	s.metrics.RecordCheckoutOpened()
	return descriptor, nil
}

func (s *CheckoutService) buildOrder(ctx context.Context, claims *models.JWTClaims, token string, session *models.CheckoutSession, fees *models.CourseFees, amount float64) (*CheckoutDescriptor, error) {
	if err := s.loader.Ensure(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "checkout is unavailable right now")
	}

	profile, err := s.upstream.StudentDetails(ctx, claims.StudentID)
	if err != nil {
		return nil, err
	}

	enrollmentID := ""
	if enrollments, err := s.upstream.EnrolledBatches(ctx, token); err != nil {
		s.logger.Warn("failed to load enrollments for order", zap.Error(err))
	} else if len(enrollments) > 0 {
		enrollmentID = enrollments[0].EnrollmentID
	}

	orderReq := upstream.OrderRequest{
		Amount:             amount,
		RegistrationNumber: claims.RegistrationNumber,
		StudentName:        profile.Name,
		Email:              profile.Email,
		Contact:            profile.Phone,
		EnrollmentID:       enrollmentID,
		CourseName:         fees.CourseName,
		CourseDuration:     fees.Duration,
		OriginalFees:       fees.TotalFees,
		DiscountPercent:    fees.DiscountPercent,
		FinalFees:          fees.EffectiveFinalFees(),
		PlanType:           session.PlanType,
	}
	if session.PlanType == models.PlanTypeEMI {
		duration := fees.Duration
		orderReq.EMIDuration = &duration
		orderReq.CurrentEMI = session.InstallmentIndex
	}

	order, key, err := s.upstream.CreateOrder(ctx, orderReq)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Bind(session.RegistrationNumber, order.ID, key, amount, order.Currency); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind checkout session")
	}

	s.logger.Info("checkout opened",
		zap.String("registration_number", claims.RegistrationNumber),
		zap.String("order_id", order.ID),
		zap.String("plan_type", string(session.PlanType)),
	)

	currency := order.Currency
	if currency == "" {
		currency = s.config.Currency
	}
	return &CheckoutDescriptor{
		SessionID:        session.ID,
		ScriptURL:        s.loader.URL(),
		Key:              key,
		OrderID:          order.ID,
		Amount:           order.Amount,
		Currency:         currency,
		DisplayName:      s.config.DisplayName,
		PlanType:         session.PlanType,
		InstallmentIndex: session.InstallmentIndex,
		Prefill: CheckoutPrefill{
			Name:    profile.Name,
			Email:   profile.Email,
			Contact: profile.Phone,
		},
	}, nil
}

// Complete handles the gateway success callback. The pending record is made
// durable before any verification traffic, then the student gets an
// optimistic acknowledgement while verification runs in the background.
func (s *CheckoutService) Complete(ctx context.Context, registrationNumber, token string, req CompleteCheckoutRequest) (*CheckoutOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}

	session, err := s.sessions.BeginCompletion(registrationNumber, req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrSessionNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no open checkout for this order")
		case errors.Is(err, gateway.ErrSessionMismatch):
			return nil, appErrors.Clone(appErrors.ErrConflict, "order does not match the open checkout")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete checkout")
		}
	}

	record := &models.PendingPayment{
		RegistrationNumber: registrationNumber,
		OrderID:            req.OrderID,
		PaymentID:          req.PaymentID,
		Signature:          req.Signature,
		Amount:             session.Amount,
		PlanType:           session.PlanType,
		InstallmentIndex:   session.InstallmentIndex,
	}
	if err := s.recorder.RecordCompletion(ctx, record, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.metrics.RecordCheckoutOutcome("completed")
	return &CheckoutOutcome{
		Status:  "processing",
		Message: "payment received, confirmation is in progress",
	}, nil
}

// Dismiss handles the student closing the checkout without paying. The pay
// action re-enables immediately.
func (s *CheckoutService) Dismiss(registrationNumber, orderID string) (*CheckoutOutcome, error) {
	if !s.sessions.Release(registrationNumber, orderID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no open checkout for this order")
	}
	s.logger.Info("checkout dismissed",
		zap.String("registration_number", registrationNumber),
		zap.String("order_id", orderID),
	)
	s.metrics.RecordCheckoutOutcome("dismissed")
	return &CheckoutOutcome{Status: "dismissed", Message: "payment cancelled"}, nil
}

// Fail handles the gateway failure callback. The failure reason is bucketed
// for display and the session is released so the student can retry.
func (s *CheckoutService) Fail(registrationNumber string, req FailCheckoutRequest) (*CheckoutOutcome, error) {
	s.sessions.Release(registrationNumber, req.OrderID)

	class := gateway.ClassifyFailure(req.Code, req.Description)
	s.logger.Warn("checkout failed",
		zap.String("registration_number", registrationNumber),
		zap.String("order_id", req.OrderID),
		zap.String("failure_class", string(class)),
		zap.String("gateway_code", req.Code),
	)
	s.metrics.RecordCheckoutOutcome(string(class))
	return &CheckoutOutcome{Status: string(class), Message: class.Message()}, nil
}
