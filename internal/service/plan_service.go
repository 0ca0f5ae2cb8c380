package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

type planUpstream interface {
	CourseFees(ctx context.Context, registrationNumber string) (*models.CourseFees, error)
	PaymentLock(ctx context.Context, registrationNumber string) (*models.PlanLock, error)
	LockPlan(ctx context.Context, registrationNumber string, plan models.PlanType) error
	Transactions(ctx context.Context, token string) ([]models.Transaction, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PlanCacheTTLs carries per-read-model cache lifetimes.
type PlanCacheTTLs struct {
	Fees time.Duration
	Lock time.Duration
}

// SelectPlanRequest is the plan commitment payload.
type SelectPlanRequest struct {
	PlanType models.PlanType `json:"payment_type" validate:"required"`
}

// PlanStatus bundles everything the plan selector needs in one response.
type PlanStatus struct {
	Fees              models.CourseFees          `json:"fees"`
	Lock              models.PlanLock            `json:"lock"`
	FullAmount        float64                    `json:"full_amount"`
	InstallmentAmount float64                    `json:"installment_amount"`
	Periods           []models.InstallmentPeriod `json:"periods,omitempty"`
}

// PlanService manages the one-way payment plan commitment. The upstream
// record is authoritative; the portal caches reads and never unlocks.
type PlanService struct {
	upstream  planUpstream
	cache     cacheStore
	ttls      PlanCacheTTLs
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPlanService constructs a PlanService.
func NewPlanService(upstream planUpstream, cache cacheStore, ttls PlanCacheTTLs, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{upstream: upstream, cache: cache, ttls: ttls, validator: validate, logger: logger}
}

func feesCacheKey(registrationNumber string) string {
	return "portal:fees:" + registrationNumber
}

func lockCacheKey(registrationNumber string) string {
	return "portal:lock:" + registrationNumber
}

// Fees returns the student's fee structure, cached.
func (s *PlanService) Fees(ctx context.Context, registrationNumber string) (*models.CourseFees, error) {
	var cached models.CourseFees
	if s.cache != nil {
		if err := s.cache.Get(ctx, feesCacheKey(registrationNumber), &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("fees cache read failed", zap.Error(err))
		}
	}

	fees, err := s.upstream.CourseFees(ctx, registrationNumber)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, feesCacheKey(registrationNumber), fees, s.ttls.Fees); err != nil {
			s.logger.Warn("fees cache write failed", zap.Error(err))
		}
	}
	return fees, nil
}

// Lock returns the student's plan lock, cached. Only a positive lock is
// cached: an unlocked state must always reflect the latest upstream record,
// otherwise a commit made in another session would be invisible.
func (s *PlanService) Lock(ctx context.Context, registrationNumber string) (*models.PlanLock, error) {
	var cached models.PlanLock
	if s.cache != nil {
		if err := s.cache.Get(ctx, lockCacheKey(registrationNumber), &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("lock cache read failed", zap.Error(err))
		}
	}

	lock, err := s.upstream.PaymentLock(ctx, registrationNumber)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && lock.Locked {
		if err := s.cache.Set(ctx, lockCacheKey(registrationNumber), lock, s.ttls.Lock); err != nil {
			s.logger.Warn("lock cache write failed", zap.Error(err))
		}
	}
	return lock, nil
}

// ConfirmLock records the one-way plan commitment. Re-locking the same plan
// is a no-op; switching plans after locking is refused.
func (s *PlanService) ConfirmLock(ctx context.Context, registrationNumber string, req SelectPlanRequest) (*models.PlanLock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	if !req.PlanType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment_type must be full or emi")
	}

	current, err := s.upstream.PaymentLock(ctx, registrationNumber)
	if err != nil {
		return nil, err
	}
	if current.Locked {
		if current.PlanType == req.PlanType {
			return current, nil
		}
		return nil, appErrors.Clone(appErrors.ErrPlanLocked, "payment plan already locked to "+string(current.PlanType))
	}

	if req.PlanType == models.PlanTypeEMI {
		fees, err := s.Fees(ctx, registrationNumber)
		if err != nil {
			return nil, err
		}
		if fees.Duration <= 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "installments are not available for this course")
		}
	}

	if err := s.upstream.LockPlan(ctx, registrationNumber, req.PlanType); err != nil {
		return nil, err
	}

	lock := &models.PlanLock{RegistrationNumber: registrationNumber, PlanType: req.PlanType, Locked: true}
	if s.cache != nil {
		if err := s.cache.Set(ctx, lockCacheKey(registrationNumber), lock, s.ttls.Lock); err != nil {
			s.logger.Warn("lock cache write failed", zap.Error(err))
		}
	}
	s.logger.Info("payment plan locked",
		zap.String("registration_number", registrationNumber),
		zap.String("plan_type", string(req.PlanType)),
	)
	return lock, nil
}

// Status aggregates fees, lock, derived amounts and the EMI period view.
func (s *PlanService) Status(ctx context.Context, registrationNumber, token string) (*PlanStatus, error) {
	fees, err := s.Fees(ctx, registrationNumber)
	if err != nil {
		return nil, err
	}
	lock, err := s.Lock(ctx, registrationNumber)
	if err != nil {
		return nil, err
	}

	status := &PlanStatus{
		Fees:              *fees,
		Lock:              *lock,
		FullAmount:        fees.EffectiveFinalFees(),
		InstallmentAmount: fees.InstallmentAmount(),
	}
	if lock.Locked && lock.PlanType == models.PlanTypeEMI {
		transactions, err := s.upstream.Transactions(ctx, token)
		if err != nil {
			return nil, err
		}
		status.Periods = InstallmentPeriods(*fees, lock, transactions)
	}
	return status, nil
}
