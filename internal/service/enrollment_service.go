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

type enrollmentUpstream interface {
	EnrolledBatches(ctx context.Context, token string) ([]models.Enrollment, error)
	Batches(ctx context.Context, centerID string) ([]models.Batch, error)
	Enroll(ctx context.Context, req models.EnrollRequest) error
}

// EnrollmentService exposes batch discovery and enrollment. Approval is an
// upstream concern; the portal only submits requests and mirrors state.
type EnrollmentService struct {
	upstream  enrollmentUpstream
	cache     cacheStore
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(up enrollmentUpstream, cache cacheStore, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{upstream: up, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

func enrollmentsCacheKey(registrationNumber string) string {
	return "portal:enrollments:" + registrationNumber
}

// Enrolled returns the student's enrollments, cached briefly.
func (s *EnrollmentService) Enrolled(ctx context.Context, registrationNumber, token string) ([]models.Enrollment, error) {
	var cached []models.Enrollment
	if s.cache != nil {
		if err := s.cache.Get(ctx, enrollmentsCacheKey(registrationNumber), &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("enrollments cache read failed", zap.Error(err))
		}
	}

	enrollments, err := s.upstream.EnrolledBatches(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, enrollmentsCacheKey(registrationNumber), enrollments, s.cacheTTL); err != nil {
			s.logger.Warn("enrollments cache write failed", zap.Error(err))
		}
	}
	return enrollments, nil
}

// AvailableBatches lists batches at the student's center.
func (s *EnrollmentService) AvailableBatches(ctx context.Context, centerID string) ([]models.Batch, error) {
	if centerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "center is required")
	}
	return s.upstream.Batches(ctx, centerID)
}

// Enroll submits an enrollment request upstream and drops the stale cache.
func (s *EnrollmentService) Enroll(ctx context.Context, registrationNumber string, req models.EnrollRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := s.upstream.Enroll(ctx, req); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, enrollmentsCacheKey(registrationNumber)); err != nil {
			s.logger.Warn("enrollments cache invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("enrollment submitted",
		zap.String("registration_number", registrationNumber),
		zap.String("batch_id", req.BatchID),
	)
	return nil
}
