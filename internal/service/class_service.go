package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

type classUpstream interface {
	ClassMeets(ctx context.Context, token, batchID string) ([]models.ClassMeet, error)
	Notes(ctx context.Context, token, batchID string) ([]models.Note, error)
	ChatMessages(ctx context.Context, batchID string) ([]models.ChatMessage, error)
	Notifications(ctx context.Context, token string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, token, id string) error
	EnrolledBatches(ctx context.Context, token string) ([]models.Enrollment, error)
}

// ClassService exposes batch content: schedules, notes, the announcement
// feed and notifications. Batch access is checked against the student's own
// enrollments before any content is returned.
type ClassService struct {
	upstream classUpstream
	logger   *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(up classUpstream, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{upstream: up, logger: logger}
}

func (s *ClassService) assertEnrolled(ctx context.Context, token, batchID string) error {
	enrollments, err := s.upstream.EnrolledBatches(ctx, token)
	if err != nil {
		return err
	}
	for _, enrollment := range enrollments {
		if enrollment.Batch.BatchID == batchID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this batch")
}

// Meets returns the online class schedule for one of the student's batches.
func (s *ClassService) Meets(ctx context.Context, token, batchID string) ([]models.ClassMeet, error) {
	if err := s.assertEnrolled(ctx, token, batchID); err != nil {
		return nil, err
	}
	return s.upstream.ClassMeets(ctx, token, batchID)
}

// Notes returns study resources shared with one of the student's batches.
func (s *ClassService) Notes(ctx context.Context, token, batchID string) ([]models.Note, error) {
	if err := s.assertEnrolled(ctx, token, batchID); err != nil {
		return nil, err
	}
	return s.upstream.Notes(ctx, token, batchID)
}

// Chat returns the read-only announcement feed for a batch.
func (s *ClassService) Chat(ctx context.Context, token, batchID string) ([]models.ChatMessage, error) {
	if err := s.assertEnrolled(ctx, token, batchID); err != nil {
		return nil, err
	}
	return s.upstream.ChatMessages(ctx, batchID)
}

// Notifications lists the student's unread notifications.
func (s *ClassService) Notifications(ctx context.Context, token string) ([]models.Notification, error) {
	return s.upstream.Notifications(ctx, token)
}

// MarkNotificationRead marks one notification as read.
func (s *ClassService) MarkNotificationRead(ctx context.Context, token, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "notification id is required")
	}
	return s.upstream.MarkNotificationRead(ctx, token, id)
}
