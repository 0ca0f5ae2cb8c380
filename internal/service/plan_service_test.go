package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

func newPlanService(up *stubUpstream, cache cacheStore) *PlanService {
	ttls := PlanCacheTTLs{Fees: time.Minute, Lock: time.Minute}
	return NewPlanService(up, cache, ttls, validator.New(), zap.NewNop())
}

func TestPlanServiceConfirmLockFirstTime(t *testing.T) {
	up := &stubUpstream{}
	svc := newPlanService(up, newMemoryCache())

	lock, err := svc.ConfirmLock(context.Background(), "ISML001", SelectPlanRequest{PlanType: models.PlanTypeEMI})
	require.NoError(t, err)
	assert.True(t, lock.Locked)
	assert.Equal(t, models.PlanTypeEMI, lock.PlanType)
}

func TestPlanServiceConfirmLockIdempotentSamePlan(t *testing.T) {
	up := &stubUpstream{lockedPlans: map[string]models.PlanType{"ISML001": models.PlanTypeFull}}
	svc := newPlanService(up, newMemoryCache())

	lock, err := svc.ConfirmLock(context.Background(), "ISML001", SelectPlanRequest{PlanType: models.PlanTypeFull})
	require.NoError(t, err)
	assert.True(t, lock.Locked)
}

func TestPlanServiceConfirmLockRefusesSwitch(t *testing.T) {
	up := &stubUpstream{lockedPlans: map[string]models.PlanType{"ISML001": models.PlanTypeFull}}
	svc := newPlanService(up, newMemoryCache())

	_, err := svc.ConfirmLock(context.Background(), "ISML001", SelectPlanRequest{PlanType: models.PlanTypeEMI})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPlanLocked.Code, appErrors.FromError(err).Code)
}

func TestPlanServiceConfirmLockRefusesEMIForSingleMonthCourse(t *testing.T) {
	up := &stubUpstream{}
	up.courseFeesFn = func(ctx context.Context, reg string) (*models.CourseFees, error) {
		return &models.CourseFees{RegistrationNumber: reg, TotalFees: 8000, Duration: 1}, nil
	}
	svc := newPlanService(up, newMemoryCache())

	_, err := svc.ConfirmLock(context.Background(), "ISML001", SelectPlanRequest{PlanType: models.PlanTypeEMI})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPlanServiceConfirmLockRejectsUnknownPlan(t *testing.T) {
	svc := newPlanService(&stubUpstream{}, newMemoryCache())

	_, err := svc.ConfirmLock(context.Background(), "ISML001", SelectPlanRequest{PlanType: "quarterly"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPlanServiceFeesCached(t *testing.T) {
	calls := 0
	up := &stubUpstream{}
	up.courseFeesFn = func(ctx context.Context, reg string) (*models.CourseFees, error) {
		calls++
		return &models.CourseFees{RegistrationNumber: reg, TotalFees: 60000, DiscountPercent: 10, Duration: 6}, nil
	}
	svc := newPlanService(up, newMemoryCache())

	first, err := svc.Fees(context.Background(), "ISML001")
	require.NoError(t, err)
	second, err := svc.Fees(context.Background(), "ISML001")
	require.NoError(t, err)
	assert.Equal(t, first.TotalFees, second.TotalFees)
	assert.Equal(t, 1, calls)
}

func TestPlanServiceLockOnlyCachesPositiveLock(t *testing.T) {
	calls := 0
	up := &stubUpstream{}
	up.paymentLockFn = func(ctx context.Context, reg string) (*models.PlanLock, error) {
		calls++
		return &models.PlanLock{RegistrationNumber: reg}, nil
	}
	svc := newPlanService(up, newMemoryCache())

	_, err := svc.Lock(context.Background(), "ISML001")
	require.NoError(t, err)
	_, err = svc.Lock(context.Background(), "ISML001")
	require.NoError(t, err)
	// unlocked state is never cached, both reads hit upstream
	assert.Equal(t, 2, calls)
}

func TestPlanServiceStatusIncludesPeriodsForEMI(t *testing.T) {
	up := &stubUpstream{lockedPlans: map[string]models.PlanType{"ISML001": models.PlanTypeEMI}}
	up.transactionsFn = func(ctx context.Context, token string) ([]models.Transaction, error) {
		return []models.Transaction{paidEMI(1)}, nil
	}
	svc := newPlanService(up, newMemoryCache())

	status, err := svc.Status(context.Background(), "ISML001", "token")
	require.NoError(t, err)
	assert.Equal(t, float64(54000), status.FullAmount)
	assert.Equal(t, float64(9000), status.InstallmentAmount)
	require.Len(t, status.Periods, 6)
	assert.True(t, status.Periods[0].Paid)
	assert.True(t, status.Periods[1].Payable)
}

func TestPlanServiceStatusNoPeriodsForFullPlan(t *testing.T) {
	up := &stubUpstream{lockedPlans: map[string]models.PlanType{"ISML001": models.PlanTypeFull}}
	svc := newPlanService(up, newMemoryCache())

	status, err := svc.Status(context.Background(), "ISML001", "token")
	require.NoError(t, err)
	assert.Empty(t, status.Periods)
}
