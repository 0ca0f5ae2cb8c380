package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/isml-edu/student-portal-api/internal/models"
	"github.com/isml-edu/student-portal-api/internal/upstream"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

// stubUpstream implements the upstream-facing service interfaces with
// overridable function fields.
type stubUpstream struct {
	loginFn          func(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	paymentLockFn    func(ctx context.Context, registrationNumber string) (*models.PlanLock, error)
	lockPlanFn       func(ctx context.Context, registrationNumber string, plan models.PlanType) error
	courseFeesFn     func(ctx context.Context, registrationNumber string) (*models.CourseFees, error)
	transactionsFn   func(ctx context.Context, token string) ([]models.Transaction, error)
	createOrderFn    func(ctx context.Context, req upstream.OrderRequest) (*upstream.OrderDescriptor, string, error)
	verifyChargeFn   func(ctx context.Context, req upstream.VerifyRequest) (bool, error)
	chargeStatusFn   func(ctx context.Context, paymentID string) (bool, error)
	studentDetailsFn func(ctx context.Context, studentID string) (*models.StudentDetails, error)
	enrolledFn       func(ctx context.Context, token string) ([]models.Enrollment, error)

	mu          sync.Mutex
	lockedPlans map[string]models.PlanType
}

func (s *stubUpstream) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, req)
	}
	return &models.AuthResponse{Token: "token"}, nil
}

func (s *stubUpstream) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return &models.AuthResponse{Token: "token"}, nil
}

func (s *stubUpstream) ForgotPassword(ctx context.Context, registrationNumber string) error {
	return nil
}

func (s *stubUpstream) ResetPassword(ctx context.Context, token, newPassword string) error {
	return nil
}

func (s *stubUpstream) StudentDetails(ctx context.Context, studentID string) (*models.StudentDetails, error) {
	if s.studentDetailsFn != nil {
		return s.studentDetailsFn(ctx, studentID)
	}
	return &models.StudentDetails{
		StudentID:          studentID,
		RegistrationNumber: "ISML001",
		Name:               "Asha Rao",
		Email:              "asha@example.com",
		Phone:              "9999999999",
	}, nil
}

func (s *stubUpstream) States(ctx context.Context) ([]models.State, error) {
	return nil, nil
}

func (s *stubUpstream) Centers(ctx context.Context, stateID string) ([]models.Center, error) {
	return nil, nil
}

func (s *stubUpstream) EnrolledBatches(ctx context.Context, token string) ([]models.Enrollment, error) {
	if s.enrolledFn != nil {
		return s.enrolledFn(ctx, token)
	}
	return []models.Enrollment{{EnrollmentID: "enr-1", Batch: models.Batch{BatchID: "batch-1", CourseName: "French A1"}}}, nil
}

func (s *stubUpstream) PaymentLock(ctx context.Context, registrationNumber string) (*models.PlanLock, error) {
	if s.paymentLockFn != nil {
		return s.paymentLockFn(ctx, registrationNumber)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock := &models.PlanLock{RegistrationNumber: registrationNumber}
	if plan, ok := s.lockedPlans[registrationNumber]; ok {
		lock.PlanType = plan
		lock.Locked = true
	}
	return lock, nil
}

func (s *stubUpstream) LockPlan(ctx context.Context, registrationNumber string, plan models.PlanType) error {
	if s.lockPlanFn != nil {
		return s.lockPlanFn(ctx, registrationNumber, plan)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedPlans == nil {
		s.lockedPlans = make(map[string]models.PlanType)
	}
	s.lockedPlans[registrationNumber] = plan
	return nil
}

func (s *stubUpstream) CourseFees(ctx context.Context, registrationNumber string) (*models.CourseFees, error) {
	if s.courseFeesFn != nil {
		return s.courseFeesFn(ctx, registrationNumber)
	}
	return &models.CourseFees{
		RegistrationNumber: registrationNumber,
		CourseName:         "French A1",
		TotalFees:          60000,
		DiscountPercent:    10,
		Duration:           6,
	}, nil
}

func (s *stubUpstream) Transactions(ctx context.Context, token string) ([]models.Transaction, error) {
	if s.transactionsFn != nil {
		return s.transactionsFn(ctx, token)
	}
	return nil, nil
}

func (s *stubUpstream) CreateOrder(ctx context.Context, req upstream.OrderRequest) (*upstream.OrderDescriptor, string, error) {
	if s.createOrderFn != nil {
		return s.createOrderFn(ctx, req)
	}
	return &upstream.OrderDescriptor{ID: "order_1", Amount: int64(req.Amount * 100), Currency: "INR"}, "rzp_test_key", nil
}

func (s *stubUpstream) VerifyCharge(ctx context.Context, req upstream.VerifyRequest) (bool, error) {
	if s.verifyChargeFn != nil {
		return s.verifyChargeFn(ctx, req)
	}
	return false, nil
}

func (s *stubUpstream) ChargeStatus(ctx context.Context, paymentID string) (bool, error) {
	if s.chargeStatusFn != nil {
		return s.chargeStatusFn(ctx, paymentID)
	}
	return false, nil
}

// memoryCache is an in-process cacheStore for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	c.sets++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deletes++
	return nil
}

// memoryPendingRepo is an in-process pendingPaymentRepository for tests.
type memoryPendingRepo struct {
	mu      sync.Mutex
	records map[string]*models.PendingPayment
	seq     int
}

func newMemoryPendingRepo() *memoryPendingRepo {
	return &memoryPendingRepo{records: make(map[string]*models.PendingPayment)}
}

func (r *memoryPendingRepo) Create(ctx context.Context, record *models.PendingPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.ID == "" {
		r.seq++
		record.ID = fmt.Sprintf("pp-%d", r.seq)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *memoryPendingRepo) FindByOrder(ctx context.Context, registrationNumber, orderID string) (*models.PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.RegistrationNumber == registrationNumber && record.OrderID == orderID {
			clone := *record
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryPendingRepo) ListByRegistration(ctx context.Context, registrationNumber string) ([]models.PendingPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PendingPayment
	for _, record := range r.records {
		if record.RegistrationNumber == registrationNumber {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (r *memoryPendingRepo) MarkVerified(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[id]; ok {
		record.Verified = true
	}
	return nil
}

func (r *memoryPendingRepo) IncrementPollAttempts(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return 0, nil
	}
	record.PollAttempts++
	return record.PollAttempts, nil
}

func (r *memoryPendingRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *memoryPendingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// recordingQueue captures enqueued verification jobs.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []interface{}
}

func (q *recordingQueue) Enqueue(id, jobType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, payload)
	return nil
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// stubLoader is a no-op scriptLoader.
type stubLoader struct {
	err     error
	ensures int
}

func (l *stubLoader) Ensure(ctx context.Context) error {
	l.ensures++
	return l.err
}

func (l *stubLoader) URL() string {
	return "https://checkout.example.com/v1/checkout.js"
}

// recordingRecorder captures completion records.
type recordingRecorder struct {
	mu      sync.Mutex
	records []*models.PendingPayment
	err     error
}

func (r *recordingRecorder) RecordCompletion(ctx context.Context, record *models.PendingPayment, token string) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func intPtr(v int) *int {
	return &v
}
