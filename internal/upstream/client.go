package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
	"github.com/isml-edu/student-portal-api/pkg/config"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

// RequestObserver receives per-request latency for upstream calls.
type RequestObserver interface {
	ObserveUpstreamRequest(endpoint string, duration time.Duration)
}

// Client talks to the external school API and the chat feed service. All
// business rules (enrollment approval, fee computation, payment capture)
// live upstream; this client only moves JSON.
type Client struct {
	baseURL     string
	chatBaseURL string
	httpClient  *http.Client
	observer    RequestObserver
	logger      *zap.Logger
}

// NewClient constructs an upstream client.
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		chatBaseURL: strings.TrimRight(cfg.ChatBaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

// SetObserver attaches a latency observer. Set once during wiring.
func (c *Client) SetObserver(observer RequestObserver) {
	c.observer = observer
}

// Login authenticates a student against the upstream API.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var res models.AuthResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/students/login", "", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates a new student account upstream.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var res models.AuthResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/students/register", "", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ForgotPassword starts the upstream reset flow.
func (c *Client) ForgotPassword(ctx context.Context, registrationNumber string) error {
	payload := map[string]string{"registration_number": registrationNumber}
	return c.do(ctx, http.MethodPost, c.baseURL+"/students/forgot-password", "", payload, nil)
}

// ResetPassword completes the upstream reset flow.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	payload := map[string]string{"token": token, "newPassword": newPassword}
	return c.do(ctx, http.MethodPost, c.baseURL+"/students/reset-password", "", payload, nil)
}

// StudentDetails fetches the student profile.
func (c *Client) StudentDetails(ctx context.Context, studentID string) (*models.StudentDetails, error) {
	payload := map[string]string{"student_id": studentID}
	var res studentDetailsResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/students/details", "", payload, &res); err != nil {
		return nil, err
	}
	return &res.Student, nil
}

// States lists selectable states for registration.
func (c *Client) States(ctx context.Context) ([]models.State, error) {
	var res []models.State
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/students/states", "", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Centers lists centers within a state.
func (c *Client) Centers(ctx context.Context, stateID string) ([]models.Center, error) {
	endpoint := c.baseURL + "/students/centers?state_id=" + url.QueryEscape(stateID)
	var res []models.Center
	if err := c.do(ctx, http.MethodGet, endpoint, "", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// EnrolledBatches returns the student's enrollments, token-scoped.
func (c *Client) EnrolledBatches(ctx context.Context, token string) ([]models.Enrollment, error) {
	var res enrolledBatchesResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/batches/enrolled", token, nil, &res); err != nil {
		return nil, err
	}
	return res.Enrollments, nil
}

// Batches lists batches available at a center.
func (c *Client) Batches(ctx context.Context, centerID string) ([]models.Batch, error) {
	payload := map[string]string{"center": centerID}
	var res batchListResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/batches/list", "", payload, &res); err != nil {
		return nil, err
	}
	return res.Batches, nil
}

// Enroll requests enrollment of a student into a batch.
func (c *Client) Enroll(ctx context.Context, req models.EnrollRequest) error {
	return c.do(ctx, http.MethodPost, c.baseURL+"/batches/enroll", "", req, nil)
}

// ClassMeets returns the online class schedule for a batch.
func (c *Client) ClassMeets(ctx context.Context, token, batchID string) ([]models.ClassMeet, error) {
	var res []models.ClassMeet
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/classes/gmeets/"+url.PathEscape(batchID), token, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Notes returns study resources shared with a batch.
func (c *Client) Notes(ctx context.Context, token, batchID string) ([]models.Note, error) {
	var res []models.Note
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/classes/notes/"+url.PathEscape(batchID), token, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// ChatMessages reads the announcement feed for a batch from the chat service.
func (c *Client) ChatMessages(ctx context.Context, batchID string) ([]models.ChatMessage, error) {
	var res []models.ChatMessage
	if err := c.do(ctx, http.MethodGet, c.chatBaseURL+"/chats/"+url.PathEscape(batchID), "", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Notifications lists unread notifications for the student.
func (c *Client) Notifications(ctx context.Context, token string) ([]models.Notification, error) {
	var res notificationsResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/notifications", token, nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodPatch, c.baseURL+"/notifications/"+url.PathEscape(id), token, struct{}{}, nil)
}

// CourseFees fetches the fee structure for a registration number.
func (c *Client) CourseFees(ctx context.Context, registrationNumber string) (*models.CourseFees, error) {
	var res models.CourseFees
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/student-course-fees/"+url.PathEscape(registrationNumber), "", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PaymentLock returns the locked plan for a student, if any. The backend is
// authoritative; an empty lock means the plan is still selectable.
func (c *Client) PaymentLock(ctx context.Context, registrationNumber string) (*models.PlanLock, error) {
	var res paymentLockResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/payment-lock/"+url.PathEscape(registrationNumber), "", nil, &res); err != nil {
		return nil, err
	}
	lock := &models.PlanLock{RegistrationNumber: registrationNumber}
	if res.Success && res.Data != nil && res.Data.PaymentType != "" {
		lock.PlanType = res.Data.PaymentType
		lock.Locked = true
	}
	return lock, nil
}

// LockPlan records the one-way plan commitment upstream. Idempotent per
// registration number on the backend side.
func (c *Client) LockPlan(ctx context.Context, registrationNumber string, plan models.PlanType) error {
	payload := lockPlanRequest{RegisterNumber: registrationNumber, PaymentType: plan}
	return c.do(ctx, http.MethodPost, c.baseURL+"/payment-lock", "", payload, nil)
}

// CreateOrder asks the backend for a gateway order descriptor.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderDescriptor, string, error) {
	var res orderResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/razorpay/create-order", "", req, &res); err != nil {
		return nil, "", err
	}
	if !res.Success || res.Order == nil || res.Order.ID == "" || res.Key == "" {
		return nil, "", appErrors.Clone(appErrors.ErrOrderCreation, "order creation failed")
	}
	return res.Order, res.Key, nil
}

// VerifyCharge submits the gateway signature for verification.
func (c *Client) VerifyCharge(ctx context.Context, req VerifyRequest) (bool, error) {
	var res verifyResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/razorpay/verify", "", req, &res); err != nil {
		return false, err
	}
	return res.Success, nil
}

// ChargeStatus reports whether the gateway payment is present in the ledger.
func (c *Client) ChargeStatus(ctx context.Context, paymentID string) (bool, error) {
	var res chargeStatusResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/razorpay/status/"+url.PathEscape(paymentID), "", nil, &res); err != nil {
		return false, err
	}
	return res.Success && res.Present, nil
}

// Transactions lists the student's charge history from the upstream ledger.
func (c *Client) Transactions(ctx context.Context, token string) ([]models.Transaction, error) {
	var res transactionsResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/payments", token, nil, &res); err != nil {
		return nil, err
	}
	txns := make([]models.Transaction, 0, len(res.Transactions))
	for _, w := range res.Transactions {
		txns = append(txns, w.toModel())
	}
	return txns, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal upstream payload: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observer != nil {
		c.observer.ObserveUpstreamRequest(req.URL.Path, time.Since(start))
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "upstream request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "read upstream response")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := upstreamErrorMessage(raw)
		c.logger.Warn("upstream error",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", message),
		)
		return appErrors.Clone(appErrors.ErrUpstream, message)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode upstream response")
	}
	return nil
}

func upstreamErrorMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return "upstream service error"
}
