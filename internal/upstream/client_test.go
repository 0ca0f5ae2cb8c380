package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isml-edu/student-portal-api/internal/models"
	"github.com/isml-edu/student-portal-api/pkg/config"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(config.UpstreamConfig{
		BaseURL:     server.URL,
		ChatBaseURL: server.URL,
		Timeout:     5 * time.Second,
	}, nil)
	return client, server
}

func TestClientLoginForwardsCredentials(t *testing.T) {
	var captured models.LoginRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/students/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token": "upstream-token",
			"student": map[string]string{
				"registration_number": "ISML001",
			},
		})
	})

	res, err := client.Login(context.Background(), models.LoginRequest{
		RegistrationNumber: "ISML001",
		Password:           "secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "ISML001", captured.RegistrationNumber)
	assert.Equal(t, "upstream-token", res.Token)
}

func TestClientUnauthorizedMapsToSessionExpired(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.EnrolledBatches(context.Background(), "stale-token")

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestClientUpstreamErrorCarriesMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"batch is full"}`))
	})

	err := client.Enroll(context.Background(), models.EnrollRequest{})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, "batch is full", appErr.Message)
}

func TestClientTokenScopedRequestsCarryBearer(t *testing.T) {
	var authorization string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"enrollments":[]}`))
	})

	_, err := client.EnrolledBatches(context.Background(), "upstream-token")

	require.NoError(t, err)
	assert.Equal(t, "Bearer upstream-token", authorization)
}

func TestClientCreateOrderRejectsIncompleteResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"order":{"id":"","amount":0,"currency":""},"key":""}`))
	})

	_, _, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 54000})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOrderCreation.Code, appErr.Code)
}

func TestClientCreateOrderSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/razorpay/create-order", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"order":{"id":"order_1","amount":5400000,"currency":"INR"},"key":"rzp_test_key"}`))
	})

	order, key, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 54000})

	require.NoError(t, err)
	assert.Equal(t, "order_1", order.ID)
	assert.Equal(t, int64(5400000), order.Amount)
	assert.Equal(t, "rzp_test_key", key)
}

func TestClientTransactionsToleratesStringStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transactions":[
			{"payment_id":"pay_1","payment_type":"emi","current_emi":1,"status":"true"},
			{"payment_id":"pay_2","payment_type":"emi","current_emi":2,"status":false},
			{"payment_id":"pay_3","payment_type":"full","status":1}
		]}`))
	})

	txns, err := client.Transactions(context.Background(), "upstream-token")

	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.True(t, txns[0].Status)
	assert.False(t, txns[1].Status)
	assert.True(t, txns[2].Status)
}

func TestClientPaymentLockMapsEmptyData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	})

	lock, err := client.PaymentLock(context.Background(), "ISML001")

	require.NoError(t, err)
	assert.False(t, lock.Locked)
	assert.Equal(t, "ISML001", lock.RegistrationNumber)
}

func TestClientPaymentLockMapsLockedPlan(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment-lock/ISML001", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"payment_type":"emi"}}`))
	})

	lock, err := client.PaymentLock(context.Background(), "ISML001")

	require.NoError(t, err)
	assert.True(t, lock.Locked)
	assert.Equal(t, models.PlanTypeEMI, lock.PlanType)
}

func TestClientChargeStatusRequiresPresence(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"present":false}`))
	})

	present, err := client.ChargeStatus(context.Background(), "pay_1")

	require.NoError(t, err)
	assert.False(t, present)
}
