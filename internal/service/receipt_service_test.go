package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isml-edu/student-portal-api/internal/models"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
)

type stubTransactionReader struct {
	txns []models.Transaction
	err  error
}

func (s *stubTransactionReader) Transactions(ctx context.Context, registrationNumber, token string) ([]models.Transaction, error) {
	return s.txns, s.err
}

type stubReceiptStorage struct {
	saved map[string][]byte
}

func newStubReceiptStorage() *stubReceiptStorage {
	return &stubReceiptStorage{saved: make(map[string][]byte)}
}

func (s *stubReceiptStorage) Save(relPath string, data []byte) (string, error) {
	s.saved[relPath] = data
	return relPath, nil
}

func (s *stubReceiptStorage) Open(relPath string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (s *stubReceiptStorage) CleanupOlderThan(maxAge time.Duration) ([]string, error) {
	return nil, nil
}

type stubReceiptSigner struct{}

func (s *stubReceiptSigner) Generate(receiptID, relPath string) (string, time.Time, error) {
	return "signed-" + receiptID, time.Now().Add(time.Hour), nil
}

func (s *stubReceiptSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	return "", "", time.Time{}, os.ErrInvalid
}

func confirmedTxn(paymentID string) models.Transaction {
	return models.Transaction{
		PaymentID:  paymentID,
		OrderID:    "order_" + paymentID,
		CourseName: "French A1",
		FinalFees:  54000,
		PlanType:   models.PlanTypeFull,
		Status:     true,
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReceiptServiceGeneratePDF(t *testing.T) {
	store := newStubReceiptStorage()
	svc := NewReceiptService(&stubTransactionReader{txns: []models.Transaction{confirmedTxn("pay_1")}}, store, &stubReceiptSigner{}, "ISML", nil)

	link, err := svc.Generate(context.Background(), "ISML001", "token", "pay_1", ReceiptFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "pdf", link.Format)
	assert.NotEmpty(t, link.Token)
	require.Len(t, store.saved, 1)
	assert.Contains(t, store.saved, "ISML001/pay_1.pdf")
}

func TestReceiptServiceGenerateRefusesUnconfirmed(t *testing.T) {
	pending := confirmedTxn("pay_2")
	pending.Status = false
	svc := NewReceiptService(&stubTransactionReader{txns: []models.Transaction{pending}}, newStubReceiptStorage(), &stubReceiptSigner{}, "ISML", nil)

	_, err := svc.Generate(context.Background(), "ISML001", "token", "pay_2", ReceiptFormatPDF)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestReceiptServiceGenerateUnknownPayment(t *testing.T) {
	svc := NewReceiptService(&stubTransactionReader{}, newStubReceiptStorage(), &stubReceiptSigner{}, "ISML", nil)

	_, err := svc.Generate(context.Background(), "ISML001", "token", "pay_missing", ReceiptFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReceiptServiceExportHistoryIncludesPendingStatus(t *testing.T) {
	pending := confirmedTxn("pay_4")
	pending.Status = false
	reader := &stubTransactionReader{txns: []models.Transaction{confirmedTxn("pay_3"), pending}}
	svc := NewReceiptService(reader, newStubReceiptStorage(), &stubReceiptSigner{}, "ISML", nil)

	data, err := svc.ExportHistory(context.Background(), "ISML001", "token")
	require.NoError(t, err)

	csv := string(data)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "confirmed")
	assert.Contains(t, lines[2], "pending")
}
