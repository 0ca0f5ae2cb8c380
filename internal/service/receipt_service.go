package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isml-edu/student-portal-api/internal/models"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
	"github.com/isml-edu/student-portal-api/pkg/export"
)

type transactionReader interface {
	Transactions(ctx context.Context, registrationNumber, token string) ([]models.Transaction, error)
}

type receiptStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type receiptSigner interface {
	Generate(receiptID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (receiptID, relPath string, expiresAt time.Time, err error)
}

// ReceiptFormat selects the rendered file type.
type ReceiptFormat string

const (
	ReceiptFormatPDF ReceiptFormat = "pdf"
	ReceiptFormatCSV ReceiptFormat = "csv"
)

// ReceiptLink is a signed, expiring download reference.
type ReceiptLink struct {
	ReceiptID string    `json:"receipt_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Format    string    `json:"format"`
}

// ReceiptService renders payment receipts for confirmed transactions and
// serves them through signed, expiring download tokens. Receipts exist only
// for charges the upstream ledger has confirmed.
type ReceiptService struct {
	transactions transactionReader
	storage      receiptStorage
	signer       receiptSigner
	pdf          *export.PDFExporter
	csv          *export.CSVExporter
	displayName  string
	logger       *zap.Logger
}

// NewReceiptService constructs a ReceiptService.
func NewReceiptService(transactions transactionReader, storage receiptStorage, signer receiptSigner, displayName string, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{
		transactions: transactions,
		storage:      storage,
		signer:       signer,
		pdf:          export.NewPDFExporter(),
		csv:          export.NewCSVExporter(),
		displayName:  displayName,
		logger:       logger,
	}
}

// Generate renders a receipt for one confirmed payment and returns a signed
// download link.
func (s *ReceiptService) Generate(ctx context.Context, registrationNumber, token, paymentID string, format ReceiptFormat) (*ReceiptLink, error) {
	if paymentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment_id is required")
	}
	if format == "" {
		format = ReceiptFormatPDF
	}
	if format != ReceiptFormatPDF && format != ReceiptFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}

	transactions, err := s.transactions.Transactions(ctx, registrationNumber, token)
	if err != nil {
		return nil, err
	}
	var txn *models.Transaction
	for i := range transactions {
		if transactions[i].PaymentID == paymentID {
			txn = &transactions[i]
			break
		}
	}
	if txn == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	if !txn.Status {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment is not confirmed yet")
	}

	data, err := s.render(registrationNumber, txn, format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	receiptID := uuid.NewString()
	relPath := fmt.Sprintf("%s/%s.%s", registrationNumber, sanitizeFilePart(paymentID), format)
	if _, err := s.storage.Save(relPath, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt")
	}

	signed, expiresAt, err := s.signer.Generate(receiptID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}

	s.logger.Info("receipt generated",
		zap.String("registration_number", registrationNumber),
		zap.String("payment_id", paymentID),
		zap.String("format", string(format)),
	)
	return &ReceiptLink{ReceiptID: receiptID, Token: signed, ExpiresAt: expiresAt, Format: string(format)}, nil
}

// ExportHistory renders the student's full transaction history as CSV.
// Pending entries are included with their status so the export matches what
// the portal shows.
func (s *ReceiptService) ExportHistory(ctx context.Context, registrationNumber, token string) ([]byte, error) {
	transactions, err := s.transactions.Transactions(ctx, registrationNumber, token)
	if err != nil {
		return nil, err
	}

	headers := []string{"Payment ID", "Order ID", "Course", "Plan", "Installment", "Amount", "Status", "Created At"}
	rows := make([]map[string]string, 0, len(transactions))
	for _, txn := range transactions {
		installment := ""
		if txn.InstallmentIndex != nil {
			installment = fmt.Sprintf("%d", *txn.InstallmentIndex)
		}
		status := "pending"
		if txn.Status {
			status = "confirmed"
		}
		rows = append(rows, map[string]string{
			"Payment ID":  txn.PaymentID,
			"Order ID":    txn.OrderID,
			"Course":      txn.CourseName,
			"Plan":        string(txn.PlanType),
			"Installment": installment,
			"Amount":      fmt.Sprintf("%.2f", txn.FinalFees),
			"Status":      status,
			"Created At":  txn.CreatedAt.Format(time.RFC3339),
		})
	}

	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return data, nil
}

// Open validates a download token and returns the stored file.
func (s *ReceiptService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired receipt link")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "receipt no longer available")
	}
	return file, relPath, nil
}

// StartCleanup deletes aged receipt files on an interval until ctx ends.
func (s *ReceiptService) StartCleanup(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.storage.CleanupOlderThan(maxAge)
				if err != nil {
					s.logger.Warn("receipt cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("receipt cleanup", zap.Int("deleted", len(deleted)))
				}
			}
		}
	}()
}

func (s *ReceiptService) render(registrationNumber string, txn *models.Transaction, format ReceiptFormat) ([]byte, error) {
	plan := "Full Payment"
	if txn.PlanType == models.PlanTypeEMI {
		plan = "EMI"
		if txn.InstallmentIndex != nil {
			plan = fmt.Sprintf("EMI (installment %d)", *txn.InstallmentIndex)
		}
	}

	if format == ReceiptFormatCSV {
		dataset := export.Dataset{
			Headers: []string{"Receipt For", "Registration Number", "Payment ID", "Order ID", "Course", "Plan", "Amount", "Paid At"},
			Rows: []map[string]string{{
				"Receipt For":         s.displayName,
				"Registration Number": registrationNumber,
				"Payment ID":          txn.PaymentID,
				"Order ID":            txn.OrderID,
				"Course":              txn.CourseName,
				"Plan":                plan,
				"Amount":              fmt.Sprintf("%.2f", txn.FinalFees),
				"Paid At":             txn.CreatedAt.Format(time.RFC3339),
			}},
		}
		return s.csv.Render(dataset)
	}

	fields := [][2]string{
		{"Registration Number", registrationNumber},
		{"Payment ID", txn.PaymentID},
		{"Order ID", txn.OrderID},
		{"Course", txn.CourseName},
		{"Plan", plan},
		{"Amount", fmt.Sprintf("%.2f", txn.FinalFees)},
		{"Paid At", txn.CreatedAt.Format("02 Jan 2006 15:04")},
	}
	title := s.displayName + " payment receipt"
	return s.pdf.RenderReceipt(title, fields)
}

func sanitizeFilePart(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, raw)
}
