package handler

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/isml-edu/student-portal-api/internal/service"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
	"github.com/isml-edu/student-portal-api/pkg/response"
)

// ReceiptHandler exposes receipt generation and signed downloads.
type ReceiptHandler struct {
	receipts *service.ReceiptService
}

// NewReceiptHandler constructs ReceiptHandler.
func NewReceiptHandler(receipts *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

type generateReceiptRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	Format    string `json:"format"`
}

// Generate godoc
// @Summary Render a receipt for a confirmed payment
// @Tags Receipts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body generateReceiptRequest true "Receipt payload"
// @Success 201 {object} response.Envelope
// @Router /receipts [post]
func (h *ReceiptHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req generateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	link, err := h.receipts.Generate(c.Request.Context(), claims.RegistrationNumber, tokenFromContext(c), req.PaymentID, service.ReceiptFormat(req.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// ExportHistory godoc
// @Summary Export the transaction history as CSV
// @Tags Receipts
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /payments/export [get]
func (h *ReceiptHandler) ExportHistory(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	data, err := h.receipts.ExportHistory(c.Request.Context(), claims.RegistrationNumber, tokenFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="transactions.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// Download godoc
// @Summary Download a receipt through a signed link
// @Tags Receipts
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Router /receipts/download [get]
func (h *ReceiptHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, relPath, err := h.receipts.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	name := filepath.Base(relPath)
	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(name, ".pdf"):
		contentType = "application/pdf"
	case strings.HasSuffix(name, ".csv"):
		contentType = "text/csv"
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", contentType)
	http.ServeContent(c.Writer, c.Request, name, time.Time{}, file)
}
