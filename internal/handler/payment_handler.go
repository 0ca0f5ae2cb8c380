package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isml-edu/student-portal-api/internal/service"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
	"github.com/isml-edu/student-portal-api/pkg/response"
)

// PaymentHandler exposes the payment flow: plan selection and lock,
// checkout sessions and their callbacks, transactions and reconciliation.
type PaymentHandler struct {
	plans     *service.PlanService
	checkout  *service.CheckoutService
	reconcile *service.ReconcileService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(plans *service.PlanService, checkout *service.CheckoutService, reconcile *service.ReconcileService) *PaymentHandler {
	return &PaymentHandler{plans: plans, checkout: checkout, reconcile: reconcile}
}

// Fees godoc
// @Summary Course fee structure
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /payments/fees [get]
func (h *PaymentHandler) Fees(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fees, err := h.plans.Fees(c.Request.Context(), claims.RegistrationNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// PlanStatus godoc
// @Summary Plan selection status with fees, lock and EMI periods
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /payments/plan [get]
func (h *PaymentHandler) PlanStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	status, err := h.plans.Status(c.Request.Context(), claims.RegistrationNumber, tokenFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// LockPlan godoc
// @Summary Commit to a payment plan (one-way)
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SelectPlanRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Router /payments/plan [post]
func (h *PaymentHandler) LockPlan(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SelectPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lock, err := h.plans.ConfirmLock(c.Request.Context(), claims.RegistrationNumber, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lock, nil)
}

// InitiateCheckout godoc
// @Summary Open a hosted checkout session for the next due payment
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.InitiateCheckoutRequest false "Checkout payload"
// @Success 201 {object} response.Envelope
// @Router /payments/checkout [post]
func (h *PaymentHandler) InitiateCheckout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.InitiateCheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	descriptor, err := h.checkout.Initiate(c.Request.Context(), claims, tokenFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, descriptor)
}

// CompleteCheckout godoc
// @Summary Gateway success callback for an open checkout
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CompleteCheckoutRequest true "Completion payload"
// @Success 202 {object} response.Envelope
// @Router /payments/checkout/complete [post]
func (h *PaymentHandler) CompleteCheckout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CompleteCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	outcome, err := h.checkout.Complete(c.Request.Context(), claims.RegistrationNumber, tokenFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, outcome, nil)
}

// DismissCheckout godoc
// @Summary Checkout dismissed without paying
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /payments/checkout/{orderId}/dismiss [post]
func (h *PaymentHandler) DismissCheckout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	outcome, err := h.checkout.Dismiss(claims.RegistrationNumber, c.Param("orderId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// FailCheckout godoc
// @Summary Gateway failure callback for an open checkout
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.FailCheckoutRequest true "Failure payload"
// @Success 200 {object} response.Envelope
// @Router /payments/checkout/fail [post]
func (h *PaymentHandler) FailCheckout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.FailCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	outcome, err := h.checkout.Fail(claims.RegistrationNumber, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Transactions godoc
// @Summary Charge history with pending payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) Transactions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	transactions, err := h.reconcile.Transactions(c.Request.Context(), claims.RegistrationNumber, tokenFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	pending, err := h.reconcile.Pending(c.Request.Context(), claims.RegistrationNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"transactions": transactions, "pending": pending}, nil)
}

// Reconcile godoc
// @Summary Reconcile pending payments against the ledger
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /payments/reconcile [post]
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.reconcile.ReconcilePending(c.Request.Context(), claims.RegistrationNumber, tokenFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
