package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/isml-edu/student-portal-api/internal/models"
	"github.com/isml-edu/student-portal-api/internal/service"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
	"github.com/isml-edu/student-portal-api/pkg/response"
)

type loginReconciler interface {
	ReconcilePending(ctx context.Context, registrationNumber, token string) (*service.ReconcileSummary, error)
}

// AuthHandler exposes authentication and registration endpoints.
type AuthHandler struct {
	auth      *service.AuthService
	reconcile loginReconciler
}

// NewAuthHandler constructs AuthHandler. The reconciler is optional; when
// present, a login sweeps the student's pending payments in the background.
func NewAuthHandler(auth *service.AuthService, reconcile loginReconciler) *AuthHandler {
	return &AuthHandler{auth: auth, reconcile: reconcile}
}

// Login godoc
// @Summary Student login
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.reconcile != nil && res.Token != "" {
		registrationNumber := res.Student.RegistrationNumber
		token := res.Token
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_, _ = h.reconcile.ReconcilePending(ctx, registrationNumber, token)
		}()
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Register godoc
// @Summary Student registration
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	res, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// ForgotPassword godoc
// @Summary Start password reset
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.ForgotPasswordRequest true "Reset payload"
// @Success 200 {object} response.Envelope
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "reset instructions sent"}, nil)
}

// ResetPassword godoc
// @Summary Complete password reset
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.ResetPasswordRequest true "Reset payload"
// @Success 200 {object} response.Envelope
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "password updated"}, nil)
}

// Profile godoc
// @Summary Current student profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	profile, err := h.auth.Profile(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// States godoc
// @Summary List states for registration
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/states [get]
func (h *AuthHandler) States(c *gin.Context) {
	states, err := h.auth.States(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, states, nil)
}

// Centers godoc
// @Summary List centers in a state
// @Tags Auth
// @Produce json
// @Param state_id query string true "State ID"
// @Success 200 {object} response.Envelope
// @Router /auth/centers [get]
func (h *AuthHandler) Centers(c *gin.Context) {
	centers, err := h.auth.Centers(c.Request.Context(), c.Query("state_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, centers, nil)
}
