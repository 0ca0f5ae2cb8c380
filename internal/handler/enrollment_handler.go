package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isml-edu/student-portal-api/internal/models"
	"github.com/isml-edu/student-portal-api/internal/service"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
	"github.com/isml-edu/student-portal-api/pkg/response"
)

// EnrollmentHandler exposes batch discovery and enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enrolled godoc
// @Summary List the student's enrollments
// @Tags Batches
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /batches/enrolled [get]
func (h *EnrollmentHandler) Enrolled(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollments, err := h.enrollments.Enrolled(c.Request.Context(), claims.RegistrationNumber, tokenFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Available godoc
// @Summary List batches available at a center
// @Tags Batches
// @Produce json
// @Security BearerAuth
// @Param center query string true "Center ID"
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *EnrollmentHandler) Available(c *gin.Context) {
	batches, err := h.enrollments.AvailableBatches(c.Request.Context(), c.Query("center"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}

// Enroll godoc
// @Summary Request enrollment into a batch
// @Tags Batches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /batches/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.StudentID = claims.StudentID

	if err := h.enrollments.Enroll(c.Request.Context(), claims.RegistrationNumber, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "enrollment requested"})
}
