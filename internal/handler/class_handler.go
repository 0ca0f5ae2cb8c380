package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isml-edu/student-portal-api/internal/service"
	"github.com/isml-edu/student-portal-api/pkg/response"
)

// ClassHandler exposes batch content: schedules, notes, chat and
// notifications.
type ClassHandler struct {
	classes *service.ClassService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// Meets godoc
// @Summary Online class schedule for a batch
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{batchId}/meets [get]
func (h *ClassHandler) Meets(c *gin.Context) {
	meets, err := h.classes.Meets(c.Request.Context(), tokenFromContext(c), c.Param("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meets, nil)
}

// Notes godoc
// @Summary Study notes shared with a batch
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{batchId}/notes [get]
func (h *ClassHandler) Notes(c *gin.Context) {
	notes, err := h.classes.Notes(c.Request.Context(), tokenFromContext(c), c.Param("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, nil)
}

// Chat godoc
// @Summary Read-only announcement feed for a batch
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{batchId}/chat [get]
func (h *ClassHandler) Chat(c *gin.Context) {
	messages, err := h.classes.Chat(c.Request.Context(), tokenFromContext(c), c.Param("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// Notifications godoc
// @Summary Unread notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *ClassHandler) Notifications(c *gin.Context) {
	notifications, err := h.classes.Notifications(c.Request.Context(), tokenFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// MarkNotificationRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id} [patch]
func (h *ClassHandler) MarkNotificationRead(c *gin.Context) {
	if err := h.classes.MarkNotificationRead(c.Request.Context(), tokenFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
