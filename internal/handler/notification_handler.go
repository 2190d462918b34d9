package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arjun-mehta/school-erp-api/internal/models"
	appErrors "github.com/arjun-mehta/school-erp-api/pkg/errors"
	"github.com/arjun-mehta/school-erp-api/pkg/response"
)

type notificationReader interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) int
	MarkAsRead(ctx context.Context, notificationID, userID string) error
}

// NotificationHandler exposes the in-app notification endpoints.
type NotificationHandler struct {
	service notificationReader
}

// NewNotificationHandler builds a new handler.
func NewNotificationHandler(service notificationReader) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List returns the caller's newest notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	notifications, err := h.service.ListForUser(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// UnreadCount returns the caller's unread notification count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	count := h.service.UnreadCount(c.Request.Context(), claims.UserID)
	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}

// MarkRead flags one notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkAsRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
