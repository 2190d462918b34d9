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

type auditReader interface {
	EntityLogs(ctx context.Context, schoolID, entityType, entityID string, limit int) []models.AuditLog
	UserLogs(ctx context.Context, schoolID, userID string, limit int) []models.AuditLog
}

// AuditHandler exposes audit trail read endpoints.
type AuditHandler struct {
	service auditReader
}

// NewAuditHandler builds a new handler.
func NewAuditHandler(service auditReader) *AuditHandler {
	return &AuditHandler{service: service}
}

// EntityLogs returns the newest audit records for one entity in the
// caller's school.
func (h *AuditHandler) EntityLogs(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs := h.service.EntityLogs(c.Request.Context(), claims.SchoolID, c.Param("entityType"), c.Param("entityId"), limit)
	response.JSON(c, http.StatusOK, logs, nil)
}

// UserLogs returns the newest audit records produced by one actor in the
// caller's school.
func (h *AuditHandler) UserLogs(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs := h.service.UserLogs(c.Request.Context(), claims.SchoolID, c.Param("userId"), limit)
	response.JSON(c, http.StatusOK, logs, nil)
}
