package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Routes bundles the handlers and middleware needed to wire the API surface.
type Routes struct {
	Auth          *AuthHandler
	Timetables    *TimetableHandler
	Notifications *NotificationHandler
	Audit         *AuditHandler

	Authenticated gin.HandlerFunc
	AdminOnly     gin.HandlerFunc
	Metrics       http.Handler
}

// Register mounts all routes under the API prefix.
func (rt Routes) Register(r *gin.Engine, prefix string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if rt.Metrics != nil {
		r.GET("/metrics", gin.WrapH(rt.Metrics))
	}

	api := r.Group(prefix)

	api.POST("/auth/login", rt.Auth.Login)

	authed := api.Group("", rt.Authenticated)

	timetables := authed.Group("/exam-timetables")
	timetables.POST("/:id/publish", rt.AdminOnly, rt.Timetables.Publish)
	timetables.PATCH("/:id", rt.AdminOnly, rt.Timetables.Update)
	timetables.POST("/:id/cancel", rt.AdminOnly, rt.Timetables.Cancel)
	timetables.GET("/:id/admit-cards", rt.Timetables.AdmitCards)

	notifications := authed.Group("/notifications")
	notifications.GET("", rt.Notifications.List)
	notifications.GET("/unread-count", rt.Notifications.UnreadCount)
	notifications.POST("/:id/read", rt.Notifications.MarkRead)

	audit := authed.Group("/audit-logs", rt.AdminOnly)
	audit.GET("/entity/:entityType/:entityId", rt.Audit.EntityLogs)
	audit.GET("/user/:userId", rt.Audit.UserLogs)
}
