package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/webmatcha/matcha-go/internal/app"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/service/notification"
)

// NotificationHandler exposes the notification feed.
type NotificationHandler struct {
	appCtx *app.AppContext
	svc    *notification.Service
}

func NewNotificationHandler(appCtx *app.AppContext, svc *notification.Service) *NotificationHandler {
	return &NotificationHandler{appCtx: appCtx, svc: svc}
}

func (h *NotificationHandler) Register(r *gin.Engine) {
	grp := r.Group("/api/notifications", RequireAuth(h.appCtx.Config.Auth.JWTSecret))

	grp.GET("", h.list)
	grp.GET("/unread-count", h.unreadCount)
	grp.POST("/:id/read", h.markRead)
	grp.POST("/read-all", h.markAllRead)
	grp.DELETE("/:id", h.delete)
	grp.DELETE("", h.deleteAll)
}

func (h *NotificationHandler) list(c *gin.Context) {
	unreadOnly := c.Query("unread") == "1" || c.Query("unread") == "true"
	notifications, err := h.svc.List(c.Request.Context(), currentUserID(c), unreadOnly)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *NotificationHandler) unreadCount(c *gin.Context) {
	count, err := h.svc.UnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) markRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), id); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (h *NotificationHandler) markAllRead(c *gin.Context) {
	if err := h.svc.MarkAllRead(c.Request.Context(), currentUserID(c)); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (h *NotificationHandler) delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *NotificationHandler) deleteAll(c *gin.Context) {
	if err := h.svc.DeleteAll(c.Request.Context(), currentUserID(c)); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
