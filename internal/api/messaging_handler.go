package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/webmatcha/matcha-go/internal/app"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/service/messaging"
)

// MessagingHandler exposes conversations and message sending over HTTP.
// The websocket path goes through the presence hub instead.
type MessagingHandler struct {
	appCtx *app.AppContext
	svc    *messaging.Service
}

func NewMessagingHandler(appCtx *app.AppContext, svc *messaging.Service) *MessagingHandler {
	return &MessagingHandler{appCtx: appCtx, svc: svc}
}

func (h *MessagingHandler) Register(r *gin.Engine) {
	grp := r.Group("/api", RequireAuth(h.appCtx.Config.Auth.JWTSecret))

	grp.GET("/conversations", h.list)
	grp.GET("/conversations/:id", h.conversation)
	grp.POST("/conversations/:id/messages", h.send)
	grp.POST("/conversations/:id/read", h.markRead)
	grp.GET("/messages/unread-count", h.unreadCount)
}

func (h *MessagingHandler) list(c *gin.Context) {
	summaries, err := h.svc.Conversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

func (h *MessagingHandler) conversation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	count := queryInt(c, "count", 0)
	if count > 0 {
		messages, err := h.svc.Recent(c.Request.Context(), currentUserID(c), id, count)
		if err != nil {
			svcErr.WriteHTTP(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
		return
	}

	messages, err := h.svc.Conversation(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *MessagingHandler) send(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), currentUserID(c), id, req.Content)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *MessagingHandler) markRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), currentUserID(c), id); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (h *MessagingHandler) unreadCount(c *gin.Context) {
	count, err := h.svc.UnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
