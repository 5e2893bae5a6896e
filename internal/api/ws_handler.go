package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cross-origin upgrades are allowed, auth happens via the JWT
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades authenticated requests into hub connections.
type WSHandler struct {
	appCtx *app.AppContext
	hub    *presence.Hub
}

func NewWSHandler(appCtx *app.AppContext, hub *presence.Hub) *WSHandler {
	return &WSHandler{appCtx: appCtx, hub: hub}
}

func (h *WSHandler) Register(r *gin.Engine) {
	r.GET("/ws", RequireAuth(h.appCtx.Config.Auth.JWTSecret), h.connect)
}

func (h *WSHandler) connect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.appCtx.Logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := presence.NewWebSocketClient(h.hub, currentUserID(c), uuid.NewString(), conn)
	h.hub.Register(c.Request.Context(), client)
	client.Run()
}
