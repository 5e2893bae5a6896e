package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/webmatcha/matcha-go/internal/app"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/service/relationship"
)

// RelationshipHandler exposes the like/block/report ledger and the
// derived listings.
type RelationshipHandler struct {
	appCtx *app.AppContext
	svc    *relationship.Service
}

func NewRelationshipHandler(appCtx *app.AppContext, svc *relationship.Service) *RelationshipHandler {
	return &RelationshipHandler{appCtx: appCtx, svc: svc}
}

func (h *RelationshipHandler) Register(r *gin.Engine) {
	grp := r.Group("/api", RequireAuth(h.appCtx.Config.Auth.JWTSecret))

	grp.POST("/users/:id/like", h.like)
	grp.DELETE("/users/:id/like", h.unlike)
	grp.POST("/users/:id/block", h.block)
	grp.DELETE("/users/:id/block", h.unblock)
	grp.POST("/users/:id/report", h.report)
	grp.GET("/users/:id/status", h.status)

	grp.GET("/likes", h.likers)
	grp.GET("/likes/count", h.likeCount)
	grp.GET("/matches", h.matches)
	grp.GET("/blocks", h.blocks)
}

func (h *RelationshipHandler) like(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Like(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": res.Outcome, "matched": res.Matched})
}

func (h *RelationshipHandler) unlike(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	outcome, err := h.svc.Unlike(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

func (h *RelationshipHandler) block(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	outcome, err := h.svc.Block(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

func (h *RelationshipHandler) unblock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	outcome, err := h.svc.Unblock(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

func (h *RelationshipHandler) report(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.Report(c.Request.Context(), currentUserID(c), id, req.Reason); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reported"})
}

func (h *RelationshipHandler) status(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	status, err := h.svc.Status(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *RelationshipHandler) likers(c *gin.Context) {
	var token *string
	if t := c.Query("page_token"); t != "" {
		token = &t
	}

	users, nextToken, err := h.svc.GetLikers(c.Request.Context(), currentUserID(c), token, queryInt(c, "limit", 20))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}

	resp := gin.H{"likers": toPublicUsers(users)}
	if nextToken != nil {
		resp["next_page_token"] = *nextToken
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RelationshipHandler) likeCount(c *gin.Context) {
	count, err := h.svc.CountLikesReceived(c.Request.Context(), currentUserID(c))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *RelationshipHandler) matches(c *gin.Context) {
	users, err := h.svc.ListMatches(c.Request.Context(), currentUserID(c))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": toPublicUsers(users)})
}

func (h *RelationshipHandler) blocks(c *gin.Context) {
	users, err := h.svc.ListBlocked(c.Request.Context(), currentUserID(c))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": toPublicUsers(users)})
}
