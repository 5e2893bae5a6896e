package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/webmatcha/matcha-go/internal/app"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/service/profile"
)

// ProfileHandler exposes profile reads, edits, browsing and search.
type ProfileHandler struct {
	appCtx *app.AppContext
	svc    *profile.Service
}

func NewProfileHandler(appCtx *app.AppContext, svc *profile.Service) *ProfileHandler {
	return &ProfileHandler{appCtx: appCtx, svc: svc}
}

func (h *ProfileHandler) Register(r *gin.Engine) {
	grp := r.Group("/api", RequireAuth(h.appCtx.Config.Auth.JWTSecret))

	grp.GET("/profiles/me", h.me)
	grp.PUT("/profiles/me", h.update)
	grp.POST("/profiles/me/deactivate", h.deactivate)
	grp.DELETE("/profiles/me", h.delete)
	grp.GET("/profiles/me/viewers", h.viewers)
	grp.GET("/profiles/:id", h.show)
	grp.GET("/suggestions", h.suggestions)
	grp.GET("/search", h.search)
}

func (h *ProfileHandler) me(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toOwnUser(*u)})
}

// show returns another user's profile and records the view. The view log
// handles self views, blocks and the cool-down on its own.
func (h *ProfileHandler) show(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	u, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}

	if err := h.svc.RecordView(c.Request.Context(), currentUserID(c), id); err != nil {
		h.appCtx.Logger.Warn("recording profile view failed", "viewer", currentUserID(c), "viewed", id, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{"user": toPublicUser(*u)})
}

type updateProfileRequest struct {
	FirstName        *string  `json:"first_name"`
	LastName         *string  `json:"last_name"`
	Biography        *string  `json:"biography"`
	Gender           *string  `json:"gender"`
	SexualPreference *string  `json:"sexual_preference"`
	InterestTags     []string `json:"interest_tags"`
	ProfilePhotoURL  *string  `json:"profile_photo_url"`
	PhotoURLs        []string `json:"photo_urls"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
}

func (h *ProfileHandler) update(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	u, err := h.svc.Update(c.Request.Context(), currentUserID(c), profile.UpdateInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Biography:        req.Biography,
		Gender:           req.Gender,
		SexualPreference: req.SexualPreference,
		InterestTags:     req.InterestTags,
		ProfilePhotoURL:  req.ProfilePhotoURL,
		PhotoURLs:        req.PhotoURLs,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
	})
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toOwnUser(*u)})
}

func (h *ProfileHandler) viewers(c *gin.Context) {
	users, err := h.svc.ListViewers(c.Request.Context(), currentUserID(c), queryInt(c, "limit", 50))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewers": toPublicUsers(users)})
}

func (h *ProfileHandler) suggestions(c *gin.Context) {
	candidates, err := h.svc.Suggestions(c.Request.Context(), currentUserID(c), queryInt(c, "limit", 20))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": toCandidateViews(candidates)})
}

func (h *ProfileHandler) search(c *gin.Context) {
	filter := profile.SearchFilter{
		AgeMin:  queryInt(c, "age_min", 0),
		AgeMax:  queryInt(c, "age_max", 0),
		FameMin: queryInt(c, "fame_min", 0),
	}
	if v := c.Query("max_distance_km"); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxDistanceKm = d
		}
	}
	if tags := c.Query("tags"); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}

	candidates, err := h.svc.Search(c.Request.Context(), currentUserID(c), filter, queryInt(c, "limit", 20))
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": toCandidateViews(candidates)})
}

func (h *ProfileHandler) deactivate(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), currentUserID(c)); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (h *ProfileHandler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), currentUserID(c)); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type candidateView struct {
	User       publicUser `json:"user"`
	DistanceKm float64    `json:"distance_km"`
}

func toCandidateViews(candidates []profile.Candidate) []candidateView {
	out := make([]candidateView, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, candidateView{User: toPublicUser(cand.User), DistanceKm: cand.DistanceKm})
	}
	return out
}

func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
