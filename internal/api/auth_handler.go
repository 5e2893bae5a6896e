package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webmatcha/matcha-go/internal/app"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/service/auth"
)

// AuthHandler exposes registration, login and the token flows.
type AuthHandler struct {
	appCtx *app.AppContext
	svc    *auth.Service
}

func NewAuthHandler(appCtx *app.AppContext, svc *auth.Service) *AuthHandler {
	return &AuthHandler{appCtx: appCtx, svc: svc}
}

func (h *AuthHandler) Register(r *gin.Engine) {
	grp := r.Group("/api/auth")
	grp.POST("/register", h.register)
	grp.POST("/login", h.login)
	grp.GET("/verify-email", h.verifyEmail)
	grp.POST("/password-reset/request", h.requestReset)
	grp.POST("/password-reset/confirm", h.confirmReset)

	authed := grp.Group("", RequireAuth(h.appCtx.Config.Auth.JWTSecret))
	authed.POST("/logout", h.logout)
	authed.POST("/password/change", h.changePassword)
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	BirthDate       string `json:"birth_date"` // YYYY-MM-DD
	Gender          string `json:"gender"`
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var birth time.Time
	if req.BirthDate != "" {
		parsed, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "birth_date must be YYYY-MM-DD"})
			return
		}
		birth = parsed
	}

	u, err := h.svc.Register(c.Request.Context(), auth.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		BirthDate:       birth,
		Gender:          req.Gender,
	})
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": toOwnUser(*u)})
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	u, token, err := h.svc.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": toOwnUser(*u)})
}

func (h *AuthHandler) logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), currentUserID(c)); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h *AuthHandler) verifyEmail(c *gin.Context) {
	if err := h.svc.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

func (h *AuthHandler) requestReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	// same answer whether or not the address exists
	c.JSON(http.StatusOK, gin.H{"status": "reset_requested"})
}

func (h *AuthHandler) confirmReset(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}

func (h *AuthHandler) changePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		svcErr.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}
