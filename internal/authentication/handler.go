package authentication

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/todolist-authentication-service/internal/person"
	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

const (
	RefreshCookieName = "refreshToken"
	refreshCookiePath = "/"
)

// RegisterRequest is the payload for creating an account.
// @Description payload to register a new person
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the access token; the refresh token travels in a cookie.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// MessageResponse is returned by endpoints without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// CookieSettings controls the refreshToken cookie.
type CookieSettings struct {
	MaxAge int
	Secure bool
}

// AuthHandler handles authentication-related HTTP endpoints.
type AuthHandler struct {
	service AuthenticationService
	cookie  CookieSettings
	logger  *zap.Logger
}

// NewAuthHandler registers the public auth endpoints on public and the ones
// requiring a bearer token on protected.
func NewAuthHandler(public, protected *gin.RouterGroup, service AuthenticationService, cookie CookieSettings, logger *zap.Logger) *AuthHandler {
	h := &AuthHandler{service: service, cookie: cookie, logger: logger}
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.Refresh)
	protected.POST("/auth/logout", h.Logout)
	protected.POST("/user/change-password", h.ChangePassword)
	return h
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string) {
	c.SetCookie(RefreshCookieName, value, h.cookie.MaxAge, refreshCookiePath, "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetCookie(RefreshCookieName, "", -1, refreshCookiePath, "", h.cookie.Secure, true)
}

// Register godoc
// @Summary      Register
// @Description  Create a new account; no token is issued
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      RegisterRequest  true  "Registration payload"
// @Success      201      {object}  MessageResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      409      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	_, err := h.service.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	var validationErr *utils.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, MessageResponse{Message: "registered"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": validationErr.Fields})
	case errors.Is(err, person.ErrEmailAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	default:
		h.logger.Error("Register service failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
	}
}

// Login godoc
// @Summary      Login
// @Description  Authenticate user, return an access token and set the refreshToken cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      LoginRequest  true  "Login credentials"
// @Success      200      {object}  TokenResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	pair, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		h.setRefreshCookie(c, pair.RefreshToken)
		c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
	case errors.Is(err, ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": ErrTooManyAttempts.Error()})
	default:
		h.logger.Error("Login service failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
	}
}

// Refresh godoc
// @Summary      Refresh Token
// @Description  Rotate the refreshToken cookie and issue a new access token
// @Tags         auth
// @Produce      json
// @Success      200      {object}  TokenResponse
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	value, err := c.Cookie(RefreshCookieName)
	if err != nil || value == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	pair, err := h.service.Refresh(c.Request.Context(), value)
	switch {
	case err == nil:
		h.setRefreshCookie(c, pair.RefreshToken)
		c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		h.logger.Error("Refresh service failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh token"})
	}
}

// Logout godoc
// @Summary      Logout
// @Description  Invalidate the refresh token held in the cookie and clear it
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  MessageResponse
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	// the cookie is cleared whatever the outcome
	h.clearRefreshCookie(c)

	value, err := c.Cookie(RefreshCookieName)
	if err != nil || value == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	caller, _ := person.CurrentPerson(c)
	err = h.service.Logout(c.Request.Context(), caller, value)
	switch {
	case err == nil:
		c.Set(person.ContextUserKey, nil)
		c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		h.logger.Error("Logout service failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not logout"})
	}
}

// ChangePassword godoc
// @Summary      Change password
// @Description  Replace the password of the authenticated user
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      PasswordChange  true  "Password payload"
// @Success      200      {object}  MessageResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /user/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	caller, ok := person.CurrentPerson(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req PasswordChange
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid change password payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	err := h.service.ChangePassword(c.Request.Context(), caller, req)
	var validationErr *utils.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": validationErr.Fields})
	case errors.Is(err, ErrOldPasswordMismatch), errors.Is(err, ErrPasswordConfirmationMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("ChangePassword service failed", zap.Uint("id", caller.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not change password"})
	}
}
