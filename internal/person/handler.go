package person

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

// ContextUserKey is the key under which the authenticated Person is stored in Gin context.
const ContextUserKey = "user"

// UpdateProfileRequest represents the payload to update the current person.
// @Description payload to change the display name
// @Property name body string false "new name (5-30 characters)"
type UpdateProfileRequest struct {
	Name *string `json:"name"`
}

// ProfileResponse wraps the profile of the authenticated person.
type ProfileResponse struct {
	Data    Profile `json:"data"`
	Message string  `json:"message,omitempty"`
}

// PersonHandler handles HTTP requests for the authenticated person's profile.
type PersonHandler struct {
	router  *gin.RouterGroup
	service PersonService
	logger  *zap.Logger
}

// NewPersonHandler registers profile endpoints on the given, already authenticated, router group.
func NewPersonHandler(router *gin.RouterGroup, service PersonService, logger *zap.Logger) *PersonHandler {
	h := &PersonHandler{router: router, service: service, logger: logger}
	h.router.GET("/user/current", h.ReadCurrentPerson)
	h.router.PATCH("/user/current", h.UpdateCurrentPerson)
	return h
}

// CurrentPerson returns the Person placed in the context by the auth middleware.
func CurrentPerson(c *gin.Context) (*Person, bool) {
	raw, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := raw.(*Person)
	return user, ok && user != nil
}

// ReadCurrentPerson returns the authenticated user from context.
// @Summary      Get current user
// @Description  Fetch the profile of the authenticated user
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} ProfileResponse
// @Failure      401 {object} map[string]string
// @Router       /user/current [get]
func (h *PersonHandler) ReadCurrentPerson(c *gin.Context) {
	user, ok := CurrentPerson(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{Data: user.Profile()})
}

// UpdateCurrentPerson godoc
// @Summary      Update current user
// @Description  Change the display name of the authenticated user
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      UpdateProfileRequest  true  "Profile payload"
// @Success      200      {object}  ProfileResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /user/current [patch]
func (h *PersonHandler) UpdateCurrentPerson(c *gin.Context) {
	user, ok := CurrentPerson(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update profile payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := h.service.UpdateName(c.Request.Context(), user.ID, req.Name)
	var validationErr *utils.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ProfileResponse{Data: updated.Profile(), Message: "profile updated"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": validationErr.Fields})
	case errors.Is(err, ErrPersonNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		h.logger.Error("service.UpdateName failed", zap.Uint("id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update profile"})
	}
}
