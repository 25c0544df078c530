package todo

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/todolist-authentication-service/internal/person"
	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

// AddRequest is the payload for adding a to-do.
type AddRequest struct {
	Todo string `json:"todo"`
}

// UpdateRequest is the payload for updating a to-do.
type UpdateRequest struct {
	Todo   string `json:"todo"`
	IsDone *bool  `json:"isDone"`
}

// ItemResponse wraps a single item.
type ItemResponse struct {
	Data    Item   `json:"data"`
	Message string `json:"message,omitempty"`
}

// ListResponse wraps the caller's items.
type ListResponse struct {
	Data []Item `json:"data"`
}

// TodoHandler serves the caller's to-do list. Every route expects the auth
// middleware to have run.
type TodoHandler struct {
	router  *gin.RouterGroup
	service TodoService
	logger  *zap.Logger
}

func NewTodoHandler(router *gin.RouterGroup, service TodoService, logger *zap.Logger) *TodoHandler {
	h := &TodoHandler{router: router, service: service, logger: logger}
	h.router.POST("/todolist/add", h.Add)
	h.router.PUT("/todolist/update/:id", h.Update)
	h.router.DELETE("/todolist/delete/:id", h.Delete)
	h.router.DELETE("/todolist/delete-all", h.DeleteAll)
	h.router.GET("/todolist/get", h.list(OrderCreated))
	h.router.GET("/todolist/get-order-by-done", h.list(OrderDoneFirst))
	h.router.GET("/todolist/get-order-by-name", h.list(OrderName))
	return h
}

func (h *TodoHandler) owner(c *gin.Context) (uint, bool) {
	user, ok := person.CurrentPerson(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return user.ID, true
}

func (h *TodoHandler) fail(c *gin.Context, op string, err error) {
	var validationErr *utils.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": validationErr.Fields})
	case errors.Is(err, ErrTodoAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "todo already exists"})
	case errors.Is(err, ErrTodoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "todo not found"})
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process todo"})
	}
}

// Add godoc
// @Summary      Add to-do
// @Tags         todolist
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      AddRequest  true  "To-do payload"
// @Success      201      {object}  ItemResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      409      {object}  map[string]string
// @Router       /todolist/add [post]
func (h *TodoHandler) Add(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	todo, err := h.service.Add(c.Request.Context(), ownerID, req.Todo)
	if err != nil {
		h.fail(c, "service.Add", err)
		return
	}
	c.JSON(http.StatusCreated, ItemResponse{Data: todo.Item(), Message: "todo added"})
}

// Update godoc
// @Summary      Update to-do
// @Tags         todolist
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string         true  "To-do ID"
// @Param        payload  body      UpdateRequest  true  "To-do payload"
// @Success      200      {object}  ItemResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      404      {object}  map[string]string
// @Router       /todolist/update/{id} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	todo, err := h.service.Update(c.Request.Context(), ownerID, c.Param("id"), req.Todo, req.IsDone)
	if err != nil {
		h.fail(c, "service.Update", err)
		return
	}
	c.JSON(http.StatusOK, ItemResponse{Data: todo.Item(), Message: "todo updated"})
}

// Delete godoc
// @Summary      Delete to-do
// @Tags         todolist
// @Security     BearerAuth
// @Param        id  path  string  true  "To-do ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /todolist/delete/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		h.fail(c, "service.Delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAll godoc
// @Summary      Delete all to-dos of the caller
// @Tags         todolist
// @Security     BearerAuth
// @Success      204
// @Router       /todolist/delete-all [delete]
func (h *TodoHandler) DeleteAll(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}
	if err := h.service.DeleteAll(c.Request.Context(), ownerID); err != nil {
		h.fail(c, "service.DeleteAll", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// list godoc
// @Summary      List to-dos
// @Tags         todolist
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ListResponse
// @Router       /todolist/get [get]
// @Router       /todolist/get-order-by-done [get]
// @Router       /todolist/get-order-by-name [get]
func (h *TodoHandler) list(order Order) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := h.owner(c)
		if !ok {
			return
		}
		todos, err := h.service.List(c.Request.Context(), ownerID, order)
		if err != nil {
			h.fail(c, "service.List", err)
			return
		}
		c.JSON(http.StatusOK, ListResponse{Data: items(todos)})
	}
}
