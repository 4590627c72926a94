package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"user-service/internal/apperr"
	"user-service/internal/entity"
	"user-service/internal/service"
)

type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new instance of UserHandler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.NewValidation("Validation failed", apperr.FieldError{
			Field:   "id",
			Message: "User ID must be a positive integer",
		})
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req interface{ Normalize() }) error {
	if err := c.Bind(req); err != nil {
		return apperr.NewValidation("Invalid request payload")
	}
	req.Normalize()
	return c.Validate(req)
}

// CreateUser creates a new user --> POST /api/v1/users
func (h *UserHandler) CreateUser(c echo.Context) error {
	req := entity.CreateUserRequest{}
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userService.CreateUser(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, user, "User created successfully")
}

// GetAllUsers lists users --> GET /api/v1/users?limit=&offset=
func (h *UserHandler) GetAllUsers(c echo.Context) error {
	var limit, offset int
	err := echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError()
	if err != nil {
		return apperr.NewValidation("limit and offset must be integers")
	}

	page, err := h.userService.GetAllUsers(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, page, "")
}

// GetUser retrieves a user by ID --> GET /api/v1/users/:id
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	user, err := h.userService.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user, "")
}

// UpdateUser patches name and/or email --> PATCH /api/v1/users/:id
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	req := entity.UpdateUserRequest{}
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userService.UpdateUser(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, user, "User updated successfully")
}

// DeleteUser removes a user --> DELETE /api/v1/users/:id
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.userService.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "User deleted successfully")
}
