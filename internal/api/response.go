package api

import (
	"github.com/labstack/echo/v4"

	"user-service/internal/apperr"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func respond(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, Response{Success: true, Data: data, Message: message})
}

func fail(c echo.Context, status int, message string, fields ...apperr.FieldError) error {
	return c.JSON(status, ErrorResponse{Success: false, Error: message, Errors: fields})
}
