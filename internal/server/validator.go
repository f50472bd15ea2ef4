package server

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator создает валидатор на базе go-playground/validator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate запускает проверку структуры по тегам.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

var _ echo.Validator = (*CustomValidator)(nil)
