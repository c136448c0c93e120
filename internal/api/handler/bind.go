package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/bug-tracker/internal/core/domain"
)

// bindStrict decodes a JSON body into v, rejecting keys v does not declare.
func bindStrict(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return domain.Validation("Request body is required")
		case errors.As(err, &typeErr):
			return domain.Validation(fmt.Sprintf("%s has an invalid type", typeErr.Field))
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return domain.Validation("Unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return domain.Validation("Invalid request payload")
		}
	}
	if dec.More() {
		return domain.Validation("Invalid request payload")
	}
	return nil
}

// bindLoose binds with Echo's default binder and ignores unknown keys.
func bindLoose(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return domain.Validation("Invalid request payload")
	}
	return nil
}
