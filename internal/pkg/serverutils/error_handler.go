package serverutils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrorMapper translates a domain error into an HTTP status. It reports false
// when the error is not one it knows.
type ErrorMapper func(err error) (int, bool)

// StatusFor maps err to sentinel when errors.Is matches.
func StatusFor(sentinel error, status int) ErrorMapper {
	return func(err error) (int, bool) {
		if errors.Is(err, sentinel) {
			return status, true
		}
		return 0, false
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into the standard
// error envelope.
func ErrorHandlerMiddleware(mappers ...ErrorMapper) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err, mappers...)
	}
}

func WriteError(ctx *fiber.Ctx, err error, mappers ...ErrorMapper) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		body := ErrorResponse(fiber.StatusUnprocessableEntity, "Validation failed")
		body.Errors = verr.Fields
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(body)
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return ctx.Status(ferr.Code).JSON(ErrorResponse(ferr.Code, ferr.Message))
	}

	for _, m := range mappers {
		if status, ok := m(err); ok {
			return ctx.Status(status).JSON(ErrorResponse(status, err.Error()))
		}
	}

	return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, err.Error()))
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
