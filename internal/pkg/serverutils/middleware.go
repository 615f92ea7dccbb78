package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"chart-analysis-be/pkg/embedding"
	"chart-analysis-be/pkg/vision"
	"chart-analysis-be/pkg/visual"
)

// ErrorHandlerMiddleware converts errors escaping a handler into the
// standard response envelope. Domain errors map to specific status codes;
// anything unrecognized becomes a 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, visual.ErrInvalidImage):
			code = fiber.StatusBadRequest
		case errors.Is(err, embedding.ErrDimensionMismatch):
			code = fiber.StatusBadGateway
		case errors.Is(err, vision.ErrUnavailable):
			code = fiber.StatusServiceUnavailable
		default:
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
		}

		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}
