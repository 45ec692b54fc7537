package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/fixit-hub/fixit/internal/apperr"
	"github.com/fixit-hub/fixit/internal/validation"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   apperr.Kind       `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ErrorHandler renders handler errors as JSON. Domain errors are mapped through
// their kind; fiber errors keep their own status.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message})
		}

		status := apperr.HTTPStatus(err)
		resp := errorResponse{Error: err.Error(), Kind: apperr.KindOf(err)}
		if status == fiber.StatusInternalServerError {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
			resp = errorResponse{Error: "internal server error"}
		}
		var verr *validation.Error
		if errors.As(err, &verr) {
			resp.Fields = verr.Fields
		}
		return c.Status(status).JSON(resp)
	}
}
