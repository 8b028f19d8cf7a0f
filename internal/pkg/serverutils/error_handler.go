package serverutils

import (
	"errors"

	"ai-shopping-assistant-be/internal/pkg/apperror"
	"ai-shopping-assistant-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

const genericInternalMessage = "internal server error"

func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return fiber.StatusBadRequest
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindConflict:
		return fiber.StatusConflict
	case apperror.KindGateway:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into JSON bodies.
// Internal and unsupported failures are logged and answered with a generic
// message.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		return WriteError(c, err, log)
	}
}

func WriteError(c *fiber.Ctx, err error, log logger.ILogger) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, "http", fiberErr.Message))
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(genericInternalMessage, err)
	}

	status := StatusFor(appErr.Kind)
	body := ErrorResponse(status, appErr.Kind.String(), appErr.Message)

	switch appErr.Kind {
	case apperror.KindInternal, apperror.KindUnsupported:
		log.Error("HTTP", "Request failed", map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
			"kind":   appErr.Kind.String(),
			"error":  err.Error(),
		})
		if appErr.Kind == apperror.KindInternal {
			body.Message = genericInternalMessage
		}
	case apperror.KindGateway:
		log.Warn("HTTP", "Upstream provider failed", map[string]interface{}{
			"path":  c.Path(),
			"error": err.Error(),
		})
	}

	var fieldErrs *FieldErrors
	if errors.As(err, &fieldErrs) {
		body.Fields = fieldErrs.Fields
	}

	return c.Status(status).JSON(body)
}
