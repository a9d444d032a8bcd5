package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/myinvois-api/internal/application/dto"
	"github.com/jhoicas/myinvois-api/internal/domain"
)

// errorBody traduce un error de dominio a status HTTP y cuerpo.
func errorBody(err error) (int, dto.ErrorResponse) {
	var (
		valErr    *domain.ValidationError
		winErr    *domain.CancellationWindowError
		authErr   *domain.AuthorityRejectedError
		transErr  *domain.TransportError
		illegal   *domain.IllegalTransitionError
		exhausted *domain.RetryExhaustedError
	)
	switch {
	case errors.As(err, &valErr):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{Code: "VALIDATION_FAILED", Message: "el documento no pasa la validación", Issues: valErr.Issues}
	case errors.As(err, &winErr):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CANCELLATION_WINDOW_EXPIRED", Message: err.Error(), Deadline: winErr.Deadline.UTC().Format(time.RFC3339)}
	case errors.As(err, &illegal):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "ILLEGAL_TRANSITION", Message: err.Error()}
	case errors.As(err, &exhausted):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "RETRY_EXHAUSTED", Message: err.Error()}
	case errors.As(err, &authErr):
		return fiber.StatusBadGateway, dto.ErrorResponse{Code: "AUTHORITY_REJECTED", Message: err.Error()}
	case errors.As(err, &transErr):
		return fiber.StatusBadGateway, dto.ErrorResponse{Code: "TRANSPORT_FAILURE", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: err.Error()}
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()}
}

func writeError(c *fiber.Ctx, err error) error {
	status, body := errorBody(err)
	return c.Status(status).JSON(body)
}

// errorPtr versión para incrustar en respuestas por ítem (nil si err es nil).
func errorPtr(err error) *dto.ErrorResponse {
	if err == nil {
		return nil
	}
	_, body := errorBody(err)
	return &body
}
