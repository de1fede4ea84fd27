// Package httpx holds the fiber glue shared by every handler package: the
// central error handler, body parsing and validation.
package httpx

import (
	"errors"

	"medchain-backend/internal/ledger"
	"medchain-backend/internal/logging"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidationError carries per-field validator tags back to the client.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }

// ParseBody decodes the request body into out and runs its validate tags.
func ParseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return Validate(out)
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ValidationError{Fields: ProcessValidationErrors(verrs)}
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func ProcessValidationErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

// StatusOf maps a ledger error onto an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ledger.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientQuantity),
		errors.Is(err, ledger.ErrInvalidHierarchy),
		errors.Is(err, ledger.ErrInvalidPayload),
		errors.Is(err, ledger.ErrVerificationFailed):
		return fiber.StatusBadRequest
	case errors.Is(err, ledger.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrBusy):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error as {"error": msg}. Unexpected errors are
// logged and their message hidden.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	}

	status := StatusOf(err)
	body := fiber.Map{"error": err.Error()}

	var qerr *ledger.InsufficientQuantityError
	if errors.As(err, &qerr) {
		body["available"] = qerr.Available
		body["requested"] = qerr.Requested
	}

	if status == fiber.StatusInternalServerError {
		logging.LogError(logging.GetLogger(), "httpx", "ErrorHandler", c.Method()+" "+c.Path(), nil, err)
		if !errors.Is(err, ledger.ErrLedgerInconsistency) {
			body["error"] = "internal server error"
		}
	}
	return c.Status(status).JSON(body)
}
