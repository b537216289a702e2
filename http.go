package account

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/samber/oops"
)

// Response is the JSON envelope for every endpoint except POST /token
type Response struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

const internalErrorDetail = "internal server error"

// StatusFromCode maps an error code to its HTTP status
func StatusFromCode(code string) int {
	switch code {
	case CodeValidation:
		return fiber.StatusUnprocessableEntity
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeInvalidGrant:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders err for a route handler
type ErrorHandler func(router.Context, error) error

// RouteErrorHandler returns an ErrorHandler that renders errors in the
// Response envelope. Internal failures are logged and reported with a
// generic detail.
func RouteErrorHandler(logger Logger) ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c router.Context, err error) error {
		status, body := errorResponse(logger, c.Method(), c.Path(), err)
		if status == fiber.StatusUnauthorized {
			c.SetHeader(fiber.HeaderWWWAuthenticate, "Bearer")
		}
		return c.JSON(status, body)
	}
}

// FiberErrorHandler returns a fiber.ErrorHandler for errors raised outside
// the account routes, such as unknown paths and recovered panics. It
// renders the same envelope as RouteErrorHandler.
func FiberErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(Response{Detail: fe.Message})
		}

		status, body := errorResponse(logger, c.Method(), c.Path(), err)
		if status == fiber.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}
		return c.Status(status).JSON(body)
	}
}

func errorResponse(logger Logger, method, path string, err error) (int, Response) {
	code := ErrorCode(err)
	status := StatusFromCode(code)

	detail := publicDetail(err)
	if code == CodeInternal {
		detail = internalErrorDetail
		if oopsErr, ok := oops.AsOops(err); ok {
			logger.Error("%s %s failed: %v %s", method, path, err, print.MaybePrettyJSON(oopsErr.Context()))
		} else {
			logger.Error("%s %s failed: %v", method, path, err)
		}
	}

	return status, Response{Detail: detail}
}

// publicDetail returns the message of the innermost error, which is the
// sentinel or validation summary the services wrap. Wrapping context such
// as token decode reasons stays out of responses.
func publicDetail(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func defaultErrHandler(c router.Context, err error) error {
	return RouteErrorHandler(defLogger{})(c, err)
}
