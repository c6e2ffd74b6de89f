// Package notify renders every API outcome as a notification envelope the
// client shows to the user.
package notify

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"bookshare/service/errs"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

type Envelope struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"`
	Data     any      `json:"data,omitempty"`
}

// Status maps an error kind to its HTTP status.
func Status(k errs.Kind) int {
	switch k {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusServiceUnavailable
}

// Error writes err as an error notification. Store failures are logged and
// reported without their cause.
func Error(c echo.Context, log *slog.Logger, op string, err error) error {
	kind := errs.KindOf(err)
	env := Envelope{Severity: SeverityError, Code: string(errs.Code(err))}
	if kind == errs.KindUnavailable {
		log.Error(op, "err", err, "req_id", c.Response().Header().Get(echo.HeaderXRequestID))
		env.Message = "service unavailable, please retry"
		if env.Code == "" {
			env.Code = string(errs.ErrStore)
		}
	} else {
		log.Info(op, "kind", kind, "code", env.Code)
		env.Message = errs.Message(err)
	}
	return c.JSON(Status(kind), env)
}

func BadRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, Envelope{Message: msg, Severity: SeverityError, Code: string(errs.ErrInvalidInput)})
}

func Unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, Envelope{Message: "unauthorized", Severity: SeverityError})
}

func Success(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, Envelope{Message: msg, Severity: SeveritySuccess, Data: data})
}

// Data writes a plain read response.
func Data(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, echo.Map{"data": data})
}
