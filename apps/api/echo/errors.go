package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/assistant"
	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// statusForDomainError maps known business errors to HTTP statuses; it
// reports false for errors that should be treated as server faults.
func statusForDomainError(err error) (int, bool) {
	switch err {
	case student.ErrNotFound, faculty.ErrNotFound,
		club.ErrNotFound, club.ErrMemberNotFound, club.ErrRoleNotFound,
		event.ErrNotFound, event.ErrRegistrationNotFound,
		attendance.ErrNotFound, attendance.ErrNoReport:
		return http.StatusNotFound, true

	case event.ErrAlreadyRegistered, club.ErrAlreadyMember, club.ErrLoginIDExists,
		core.ErrConcurrentModification:
		return http.StatusConflict, true

	case event.ErrNotEligible:
		return http.StatusForbidden, true

	case event.ErrEventFull, event.ErrRegistrationLimit, event.ErrRegistrationClosed,
		event.ErrInvalidTransition, attendance.ErrEventNotOngoing, attendance.ErrNotRegistered,
		club.ErrLoginIDRequired:
		return http.StatusBadRequest, true

	case assistant.ErrDisabled:
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows
// how to handle our errors. signalShutdown is called in order to gracefully
// shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(deps ServerDeps, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(deps.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := statusForDomainError(origErr); ok {
				code = status
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logArgs := []interface{}{errors.Wrap(err, msg)}
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				logArgs = append(logArgs, claims.Kind+":"+claims.Subject)
			}
			deps.Logger.Error(msg, logArgs...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
