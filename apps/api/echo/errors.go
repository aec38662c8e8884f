package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/grade"
	"github.com/trezcool/shule/core/record"
	"github.com/trezcool/shule/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionExpired     = echo.NewHTTPError(http.StatusUnauthorized, user.ErrSessionNotFound.Error())
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, user.ErrAccountDeactivated.Error())
	errHTTPForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHTTPNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainErrorCodes maps the errors of the services to their HTTP status.
var domainErrorCodes = map[error]int{
	user.ErrAuthenticationFailed: http.StatusBadRequest,
	user.ErrAccountLocked:        http.StatusForbidden,
	user.ErrAccountDeactivated:   http.StatusForbidden,
	user.ErrNotFound:             http.StatusNotFound,
	user.ErrTokenInvalid:         http.StatusBadRequest,
	user.ErrTokenExpired:         http.StatusBadRequest,
	user.ErrSessionNotFound:      http.StatusUnauthorized,
	user.ErrHasGrades:            http.StatusConflict,

	academic.ErrCourseNotFound:   http.StatusNotFound,
	academic.ErrSemesterNotFound: http.StatusNotFound,
	academic.ErrClassNotFound:    http.StatusNotFound,
	academic.ErrCourseInUse:      http.StatusConflict,
	academic.ErrClassHasGrades:   http.StatusConflict,

	grade.ErrNotFound:         http.StatusNotFound,
	grade.ErrGradeLocked:      http.StatusConflict,
	grade.ErrIncomplete:       http.StatusBadRequest,
	grade.ErrAlreadyEnrolled:  http.StatusConflict,
	grade.ErrNotStudent:       http.StatusBadRequest,
	grade.ErrEnrollmentClosed: http.StatusBadRequest,
	grade.ErrClassFull:        http.StatusConflict,

	record.ErrNotStudent: http.StatusBadRequest,
}

// domainErrorCode returns the status mapped to cause in domainErrorCodes.
func domainErrorCode(cause error) (int, bool) {
	for e, code := range domainErrorCodes {
		if e == cause {
			return code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *user.AttemptsError:
			code = http.StatusBadRequest
			message = echo.Map{"error": origErr.Error(), "remaining_attempts": origErr.Remaining}
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
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			if flds := origErr.FieldMap(); flds != nil {
				message = flds
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if c, ok := domainErrorCode(origErr); ok {
				code, message = c, origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if usr, uErr := getContextUser(ctx); uErr == nil {
				args = append(args, usr)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		if m, ok := message.(string); ok {
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
