package echoapi

import (
	"net/http"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/fpkuniversity/scorm-runtime/core"
	"github.com/fpkuniversity/scorm-runtime/core/scorm"
)

const serverErrorDetails = "SCORM Runtime API error"

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "learner not authenticated")
	errSCONotFound  = echo.NewHTTPError(http.StatusNotFound, scorm.ErrSCONotFound.Error())
)

// httpError maps runtime errors to their HTTP counterparts.
func httpError(err error) (*echo.HTTPError, bool) {
	switch cause := errors.Cause(err); cause {
	case scorm.ErrSCONotFound:
		return errSCONotFound, true
	case scorm.ErrSessionInactive, scorm.ErrSessionNotInitialized, scorm.ErrSCONotLaunchable:
		return echo.NewHTTPError(http.StatusBadRequest, cause.Error()), true
	case scorm.ErrAccessDenied:
		return echo.NewHTTPError(http.StatusForbidden, cause.Error()), true
	case scorm.ErrPackageNotReady:
		return echo.NewHTTPError(http.StatusServiceUnavailable, cause.Error()), true
	case scorm.ErrRateLimited, scorm.ErrSetValueRateLimited, scorm.ErrCommitRateLimited:
		return echo.NewHTTPError(http.StatusTooManyRequests, cause.Error()), true
	}
	return nil, false
}

func validationMessage(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fields[name])
	}
	return strings.Join(msgs, "; ")
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var body echo.Map

		if herr, ok := httpError(err); ok {
			err = herr
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				body = echo.Map{"error": origErr.Message}
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			body = echo.Map{"error": origErr.Message}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			body = echo.Map{"error": validationMessage(fldErrs), "fields": fldErrs}
		case *core.ValidationError:
			code = http.StatusBadRequest
			body = echo.Map{"error": origErr.Error()}
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				body["fields"] = fldErrs
			}
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := errors.Cause(err).Error()
			if ctx.Echo().Debug {
				msg = err.Error()
			}
			body = echo.Map{"error": msg, "details": serverErrorDetails}

			args := []interface{}{err, echo.Map{"path": ctx.Path(), "method": ctx.Request().Method}}
			if learner, lErr := getContextLearner(ctx); lErr == nil {
				args = append(args, learner)
			}
			logger.Error(serverErrorDetails, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
