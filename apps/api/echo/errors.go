package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/checkout"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/like"
	"github.com/trezcool/academia/core/payment"
	"github.com/trezcool/academia/core/student"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, identity.ErrUnauthenticated.Error())
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errInvalidState   = echo.NewHTTPError(http.StatusBadRequest, "invalid oauth state")

	// statuses of the domain errors
	errStatuses = map[error]int{
		course.ErrNotFound:             http.StatusNotFound,
		student.ErrNotFound:            http.StatusNotFound,
		payment.ErrNotFound:            http.StatusNotFound,
		like.ErrAlreadyLiked:           http.StatusConflict,
		like.ErrNotLiked:               http.StatusConflict,
		checkout.ErrAlreadyEnrolled:    http.StatusConflict,
		checkout.ErrCheckoutInProgress: http.StatusConflict,
		identity.ErrUnauthenticated:    http.StatusUnauthorized,
		identity.ErrExchangeFailed:     http.StatusBadRequest,
		core.ErrUnavailable:            http.StatusServiceUnavailable,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(
	logger core.Logger,
	translator ut.Translator,
	auth *authenticator,
	signalShutdown func(),
) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
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
				fldErrs[vErr.Field()] = vErr.Translate(translator)
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
		case *checkout.EnrollmentError:
			// the student paid: tell them so
			code = http.StatusInternalServerError
			message = echo.Map{"error": origErr.Error(), "payment_id": origErr.PaymentID}
			logger.Error(origErr.Error(), err, auth.getContextSession(ctx))
		default:
			if c, ok := errStatuses[cause]; ok {
				code = c
				message = cause.Error()
				if code == http.StatusServiceUnavailable {
					logger.Warn(err.Error(), err)
				}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), auth.getContextSession(ctx))

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
