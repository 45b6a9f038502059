package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
	"github.com/trezcool/masomo-onboarding/core/user"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if c, ok := domainErrorCode(cause); ok {
			code = c
			message = cause.Error()
		} else {
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
			case *approval.ProvisioningError:
				// the reviewer needs to know which step failed in order to retry
				code = http.StatusInternalServerError
				message = origErr.Error()
				logger.Error(origErr.Error(), err, contextProfile(ctx))
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), contextProfile(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
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

// domainErrorCode returns the status code of errors whose message can be returned as is.
func domainErrorCode(err error) (int, bool) {
	switch err {
	case approval.ErrUnauthenticated:
		return http.StatusUnauthorized, true
	case approval.ErrForbidden, user.ErrAccountDeactivated:
		return http.StatusForbidden, true
	case approval.ErrNotFound, onboarding.ErrNotFound, user.ErrNotFound:
		return http.StatusNotFound, true
	case approval.ErrRequestRejected, approval.ErrRequestApproved, approval.ErrApprovalInProgress, onboarding.ErrNotPending:
		return http.StatusConflict, true
	case user.ErrInvalidCredentials:
		return http.StatusBadRequest, true
	}
	return 0, false
}

// contextProfile returns what is known of the signed in user, for error reports.
func contextProfile(ctx echo.Context) user.Profile {
	if profile, ok := ctx.Get(contextProfileKey).(user.Profile); ok {
		return profile
	}
	var profile user.Profile
	if claims, err := getContextClaims(ctx); err == nil {
		profile.IdentityID = claims.Subject
		profile.Email = claims.Email
		profile.Role = claims.Role
		profile.TenantID = claims.TenantID
	}
	return profile
}
