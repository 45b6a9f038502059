package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/user"
)

const (
	tokenContextKey   = "userToken"
	contextProfileKey = "profile"
	tokenAudience     = "Masomo"
)

// newJWTConfig returns the JWT auth middleware config.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the ID of the signed in Identity.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt       int64  `json:"oriat,omitempty"`
	Email              string `json:"email,omitempty"`
	Role               string `json:"role,omitempty"`
	TenantID           string `json:"tenant_id,omitempty"`
	MustChangePassword bool   `json:"must_change_password,omitempty"`
}

func NewClaims(conf *core.Config, identity user.Identity, profile user.Profile, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   identity.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:       oriat,
		Email:              identity.Email,
		Role:               profile.Role,
		TenantID:           profile.TenantID,
		MustChangePassword: identity.MustChangePassword,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextCaller returns the signed in Caller; it is zero when no valid token was provided.
func contextCaller(ctx echo.Context) approval.Caller {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return approval.Caller{}
	}
	return approval.Caller{IdentityID: claims.Subject, Email: claims.Email}
}

func refreshToken(ctx echo.Context, conf *core.Config, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	rctx := ctx.Request().Context()
	identity, err := svc.GetIdentityByID(rctx, claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", errUnauthorized
		}
		return "", errors.Wrap(err, "finding identity by ID")
	}

	// check if user is still active
	profile, err := svc.GetProfileByIdentityID(rctx, identity.ID)
	if err != nil {
		if errors.Cause(err) == user.ErrProfileNotFound {
			return "", user.ErrAccountDeactivated
		}
		return "", errors.Wrap(err, "finding profile")
	}
	if !profile.IsActive {
		return "", user.ErrAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(conf, NewClaims(conf, identity, profile, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
