package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/fpkuniversity/scorm-runtime/core"
)

const (
	tokenContextKey   = "learnerToken"
	learnerContextKey = "learner"
	tokenAudience     = "scorm-runtime"
)

// Claims represents the authorization claims transmitted via a JWT. The subject is the learner ID.
type Claims struct {
	jwt.StandardClaims
	Name string `json:"name,omitempty"`
}

func newJWTConfig(secret string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secret),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// GetLearnerClaims returns the claims of a token issued to learner by conf.AppName.
func GetLearnerClaims(learner core.Learner, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   learner.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name: learner.Name,
	}
}

// GenerateToken generates a signed JWT token string representing the learner Claims.
func GenerateToken(claims *Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
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

// getContextLearner resolves the caller from the verified token.
func getContextLearner(ctx echo.Context) (core.Learner, error) {
	if learner, ok := ctx.Get(learnerContextKey).(core.Learner); ok {
		return learner, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Learner{}, err
	}
	if claims.Subject == "" {
		return core.Learner{}, errUnauthorized
	}
	learner := core.Learner{ID: claims.Subject, Name: claims.Name}
	ctx.Set(learnerContextKey, learner)
	return learner, nil
}
