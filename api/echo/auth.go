package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/redland-cl/registro-escolar/core"
	"github.com/redland-cl/registro-escolar/core/user"
)

const (
	tokenContextKey = "userToken"
	userContextKey  = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the user's email; the token is deliberately long-lived
// (sessions are effectively permanent, there is no refresh flow).
type Claims struct {
	jwt.StandardClaims
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	IsEditor bool   `json:"is_editor,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

func GetUserClaims(conf *core.Config, usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.Email,
			ExpiresAt: now.Add(conf.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:    usr.Email,
		Role:     usr.Role,
		IsEditor: usr.IsEditor(),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
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

// getContextUser resolves the token subject against the directory: a valid
// token whose user has since been removed is still unauthorized.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := svc.GetByEmail(claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	ctx.Set(userContextKey, usr)
	return usr, nil
}

// directoryMiddleware only lets requests from current directory members through.
func directoryMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextUser(ctx, svc); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// editorMiddleware enforces the editor role on every mutation.
func editorMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			if !usr.IsEditor() {
				return errEditorRequired
			}
			return next(ctx)
		}
	}
}
