package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// The JWT ID is the key of the login Session.
type Claims struct {
	jwt.StandardClaims
	Name string    `json:"name,omitempty"`
	Role user.Role `json:"role,omitempty"`
}

func GetUserClaims(conf *core.Config, usr user.User, sess user.Session) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.Key,
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name: usr.Name,
		Role: usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type authenticator struct {
	conf      *core.Config
	usrSvc    user.Service
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config, usrSvc user.Service) *authenticator {
	return &authenticator{
		conf:   conf,
		usrSvc: usrSvc,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (a *authenticator) login(ctx echo.Context, uname, pwd string) (LoginResponse, error) {
	usr, sess, err := a.usrSvc.Authenticate(ctx.Request().Context(), uname, pwd)
	if err != nil {
		return LoginResponse{}, err
	}
	token, err := GenerateToken(a.conf, GetUserClaims(a.conf, usr, sess))
	if err != nil {
		a.usrSvc.Logout(sess.Key)
		return LoginResponse{}, errors.Wrap(err, "generating token")
	}
	return LoginResponse{Token: token, User: usr}, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// sessionMiddleware rejects tokens whose Session is gone and loads the acting User.
func (a *authenticator) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		sess, err := a.usrSvc.GetSession(claims.Id)
		if err != nil || sess.UserID != claims.Subject {
			return errSessionExpired
		}

		usr, err := a.usrSvc.GetByID(ctx.Request().Context(), sess.UserID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				a.usrSvc.Logout(sess.Key)
				return errSessionExpired
			}
			return errors.Wrap(err, "finding session user")
		}
		if !usr.IsActive {
			a.usrSvc.Logout(sess.Key)
			return errAccountDeactivated
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
