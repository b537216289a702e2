package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/goliatone/go-account/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/samber/oops"
)

const (
	tokenContextKey = "account_token"
	userContextKey  = "account_user"
)

// RegisterAuthRoutes mounts the token and user endpoints on app. The
// /users/me routes resolve the bearer token with the controller's
// Authenticator before the handler runs.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	bearer := jwtware.New(jwtware.Config{
		ContextKey: tokenContextKey,
		SubjectKey: userContextKey,
		TokenValidator: jwtware.TokenValidatorFunc(func(ctx context.Context, token string) (any, error) {
			return controller.Auther.Resolve(ctx, token)
		}),
		ErrorHandler: func(c router.Context, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				err = unauthorized(err)
			}
			return controller.ErrorHandler(c, err)
		},
	})

	app.Post(controller.Routes.Token, controller.TokenPost).SetName("token.post")
	app.Post(controller.Routes.Users, controller.UserCreate).SetName("users.post")
	app.Get(controller.Routes.Me, controller.ProfileShow, bearer).SetName("users.me.get")
	app.Patch(controller.Routes.Me, controller.ProfileUpdate, bearer).SetName("users.me.patch")
	app.Delete(controller.Routes.Me, controller.ProfileRemove, bearer).SetName("users.me.delete")

	return controller
}

type AuthControllerRoutes struct {
	Token string
	Users string
	Me    string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Auther       Authenticator
	Users        *UserService
	Routes       *AuthControllerRoutes
	ErrorHandler ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuthenticator sets the Authenticator serving POST /token
func WithAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithUserService sets the service serving the /users routes
func WithUserService(users *UserService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Users = users
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		c.ErrorHandler = RouteErrorHandler(c.Logger)
		return c
	}
}

// WithDebug logs request payloads, with passwords redacted
func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithErrorHandler(handler ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Token: "/token",
			Users: "/users",
			Me:    "/users/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Users == nil {
		panic("Missing UserService in auth controller...")
	}

	return c
}

// TokenPost handles both grant types. The TokenPair is returned bare,
// not wrapped in a Response.
func (a *AuthController) TokenPost(ctx router.Context) error {
	payload := new(TokenRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("token request parse payload: %v", err)
		return a.ErrorHandler(ctx, invalidGrant(err))
	}

	if a.Debug {
		a.debugPayload("TOKEN", redactTokenRequest(*payload))
	}

	pair, err := a.Auther.Grant(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (a *AuthController) UserCreate(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("register user parse payload: %v", err)
		return a.ErrorHandler(ctx, malformedBody(err))
	}

	if a.Debug {
		redacted := *payload
		redacted.Password = redact(redacted.Password)
		a.debugPayload("REGISTER", redacted)
	}

	if _, err := a.Users.Register(ctx.Context(), *payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, Response{
		Success: true,
		Detail:  "New user created",
	})
}

func (a *AuthController) ProfileShow(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, Response{
		Success: true,
		Payload: user.Profile(),
	})
}

func (a *AuthController) ProfileUpdate(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ProfileUpdate)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("update profile parse payload: %v", err)
		return a.ErrorHandler(ctx, malformedBody(err))
	}

	if a.Debug {
		redacted := *payload
		if redacted.Password != nil {
			masked := redact(*redacted.Password)
			redacted.Password = &masked
		}
		a.debugPayload("UPDATE PROFILE", redacted)
	}

	profile, err := a.Users.UpdateUser(ctx.Context(), user, *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, Response{
		Success: true,
		Payload: profile,
	})
}

func (a *AuthController) ProfileRemove(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Users.RemoveUser(ctx.Context(), user); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, Response{
		Success: true,
		Detail:  "Removed user successfully",
	})
}

// currentUser returns the user the bearer middleware resolved
func currentUser(ctx router.Context) (*User, error) {
	subject, _ := jwtware.SubjectFromContext(ctx, userContextKey)
	user, ok := subject.(*User)
	if !ok || user == nil {
		return nil, unauthorized(errors.New("no resolved user in request"))
	}
	return user, nil
}

func (a *AuthController) debugPayload(label string, payload any) {
	a.Logger.Debug("======= %s ======\n%s", label, print.MaybePrettyJSON(payload))
}

func redactTokenRequest(req TokenRequest) TokenRequest {
	if req.User != nil {
		user := *req.User
		user.Password = redact(user.Password)
		req.User = &user
	}
	if req.RefreshToken != "" {
		req.RefreshToken = redact(req.RefreshToken)
	}
	return req
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}

func malformedBody(err error) error {
	return oops.In("account").
		Code(CodeValidation).
		With("reason", err.Error()).
		Wrap(errors.New("request body must be a valid JSON object"))
}
