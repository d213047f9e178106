package echoapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/student"
)

const (
	oauthCookieName = "academia_oauth"
	oauthStateKey   = "state"
)

type authApi struct {
	auth     *authenticator
	cookies  sessions.Store
	provider identity.Provider
	svc      *student.Service
}

type SignInResponse struct {
	Token   string          `json:"token"`
	Student student.Student `json:"student"`
}

func registerAuthAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	cookies sessions.Store,
	provider identity.Provider,
	svc *student.Service,
) {
	api := authApi{auth: auth, cookies: cookies, provider: provider, svc: svc}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.GET("/google/login", api.login)
	ag.GET("/google/callback", api.callback)

	// authed endpoints
	ag.GET("/me", api.me, jwt)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

// Handlers

// login redirects to the provider's consent page. The state is kept in a signed cookie until the callback.
func (api *authApi) login(ctx echo.Context) error {
	sess, _ := api.cookies.Get(ctx.Request(), oauthCookieName) // a new session is returned on decoding errors
	state := uuid.NewString()
	sess.Values[oauthStateKey] = state
	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   10 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if err := sess.Save(ctx.Request(), ctx.Response()); err != nil {
		return errors.Wrap(err, "saving oauth state")
	}
	return ctx.Redirect(http.StatusTemporaryRedirect, api.provider.AuthCodeURL(state))
}

func (api *authApi) callback(ctx echo.Context) error {
	sess, _ := api.cookies.Get(ctx.Request(), oauthCookieName)
	want, _ := sess.Values[oauthStateKey].(string)
	if want == "" || ctx.QueryParam("state") != want {
		return errInvalidState
	}

	// the state is single use
	sess.Options = &sessions.Options{Path: "/", MaxAge: -1}
	if err := sess.Save(ctx.Request(), ctx.Response()); err != nil {
		return errors.Wrap(err, "clearing oauth state")
	}

	reqCtx := ctx.Request().Context()
	id, err := api.provider.Exchange(reqCtx, ctx.QueryParam("code"))
	if err != nil {
		return errors.Wrap(err, "exchanging code")
	}
	st, err := api.svc.SignIn(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "signing in")
	}

	token, err := api.auth.GenerateToken(api.auth.studentClaims(st))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, SignInResponse{Token: token, Student: st})
}

func (api *authApi) me(ctx echo.Context) error {
	sess := api.auth.getContextSession(ctx)
	st, err := api.svc.GetByID(ctx.Request().Context(), sess.UserID)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}
