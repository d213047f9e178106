package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/payment"
)

type paymentApi struct {
	auth *authenticator
	svc  *payment.Service
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc *payment.Service) {
	api := paymentApi{auth: auth, svc: svc}

	// authed endpoints
	g.GET("/payments", api.query, jwt)
}

// Handlers

func (api *paymentApi) query(ctx echo.Context) error {
	sess := api.auth.getContextSession(ctx)
	payments, err := api.svc.QueryForUser(ctx.Request().Context(), sess.UserID)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, payments)
}
