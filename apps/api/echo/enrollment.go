package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/checkout"
	"github.com/trezcool/academia/core/enrollment"
)

type enrollmentApi struct {
	auth        *authenticator
	svc         *enrollment.Service
	checkoutSvc *checkout.Service
	validate    *validator.Validate
}

func registerEnrollmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc *enrollment.Service,
	checkoutSvc *checkout.Service,
	validate *validator.Validate,
) {
	api := enrollmentApi{auth: auth, svc: svc, checkoutSvc: checkoutSvc, validate: validate}

	// authed endpoints
	g.GET("/courses/:id/enrollment", api.status, jwt)
	g.POST("/courses/:id/checkout", api.checkout, jwt)
	g.GET("/enrollments", api.query, jwt)
	g.GET("/dashboard", api.dashboard, jwt)
}

// Handlers

func (api *enrollmentApi) status(ctx echo.Context) error {
	st, err := api.svc.Status(ctx.Request().Context(), api.auth.getContextSession(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment status")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *enrollmentApi) checkout(ctx echo.Context) error {
	var data CheckoutRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckoutRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rcpt, err := api.checkoutSvc.Checkout(ctx.Request().Context(), api.auth.getContextSession(ctx), ctx.Param("id"), *data.Amount)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rcpt)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	sess := api.auth.getContextSession(ctx)
	enrollments, err := api.svc.QueryForStudent(ctx.Request().Context(), sess.UserID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollmentApi) dashboard(ctx echo.Context) error {
	entries, err := api.svc.Dashboard(ctx.Request().Context(), api.auth.getContextSession(ctx))
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, entries)
}
