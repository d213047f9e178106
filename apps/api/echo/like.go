package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/like"
)

type likeApi struct {
	auth *authenticator
	svc  *like.Service
}

type LikeResponse struct {
	Liked bool `json:"liked"`
}

func registerLikeAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc *like.Service) {
	api := likeApi{auth: auth, svc: svc}

	// authed endpoints
	lg := g.Group("/courses/:id/like")
	lg.GET("", api.retrieve, jwt)
	lg.POST("", api.create, jwt)
	lg.DELETE("", api.destroy, jwt)
	lg.GET("/stream", api.stream, jwt)
}

// Handlers

func (api *likeApi) retrieve(ctx echo.Context) error {
	sess := api.auth.getContextSession(ctx)
	liked, err := api.svc.IsLiked(ctx.Request().Context(), sess, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting like")
	}
	return ctx.JSON(http.StatusOK, LikeResponse{Liked: liked})
}

func (api *likeApi) create(ctx echo.Context) error {
	sess := api.auth.getContextSession(ctx)
	if err := api.svc.Like(ctx.Request().Context(), sess, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, LikeResponse{Liked: true})
}

func (api *likeApi) destroy(ctx echo.Context) error {
	sess := api.auth.getContextSession(ctx)
	if err := api.svc.Unlike(ctx.Request().Context(), sess, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LikeResponse{Liked: false})
}

func (api *likeApi) stream(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sub, err := api.svc.WatchLiked(reqCtx, api.auth.getContextSession(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "watching like")
	}
	defer sub.Close()

	w := newSSEWriter(ctx)
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case liked, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err = w.send(LikeResponse{Liked: liked}); err != nil {
				return nil // client gone
			}
		}
	}
}
