package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type courseApi struct {
	svc    *course.Service
	logger core.Logger
}

// registerCourseAPI registers the seed endpoint, outside of /v1 for compatibility with existing clients.
func registerCourseAPI(app *echo.Echo, svc *course.Service, logger core.Logger) {
	api := courseApi{svc: svc, logger: logger}
	app.POST("/add-courses", api.seed)
}

func registerCoursesAPI(g *echo.Group, svc *course.Service) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.GET("/:id/stream", api.stream)
}

// Handlers

func (api *courseApi) seed(ctx echo.Context) error {
	if _, err := api.svc.Seed(ctx.Request().Context()); err != nil {
		api.logger.Error(fmt.Sprintf("seeding courses: %v", err), err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "All courses added successfully!"})
}

func (api *courseApi) query(ctx echo.Context) error {
	courses, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

// stream sends the course every time it changes (eg. its likes), until the client goes away.
func (api *courseApi) stream(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sub, err := api.svc.Watch(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "watching course")
	}
	defer sub.Close()

	w := newSSEWriter(ctx)
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case crs, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err = w.send(crs); err != nil {
				return nil // client gone
			}
		}
	}
}
