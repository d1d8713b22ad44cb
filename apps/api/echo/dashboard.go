package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spimentel1201/EduMF-sub001/core/dashboard"
	"github.com/spimentel1201/EduMF-sub001/core/user"
)

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *dashboard.Service) {
	api := dashboardApi{svc: svc}

	dg := g.Group("/dashboard", jwt, roleMiddleware(user.RoleAdmin, user.RoleTeacher))
	dg.GET("/stats", api.stats)
}

func (api *dashboardApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return respond(ctx, http.StatusOK, stats)
}
