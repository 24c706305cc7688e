package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
)

type attendanceApi struct {
	svc        attendance.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{
		svc:        deps.AttendanceSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	ag := g.Group("/events/:id", jwt, ctxEventMiddleware(deps.EventSvc))
	ag.POST("/attendance", api.mark, eventManagementMiddleware(club.PermMarkAttendance))
	ag.GET("/attendance", api.records, requireKind(KindFaculty, KindMember))
	ag.GET("/attendance/summary", api.summary, requireKind(KindFaculty, KindMember))
	ag.POST("/complete", api.complete, eventManagementMiddleware(club.PermEndEvents))
	ag.GET("/report", api.latestReport, reportAccessMiddleware())
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.Mark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Mark")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.Mark(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) records(ctx echo.Context) error {
	recs, err := api.svc.Records(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying attendance records")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	sum, err := api.svc.GetSummary(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *attendanceApi) complete(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	evt, rpt, err := api.svc.CompleteEvent(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "completing event")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"event": evt, "report": rpt})
}

func (api *attendanceApi) latestReport(ctx echo.Context) error {
	rpt, err := api.svc.LatestReport(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding latest report")
	}
	return ctx.JSON(http.StatusOK, rpt)
}

// reportAccessMiddleware admits faculty, and club members holding the
// view-reports permission for the event's club.
func reportAccessMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Kind == KindFaculty {
				return next(ctx)
			}
			evt, ok := ctx.Get("object").(event.Event)
			if !ok {
				return errors.Wrap(errEvtNotFoundInCtx, "retrieving object from context")
			}
			if claims.Kind == KindMember && claims.ClubID == evt.ClubID && claims.HasPermission(club.PermViewReports) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
