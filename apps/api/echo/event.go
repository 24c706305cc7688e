package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
)

var errEvtNotFoundInCtx = errors.New("event object not found in echo.Context")

type eventApi struct {
	svc        event.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerEventAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := eventApi{
		svc:        deps.EventSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	eg := g.Group("/events", jwt)
	eg.POST("", api.create, requirePermission(club.PermCreateEvents))
	eg.GET("", api.query)

	dg := eg.Group("/:id", ctxEventMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, eventManagementMiddleware(club.PermEditEvents))
	dg.DELETE("", api.destroy, eventManagementMiddleware(club.PermDeleteEvents))
	dg.POST("/start", api.start, eventManagementMiddleware(club.PermStartEvents))
	dg.POST("/cancel", api.cancel, eventManagementMiddleware(club.PermEndEvents))
	dg.GET("/history", api.editHistory, requireKind(KindFaculty, KindMember))

	// registration endpoints; students register themselves
	dg.POST("/register", api.register, requireKind(KindStudent))
	dg.POST("/cancel-registration", api.cancelRegistration, requireKind(KindStudent))
	dg.GET("/registrations", api.registrations, requireKind(KindFaculty, KindMember))
}

// Handlers

func (api *eventApi) create(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	evt, err := api.svc.Create(ctx.Request().Context(), claims.ClubID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *eventApi) query(ctx echo.Context) error {
	filter := new(event.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []event.Event{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	events, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	if events == nil {
		events = []event.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *eventApi) retrieve(ctx echo.Context) error {
	evt, ok := ctx.Get("object").(event.Event)
	if !ok {
		return errors.Wrap(errEvtNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) update(ctx echo.Context) error {
	evt, ok := ctx.Get("object").(event.Event)
	if !ok {
		return errors.Wrap(errEvtNotFoundInCtx, "retrieving object from context")
	}

	var data event.UpdateEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEvent")
	}
	if err := data.Validate(evt, api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	evt, err = api.svc.Update(ctx.Request().Context(), evt.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) destroy(ctx echo.Context) error {
	evt, ok := ctx.Get("object").(event.Event)
	if !ok {
		return errors.Wrap(errEvtNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), evt.ID); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *eventApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	evt, err := api.svc.Start(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "starting event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) cancel(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	evt, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "cancelling event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *eventApi) editHistory(ctx echo.Context) error {
	entries, err := api.svc.EditHistory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying edit history")
	}
	if entries == nil {
		entries = []event.EditHistoryEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *eventApi) register(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reg, err := api.svc.Register(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "registering for event")
	}
	return ctx.JSON(http.StatusCreated, reg)
}

func (api *eventApi) cancelRegistration(ctx echo.Context) error {
	var data event.CancelRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CancelRegistration")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reg, err := api.svc.CancelRegistration(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data.Reason)
	if err != nil {
		return errors.Wrap(err, "cancelling registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *eventApi) registrations(ctx echo.Context) error {
	regs, err := api.svc.Registrations(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying registrations")
	}
	if regs == nil {
		regs = []event.Registration{}
	}
	return ctx.JSON(http.StatusOK, regs)
}

func ctxEventMiddleware(svc event.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if evt, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
				ctx.Set("object", evt)
				return next(ctx)
			} else if errors.Cause(err) != event.ErrNotFound {
				return errors.Wrap(err, "finding event by ID")
			}
			return errHttpNotFound
		}
	}
}

// eventManagementMiddleware only admits members of the event's own club
// holding the named permission. It must run after ctxEventMiddleware.
func eventManagementMiddleware(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			evt, ok := ctx.Get("object").(event.Event)
			if !ok {
				return errors.Wrap(errEvtNotFoundInCtx, "retrieving object from context")
			}
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Kind == KindMember && claims.ClubID == evt.ClubID && claims.HasPermission(perm) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
