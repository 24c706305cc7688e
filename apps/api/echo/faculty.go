package echoapi

import (
	"net/http"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core/faculty"
)

var errFacNotFoundInCtx = errors.New("faculty object not found in echo.Context")

type facultyApi struct {
	auth       *auth
	svc        faculty.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerFacultyAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, deps ServerDeps) {
	api := facultyApi{
		auth:       a,
		svc:        deps.FacultySvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	fg := g.Group("/faculty")

	// un-authed endpoints
	fg.POST("/login", api.login)

	// authed endpoints; faculty accounts are provisioned by the admin CLI
	// and manage each other.
	ag := fg.Group("", jwt, requireKind(KindFaculty))
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.DELETE("", api.destroyMultiple)

	dg := ag.Group("/:id", ctxFacultyMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *facultyApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticateFaculty(ctx.Request().Context(), api.auth, api.svc, data.Login, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.auth, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *facultyApi) create(ctx echo.Context) error {
	var data faculty.NewFaculty
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFaculty")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	fac, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating faculty")
	}
	return ctx.JSON(http.StatusCreated, fac)
}

func (api *facultyApi) query(ctx echo.Context) error {
	filter := new(faculty.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []faculty.Faculty{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	members, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying faculty")
	}
	if members == nil {
		members = []faculty.Faculty{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *facultyApi) retrieve(ctx echo.Context) error {
	fac, ok := ctx.Get("object").(faculty.Faculty)
	if !ok {
		return errors.Wrap(errFacNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, fac)
}

func (api *facultyApi) update(ctx echo.Context) error {
	fac, ok := ctx.Get("object").(faculty.Faculty)
	if !ok {
		return errors.Wrap(errFacNotFoundInCtx, "retrieving object from context")
	}

	var data faculty.UpdateFaculty
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFaculty")
	}
	if err := data.Validate(fac, api.validate, api.svc); err != nil {
		return err
	}

	fac, err := api.svc.Update(ctx.Request().Context(), fac.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating faculty")
	}
	return ctx.JSON(http.StatusOK, fac)
}

func (api *facultyApi) destroy(ctx echo.Context) error {
	fac, ok := ctx.Get("object").(faculty.Faculty)
	if !ok {
		return errors.Wrap(errFacNotFoundInCtx, "retrieving object from context")
	}

	// ctxFaculty cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if fac.ID == claims.Subject {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), fac.ID); err != nil {
		return errors.Wrap(err, "deleting faculty")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *facultyApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxFaculty cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, claims.Subject); i < len(query.IDs) {
		if match := query.IDs[i]; claims.Subject == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting faculty")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func ctxFacultyMiddleware(svc faculty.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if fac, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
				ctx.Set("object", fac)
				return next(ctx)
			} else if errors.Cause(err) != faculty.ErrNotFound {
				return errors.Wrap(err, "finding faculty by ID")
			}
			return errHttpNotFound
		}
	}
}
