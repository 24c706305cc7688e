package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core/club"
)

var errClubNotFoundInCtx = errors.New("club object not found in echo.Context")

type clubApi struct {
	auth       *auth
	svc        club.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerClubAPI(g *echo.Group, jwt echo.MiddlewareFunc, a *auth, deps ServerDeps) {
	api := clubApi{
		auth:       a,
		svc:        deps.ClubSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	cg := g.Group("/clubs")

	// un-authed endpoints; operational members log in with club credentials
	cg.POST("/login", api.login)

	// authed endpoints
	ag := cg.Group("", jwt)
	ag.POST("", api.create, requireKind(KindFaculty))
	ag.GET("", api.query)
	ag.GET("/roles", api.queryRoles)

	dg := ag.Group("/:id", ctxClubMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, requireKind(KindFaculty))
	dg.DELETE("", api.destroy, requireKind(KindFaculty))

	// membership endpoints; faculty supervise, members with the right
	// role manage their own club
	dg.GET("/members", api.members, requireKind(KindFaculty, KindMember))
	dg.POST("/members", api.addMember, clubManagementMiddleware(club.PermAddMembers))
	dg.DELETE("/members/:memberID", api.removeMember, clubManagementMiddleware(club.PermRemoveMembers))
}

// Handlers

func (api *clubApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticateMember(ctx.Request().Context(), api.auth, api.svc, data.Login, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.auth, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *clubApi) create(ctx echo.Context) error {
	var data club.NewClub
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClub")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	cl, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating club")
	}
	return ctx.JSON(http.StatusCreated, cl)
}

func (api *clubApi) query(ctx echo.Context) error {
	filter := new(club.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []club.Club{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	clubs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying clubs")
	}
	if clubs == nil {
		clubs = []club.Club{}
	}
	return ctx.JSON(http.StatusOK, clubs)
}

func (api *clubApi) queryRoles(ctx echo.Context) error {
	roles, err := api.svc.Roles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *clubApi) retrieve(ctx echo.Context) error {
	cl, ok := ctx.Get("object").(club.Club)
	if !ok {
		return errors.Wrap(errClubNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, cl)
}

func (api *clubApi) update(ctx echo.Context) error {
	cl, ok := ctx.Get("object").(club.Club)
	if !ok {
		return errors.Wrap(errClubNotFoundInCtx, "retrieving object from context")
	}

	var data club.UpdateClub
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClub")
	}
	if err := data.Validate(cl, api.validate, api.svc); err != nil {
		return err
	}

	cl, err := api.svc.Update(ctx.Request().Context(), cl.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating club")
	}
	return ctx.JSON(http.StatusOK, cl)
}

func (api *clubApi) destroy(ctx echo.Context) error {
	cl, ok := ctx.Get("object").(club.Club)
	if !ok {
		return errors.Wrap(errClubNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), cl.ID); err != nil {
		return errors.Wrap(err, "deleting club")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *clubApi) members(ctx echo.Context) error {
	members, err := api.svc.Members(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying club members")
	}
	if members == nil {
		members = []club.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *clubApi) addMember(ctx echo.Context) error {
	var data club.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mbr, err := api.svc.AddMember(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding club member")
	}
	return ctx.JSON(http.StatusCreated, mbr)
}

func (api *clubApi) removeMember(ctx echo.Context) error {
	if err := api.svc.RemoveMember(ctx.Request().Context(), ctx.Param("id"), ctx.Param("memberID")); err != nil {
		return errors.Wrap(err, "removing club member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func ctxClubMiddleware(svc club.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if cl, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
				ctx.Set("object", cl)
				return next(ctx)
			} else if errors.Cause(err) != club.ErrNotFound {
				return errors.Wrap(err, "finding club by ID")
			}
			return errHttpNotFound
		}
	}
}

// clubManagementMiddleware admits faculty, and members of the addressed
// club holding the named permission.
func clubManagementMiddleware(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Kind == KindFaculty {
				return next(ctx)
			}
			if claims.Kind == KindMember && claims.ClubID == ctx.Param("id") && claims.HasPermission(perm) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
