package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core/assistant"
)

type assistantApi struct {
	svc      assistant.Service
	validate *validator.Validate
}

func registerAssistantAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := assistantApi{
		svc:      deps.AssistantSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/assistant", jwt)
	ag.GET("/advice", api.advise, requireKind(KindStudent))
	ag.GET("/recommendations", api.recommendEvents, requireKind(KindStudent))
	ag.POST("/ask", api.ask, requireKind(KindStudent))
	ag.GET("/event-ideas", api.suggestEventIdeas, requireKind(KindMember))
	ag.GET("/club-performance", api.analyzeClubPerformance, requireKind(KindFaculty))
}

// Handlers

func (api *assistantApi) advise(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	answer, err := api.svc.AdviseStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "advising student")
	}
	return ctx.JSON(http.StatusOK, AnswerResponse{Answer: answer})
}

func (api *assistantApi) recommendEvents(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	answer, err := api.svc.RecommendEvents(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "recommending events")
	}
	return ctx.JSON(http.StatusOK, AnswerResponse{Answer: answer})
}

func (api *assistantApi) ask(ctx echo.Context) error {
	var data QuestionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuestionRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	answer, err := api.svc.AskAsStudent(ctx.Request().Context(), claims.Subject, data.Question)
	if err != nil {
		return errors.Wrap(err, "answering question")
	}
	return ctx.JSON(http.StatusOK, AnswerResponse{Answer: answer})
}

func (api *assistantApi) suggestEventIdeas(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	answer, err := api.svc.SuggestEventIdeas(ctx.Request().Context(), claims.ClubID)
	if err != nil {
		return errors.Wrap(err, "suggesting event ideas")
	}
	return ctx.JSON(http.StatusOK, AnswerResponse{Answer: answer})
}

func (api *assistantApi) analyzeClubPerformance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	answer, err := api.svc.AnalyzeClubPerformance(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "analyzing club performance")
	}
	return ctx.JSON(http.StatusOK, AnswerResponse{Answer: answer})
}

type AnswerResponse struct {
	Answer string `json:"answer"`
}
