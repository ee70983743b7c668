package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core/auth"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
)

type catalogApi struct {
	terms    *term.Service
	grades   *grade.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, terms *term.Service, grades *grade.Service, validate *validator.Validate) {
	api := catalogApi{terms: terms, grades: grades, validate: validate}
	admin := roleMiddleware(auth.RoleAdmin)

	g.GET("/terms", api.termQuery, jwt)
	g.POST("/terms", api.termCreate, jwt, admin)
	g.GET("/subjects", api.subjectQuery, jwt)
	g.POST("/subjects", api.subjectCreate, jwt, admin)
	g.POST("/students", api.studentCreate, jwt, admin)
}

func (api catalogApi) termQuery(ctx echo.Context) error {
	terms, err := api.terms.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	return ctx.JSON(http.StatusOK, terms)
}

func (api catalogApi) termCreate(ctx echo.Context) error {
	var data term.NewTerm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTerm")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	t, err := api.terms.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating term")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api catalogApi) subjectQuery(ctx echo.Context) error {
	subjects, err := api.grades.QuerySubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api catalogApi) subjectCreate(ctx echo.Context) error {
	var data grade.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sub, err := api.grades.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api catalogApi) studentCreate(ctx echo.Context) error {
	var data grade.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	st, err := api.grades.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}
