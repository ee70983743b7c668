package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core/auth"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/services/spreadsheet"
)

var writeRoster = spreadsheet.WriteRoster // mockable

type gradeApi struct {
	svc      *grade.Service
	validate *validator.Validate
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *grade.Service, validate *validator.Validate) {
	api := gradeApi{svc: svc, validate: validate}
	staff := staffMiddleware()

	g.GET("/classes/:id/grades", api.classRoster, jwt, staff)
	g.GET("/classes/:id/grades/export", api.classRosterExport, jwt, staff)
	g.PUT("/term-grades/:id", api.termGradeUpdate, jwt, staff)

	students := g.Group("/students", jwt)
	students.GET("/me/grades", api.myRecord, roleMiddleware(auth.RoleStudent))
	students.GET("/:id/grades", api.studentRecord, staff)
	students.POST("/:id/grades/import", api.gradesImport, selfOrStaffMiddleware("id"))
}

func (api gradeApi) classRoster(ctx echo.Context) error {
	records, err := api.svc.ClassRoster(
		ctx.Request().Context(),
		ctx.Param("id"),
		bindOrderings(ctx, grade.RosterOrderings...)...,
	)
	if err != nil {
		return errors.Wrap(err, "querying class roster")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api gradeApi) classRosterExport(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	classID := ctx.Param("id")
	records, err := api.svc.ClassRoster(rctx, classID, bindOrderings(ctx, grade.RosterOrderings...)...)
	if err != nil {
		return errors.Wrap(err, "querying class roster")
	}
	subjects, err := api.svc.QuerySubjects(rctx)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}

	var buf bytes.Buffer
	if err = writeRoster(&buf, subjects, records); err != nil {
		return errors.Wrap(err, "exporting class roster")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "grades-"+classID+".xlsx"))
	return ctx.Blob(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}

func (api gradeApi) myRecord(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.record(ctx, claims.Subject)
}

func (api gradeApi) studentRecord(ctx echo.Context) error {
	return api.record(ctx, ctx.Param("id"))
}

func (api gradeApi) record(ctx echo.Context, studentID string) error {
	rec, err := api.svc.StudentRecord(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "finding student record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// gradesImport writes a batch of term grades for one student and returns the refreshed record.
func (api gradeApi) gradesImport(ctx echo.Context) error {
	var data grade.Import
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to grade.Import")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.ImportGrades(ctx.Request().Context(), ctx.Param("id"), data); err != nil {
		return errors.Wrap(err, "importing grades")
	}
	return api.record(ctx, ctx.Param("id"))
}

func (api gradeApi) termGradeUpdate(ctx echo.Context) error {
	var data grade.UpdateTermGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to grade.UpdateTermGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	tg, err := api.svc.UpdateTermGrade(ctx.Request().Context(), ctx.Param("id"), data.GradeOfSubject)
	if err != nil {
		return errors.Wrap(err, "updating term grade")
	}
	return ctx.JSON(http.StatusOK, tg)
}
