package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/gradeedit"
)

type (
	newSessionRequest struct {
		ClassID string `json:"class_id" validate:"omitempty,ident"`
	}

	selectTermRequest struct {
		TermID string `json:"term_id"`
	}

	typeCellRequest struct {
		Value cellValue `json:"value"`
	}

	updateCommittedRequest struct {
		Grade *float64 `json:"grade" validate:"required,grade"`
	}

	submitDeferredRequest struct {
		TermID string   `json:"term_id" validate:"required"`
		Grade  *float64 `json:"grade" validate:"required,grade"`
	}

	commitResponse struct {
		Result  gradeedit.CommitResult `json:"result"`
		Session gradeedit.View         `json:"session"`
	}

	discardResponse struct {
		Notification gradeedit.Notification `json:"notification"`
		Session      gradeedit.View         `json:"session"`
	}
)

type sessionApi struct {
	store    *gradeedit.Store
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *gradeedit.Store, validate *validator.Validate) {
	api := sessionApi{store: store, validate: validate}

	sessions := g.Group("/edit-sessions", jwt)
	sessions.POST("", api.sessionCreate)
	sessions.GET("/:sid", api.sessionRetrieve)
	sessions.DELETE("/:sid", api.sessionDestroy)
	sessions.PUT("/:sid/term", api.termSelect)
	sessions.POST("/:sid/commit", api.commit)
	sessions.POST("/:sid/discard", api.discard)

	cells := sessions.Group("/:sid/cells/:student/:subject")
	cells.PUT("", api.cellType)
	cells.POST("/click", api.cellClick)
	cells.PUT("/committed", api.committedUpdate)
	cells.POST("/deferred", api.deferredSubmit)
}

// session returns the session of the path that belongs to the caller.
func (api sessionApi) session(ctx echo.Context) (*gradeedit.Session, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	sess, err := api.store.Get(ctx.Param("sid"), claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "finding edit session")
	}
	return sess, nil
}

func (api sessionApi) sessionCreate(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data newSessionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to newSessionRequest")
	}
	data.ClassID = core.CleanString(data.ClassID)
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	var scope gradeedit.Scope
	switch {
	case claims.IsStaff():
		if data.ClassID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "this field is required"})
		}
		scope.ClassID = data.ClassID
	case data.ClassID != "":
		return errHttpForbidden
	default:
		scope.StudentID = claims.Subject
	}

	sess, err := api.store.Create(ctx.Request().Context(), claims.Subject, scope)
	if err != nil {
		return errors.Wrap(err, "creating edit session")
	}
	return ctx.JSON(http.StatusCreated, sess.View(sess.Renderer()))
}

func (api sessionApi) sessionRetrieve(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.View(sess.Renderer()))
}

func (api sessionApi) sessionDestroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.store.Delete(ctx.Param("sid"), claims.Subject); err != nil {
		return errors.Wrap(err, "deleting edit session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api sessionApi) termSelect(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data selectTermRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to selectTermRequest")
	}
	if err = sess.SelectTerm(data.TermID); err != nil {
		return errors.Wrap(err, "selecting term")
	}
	return ctx.JSON(http.StatusOK, sess.View(sess.Renderer()))
}

func (api sessionApi) cellType(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data typeCellRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to typeCellRequest")
	}
	cell, err := sess.Type(ctx.Param("student"), ctx.Param("subject"), data.Value.String())
	if err != nil {
		return errors.Wrap(err, "typing cell value")
	}
	return ctx.JSON(http.StatusOK, sess.Renderer().RenderCell(cell))
}

func (api sessionApi) cellClick(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	cell, err := sess.Click(ctx.Param("student"), ctx.Param("subject"))
	if err != nil {
		return errors.Wrap(err, "clicking cell")
	}
	return ctx.JSON(http.StatusOK, sess.Renderer().RenderCell(cell))
}

func (api sessionApi) committedUpdate(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data updateCommittedRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to updateCommittedRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	cell, err := sess.UpdateCommitted(ctx.Request().Context(), ctx.Param("student"), ctx.Param("subject"), *data.Grade)
	if err != nil {
		return errors.Wrap(err, "updating committed grade")
	}
	return ctx.JSON(http.StatusOK, sess.Renderer().RenderCell(cell))
}

func (api sessionApi) deferredSubmit(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data submitDeferredRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to submitDeferredRequest")
	}
	data.TermID = core.CleanString(data.TermID)
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	cell, err := sess.SubmitDeferred(ctx.Request().Context(), ctx.Param("student"), ctx.Param("subject"), data.TermID, *data.Grade)
	if err != nil {
		return errors.Wrap(err, "submitting deferred grade")
	}
	return ctx.JSON(http.StatusOK, sess.Renderer().RenderCell(cell))
}

// commit runs to completion even if the client disconnects.
func (api sessionApi) commit(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	res := sess.Commit(context.WithoutCancel(ctx.Request().Context()))
	return ctx.JSON(http.StatusOK, commitResponse{Result: res, Session: sess.View(sess.Renderer())})
}

func (api sessionApi) discard(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	n := sess.Discard()
	return ctx.JSON(http.StatusOK, discardResponse{Notification: n, Session: sess.View(sess.Renderer())})
}
