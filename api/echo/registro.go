package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redland-cl/registro-escolar/core/registro"
	"github.com/redland-cl/registro-escolar/core/user"
)

type registroApi struct {
	svc      *registro.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerRegistroAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := &registroApi{svc: opts.RegistroSvc, usrSvc: opts.UserSvc, validate: opts.Validate}
	editor := editorMiddleware(api.usrSvc)

	// any current directory member may read; mutations are editor-only
	ag := g.Group("/activities", jwt, directoryMiddleware(api.usrSvc))
	ag.GET("", api.listActivities)
	ag.POST("", api.createActivity, editor)
	ag.PUT("/:id", api.updateActivity, editor)
	ag.DELETE("/:id", api.deleteActivity, editor)

	eg := g.Group("/evaluations", jwt, directoryMiddleware(api.usrSvc))
	eg.GET("", api.listEvaluations)
	eg.POST("", api.createEvaluation, editor)
	eg.PUT("/:id", api.updateEvaluation, editor)
	eg.DELETE("/:id", api.deleteEvaluation, editor)
}

func bindFilter(ctx echo.Context) registro.Filter {
	return registro.Filter{
		DateFrom: ctx.QueryParam("date_from"),
		DateTo:   ctx.QueryParam("date_to"),
		Seccion:  ctx.QueryParam("seccion"),
	}
}

// Activities

func (api *registroApi) listActivities(ctx echo.Context) error {
	grouped, total, err := api.svc.ListActivities(bindFilter(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"activities": grouped,
		"total":      total,
	})
}

func (api *registroApi) createActivity(ctx echo.Context) error {
	var data registro.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	created, err := api.svc.CreateActivity(api.validate, data, ctxUsr.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"created": created,
		"message": fmt.Sprintf("Created %d activities", created),
	})
}

func (api *registroApi) updateActivity(ctx echo.Context) error {
	var data registro.UpdateActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateActivity")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	act, err := api.svc.UpdateActivity(api.validate, ctx.Param("id"), data, ctxUsr.Email)
	if err != nil {
		if errors.Cause(err) == registro.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"activity": act})
}

func (api *registroApi) deleteActivity(ctx echo.Context) error {
	if err := api.svc.DeleteActivity(ctx.Param("id")); err != nil {
		if errors.Cause(err) == registro.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Activity deleted successfully",
	})
}

// Evaluations

func (api *registroApi) listEvaluations(ctx echo.Context) error {
	grouped, total, err := api.svc.ListEvaluations(bindFilter(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"evaluations": grouped,
		"total":       total,
	})
}

func (api *registroApi) createEvaluation(ctx echo.Context) error {
	var data registro.NewEvaluation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluation")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	ev, err := api.svc.CreateEvaluation(api.validate, data, ctxUsr.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"evaluation": ev})
}

func (api *registroApi) updateEvaluation(ctx echo.Context) error {
	var data registro.UpdateEvaluation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEvaluation")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	ev, err := api.svc.UpdateEvaluation(api.validate, ctx.Param("id"), data, ctxUsr.Email)
	if err != nil {
		if errors.Cause(err) == registro.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"evaluation": ev})
}

func (api *registroApi) deleteEvaluation(ctx echo.Context) error {
	if err := api.svc.DeleteEvaluation(ctx.Param("id")); err != nil {
		if errors.Cause(err) == registro.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Evaluation deleted successfully",
	})
}
