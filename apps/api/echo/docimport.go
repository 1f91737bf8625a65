package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/docimport"
)

const uploadField = "file"

type importApi struct {
	svc           docimport.ServiceInterface
	auth          *authenticator
	validate      *validator.Validate
	maxUploadSize int64
}

func registerImportAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc docimport.ServiceInterface,
	validate *validator.Validate,
	maxUploadSize int64,
) {
	api := importApi{
		svc:           svc,
		auth:          auth,
		validate:      validate,
		maxUploadSize: maxUploadSize,
	}

	ig := g.Group("/imports", jwt, staffMiddleware)
	ig.GET("", api.list)
	ig.POST("", api.upload)
	ig.GET("/:id", api.retrieve)
	ig.DELETE("/:id", api.destroy)
	ig.POST("/:id/answer-key", api.applyAnswerKey)
	ig.POST("/:id/create-assessment", api.createAssessment)
}

func (api *importApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return core.NewFieldError(uploadField, "Please select a file to upload.")
	}
	if api.maxUploadSize > 0 && fh.Size > api.maxUploadSize {
		return core.NewFieldError(uploadField, fmt.Sprintf("File size must be under %dMB.", api.maxUploadSize>>20))
	}

	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	di, err := api.svc.Upload(ctx.Request().Context(), actor, fh.Filename, f)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, di)
}

func (api *importApi) list(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	list, err := api.svc.List(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing imports")
	}
	return listJSON(ctx, http.StatusOK, list)
}

func (api *importApi) retrieve(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	di, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting import")
	}
	return ctx.JSON(http.StatusOK, di)
}

func (api *importApi) destroy(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting import")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *importApi) applyAnswerKey(ctx echo.Context) error {
	var data docimport.AnswerKeyInput
	if err := bindValid(ctx, api.validate, &data, "AnswerKeyInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	di, err := api.svc.ApplyAnswerKey(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "applying answer key")
	}
	return ctx.JSON(http.StatusOK, di)
}

func (api *importApi) createAssessment(ctx echo.Context) error {
	var data docimport.CreateAssessmentInput
	if err := bindValid(ctx, api.validate, &data, "CreateAssessmentInput"); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	detail, err := api.svc.CreateAssessment(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating assessment from import")
	}
	return ctx.JSON(http.StatusCreated, detail)
}
