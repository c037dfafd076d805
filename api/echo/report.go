package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redland-cl/registro-escolar/core"
	"github.com/redland-cl/registro-escolar/core/report"
	"github.com/redland-cl/registro-escolar/core/user"
)

type reportApi struct {
	svc    *report.Service
	usrSvc *user.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := &reportApi{svc: opts.ReportSvc, usrSvc: opts.UserSvc}

	g.POST("/send-report-email", api.sendReport, jwt, directoryMiddleware(api.usrSvc))
	g.GET("/test-email", api.testEmail)
}

func (api *reportApi) sendReport(ctx echo.Context) error {
	fh, err := ctx.FormFile("pdf")
	if err != nil {
		return core.NewValidationError(errors.New("PDF file is required"),
			core.FieldError{Field: "pdf", Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded PDF")
	}
	defer f.Close()
	pdf, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "reading uploaded PDF")
	}

	meta := report.Meta{
		ReportType: ctx.FormValue("reportType"),
		Section:    ctx.FormValue("section"),
		Nivel:      ctx.FormValue("nivel"),
		DateFrom:   ctx.FormValue("dateFrom"),
		DateTo:     ctx.FormValue("dateTo"),
	}
	res, err := api.svc.Send(pdf, fh.Filename, ctx.FormValue("to"), ctx.FormValue("subject"), meta)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reportApi) testEmail(ctx echo.Context) error {
	res, err := api.svc.TestEmail()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
