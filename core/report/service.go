package report

import (
	"bytes"
	"fmt"
	"net/mail"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/redland-cl/registro-escolar/core"
)

const (
	templateName       = "report"
	defaultPDFFilename = "reporte.pdf"

	// inline images embedded by the branded template; a missing file is
	// tolerated and simply skipped
	logoImage   = "logo_redland.png"
	bannerImage = "banner_registro.png"
)

type (
	// Meta describes the report being relayed; it only feeds the email body.
	Meta struct {
		ReportType string `json:"reportType" form:"reportType"`
		Section    string `json:"section" form:"section"`
		Nivel      string `json:"nivel" form:"nivel"`
		DateFrom   string `json:"dateFrom" form:"dateFrom"`
		DateTo     string `json:"dateTo" form:"dateTo"`
	}

	Result struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		DemoMode bool   `json:"demo_mode,omitempty"`
	}

	Service struct {
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}

	templateData struct {
		AppName   string
		Meta      Meta
		LogoCID   string
		BannerCID string
	}
)

var errEmptyPDF = errors.New("PDF file is empty")

func NewService(mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{mailSvc: mailSvc, conf: conf, logger: logger}
}

// Send wraps a client-generated PDF in the branded email and relays it.
// When no live email backend is configured it soft-degrades into a demo-mode
// success instead of failing.
func (svc *Service) Send(pdf []byte, filename, to, subject string, meta Meta) (Result, error) {
	if len(pdf) == 0 {
		return Result{}, core.NewValidationError(errEmptyPDF,
			core.FieldError{Field: "pdf", Error: errEmptyPDF.Error()})
	}
	to = core.CleanString(to, true /* lower */)
	if to == "" {
		return Result{}, core.NewValidationError(errors.New("recipient email is required"),
			core.FieldError{Field: "to", Error: "this field is required"})
	}

	if !svc.mailSvc.Live() {
		svc.logger.Info(fmt.Sprintf("report email to %s skipped: no email backend configured (demo mode)", to))
		return Result{
			Success:  true,
			DemoMode: true,
			Message:  "Demo mode: SMTP is not configured, the report was not actually sent",
		}, nil
	}

	if subject == "" {
		subject = fmt.Sprintf("%s - Reporte %s", svc.conf.AppName, meta.ReportType)
	}
	if filename = core.CleanString(filename); filename == "" {
		filename = defaultPDFFilename
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: to}},
		Subject:      subject,
		TemplateName: templateName,
		TemplateData: templateData{
			AppName:   svc.conf.AppName,
			Meta:      meta,
			LogoCID:   logoImage,
			BannerCID: bannerImage,
		},
	}
	for _, img := range []string{logoImage, bannerImage} {
		if err := msg.EmbedFile(filepath.Join(svc.conf.WorkDir, "assets", "images", img), img); err != nil {
			svc.logger.Warn(fmt.Sprintf("embedding %s: %v", img, err))
		}
	}
	if err := msg.Attach(bytes.NewReader(pdf), filename, "application/pdf"); err != nil {
		return Result{}, errors.Wrap(err, "attaching PDF")
	}

	if err := svc.mailSvc.SendMessage(msg); err != nil {
		return Result{}, errors.Wrap(err, "sending report email")
	}
	return Result{Success: true, Message: fmt.Sprintf("Report sent successfully to %s", to)}, nil
}

// TestEmail reports the email configuration state; in live mode it also
// sends a short plain-text message to the configured sender address.
func (svc *Service) TestEmail() (Result, error) {
	if !svc.mailSvc.Live() {
		return Result{
			Success:  true,
			DemoMode: true,
			Message:  "Email backend not configured: running in demo mode",
		}, nil
	}

	from := svc.conf.DefaultFromEmail()
	msg := &core.EmailMessage{
		To:      []mail.Address{from},
		Subject: "Test email",
		BodyStr: fmt.Sprintf("%s email configuration is working.", svc.conf.AppName),
	}
	if err := svc.mailSvc.SendMessage(msg); err != nil {
		return Result{}, errors.Wrap(err, "sending test email")
	}
	return Result{Success: true, Message: fmt.Sprintf("Test email sent to %s", from.Address)}, nil
}
