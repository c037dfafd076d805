package emailsvc

import (
	"encoding/base64"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/redland-cl/registro-escolar/core"
)

var (
	sgHost     = "https://api.sendgrid.com"
	sgEndpoint = "/v3/mail/send"
)

// sendgridService is the alternative live backend, selected when a Sendgrid
// API key is configured and SMTP credentials are not.
type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridAPIKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc sendgridService) Live() bool { return true }

func (svc sendgridService) SendMessage(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return errors.New("email has no recipients or no content")
	}

	req := sendgrid.GetRequest(svc.key, sgEndpoint, sgHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sending via sendgrid")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid returned %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (svc sendgridService) prepare(msg *core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(svc.getSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(svc.getSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(svc.getSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	for _, at := range msg.Attachments {
		m.AddAttachment(svc.getSGAttachment(at))
	}
	return m
}

func (svc sendgridService) getSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc sendgridService) getSGAttachment(at core.Attachment) *sgmail.Attachment {
	sgAt := &sgmail.Attachment{
		Content:     base64.StdEncoding.EncodeToString(at.Content),
		Type:        at.ContentType,
		Filename:    at.Filename,
		Disposition: "attachment",
	}
	if at.Inline {
		sgAt.Disposition = "inline"
		sgAt.ContentID = at.ContentID
	}
	return sgAt
}
