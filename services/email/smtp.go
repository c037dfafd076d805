package emailsvc

import (
	"bytes"
	"net/mail"

	"github.com/pkg/errors"
	gomail "github.com/wneessen/go-mail"

	"github.com/redland-cl/registro-escolar/core"
)

// smtpService relays mail through a STARTTLS SMTP session (Gmail app
// passwords supported). Sends are synchronous and failures surface to the
// caller; there is no retry.
type smtpService struct {
	conf             *core.Config
	defaultFromEmail mail.Address
	subjPrefix       string
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config) core.EmailService {
	return &smtpService{
		conf:             conf,
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
	}
}

func (svc smtpService) Live() bool { return true }

func (svc smtpService) SendMessage(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return errors.New("email has no recipients or no content")
	}

	m, err := svc.prepare(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(svc.conf.SMTP.Host,
		gomail.WithPort(svc.conf.SMTP.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(svc.conf.SMTP.User),
		gomail.WithPassword(svc.conf.SMTP.Password),
	)
	if err != nil {
		return errors.Wrap(err, "creating SMTP client")
	}
	if err = client.DialAndSend(m); err != nil {
		return errors.Wrap(err, "sending via SMTP")
	}
	return nil
}

func (svc smtpService) prepare(msg *core.EmailMessage) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(svc.defaultFromEmail.Name, svc.defaultFromEmail.Address); err != nil {
		return nil, errors.Wrap(err, "setting sender")
	}
	for _, to := range msg.To {
		if err := m.AddToFormat(to.Name, to.Address); err != nil {
			return nil, errors.Wrap(err, "setting recipient")
		}
	}
	for _, cc := range msg.Cc {
		if err := m.AddCcFormat(cc.Name, cc.Address); err != nil {
			return nil, errors.Wrap(err, "setting cc")
		}
	}
	for _, bcc := range msg.Bcc {
		if err := m.AddBccFormat(bcc.Name, bcc.Address); err != nil {
			return nil, errors.Wrap(err, "setting bcc")
		}
	}

	m.Subject(svc.subjPrefix + msg.Subject)
	if msg.TextContent != "" {
		m.SetBodyString(gomail.TypeTextPlain, msg.TextContent)
		if msg.HTMLContent != "" {
			m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLContent)
		}
	} else if msg.HTMLContent != "" {
		m.SetBodyString(gomail.TypeTextHTML, msg.HTMLContent)
	}

	for _, at := range msg.Attachments {
		r := bytes.NewReader(at.Content)
		if at.Inline {
			// the content id equals the embedded file name; templates
			// reference inline images as cid:<filename>
			if err := m.EmbedReader(at.ContentID, r); err != nil {
				return nil, errors.Wrapf(err, "embedding %s", at.Filename)
			}
		} else {
			if err := m.AttachReader(at.Filename, r); err != nil {
				return nil, errors.Wrapf(err, "attaching %s", at.Filename)
			}
		}
	}
	return m, nil
}
