package emailsvc

import (
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/redland-cl/registro-escolar/core"
)

var (
	// SentMessages records everything "sent" through the console service;
	// tests inspect it.
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// ClearSentMessages resets the recorded messages between tests.
func ClearSentMessages() {
	mu.Lock()
	defer mu.Unlock()
	SentMessages = SentMessages[:0]
}

// consoleService writes outgoing mail to the logger instead of a wire.
// It is the demo-mode backend used when neither SMTP nor Sendgrid is
// configured.
type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	logger           core.Logger
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		logger:           logger,
	}
}

func (svc consoleService) Live() bool { return false }

func (svc consoleService) SendMessage(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return nil
	}

	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.defaultFromEmail.String())
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s%s\r\n", svc.subjPrefix, msg.Subject)
	_, _ = fmt.Fprintf(body, "\r\n%s\r\n", msg.TextContent)
	for _, at := range msg.Attachments {
		_, _ = fmt.Fprintf(body, "Attachment: %s (%s, %d bytes)\r\n", at.Filename, at.ContentType, len(at.Content))
	}
	svc.logger.Info(body.String())

	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
	return nil
}

func joinAddresses(addrs []mail.Address) string {
	strs := make([]string, 0, len(addrs))
	for _, a := range addrs {
		strs = append(strs, a.String())
	}
	return strings.Join(strs, ", ")
}
