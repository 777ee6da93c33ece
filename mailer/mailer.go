package mailer

import (
	"bytes"
	"context"
	"html/template"
	"net/url"

	"github.com/princinho/eventhub/metrics"
	"github.com/princinho/eventhub/models"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message. Implementations return transport errors;
// Mailer decides what to do with them.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var (
	confirmationTmpl = template.Must(template.New("confirm").Parse(
		`<p>Hi {{.Name}},</p>` +
			`<p>Please confirm your email address by following <a href="{{.Link}}">this link</a>.</p>` +
			`<p>If you did not create an account you can ignore this message.</p>`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`<p>Hi {{.Name}},</p>` +
			`<p>You asked to reset your password. <a href="{{.Link}}">Choose a new one</a>. ` +
			`The link expires soon and works only once.</p>`))
)

// Mailer renders account mails and hands them to a Sender. Delivery failures
// are logged and counted, never returned.
type Mailer struct {
	sender  Sender
	baseURL string
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(sender Sender, baseURL string, log *zap.Logger, m *metrics.Metrics) *Mailer {
	return &Mailer{sender: sender, baseURL: baseURL, log: log, metrics: m}
}

func (m *Mailer) SendEmailConfirmation(ctx context.Context, user *models.User, token string) {
	link := m.link("/api/user/email-confirmation", token)
	m.render(ctx, user.Email, "Confirm your email", confirmationTmpl, user, link)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, user *models.User, token string) {
	link := m.link("/api/user/password-reset/validate", token)
	m.render(ctx, user.Email, "Reset your password", resetTmpl, user, link)
}

// Send delivers msg and swallows the error.
func (m *Mailer) Send(ctx context.Context, msg Message) {
	if err := m.sender.Send(ctx, msg); err != nil {
		m.log.Error("mail delivery failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		m.count("failed")
		return
	}
	m.count("sent")
}

func (m *Mailer) render(ctx context.Context, to, subject string, tmpl *template.Template, user *models.User, link string) {
	var buf bytes.Buffer
	data := struct {
		Name string
		Link string
	}{Name: user.FirstName, Link: link}
	if data.Name == "" {
		data.Name = user.Username
	}

	if err := tmpl.Execute(&buf, data); err != nil {
		m.log.Error("render mail", zap.String("template", tmpl.Name()), zap.Error(err))
		m.count("failed")
		return
	}
	m.Send(ctx, Message{To: to, Subject: subject, HTML: buf.String()})
}

func (m *Mailer) link(path, token string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(token)
}

func (m *Mailer) count(status string) {
	if m.metrics != nil {
		m.metrics.MailsTotal.WithLabelValues(status).Inc()
	}
}
