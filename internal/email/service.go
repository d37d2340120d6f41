// Package email sends transactional mail over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppName  string
}

// Service renders templates and hands messages to an SMTP relay.
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewService(config Config) *Service {
	if config.AppName == "" {
		config.AppName = "Launchkit"
	}
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (s *Service) IsConfigured() bool {
	return s != nil && s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTML sends a multipart/alternative message with a plain-text fallback.
func (s *Service) SendHTML(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	const boundary = "launchkit-alt"
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := s.send(s.server, s.auth, s.config.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

type templateData struct {
	AppName  string
	Greeting string
	Intro    string
	Action   string
	URL      string
	Footer   string
}

func (s *Service) sendTemplated(to, subject string, data templateData) error {
	data.AppName = s.config.AppName
	html, err := renderTemplate(data)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	text := data.Greeting + "\n\n" + data.Intro + "\n\n" + data.URL + "\n\n" + data.Footer
	return s.SendHTML([]string{to}, subject, text, html)
}

// SendInvitation mails a workspace invitation link.
func (s *Service) SendInvitation(locale, to, inviterName, workspaceName, acceptURL string) error {
	c := copyFor(locale)
	return s.sendTemplated(to, fmt.Sprintf(c.inviteSubject, workspaceName), templateData{
		Greeting: c.hello,
		Intro:    fmt.Sprintf(c.inviteIntro, inviterName, workspaceName),
		Action:   c.inviteAction,
		URL:      acceptURL,
		Footer:   c.inviteFooter,
	})
}

func (s *Service) SendVerification(locale, to, userName, verificationURL string) error {
	c := copyFor(locale)
	return s.sendTemplated(to, c.verifySubject, templateData{
		Greeting: fmt.Sprintf(c.helloName, userName),
		Intro:    c.verifyIntro,
		Action:   c.verifyAction,
		URL:      verificationURL,
		Footer:   c.verifyFooter,
	})
}

func (s *Service) SendPasswordReset(locale, to, userName, resetURL string) error {
	c := copyFor(locale)
	return s.sendTemplated(to, c.resetSubject, templateData{
		Greeting: fmt.Sprintf(c.helloName, userName),
		Intro:    c.resetIntro,
		Action:   c.resetAction,
		URL:      resetURL,
		Footer:   c.resetFooter,
	})
}

var mailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #1f2933; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #6d28d9; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #6d28d9; color: white; text-decoration: none; border-radius: 6px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #6d28d9; }
    </style>
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <p>{{.Greeting}}</p>
    <p>{{.Intro}}</p>
    <p><a href="{{.URL}}" class="button">{{.Action}}</a></p>
    <p class="link">{{.URL}}</p>
    <div class="footer"><p>{{.Footer}}</p></div>
</body>
</html>`))

func renderTemplate(data templateData) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
