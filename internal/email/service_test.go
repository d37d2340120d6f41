package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingService(t *testing.T) (*Service, *[]capturedMail) {
	t.Helper()
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "noreply@example.com", FromName: "Launchkit"})
	var sent []capturedMail
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return svc, &sent
}

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   bool
	}{
		{name: "fully configured", config: Config{Host: "smtp.example.com", Port: "587", From: "a@example.com"}, want: true},
		{name: "missing host", config: Config{Port: "587", From: "a@example.com"}},
		{name: "missing from", config: Config{Host: "smtp.example.com", Port: "587"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewService(tt.config).IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendHTMLRequiresConfig(t *testing.T) {
	err := NewService(Config{}).SendHTML([]string{"a@example.com"}, "s", "t", "<p>h</p>")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("SendHTML() error = %v, want ErrNotConfigured", err)
	}
}

func TestSendInvitationRendersLocalizedCopy(t *testing.T) {
	svc, sent := newCapturingService(t)
	if err := svc.SendInvitation("es", "bob@example.com", "Ana", "Acme", "https://app.example.com/invite/tok"); err != nil {
		t.Fatalf("SendInvitation failed: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	mail := (*sent)[0]
	if mail.addr != "smtp.example.com:587" || mail.to[0] != "bob@example.com" {
		t.Fatalf("unexpected envelope: %+v", mail)
	}
	for _, want := range []string{
		"Subject: Te invitaron a Acme",
		"From: Launchkit <noreply@example.com>",
		"Aceptar invitación",
		"https://app.example.com/invite/tok",
		"multipart/alternative",
	} {
		if !strings.Contains(mail.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendPasswordResetFallsBackToSpanish(t *testing.T) {
	svc, sent := newCapturingService(t)
	if err := svc.SendPasswordReset("fr", "bob@example.com", "Bob", "https://x/reset"); err != nil {
		t.Fatalf("SendPasswordReset failed: %v", err)
	}
	if !strings.Contains((*sent)[0].msg, "Restablece tu contraseña") {
		t.Fatal("expected spanish subject for unknown locale")
	}
}

func TestRenderTemplateEscapesInput(t *testing.T) {
	html, err := renderTemplate(templateData{AppName: "Launchkit", Greeting: "<script>x</script>", URL: "https://x"})
	if err != nil {
		t.Fatalf("renderTemplate: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("greeting must be escaped")
	}
}
