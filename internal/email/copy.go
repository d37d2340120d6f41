package email

import "strings"

type mailCopy struct {
	hello, helloName                                       string
	inviteSubject, inviteIntro, inviteAction, inviteFooter string
	verifySubject, verifyIntro, verifyAction, verifyFooter string
	resetSubject, resetIntro, resetAction, resetFooter     string
}

var copies = map[string]mailCopy{
	"es": {
		hello:         "Hola,",
		helloName:     "Hola %s,",
		inviteSubject: "Te invitaron a %s",
		inviteIntro:   "%s te invitó a colaborar en el espacio de trabajo %s.",
		inviteAction:  "Aceptar invitación",
		inviteFooter:  "Si no esperabas esta invitación, puedes ignorar este correo.",
		verifySubject: "Verifica tu cuenta",
		verifyIntro:   "Confirma tu dirección de correo para activar tu cuenta. El enlace caduca en 24 horas.",
		verifyAction:  "Verificar correo",
		verifyFooter:  "Si no creaste una cuenta, puedes ignorar este correo.",
		resetSubject:  "Restablece tu contraseña",
		resetIntro:    "Recibimos una solicitud para restablecer tu contraseña. El enlace caduca en 1 hora.",
		resetAction:   "Restablecer contraseña",
		resetFooter:   "Si no solicitaste el cambio, tu contraseña seguirá igual.",
	},
	"en": {
		hello:         "Hi,",
		helloName:     "Hi %s,",
		inviteSubject: "You're invited to %s",
		inviteIntro:   "%s invited you to collaborate in the %s workspace.",
		inviteAction:  "Accept invitation",
		inviteFooter:  "If you weren't expecting this invitation, you can ignore this email.",
		verifySubject: "Verify your account",
		verifyIntro:   "Confirm your email address to activate your account. The link expires in 24 hours.",
		verifyAction:  "Verify email",
		verifyFooter:  "If you didn't create an account, you can ignore this email.",
		resetSubject:  "Reset your password",
		resetIntro:    "We received a request to reset your password. The link expires in 1 hour.",
		resetAction:   "Reset password",
		resetFooter:   "If you didn't request a reset, your password stays the same.",
	},
}

func copyFor(locale string) mailCopy {
	if c, ok := copies[strings.ToLower(locale)]; ok {
		return c
	}
	return copies["es"]
}
