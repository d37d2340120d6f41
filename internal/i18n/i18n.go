// Package i18n resolves the request locale and localizes user-facing messages.
package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// LocaleCookie holds an explicit locale choice.
const LocaleCookie = "NEXT_LOCALE_CHOSEN"

type Key string

const (
	InvalidData      Key = "invalid_data"
	NotAuthenticated Key = "not_authenticated"
	PermissionDenied Key = "permission_denied"
	NotFound         Key = "not_found"
	GenericFailure   Key = "generic_failure"
	SubdomainTaken   Key = "subdomain_taken"
	DomainTaken      Key = "domain_taken"
	SlugTaken        Key = "slug_taken"
	AlreadyInvited   Key = "already_invited"
	InvitationEmail  Key = "invitation_email_mismatch"
	InvitationGone   Key = "invitation_not_found"
	OwnerImmutable   Key = "owner_immutable"
	InvalidContent   Key = "invalid_content"
	StorageDisabled  Key = "storage_disabled"
	FileTooLarge     Key = "file_too_large"
	UnsupportedFile  Key = "unsupported_file"
	EmailTaken       Key = "email_taken"
	BadCredentials   Key = "bad_credentials"
	EmailUnverified  Key = "email_unverified"
	InvalidToken     Key = "invalid_token"
	WeakPassword     Key = "weak_password"
	TooManyRequests  Key = "too_many_requests"
)

var (
	Spanish = language.Spanish
	English = language.English

	supported = []language.Tag{Spanish, English}
	matcher   = language.NewMatcher(supported)
)

var catalog = map[language.Tag]map[Key]string{
	Spanish: {
		InvalidData:      "Datos inválidos.",
		NotAuthenticated: "No has iniciado sesión.",
		PermissionDenied: "No tienes permiso para realizar esta acción.",
		NotFound:         "El recurso no existe.",
		GenericFailure:   "Ocurrió un error inesperado. Inténtalo de nuevo.",
		SubdomainTaken:   "Este subdominio ya está en uso.",
		DomainTaken:      "Este dominio ya está en uso.",
		SlugTaken:        "Esta URL ya está en uso en el sitio.",
		AlreadyInvited:   "Ya existe una invitación pendiente para este correo.",
		InvitationEmail:  "Esta invitación fue enviada a otro correo.",
		InvitationGone:   "La invitación no existe o ya fue aceptada.",
		OwnerImmutable:   "El rol del propietario no se puede cambiar.",
		InvalidContent:   "El contenido de la página no es válido.",
		StorageDisabled:  "La subida de archivos no está disponible.",
		FileTooLarge:     "El archivo es demasiado grande.",
		UnsupportedFile:  "Este tipo de archivo no está permitido.",
		EmailTaken:       "Este correo ya está registrado.",
		BadCredentials:   "Correo o contraseña incorrectos.",
		EmailUnverified:  "Debes verificar tu correo antes de iniciar sesión.",
		InvalidToken:     "El enlace no es válido o ha caducado.",
		WeakPassword:     "La contraseña debe tener al menos 8 caracteres.",
		TooManyRequests:  "Demasiadas solicitudes. Espera un momento.",
	},
	English: {
		InvalidData:      "Invalid data.",
		NotAuthenticated: "You are not signed in.",
		PermissionDenied: "You don't have permission to perform this action.",
		NotFound:         "The resource does not exist.",
		GenericFailure:   "Something went wrong. Please try again.",
		SubdomainTaken:   "This subdomain is already in use.",
		DomainTaken:      "This domain is already in use.",
		SlugTaken:        "This URL is already in use on the site.",
		AlreadyInvited:   "There is already a pending invitation for this email.",
		InvitationEmail:  "This invitation was sent to a different email.",
		InvitationGone:   "The invitation does not exist or was already accepted.",
		OwnerImmutable:   "The owner's role cannot be changed.",
		InvalidContent:   "The page content is not valid.",
		StorageDisabled:  "File uploads are not available.",
		FileTooLarge:     "The file is too large.",
		UnsupportedFile:  "This file type is not allowed.",
		EmailTaken:       "This email is already registered.",
		BadCredentials:   "Invalid email or password.",
		EmailUnverified:  "Verify your email before signing in.",
		InvalidToken:     "The link is invalid or has expired.",
		WeakPassword:     "Password must be at least 8 characters.",
		TooManyRequests:  "Too many requests. Please wait a moment.",
	},
}

// Localizer translates message keys for one locale.
type Localizer struct {
	tag language.Tag
}

func New(tag language.Tag) Localizer {
	return Localizer{tag: Match(tag.String())}
}

func (l Localizer) Locale() string {
	base, _ := l.tag.Base()
	return base.String()
}

// T returns the message for key, falling back to Spanish and then to the key.
func (l Localizer) T(key Key) string {
	if msg, ok := catalog[l.tag][key]; ok {
		return msg
	}
	if msg, ok := catalog[Spanish][key]; ok {
		return msg
	}
	return string(key)
}

// Match picks the closest supported locale for a BCP 47 preference list.
func Match(preferences ...string) language.Tag {
	var tags []language.Tag
	for _, pref := range preferences {
		parsed, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return Spanish
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Spanish
	}
	return supported[index]
}

// FromRequest resolves the locale from the locale cookie, then
// Accept-Language, defaulting to Spanish.
func FromRequest(r *http.Request) Localizer {
	if cookie, err := r.Cookie(LocaleCookie); err == nil && cookie.Value != "" {
		if tag := Match(cookie.Value); tag != Spanish || isSpanish(cookie.Value) {
			return Localizer{tag: tag}
		}
	}
	return Localizer{tag: Match(r.Header.Get("Accept-Language"))}
}

// Supported reports whether locale names a catalog language.
func Supported(locale string) bool {
	tag, err := language.Parse(locale)
	if err != nil {
		return false
	}
	_, _, confidence := matcher.Match(tag)
	return confidence >= language.High
}

func isSpanish(value string) bool {
	tag, err := language.Parse(value)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base.String() == "es"
}
