// Package subdomain holds the naming rules for site subdomains.
package subdomain

import (
	"errors"
	"regexp"
	"strings"
)

const (
	MinLength = 3
	MaxLength = 63
)

var (
	ErrTooShort = errors.New("subdomain too short")
	ErrTooLong  = errors.New("subdomain too long")
	ErrFormat   = errors.New("subdomain may contain lowercase letters, digits and inner hyphens")
	ErrReserved = errors.New("subdomain is reserved")
)

var pattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

var reserved = map[string]struct{}{
	"www": {}, "app": {}, "api": {}, "admin": {}, "mail": {}, "static": {}, "assets": {}, "status": {},
}

func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Validate checks a normalized subdomain.
func Validate(value string) error {
	switch {
	case len(value) < MinLength:
		return ErrTooShort
	case len(value) > MaxLength:
		return ErrTooLong
	case !pattern.MatchString(value):
		return ErrFormat
	}
	if _, ok := reserved[value]; ok {
		return ErrReserved
	}
	return nil
}
