package service

import (
	"regexp"
	"strings"

	"github.com/screening-server/internal/domain"
)

var (
	phoneDisallowed = regexp.MustCompile(`[^0-9-]`)
	phoneHyphens    = regexp.MustCompile(`-{2,}`)
	phonePattern    = regexp.MustCompile(`^[0-9-]+$`)
	phoneDigit      = regexp.MustCompile(`[0-9]`)
)

// NormalizePhone strips spaces and anything but digits and hyphens, then
// collapses repeated hyphens.
func NormalizePhone(phone string) string {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	p = phoneDisallowed.ReplaceAllString(p, "")
	return phoneHyphens.ReplaceAllString(p, "-")
}

// NormalizeIdentity trims every field and normalizes the phone number.
func NormalizeIdentity(id domain.Identity) domain.Identity {
	return domain.Identity{
		Name:  strings.TrimSpace(id.Name),
		Phone: NormalizePhone(id.Phone),
		Email: strings.TrimSpace(id.Email),
	}
}

// ValidateIdentity reports every invalid field. Name is required; phone and
// email are optional but must be well formed when present.
func ValidateIdentity(id domain.Identity) domain.ValidationErrors {
	var errs domain.ValidationErrors

	if strings.TrimSpace(id.Name) == "" {
		errs = append(errs, domain.NewValidationError("name", "name is required", id.Name))
	}

	if phone := NormalizePhone(id.Phone); phone != "" {
		if !phonePattern.MatchString(phone) || !phoneDigit.MatchString(phone) {
			errs = append(errs, domain.NewValidationError("phone", "phone may contain only digits and hyphens", id.Phone))
		}
	}

	if email := strings.TrimSpace(id.Email); email != "" {
		if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
			errs = append(errs, domain.NewValidationError("email", "email must contain '@' and '.'", id.Email))
		}
	}

	return errs
}
