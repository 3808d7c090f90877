package identity

import (
	"net/mail"
	"strings"

	"github.com/mediconnect/platform/pkg/common/apperr"
	"github.com/mediconnect/platform/pkg/common/models"
)

const (
	minNameLength      = 2
	minSpecialtyLength = 2
	minPhoneLength     = 10
	minPasswordLength  = 6
)

func validateDoctorSignup(req models.DoctorSignup) error {
	if err := validateName(req.Name); err != nil {
		return err
	}
	if len(strings.TrimSpace(req.Specialty)) < minSpecialtyLength {
		return apperr.NewValidationError("Specialty is required")
	}
	if err := validateContact(req.Email, req.Phone); err != nil {
		return err
	}
	if req.YearsOfExperience < 0 {
		return apperr.NewValidationError("Experience must be a positive number")
	}
	return validatePassword(req.Password)
}

func validatePatientSignup(req models.PatientSignup) error {
	if err := validateName(req.Name); err != nil {
		return err
	}
	if req.Age < 0 {
		return apperr.NewValidationError("Age must be a positive number")
	}
	if err := validateContact(req.Email, req.Phone); err != nil {
		return err
	}
	return validatePassword(req.Password)
}

func validateName(name string) error {
	if len(strings.TrimSpace(name)) < minNameLength {
		return apperr.NewValidationError("Name is too short")
	}
	return nil
}

func validateContact(email, phone string) error {
	if !validEmail(email) {
		return apperr.NewValidationError("Invalid email address")
	}
	if len(strings.TrimSpace(phone)) < minPhoneLength {
		return apperr.NewValidationError("Phone number must be at least 10 digits")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.NewValidationError("Password must be at least 6 characters long")
	}
	return nil
}

// validEmail accepts a bare addr-spec only; display names are rejected.
func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}
