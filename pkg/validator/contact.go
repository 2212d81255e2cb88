package validator

import (
	"errors"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyName indicates the contact name is blank
	ErrEmptyName = errors.New("contact name cannot be empty")

	// ErrEmptyEmail indicates the contact email is blank
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidEmail indicates the email does not have a standard shape
	ErrInvalidEmail = errors.New("email address is not valid")
)

// ContactValidator checks the booking contact block
type ContactValidator struct {
	validate *playground.Validate
	phone    *PhoneValidator
}

// NewContactValidator creates a new contact validator instance
func NewContactValidator() *ContactValidator {
	return &ContactValidator{
		validate: playground.New(),
		phone:    NewPhoneValidator(),
	}
}

// ValidateName requires a non-blank name
func (v *ContactValidator) ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return nil
}

// ValidatePhone delegates to the phone validator
func (v *ContactValidator) ValidatePhone(phone string) (string, error) {
	return v.phone.Validate(phone)
}

// ValidateEmail checks the email shape
func (v *ContactValidator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmptyEmail
	}
	if err := v.validate.Var(email, "email"); err != nil {
		return ErrInvalidEmail
	}
	return nil
}
